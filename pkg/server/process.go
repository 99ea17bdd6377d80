package server

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Process is a running language server whose stdio carries the protocol
type Process interface {
	Stdin() io.WriteCloser
	Stdout() io.ReadCloser
	Kill() error
	Pid() int
}

// Command describes how to launch a language server
type Command struct {
	Path string
	Args []string
	Env  map[string]string
	Dir  string
}

// ExecProcess is a language server running as a child process
type ExecProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	logger *zap.Logger

	done chan struct{}
	mu   sync.Mutex
	err  error
}

// StartProcess launches c. The process outlives any request context; it ends
// with Kill. The server's stderr is written to logger.
func StartProcess(c Command, logger *zap.Logger) (*ExecProcess, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c.Path == "" {
		return nil, errors.New("language server command is required")
	}

	logger.Info("starting language server", zap.String("command", c.Path), zap.Strings("args", c.Args))

	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), envList(c.Env)...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	// Wait closes pipes made by StdoutPipe, so stdout is an os.Pipe we own.
	// The reader sees everything the server wrote, even after it exits.
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = &logWriter{logger: logger, prefix: c.Path + " stderr"}

	err = cmd.Start()
	stdoutW.Close()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("failed to start %s: %w", c.Path, err)
	}
	logger.Info("language server started", zap.Int("pid", cmd.Process.Pid))

	p := &ExecProcess{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		logger: logger,
		done:   make(chan struct{}),
	}
	go p.wait()
	return p, nil
}

func (p *ExecProcess) wait() {
	err := p.cmd.Wait()
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
	close(p.done)
	p.logger.Debug("language server exited", zap.Int("pid", p.Pid()), zap.Error(err))
}

// Stdin implements Process
func (p *ExecProcess) Stdin() io.WriteCloser {
	return p.stdin
}

// Stdout implements Process
func (p *ExecProcess) Stdout() io.ReadCloser {
	return p.stdout
}

// Pid implements Process
func (p *ExecProcess) Pid() int {
	return p.cmd.Process.Pid
}

// Kill implements Process. Killing an exited process is not an error.
func (p *ExecProcess) Kill() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill language server: %w", err)
	}
	return nil
}

// Done is closed once the process has exited
func (p *ExecProcess) Done() <-chan struct{} {
	return p.done
}

// Err returns the exit error once Done is closed
func (p *ExecProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// logWriter implements io.Writer to capture and log stderr output
type logWriter struct {
	logger *zap.Logger
	prefix string
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	w.logger.Info(w.prefix, zap.ByteString("output", p))
	return len(p), nil
}

func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
