package server

import (
	"bufio"
	"io"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStartProcess(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	core, logs := observer.New(zapcore.InfoLevel)
	p, err := StartProcess(Command{
		Path: sh,
		Args: []string{"-c", `echo "$GREETING" >&2; cat`},
		Env:  map[string]string{"GREETING": "hello from stderr"},
	}, zap.New(core))
	require.NoError(t, err)
	assert.Greater(t, p.Pid(), 0)

	_, err = p.Stdin().Write([]byte("ping\n"))
	require.NoError(t, err)
	line, err := bufio.NewReader(p.Stdout()).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ping\n", line)

	require.Eventually(t, func() bool {
		return logs.FilterMessage(sh + " stderr").Len() > 0
	}, 2*time.Second, 10*time.Millisecond)
	output := logs.FilterMessage(sh + " stderr").All()[0].ContextMap()["output"]
	assert.Equal(t, "hello from stderr\n", output)

	require.NoError(t, p.Kill())
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("process did not exit after kill")
	}
	assert.Error(t, p.Err())
	require.NoError(t, p.Kill())
}

func TestStdoutReadableAfterExit(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	p, err := StartProcess(Command{Path: sh, Args: []string{"-c", `printf 'last words'`}}, nil)
	require.NoError(t, err)
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("process did not exit")
	}
	assert.NoError(t, p.Err())

	out, err := io.ReadAll(p.Stdout())
	require.NoError(t, err)
	assert.Equal(t, "last words", string(out))
	require.NoError(t, p.Stdout().Close())
}

func TestStartProcessErrors(t *testing.T) {
	_, err := StartProcess(Command{}, nil)
	assert.Error(t, err)

	_, err = StartProcess(Command{Path: "/nonexistent/language-server"}, nil)
	assert.Error(t, err)
}

func TestEnvList(t *testing.T) {
	assert.Equal(t, []string{"A=1", "B=2"}, envList(map[string]string{"B": "2", "A": "1"}))
}
