package editor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// CommandRegistry is an in-memory Commands implementation. Commands are keyed
// by name; registering a name again replaces the previous handler until the
// newer registration is disposed.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[string][]commandRegistration
	nextID   int
	logger   *zap.Logger
}

type commandRegistration struct {
	id int
	fn CommandFunc
}

// NewCommandRegistry creates an empty registry
func NewCommandRegistry(logger *zap.Logger) *CommandRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandRegistry{
		commands: make(map[string][]commandRegistration),
		logger:   logger,
	}
}

// Add implements Commands
func (r *CommandRegistry) Add(name string, fn CommandFunc) Disposable {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.commands[name] = append(r.commands[name], commandRegistration{id: id, fn: fn})

	return DisposableFunc(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		regs := r.commands[name]
		for i, reg := range regs {
			if reg.id == id {
				regs = append(regs[:i], regs[i+1:]...)
				break
			}
		}
		if len(regs) == 0 {
			delete(r.commands, name)
		} else {
			r.commands[name] = regs
		}
	})
}

// Dispatch runs the command registered under name
func (r *CommandRegistry) Dispatch(ctx context.Context, name string) error {
	r.mu.RLock()
	regs := r.commands[name]
	var fn CommandFunc
	if len(regs) > 0 {
		fn = regs[len(regs)-1].fn
	}
	r.mu.RUnlock()

	if fn == nil {
		r.logger.Error("unknown command", zap.String("command", name))
		return fmt.Errorf("unknown command: %s", name)
	}

	r.logger.Debug("dispatching command", zap.String("command", name))
	if err := fn(ctx); err != nil {
		r.logger.Error("error from command",
			zap.String("command", name),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// Names returns the registered command names in sorted order
func (r *CommandRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
