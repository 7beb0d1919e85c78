// Package executortest provides a scripted executor for tests.
package executortest

import (
	"context"
	"strings"
	"sync"

	"github.com/cuemby/herd/pkg/executor"
)

// Call records one command issued to the fake
type Call struct {
	Target  executor.Target
	Command string
}

// Handler answers a command. ok=false lets the next handler try.
type Handler func(target executor.Target, command string) (out executor.Output, err error, ok bool)

// Fake is an executor.Executor that answers from registered handlers and
// records every call. Handlers registered later take precedence.
type Fake struct {
	mu       sync.Mutex
	calls    []Call
	handlers []Handler
}

// New creates an empty fake. Unmatched commands succeed with no output.
func New() *Fake {
	return &Fake{}
}

// Handle registers a handler
func (f *Fake) Handle(h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, h)
}

// Respond answers commands containing substr with stdout
func (f *Fake) Respond(substr, stdout string) {
	f.Handle(func(_ executor.Target, command string) (executor.Output, error, bool) {
		if !strings.Contains(command, substr) {
			return executor.Output{}, nil, false
		}
		return executor.Output{Stdout: stdout}, nil, true
	})
}

// Fail makes commands containing substr exit 1 with stderr
func (f *Fake) Fail(substr, stderr string) {
	f.Handle(func(target executor.Target, command string) (executor.Output, error, bool) {
		if !strings.Contains(command, substr) {
			return executor.Output{}, nil, false
		}
		out := executor.Output{Stderr: stderr}
		return out, &executor.ExecutionError{
			Target:   target,
			Command:  command,
			Stderr:   stderr,
			ExitCode: 1,
		}, true
	})
}

// Run implements executor.Executor
func (f *Fake) Run(_ context.Context, target executor.Target, command string) (executor.Output, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Target: target, Command: command})
	handlers := make([]Handler, len(f.handlers))
	copy(handlers, f.handlers)
	f.mu.Unlock()

	for i := len(handlers) - 1; i >= 0; i-- {
		if out, err, ok := handlers[i](target, command); ok {
			return out, err
		}
	}
	return executor.Output{}, nil
}

// Calls returns every recorded call in order
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := make([]Call, len(f.calls))
	copy(calls, f.calls)
	return calls
}

// Commands returns the recorded command strings in order
func (f *Fake) Commands() []string {
	var commands []string
	for _, c := range f.Calls() {
		commands = append(commands, c.Command)
	}
	return commands
}

// CommandsOn returns the commands issued to one target
func (f *Fake) CommandsOn(target executor.Target) []string {
	var commands []string
	for _, c := range f.Calls() {
		if c.Target == target {
			commands = append(commands, c.Command)
		}
	}
	return commands
}

// Reset forgets recorded calls but keeps handlers
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}
