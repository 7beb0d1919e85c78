package executor

import (
	"context"
	"fmt"
	"strings"
)

// Target is where a command runs: the local control machine or a named host
type Target struct {
	Host string
}

// Local returns the local control machine target
func Local() Target {
	return Target{}
}

// Host returns the target for a named host
func Host(name string) Target {
	return Target{Host: name}
}

// IsLocal reports whether the target is the local control machine
func (t Target) IsLocal() bool {
	return t.Host == ""
}

func (t Target) String() string {
	if t.IsLocal() {
		return "local"
	}
	return t.Host
}

// Output holds the captured output of a command. It is untrusted text.
type Output struct {
	Stdout string
	Stderr string
}

// Text returns stdout with surrounding whitespace removed
func (o Output) Text() string {
	return strings.TrimSpace(o.Stdout)
}

// Lines returns the non-empty, trimmed lines of stdout
func (o Output) Lines() []string {
	var lines []string
	for _, line := range strings.Split(o.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Executor runs shell commands. Implementations do not retry.
type Executor interface {
	Run(ctx context.Context, target Target, command string) (Output, error)
}

// ExecutionError is returned when a command exits non-zero or cannot be run
type ExecutionError struct {
	Target   Target
	Command  string
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("failed to execute command on %s: %s", e.Target, e.Command)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if tail := e.Tail(); tail != "" {
		msg = fmt.Sprintf("%s: %s", msg, tail)
	}
	return msg
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Tail returns the last meaningful line of captured output, stderr first
func (e *ExecutionError) Tail() string {
	for _, s := range []string{e.Stderr, e.Stdout} {
		if line := lastLine(s); line != "" {
			return truncate(line, 200)
		}
	}
	return ""
}

// Detail returns the full diagnostic block: command, stdout and stderr
func (e *ExecutionError) Detail() string {
	return strings.Join([]string{
		"failed to execute command:",
		e.Command,
		"stdout:",
		e.Stdout,
		"stderr:",
		e.Stderr,
	}, "\n")
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
