package executor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/cuemby/herd/pkg/log"
	"github.com/cuemby/herd/pkg/metrics"
	"github.com/rs/zerolog"
)

// DefaultRemoteShell reaches hosts through the provisioning tool's ssh wrapper
var DefaultRemoteShell = []string{"docker-machine", "ssh"}

// Shell runs local commands through sh and host commands through a remote
// shell program such as "docker-machine ssh <host> <command>".
type Shell struct {
	// RemoteShell is the program and leading arguments used for host targets.
	// The host name and the command are appended.
	RemoteShell []string

	// Env is appended to the environment of every spawned process
	Env []string

	logger zerolog.Logger
}

// NewShell creates a shell executor using the docker-machine ssh wrapper
func NewShell() *Shell {
	return &Shell{
		RemoteShell: DefaultRemoteShell,
		logger:      log.WithComponent("executor"),
	}
}

// WithRemoteShell sets the program used to reach hosts
func (s *Shell) WithRemoteShell(argv ...string) *Shell {
	s.RemoteShell = argv
	return s
}

// Run executes command on target and captures its output
func (s *Shell) Run(ctx context.Context, target Target, command string) (Output, error) {
	cmd := s.command(ctx, target, command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.logger.Debug().
		Str("target", target.String()).
		Str("cmd", command).
		Msg("Executing")

	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		metrics.CommandsTotal.WithLabelValues(targetLabel(target), "failure").Inc()

		execErr := &ExecutionError{
			Target:   target,
			Command:  command,
			Stdout:   out.Stdout,
			Stderr:   out.Stderr,
			ExitCode: -1,
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			execErr.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			execErr.Err = ctxErr
		}

		s.logger.Debug().
			Str("target", target.String()).
			Str("cmd", command).
			Str("stderr", out.Stderr).
			Int("exit_code", execErr.ExitCode).
			Msg("Command failed")
		return out, execErr
	}

	metrics.CommandsTotal.WithLabelValues(targetLabel(target), "success").Inc()
	s.logger.Debug().
		Str("target", target.String()).
		Str("cmd", command).
		Str("stdout", out.Stdout).
		Msg("Command completed")
	return out, nil
}

func (s *Shell) command(ctx context.Context, target Target, command string) *exec.Cmd {
	var cmd *exec.Cmd
	if target.IsLocal() {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	} else {
		remote := s.RemoteShell
		if len(remote) == 0 {
			remote = DefaultRemoteShell
		}
		args := append(append([]string{}, remote[1:]...), target.Host, command)
		cmd = exec.CommandContext(ctx, remote[0], args...)
	}
	if len(s.Env) > 0 {
		cmd.Env = append(cmd.Environ(), s.Env...)
	}
	// Grandchildren of sh may keep the pipes open after a cancel
	cmd.WaitDelay = time.Second
	return cmd
}

func targetLabel(t Target) string {
	if t.IsLocal() {
		return "local"
	}
	return "host"
}
