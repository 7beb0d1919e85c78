package provision

import (
	"context"
	"fmt"

	"github.com/cuemby/herd/pkg/executor"
	"github.com/cuemby/herd/pkg/log"
	"github.com/cuemby/herd/pkg/types"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
)

// DockerMachine provisions hosts with the docker-machine CLI on the local
// control machine
type DockerMachine struct {
	Driver  string
	Options []string

	exec   executor.Executor
	logger zerolog.Logger
}

// NewDockerMachine creates a docker-machine provisioner. options are passed
// verbatim to "docker-machine create".
func NewDockerMachine(driver string, exec executor.Executor, options []string) *DockerMachine {
	return &DockerMachine{
		Driver:  driver,
		Options: options,
		exec:    exec,
		logger:  log.WithComponent("docker-machine"),
	}
}

// CreateArgs returns the arguments of "docker-machine create" for name
func (d *DockerMachine) CreateArgs(name string) []string {
	args := []string{"docker-machine", "create", "--driver", d.Driver}
	if d.Driver != "virtualbox" {
		// Assume rsyslog is installed on cloud images
		args = append(args, "--engine-opt", "log-driver=syslog")
	}
	args = append(args, d.Options...)
	return append(args, name)
}

// CreateHost creates and boots a new host
func (d *DockerMachine) CreateHost(ctx context.Context, name string) error {
	d.logger.Info().Str("node", name).Str("driver", d.Driver).
		Msgf("create %s host %s", d.Driver, name)

	out, err := d.run(ctx, d.CreateArgs(name)...)
	if err != nil {
		return fmt.Errorf("failed to create host %s: %w", name, err)
	}
	d.logger.Debug().Str("node", name).Msg(out.Text())
	return nil
}

// StartHost boots a stopped host
func (d *DockerMachine) StartHost(ctx context.Context, name string) error {
	if _, err := d.run(ctx, "docker-machine", "start", name); err != nil {
		return fmt.Errorf("failed to start host %s: %w", name, err)
	}
	return nil
}

// StopHost shuts a host down
func (d *DockerMachine) StopHost(ctx context.Context, name string) error {
	if _, err := d.run(ctx, "docker-machine", "stop", name); err != nil {
		return fmt.Errorf("failed to stop host %s: %w", name, err)
	}
	return nil
}

// RemoveHost deletes a host record and its machine
func (d *DockerMachine) RemoveHost(ctx context.Context, name string) error {
	if _, err := d.run(ctx, "docker-machine", "rm", "-f", name); err != nil {
		return fmt.Errorf("failed to remove host %s: %w", name, err)
	}
	return nil
}

// ListHosts lists host names, optionally filtered by machine state
func (d *DockerMachine) ListHosts(ctx context.Context, filter types.StateFilter) ([]string, error) {
	args := []string{"docker-machine", "ls", "--quiet"}
	if filter != types.FilterAll {
		args = append(args, "--filter", "state="+string(filter))
	}

	out, err := d.run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	return out.Lines(), nil
}

// HostAddress returns the address docker-machine reports for name
func (d *DockerMachine) HostAddress(ctx context.Context, name string) (string, error) {
	out, err := d.run(ctx, "docker-machine", "ip", name)
	if err != nil {
		return "", fmt.Errorf("failed to get address of %s: %w", name, err)
	}
	addr := out.Text()
	if addr == "" {
		return "", fmt.Errorf("no address reported for %s", name)
	}
	return addr, nil
}

func (d *DockerMachine) run(ctx context.Context, args ...string) (executor.Output, error) {
	return d.exec.Run(ctx, executor.Local(), shellquote.Join(args...))
}
