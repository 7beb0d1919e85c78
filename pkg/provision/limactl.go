package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuemby/herd/pkg/executor"
	"github.com/cuemby/herd/pkg/log"
	"github.com/cuemby/herd/pkg/types"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
)

// DefaultLimaTemplate boots a VM with a docker engine
const DefaultLimaTemplate = "template://docker"

// Limactl provisions Lima virtual machines with the limactl CLI
type Limactl struct {
	Template string
	Options  []string

	exec   executor.Executor
	logger zerolog.Logger
}

// NewLimactl creates a limactl provisioner
func NewLimactl(exec executor.Executor, options []string) *Limactl {
	return &Limactl{
		Template: DefaultLimaTemplate,
		Options:  options,
		exec:     exec,
		logger:   log.WithComponent("limactl"),
	}
}

// CreateHost creates and starts a VM from the template
func (l *Limactl) CreateHost(ctx context.Context, name string) error {
	l.logger.Info().Str("node", name).Msgf("create lima host %s", name)

	args := []string{"limactl", "start", "--name=" + name, "--tty=false"}
	args = append(args, l.Options...)
	args = append(args, l.Template)
	if _, err := l.run(ctx, args...); err != nil {
		return fmt.Errorf("failed to create host %s: %w", name, err)
	}
	return nil
}

// StartHost starts a stopped VM
func (l *Limactl) StartHost(ctx context.Context, name string) error {
	if _, err := l.run(ctx, "limactl", "start", "--tty=false", name); err != nil {
		return fmt.Errorf("failed to start host %s: %w", name, err)
	}
	return nil
}

// StopHost stops a VM
func (l *Limactl) StopHost(ctx context.Context, name string) error {
	if _, err := l.run(ctx, "limactl", "stop", name); err != nil {
		return fmt.Errorf("failed to stop host %s: %w", name, err)
	}
	return nil
}

// RemoveHost deletes a VM
func (l *Limactl) RemoveHost(ctx context.Context, name string) error {
	if _, err := l.run(ctx, "limactl", "delete", "--force", name); err != nil {
		return fmt.Errorf("failed to remove host %s: %w", name, err)
	}
	return nil
}

// ListHosts lists VM names, optionally filtered by status
func (l *Limactl) ListHosts(ctx context.Context, filter types.StateFilter) ([]string, error) {
	out, err := l.run(ctx, "limactl", "list", "--format", "{{.Name}} {{.Status}}")
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}

	var hosts []string
	for _, line := range out.Lines() {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if filter != types.FilterAll && (len(fields) < 2 || fields[1] != string(filter)) {
			continue
		}
		hosts = append(hosts, fields[0])
	}
	return hosts, nil
}

// HostAddress returns the first address the guest reports
func (l *Limactl) HostAddress(ctx context.Context, name string) (string, error) {
	out, err := l.run(ctx, "limactl", "shell", name, "hostname", "-I")
	if err != nil {
		return "", fmt.Errorf("failed to get address of %s: %w", name, err)
	}
	fields := strings.Fields(out.Text())
	if len(fields) == 0 {
		return "", fmt.Errorf("no address reported for %s", name)
	}
	return fields[0], nil
}

func (l *Limactl) run(ctx context.Context, args ...string) (executor.Output, error) {
	return l.exec.Run(ctx, executor.Local(), shellquote.Join(args...))
}
