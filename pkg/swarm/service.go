package swarm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuemby/herd/pkg/types"
	"github.com/docker/go-connections/nat"
)

// ServiceArgs maps spec to "docker service create" arguments. Empty options
// are left out; the order is fixed.
func ServiceArgs(spec types.ServiceSpec) []string {
	args := []string{"service", "create", "--name", spec.Name}
	for _, env := range spec.Env {
		args = append(args, "--env", env)
	}
	if spec.Mode != "" {
		args = append(args, "--mode", spec.Mode)
	}
	for _, mount := range spec.Mounts {
		args = append(args, "--mount", mount)
	}
	if spec.Network != "" {
		args = append(args, "--network", spec.Network)
	}
	if spec.Publish != "" {
		args = append(args, "--publish", spec.Publish)
	}
	if spec.Replicas != "" {
		args = append(args, "--replicas", spec.Replicas)
	}
	args = append(args, spec.Image)
	if spec.Command != "" {
		args = append(args, spec.Command)
	}
	return append(args, spec.Args...)
}

// ValidateService checks the options docker would reject late
func ValidateService(spec types.ServiceSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if spec.Image == "" {
		return fmt.Errorf("service image is required")
	}
	switch spec.Mode {
	case "", "replicated", "global":
	default:
		return fmt.Errorf("invalid service mode %q", spec.Mode)
	}
	if spec.Mode == "global" && spec.Replicas != "" {
		return fmt.Errorf("replicas cannot be used with global mode")
	}
	// Long syntax (published=8080,target=80) is left to docker
	if spec.Publish != "" && !strings.Contains(spec.Publish, "=") {
		if _, err := nat.ParsePortSpec(spec.Publish); err != nil {
			return fmt.Errorf("invalid publish %q: %w", spec.Publish, err)
		}
	}
	return nil
}

// CreateService creates a service on the swarm
func (c *Client) CreateService(ctx context.Context, spec types.ServiceSpec) error {
	if err := ValidateService(spec); err != nil {
		return err
	}
	if _, _, err := c.onManager(ctx, ServiceArgs(spec)...); err != nil {
		return fmt.Errorf("failed to create service %s: %w", spec.Name, err)
	}
	return nil
}

// RemoveService removes a service
func (c *Client) RemoveService(ctx context.Context, name string) error {
	if _, _, err := c.onManager(ctx, "service", "rm", name); err != nil {
		return fmt.Errorf("failed to remove service %s: %w", name, err)
	}
	return nil
}

// ServiceTable returns the "docker service ls" listing
func (c *Client) ServiceTable(ctx context.Context) (string, error) {
	out, _, err := c.onManager(ctx, "service", "ls")
	if err != nil {
		return "", fmt.Errorf("failed to list services: %w", err)
	}
	return out.Text(), nil
}

// ServiceNames returns the names of all services
func (c *Client) ServiceNames(ctx context.Context) ([]string, error) {
	table, err := c.ServiceTable(ctx)
	if err != nil {
		return nil, err
	}
	return parseServiceNames(table)
}

// parseServiceNames reads the NAME column of a service listing:
//
//	ID            NAME     MODE        REPLICAS  IMAGE
//	cmxx7hguy4j6  pinger   replicated  2/2       alpine:latest
func parseServiceNames(table string) ([]string, error) {
	lines := strings.Split(table, "\n")
	if len(lines) <= 1 {
		return nil, nil
	}

	var names []string
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, &ProtocolViolation{Command: "docker service ls", Value: line}
		}
		names = append(names, fields[1])
	}
	return names, nil
}

// ServiceTasks returns the "docker service ps" listing of one service
func (c *Client) ServiceTasks(ctx context.Context, name string) (string, error) {
	out, _, err := c.onManager(ctx, "service", "ps", name)
	if err != nil {
		return "", fmt.Errorf("failed to list tasks of %s: %w", name, err)
	}
	return out.Text(), nil
}
