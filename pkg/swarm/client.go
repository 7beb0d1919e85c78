package swarm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cuemby/herd/pkg/executor"
	"github.com/cuemby/herd/pkg/log"
	"github.com/cuemby/herd/pkg/types"
	dockerswarm "github.com/docker/docker/api/types/swarm"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
)

// Port is the swarm management port managers listen on
const Port = 2377

// ManagerLocator returns the hostname of the manager that runs control-plane
// commands
type ManagerLocator func(ctx context.Context) (string, error)

// AddressResolver returns the LAN address of a host
type AddressResolver interface {
	LANAddress(ctx context.Context, host string) (string, error)
}

// Client drives swarm mode through the docker CLI of a manager node
type Client struct {
	exec    executor.Executor
	locate  ManagerLocator
	address AddressResolver
	logger  zerolog.Logger
}

// NewClient creates a client. Every call asks locate for the manager again.
func NewClient(exec executor.Executor, locate ManagerLocator, address AddressResolver) *Client {
	return &Client{
		exec:    exec,
		locate:  locate,
		address: address,
		logger:  log.WithComponent("swarm"),
	}
}

// docker builds a privileged docker command line
func docker(args ...string) string {
	return shellquote.Join(append([]string{"sudo", "docker"}, args...)...)
}

// onManager runs a docker command on the current manager
func (c *Client) onManager(ctx context.Context, args ...string) (executor.Output, string, error) {
	manager, err := c.locate(ctx)
	if err != nil {
		return executor.Output{}, "", err
	}
	out, err := c.exec.Run(ctx, executor.Host(manager), docker(args...))
	return out, manager, err
}

// NodeStatus returns the membership state the control plane reports for host
func (c *Client) NodeStatus(ctx context.Context, host string) (types.MembershipState, error) {
	out, _, err := c.onManager(ctx, "node", "inspect", "--format", "{{json .}}", host)
	if err != nil {
		var execErr *executor.ExecutionError
		if errors.As(err, &execErr) && strings.Contains(execErr.Stderr, "No such node") {
			return "", fmt.Errorf("%s: %w", host, ErrUnknownNode)
		}
		return "", fmt.Errorf("failed to inspect node %s: %w", host, err)
	}

	command := "docker node inspect " + host
	var node dockerswarm.Node
	if err := json.Unmarshal([]byte(out.Text()), &node); err != nil {
		return "", &ProtocolViolation{Command: command, Value: out.Text()}
	}

	switch node.Status.State {
	case dockerswarm.NodeStateReady:
		return types.MembershipReady, nil
	case dockerswarm.NodeStateDown:
		return types.MembershipDown, nil
	default:
		return "", &ProtocolViolation{Command: command, Value: string(node.Status.State)}
	}
}

// Init creates a new swarm with manager as its first member
func (c *Client) Init(ctx context.Context, manager, addr string) error {
	c.logger.Info().Str("node", manager).Str("addr", addr).Msg("Initializing swarm")

	command := docker("swarm", "init", "--advertise-addr", fmt.Sprintf("%s:%d", addr, Port))
	if _, err := c.exec.Run(ctx, executor.Host(manager), command); err != nil {
		return fmt.Errorf("failed to initialize swarm on %s: %w", manager, err)
	}
	return nil
}

// MintJoinToken asks the current manager for a join token for role
func (c *Client) MintJoinToken(ctx context.Context, role types.Role) (types.JoinToken, error) {
	out, manager, err := c.onManager(ctx, "swarm", "join-token", "--quiet", string(role))
	if err != nil {
		return types.JoinToken{}, fmt.Errorf("failed to get %s join token: %w", role, err)
	}

	token := out.Text()
	if token == "" {
		return types.JoinToken{}, &ProtocolViolation{Command: "docker swarm join-token " + string(role)}
	}

	addr, err := c.address.LANAddress(ctx, manager)
	if err != nil {
		return types.JoinToken{}, err
	}

	return types.JoinToken{Role: role, Token: token, ManagerAddr: addr}, nil
}

// Join adds host to the swarm with token
func (c *Client) Join(ctx context.Context, host string, token types.JoinToken) error {
	c.logger.Info().Str("node", host).Str("role", string(token.Role)).Msgf("add node %s to swarm", host)

	command := docker("swarm", "join", "--token", token.Token, fmt.Sprintf("%s:%d", token.ManagerAddr, Port))
	if _, err := c.exec.Run(ctx, executor.Host(host), command); err != nil {
		return fmt.Errorf("failed to join %s to swarm: %w", host, err)
	}
	return nil
}

// Leave makes the node leave the swarm. Managers are forced out.
func (c *Client) Leave(ctx context.Context, id types.NodeID) error {
	args := []string{"swarm", "leave"}
	if id.IsManager() {
		args = append(args, "--force")
	}
	if _, err := c.exec.Run(ctx, executor.Host(id.String()), docker(args...)); err != nil {
		return fmt.Errorf("failed to leave swarm on %s: %w", id, err)
	}
	return nil
}

// Promote turns a worker into a manager
func (c *Client) Promote(ctx context.Context, host string) error {
	if _, _, err := c.onManager(ctx, "node", "promote", host); err != nil {
		return fmt.Errorf("failed to promote %s: %w", host, err)
	}
	return nil
}

// Demote turns a manager into a worker
func (c *Client) Demote(ctx context.Context, host string) error {
	if _, _, err := c.onManager(ctx, "node", "demote", host); err != nil {
		return fmt.Errorf("failed to demote %s: %w", host, err)
	}
	return nil
}

// RemoveNode removes a down node from the node list
func (c *Client) RemoveNode(ctx context.Context, host string) error {
	if _, _, err := c.onManager(ctx, "node", "rm", host); err != nil {
		return fmt.Errorf("failed to remove node %s: %w", host, err)
	}
	return nil
}

// NodeTable returns the "docker node ls" listing
func (c *Client) NodeTable(ctx context.Context) (string, error) {
	out, _, err := c.onManager(ctx, "node", "ls")
	if err != nil {
		return "", fmt.Errorf("failed to list nodes: %w", err)
	}
	return out.Text(), nil
}

// NetworkTable returns the "docker network ls" listing
func (c *Client) NetworkTable(ctx context.Context) (string, error) {
	out, _, err := c.onManager(ctx, "network", "ls")
	if err != nil {
		return "", fmt.Errorf("failed to list networks: %w", err)
	}
	return out.Text(), nil
}

// CreateNetwork creates an overlay network spanning the swarm
func (c *Client) CreateNetwork(ctx context.Context, name string) error {
	if _, _, err := c.onManager(ctx, "network", "create", "--driver", "overlay", name); err != nil {
		return fmt.Errorf("failed to create network %s: %w", name, err)
	}
	return nil
}
