package provision

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuemby/herd/pkg/executor"
	"github.com/cuemby/herd/pkg/log"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
)

// DefaultSecurityGroup is the group docker-machine's amazonec2 driver creates
const DefaultSecurityGroup = "docker-machine"

// SwarmPort is a protocol/port pair the swarm needs open between nodes
type SwarmPort struct {
	Protocol string
	Port     int
}

// SwarmPorts lists the ports swarm mode uses between nodes
var SwarmPorts = []SwarmPort{
	// Cluster management (not needed on workers)
	{Protocol: "tcp", Port: 2377},
	// Communication among nodes
	{Protocol: "tcp", Port: 7946},
	{Protocol: "udp", Port: 7946},
	// Overlay network traffic
	{Protocol: "udp", Port: 4789},
}

// SecurityGroup opens the swarm ports inside an EC2 security group using the
// aws CLI on the control machine
type SecurityGroup struct {
	Name string

	exec   executor.Executor
	logger zerolog.Logger
}

// NewSecurityGroup creates a configurer for the docker-machine group
func NewSecurityGroup(exec executor.Executor) *SecurityGroup {
	return &SecurityGroup{
		Name:   DefaultSecurityGroup,
		exec:   exec,
		logger: log.WithComponent("aws"),
	}
}

type groupID struct {
	ID string `json:"id"`
}

type ipPermission struct {
	IPProtocol       string `json:"IpProtocol"`
	FromPort         int    `json:"FromPort"`
	ToPort           int    `json:"ToPort"`
	UserIDGroupPairs []struct {
		GroupID string `json:"GroupId"`
	} `json:"UserIdGroupPairs"`
}

// Configure allows inbound swarm traffic from members of the same group.
// Rules already present are left alone.
func (g *SecurityGroup) Configure(ctx context.Context) error {
	id, err := g.groupID(ctx)
	if err != nil {
		return err
	}

	permissions, err := g.permissions(ctx)
	if err != nil {
		return err
	}

	for _, port := range SwarmPorts {
		if configured(permissions, port) {
			continue
		}
		g.logger.Info().Str("group", id).Str("protocol", port.Protocol).Int("port", port.Port).
			Msg("Authorizing security group ingress")

		command := shellquote.Join("aws", "ec2", "authorize-security-group-ingress",
			"--group-id", id,
			"--protocol", port.Protocol,
			"--port", fmt.Sprint(port.Port),
			"--source-group", id)
		if _, err := g.exec.Run(ctx, executor.Local(), command); err != nil {
			return fmt.Errorf("failed to authorize %s/%d: %w", port.Protocol, port.Port, err)
		}
	}
	return nil
}

func (g *SecurityGroup) groupID(ctx context.Context) (string, error) {
	query := fmt.Sprintf("SecurityGroups[?GroupName=='%s'].{id:GroupId}", g.Name)
	out, err := g.exec.Run(ctx, executor.Local(),
		shellquote.Join("aws", "ec2", "describe-security-groups", "--query", query))
	if err != nil {
		return "", fmt.Errorf("failed to describe security group %s: %w", g.Name, err)
	}

	var ids []groupID
	if err := json.Unmarshal([]byte(out.Stdout), &ids); err != nil {
		return "", fmt.Errorf("failed to parse security group listing: %w", err)
	}
	if len(ids) == 0 || ids[0].ID == "" {
		return "", fmt.Errorf("security group %s not found", g.Name)
	}
	return ids[0].ID, nil
}

func (g *SecurityGroup) permissions(ctx context.Context) ([]ipPermission, error) {
	query := fmt.Sprintf("SecurityGroups[?GroupName=='%s'].[IpPermissions]", g.Name)
	out, err := g.exec.Run(ctx, executor.Local(),
		shellquote.Join("aws", "ec2", "describe-security-groups", "--query", query))
	if err != nil {
		return nil, fmt.Errorf("failed to describe security group permissions: %w", err)
	}

	var nested [][][]ipPermission
	if err := json.Unmarshal([]byte(out.Stdout), &nested); err != nil {
		return nil, fmt.Errorf("failed to parse security group permissions: %w", err)
	}
	if len(nested) == 0 || len(nested[0]) == 0 {
		return nil, nil
	}
	return nested[0][0], nil
}

func configured(permissions []ipPermission, port SwarmPort) bool {
	for _, p := range permissions {
		if p.IPProtocol == port.Protocol && p.FromPort == port.Port && p.ToPort == port.Port &&
			len(p.UserIDGroupPairs) > 0 {
			return true
		}
	}
	return false
}
