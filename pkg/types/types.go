package types

import (
	"fmt"
	"strconv"
)

// Role defines the role of a node in the swarm
type Role string

const (
	RoleManager Role = "manager"
	RoleWorker  Role = "worker"
)

// Roles lists every role, in creation order
var Roles = []Role{RoleManager, RoleWorker}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleManager, RoleWorker:
		return true
	}
	return false
}

// ParseRole converts a user supplied role name
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("role must be 'manager' or 'worker', got %q", s)
	}
	return r, nil
}

// NodeID is the identity of a node. The hostname is its serialization;
// the role is never stored anywhere else.
type NodeID struct {
	Prefix string
	Role   Role
	Index  int
}

// Basename returns the hostname without the numeric index
func (id NodeID) Basename() string {
	if id.Prefix == "" {
		return string(id.Role)
	}
	return id.Prefix + "-" + string(id.Role)
}

// String returns the hostname, e.g. "prefix-manager3"
func (id NodeID) String() string {
	return id.Basename() + strconv.Itoa(id.Index)
}

// IsManager reports whether the node carries the manager role
func (id NodeID) IsManager() bool {
	return id.Role == RoleManager
}

// MachineState is the state of a host at the provisioning layer
type MachineState string

const (
	MachineAbsent  MachineState = "absent"
	MachineRunning MachineState = "running"
	MachineStopped MachineState = "stopped"
	// MachineOther covers transient provisioner states (Starting, Error, ...)
	MachineOther MachineState = "other"
)

// StateFilter restricts host listings to one machine state.
// The zero value lists every host.
type StateFilter string

const (
	FilterAll     StateFilter = ""
	FilterRunning StateFilter = "Running"
	FilterStopped StateFilter = "Stopped"
)

// MembershipState is the state of a node as reported by the control plane
type MembershipState string

const (
	MembershipReady MembershipState = "ready"
	MembershipDown  MembershipState = "down"
	// MembershipUnknown is reported when no manager is running to ask
	MembershipUnknown MembershipState = "unknown"
)

// JoinToken is an ephemeral credential for joining the swarm.
// It is minted per join and never persisted.
type JoinToken struct {
	Role        Role
	Token       string
	ManagerAddr string
}

// NodeInfo combines both layers of state for one node
type NodeInfo struct {
	ID         NodeID
	Machine    MachineState
	Membership MembershipState
}

// Hostname returns the node hostname
func (n NodeInfo) Hostname() string {
	return n.ID.String()
}

// ServiceSpec describes a service to create on the swarm
type ServiceSpec struct {
	Name     string
	Image    string
	Command  string
	Args     []string
	Env      []string
	Mode     string
	Mounts   []string
	Network  string
	Publish  string
	Replicas string
}
