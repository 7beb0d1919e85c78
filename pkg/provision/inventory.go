package provision

import (
	"context"
	"slices"

	"github.com/cuemby/herd/pkg/metrics"
	"github.com/cuemby/herd/pkg/naming"
	"github.com/cuemby/herd/pkg/types"
)

// Inventory is the view of the provisioner restricted to one naming scheme.
// Nothing is cached: every call queries the provisioner again.
type Inventory struct {
	provisioner Provisioner
	scheme      naming.Scheme
	order       Order
}

// NewInventory creates an inventory ordered by ShutdownOrder
func NewInventory(p Provisioner, scheme naming.Scheme) *Inventory {
	return &Inventory{
		provisioner: p,
		scheme:      scheme,
		order:       ShutdownOrder{},
	}
}

// WithOrder replaces the ordering policy
func (inv *Inventory) WithOrder(order Order) *Inventory {
	inv.order = order
	return inv
}

// Provisioner returns the underlying provisioner
func (inv *Inventory) Provisioner() Provisioner {
	return inv.provisioner
}

// Scheme returns the naming scheme
func (inv *Inventory) Scheme() naming.Scheme {
	return inv.scheme
}

// List returns the cluster nodes in the given machine state, ordered by the
// inventory policy
func (inv *Inventory) List(ctx context.Context, filter types.StateFilter) ([]types.NodeID, error) {
	hosts, err := inv.provisioner.ListHosts(ctx, filter)
	if err != nil {
		return nil, err
	}
	ids := inv.scheme.Filter(hosts)
	Sort(ids, inv.order)
	return ids, nil
}

// Hostnames is List serialized to hostnames
func (inv *Inventory) Hostnames(ctx context.Context, filter types.StateFilter) ([]string, error) {
	ids, err := inv.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return hostnames(ids), nil
}

// Managers returns the manager nodes in policy order
func (inv *Inventory) Managers(ctx context.Context, filter types.StateFilter) ([]types.NodeID, error) {
	return inv.withRole(ctx, filter, types.RoleManager)
}

// Workers returns the worker nodes in policy order
func (inv *Inventory) Workers(ctx context.Context, filter types.StateFilter) ([]types.NodeID, error) {
	return inv.withRole(ctx, filter, types.RoleWorker)
}

func (inv *Inventory) withRole(ctx context.Context, filter types.StateFilter, role types.Role) ([]types.NodeID, error) {
	ids, err := inv.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	var selected []types.NodeID
	for _, id := range ids {
		if id.Role == role {
			selected = append(selected, id)
		}
	}
	return selected, nil
}

// Exists reports whether any cluster host is known
func (inv *Inventory) Exists(ctx context.Context) (bool, error) {
	ids, err := inv.List(ctx, types.FilterAll)
	return len(ids) > 0, err
}

// Running reports whether any cluster host is running
func (inv *Inventory) Running(ctx context.Context) (bool, error) {
	ids, err := inv.List(ctx, types.FilterRunning)
	return len(ids) > 0, err
}

// MachineState derives the machine state of host from filtered listings
func (inv *Inventory) MachineState(ctx context.Context, host string) (types.MachineState, error) {
	all, err := inv.provisioner.ListHosts(ctx, types.FilterAll)
	if err != nil {
		return "", err
	}
	if !slices.Contains(all, host) {
		return types.MachineAbsent, nil
	}

	running, err := inv.provisioner.ListHosts(ctx, types.FilterRunning)
	if err != nil {
		return "", err
	}
	if slices.Contains(running, host) {
		return types.MachineRunning, nil
	}

	stopped, err := inv.provisioner.ListHosts(ctx, types.FilterStopped)
	if err != nil {
		return "", err
	}
	if slices.Contains(stopped, host) {
		return types.MachineStopped, nil
	}
	return types.MachineOther, nil
}

// Snapshot returns every cluster node with its machine state, in policy
// order, and refreshes the herd_nodes gauge
func (inv *Inventory) Snapshot(ctx context.Context) ([]types.NodeInfo, error) {
	all, err := inv.List(ctx, types.FilterAll)
	if err != nil {
		return nil, err
	}
	running, err := inv.provisioner.ListHosts(ctx, types.FilterRunning)
	if err != nil {
		return nil, err
	}
	stopped, err := inv.provisioner.ListHosts(ctx, types.FilterStopped)
	if err != nil {
		return nil, err
	}

	metrics.NodesTotal.Reset()
	nodes := make([]types.NodeInfo, 0, len(all))
	for _, id := range all {
		state := types.MachineOther
		switch {
		case slices.Contains(running, id.String()):
			state = types.MachineRunning
		case slices.Contains(stopped, id.String()):
			state = types.MachineStopped
		}
		metrics.NodesTotal.WithLabelValues(string(id.Role), string(state)).Inc()
		nodes = append(nodes, types.NodeInfo{
			ID:         id,
			Machine:    state,
			Membership: types.MembershipUnknown,
		})
	}
	return nodes, nil
}

func hostnames(ids []types.NodeID) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, id.String())
	}
	return names
}
