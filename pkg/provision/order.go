package provision

import (
	"sort"

	"github.com/cuemby/herd/pkg/types"
)

// Order is a policy ranking nodes for multi-node operations
type Order interface {
	Less(a, b types.NodeID) bool
}

// ShutdownOrder puts workers before managers, managers by descending index.
// The manager with the lowest index is assumed to be the leader and ends up
// last, so the control plane stays queryable while the other nodes leave.
// Correctness does not depend on that assumption holding.
type ShutdownOrder struct{}

// Less reports whether a must be handled before b
func (ShutdownOrder) Less(a, b types.NodeID) bool {
	if a.Role != b.Role {
		return a.Role == types.RoleWorker
	}
	switch a.Role {
	case types.RoleManager:
		return a.Index > b.Index
	default:
		return a.Index < b.Index
	}
}

// Sort orders ids in place according to order
func Sort(ids []types.NodeID, order Order) {
	sort.SliceStable(ids, func(i, j int) bool {
		return order.Less(ids[i], ids[j])
	})
}
