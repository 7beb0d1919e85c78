package orchestrator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cuemby/herd/pkg/events"
	"github.com/cuemby/herd/pkg/provision"
	"github.com/cuemby/herd/pkg/types"
)

// Create provisions a new swarm with managers managers and workers workers.
// The first manager initializes the swarm; every other node joins it. A
// failure part way leaves the nodes created so far in place.
func (o *Orchestrator) Create(ctx context.Context, managers, workers int) error {
	args := []string{strconv.Itoa(managers), strconv.Itoa(workers)}
	return o.run("create", args, func() error {
		if managers < 1 {
			return precondition(InvalidArgument, "", "a swarm needs at least one manager, got %d", managers)
		}
		if workers < 0 {
			return precondition(InvalidArgument, "", "number of workers must not be negative, got %d", workers)
		}
		if err := o.assertNoCluster(ctx); err != nil {
			return err
		}

		id, err := o.createNode(ctx, types.RoleManager)
		if err != nil {
			return err
		}
		if err := o.initSwarm(ctx, id); err != nil {
			return err
		}

		if err := o.addNodes(ctx, types.RoleManager, managers-1); err != nil {
			return err
		}
		return o.addNodes(ctx, types.RoleWorker, workers)
	})
}

// Add provisions count new nodes of role and joins them to the swarm
func (o *Orchestrator) Add(ctx context.Context, role types.Role, count int) error {
	return o.run("add", []string{string(role), strconv.Itoa(count)}, func() error {
		if !role.Valid() {
			return precondition(InvalidArgument, "", "invalid role %q", role)
		}
		if count < 0 {
			return precondition(InvalidArgument, "", "number of nodes must not be negative, got %d", count)
		}
		if err := o.assertClusterExists(ctx); err != nil {
			return err
		}
		return o.addNodes(ctx, role, count)
	})
}

func (o *Orchestrator) addNodes(ctx context.Context, role types.Role, count int) error {
	for i := 0; i < count; i++ {
		id, err := o.createNode(ctx, role)
		if err != nil {
			return err
		}
		if err := o.join(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// createNode provisions the host for the next free name of role. The host
// list is read again for every node.
func (o *Orchestrator) createNode(ctx context.Context, role types.Role) (types.NodeID, error) {
	hosts, err := o.provisioner().ListHosts(ctx, types.FilterAll)
	if err != nil {
		return types.NodeID{}, err
	}
	id := o.scheme().Next(role, hosts)

	if err := o.provisioner().CreateHost(ctx, id.String()); err != nil {
		return types.NodeID{}, err
	}
	o.emit(events.EventNodeCreated, &id, "created host %s", id)
	return id, nil
}

func (o *Orchestrator) initSwarm(ctx context.Context, id types.NodeID) error {
	addr, err := o.addresser.LANAddress(ctx, id.String())
	if err != nil {
		return err
	}
	if err := o.membership.Init(ctx, id.String(), addr); err != nil {
		return err
	}
	o.emit(events.EventClusterInitialized, &id, "initialized swarm on %s (%s)", id, addr)

	if o.firewall != nil {
		if err := o.firewall.Configure(ctx); err != nil {
			return fmt.Errorf("failed to configure firewall: %w", err)
		}
	}
	return nil
}

// join mints a fresh token for the node's own role and joins it
func (o *Orchestrator) join(ctx context.Context, id types.NodeID) error {
	token, err := o.membership.MintJoinToken(ctx, id.Role)
	if err != nil {
		return err
	}
	if err := o.membership.Join(ctx, id.String(), token); err != nil {
		return err
	}
	o.emit(events.EventNodeJoined, &id, "%s %s joined the swarm", id.Role, id)
	return nil
}

// Stop takes nodes out of the swarm and stops their hosts. Without names
// every running node is stopped. Nodes are handled workers first, then
// managers by descending index, so a manager stays available to clean up
// after the others. The last running manager is stopped without cleanup
// since no manager is left to do it, and only when no other node would be
// left running.
func (o *Orchestrator) Stop(ctx context.Context, names []string) error {
	return o.run("stop", names, func() error {
		if err := o.assertClusterExists(ctx); err != nil {
			return err
		}
		ids, err := o.resolve(ctx, names, types.FilterRunning)
		if err != nil {
			return err
		}
		provision.Sort(ids, provision.ShutdownOrder{})
		if err := o.assertManagerKept(ctx, ids); err != nil {
			return err
		}

		for _, id := range ids {
			if err := o.stopNode(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (o *Orchestrator) stopNode(ctx context.Context, id types.NodeID) error {
	if err := o.assertReady(ctx, id); err != nil {
		return err
	}

	lastManager, err := o.isLastManager(ctx, id)
	if err != nil {
		return err
	}

	if err := o.membership.Leave(ctx, id); err != nil {
		return err
	}
	o.emit(events.EventNodeLeft, &id, "%s left the swarm", id)

	if err := o.provisioner().StopHost(ctx, id.String()); err != nil {
		return err
	}
	o.emit(events.EventNodeStopped, &id, "stopped host %s", id)

	if lastManager {
		o.logger.Info().Str("node", id.String()).Msg("Last running manager stopped, skipping node cleanup")
		return nil
	}

	if err := o.waitDown(ctx, id); err != nil {
		return err
	}
	o.emit(events.EventNodeDown, &id, "%s is down", id)

	if id.IsManager() {
		if err := o.membership.Demote(ctx, id.String()); err != nil {
			return err
		}
	}
	if err := o.membership.RemoveNode(ctx, id.String()); err != nil {
		return err
	}
	o.emit(events.EventNodeRemoved, &id, "removed %s from the node list", id)
	return nil
}

// assertManagerKept refuses a selection that stops every running manager
// while leaving other nodes running
func (o *Orchestrator) assertManagerKept(ctx context.Context, ids []types.NodeID) error {
	running, err := o.inventory.List(ctx, types.FilterRunning)
	if err != nil {
		return err
	}

	selected := make(map[types.NodeID]bool, len(ids))
	for _, id := range ids {
		selected[id] = true
	}

	var lastManager *types.NodeID
	left := 0
	for i, id := range running {
		switch {
		case !selected[id]:
			left++
			if id.IsManager() {
				return nil
			}
		case id.IsManager():
			lastManager = &running[i]
		}
	}
	if lastManager == nil || left == 0 {
		return nil
	}
	return precondition(ManagerStillNeeded, lastManager.String(),
		"stopping %s would leave %d running nodes without a manager", lastManager, left)
}

// isLastManager reports whether id is the only running manager. Stopping it
// is refused while any other node still runs, since nothing could clean up
// after it.
func (o *Orchestrator) isLastManager(ctx context.Context, id types.NodeID) (bool, error) {
	if !id.IsManager() {
		return false, nil
	}
	managers, err := o.inventory.Managers(ctx, types.FilterRunning)
	if err != nil {
		return false, err
	}
	if len(managers) != 1 {
		return false, nil
	}

	running, err := o.inventory.List(ctx, types.FilterRunning)
	if err != nil {
		return false, err
	}
	if len(running) > 1 {
		return false, precondition(ManagerStillNeeded, id.String(),
			"node %s is the last running manager; stop the other %d running nodes first", id, len(running)-1)
	}
	return true, nil
}

// Start boots stopped nodes and joins them to the swarm again. Without
// names every stopped node is started.
func (o *Orchestrator) Start(ctx context.Context, names []string) error {
	return o.run("start", names, func() error {
		if err := o.assertClusterExists(ctx); err != nil {
			return err
		}
		ids, err := o.resolve(ctx, names, types.FilterStopped)
		if err != nil {
			return err
		}

		for _, id := range ids {
			if err := o.assertStartable(ctx, id); err != nil {
				return err
			}
			if err := o.provisioner().StartHost(ctx, id.String()); err != nil {
				return err
			}
			o.emit(events.EventNodeStarted, &id, "started host %s", id)

			if err := o.join(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// Remove deletes the hosts of stopped nodes. Without names every stopped
// node is removed. Nothing is deleted unless every node is stopped.
func (o *Orchestrator) Remove(ctx context.Context, names []string) error {
	return o.run("remove", names, func() error {
		if err := o.assertClusterExists(ctx); err != nil {
			return err
		}
		ids, err := o.resolve(ctx, names, types.FilterStopped)
		if err != nil {
			return err
		}

		for _, id := range ids {
			state, err := o.inventory.MachineState(ctx, id.String())
			if err != nil {
				return err
			}
			if state != types.MachineStopped {
				return precondition(NodeMustBeStoppedFirst, id.String(), "node %s must be stopped first", id)
			}
		}

		for _, id := range ids {
			if err := o.provisioner().RemoveHost(ctx, id.String()); err != nil {
				return err
			}
			o.emit(events.EventNodeRemoved, &id, "removed host %s", id)
		}
		return nil
	})
}
