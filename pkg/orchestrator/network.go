package orchestrator

import (
	"context"

	"github.com/cuemby/herd/pkg/events"
)

// CreateNetwork creates an overlay network spanning the swarm
func (o *Orchestrator) CreateNetwork(ctx context.Context, name string) error {
	return o.run("network-create", []string{name}, func() error {
		if name == "" {
			return precondition(InvalidArgument, "", "network name must not be empty")
		}
		if err := o.assertClusterRunning(ctx); err != nil {
			return err
		}
		if err := o.membership.CreateNetwork(ctx, name); err != nil {
			return err
		}
		o.emit(events.EventNetworkCreated, nil, "created overlay network %s", name)
		return nil
	})
}
