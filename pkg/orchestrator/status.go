package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuemby/herd/pkg/types"
)

// Report is the control plane's view of the swarm
type Report struct {
	Nodes    string
	Networks string
}

func (r Report) String() string {
	return fmt.Sprintf("--- nodes ---\n%s\n\n--- networks ---\n%s\n", r.Nodes, r.Networks)
}

// Status returns the node and network tables of the swarm
func (o *Orchestrator) Status(ctx context.Context) (Report, error) {
	var report Report
	err := o.run("status", nil, func() error {
		if err := o.assertClusterRunning(ctx); err != nil {
			return err
		}

		var err error
		if report.Nodes, err = o.membership.NodeTable(ctx); err != nil {
			return err
		}
		report.Networks, err = o.membership.NetworkTable(ctx)
		return err
	})
	return report, err
}

// Nodes lists the cluster nodes with their machine state and, when a manager
// is running, their membership state. It works on a stopped cluster too.
func (o *Orchestrator) Nodes(ctx context.Context) ([]types.NodeInfo, error) {
	var nodes []types.NodeInfo
	err := o.run("ls", nil, func() error {
		var err error
		nodes, err = o.inventory.Snapshot(ctx)
		if err != nil {
			return err
		}

		managers, err := o.inventory.Managers(ctx, types.FilterRunning)
		if err != nil || len(managers) == 0 {
			return err
		}

		for i := range nodes {
			state, err := o.membership.NodeStatus(ctx, nodes[i].Hostname())
			if err != nil {
				// Hosts that never joined or were removed from the node list
				o.logger.Debug().Err(err).Str("node", nodes[i].Hostname()).Msg("No membership state")
				continue
			}
			nodes[i].Membership = state
		}
		return nil
	})
	return nodes, err
}

// ServiceTasks is the task listing of one service
type ServiceTasks struct {
	Name  string
	Tasks string
}

// ServiceReport is the output of ServiceStatus
type ServiceReport struct {
	// Services is the service listing, set when no names were given
	Services string
	Tasks    []ServiceTasks
}

func (r ServiceReport) String() string {
	var b strings.Builder
	if r.Services != "" {
		fmt.Fprintf(&b, "--- services ---\n%s\n\n", r.Services)
	}
	for _, t := range r.Tasks {
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", t.Name, t.Tasks)
	}
	return b.String()
}
