package orchestrator

import (
	"context"

	"github.com/cuemby/herd/pkg/events"
	"github.com/cuemby/herd/pkg/swarm"
	"github.com/cuemby/herd/pkg/types"
)

// CreateService creates a service on the swarm
func (o *Orchestrator) CreateService(ctx context.Context, spec types.ServiceSpec) error {
	return o.run("service-create", swarm.ServiceArgs(spec)[2:], func() error {
		if err := swarm.ValidateService(spec); err != nil {
			return precondition(InvalidArgument, "", "%s", err)
		}
		if err := o.assertClusterRunning(ctx); err != nil {
			return err
		}
		if err := o.membership.CreateService(ctx, spec); err != nil {
			return err
		}
		o.emit(events.EventServiceCreated, nil, "created service %s", spec.Name)
		return nil
	})
}

// RemoveServices removes services, stopping at the first failure
func (o *Orchestrator) RemoveServices(ctx context.Context, names []string) error {
	return o.run("service-remove", names, func() error {
		if len(names) == 0 {
			return precondition(InvalidArgument, "", "no service names given")
		}
		if err := o.assertClusterRunning(ctx); err != nil {
			return err
		}
		for _, name := range names {
			if err := o.membership.RemoveService(ctx, name); err != nil {
				return err
			}
			o.emit(events.EventServiceRemoved, nil, "removed service %s", name)
		}
		return nil
	})
}

// ServiceStatus returns the task listings of services. Without names the
// service listing and the tasks of every service are returned.
func (o *Orchestrator) ServiceStatus(ctx context.Context, names []string) (ServiceReport, error) {
	var report ServiceReport
	err := o.run("service-status", names, func() error {
		if err := o.assertClusterRunning(ctx); err != nil {
			return err
		}

		if len(names) == 0 {
			var err error
			if report.Services, err = o.membership.ServiceTable(ctx); err != nil {
				return err
			}
			if names, err = o.membership.ServiceNames(ctx); err != nil {
				return err
			}
		}

		for _, name := range names {
			tasks, err := o.membership.ServiceTasks(ctx, name)
			if err != nil {
				return err
			}
			report.Tasks = append(report.Tasks, ServiceTasks{Name: name, Tasks: tasks})
		}
		return nil
	})
	return report, err
}
