package provision

import (
	"context"

	"github.com/cuemby/herd/pkg/executor"
	"github.com/cuemby/herd/pkg/types"
)

// Provisioner is the boundary to the external host-provisioning tool.
// Host creation leaves the host running.
type Provisioner interface {
	CreateHost(ctx context.Context, name string) error
	StartHost(ctx context.Context, name string) error
	StopHost(ctx context.Context, name string) error
	RemoveHost(ctx context.Context, name string) error

	// ListHosts returns every known hostname, including hosts outside the
	// cluster naming scheme, in provisioner order
	ListHosts(ctx context.Context, filter types.StateFilter) ([]string, error)

	HostAddress(ctx context.Context, name string) (string, error)
}

// DriverLima selects the limactl provisioner; every other driver name is
// passed to docker-machine
const DriverLima = "lima"

// New returns the provisioner for driver
func New(driver string, exec executor.Executor, options []string) Provisioner {
	if driver == DriverLima {
		return NewLimactl(exec, options)
	}
	return NewDockerMachine(driver, exec, options)
}

// RemoteShell returns the program used to reach hosts of driver
func RemoteShell(driver string) []string {
	if driver == DriverLima {
		return []string{"limactl", "shell"}
	}
	return executor.DefaultRemoteShell
}
