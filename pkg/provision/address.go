package provision

import (
	"context"
	"fmt"
	"net"

	"github.com/cuemby/herd/pkg/executor"
)

// DefaultInterface is the guest interface carrying the cluster LAN
const DefaultInterface = "eth0"

// Addresser resolves the LAN address nodes use to reach each other. This is
// not always the address the provisioner reports: cloud hosts have a public
// address for the control machine and a private one for the swarm.
type Addresser struct {
	Driver    string
	Interface string

	provisioner Provisioner
	exec        executor.Executor
}

// NewAddresser creates an addresser for driver
func NewAddresser(driver string, p Provisioner, exec executor.Executor) *Addresser {
	return &Addresser{
		Driver:      driver,
		Interface:   DefaultInterface,
		provisioner: p,
		exec:        exec,
	}
}

// LANAddress returns the LAN address of host
func (a *Addresser) LANAddress(ctx context.Context, host string) (string, error) {
	var addr string
	switch a.Driver {
	case "virtualbox", DriverLima:
		var err error
		addr, err = a.provisioner.HostAddress(ctx, host)
		if err != nil {
			return "", err
		}
	default:
		command := fmt.Sprintf("ip -4 -o addr show dev %s | awk '{print $4}' | cut -d / -f 1 | head -n 1", a.Interface)
		out, err := a.exec.Run(ctx, executor.Host(host), command)
		if err != nil {
			return "", fmt.Errorf("failed to get LAN address of %s: %w", host, err)
		}
		addr = out.Text()
	}

	if net.ParseIP(addr) == nil {
		return "", fmt.Errorf("no valid LAN address for %s: %q", host, addr)
	}
	return addr, nil
}
