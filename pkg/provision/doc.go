/*
Package provision is the boundary to the host provisioning tool.

Provisioner creates, starts, stops, removes and lists hosts. DockerMachine
drives docker-machine (virtualbox, amazonec2 and any other driver);
Limactl drives limactl for local Lima VMs. Both run their CLI through an
executor on the control machine.

Inventory narrows the provisioner to the hosts of one naming scheme and
orders them with ShutdownOrder: workers first by ascending index, then
managers by descending index. Every multi-node operation uses this order;
the lowest-indexed manager, assumed to be the leader, comes last.

	inv := provision.NewInventory(provision.New("virtualbox", shell, nil), naming.NewScheme("lab"))
	running, err := inv.List(ctx, types.FilterRunning)

Addresser finds the LAN address the swarm advertises, and SecurityGroup opens
the swarm ports in the EC2 security group docker-machine creates.
*/
package provision
