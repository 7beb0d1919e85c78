/*
Package orchestrator implements the node lifecycle of a swarm cluster.

A node moves through these states, observed by combining the machine state
reported by the provisioner with the membership state reported by the swarm:

	NEW ──create──▶ PROVISIONED ──join──▶ READY
	                                        │ leave, stop host
	                                        ▼
	REMOVED ◀──remove host── STOPPED ◀── down, demote, node rm
	                           │
	                           └──start host, join──▶ READY

# Operations

	Create(m, w)        first manager initializes the swarm, the rest join
	Add(role, n)        provision and join n more nodes
	Stop(nodes)         leave, stop host, wait for down, demote, node rm
	Start(nodes)        start host, join with a fresh token
	Remove(nodes)       delete stopped hosts
	Status()            node and network tables
	Nodes()             machine and membership state of every node
	Execute(cmd, nodes) run a command on ready nodes
	CreateNetwork(name) overlay network
	CreateService, RemoveServices, ServiceStatus

An empty node list means every node in the state the operation expects:
running for Stop and Execute, stopped for Start and Remove.

# Preconditions

Each operation checks the cluster and node states it requires before it
changes anything and fails with a *PreconditionError otherwise. The error
unwraps to a github.com/containerd/errdefs class:

	if errdefs.IsFailedPrecondition(err) { ... }
	if orchestrator.IsPrecondition(err, orchestrator.NodeNotReady) { ... }

Node checks run per node as the sequence reaches it, except for Remove and
Execute, which check every node before touching the first one. Errors from
a command part way through a sequence abort the remaining nodes; nothing is
rolled back.

# Stop ordering

Stop handles workers first and managers by descending index so that a
manager remains to demote and remove the nodes that went down. The last
running manager is stopped without that cleanup. The wait for a node to be
reported down polls every PollConfig.Interval (10s by default) and is
unbounded unless PollConfig.Timeout is set; it always ends when ctx is
cancelled.

# Concurrency

The orchestrator keeps no state between operations and issues one command
at a time. Two invocations against the same cluster are not safe; the
journal lock in pkg/storage serializes invocations on one control machine
only.
*/
package orchestrator
