/*
Package types defines the domain model shared by every herd package.

Nothing in this package is persisted. A cluster is derived on every call from
the hosts the provisioner reports, and a node springs into existence when a host
matching the naming scheme is created.

# Node Identity

A node is identified by a NodeID, a tagged value that serializes to the
hostname:

	NodeID{Prefix: "lab", Role: RoleManager, Index: 3}  →  "lab-manager3"
	NodeID{Role: RoleWorker, Index: 1}                   →  "worker1"

The role lives only inside the NodeID. Code that needs role-specific behavior
switches on NodeID.Role instead of testing hostname prefixes.

# Node State

Each node is observed through two independent layers:

	machine state     absent | running | stopped     (provisioner)
	membership state  ready | down                   (control plane)

Membership is only queryable while at least one manager host is running.

Composed, they give the lifecycle driven by pkg/orchestrator:

	NEW → PROVISIONED+JOINING → READY → LEAVING → STOPPED → REMOVED

# Join Tokens

JoinToken carries the token and the advertising manager address. The
orchestrator mints a fresh one for every join and never stores it.
*/
package types
