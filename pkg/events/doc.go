/*
Package events provides an in-memory event broker for herd's progress
reporting.

Every mutating step of a lifecycle operation publishes an Event: a host was
created, a node joined or left the swarm, a stopped node was reported down, a
host was removed. The CLI subscribes to print progress lines while an
operation runs, and the orchestrator records the same events in the journal
(see pkg/storage).

# Event Types

	cluster.initialized  swarm initialized on the first manager
	node.created         host provisioned
	node.joined          node joined the swarm
	node.left            node left the swarm
	node.stopped         host stopped
	node.started         stopped host booted again
	node.down            control plane reports the node down
	node.removed         host deleted, or node removed from the node list
	network.created      overlay network created
	service.created      service created
	service.removed      service removed

# Delivery

Publish hands events to a buffered channel (100 events); a single
distribution loop copies each event to every subscriber (50 events each).
A subscriber whose buffer is full misses the event rather than stalling the
operation.

Stop delivers what is still queued, closes all subscriber channels and
returns once the loop has exited, so a consumer ranging over its channel ends
cleanly:

	broker := events.NewBroker()
	broker.Start()
	sub := broker.Subscribe()

	go func() {
		for e := range sub {
			fmt.Printf("%s %s\n", e.Type, e.Node)
		}
	}()

	broker.Publish(events.New(events.EventNodeJoined, "lab-worker1", ""))
	broker.Stop()

Event IDs are random UUIDs (github.com/google/uuid).
*/
package events
