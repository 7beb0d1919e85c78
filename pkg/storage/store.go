package storage

import (
	"time"

	"github.com/cuemby/herd/pkg/events"
)

// Result values of a finished operation
const (
	ResultRunning = "running"
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Operation is one journaled lifecycle command
type Operation struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Args       []string   `json:"args,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Result     string     `json:"result"`
	Error      string     `json:"error,omitempty"`
}

// Duration returns how long the operation ran, zero while it is running
func (o *Operation) Duration() time.Duration {
	if o.FinishedAt == nil {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}

// Journal records what herd did to the cluster. It is an audit trail only:
// cluster state is always read back from the provisioner and the swarm.
type Journal interface {
	Begin(name string, args []string) (*Operation, error)
	Finish(op *Operation, err error) error
	RecordEvent(op *Operation, event *events.Event) error

	// ListOperations returns the most recent operations, newest first.
	// limit <= 0 returns all of them.
	ListOperations(limit int) ([]*Operation, error)
	ListEvents(op *Operation) ([]*events.Event, error)

	Close() error
}
