package swarm

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
)

// ErrNoManager is returned when no running manager can accept commands
var ErrNoManager = errors.New("no running manager")

// ErrUnknownNode is returned for hosts missing from the swarm node list
var ErrUnknownNode = fmt.Errorf("node is not in the swarm: %w", errdefs.ErrNotFound)

// ProtocolViolation reports control-plane output the client cannot interpret
type ProtocolViolation struct {
	Command string
	Value   string
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("unexpected output from %q: %q", e.Command, e.Value)
}

// Unwrap classifies the violation as an unknown error
func (e *ProtocolViolation) Unwrap() error {
	return errdefs.ErrUnknown
}
