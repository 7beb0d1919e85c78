package orchestrator

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
)

// Kind classifies a precondition failure
type Kind string

const (
	InvalidArgument        Kind = "InvalidArgument"
	ClusterAlreadyExists   Kind = "ClusterAlreadyExists"
	ClusterDoesNotExist    Kind = "ClusterDoesNotExist"
	ClusterNotRunning      Kind = "ClusterNotRunning"
	NodeNotReady           Kind = "NodeNotReady"
	NodeNotStopped         Kind = "NodeNotStopped"
	NodeMustBeStoppedFirst Kind = "NodeMustBeStoppedFirst"
	// ManagerStillNeeded is raised when the last running manager would be
	// stopped while other nodes still run
	ManagerStillNeeded     Kind = "ManagerStillNeeded"
)

// ErrPollTimeout is returned when a stopped node is not reported down within
// the configured poll timeout
var ErrPollTimeout = errors.New("timed out waiting for node to go down")

// PreconditionError reports that the cluster or a node is not in the state an
// operation requires. It is raised before the operation changes anything.
type PreconditionError struct {
	Kind    Kind
	Node    string
	Message string
}

func (e *PreconditionError) Error() string {
	return e.Message
}

// Unwrap maps the kind onto the errdefs classes
func (e *PreconditionError) Unwrap() error {
	switch e.Kind {
	case InvalidArgument:
		return errdefs.ErrInvalidArgument
	case ClusterAlreadyExists:
		return errdefs.ErrAlreadyExists
	case ClusterDoesNotExist:
		return errdefs.ErrNotFound
	default:
		return errdefs.ErrFailedPrecondition
	}
}

// IsPrecondition reports whether err is a precondition failure of kind
func IsPrecondition(err error, kind Kind) bool {
	var pe *PreconditionError
	return errors.As(err, &pe) && pe.Kind == kind
}

func precondition(kind Kind, node string, format string, args ...any) *PreconditionError {
	return &PreconditionError{Kind: kind, Node: node, Message: fmt.Sprintf(format, args...)}
}
