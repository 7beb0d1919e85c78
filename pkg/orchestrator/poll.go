package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cuemby/herd/pkg/metrics"
	"github.com/cuemby/herd/pkg/types"
)

var errNotDown = errors.New("node not down yet")

// waitDown polls the swarm until it reports id down. It gives up with
// ErrPollTimeout after the poll timeout, if one is set.
func (o *Orchestrator) waitDown(ctx context.Context, id types.NodeID) error {
	pollCtx := ctx
	if o.poll.Timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, o.poll.Timeout)
		defer cancel()
	}

	check := func() error {
		metrics.PollAttemptsTotal.Inc()
		state, err := o.membership.NodeStatus(pollCtx, id.String())
		if err != nil {
			return backoff.Permanent(err)
		}
		if state != types.MembershipDown {
			return errNotDown
		}
		return nil
	}

	notify := func(_ error, next time.Duration) {
		o.logger.Debug().Str("node", id.String()).Dur("retry_in", next).Msg("Waiting for node to go down")
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(o.poll.Interval), pollCtx)
	err := backoff.RetryNotify(check, b, notify)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", ErrPollTimeout, id, o.poll.Timeout)
	}
	return err
}
