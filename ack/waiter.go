package ack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-publisher/common/types"
	"github.com/spacemeshos/go-publisher/events"
)

var (
	// ErrTimeout is returned when ranges are not covered before the configured timeout.
	ErrTimeout = errors.New("ack wait timed out")
	// ErrDetached is returned when the tracker is detached during a wait.
	ErrDetached = errors.New("ack tracker detached")
)

// Outcome of a Wait.
type Outcome uint8

const (
	Pending Outcome = iota
	Satisfied
	Failed
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Satisfied:
		return "satisfied"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Coverage is the view of a Tracker used by Wait.
type Coverage interface {
	FirstMissing(start, end types.BlockIndex) (types.BlockIndex, bool)
	Subscribe(func(types.AckEvent)) events.Subscription
	Done() <-chan struct{}
}

var _ Coverage = (*Tracker)(nil)

type waitOpts struct {
	timeout time.Duration
	clock   clockwork.Clock
	logger  *zap.Logger
}

// WaitOpt modifies Wait.
type WaitOpt func(*waitOpts)

// WithTimeout fails the wait if ranges are not covered within d of the call.
// Zero disables the timeout.
func WithTimeout(d time.Duration) WaitOpt {
	return func(o *waitOpts) {
		o.timeout = d
	}
}

// WithClock sets the clock used for the timeout.
func WithClock(clock clockwork.Clock) WaitOpt {
	return func(o *waitOpts) {
		o.clock = clock
	}
}

// WithWaitLogger configures logger for the wait.
func WithWaitLogger(logger *zap.Logger) WaitOpt {
	return func(o *waitOpts) {
		o.logger = logger
	}
}

// pending is a range that is not yet covered. Blocks before next are known
// to be acknowledged and are not checked again.
type pending struct {
	types.FileRange
	next types.BlockIndex
}

// evaluate returns the ranges that still have unacknowledged blocks,
// advancing each to its first gap.
func evaluate(
	ranges []pending,
	firstMissing func(start, end types.BlockIndex) (types.BlockIndex, bool),
) []pending {
	var left []pending
	for _, r := range ranges {
		if gap, missing := firstMissing(r.next, r.End); missing {
			r.next = gap
			left = append(left, r)
		}
	}
	return left
}

// Wait blocks until every range is covered by acknowledgments in cov.
//
// Ranges that are already covered resolve without subscribing. Otherwise Wait
// subscribes once, re-evaluates the pending ranges after every folded event and
// unsubscribes exactly once before returning. A Failed outcome carries
// ErrTimeout or ErrDetached, a Cancelled outcome carries ctx.Err().
func Wait(ctx context.Context, cov Coverage, ranges []types.FileRange, opts ...WaitOpt) (Outcome, error) {
	o := waitOpts{
		clock:  clockwork.NewRealClock(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	start := o.clock.Now()
	outcome, err := wait(ctx, cov, ranges, o)
	waits.WithLabelValues(outcome.String()).Inc()
	waitDuration.WithLabelValues(outcome.String()).Observe(o.clock.Since(start).Seconds())
	o.logger.Debug("ack wait finished",
		zap.Stringer("outcome", outcome),
		zap.Array("ranges", types.FileRanges(ranges)),
		zap.Duration("duration", o.clock.Since(start)),
		zap.Error(err),
	)
	return outcome, err
}

func wait(ctx context.Context, cov Coverage, ranges []types.FileRange, o waitOpts) (Outcome, error) {
	var timeout <-chan time.Time
	if o.timeout > 0 {
		timer := o.clock.NewTimer(o.timeout)
		defer timer.Stop()
		timeout = timer.Chan()
	}

	left := make([]pending, 0, len(ranges))
	for _, r := range ranges {
		left = append(left, pending{FileRange: r, next: r.Start})
	}
	left = evaluate(left, cov.FirstMissing)
	if len(left) == 0 {
		return Satisfied, nil
	}

	signal := make(chan struct{}, 1)
	sub := cov.Subscribe(func(types.AckEvent) {
		select {
		case signal <- struct{}{}:
		default:
		}
	})
	defer sub.Unsubscribe()

	// events folded between the first check and the subscription
	left = evaluate(left, cov.FirstMissing)
	for len(left) > 0 {
		select {
		case <-ctx.Done():
			return Cancelled, ctx.Err()
		case <-timeout:
			return Failed, fmt.Errorf("%w: %d ranges pending, first %s at block %d",
				ErrTimeout, len(left), left[0].Path, left[0].next)
		case <-cov.Done():
			return Failed, ErrDetached
		case <-signal:
			left = evaluate(left, cov.FirstMissing)
		}
	}
	return Satisfied, nil
}
