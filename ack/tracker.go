// Package ack folds peer acknowledgments of replicated log blocks into a
// queryable bitfield and waits for sets of block ranges to become covered.
package ack

import (
	"sync"

	"go.uber.org/zap"

	"github.com/spacemeshos/go-publisher/common/types"
	"github.com/spacemeshos/go-publisher/events"
)

// Source is a log that reports peer acknowledgments.
type Source interface {
	Acks() *events.Feed[types.AckEvent]
}

// Opt modifies Tracker.
type Opt func(*Tracker)

// WithLogger configures logger for the tracker.
func WithLogger(logger *zap.Logger) Opt {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithName sets the name used in logs and metrics, usually the name of the log.
func WithName(name string) Opt {
	return func(t *Tracker) {
		t.name = name
	}
}

// Tracker accumulates acknowledged blocks of a single log.
//
// The fold on the source delivery path is the only writer of the bitfield.
// Folded acknowledgments are re-published to subscribers after the bitfield
// was updated, so a subscriber always observes the state that includes the event.
type Tracker struct {
	logger *zap.Logger
	name   string

	mu   sync.RWMutex
	bits *Bitfield

	feed events.Feed[types.AckEvent]
	sub  events.Subscription

	once sync.Once
	done chan struct{}
}

// Attach subscribes to the source immediately. Acknowledgments received
// before anyone asks about them are kept.
func Attach(src Source, opts ...Opt) *Tracker {
	t := &Tracker{
		logger: zap.NewNop(),
		bits:   NewBitfield(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(zap.String("log", t.name))
	t.sub = src.Acks().Subscribe(t.fold)
	return t
}

func (t *Tracker) fold(ev types.AckEvent) {
	if !ev.Ack {
		otherEvents.Inc()
		return
	}
	ackEvents.Inc()
	select {
	case <-t.done:
		return
	default:
	}
	if !ev.Valid() {
		t.logger.Warn("dropped malformed acknowledgment", zap.Object("event", ev))
		return
	}
	t.mu.Lock()
	added := t.bits.Fill(ev.Start, ev.End())
	t.mu.Unlock()
	if added > 0 {
		blocksAcked.WithLabelValues(t.name).Add(float64(added))
	}
	t.logger.Debug("peer acknowledged blocks",
		zap.Object("event", ev),
		zap.Uint64("added", added),
	)
	t.feed.Publish(ev)
}

// Covered reports whether every block of r is acknowledged.
func (t *Tracker) Covered(r types.FileRange) bool {
	_, missing := t.FirstMissing(r.Start, r.End)
	return !missing
}

// FirstMissing returns the first block in [start, end) that is not acknowledged.
func (t *Tracker) FirstMissing(start, end types.BlockIndex) (types.BlockIndex, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bits.FirstMissing(start, end)
}

// Count returns the number of acknowledged blocks.
func (t *Tracker) Count() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bits.Count()
}

// Subscribe registers fn to observe acknowledgments after they were folded.
func (t *Tracker) Subscribe(fn func(types.AckEvent)) events.Subscription {
	return t.feed.Subscribe(fn)
}

// Done is closed by Detach.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

// Detach stops tracking and drops all subscriptions. Safe to call multiple times.
func (t *Tracker) Detach() {
	t.once.Do(func() {
		t.sub.Unsubscribe()
		close(t.done)
		t.feed.Reset()
		t.logger.Debug("ack tracker detached", zap.Uint64("acknowledged", t.Count()))
	})
}
