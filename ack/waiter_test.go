package ack

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-publisher/common/types"
	"github.com/spacemeshos/go-publisher/events"
	"github.com/spacemeshos/go-publisher/log/logtest"
)

// countingCoverage counts subscriptions made through it.
type countingCoverage struct {
	*Tracker
	subscribed   atomic.Int32
	unsubscribed atomic.Int32
	beforeSub    func()
}

type countingSub struct {
	events.Subscription
	cov *countingCoverage
}

func (s countingSub) Unsubscribe() {
	s.cov.unsubscribed.Add(1)
	s.Subscription.Unsubscribe()
}

func (c *countingCoverage) Subscribe(fn func(types.AckEvent)) events.Subscription {
	if c.beforeSub != nil {
		c.beforeSub()
	}
	c.subscribed.Add(1)
	return countingSub{Subscription: c.Tracker.Subscribe(fn), cov: c}
}

type result struct {
	outcome Outcome
	err     error
}

func waitAsync(ctx context.Context, cov Coverage, ranges []types.FileRange, opts ...WaitOpt) <-chan result {
	rst := make(chan result, 1)
	go func() {
		outcome, err := Wait(ctx, cov, ranges, opts...)
		rst <- result{outcome, err}
	}()
	return rst
}

func receive(tb testing.TB, rst <-chan result) result {
	tb.Helper()
	select {
	case r := <-rst:
		return r
	case <-time.After(5 * time.Second):
		require.FailNow(tb, "wait did not resolve")
	}
	return result{}
}

func TestEvaluate(t *testing.T) {
	bf := NewBitfield()
	bf.Fill(0, 10)
	bf.Fill(20, 25)
	in := []pending{
		{FileRange: types.FileRange{Path: "/a", Start: 0, End: 10}, next: 0},
		{FileRange: types.FileRange{Path: "/b", Start: 5, End: 30}, next: 5},
		{FileRange: types.FileRange{Path: "/c", Start: 20, End: 20}, next: 20},
	}
	left := evaluate(in, bf.FirstMissing)
	require.Len(t, left, 1)
	require.Equal(t, "/b", left[0].Path)
	require.EqualValues(t, 10, left[0].next)
	require.EqualValues(t, 5, in[1].next, "input must not be modified")

	bf.Fill(10, 20)
	left = evaluate(left, bf.FirstMissing)
	require.Len(t, left, 1)
	require.EqualValues(t, 25, left[0].next)

	bf.Fill(25, 30)
	require.Empty(t, evaluate(left, bf.FirstMissing))
}

func TestWaitAlreadyCovered(t *testing.T) {
	src, tr := newTracker(t)
	src.ack(0, 10)
	cov := &countingCoverage{Tracker: tr}

	outcome, err := Wait(context.Background(), cov, []types.FileRange{
		{Path: "/a", Start: 0, End: 4},
		{Path: "/b", Start: 4, End: 10},
		{Path: "/empty", Start: 50, End: 50},
	}, WithTimeout(time.Minute))
	require.NoError(t, err)
	require.Equal(t, Satisfied, outcome)
	require.Zero(t, cov.subscribed.Load())
	require.Zero(t, cov.unsubscribed.Load())
	require.Zero(t, tr.feed.Len())
}

func TestWaitSatisfiedByEvents(t *testing.T) {
	src, tr := newTracker(t)
	cov := &countingCoverage{Tracker: tr}
	ranges := []types.FileRange{
		{Path: "/a", Start: 0, End: 3},
		{Path: "/b", Start: 100, End: 102},
	}
	rst := waitAsync(context.Background(), cov, ranges, WithWaitLogger(logtest.New(t)))
	require.Eventually(t, func() bool { return cov.subscribed.Load() == 1 }, time.Second, time.Millisecond)

	src.ack(100, 2)
	src.ack(2, 1)
	src.ack(100, 2)
	select {
	case <-rst:
		require.FailNow(t, "resolved before all ranges were covered")
	case <-time.After(20 * time.Millisecond):
	}
	src.ack(0, 2)

	r := receive(t, rst)
	require.NoError(t, r.err)
	require.Equal(t, Satisfied, r.outcome)
	require.EqualValues(t, 1, cov.unsubscribed.Load())
	require.Zero(t, tr.feed.Len())
}

func TestWaitEventBetweenCheckAndSubscribe(t *testing.T) {
	src, tr := newTracker(t)
	cov := &countingCoverage{Tracker: tr}
	cov.beforeSub = func() { src.ack(0, 4) }

	outcome, err := Wait(context.Background(), cov, []types.FileRange{{Path: "/a", Start: 0, End: 4}})
	require.NoError(t, err)
	require.Equal(t, Satisfied, outcome)
	require.EqualValues(t, 1, cov.subscribed.Load())
	require.EqualValues(t, 1, cov.unsubscribed.Load())
}

func TestWaitTimeout(t *testing.T) {
	src, tr := newTracker(t)
	cov := &countingCoverage{Tracker: tr}
	clock := clockwork.NewFakeClock()
	const timeout = 10 * time.Second

	rst := waitAsync(context.Background(), cov,
		[]types.FileRange{{Path: "/a", Start: 0, End: 2}},
		WithTimeout(timeout), WithClock(clock),
	)
	clock.BlockUntil(1)
	require.Eventually(t, func() bool { return cov.subscribed.Load() == 1 }, time.Second, time.Millisecond)
	src.ack(0, 1)

	clock.Advance(timeout - time.Second)
	select {
	case <-rst:
		require.FailNow(t, "resolved before the timeout")
	case <-time.After(20 * time.Millisecond):
	}
	clock.Advance(time.Second)

	r := receive(t, rst)
	require.ErrorIs(t, r.err, ErrTimeout)
	require.Equal(t, Failed, r.outcome)
	require.EqualValues(t, 1, cov.unsubscribed.Load())
	require.Zero(t, tr.feed.Len())
}

func TestWaitCancelled(t *testing.T) {
	src, tr := newTracker(t)
	cov := &countingCoverage{Tracker: tr}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rst := waitAsync(ctx, cov, []types.FileRange{{Path: "/a", Start: 0, End: 2}})
	require.Eventually(t, func() bool { return cov.subscribed.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	r := receive(t, rst)
	require.ErrorIs(t, r.err, context.Canceled)
	require.Equal(t, Cancelled, r.outcome)
	require.EqualValues(t, 1, cov.unsubscribed.Load())

	src.ack(0, 2)
	require.Zero(t, tr.feed.Len())
	select {
	case <-rst:
		require.FailNow(t, "second outcome")
	default:
	}
}

func TestWaitDetached(t *testing.T) {
	_, tr := newTracker(t)
	cov := &countingCoverage{Tracker: tr}
	rst := waitAsync(context.Background(), cov, []types.FileRange{{Path: "/a", Start: 0, End: 2}})
	require.Eventually(t, func() bool { return cov.subscribed.Load() == 1 }, time.Second, time.Millisecond)
	tr.Detach()

	r := receive(t, rst)
	require.ErrorIs(t, r.err, ErrDetached)
	require.Equal(t, Failed, r.outcome)
	require.EqualValues(t, 1, cov.unsubscribed.Load())
}

func TestWaitConcurrent(t *testing.T) {
	src, tr := newTracker(t)
	const n = 8
	results := make([]<-chan result, 0, n)
	for i := 0; i < n; i++ {
		start := types.BlockIndex(i * 10)
		results = append(results, waitAsync(context.Background(), tr,
			[]types.FileRange{{Path: "/f", Start: start, End: start + 10}}))
	}
	for i := n - 1; i >= 0; i-- {
		src.ack(types.BlockIndex(i*10), 10)
	}
	for _, rst := range results {
		r := receive(t, rst)
		require.NoError(t, r.err)
		require.Equal(t, Satisfied, r.outcome)
	}
	require.Eventually(t, func() bool { return tr.feed.Len() == 0 }, time.Second, time.Millisecond)
}
