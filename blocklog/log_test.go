package blocklog

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-publisher/ack"
	"github.com/spacemeshos/go-publisher/common/types"
)

func values(n int) [][]byte {
	rst := make([][]byte, n)
	for i := range rst {
		rst[i] = []byte{byte(i), 'v'}
	}
	return rst
}

func TestDeriveSigner(t *testing.T) {
	a, err := DeriveSigner(testSeed(1), "metadata")
	require.NoError(t, err)
	b, err := DeriveSigner(testSeed(1), "metadata")
	require.NoError(t, err)
	c, err := DeriveSigner(testSeed(1), "content")
	require.NoError(t, err)
	d, err := DeriveSigner(testSeed(2), "metadata")
	require.NoError(t, err)

	require.Equal(t, a.PublicKey(), b.PublicKey())
	require.NotEqual(t, a.PublicKey(), c.PublicKey())
	require.NotEqual(t, a.PublicKey(), d.PublicKey())
	require.NotEqual(t, DiscoveryKeyOf(a.PublicKey()), DiscoveryKeyOf(c.PublicKey()))
}

func TestKeyMismatch(t *testing.T) {
	signer, err := DeriveSigner(testSeed(1), "test")
	require.NoError(t, err)
	other, err := DeriveSigner(testSeed(1), "other")
	require.NoError(t, err)
	_, err = New(other.PublicKey(), NewMemoryStore(), WithPrivateKey(signer.PrivateKey()))
	require.ErrorIs(t, err, ErrKeyMismatch)
}

func TestAppendGet(t *testing.T) {
	ctx := context.Background()
	l := newWriter(t, NewMemoryStore())
	require.True(t, l.Writable())

	_, err := l.Head(ctx)
	require.ErrorIs(t, err, ErrEmpty)

	first, err := l.Append(ctx, values(3)...)
	require.NoError(t, err)
	require.Equal(t, types.BlockIndex(0), first)
	first, err = l.Append(ctx, []byte("last"))
	require.NoError(t, err)
	require.Equal(t, types.BlockIndex(3), first)
	require.EqualValues(t, 4, l.Length())
	require.EqualValues(t, 4, l.Stored())

	b, err := l.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 'v'}, b.Value)
	require.True(t, l.verify(b))

	head, err := l.Head(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("last"), head.Value)

	_, err = l.Get(ctx, 4)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = l.Append(ctx, make([]byte, MaxBlockSize+1))
	require.Error(t, err)
	require.EqualValues(t, 4, l.Length())
}

func TestAppendReadOnly(t *testing.T) {
	w := newWriter(t, NewMemoryStore())
	r := newReader(t, w.Key())
	require.False(t, r.Writable())
	_, err := r.Append(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrReadOnly)
}

func TestClosed(t *testing.T) {
	ctx := context.Background()
	var hooks int
	w := newWriter(t, NewMemoryStore(), WithCloseHook(func() { hooks++ }))
	_, err := w.Append(ctx, []byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	require.Equal(t, 1, hooks)

	_, err = w.Append(ctx, []byte("y"))
	require.ErrorIs(t, err, ErrClosed)
	_, err = w.Get(ctx, 0)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, w.Update(ctx, UpdateOptions{}), ErrClosed)
}

func TestUpdateNoPeers(t *testing.T) {
	w := newWriter(t, NewMemoryStore())
	r := newReader(t, w.Key())

	err := r.Update(context.Background(), UpdateOptions{IfAvailable: true})
	require.ErrorIs(t, err, ErrUnreachable)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = r.Update(ctx, UpdateOptions{})
	require.ErrorIs(t, err, ErrUnreachable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSparseReplication(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w := newWriter(t, NewMemoryStore())
	_, err := w.Append(ctx, values(5)...)
	require.NoError(t, err)

	r := newReader(t, w.Key())
	connect(t, w, r, "writer", "reader")

	require.NoError(t, r.Update(ctx, UpdateOptions{IfAvailable: true, MinLength: 5}))
	require.EqualValues(t, 5, r.Length())
	require.Zero(t, r.Stored())
	require.ElementsMatch(t, []string{"writer"}, peerStrings(r))

	b, err := r.Get(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, []byte{3, 'v'}, b.Value)
	require.EqualValues(t, 1, r.Stored())

	head, err := r.Head(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte{4, 'v'}, head.Value)
	require.EqualValues(t, 2, r.Stored())
}

func TestUpdateTooShort(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w := newWriter(t, NewMemoryStore())
	_, err := w.Append(ctx, values(2)...)
	require.NoError(t, err)

	r := newReader(t, w.Key())
	connect(t, w, r, "writer", "reader")

	err = r.Update(ctx, UpdateOptions{MinLength: 3})
	require.ErrorIs(t, err, ErrTooShort)
	require.EqualValues(t, 2, r.Length())
}

func TestUpdateFollowsAppend(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w := newWriter(t, NewMemoryStore())
	r := newReader(t, w.Key())
	connect(t, w, r, "writer", "reader")

	require.NoError(t, r.Update(ctx, UpdateOptions{}))
	require.Zero(t, r.Length())

	_, err := w.Append(ctx, values(3)...)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return r.Update(ctx, UpdateOptions{MinLength: 3}) == nil
	}, time.Second, 10*time.Millisecond)
	require.EqualValues(t, 3, r.Length())
}

func TestEagerAcknowledgesWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w := newWriter(t, NewMemoryStore())
	tracker := ack.Attach(w)
	t.Cleanup(tracker.Detach)

	_, err := w.Append(ctx, values(10)...)
	require.NoError(t, err)

	seeder := newReader(t, w.Key(), WithEager(), WithWindow(4))
	connect(t, w, seeder, "writer", "seeder")

	all := types.FileRange{Path: "/", Start: 0, End: 10}
	outcome, err := ack.Wait(ctx, tracker, []types.FileRange{all})
	require.NoError(t, err)
	require.Equal(t, ack.Satisfied, outcome)
	require.EqualValues(t, 10, seeder.Stored())
	require.EqualValues(t, 10, seeder.Length())

	_, err = w.Append(ctx, []byte("more"))
	require.NoError(t, err)
	more := types.FileRange{Path: "/more", Start: 10, End: 11}
	outcome, err = ack.Wait(ctx, tracker, []types.FileRange{more})
	require.NoError(t, err)
	require.Equal(t, ack.Satisfied, outcome)
}

func TestEagerAcknowledgesStoredPrefix(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store := NewMemoryStore()
	w := newWriter(t, store)
	_, err := w.Append(ctx, values(3)...)
	require.NoError(t, err)
	seeder := newReader(t, w.Key(), WithEager())
	connect(t, w, seeder, "writer", "seeder")
	require.Eventually(t, func() bool { return seeder.Stored() == 3 }, 5*time.Second, time.Millisecond)
	require.NoError(t, w.Close())

	reopened := newWriter(t, store)
	require.EqualValues(t, 3, reopened.Length())
	tracker := ack.Attach(reopened)
	t.Cleanup(tracker.Detach)
	connect(t, reopened, seeder, "reopened", "seeder")

	outcome, err := ack.Wait(ctx, tracker, []types.FileRange{{Start: 0, End: 3}})
	require.NoError(t, err)
	require.Equal(t, ack.Satisfied, outcome)
}

func TestPrefixAckBeyondLocalLengthIgnored(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w := newWriter(t, NewMemoryStore())
	_, err := w.Append(ctx, values(3)...)
	require.NoError(t, err)
	seeder := newReader(t, w.Key(), WithEager())
	connect(t, w, seeder, "writer", "seeder")
	require.Eventually(t, func() bool { return seeder.Stored() == 3 }, 5*time.Second, time.Millisecond)

	// same key, nothing stored locally
	fresh := newWriter(t, NewMemoryStore())
	tracker := ack.Attach(fresh)
	t.Cleanup(tracker.Detach)
	connect(t, fresh, seeder, "fresh", "seeder")

	outcome, err := ack.Wait(ctx, tracker, []types.FileRange{{Start: 0, End: 3}}, ack.WithTimeout(100*time.Millisecond))
	require.ErrorIs(t, err, ack.ErrTimeout)
	require.Equal(t, ack.Failed, outcome)
	require.Zero(t, tracker.Count())
}

func TestOnAckClipsToLocalLength(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w := newWriter(t, NewMemoryStore())
	_, err := w.Append(ctx, values(1)...)
	require.NoError(t, err)
	tracker := ack.Attach(w)
	t.Cleanup(tracker.Detach)
	var got []types.AckEvent
	sub := w.Acks().Subscribe(func(ev types.AckEvent) {
		if ev.Ack {
			got = append(got, ev)
		}
	})
	defer sub.Unsubscribe()

	p := newRecordingPeer("remote")
	w.AddPeer(p)
	w.OnAck(p, 0, 1<<29)
	w.OnAck(p, 5, 1)
	w.OnAck(p, types.BlockIndex(math.MaxUint64-1), 10)

	require.Equal(t, []types.AckEvent{{Peer: "remote", Start: 0, Length: 1, Ack: true}}, got)
	require.True(t, tracker.Covered(types.FileRange{Start: 0, End: 1}))
	require.False(t, tracker.Covered(types.FileRange{Start: 0, End: 1 << 29}))
	require.EqualValues(t, 1, tracker.Count())
}

func TestClipAck(t *testing.T) {
	for _, tc := range []struct {
		desc          string
		start         types.BlockIndex
		length, limit uint64
		expect        uint64
	}{
		{desc: "inside", start: 2, length: 3, limit: 10, expect: 3},
		{desc: "past limit", start: 8, length: 5, limit: 10, expect: 2},
		{desc: "start at limit", start: 10, length: 5, limit: 10},
		{desc: "empty log", start: 0, length: 5, limit: 0},
		{desc: "near max", start: math.MaxUint64 - 1, length: 10, limit: math.MaxUint64, expect: 1},
		{desc: "over max", start: 0, length: 1 << 29, limit: 1 << 30, expect: MaxAckLength},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			require.Equal(t, tc.expect, clipAck(tc.start, tc.length, tc.limit))
		})
	}
}

func TestUploadsPublished(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w := newWriter(t, NewMemoryStore())
	_, err := w.Append(ctx, values(2)...)
	require.NoError(t, err)

	uploads := make(chan types.AckEvent, 10)
	sub := w.Acks().Subscribe(func(ev types.AckEvent) {
		if !ev.Ack {
			uploads <- ev
		}
	})
	defer sub.Unsubscribe()
	connects := make(chan string, 1)
	csub := w.PeerConnects().Subscribe(func(id peer.ID) { connects <- id.String() })
	defer csub.Unsubscribe()

	r := newReader(t, w.Key())
	connect(t, w, r, "writer", "reader")
	require.NoError(t, r.Update(ctx, UpdateOptions{}))
	_, err = r.Get(ctx, 1)
	require.NoError(t, err)

	select {
	case id := <-connects:
		require.Equal(t, peer.ID("reader").String(), id)
	case <-ctx.Done():
		require.FailNow(t, "no connect event")
	}
	select {
	case ev := <-uploads:
		require.Equal(t, types.BlockIndex(1), ev.Start)
		require.EqualValues(t, 1, ev.Length)
		require.Equal(t, peer.ID("reader"), ev.Peer)
	case <-ctx.Done():
		require.FailNow(t, "no upload event")
	}
}

func TestInvalidBlockRejected(t *testing.T) {
	ctx := context.Background()
	w := newWriter(t, NewMemoryStore())
	_, err := w.Append(ctx, values(1)...)
	require.NoError(t, err)
	b, err := w.Get(ctx, 0)
	require.NoError(t, err)

	r := newReader(t, w.Key())
	p := newRecordingPeer("writer")
	r.AddPeer(p)

	tampered := *b
	tampered.Value = []byte("forged")
	require.ErrorIs(t, r.OnData(p, &tampered), ErrInvalidBlock)

	shifted := *b
	shifted.Index = 1
	require.ErrorIs(t, r.OnData(p, &shifted), ErrInvalidBlock)
	require.Zero(t, r.Stored())

	require.NoError(t, r.OnData(p, b))
	require.EqualValues(t, 1, r.Stored())
}

func TestUnavailableReroutes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w := newWriter(t, NewMemoryStore())
	_, err := w.Append(ctx, values(3)...)
	require.NoError(t, err)
	b, err := w.Get(ctx, 2)
	require.NoError(t, err)

	r := newReader(t, w.Key())
	p1, p2 := newRecordingPeer("p1"), newRecordingPeer("p2")
	r.AddPeer(p1)
	r.AddPeer(p2)
	r.OnHave(p1, 3)
	r.OnHave(p2, 3)
	require.NoError(t, r.Update(ctx, UpdateOptions{MinLength: 3}))

	got := make(chan *Block, 1)
	go func() {
		b, err := r.Get(ctx, 2)
		if err == nil {
			got <- b
		}
		close(got)
	}()

	first := nextRequest(t, ctx, p1, p2)
	r.OnUnavailable(first.peer, 2)
	second := nextRequest(t, ctx, p1, p2)
	require.NotEqual(t, first.peer.id, second.peer.id)
	require.Equal(t, types.BlockIndex(2), second.index)

	require.NoError(t, r.OnData(second.peer, b))
	select {
	case rst := <-got:
		require.NotNil(t, rst)
		require.Equal(t, b.Value, rst.Value)
	case <-ctx.Done():
		require.FailNow(t, "get didn't complete")
	}
}

type sentRequest struct {
	peer  *recordingPeer
	index types.BlockIndex
}

// nextRequest returns the first request observed on any of the peers, skipping other messages.
func nextRequest(tb testing.TB, ctx context.Context, peers ...*recordingPeer) sentRequest {
	tb.Helper()
	for {
		for _, p := range peers {
			select {
			case c := <-p.calls:
				if c.method == "request" {
					return sentRequest{peer: p, index: c.index}
				}
			default:
			}
		}
		select {
		case <-ctx.Done():
			require.FailNow(tb, "no request sent")
		case <-time.After(time.Millisecond):
		}
	}
}

func peerStrings(l *Log) []string {
	var rst []string
	for _, id := range l.Peers() {
		rst = append(rst, string(id))
	}
	return rst
}
