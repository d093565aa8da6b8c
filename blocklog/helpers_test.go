package blocklog

import (
	"sync"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-publisher/common/types"
	"github.com/spacemeshos/go-publisher/log/logtest"
)

// link delivers messages to the log on the other end from a single goroutine.
type link struct {
	id      peer.ID
	to      *Log
	reverse *link
	queue   chan func()
	done    chan struct{}
}

func (l *link) ID() peer.ID { return l.id }

func (l *link) send(fn func()) {
	select {
	case l.queue <- fn:
	case <-l.done:
	}
}

func (l *link) Have(length uint64) {
	l.send(func() { l.to.OnHave(l.reverse, length) })
}

func (l *link) Request(index types.BlockIndex) {
	l.send(func() { l.to.OnRequest(l.reverse, index) })
}

func (l *link) Data(b *Block) {
	l.send(func() { l.to.OnData(l.reverse, b) })
}

func (l *link) Ack(start types.BlockIndex, length uint64) {
	l.send(func() { l.to.OnAck(l.reverse, start, length) })
}

func (l *link) Unavailable(index types.BlockIndex) {
	l.send(func() { l.to.OnUnavailable(l.reverse, index) })
}

// connect links a and b as if a replication channel for their log was established.
func connect(tb testing.TB, a, b *Log, aid, bid peer.ID) {
	done := make(chan struct{})
	ab := &link{id: bid, to: b, queue: make(chan func(), 4096), done: done}
	ba := &link{id: aid, to: a, queue: make(chan func(), 4096), done: done}
	ab.reverse, ba.reverse = ba, ab
	var wg sync.WaitGroup
	for _, l := range []*link{ab, ba} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case fn := <-l.queue:
					fn()
				case <-done:
					return
				}
			}
		}()
	}
	tb.Cleanup(func() {
		a.RemovePeer(ab)
		b.RemovePeer(ba)
		close(done)
		wg.Wait()
	})
	a.AddPeer(ab)
	b.AddPeer(ba)
}

type call struct {
	method string
	index  types.BlockIndex
	length uint64
}

// recordingPeer records every message sent to it.
type recordingPeer struct {
	id    peer.ID
	calls chan call
}

func newRecordingPeer(id peer.ID) *recordingPeer {
	return &recordingPeer{id: id, calls: make(chan call, 1024)}
}

func (p *recordingPeer) ID() peer.ID        { return p.id }
func (p *recordingPeer) Have(length uint64) { p.calls <- call{method: "have", length: length} }
func (p *recordingPeer) Request(index types.BlockIndex) {
	p.calls <- call{method: "request", index: index}
}
func (p *recordingPeer) Data(b *Block) { p.calls <- call{method: "data", index: b.Index} }
func (p *recordingPeer) Ack(start types.BlockIndex, length uint64) {
	p.calls <- call{method: "ack", index: start, length: length}
}
func (p *recordingPeer) Unavailable(index types.BlockIndex) {
	p.calls <- call{method: "unavailable", index: index}
}

func testSeed(b byte) types.Seed {
	var seed types.Seed
	seed[0] = b
	return seed
}

func newWriter(tb testing.TB, store Store, opts ...Opt) *Log {
	signer, err := DeriveSigner(testSeed(1), "test")
	require.NoError(tb, err)
	opts = append([]Opt{
		WithLogger(logtest.New(tb)),
		WithName("writer"),
		WithPrivateKey(signer.PrivateKey()),
	}, opts...)
	l, err := New(signer.PublicKey(), store, opts...)
	require.NoError(tb, err)
	tb.Cleanup(func() { l.Close() })
	return l
}

func newReader(tb testing.TB, key types.PublicKey, opts ...Opt) *Log {
	opts = append([]Opt{WithLogger(logtest.New(tb)), WithName("reader")}, opts...)
	l, err := New(key, NewMemoryStore(), opts...)
	require.NoError(tb, err)
	tb.Cleanup(func() { l.Close() })
	return l
}
