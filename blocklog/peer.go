package blocklog

import (
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-publisher/ack"
	"github.com/spacemeshos/go-publisher/common/types"
)

// Peer is a remote replica of the log reached over a replication channel.
// Methods enqueue messages and must not block.
type Peer interface {
	ID() peer.ID
	Have(length uint64)
	Request(index types.BlockIndex)
	Data(block *Block)
	Ack(start types.BlockIndex, length uint64)
	Unavailable(index types.BlockIndex)
}

// AddPeer starts replication with p and advertises the local length to it.
// Eager logs also acknowledge the stored prefix.
func (l *Log) AddPeer(p Peer) {
	l.mu.Lock()
	if _, exists := l.peers[p]; exists || l.closed {
		l.mu.Unlock()
		return
	}
	l.peers[p] = &remote{
		holds: ack.NewBitfield(),
		lacks: map[types.BlockIndex]struct{}{},
	}
	p.Have(l.length)
	if l.eager {
		for start := types.BlockIndex(0); start < l.contiguous; start += MaxAckLength {
			p.Ack(start, min(uint64(l.contiguous-start), MaxAckLength))
		}
	}
	l.schedule()
	l.notify()
	l.mu.Unlock()

	l.logger.Debug("peer joined log", zap.Stringer("peer", p.ID()))
	l.connects.Publish(p.ID())
}

// RemovePeer stops replication with p. Requests in flight to p are sent to other peers.
func (l *Log) RemovePeer(p Peer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.peers[p]; !exists {
		return
	}
	delete(l.peers, p)
	for i, other := range l.requested {
		if other == p {
			delete(l.requested, i)
		}
	}
	l.schedule()
	l.notify()
	l.logger.Debug("peer left log", zap.Stringer("peer", p.ID()))
}

// OnHave records the length advertised by p.
func (l *Log) OnHave(p Peer, length uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.peers[p]
	if !ok {
		return
	}
	r.length, r.known = length, true
	if l.eager && length > l.length {
		l.length = length
		if err := l.store.SetLength(l.dkey, length); err != nil {
			l.logger.Error("failed to store length", zap.Uint64("length", length), zap.Error(err))
		}
	}
	l.schedule()
	l.notify()
}

// OnRequest serves a block to p, or tells p that it is not stored locally.
func (l *Log) OnRequest(p Peer, index types.BlockIndex) {
	l.mu.Lock()
	_, ok := l.peers[p]
	has := l.have.Has(index)
	l.mu.Unlock()
	if !ok {
		return
	}
	if !has {
		p.Unavailable(index)
		return
	}
	b, err := l.store.Get(l.dkey, index)
	if err != nil {
		l.logger.Warn("failed to load requested block", zap.Uint64("index", uint64(index)), zap.Error(err))
		p.Unavailable(index)
		return
	}
	p.Data(b)
	uploadedBlocks.Inc()
	l.acks.Publish(types.AckEvent{Peer: p.ID(), Start: index, Length: 1, Ack: false})
}

// OnData verifies and stores a block received from p.
func (l *Log) OnData(p Peer, b *Block) error {
	if !l.verify(b) {
		invalidBlocks.Inc()
		return ErrInvalidBlock
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	if r, ok := l.peers[p]; ok {
		r.holds.Set(b.Index)
	}
	if l.requested[b.Index] == p {
		delete(l.requested, b.Index)
	}
	if l.have.Has(b.Index) {
		l.schedule()
		return nil
	}
	if err := l.store.Put(l.dkey, b); err != nil {
		return err
	}
	l.have.Set(b.Index)
	l.advance()
	downloadedBlocks.Inc()
	if l.eager {
		if uint64(b.Index) >= l.length {
			l.length = uint64(b.Index) + 1
			if err := l.store.SetLength(l.dkey, l.length); err != nil {
				return err
			}
		}
		for other := range l.peers {
			other.Ack(b.Index, 1)
		}
	}
	l.schedule()
	l.notify()
	return nil
}

// OnAck records that p holds [start, start+length) and publishes the acknowledgment.
// The span is clipped to the local length, acknowledgments past it are dropped.
func (l *Log) OnAck(p Peer, start types.BlockIndex, length uint64) {
	l.mu.Lock()
	r, ok := l.peers[p]
	if ok {
		length = clipAck(start, length, l.length)
		if length == 0 {
			ok = false
		} else {
			r.holds.Fill(start, start+types.BlockIndex(length))
			l.schedule()
		}
	}
	l.mu.Unlock()
	if ok {
		l.acks.Publish(types.AckEvent{Peer: p.ID(), Start: start, Length: length, Ack: true})
	}
}

// clipAck returns the part of length that falls into [start, limit) and into MaxAckLength.
func clipAck(start types.BlockIndex, length, limit uint64) uint64 {
	if uint64(start) >= limit {
		return 0
	}
	return min(length, limit-uint64(start), MaxAckLength)
}

// OnUnavailable records that p can't serve index and routes the request elsewhere.
func (l *Log) OnUnavailable(p Peer, index types.BlockIndex) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.peers[p]
	if !ok {
		return
	}
	r.lacks[index] = struct{}{}
	if l.requested[index] == p {
		delete(l.requested, index)
	}
	l.schedule()
}

// schedule requests blocks waited on by Get and, in eager mode, every missing
// block up to the window. Must be called with mu held.
func (l *Log) schedule() {
	if l.closed || len(l.peers) == 0 {
		return
	}
	for i := range l.wanted {
		l.request(i)
	}
	if !l.eager {
		return
	}
	for i := l.contiguous; uint64(i) < l.length && len(l.requested) < l.window; i++ {
		l.request(i)
	}
}

// request sends a request for index unless it is stored or already requested.
// Must be called with mu held.
func (l *Log) request(index types.BlockIndex) {
	if l.have.Has(index) {
		return
	}
	if _, ok := l.requested[index]; ok {
		return
	}
	p := l.pick(index)
	if p == nil {
		return
	}
	l.requested[index] = p
	p.Request(index)
	requests.Inc()
}

// pick prefers a peer known to hold index, then any peer whose advertised
// length covers it and that did not report it unavailable.
func (l *Log) pick(index types.BlockIndex) Peer {
	var fallback Peer
	for p, r := range l.peers {
		if r.holds.Has(index) {
			return p
		}
		if fallback != nil || !r.known || uint64(index) >= r.length {
			continue
		}
		if _, lacks := r.lacks[index]; !lacks {
			fallback = p
		}
	}
	return fallback
}
