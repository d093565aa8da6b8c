package replication

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-msgio"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/spacemeshos/go-publisher/blocklog"
	"github.com/spacemeshos/go-publisher/codec"
	"github.com/spacemeshos/go-publisher/common/types"
)

// stream is a replication stream with a single peer. Outgoing messages are
// queued without bound so that log handlers never block on the network.
type stream struct {
	r      *Replicator
	s      network.Stream
	peer   peer.ID
	logger *zap.Logger
	limit  *rate.Limiter

	mu       sync.Mutex
	queue    [][]byte
	wake     chan struct{}
	local    map[types.DiscoveryKey]*blocklog.Log
	remote   map[types.DiscoveryKey]struct{}
	channels map[types.DiscoveryKey]*channel
}

func newStream(r *Replicator, s network.Stream) *stream {
	pid := s.Conn().RemotePeer()
	return &stream{
		r:        r,
		s:        s,
		peer:     pid,
		logger:   r.logger.With(zap.Stringer("peer", pid)),
		limit:    newLimiter(r.cfg),
		wake:     make(chan struct{}, 1),
		local:    map[types.DiscoveryKey]*blocklog.Log{},
		remote:   map[types.DiscoveryKey]struct{}{},
		channels: map[types.DiscoveryKey]*channel{},
	}
}

func (st *stream) run(ctx context.Context) error {
	for dkey, l := range st.r.registered() {
		st.open(dkey, l)
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-ctx.Done()
		st.s.Reset()
		return nil
	})
	eg.Go(func() error {
		return st.writeLoop(ctx)
	})
	eg.Go(func() error {
		return st.readLoop(ctx)
	})
	err := eg.Wait()
	st.detachAll()
	return err
}

func (st *stream) send(msg *Message) {
	buf, err := codec.Encode(msg)
	if err != nil {
		st.logger.Error("failed to encode message", zap.Object("msg", msg), zap.Error(err))
		return
	}
	st.mu.Lock()
	st.queue = append(st.queue, buf)
	st.mu.Unlock()
	select {
	case st.wake <- struct{}{}:
	default:
	}
	sent(msg.Type)
}

func (st *stream) writeLoop(ctx context.Context) error {
	wr := msgio.NewVarintWriter(st.s)
	for {
		st.mu.Lock()
		queue := st.queue
		st.queue = nil
		st.mu.Unlock()
		for _, buf := range queue {
			if err := wr.WriteMsg(buf); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-st.wake:
		}
	}
}

func (st *stream) readLoop(ctx context.Context) error {
	rd := msgio.NewVarintReaderSize(st.s, st.r.cfg.MaxMessageSize)
	for {
		buf, err := rd.ReadMsg()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		var msg Message
		if err := codec.Decode(buf, &msg); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		received(msg.Type)
		if msg.Type == MessageRequest {
			if err := st.limit.Wait(ctx); err != nil {
				return err
			}
		}
		if err := st.handle(&msg); err != nil {
			return err
		}
	}
}

var errProtocol = errors.New("protocol violation")

func (st *stream) handle(msg *Message) error {
	switch msg.Type {
	case MessageOpen:
		st.onOpen(msg.Key)
		return nil
	case MessageClose:
		st.onClose(msg.Key)
		return nil
	}
	st.mu.Lock()
	ch := st.channels[msg.Key]
	st.mu.Unlock()
	if ch == nil {
		droppedUnknownLog.Inc()
		st.logger.Debug("message for log that is not open", zap.Object("msg", msg))
		return nil
	}
	l := ch.log
	switch msg.Type {
	case MessageHave:
		l.OnHave(ch, msg.Length)
	case MessageRequest:
		l.OnRequest(ch, msg.Index)
	case MessageData:
		if err := l.OnData(ch, msg.Block); errors.Is(err, blocklog.ErrInvalidBlock) {
			droppedInvalidBlock.Inc()
			st.logger.Warn("peer sent invalid block", zap.Object("msg", msg))
			return fmt.Errorf("%w: invalid block %d", errProtocol, msg.Block.Index)
		} else if err != nil {
			st.logger.Error("failed to store block", zap.Object("msg", msg), zap.Error(err))
		}
	case MessageAck:
		l.OnAck(ch, msg.Index, msg.Length)
	case MessageUnavailable:
		l.OnUnavailable(ch, msg.Index)
	default:
		return fmt.Errorf("%w: unexpected message %s", errProtocol, msg.Type)
	}
	return nil
}

// open announces l to the peer and attaches it when the peer already announced it.
func (st *stream) open(dkey types.DiscoveryKey, l *blocklog.Log) {
	st.mu.Lock()
	if _, ok := st.local[dkey]; ok {
		st.mu.Unlock()
		return
	}
	st.local[dkey] = l
	st.mu.Unlock()
	st.send(&Message{Type: MessageOpen, Key: dkey})
	st.attach(dkey)
}

func (st *stream) onOpen(dkey types.DiscoveryKey) {
	st.mu.Lock()
	st.remote[dkey] = struct{}{}
	st.mu.Unlock()
	if l := st.r.lookup(dkey); l != nil {
		st.open(dkey, l)
	}
	st.attach(dkey)
}

// attach adds the channel to the log once both sides opened it.
func (st *stream) attach(dkey types.DiscoveryKey) {
	st.mu.Lock()
	l := st.local[dkey]
	_, remote := st.remote[dkey]
	_, exists := st.channels[dkey]
	if l == nil || !remote || exists {
		st.mu.Unlock()
		return
	}
	ch := &channel{st: st, key: dkey, log: l}
	st.channels[dkey] = ch
	st.mu.Unlock()
	st.logger.Debug("log channel opened", zap.String("log", l.Name()), zap.String("dkey", dkey.ShortString()))
	l.AddPeer(ch)
}

func (st *stream) close(dkey types.DiscoveryKey) {
	st.mu.Lock()
	_, ok := st.local[dkey]
	delete(st.local, dkey)
	st.mu.Unlock()
	if ok {
		st.send(&Message{Type: MessageClose, Key: dkey})
	}
	st.detach(dkey)
}

func (st *stream) onClose(dkey types.DiscoveryKey) {
	st.mu.Lock()
	delete(st.remote, dkey)
	st.mu.Unlock()
	st.detach(dkey)
}

func (st *stream) detach(dkey types.DiscoveryKey) {
	st.mu.Lock()
	ch := st.channels[dkey]
	delete(st.channels, dkey)
	st.mu.Unlock()
	if ch != nil {
		ch.log.RemovePeer(ch)
		st.logger.Debug("log channel closed", zap.String("dkey", dkey.ShortString()))
	}
}

func (st *stream) detachAll() {
	st.mu.Lock()
	channels := st.channels
	st.channels = map[types.DiscoveryKey]*channel{}
	st.mu.Unlock()
	for _, ch := range channels {
		ch.log.RemovePeer(ch)
	}
}

// channel is a single log replicated over a stream. It is the blocklog.Peer
// the log sees for the remote side.
type channel struct {
	st  *stream
	key types.DiscoveryKey
	log *blocklog.Log
}

var _ blocklog.Peer = (*channel)(nil)

func (c *channel) ID() peer.ID { return c.st.peer }

func (c *channel) Have(length uint64) {
	c.st.send(&Message{Type: MessageHave, Key: c.key, Length: length})
}

func (c *channel) Request(index types.BlockIndex) {
	c.st.send(&Message{Type: MessageRequest, Key: c.key, Index: index})
}

func (c *channel) Data(b *blocklog.Block) {
	c.st.send(&Message{Type: MessageData, Key: c.key, Block: b})
}

func (c *channel) Ack(start types.BlockIndex, length uint64) {
	c.st.send(&Message{Type: MessageAck, Key: c.key, Index: start, Length: length})
}

func (c *channel) Unavailable(index types.BlockIndex) {
	c.st.send(&Message{Type: MessageUnavailable, Key: c.key, Index: index})
}
