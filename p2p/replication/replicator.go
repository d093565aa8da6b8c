// Package replication runs the block log replication protocol over libp2p streams.
//
// A single stream is opened per connection by the dialing side. Logs are
// multiplexed on it by discovery key: a log starts replicating with a peer once
// both sides sent Open for it, so a peer learns only about logs whose key it
// already knows.
package replication

import (
	"context"
	"errors"
	"sync"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/spacemeshos/go-publisher/blocklog"
	"github.com/spacemeshos/go-publisher/common/types"
)

// ProtocolID identifies the replication protocol.
const ProtocolID protocol.ID = "/publisher/replicate/1.0.0"

var ErrRunning = errors.New("replicator is already running")

// Config parametrizes the replicator.
type Config struct {
	// MaxMessageSize bounds a single framed message.
	MaxMessageSize int `mapstructure:"max-message-size"`
	// RequestsPerSecond limits block requests served on a single stream.
	RequestsPerSecond int `mapstructure:"requests-per-second"`
	RequestsBurst     int `mapstructure:"requests-burst"`
}

func DefaultConfig() Config {
	return Config{
		MaxMessageSize:    blocklog.MaxBlockSize + 1024,
		RequestsPerSecond: 2000,
		RequestsBurst:     256,
	}
}

// Opt is a type to configure a replicator.
type Opt func(*Replicator)

// WithLogger configures logger for the replicator.
func WithLogger(logger *zap.Logger) Opt {
	return func(r *Replicator) {
		r.logger = logger
	}
}

// WithConfig overwrites the default config.
func WithConfig(cfg Config) Opt {
	return func(r *Replicator) {
		r.cfg = cfg
	}
}

// Replicator serves registered logs to every peer that connects over ProtocolID.
type Replicator struct {
	logger *zap.Logger
	cfg    Config
	h      host.Host

	ready chan struct{}

	mu      sync.Mutex
	ctx     context.Context
	closing bool
	eg      errgroup.Group
	logs    map[types.DiscoveryKey]*blocklog.Log
	streams map[*stream]struct{}
}

// New creates a replicator on top of h. It does nothing until Run is called.
func New(h host.Host, opts ...Opt) *Replicator {
	r := &Replicator{
		logger:  zap.NewNop(),
		cfg:     DefaultConfig(),
		h:       h,
		ready:   make(chan struct{}),
		logs:    map[types.DiscoveryKey]*blocklog.Log{},
		streams: map[*stream]struct{}{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register starts replicating l on all current and future streams.
// The returned function stops replicating it.
func (r *Replicator) Register(l *blocklog.Log) func() {
	dkey := l.DiscoveryKey()
	r.mu.Lock()
	r.logs[dkey] = l
	streams := r.snapshot()
	r.mu.Unlock()
	for _, st := range streams {
		st.open(dkey, l)
	}
	r.logger.Debug("registered log", zap.String("log", l.Name()), zap.String("dkey", dkey.ShortString()))
	var once sync.Once
	return func() {
		once.Do(func() { r.unregister(dkey, l) })
	}
}

func (r *Replicator) unregister(dkey types.DiscoveryKey, l *blocklog.Log) {
	r.mu.Lock()
	if r.logs[dkey] == l {
		delete(r.logs, dkey)
	}
	streams := r.snapshot()
	r.mu.Unlock()
	for _, st := range streams {
		st.close(dkey)
	}
}

func (r *Replicator) lookup(dkey types.DiscoveryKey) *blocklog.Log {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logs[dkey]
}

func (r *Replicator) registered() map[types.DiscoveryKey]*blocklog.Log {
	r.mu.Lock()
	defer r.mu.Unlock()
	logs := make(map[types.DiscoveryKey]*blocklog.Log, len(r.logs))
	for k, l := range r.logs {
		logs[k] = l
	}
	return logs
}

// snapshot must be called with mu held.
func (r *Replicator) snapshot() []*stream {
	rst := make([]*stream, 0, len(r.streams))
	for st := range r.streams {
		rst = append(rst, st)
	}
	return rst
}

// Run accepts and dials replication streams until ctx is done.
func (r *Replicator) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.ctx != nil {
		r.mu.Unlock()
		return ErrRunning
	}
	r.ctx = ctx
	r.mu.Unlock()

	r.h.SetStreamHandler(ProtocolID, r.handleStream)
	notifiee := &network.NotifyBundle{
		ConnectedF: func(_ network.Network, c network.Conn) {
			r.connected(c)
		},
	}
	r.h.Network().Notify(notifiee)
	for _, c := range r.h.Network().Conns() {
		r.connected(c)
	}
	r.logger.Info("replicator started", zap.String("protocol", string(ProtocolID)))
	close(r.ready)

	<-ctx.Done()
	r.h.RemoveStreamHandler(ProtocolID)
	r.h.Network().StopNotify(notifiee)
	r.mu.Lock()
	r.closing = true
	for st := range r.streams {
		st.s.Reset()
	}
	r.mu.Unlock()
	r.eg.Wait()
	r.logger.Info("replicator stopped")
	return nil
}

// Ready is closed once Run accepts streams.
func (r *Replicator) Ready() <-chan struct{} {
	return r.ready
}

// spawn runs fn on the replicator errgroup unless it is shutting down.
func (r *Replicator) spawn(fn func(ctx context.Context)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx == nil || r.closing {
		return false
	}
	ctx := r.ctx
	r.eg.Go(func() error {
		fn(ctx)
		return nil
	})
	return true
}

func (r *Replicator) connected(c network.Conn) {
	if c.Stat().Direction != network.DirOutbound {
		return
	}
	pid := c.RemotePeer()
	r.spawn(func(ctx context.Context) {
		r.dial(ctx, pid)
	})
}

func (r *Replicator) dial(ctx context.Context, pid peer.ID) {
	s, err := r.h.NewStream(network.WithNoDial(ctx, "replicate"), pid, ProtocolID)
	if err != nil {
		r.logger.Debug("failed to open replication stream", zap.Stringer("peer", pid), zap.Error(err))
		return
	}
	r.serve(ctx, s)
}

func (r *Replicator) handleStream(s network.Stream) {
	if !r.spawn(func(ctx context.Context) { r.serve(ctx, s) }) {
		s.Reset()
	}
}

func (r *Replicator) serve(ctx context.Context, s network.Stream) {
	st := newStream(r, s)
	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		s.Reset()
		return
	}
	r.streams[st] = struct{}{}
	r.mu.Unlock()
	streams.Inc()
	defer func() {
		r.mu.Lock()
		delete(r.streams, st)
		r.mu.Unlock()
		streams.Dec()
	}()
	err := st.run(ctx)
	r.logger.Debug("replication stream closed",
		zap.Stringer("peer", st.peer),
		zap.Stringer("dir", s.Stat().Direction),
		zap.Error(err),
	)
}

// Peers returns peers that have an active replication stream.
func (r *Replicator) Peers() []peer.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[peer.ID]struct{}{}
	var rst []peer.ID
	for st := range r.streams {
		if _, ok := seen[st.peer]; !ok {
			seen[st.peer] = struct{}{}
			rst = append(rst, st.peer)
		}
	}
	return rst
}

func newLimiter(cfg Config) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.RequestsBurst, 1))
}
