// Package node holds everything a process needs to replicate logs: the libp2p
// host, the replicator and the block store shared by all open logs.
package node

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/libp2p/go-libp2p/core/host"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spacemeshos/go-publisher/blocklog"
	"github.com/spacemeshos/go-publisher/common/types"
	"github.com/spacemeshos/go-publisher/p2p"
	"github.com/spacemeshos/go-publisher/p2p/replication"
)

var (
	ErrAlreadyOpen = errors.New("log is already open")
	ErrClosed      = errors.New("node is closed")
)

const storeDir = "store"

// Config of the block store.
type Config struct {
	Persist   bool `mapstructure:"persist"`
	CacheSize int  `mapstructure:"cache-size"`
	// Window is the number of blocks an eager log keeps in flight.
	Window int `mapstructure:"window"`
}

func DefaultConfig() Config {
	return Config{
		CacheSize: 1024,
		Window:    64,
	}
}

// Opt to modify a Node.
type Opt func(*Node)

// WithLogger configures logger for the node. Loggers for internal components
// are named children of it unless set explicitly.
func WithLogger(logger *zap.Logger) Opt {
	return func(n *Node) {
		n.logger = logger
	}
}

// WithModuleLoggers sets the loggers of the p2p host, the replicator, the store and the logs.
func WithModuleLoggers(p2pLogger, replLogger, storeLogger *zap.Logger) Opt {
	return func(n *Node) {
		n.p2pLogger = p2pLogger
		n.replLogger = replLogger
		n.storeLogger = storeLogger
	}
}

// WithHost runs the node on top of an existing host. The host is not closed by Close.
func WithHost(h host.Host) Opt {
	return func(n *Node) {
		n.external = h
	}
}

// WithConfig sets the store config.
func WithConfig(cfg Config) Opt {
	return func(n *Node) {
		n.cfg = cfg
	}
}

// WithP2PConfig sets the config of the host created by New.
func WithP2PConfig(cfg p2p.Config) Opt {
	return func(n *Node) {
		n.p2pCfg = cfg
	}
}

// WithReplicationConfig sets the replication config.
func WithReplicationConfig(cfg replication.Config) Opt {
	return func(n *Node) {
		n.replCfg = cfg
	}
}

// WithDataDir sets the directory of the persistent store and of the host identity.
func WithDataDir(dir string) Opt {
	return func(n *Node) {
		n.dataDir = dir
	}
}

// Node replicates logs with peers. Logs are opened by seed and name when writable
// or joined by public key when read only.
type Node struct {
	logger      *zap.Logger
	p2pLogger   *zap.Logger
	replLogger  *zap.Logger
	storeLogger *zap.Logger
	cfg         Config
	p2pCfg      p2p.Config
	replCfg     replication.Config
	dataDir     string
	external    host.Host

	host       *p2p.Host
	store      blocklog.Store
	replicator *replication.Replicator
	cancel     context.CancelFunc
	eg         errgroup.Group

	mu     sync.Mutex
	closed bool
	logs   map[types.DiscoveryKey]*blocklog.Log
}

// New starts a node.
func New(ctx context.Context, opts ...Opt) (*Node, error) {
	n := &Node{
		logger:  zap.NewNop(),
		cfg:     DefaultConfig(),
		p2pCfg:  p2p.DefaultConfig(),
		replCfg: replication.DefaultConfig(),
		logs:    map[types.DiscoveryKey]*blocklog.Log{},
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.p2pLogger == nil {
		n.p2pLogger = n.logger.Named("p2p")
	}
	if n.replLogger == nil {
		n.replLogger = n.logger.Named("replication")
	}
	if n.storeLogger == nil {
		n.storeLogger = n.logger.Named("store")
	}

	if n.cfg.Persist {
		if n.dataDir == "" {
			return nil, errors.New("persistent store requires a data directory")
		}
		store, err := blocklog.OpenLevelStore(filepath.Join(n.dataDir, storeDir),
			blocklog.WithStoreLogger(n.storeLogger),
			blocklog.WithCacheSize(n.cfg.CacheSize),
		)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		n.store = store
	} else {
		n.store = blocklog.NewMemoryStore()
	}

	if n.external != nil {
		n.host = p2p.Upgrade(n.external, p2p.WithLog(n.p2pLogger), p2p.WithConfig(n.p2pCfg))
	} else {
		cfg := n.p2pCfg
		if n.cfg.Persist {
			cfg.DataDir = n.dataDir
		}
		h, err := p2p.New(ctx, n.p2pLogger, cfg)
		if err != nil {
			n.store.Close()
			return nil, err
		}
		n.host = h
	}

	n.replicator = replication.New(n.host,
		replication.WithLogger(n.replLogger),
		replication.WithConfig(n.replCfg),
	)
	ctx, n.cancel = context.WithCancel(context.Background())
	n.eg.Go(func() error {
		return n.replicator.Run(ctx)
	})
	<-n.replicator.Ready()
	n.logger.Info("node started",
		zap.Stringer("id", n.host.ID()),
		zap.Bool("persist", n.cfg.Persist),
		zap.Bool("external_host", n.external != nil),
	)
	return n, nil
}

// Host returns the p2p host of the node.
func (n *Node) Host() *p2p.Host { return n.host }

// Connect dials the configured bootnodes.
func (n *Node) Connect(ctx context.Context) error {
	return n.host.Bootstrap(ctx)
}

// Open opens the writable log called name owned by seed.
func (n *Node) Open(ctx context.Context, seed types.Seed, name string, opts ...blocklog.Opt) (*blocklog.Log, error) {
	signer, err := blocklog.DeriveSigner(seed, name)
	if err != nil {
		return nil, fmt.Errorf("derive key for %s: %w", name, err)
	}
	opts = append([]blocklog.Opt{
		blocklog.WithName(name),
		blocklog.WithPrivateKey(signer.PrivateKey()),
	}, opts...)
	return n.open(ctx, signer.PublicKey(), opts)
}

// Join opens the log with the given public key. It is read only unless a
// private key is passed in opts.
func (n *Node) Join(ctx context.Context, key types.PublicKey, opts ...blocklog.Opt) (*blocklog.Log, error) {
	opts = append([]blocklog.Opt{blocklog.WithName(key.ShortString())}, opts...)
	return n.open(ctx, key, opts)
}

func (n *Node) open(ctx context.Context, key types.PublicKey, opts []blocklog.Opt) (*blocklog.Log, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dkey := blocklog.DiscoveryKeyOf(key)
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ErrClosed
	}
	if _, exists := n.logs[dkey]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyOpen, key.ShortString())
	}
	var unregister func()
	defaults := []blocklog.Opt{blocklog.WithLogger(n.storeLogger)}
	if n.cfg.Window > 0 {
		defaults = append(defaults, blocklog.WithWindow(n.cfg.Window))
	}
	opts = append(defaults, opts...)
	opts = append(opts, blocklog.WithCloseHook(func() {
		unregister()
		n.mu.Lock()
		delete(n.logs, dkey)
		n.mu.Unlock()
	}))
	l, err := blocklog.New(key, n.store, opts...)
	if err != nil {
		return nil, err
	}
	n.logs[dkey] = l
	unregister = n.replicator.Register(l)
	return l, nil
}

// Logs returns all open logs.
func (n *Node) Logs() []*blocklog.Log {
	n.mu.Lock()
	defer n.mu.Unlock()
	rst := make([]*blocklog.Log, 0, len(n.logs))
	for _, l := range n.logs {
		rst = append(rst, l)
	}
	return rst
}

// Close closes all logs, stops replication, closes the store and the host
// unless it was passed with WithHost.
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	for _, l := range n.Logs() {
		l.Close()
	}
	n.cancel()
	n.eg.Wait()
	var errs []error
	if err := n.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if n.external == nil {
		if err := n.host.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	n.logger.Info("node stopped")
	return errors.Join(errs...)
}
