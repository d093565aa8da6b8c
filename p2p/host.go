// Package p2p starts the libp2p host used to replicate logs.
package p2p

import (
	"context"
	"errors"
	"fmt"
	"time"

	lp2plog "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/host/peerstore/pstoremem"
	"github.com/libp2p/go-libp2p/p2p/muxer/yamux"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/libp2p/go-libp2p/p2p/security/noise"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

// ErrNoBootnodes is returned by Bootstrap when none of the bootnodes could be reached.
var ErrNoBootnodes = errors.New("no bootnode reachable")

// DefaultConfig config.
func DefaultConfig() Config {
	return Config{
		Listen:             []string{"/ip4/0.0.0.0/tcp/0"},
		LowPeers:           20,
		HighPeers:          50,
		GracePeersShutdown: 30 * time.Second,
		DialTimeout:        10 * time.Second,
	}
}

// Config for all things related to p2p layer.
type Config struct {
	DataDir            string        `mapstructure:"-"`
	Listen             []string      `mapstructure:"listen"`
	Bootnodes          []string      `mapstructure:"bootnodes"`
	LowPeers           int           `mapstructure:"low-peers"`
	HighPeers          int           `mapstructure:"high-peers"`
	GracePeersShutdown time.Duration `mapstructure:"grace-peers-shutdown"`
	DialTimeout        time.Duration `mapstructure:"dial-timeout"`
	DisableReusePort   bool          `mapstructure:"disable-reuseport"`
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (c *Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("listen", fmt.Sprint(c.Listen))
	enc.AddInt("bootnodes", len(c.Bootnodes))
	enc.AddInt("low_peers", c.LowPeers)
	enc.AddInt("high_peers", c.HighPeers)
	enc.AddDuration("grace", c.GracePeersShutdown)
	return nil
}

// Opt is for configuring Host.
type Opt func(fh *Host)

// WithLog configures logger for Host.
func WithLog(logger *zap.Logger) Opt {
	return func(fh *Host) {
		fh.logger = logger
	}
}

// WithConfig sets Config for Host.
func WithConfig(cfg Config) Opt {
	return func(fh *Host) {
		fh.cfg = cfg
	}
}

// Host is a conveniency wrapper around host.Host that knows how to reach bootnodes
// and meters connections.
type Host struct {
	host.Host

	cfg    Config
	logger *zap.Logger
	meter  *connectionsMeter
}

// New initializes libp2p host configured for the publisher.
func New(_ context.Context, logger *zap.Logger, cfg Config, opts ...Opt) (*Host, error) {
	logger.Info("starting libp2p host", zap.Object("config", &cfg))
	lopts := []libp2p.Option{
		libp2p.ListenAddrStrings(cfg.Listen...),
		libp2p.UserAgent("go-publisher"),
		libp2p.Transport(tcp.NewTCPTransport, tcpOptions(cfg)...),
		libp2p.Security(noise.ID, noise.New),
		libp2p.Muxer(yamux.ID, yamux.DefaultTransport),
	}
	if cfg.DataDir != "" {
		key, err := EnsureIdentity(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		lopts = append(lopts, libp2p.Identity(key))
	}
	lp2plog.SetPrimaryCore(logger.Core())
	cm, err := connmgr.NewConnManager(cfg.LowPeers, cfg.HighPeers, connmgr.WithGracePeriod(cfg.GracePeersShutdown))
	if err != nil {
		return nil, fmt.Errorf("p2p create conn mgr: %w", err)
	}
	ps, err := pstoremem.NewPeerstore()
	if err != nil {
		return nil, fmt.Errorf("can't create peer store: %w", err)
	}
	g := newGater(cfg.HighPeers)
	lopts = append(lopts,
		libp2p.ConnectionManager(cm),
		libp2p.Peerstore(ps),
		libp2p.ConnectionGater(g),
	)
	h, err := libp2p.New(lopts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize libp2p host: %w", err)
	}
	g.setHost(h)
	logger.Info("local node identity",
		zap.Stringer("identity", h.ID()),
		zap.Array("addrs", multiaddrs(h.Addrs())),
	)
	opts = append([]Opt{WithConfig(cfg), WithLog(logger)}, opts...)
	return Upgrade(h, opts...), nil
}

func tcpOptions(cfg Config) []any {
	if cfg.DisableReusePort {
		return []any{tcp.DisableReuseport()}
	}
	return nil
}

// Upgrade creates Host instance from host.Host.
func Upgrade(h host.Host, opts ...Opt) *Host {
	fh := &Host{
		Host:   h,
		cfg:    DefaultConfig(),
		logger: zap.NewNop(),
		meter:  &connectionsMeter{},
	}
	for _, opt := range opts {
		opt(fh)
	}
	h.Network().Notify(fh.meter)
	return fh
}

// Bootstrap connects to all configured bootnodes concurrently.
// It succeeds if at least one of them could be reached or none is configured.
func (fh *Host) Bootstrap(ctx context.Context) error {
	if len(fh.cfg.Bootnodes) == 0 {
		return nil
	}
	infos, err := ParseAddrInfos(fh.cfg.Bootnodes)
	if err != nil {
		return err
	}
	var (
		eg      errgroup.Group
		reached = make([]bool, len(infos))
	)
	for i, info := range infos {
		eg.Go(func() error {
			ctx, cancel := context.WithTimeout(ctx, fh.cfg.DialTimeout)
			defer cancel()
			if err := fh.Connect(ctx, info); err != nil {
				fh.logger.Warn("failed to connect bootnode",
					zap.Stringer("peer", info.ID),
					zap.Error(err),
				)
				return nil
			}
			fh.logger.Debug("connected bootnode", zap.Stringer("peer", info.ID))
			reached[i] = true
			return nil
		})
	}
	eg.Wait()
	for _, ok := range reached {
		if ok {
			return nil
		}
	}
	return fmt.Errorf("%w: tried %d", ErrNoBootnodes, len(infos))
}

// Stop closes the host.
func (fh *Host) Stop() error {
	fh.Network().StopNotify(fh.meter)
	if err := fh.Host.Close(); err != nil {
		return fmt.Errorf("failed to close libp2p host: %w", err)
	}
	return nil
}

// ParseAddrInfos parses multiaddrs with a /p2p/ component.
func ParseAddrInfos(addrs []string) ([]peer.AddrInfo, error) {
	infos := make([]peer.AddrInfo, 0, len(addrs))
	for _, addr := range addrs {
		info, err := peer.AddrInfoFromString(addr)
		if err != nil {
			return nil, fmt.Errorf("parse into peer.AddrInfo %s: %w", addr, err)
		}
		infos = append(infos, *info)
	}
	return infos, nil
}

// FullAddrs returns the listen addresses of h with its peer id appended,
// in the form accepted by ParseAddrInfos.
func FullAddrs(h host.Host) ([]string, error) {
	addrs, err := peer.AddrInfoToP2pAddrs(&peer.AddrInfo{ID: h.ID(), Addrs: h.Addrs()})
	if err != nil {
		return nil, err
	}
	rst := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		rst = append(rst, addr.String())
	}
	return rst, nil
}

type multiaddrs []ma.Multiaddr

func (m multiaddrs) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, addr := range m {
		enc.AppendString(addr.String())
	}
	return nil
}
