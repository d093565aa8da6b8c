// Package cmd holds what the publisher executables share: build info and the
// flags bound to the configuration.
package cmd

import (
	"github.com/spf13/pflag"

	"github.com/spacemeshos/go-publisher/config"
)

var (
	// Version is the app's semantic version. Designed to be overwritten by make.
	Version string

	// Commit is the git commit used to build the app. Designed to be overwritten by make.
	Commit string
)

// AddFlags adds cobra flags bound to cfg to flagSet and returns the path
// of the config file to load.
func AddFlags(flagSet *pflag.FlagSet, cfg *config.Config) (configPath *string) {
	/** ======================== BaseConfig Flags ========================== **/
	flagSet.StringVarP(&cfg.ConfigFile, "config", "c",
		cfg.ConfigFile, "load configuration from file")
	flagSet.StringVarP(&cfg.DataDir, "data-dir", "d",
		cfg.DataDir, "directory for the block store and the p2p identity")
	flagSet.StringVar(&cfg.LOGGING.Encoder, "log-encoder",
		cfg.LOGGING.Encoder, "log as JSON instead of plain text")
	flagSet.BoolVar(&cfg.CollectMetrics, "metrics",
		cfg.CollectMetrics, "collect metrics")
	flagSet.IntVar(&cfg.MetricsPort, "metrics-port",
		cfg.MetricsPort, "metric server port")
	flagSet.StringVar(&cfg.MetricsPush, "metrics-push",
		cfg.MetricsPush, "push metrics to url")
	flagSet.IntVar(&cfg.MetricsPushPeriod, "metrics-push-period",
		cfg.MetricsPushPeriod, "push period in seconds")

	/** ======================== P2P Flags ========================== **/
	flagSet.StringSliceVar(&cfg.P2P.Listen, "listen",
		cfg.P2P.Listen, "addresses for listening")
	flagSet.StringSliceVar(&cfg.P2P.Bootnodes, "bootnodes",
		cfg.P2P.Bootnodes, "peers to connect to on start")
	flagSet.IntVar(&cfg.P2P.LowPeers, "low-peers",
		cfg.P2P.LowPeers, "low watermark for the number of connections")
	flagSet.IntVar(&cfg.P2P.HighPeers, "high-peers",
		cfg.P2P.HighPeers, "high watermark for the number of connections")
	flagSet.DurationVar(&cfg.P2P.DialTimeout, "dial-timeout",
		cfg.P2P.DialTimeout, "timeout for connecting to a bootnode")
	flagSet.BoolVar(&cfg.P2P.DisableReusePort, "disable-reuseport",
		cfg.P2P.DisableReusePort, "disables SO_REUSEPORT for tcp sockets")

	/** ======================== Store Flags ========================== **/
	flagSet.BoolVar(&cfg.STORE.Persist, "persist",
		cfg.STORE.Persist, "store blocks and identity in the data dir instead of memory")
	flagSet.IntVar(&cfg.STORE.CacheSize, "cache-size",
		cfg.STORE.CacheSize, "number of blocks kept in the read cache")

	/** ======================== Session Flags ========================== **/
	flagSet.DurationVar(&cfg.SESSION.PeerTimeout, "peer-timeout",
		cfg.SESSION.PeerTimeout, "how long to wait for the first peer")
	flagSet.DurationVar(&cfg.SESSION.UpdateTimeout, "update-timeout",
		cfg.SESSION.UpdateTimeout, "how long to wait for the metadata of an existing drive")
	flagSet.DurationVar(&cfg.SESSION.AckTimeout, "ack-timeout",
		cfg.SESSION.AckTimeout, "how long to wait for peers to acknowledge written blocks, 0 waits forever")
	flagSet.IntVar(&cfg.SESSION.BlockSize, "block-size",
		cfg.SESSION.BlockSize, "size of content blocks")
	flagSet.BoolVar(&cfg.SESSION.CompareContent, "compare-content",
		cfg.SESSION.CompareContent, "compare hashes of files with equal size and mtime")

	return &cfg.ConfigFile
}
