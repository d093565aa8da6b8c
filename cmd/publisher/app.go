package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/spacemeshos/go-publisher/config"
	"github.com/spacemeshos/go-publisher/log"
	"github.com/spacemeshos/go-publisher/metrics"
	"github.com/spacemeshos/go-publisher/node"
	"github.com/spacemeshos/go-publisher/session"
)

// names of module loggers, as they appear in the logging section.
const (
	appLogger         = "app"
	p2pLogger         = "p2p"
	replicationLogger = "replication"
	storeLogger       = "store"
	driveLogger       = "drive"
	ackLogger         = "ack"
	sessionLogger     = "session"
)

var modules = []string{
	appLogger, p2pLogger, replicationLogger, storeLogger,
	driveLogger, ackLogger, sessionLogger,
}

const shutdownTimeout = 5 * time.Second

// app is a node and a session on top of it, plus the optional metrics server.
type app struct {
	logger  *zap.Logger
	node    *node.Node
	session *session.Session
	metrics *http.Server
}

// moduleLoggers returns a child of root for every module, at the level configured for it.
func moduleLoggers(root *zap.Logger, conf *config.Config) (map[string]*zap.Logger, error) {
	loggers := make(map[string]*zap.Logger, len(modules))
	for _, name := range modules {
		lvl, err := decodeLoggerLevel(conf, name)
		if err != nil {
			return nil, err
		}
		loggers[name] = log.Module(root, name, lvl)
	}
	return loggers, nil
}

func newApp(ctx context.Context, conf *config.Config) (*app, error) {
	// root logger is at debug level so that module loggers can be set to any level.
	root := log.NewWithLevel("publisher", zap.NewAtomicLevelAt(zap.DebugLevel), log.Encoder(conf.LOGGING.Encoder))
	loggers, err := moduleLoggers(root, conf)
	if err != nil {
		return nil, err
	}

	if conf.STORE.Persist {
		if err := os.MkdirAll(conf.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("ensure data dir exists: %w", err)
		}
	}
	n, err := node.New(ctx,
		node.WithLogger(loggers[appLogger]),
		node.WithModuleLoggers(loggers[p2pLogger], loggers[replicationLogger], loggers[storeLogger]),
		node.WithConfig(conf.STORE),
		node.WithP2PConfig(conf.P2P),
		node.WithReplicationConfig(conf.REPLICATION),
		node.WithDataDir(conf.DataDir),
	)
	if err != nil {
		return nil, fmt.Errorf("start node: %w", err)
	}
	a := &app{
		logger: loggers[appLogger],
		node:   n,
		session: session.New(session.NodeOpener{Node: n},
			session.WithLogger(loggers[sessionLogger]),
			session.WithModuleLoggers(loggers[driveLogger], loggers[ackLogger]),
			session.WithConfig(conf.SESSION),
		),
	}
	if conf.CollectMetrics {
		a.metrics = metrics.StartMetricsServer(a.logger, conf.MetricsPort)
	}
	if conf.MetricsPush != "" {
		metrics.StartPushingMetrics(ctx, a.logger, conf.MetricsPush,
			time.Duration(conf.MetricsPushPeriod)*time.Second, n.Host().ID().String())
	}
	return a, nil
}

// connect dials bootnodes. Failing to reach them is not fatal: sessions wait
// for inbound peers until the peer timeout.
func (a *app) connect(ctx context.Context) {
	if err := a.node.Connect(ctx); err != nil {
		a.logger.Warn("failed to connect to bootnodes", zap.Error(err))
	}
}

func (a *app) close() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.logger.Warn("failed to stop metrics server", zap.Error(err))
		}
	}
	if err := a.node.Close(); err != nil {
		a.logger.Warn("failed to close node", zap.Error(err))
	}
}
