package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

// StartPushingMetrics pushes the default registry to a prometheus pushgateway at url
// every period until ctx is done.
func StartPushingMetrics(ctx context.Context, logger *zap.Logger, url string, period time.Duration, instance string) {
	pusher := push.New(url, "publisher").
		Gatherer(prometheus.DefaultGatherer).
		Grouping("instance", instance)
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := pusher.PushContext(ctx); err != nil {
					logger.Warn("failed to push metrics", zap.String("url", url), zap.Error(err))
				}
			}
		}
	}()
}
