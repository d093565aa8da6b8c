package session

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spacemeshos/go-publisher/metrics"
)

const subsystem = "session"

var (
	sessions = metrics.NewCounter(
		"sessions",
		subsystem,
		"finished sessions by operation and outcome",
		[]string{"op", "outcome"},
	)

	phaseDuration = metrics.NewHistogramWithBuckets(
		"phase_duration_seconds",
		subsystem,
		"time spent in each session phase",
		[]string{"op", "phase"},
		prometheus.ExponentialBuckets(0.001, 4, 10),
	)

	changes = metrics.NewCounter(
		"changes",
		subsystem,
		"applied changes by kind",
		[]string{"kind"},
	)
)
