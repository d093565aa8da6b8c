package ack

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spacemeshos/go-publisher/metrics"
)

const subsystem = "ack"

var (
	observed = metrics.NewCounter(
		"events",
		subsystem,
		"ack channel events observed by trackers",
		[]string{"kind"},
	)
	ackEvents   = observed.WithLabelValues("ack")
	otherEvents = observed.WithLabelValues("other")

	blocksAcked = metrics.NewCounter(
		"blocks",
		subsystem,
		"blocks newly marked as acknowledged",
		[]string{"log"},
	)

	waits = metrics.NewCounter(
		"waits",
		subsystem,
		"range waits by outcome",
		[]string{"outcome"},
	)

	waitDuration = metrics.NewHistogramWithBuckets(
		"wait_duration_seconds",
		subsystem,
		"duration of range waits by outcome",
		[]string{"outcome"},
		prometheus.ExponentialBuckets(0.01, 2, 14),
	)
)
