package replication

import "github.com/spacemeshos/go-publisher/metrics"

const subsystem = "replication"

var (
	messages = metrics.NewCounter(
		"messages",
		subsystem,
		"replication messages by direction and type",
		[]string{"dir", "type"},
	)
	streams = metrics.NewGauge(
		"streams",
		subsystem,
		"open replication streams",
		[]string{},
	).WithLabelValues()
	dropped = metrics.NewCounter(
		"dropped",
		subsystem,
		"incoming messages dropped by reason",
		[]string{"reason"},
	)
	droppedUnknownLog   = dropped.WithLabelValues("unknown_log")
	droppedInvalidBlock = dropped.WithLabelValues("invalid_block")
)

func sent(t MessageType) {
	messages.WithLabelValues("out", t.String()).Inc()
}

func received(t MessageType) {
	messages.WithLabelValues("in", t.String()).Inc()
}
