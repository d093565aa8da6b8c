package blocklog

import "github.com/spacemeshos/go-publisher/metrics"

const subsystem = "blocklog"

var (
	blocks = metrics.NewCounter(
		"blocks",
		subsystem,
		"blocks by operation",
		[]string{"op"},
	)
	appendedBlocks   = blocks.WithLabelValues("append")
	uploadedBlocks   = blocks.WithLabelValues("upload")
	downloadedBlocks = blocks.WithLabelValues("download")
	invalidBlocks    = blocks.WithLabelValues("invalid")

	requests = metrics.NewCounter(
		"requests",
		subsystem,
		"block requests sent to peers",
		[]string{},
	).WithLabelValues()

	cache = metrics.NewCounter(
		"cache",
		subsystem,
		"block cache lookups",
		[]string{"result"},
	)
	cacheHit  = cache.WithLabelValues("hit")
	cacheMiss = cache.WithLabelValues("miss")
)
