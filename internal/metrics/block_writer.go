package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	blockWriterFlushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "block_writer",
		Name:      "flush_total",
		Help:      "Count of block batch flushes.",
	}, []string{"status"})

	blockWriterFlushDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "block_writer",
		Name:      "flush_duration_seconds",
		Help:      "Duration of flushing a block batch.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})

	blockWriterFlushSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "block_writer",
		Name:      "flush_blocks",
		Help:      "Number of blocks per flush.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})
)

// BlockWriter tracks metrics for persisting sealed blocks.
type BlockWriter struct{}

// NewBlockWriter constructs a BlockWriter metrics collector.
func NewBlockWriter() *BlockWriter {
	return &BlockWriter{}
}

// ObserveFlush records a flush of blocks to the repository.
func (m BlockWriter) ObserveFlush(err error, blocks int, started time.Time) {
	status := statusOf(err)
	blockWriterFlushTotal.WithLabelValues(status).Inc()
	blockWriterFlushDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
	blockWriterFlushSize.Observe(float64(blocks))
}
