package reorg

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reorgsDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transferindexor_reorgs_detected_total",
			Help: "Total number of blockchain reorganizations detected",
		},
	)

	reorgDepth = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transferindexor_reorg_depth_blocks",
			Help:    "Depth of blockchain reorganizations in blocks",
			Buckets: []float64{1, 2, 3, 5, 8, 10},
		},
	)

	reorgLastDetected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transferindexor_reorg_last_detected_timestamp",
			Help: "Unix timestamp of last reorg detection",
		},
	)

	reorgFromBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transferindexor_reorg_last_from_block",
			Help: "Block number where the last reorg started",
		},
	)

	reorgChecksSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transferindexor_reorg_check_heights_skipped_total",
			Help: "Heights skipped during a reorg check because a hash could not be read",
		},
		[]string{"source"},
	)
)

func ReorgDetectedLog(depth, fromBlock uint64) {
	reorgsDetected.Inc()
	reorgDepth.Observe(float64(depth))
	reorgLastDetected.Set(float64(time.Now().UTC().Unix()))
	reorgFromBlock.Set(float64(fromBlock))
}

func ReorgCheckSkippedInc(source string) {
	reorgChecksSkipped.WithLabelValues(source).Inc()
}
