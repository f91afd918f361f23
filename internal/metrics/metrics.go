package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database metrics
	dbQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transferindexor_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"db", "operation"},
	)

	dbQueryTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transferindexor_db_query_duration_seconds",
			Help:    "Duration of database queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"db", "operation"},
	)

	dbErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transferindexor_db_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"db", "operation"},
	)

	// Indexing metrics
	LastIndexedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "transferindexor_last_indexed_block",
			Help: "The last block number successfully indexed",
		},
		[]string{"token"},
	)

	FinalizedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "transferindexor_finalized_block",
			Help: "The latest block considered final (tip minus finality depth)",
		},
		[]string{"token"},
	)

	BlocksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transferindexor_blocks_processed_total",
			Help: "Total number of blocks checkpointed",
		},
		[]string{"token"},
	)

	TransfersIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transferindexor_transfers_indexed_total",
			Help: "Total number of transfer events inserted",
		},
		[]string{"token"},
	)

	TransfersSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transferindexor_transfers_skipped_total",
			Help: "Total number of logs not stored, by reason",
		},
		[]string{"token", "reason"},
	)

	BatchProcessingTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transferindexor_batch_processing_duration_seconds",
			Help:    "Time taken to process a batch of blocks",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"token"},
	)

	BatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transferindexor_batch_failures_total",
			Help: "Total number of batches abandoned and retried after back-off",
		},
		[]string{"token"},
	)

	IndexingRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "transferindexor_indexing_rate_blocks_per_second",
			Help: "Current indexing rate in blocks per second",
		},
		[]string{"token"},
	)

	// System metrics
	Uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transferindexor_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)

	ComponentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "transferindexor_component_health",
			Help: "Component health status (1=healthy, 0=unhealthy)",
		},
		[]string{"component"},
	)

	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transferindexor_goroutines",
			Help: "Number of active goroutines",
		},
	)

	MemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "transferindexor_memory_usage_bytes",
			Help: "Memory usage statistics",
		},
		[]string{"type"},
	)

	startTime = time.Now()
)

func DBQueryInc(db string, operation string) {
	dbQueries.WithLabelValues(db, operation).Inc()
}

func DBQueryDuration(db string, operation string, duration time.Duration) {
	dbQueryTime.WithLabelValues(db, operation).Observe(duration.Seconds())
}

func DBErrorsInc(db string, operation string) {
	dbErrors.WithLabelValues(db, operation).Inc()
}

// DBObserve records one query of operation against db started at start.
func DBObserve(db, operation string, start time.Time, err error) {
	DBQueryInc(db, operation)
	DBQueryDuration(db, operation, time.Since(start))
	if err != nil {
		DBErrorsInc(db, operation)
	}
}

func BatchProcessingTimeLog(token string, duration time.Duration) {
	BatchProcessingTime.WithLabelValues(token).Observe(duration.Seconds())
}

func BatchFailuresInc(token string) {
	BatchFailures.WithLabelValues(token).Inc()
}

func LastIndexedBlockSet(token string, blockNum uint64) {
	LastIndexedBlock.WithLabelValues(token).Set(float64(blockNum))
}

func FinalizedBlockSet(token string, blockNum uint64) {
	FinalizedBlock.WithLabelValues(token).Set(float64(blockNum))
}

func BlocksProcessedInc(token string, count uint64) {
	BlocksProcessed.WithLabelValues(token).Add(float64(count))
}

func TransfersIndexedInc(token string, count int) {
	TransfersIndexed.WithLabelValues(token).Add(float64(count))
}

func TransfersSkippedInc(token, reason string) {
	TransfersSkipped.WithLabelValues(token, reason).Inc()
}

func IndexingRateLog(token string, rate float64) {
	IndexingRate.WithLabelValues(token).Set(rate)
}

func ComponentHealthSet(component string, healthy bool) {
	boolAsFloat := float64(1)
	if !healthy {
		boolAsFloat = 0
	}

	ComponentHealth.WithLabelValues(component).Set(boolAsFloat)
}

// UpdateSystemMetrics updates runtime system metrics.
// This should be called periodically (e.g., every 15 seconds).
func UpdateSystemMetrics() {
	Uptime.Set(time.Since(startTime).Seconds())

	Goroutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	MemoryUsage.WithLabelValues("alloc").Set(float64(m.Alloc))
	MemoryUsage.WithLabelValues("total_alloc").Set(float64(m.TotalAlloc))
	MemoryUsage.WithLabelValues("sys").Set(float64(m.Sys))
	MemoryUsage.WithLabelValues("heap_inuse").Set(float64(m.HeapInuse))
}
