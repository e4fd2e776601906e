package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// sampleWindow caps the processing-time ring buffer. Oldest samples are
// dropped first once the window is full.
const sampleWindow = 1000

// PipelineMetrics is process-local pipeline state: counters, queue depth and
// a capped ring of processing-time samples. Never persisted; resets on
// restart. Percentiles and totals are computed on read, not on write.
type PipelineMetrics struct {
	mu         sync.RWMutex
	queueDepth int
	processed  int64
	failed     int64
	dropped    int64
	samples    []time.Duration
	next       int
	full       bool
	errorKinds map[string]int64

	// Prometheus mirrors of the counters above, exported on /metrics.
	promProcessed prometheus.Counter
	promFailed    prometheus.Counter
	promDropped   prometheus.Counter
	promDepth     prometheus.Gauge
	promDuration  prometheus.Histogram
}

// Snapshot is a point-in-time view returned by the stats endpoint.
type Snapshot struct {
	QueueDepth int              `json:"queue_depth"`
	Processed  int64            `json:"processed"`
	Failed     int64            `json:"failed"`
	Dropped    int64            `json:"dropped"`
	P50Ms      int64            `json:"p50_ms"`
	P95Ms      int64            `json:"p95_ms"`
	P99Ms      int64            `json:"p99_ms"`
	ErrorKinds map[string]int64 `json:"error_kinds"`
}

// New builds pipeline metrics, registering the Prometheus mirrors with reg.
// A nil registerer wires the mirrors to a throwaway registry, which keeps
// tests free of global state.
func New(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &PipelineMetrics{
		samples:    make([]time.Duration, sampleWindow),
		errorKinds: make(map[string]int64),
		promProcessed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "argus_pipeline_events_processed_total",
			Help: "Total number of events processed successfully.",
		}),
		promFailed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "argus_pipeline_events_failed_total",
			Help: "Total number of events that failed terminally.",
		}),
		promDropped: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "argus_pipeline_events_dropped_total",
			Help: "Total number of events evicted from a full queue.",
		}),
		promDepth: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "argus_pipeline_queue_depth",
			Help: "Current number of queued events.",
		}),
		promDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "argus_pipeline_processing_seconds",
			Help:    "Histogram of per-event processing latencies.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// SetQueueDepth records the current queue depth.
func (m *PipelineMetrics) SetQueueDepth(depth int) {
	m.mu.Lock()
	m.queueDepth = depth
	m.mu.Unlock()
	m.promDepth.Set(float64(depth))
}

// RecordSuccess records one processed event and its elapsed time.
func (m *PipelineMetrics) RecordSuccess(elapsed time.Duration) {
	m.mu.Lock()
	m.processed++
	m.record(elapsed)
	m.mu.Unlock()
	m.promProcessed.Inc()
	m.promDuration.Observe(elapsed.Seconds())
}

// RecordFailure records one terminally failed event under an error kind.
func (m *PipelineMetrics) RecordFailure(kind string, elapsed time.Duration) {
	m.mu.Lock()
	m.failed++
	m.errorKinds[kind]++
	m.record(elapsed)
	m.mu.Unlock()
	m.promFailed.Inc()
	m.promDuration.Observe(elapsed.Seconds())
}

// RecordDrop records one event evicted from the full queue.
func (m *PipelineMetrics) RecordDrop() {
	m.mu.Lock()
	m.dropped++
	m.mu.Unlock()
	m.promDropped.Inc()
}

// record appends a sample to the ring. Caller holds the lock.
func (m *PipelineMetrics) record(elapsed time.Duration) {
	m.samples[m.next] = elapsed
	m.next++
	if m.next == sampleWindow {
		m.next = 0
		m.full = true
	}
}

// Read computes totals and percentiles from the current window.
func (m *PipelineMetrics) Read() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.next
	if m.full {
		n = sampleWindow
	}
	window := make([]time.Duration, n)
	copy(window, m.samples[:n])
	sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })

	kinds := make(map[string]int64, len(m.errorKinds))
	for k, v := range m.errorKinds {
		kinds[k] = v
	}

	return Snapshot{
		QueueDepth: m.queueDepth,
		Processed:  m.processed,
		Failed:     m.failed,
		Dropped:    m.dropped,
		P50Ms:      percentile(window, 50).Milliseconds(),
		P95Ms:      percentile(window, 95).Milliseconds(),
		P99Ms:      percentile(window, 99).Milliseconds(),
		ErrorKinds: kinds,
	}
}

// percentile returns the nearest-rank percentile of a sorted window.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
