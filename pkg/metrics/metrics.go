// Package metrics exposes Prometheus metrics for extraction runs.
//
//	collector := metrics.NewCollector("gocardless")
//	collector.RecordPage("payments", 500)
//	collector.ObserveRequest("payments", 200, time.Since(start))
//
// Metrics register with the default registry through promauto.
package metrics

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsExtracted counts records read from the API.
	// Labels: connector, stream
	RecordsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_records_extracted_total",
			Help: "Total number of records read from the upstream API",
		},
		[]string{"connector", "stream"},
	)

	// RecordsWritten counts records accepted by a sink.
	// Labels: destination, stream
	RecordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_records_written_total",
			Help: "Total number of records written by the sink",
		},
		[]string{"destination", "stream"},
	)

	// PagesFetched counts list pages.
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_pages_fetched_total",
			Help: "Total number of API pages fetched",
		},
		[]string{"connector", "stream"},
	)

	// RequestDuration tracks API request latency in seconds.
	// Labels: connector, endpoint, status
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nebula_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"connector", "endpoint", "status"},
	)

	// RequestErrors counts failed requests by error type.
	RequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_request_errors_total",
			Help: "Total number of failed API requests",
		},
		[]string{"connector", "type"},
	)

	// StateCheckpoints counts state saves.
	// Labels: stream, backend
	StateCheckpoints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_state_checkpoints_total",
			Help: "Total number of stream state checkpoints",
		},
		[]string{"stream", "backend"},
	)

	// ActiveConnections tracks in-flight HTTP requests
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nebula_active_connections",
			Help: "Number of in-flight HTTP requests",
		},
		[]string{"client"},
	)

	// CircuitBreakerState reports 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nebula_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	// Throughput tracks records per second per stream
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nebula_throughput_records_per_second",
			Help: "Current throughput in records per second",
		},
		[]string{"source", "stream"},
	)
)

// Collector records metrics for one connector and keeps local totals for
// the connector's Metrics() report.
type Collector struct {
	name      string
	startTime time.Time

	pages    int64
	records  int64
	requests int64
	errors   int64

	mu      sync.RWMutex
	streams map[string]int64
}

// NewCollector creates a collector labelled with the connector name.
func NewCollector(name string) *Collector {
	return &Collector{
		name:      name,
		startTime: time.Now(),
		streams:   make(map[string]int64),
	}
}

// RecordPage records one fetched page carrying n records.
func (c *Collector) RecordPage(stream string, n int) {
	atomic.AddInt64(&c.pages, 1)
	atomic.AddInt64(&c.records, int64(n))
	PagesFetched.WithLabelValues(c.name, stream).Inc()
	RecordsExtracted.WithLabelValues(c.name, stream).Add(float64(n))

	c.mu.Lock()
	c.streams[stream] += int64(n)
	c.mu.Unlock()
}

// ObserveRequest records the latency and status of one request.
func (c *Collector) ObserveRequest(endpoint string, status int, d time.Duration) {
	atomic.AddInt64(&c.requests, 1)
	RequestDuration.WithLabelValues(c.name, endpoint, strconv.Itoa(status)).Observe(d.Seconds())
}

// RecordError counts a failed request.
func (c *Collector) RecordError(errType string) {
	atomic.AddInt64(&c.errors, 1)
	RequestErrors.WithLabelValues(c.name, errType).Inc()
}

// StreamRecords returns how many records were read for stream.
func (c *Collector) StreamRecords(stream string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.streams[stream]
}

// GetAll returns the collector's local totals.
func (c *Collector) GetAll() map[string]interface{} {
	c.mu.RLock()
	perStream := make(map[string]int64, len(c.streams))
	for k, v := range c.streams {
		perStream[k] = v
	}
	c.mu.RUnlock()

	return map[string]interface{}{
		"component":         c.name,
		"start_time":        c.startTime,
		"uptime":            time.Since(c.startTime).Seconds(),
		"pages_fetched":     atomic.LoadInt64(&c.pages),
		"records_extracted": atomic.LoadInt64(&c.records),
		"requests":          atomic.LoadInt64(&c.requests),
		"request_errors":    atomic.LoadInt64(&c.errors),
		"records_by_stream": perStream,
	}
}

// Timer measures the duration of one operation.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer starts a timer.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop returns the elapsed time since creation. It may be called repeatedly.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker computes records per second over a window. Safe for
// concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	source    string
	stream    string
}

// NewThroughputTracker creates a tracker for one stream.
func NewThroughputTracker(source, stream string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		source:    source,
		stream:    stream,
	}
}

// Increment adds n to the record count.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset returns records per second since the last reset, publishes
// it to the Throughput gauge and starts a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed
	t.count = 0
	t.lastReset = time.Now()

	Throughput.WithLabelValues(t.source, t.stream).Set(throughput)
	return throughput
}
