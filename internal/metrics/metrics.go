// Package metrics exposes the counters of one linkage run to Prometheus.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name
const DefaultNamespace = "mdm"

// Pair outcome labels
const (
	PairsFused     = "fused"
	PairsMerged    = "merged"
	PairsKept      = "kept"
	PairsDropped   = "dropped"
	PairsCandidate = "candidate"
)

// Metrics holds the collectors of one run on its own registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	comparisons   *prometheus.CounterVec
	candidates    *prometheus.CounterVec
	blocks        *prometheus.CounterVec
	pairs         *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	records       prometheus.Gauge

	mu     sync.Mutex
	status Status
}

// Status is the progress snapshot served on /api/status
type Status struct {
	Stage     string           `json:"stage"`
	StartedAt time.Time        `json:"started_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Counts    map[string]int64 `json:"counts"`
	Done      bool             `json:"done"`
	Error     string           `json:"error,omitempty"`
}

// New registers the run collectors under namespace
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: reg,
		comparisons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comparisons_total",
			Help:      "Record pairs compared, by pass.",
		}, []string{"pass"}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Candidate pairs emitted, by pass.",
		}, []string{"pass"}),
		blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_total",
			Help:      "Work units scheduled, by pass.",
		}, []string{"pass"}),
		pairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_total",
			Help:      "Pairs by fusion and filter outcome.",
		}, []string{"outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "address_cache_lookups_total",
			Help:      "Address parse cache lookups, by result.",
		}, []string{"result"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"stage"}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records",
			Help:      "Records in the dataset of the current run.",
		}),
		status: Status{Stage: "idle", StartedAt: time.Now(), Counts: map[string]int64{}},
	}
	reg.MustRegister(m.comparisons, m.candidates, m.blocks, m.pairs, m.cacheLookups, m.stageDuration, m.records)
	return m
}

// Registry returns the run registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WriteTextfile dumps the registry for the node exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// Compared counts comparisons of a pass
func (m *Metrics) Compared(pass string, n int) {
	if m == nil {
		return
	}
	m.comparisons.WithLabelValues(pass).Add(float64(n))
	m.count(pass+".compared", n)
}

// Emitted counts candidates of a pass
func (m *Metrics) Emitted(pass string, n int) {
	if m == nil {
		return
	}
	m.candidates.WithLabelValues(pass).Add(float64(n))
	m.count(pass+".candidates", n)
}

// Blocks counts work units of a pass
func (m *Metrics) Blocks(pass string, n int) {
	if m == nil {
		return
	}
	m.blocks.WithLabelValues(pass).Add(float64(n))
	m.count(pass+".blocks", n)
}

// Pairs counts pairs with a fusion or filter outcome
func (m *Metrics) Pairs(outcome string, n int) {
	if m == nil {
		return
	}
	m.pairs.WithLabelValues(outcome).Add(float64(n))
	m.count("pairs."+outcome, n)
}

// Cache records the address cache statistics of a finished run
func (m *Metrics) Cache(hits, misses int64) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("hit").Add(float64(hits))
	m.cacheLookups.WithLabelValues("miss").Add(float64(misses))
	m.count("cache.hits", int(hits))
	m.count("cache.misses", int(misses))
}

// Records sets the dataset size
func (m *Metrics) Records(n int) {
	if m == nil {
		return
	}
	m.records.Set(float64(n))
	m.mu.Lock()
	m.status.Counts["records"] = int64(n)
	m.status.UpdatedAt = time.Now()
	m.mu.Unlock()
}

// StartStage marks stage as running and returns a func recording its duration
func (m *Metrics) StartStage(stage string) func() {
	if m == nil {
		return func() {}
	}
	m.mu.Lock()
	m.status.Stage = stage
	m.status.UpdatedAt = time.Now()
	m.mu.Unlock()

	start := time.Now()
	return func() {
		m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

// Finish marks the run as done, recording err when it failed
func (m *Metrics) Finish(err error) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.Done = true
	m.status.Stage = "done"
	if err != nil {
		m.status.Stage = "failed"
		m.status.Error = err.Error()
	}
	m.status.UpdatedAt = time.Now()
}

// Snapshot returns a copy of the current status
func (m *Metrics) Snapshot() Status {
	if m == nil {
		return Status{Stage: "idle", Counts: map[string]int64{}}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.status
	s.Counts = make(map[string]int64, len(m.status.Counts))
	for k, v := range m.status.Counts {
		s.Counts[k] = v
	}
	return s
}

func (m *Metrics) count(key string, n int) {
	m.mu.Lock()
	m.status.Counts[key] += int64(n)
	m.status.UpdatedAt = time.Now()
	m.mu.Unlock()
}
