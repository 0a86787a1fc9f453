package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var HistogramBuckets = []float64{
	// fast responses (0 - 500ms)
	25, 50, 75, 100, 150, 200, 300, 400, 500,
	// medium responses (500ms - 2s)
	750, 1000, 1250, 1500, 1750, 2000,
	// slow responses (2s - 15s)
	2500, 3000, 4000, 5000, 7500, 10000, 15000,
	// long tail
	30000, 60000, 120000,
}

// Metric is a definition for the name, description, type, ID, and
// prometheus.Collector type (i.e. CounterVec, HistogramVec, etc) of each metric
type Metric struct {
	MetricCollector prometheus.Collector
	ID              string
	Name            string
	Description     string
	Type            string
	Args            []string
}

// NewMetric associates prometheus.Collector based on Metric.Type
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	var metric prometheus.Collector
	switch m.Type {
	case "counter_vec":
		metric = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	case "counter":
		metric = prometheus.NewCounter(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
		)
	case "gauge_vec":
		metric = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	case "histogram_vec":
		metric = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
				Buckets:   HistogramBuckets,
			},
			m.Args,
		)
	}
	return metric
}

// Sink is the fire-and-forget metrics interface consumed by the engine's
// services. Implementations must never affect control flow.
type Sink interface {
	// Count increments the operation counter for the given outcome
	// ("success" or a failure kind).
	Count(operation, outcome string)
	// Timer returns a stop function observing the elapsed time of operation.
	Timer(operation string) func()
}

type promSink struct {
	ops *prometheus.CounterVec
	dur *prometheus.HistogramVec
}

// NewSink registers and returns the engine's business metrics.
func NewSink() Sink {
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "subscription",
		Name:      "ops_total",
		Help:      "Engine operations partitioned by operation and outcome.",
	}, []string{"operation", "outcome"})
	dur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "subscription",
		Name:      "op_dur_ms",
		Help:      "Engine operation latency in milliseconds.",
		Buckets:   HistogramBuckets,
	}, []string{"operation"})
	// duplicate registration only happens in tests; ignore it
	_ = prometheus.Register(ops)
	_ = prometheus.Register(dur)
	return &promSink{ops: ops, dur: dur}
}

func (s *promSink) Count(operation, outcome string) {
	s.ops.WithLabelValues(operation, outcome).Inc()
}

func (s *promSink) Timer(operation string) func() {
	start := time.Now()
	return func() {
		s.dur.WithLabelValues(operation).Observe(float64(time.Since(start).Milliseconds()))
	}
}

// NopSink discards all measurements; used in tests.
type NopSink struct{}

func (NopSink) Count(string, string) {}

func (NopSink) Timer(string) func() { return func() {} }
