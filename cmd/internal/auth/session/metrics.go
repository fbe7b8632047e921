package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics receives one observation per Service operation.
type Metrics interface {
	// ObserveOp records the outcome of op; err == nil means success.
	ObserveOp(op string, err error)
	// ObserveHash records how long one hash or verify computation took,
	// excluding time spent waiting for a hashing slot. Wire it to the
	// password pool's observer.
	ObserveHash(kind string, d time.Duration)
	// ObserveSweep records how many records one sweep deleted.
	ObserveSweep(deleted int64)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOp(string, error)           {}
func (noopMetrics) ObserveHash(string, time.Duration) {}
func (noopMetrics) ObserveSweep(int64)                {}

// PromMetrics exports session metrics to Prometheus.
type PromMetrics struct {
	ops   *prometheus.CounterVec
	hash  *prometheus.HistogramVec
	swept prometheus.Counter
}

// NewPromMetrics registers the session collectors on reg.
func NewPromMetrics(reg prometheus.Registerer) (*PromMetrics, error) {
	m := &PromMetrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Subsystem: "session",
			Name:      "operations_total",
			Help:      "Session operations by name and result kind.",
		}, []string{"op", "result"}),
		hash: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "authcore",
			Subsystem: "password",
			Name:      "duration_seconds",
			Help:      "Time spent hashing or verifying one password, excluding queueing for a slot.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"kind"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Subsystem: "session",
			Name:      "swept_records_total",
			Help:      "Expired refresh-token records deleted by the sweeper.",
		}),
	}
	for _, c := range []prometheus.Collector{m.ops, m.hash, m.swept} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PromMetrics) ObserveOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = KindOf(err).String()
	}
	m.ops.WithLabelValues(op, result).Inc()
}

func (m *PromMetrics) ObserveHash(kind string, d time.Duration) {
	m.hash.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *PromMetrics) ObserveSweep(deleted int64) {
	m.swept.Add(float64(deleted))
}
