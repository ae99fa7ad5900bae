package llm

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Router's prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	attempts  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	fallbacks *prometheus.CounterVec
	exhausted prometheus.Counter
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proposal",
			Subsystem: "llm",
			Name:      "attempts_total",
			Help:      "Provider call attempts by outcome.",
		}, []string{"provider", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "proposal",
			Subsystem: "llm",
			Name:      "attempt_duration_seconds",
			Help:      "Latency of a single provider attempt.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"provider"}),
		fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proposal",
			Subsystem: "llm",
			Name:      "fallbacks_total",
			Help:      "Fallbacks away from a failing provider.",
		}, []string{"from"}),
		exhausted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "proposal",
			Subsystem: "llm",
			Name:      "exhausted_total",
			Help:      "Calls that failed on every candidate provider.",
		}),
	}
}

func (m *Metrics) observeAttempt(provider string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.attempts.WithLabelValues(provider, outcome).Inc()
	m.duration.WithLabelValues(provider).Observe(time.Since(started).Seconds())
}

func (m *Metrics) observeFallback(from string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(from).Inc()
}

func (m *Metrics) observeExhausted() {
	if m == nil {
		return
	}
	m.exhausted.Inc()
}
