package ratelimit

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Verdict label values for decision metrics.
const (
	verdictAllowed   = "allowed"
	verdictThrottled = "throttled"
	verdictError     = "error"
)

// verdict maps an admission result to its metric label.
func verdict(allowed bool) string {
	if allowed {
		return verdictAllowed
	}
	return verdictThrottled
}

// Metrics holds Prometheus metrics for rate-limit decisions.
type Metrics struct {
	decisionsTotal *prometheus.CounterVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton rate-limit metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			decisionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "warden",
					Subsystem: "ratelimit",
					Name:      "decisions_total",
					Help:      "Rate-limit admission decisions by limiter and verdict.",
				},
				[]string{"limiter", "verdict"},
			),
		}
	})
	return metricsInstance
}

// MustRegister registers the rate-limit collectors with the given
// registry. promauto registers with the global default registry; this
// bridges the collectors onto the registry the gateway serves /metrics
// from.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(m.decisionsTotal)
}

// Init pre-creates common label combinations so the series appear in
// /metrics output before the first decision.
func (m *Metrics) Init(limiters ...string) {
	for _, name := range limiters {
		for _, v := range []string{verdictAllowed, verdictThrottled, verdictError} {
			m.decisionsTotal.WithLabelValues(name, v)
		}
	}
}
