package gateway

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for check decisions.
const (
	outcomeAllowed   = "allowed"
	outcomeDenied    = "denied"
	outcomeBadInput  = "bad_input"
	outcomeThrottled = "throttled"
)

// Result label values for login attempts.
const (
	loginSuccess   = "success"
	loginFailure   = "failure"
	loginThrottled = "throttled"
)

// Metrics holds Prometheus metrics for gateway decisions.
type Metrics struct {
	checkDecisionsTotal *prometheus.CounterVec
	loginAttemptsTotal  *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton gateway metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			checkDecisionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "warden",
					Subsystem: "gateway",
					Name:      "check_decisions_total",
					Help:      "Forward-auth check decisions by outcome.",
				},
				[]string{"outcome"},
			),
			loginAttemptsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "warden",
					Subsystem: "gateway",
					Name:      "login_attempts_total",
					Help:      "Login attempts by result.",
				},
				[]string{"result"},
			),
			requestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "warden",
					Subsystem: "gateway",
					Name:      "request_duration_seconds",
					Help:      "Request latency by route and status code.",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"route", "status"},
			),
		}
	})
	return metricsInstance
}

// MustRegister registers the gateway collectors with the given registry.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(m.checkDecisionsTotal, m.loginAttemptsTotal, m.requestDuration)
}

// Init pre-creates label combinations so the series appear in /metrics
// output before the first request.
func (m *Metrics) Init() {
	for _, o := range []string{outcomeAllowed, outcomeDenied, outcomeBadInput, outcomeThrottled} {
		m.checkDecisionsTotal.WithLabelValues(o)
	}
	for _, r := range []string{loginSuccess, loginFailure, loginThrottled} {
		m.loginAttemptsTotal.WithLabelValues(r)
	}
}
