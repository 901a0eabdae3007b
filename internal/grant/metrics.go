package grant

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultSuccess           = "success"
	resultInsufficientFunds = "insufficient_funds"
	resultInvalid           = "invalid"
	resultIncomplete        = "incomplete"
	resultReplayed          = "replayed"
	resultError             = "error"
)

type Metrics struct {
	GrantsTotal   *prometheus.CounterVec
	GrantDuration *prometheus.HistogramVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		GrantsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whitelist_grants_total",
				Help: "Total whitelist grant attempts by result.",
			},
			[]string{"result"},
		),
		GrantDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "whitelist_grant_duration_seconds",
				Help:    "Whitelist grant latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
	}
	registry.MustRegister(m.GrantsTotal, m.GrantDuration)
	return m
}

func (m *Metrics) Observe(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.GrantsTotal.WithLabelValues(result).Inc()
	m.GrantDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}
