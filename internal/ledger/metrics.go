package ledger

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	CreditsTotal  *prometheus.CounterVec
	CoinsCredited *prometheus.CounterVec
	DebitsTotal   *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		CreditsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coin_credits_total",
				Help: "Total coin credit operations.",
			},
			[]string{"reason"},
		),
		CoinsCredited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coin_credited_amount_total",
				Help: "Total coins credited.",
			},
			[]string{"reason"},
		),
		DebitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coin_debits_total",
				Help: "Total coin debit attempts.",
			},
			[]string{"result"},
		),
	}
	registry.MustRegister(m.CreditsTotal, m.CoinsCredited, m.DebitsTotal)
	return m
}

// reasonLabel keeps label cardinality bounded; free-form reasons share one series.
func reasonLabel(reason string) string {
	switch reason {
	case ReasonVideoAd, ReasonBannerAd, ReasonSurvey, ReasonOffer, ReasonAdView:
		return reason
	default:
		return "other"
	}
}

func (m *Metrics) IncCredit(reason string, amount int64) {
	if m == nil {
		return
	}
	label := reasonLabel(reason)
	m.CreditsTotal.WithLabelValues(label).Inc()
	m.CoinsCredited.WithLabelValues(label).Add(float64(amount))
}

func (m *Metrics) IncDebit(result string) {
	if m == nil {
		return
	}
	m.DebitsTotal.WithLabelValues(result).Inc()
}
