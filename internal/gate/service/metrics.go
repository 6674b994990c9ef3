package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters the services update. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	decisions    *prometheus.CounterVec
	tokensIssued prometheus.Counter
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iiifgate_decisions_total",
			Help: "Authorization decisions by result and the path that decided them.",
		}, []string{"result", "path"}),
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iiifgate_tokens_issued_total",
			Help: "Tokens issued by the refresh endpoint.",
		}),
	}
	reg.MustRegister(m.decisions, m.tokensIssued)
	return m
}

func (m *Metrics) observeDecision(d Decision) {
	if m == nil {
		return
	}
	result := "deny"
	if d.Authorized {
		result = "allow"
	}
	m.decisions.WithLabelValues(result, string(d.Path)).Inc()
}

func (m *Metrics) observeTokenIssued() {
	if m == nil {
		return
	}
	m.tokensIssued.Inc()
}
