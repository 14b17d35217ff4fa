package bearer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts authentication outcomes and option builds. A nil *Metrics is valid and records nothing.
type Metrics struct {
	authentications *prometheus.CounterVec
	builds          *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		authentications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenantauth",
			Name:      "authentications_total",
			Help:      "Bearer authentication attempts by result and reason.",
		}, []string{"result", "reason"}),
		builds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenantauth",
			Name:      "options_builds_total",
			Help:      "Tenant option build pipeline executions by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) observeAuth(r Result) {
	if m == nil {
		return
	}
	if r.Authenticated() {
		m.authentications.WithLabelValues("authenticated", "").Inc()
		return
	}
	m.authentications.WithLabelValues("rejected", r.Reason).Inc()
}

func (m *Metrics) observeBuild(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.builds.WithLabelValues(result).Inc()
}
