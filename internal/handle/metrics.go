package handle

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "tskitr"

// Metrics counts handle lifecycle events per resource kind. A nil *Metrics
// records nothing.
type Metrics struct {
	live              *prometheus.GaugeVec
	issued            *prometheus.CounterVec
	released          *prometheus.CounterVec
	constructFailures *prometheus.CounterVec
}

// NewMetrics creates the handle metrics and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		live: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "handles_live",
				Help:      "Number of live handles.",
			},
			[]string{"kind"},
		),
		issued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "handles_issued_total",
				Help:      "Handles issued for successfully constructed resources.",
			},
			[]string{"kind"},
		),
		released: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "handles_released_total",
				Help:      "Handles released, by what triggered the release.",
			},
			[]string{"kind", "cause"},
		),
		constructFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "construct_failures_total",
				Help:      "Constructions whose native initialisation failed.",
			},
			[]string{"kind"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.live, m.issued, m.released, m.constructFailures)
	}
	return m
}

func (m *Metrics) onIssue(kind Kind) {
	if m == nil {
		return
	}
	m.issued.WithLabelValues(string(kind)).Inc()
	m.live.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) onRelease(kind Kind, cause Cause) {
	if m == nil {
		return
	}
	m.released.WithLabelValues(string(kind), string(cause)).Inc()
	m.live.WithLabelValues(string(kind)).Dec()
}

func (m *Metrics) onConstructFailure(kind Kind) {
	if m == nil {
		return
	}
	m.constructFailures.WithLabelValues(string(kind)).Inc()
}
