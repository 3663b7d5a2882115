package service

import (
	pkgerrors "kitarekayasa/pkg/errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts lifecycle operations by outcome.
type Metrics struct {
	transitions *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "challenge_lifecycle_operations_total",
				Help: "Lifecycle operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.transitions)
	}
	return m
}

func (m *Metrics) observe(operation string, err error) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(operation, outcome(err)).Inc()
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch pkgerrors.GetCode(err).HTTPStatus() {
	case 400:
		return "validation"
	case 401:
		return "auth"
	case 403:
		return "forbidden"
	case 404:
		return "not_found"
	case 409:
		return "conflict"
	case 429:
		return "throttled"
	default:
		return "storage"
	}
}
