package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Authentication outcomes recorded in apd_auth_attempts_total.
const (
	OutcomeSuccess      = "success"
	OutcomeBadNonce     = "bad_nonce"
	OutcomeUnknownUser  = "unknown_user"
	OutcomeLocked       = "locked"
	OutcomeBadPassword  = "bad_password"
	OutcomeLockedNow    = "locked_now"
	OutcomeInternalFail = "error"
)

// Metrics counts authentication attempts by outcome.
type Metrics struct {
	attempts *prometheus.CounterVec
}

// NewMetrics registers the auth collectors on reg. A nil reg gives
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		attempts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "apd",
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Authentication attempts by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(outcome).Inc()
}
