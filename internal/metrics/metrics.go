// Package metrics holds the Prometheus collectors of the auth service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Login outcomes.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeLocked             = "locked"
	OutcomeMissingFields      = "missing_fields"
	OutcomeError              = "error"
)

// Unlock reasons.
const (
	UnlockManual  = "manual"
	UnlockExpired = "expired"
)

// Metrics groups the auth counters. A nil *Metrics records nothing.
type Metrics struct {
	LoginAttempts  *prometheus.CounterVec
	Lockouts       prometheus.Counter
	Unlocks        *prometheus.CounterVec
	PasswordResets *prometheus.CounterVec
	Registrations  prometheus.Counter
}

// New creates the auth counters and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_login_attempts_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),
		Lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_lockouts_total",
			Help: "Total number of accounts locked after repeated failures",
		}),
		Unlocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_unlocks_total",
				Help: "Total number of account unlocks by reason",
			},
			[]string{"reason"},
		),
		PasswordResets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_password_resets_total",
				Help: "Total number of password reset attempts by outcome",
			},
			[]string{"outcome"},
		),
		Registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_registrations_total",
			Help: "Total number of successful registrations",
		}),
	}

	reg.MustRegister(m.LoginAttempts, m.Lockouts, m.Unlocks, m.PasswordResets, m.Registrations)
	return m
}

// NewRegistry returns a private registry with the Go and process collectors installed.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Lockout() {
	if m == nil {
		return
	}
	m.Lockouts.Inc()
}

func (m *Metrics) Unlock(reason string) {
	if m == nil {
		return
	}
	m.Unlocks.WithLabelValues(reason).Inc()
}

func (m *Metrics) PasswordReset(outcome string) {
	if m == nil {
		return
	}
	m.PasswordResets.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Registration() {
	if m == nil {
		return
	}
	m.Registrations.Inc()
}
