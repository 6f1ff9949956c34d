// Package metrics exposes Prometheus counters for security outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Security groups the counters recorded by the security flows.
type Security struct {
	registry      *prometheus.Registry
	RateLimited   *prometheus.CounterVec
	Logins        *prometheus.CounterVec
	Verifications *prometheus.CounterVec
	Lockouts      prometheus.Counter
}

// New registers the counters on a fresh registry.
func New() *Security {
	reg := prometheus.NewRegistry()
	s := &Security{
		registry: reg,
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "security_rate_limit_denied_total",
			Help: "Attempts refused by the per-action rate limiter.",
		}, []string{"action"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "security_login_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "security_verification_total",
			Help: "Verification checks by type and outcome.",
		}, []string{"type", "outcome"}),
		Lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "security_lockouts_total",
			Help: "Accounts locked after repeated failed logins.",
		}),
	}
	reg.MustRegister(s.RateLimited, s.Logins, s.Verifications, s.Lockouts,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return s
}

// ObserveRateLimit matches ratelimit.WithObserver.
func (s *Security) ObserveRateLimit(action string, allowed bool) {
	if s == nil || allowed {
		return
	}
	s.RateLimited.WithLabelValues(action).Inc()
}

// Login records a login outcome.
func (s *Security) Login(outcome string) {
	if s == nil {
		return
	}
	s.Logins.WithLabelValues(outcome).Inc()
}

// Verification records a verification outcome.
func (s *Security) Verification(typ, outcome string) {
	if s == nil {
		return
	}
	s.Verifications.WithLabelValues(typ, outcome).Inc()
}

// Lockout records an account lock.
func (s *Security) Lockout() {
	if s == nil {
		return
	}
	s.Lockouts.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (s *Security) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}
