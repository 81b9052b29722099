package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Token failure kinds tracked by SecurityMeters
const (
	TokenExpired          = "expired"
	TokenUnsupported      = "unsupported"
	TokenMalformed        = "malformed"
	TokenInvalidSignature = "invalid_signature"
)

// Login outcomes tracked by SecurityMeters
const (
	LoginSuccess        = "success"
	LoginBadCredentials = "bad_credentials"
	LoginNotActivated   = "not_activated"
	LoginRejected       = "rejected"
)

// Access decisions tracked by SecurityMeters
const (
	AccessAllowed   = "allow"
	AccessUnauth    = "deny_unauthenticated"
	AccessForbidden = "deny_forbidden"
)

// Exported metric names
const (
	metricInvalidTokens = "security_authentication_invalid_tokens_total"
	metricLogins        = "security_authentication_logins_total"
	metricDecisions     = "security_access_decisions_total"
)

// SecurityMeters counts authentication events on a private Prometheus registry.
// Safe for concurrent use.
type SecurityMeters struct {
	registry      *prometheus.Registry
	tokenFailures *prometheus.CounterVec
	logins        *prometheus.CounterVec
	decisions     *prometheus.CounterVec
}

// SecuritySnapshot is a point-in-time copy of the counters
type SecuritySnapshot struct {
	TokenFailures map[string]int64
	Logins        map[string]int64
	Decisions     map[string]int64
}

// NewSecurityMeters creates meters with every known series initialised to zero.
// The registry also carries the Go runtime and process collectors.
func NewSecurityMeters() *SecurityMeters {
	m := &SecurityMeters{
		registry: prometheus.NewRegistry(),
		tokenFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricInvalidTokens,
			Help: "Rejected authentication tokens by cause",
		}, []string{"cause"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricLogins,
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricDecisions,
			Help: "Access decisions by result",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.tokenFailures,
		m.logins,
		m.decisions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	for _, k := range []string{TokenExpired, TokenUnsupported, TokenMalformed, TokenInvalidSignature} {
		m.tokenFailures.WithLabelValues(k)
	}
	for _, k := range []string{LoginSuccess, LoginBadCredentials, LoginNotActivated, LoginRejected} {
		m.logins.WithLabelValues(k)
	}
	for _, k := range []string{AccessAllowed, AccessUnauth, AccessForbidden} {
		m.decisions.WithLabelValues(k)
	}
	return m
}

// Registry exposes the underlying registry, e.g. to add collectors
func (m *SecurityMeters) Registry() *prometheus.Registry {
	return m.registry
}

// RecordTokenFailure increments the counter for a token validation failure kind
func (m *SecurityMeters) RecordTokenFailure(kind string) {
	if m == nil {
		return
	}
	m.tokenFailures.WithLabelValues(kind).Inc()
}

// RecordLogin increments the counter for a login outcome
func (m *SecurityMeters) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// RecordDecision increments the counter for an access decision
func (m *SecurityMeters) RecordDecision(decision string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(decision).Inc()
}

// Snapshot copies the current counter values out of the registry
func (m *SecurityMeters) Snapshot() SecuritySnapshot {
	snap := SecuritySnapshot{
		TokenFailures: make(map[string]int64),
		Logins:        make(map[string]int64),
		Decisions:     make(map[string]int64),
	}
	if m == nil {
		return snap
	}

	families, err := m.registry.Gather()
	if err != nil {
		return snap
	}

	for _, mf := range families {
		var target map[string]int64
		switch mf.GetName() {
		case metricInvalidTokens:
			target = snap.TokenFailures
		case metricLogins:
			target = snap.Logins
		case metricDecisions:
			target = snap.Decisions
		default:
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := metric.GetLabel()
			if len(labels) == 0 {
				continue
			}
			target[labels[0].GetValue()] = int64(metric.GetCounter().GetValue())
		}
	}
	return snap
}

// PrometheusHandler serves the meters' registry in the Prometheus exposition format
func PrometheusHandler(meters *SecurityMeters, logger *zap.Logger) http.Handler {
	if meters == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return promhttp.HandlerFor(meters.registry, promhttp.HandlerOpts{
		ErrorLog:      zap.NewStdLog(logger),
		ErrorHandling: promhttp.ContinueOnError,
	})
}
