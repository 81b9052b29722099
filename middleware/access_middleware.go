package middleware

import (
	"net/http"

	"github.com/hrapp/hr-backend/security"
	"github.com/hrapp/hr-backend/utils"
	"go.uber.org/zap"
)

// DecisionRecorder counts access decisions
type DecisionRecorder interface {
	RecordDecision(decision string)
}

// AccessMiddleware enforces route policies against the request principal
type AccessMiddleware struct {
	table    *security.RouteTable
	recorder DecisionRecorder
	logger   *zap.Logger
}

// NewAccessMiddleware creates a new AccessMiddleware; recorder may be nil
func NewAccessMiddleware(table *security.RouteTable, recorder DecisionRecorder, logger *zap.Logger) *AccessMiddleware {
	return &AccessMiddleware{
		table:    table,
		recorder: recorder,
		logger:   logger,
	}
}

// Enforce resolves the route policy from the table and applies it.
// It must run after AuthMiddleware.Authenticate.
func (m *AccessMiddleware) Enforce(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		policy := m.table.Resolve(r.Method, r.URL.Path)
		m.apply(policy, next, w, r)
	})
}

func (m *AccessMiddleware) apply(policy security.Policy, next http.Handler, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := security.CurrentPrincipal(ctx)

	decision := security.Decide(policy, principal)
	if m.recorder != nil {
		m.recorder.RecordDecision(decision.String())
	}

	switch decision {
	case security.Allow:
		next.ServeHTTP(w, r)
		return

	case security.DenyUnauthenticated:
		m.logger.Debug("access denied, authentication required",
			zap.String("request_id", GetRequestIDFromContext(ctx)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("policy", policy.String()),
			zap.String("auth_state", string(GetAuthStateFromContext(ctx))))
		_ = utils.WriteUnauthorized(w, "Full authentication is required to access this resource")

	default:
		m.logger.Warn("access denied, insufficient authority",
			zap.String("request_id", GetRequestIDFromContext(ctx)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("policy", policy.String()),
			zap.String("subject", principal.Subject))
		_ = utils.WriteForbidden(w, "Access is denied")
	}
}
