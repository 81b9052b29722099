package middleware

import (
	"net/http"
	"strings"

	"github.com/hrapp/hr-backend/security"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// AuthorizationHeader carries the bearer token
	AuthorizationHeader = "Authorization"
	// BearerPrefix must precede the token exactly, including case
	BearerPrefix = "Bearer "

	tracerName = "github.com/hrapp/hr-backend/middleware"
)

// TokenAuthenticator validates a compact token and derives the principal
type TokenAuthenticator interface {
	Authenticate(token string) (*security.Principal, error)
}

// AuthMiddleware attaches the principal of a valid bearer token to the request
type AuthMiddleware struct {
	authenticator TokenAuthenticator
	logger        *zap.Logger
	tracer        trace.Tracer
}

// AuthOption configures an AuthMiddleware
type AuthOption func(*AuthMiddleware)

// WithTracerProvider traces authentication with tp instead of the global provider
func WithTracerProvider(tp trace.TracerProvider) AuthOption {
	return func(m *AuthMiddleware) {
		m.tracer = tp.Tracer(tracerName)
	}
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(authenticator TokenAuthenticator, logger *zap.Logger, opts ...AuthOption) *AuthMiddleware {
	m := &AuthMiddleware{
		authenticator: authenticator,
		logger:        logger,
		tracer:        otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Authenticate never rejects a request. A missing or invalid token leaves the
// request anonymous; the access middleware decides whether that is enough.
// The auth.authenticate span becomes the parent of downstream spans.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := m.tracer.Start(r.Context(), "auth.authenticate", trace.WithSpanKind(trace.SpanKindInternal))

		state, principal := m.resolve(r)

		span.SetAttributes(attribute.String("auth.state", string(state)))
		switch state {
		case StateTokenInvalid:
			span.SetStatus(codes.Error, "token rejected")
		case StateTokenValid:
			span.SetAttributes(attribute.String("auth.subject", principal.Subject))
		}
		span.End()

		ctx = WithAuthState(ctx, state)
		if principal != nil {
			ctx = security.WithPrincipal(ctx, *principal)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) resolve(r *http.Request) (AuthState, *security.Principal) {
	token, ok := ExtractBearerToken(r)
	if !ok {
		return StateNoToken, nil
	}

	requestID := GetRequestIDFromContext(r.Context())

	principal, err := m.authenticator.Authenticate(token)
	if err != nil {
		m.logger.Debug("bearer token rejected",
			zap.String("request_id", requestID),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		return StateTokenInvalid, nil
	}

	m.logger.Debug("authentication successful",
		zap.String("request_id", requestID),
		zap.String("subject", principal.Subject),
		zap.Strings("roles", principal.Roles))
	return StateTokenValid, principal
}

// ExtractBearerToken returns the trimmed token following "Bearer " in the
// Authorization header. The prefix match is case-sensitive and an empty
// remainder counts as no token.
func ExtractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get(AuthorizationHeader)
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", false
	}

	token := strings.TrimSpace(header[len(BearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
