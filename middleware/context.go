package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Context key type to avoid collisions
type contextKey string

const (
	// AuthStateKey is the context key for the outcome of token authentication
	AuthStateKey contextKey = "auth_state"
)

// AuthState is the result of inspecting the Authorization header
type AuthState string

const (
	// StateNoToken means no bearer token was presented
	StateNoToken AuthState = "no_token"
	// StateTokenInvalid means a bearer token was presented but rejected
	StateTokenInvalid AuthState = "token_invalid"
	// StateTokenValid means a principal was attached to the request
	StateTokenValid AuthState = "token_valid"
)

// GetRequestIDFromContext retrieves the chi request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// WithAuthState records the authentication outcome on the context
func WithAuthState(ctx context.Context, state AuthState) context.Context {
	return context.WithValue(ctx, AuthStateKey, state)
}

// GetAuthStateFromContext returns the authentication outcome, or StateNoToken
// when the authenticator did not run
func GetAuthStateFromContext(ctx context.Context) AuthState {
	if val := ctx.Value(AuthStateKey); val != nil {
		if state, ok := val.(AuthState); ok {
			return state
		}
	}
	return StateNoToken
}
