package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hrapp/hr-backend/security"
	"github.com/hrapp/hr-backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockDecisionRecorder struct {
	mock.Mock
}

func (m *MockDecisionRecorder) RecordDecision(decision string) {
	m.Called(decision)
}

func testRouteTable() *security.RouteTable {
	return security.NewRouteTable(security.Authenticated(),
		security.PermitPreflight,
		security.RouteRule{Pattern: "/api/v1/authenticate", Policy: security.Public()},
		security.RouteRule{Pattern: "/api/v1/admin/**", Policy: security.RequireRole(security.RoleAdmin)},
		security.RouteRule{Pattern: "/api/v1/**", Policy: security.Authenticated()},
	)
}

func requestAs(method, path string, p *security.Principal) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if p != nil {
		req = req.WithContext(security.WithPrincipal(req.Context(), *p))
	}
	return req
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestEnforce(t *testing.T) {
	alice := security.NewPrincipal("alice", security.RoleUser)
	admin := security.NewPrincipal("admin", security.RoleAdmin, security.RoleUser)

	tests := []struct {
		name       string
		method     string
		path       string
		principal  *security.Principal
		wantStatus int
		wantResult string
	}{
		{"public login without principal", http.MethodPost, "/api/v1/authenticate", nil, http.StatusOK, "allow"},
		{"preflight without principal", http.MethodOptions, "/api/v1/admin/users", nil, http.StatusOK, "allow"},
		{"authenticated route without principal", http.MethodGet, "/api/v1/account", nil, http.StatusUnauthorized, "deny_unauthenticated"},
		{"authenticated route with principal", http.MethodGet, "/api/v1/account", &alice, http.StatusOK, "allow"},
		{"admin route without principal", http.MethodGet, "/api/v1/admin/users", nil, http.StatusUnauthorized, "deny_unauthenticated"},
		{"admin route as user", http.MethodGet, "/api/v1/admin/users", &alice, http.StatusForbidden, "deny_forbidden"},
		{"admin route as admin", http.MethodGet, "/api/v1/admin/users", &admin, http.StatusOK, "allow"},
		{"unmatched path falls back to authenticated", http.MethodGet, "/other", nil, http.StatusUnauthorized, "deny_unauthenticated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := new(MockDecisionRecorder)
			recorder.On("RecordDecision", tt.wantResult).Return().Once()

			handler := NewAccessMiddleware(testRouteTable(), recorder, zap.NewNop()).Enforce(okHandler)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, requestAs(tt.method, tt.path, tt.principal))

			assert.Equal(t, tt.wantStatus, w.Code)
			recorder.AssertExpectations(t)
		})
	}
}

func TestEnforceResponses(t *testing.T) {
	m := NewAccessMiddleware(testRouteTable(), nil, zap.NewNop())

	t.Run("401 carries bearer challenge", func(t *testing.T) {
		w := httptest.NewRecorder()
		m.Enforce(okHandler).ServeHTTP(w, requestAs(http.MethodGet, "/api/v1/account", nil))

		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

		var body utils.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, utils.CodeUnauthorized, body.Error)
	})

	t.Run("403 body", func(t *testing.T) {
		alice := security.NewPrincipal("alice", security.RoleUser)
		w := httptest.NewRecorder()
		m.Enforce(okHandler).ServeHTTP(w, requestAs(http.MethodDelete, "/api/v1/admin/users/1", &alice))

		require.Equal(t, http.StatusForbidden, w.Code)

		var body utils.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, utils.CodeForbidden, body.Error)
	})
}
