package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hrapp/hr-backend/models"
	"github.com/hrapp/hr-backend/security"
	"github.com/hrapp/hr-backend/services"
	"github.com/hrapp/hr-backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockUserManager struct {
	mock.Mock
}

func (m *MockUserManager) CreateUser(ctx context.Context, in services.UserInput) (*models.User, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserManager) UpdateUser(ctx context.Context, login string, in services.UserInput) (*models.User, error) {
	args := m.Called(ctx, login, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserManager) DeleteUser(ctx context.Context, login string) error {
	args := m.Called(ctx, login)
	return args.Error(0)
}

func (m *MockUserManager) GetUser(ctx context.Context, login string) (*models.User, error) {
	args := m.Called(ctx, login)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserManager) ListPublicUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*models.User), args.Int(1), args.Error(2)
}

// withLogin routes the request through chi so URLParam resolves
func withLogin(method, pattern string, handler http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Method(method, pattern, handler)
	return r
}

func TestHandleCreateUser(t *testing.T) {
	bob := models.NewUser("bob", "bob@example.com", "$2a$10$hash", "admin")
	bob.Authorities = []string{security.RoleUser}

	t.Run("created with location", func(t *testing.T) {
		users := new(MockUserManager)
		users.On("CreateUser", mock.Anything, services.UserInput{
			Login:       "bob",
			Email:       "bob@example.com",
			Activated:   true,
			Authorities: []string{security.RoleUser},
		}).Return(bob, nil)

		body := `{"login":"bob","email":"bob@example.com","activated":true,"authorities":["ROLE_USER"]}`
		w := httptest.NewRecorder()
		NewUserHandler(users, zap.NewNop()).
			HandleCreateUser(w, httptest.NewRequest(http.MethodPost, "/api/v1/admin/users", strings.NewReader(body)))

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "/api/v1/admin/users/bob", w.Header().Get("Location"))
		assert.NotContains(t, w.Body.String(), "$2a$10$hash")

		var response struct {
			Data models.UserSummary `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "bob", response.Data.Login)
		assert.Equal(t, "admin", response.Data.CreatedBy)
		users.AssertExpectations(t)
	})

	t.Run("rejects bad bodies", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"malformed json", `{"login":`},
			{"unknown field", `{"login":"bob","password_hash":"x"}`},
			{"missing login", `{"email":"bob@example.com"}`},
			{"bad email", `{"login":"bob","email":"not-an-email"}`},
			{"short password", `{"login":"bob","password":"abc"}`},
			{"empty authority", `{"login":"bob","authorities":[""]}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				users := new(MockUserManager)
				w := httptest.NewRecorder()
				NewUserHandler(users, zap.NewNop()).
					HandleCreateUser(w, httptest.NewRequest(http.MethodPost, "/api/v1/admin/users", strings.NewReader(tt.body)))

				assert.Equal(t, http.StatusBadRequest, w.Code)
				users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("duplicate login is 409", func(t *testing.T) {
		users := new(MockUserManager)
		users.On("CreateUser", mock.Anything, mock.Anything).Return(nil, services.ErrDuplicateLogin)

		w := httptest.NewRecorder()
		NewUserHandler(users, zap.NewNop()).
			HandleCreateUser(w, httptest.NewRequest(http.MethodPost, "/api/v1/admin/users", strings.NewReader(`{"login":"bob"}`)))

		require.Equal(t, http.StatusConflict, w.Code)
		var body utils.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, utils.CodeConflict, body.Error)
	})
}

func TestHandleUpdateUser(t *testing.T) {
	robert := models.NewUser("robert", "", "$2a$10$hash", "system")

	users := new(MockUserManager)
	users.On("UpdateUser", mock.Anything, "bob", mock.MatchedBy(func(in services.UserInput) bool {
		return in.Login == "robert" && in.LastName == "Smith"
	})).Return(robert, nil)
	users.On("UpdateUser", mock.Anything, "ghost", mock.Anything).Return(nil, services.ErrUserNotFound)

	handler := withLogin(http.MethodPut, "/api/v1/admin/users/{login}", NewUserHandler(users, zap.NewNop()).HandleUpdateUser)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/v1/admin/users/bob",
		strings.NewReader(`{"login":"robert","last_name":"Smith"}`)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"login":"robert"`)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/v1/admin/users/ghost",
		strings.NewReader(`{"login":"ghost"}`)))
	assert.Equal(t, http.StatusNotFound, w.Code)

	users.AssertExpectations(t)
}

func TestHandleGetUser(t *testing.T) {
	bob := models.NewUser("bob", "bob@example.com", "$2a$10$hash", "system")
	users := new(MockUserManager)
	users.On("GetUser", mock.Anything, "bob").Return(bob, nil)
	users.On("GetUser", mock.Anything, "ghost").Return(nil, services.ErrUserNotFound)

	handler := withLogin(http.MethodGet, "/api/v1/admin/users/{login}", NewUserHandler(users, zap.NewNop()).HandleGetUser)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/users/bob", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"bob@example.com"`)
	assert.NotContains(t, w.Body.String(), "$2a$10$hash")

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/users/ghost", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleDeleteUser(t *testing.T) {
	users := new(MockUserManager)
	users.On("DeleteUser", mock.Anything, "bob").Return(nil)
	users.On("DeleteUser", mock.Anything, "admin").Return(services.ErrForbidden)

	handler := withLogin(http.MethodDelete, "/api/v1/admin/users/{login}", NewUserHandler(users, zap.NewNop()).HandleDeleteUser)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/admin/users/bob", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/admin/users/admin", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandleListPublicUsers(t *testing.T) {
	alice := &models.User{ID: uuid.New(), Login: "alice", Email: "alice@example.com", Activated: true}

	t.Run("only id and login are exposed", func(t *testing.T) {
		users := new(MockUserManager)
		users.On("ListPublicUsers", mock.Anything, 20, 0).Return([]*models.User{alice}, 7, nil)

		w := httptest.NewRecorder()
		NewUserHandler(users, zap.NewNop()).
			HandleListPublicUsers(w, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "7", w.Header().Get("X-Total-Count"))
		assert.NotContains(t, w.Body.String(), "alice@example.com")

		var response struct {
			Data []PublicUser `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		require.Len(t, response.Data, 1)
		assert.Equal(t, alice.ID, response.Data[0].ID)
		assert.Equal(t, "alice", response.Data[0].Login)
	})

	t.Run("invalid pagination", func(t *testing.T) {
		users := new(MockUserManager)
		w := httptest.NewRecorder()
		NewUserHandler(users, zap.NewNop()).
			HandleListPublicUsers(w, httptest.NewRequest(http.MethodGet, "/api/v1/users?limit=500", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		users.AssertNotCalled(t, "ListPublicUsers", mock.Anything, mock.Anything, mock.Anything)
	})
}
