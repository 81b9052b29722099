package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hrapp/hr-backend/models"
	"github.com/hrapp/hr-backend/services"
	"github.com/hrapp/hr-backend/utils"
	"go.uber.org/zap"
)

const maxUserBodyBytes = 16 << 10

// UserManager administers accounts
type UserManager interface {
	CreateUser(ctx context.Context, in services.UserInput) (*models.User, error)
	UpdateUser(ctx context.Context, login string, in services.UserInput) (*models.User, error)
	DeleteUser(ctx context.Context, login string) error
	GetUser(ctx context.Context, login string) (*models.User, error)
	ListPublicUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error)
}

// UserRequest is the body of the admin create and update endpoints
type UserRequest struct {
	Login       string   `json:"login" validate:"required,min=1,max=50"`
	FirstName   string   `json:"first_name" validate:"max=50"`
	LastName    string   `json:"last_name" validate:"max=50"`
	Email       string   `json:"email" validate:"omitempty,email,max=254"`
	LangKey     string   `json:"lang_key" validate:"omitempty,min=2,max=10"`
	Activated   bool     `json:"activated"`
	Authorities []string `json:"authorities" validate:"dive,required"`
	Password    string   `json:"password,omitempty" validate:"omitempty,min=4,max=100"`
}

func (r UserRequest) input() services.UserInput {
	return services.UserInput{
		Login:       r.Login,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Email:       r.Email,
		LangKey:     r.LangKey,
		Activated:   r.Activated,
		Authorities: r.Authorities,
		Password:    r.Password,
	}
}

// PublicUser is what any authenticated caller may see of another account
type PublicUser struct {
	ID    uuid.UUID `json:"id"`
	Login string    `json:"login"`
}

// UserHandler serves account administration and the public user listing
type UserHandler struct {
	users  UserManager
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users UserManager, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// HandleCreateUser handles POST /api/v1/admin/users
func (h *UserHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.input())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	w.Header().Set("Location", "/api/v1/admin/users/"+url.PathEscape(user.Login))
	_ = utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse{Data: user.Summary()})
}

// HandleUpdateUser handles PUT /api/v1/admin/users/{login}
func (h *UserHandler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	user, err := h.users.UpdateUser(r.Context(), chi.URLParam(r, "login"), req.input())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, user.Summary())
}

// HandleGetUser handles GET /api/v1/admin/users/{login}
func (h *UserHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUser(r.Context(), chi.URLParam(r, "login"))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, user.Summary())
}

// HandleDeleteUser handles DELETE /api/v1/admin/users/{login}
func (h *UserHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.DeleteUser(r.Context(), chi.URLParam(r, "login")); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleListPublicUsers handles GET /api/v1/users
func (h *UserHandler) HandleListPublicUsers(w http.ResponseWriter, r *http.Request) {
	query, err := parsePageQuery(r)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	users, total, err := h.users.ListPublicUsers(r.Context(), query.Limit, query.Offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	out := make([]PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, PublicUser{ID: u.ID, Login: u.Login})
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	_ = utils.WriteOK(w, out)
}

func (h *UserHandler) decode(w http.ResponseWriter, r *http.Request) (UserRequest, bool) {
	var req UserRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUserBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return req, false
	}

	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return req, false
	}
	return req, true
}
