package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/hrapp/hr-backend/models"
	"github.com/hrapp/hr-backend/security"
	"github.com/hrapp/hr-backend/services"
	"github.com/hrapp/hr-backend/utils"
	"go.uber.org/zap"
)

const defaultPageSize = 20

// AuthorityLister lists the authority names known to the store
type AuthorityLister interface {
	List(ctx context.Context) ([]string, error)
}

// UserLister pages through stored users
type UserLister interface {
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Count(ctx context.Context) (int, error)
}

// AccountResponse describes the caller as seen by the server
type AccountResponse struct {
	Login       string   `json:"login"`
	Authorities []string `json:"authorities"`
}

// UserPage is one page of the admin user listing
type UserPage struct {
	Users  []models.UserSummary `json:"users"`
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// PageQuery holds pagination parameters
type PageQuery struct {
	Limit  int `json:"limit" validate:"gte=1,lte=100"`
	Offset int `json:"offset" validate:"gte=0"`
}

// AccountHandler serves the account and user administration endpoints
type AccountHandler struct {
	users       UserLister
	authorities AuthorityLister
	logger      *zap.Logger
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(users UserLister, authorities AuthorityLister, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		users:       users,
		authorities: authorities,
		logger:      logger,
	}
}

// HandleGetAccount handles GET /api/v1/account
func (h *AccountHandler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	principal, ok := security.CurrentPrincipal(r.Context())
	if !ok {
		HandleServiceError(w, services.ErrUnauthorized, h.logger)
		return
	}

	_ = utils.WriteOK(w, AccountResponse{
		Login:       principal.Subject,
		Authorities: principal.Roles,
	})
}

// HandleListAuthorities handles GET /api/v1/authorities
func (h *AccountHandler) HandleListAuthorities(w http.ResponseWriter, r *http.Request) {
	names, err := h.authorities.List(r.Context())
	if err != nil {
		HandleServiceError(w, services.WrapInternal("failed to list authorities", err), h.logger)
		return
	}
	if names == nil {
		names = []string{}
	}

	_ = utils.WriteOK(w, names)
}

// HandleListUsers handles GET /api/v1/admin/users
func (h *AccountHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	query, err := parsePageQuery(r)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	ctx := r.Context()

	total, err := h.users.Count(ctx)
	if err != nil {
		HandleServiceError(w, services.WrapInternal("failed to count users", err), h.logger)
		return
	}

	users, err := h.users.List(ctx, query.Limit, query.Offset)
	if err != nil {
		HandleServiceError(w, services.WrapInternal("failed to list users", err), h.logger)
		return
	}

	page := UserPage{
		Users:  make([]models.UserSummary, 0, len(users)),
		Total:  total,
		Limit:  query.Limit,
		Offset: query.Offset,
	}
	for _, u := range users {
		page.Users = append(page.Users, u.Summary())
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	_ = utils.WriteOK(w, page)
}

func parsePageQuery(r *http.Request) (PageQuery, error) {
	query := PageQuery{Limit: defaultPageSize}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return query, services.NewDomainError(services.ErrorTypeValidation, "limit must be a number", nil)
		}
		query.Limit = limit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			return query, services.NewDomainError(services.ErrorTypeValidation, "offset must be a number", nil)
		}
		query.Offset = offset
	}

	if err := utils.ValidateStruct(query); err != nil {
		return query, err
	}
	return query, nil
}
