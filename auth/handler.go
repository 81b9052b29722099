package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hrapp/hr-backend/internal/observability"
	"github.com/hrapp/hr-backend/middleware"
	"github.com/hrapp/hr-backend/security"
	"github.com/hrapp/hr-backend/services"
	"github.com/hrapp/hr-backend/utils"
	"go.uber.org/zap"
)

const maxLoginBodyBytes = 1 << 16

// CredentialVerifier checks a username/password pair against the identity store
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (security.Principal, error)
}

// TokenIssuer mints signed tokens for an authenticated principal
type TokenIssuer interface {
	CreateToken(principal security.Principal, rememberMe bool) (string, error)
}

// LoginRecorder counts login outcomes
type LoginRecorder interface {
	RecordLogin(outcome string)
}

// LoginRequest is the body of POST /api/v1/authenticate
type LoginRequest struct {
	Username   string `json:"username" validate:"required,min=1,max=50"`
	Password   string `json:"password" validate:"required,min=4,max=100"`
	RememberMe bool   `json:"rememberMe"`
}

// TokenResponse is returned after a successful login
type TokenResponse struct {
	IDToken string `json:"id_token"`
}

// Handler exchanges credentials for a bearer token
type Handler struct {
	verifier           CredentialVerifier
	issuer             TokenIssuer
	recorder           LoginRecorder
	revealNotActivated bool
	logger             *zap.Logger
}

// NewHandler creates a new login handler. When revealNotActivated is false a
// not-activated account gets the same response as a wrong password.
func NewHandler(verifier CredentialVerifier, issuer TokenIssuer, recorder LoginRecorder, revealNotActivated bool, logger *zap.Logger) *Handler {
	return &Handler{
		verifier:           verifier,
		issuer:             issuer,
		recorder:           recorder,
		revealNotActivated: revealNotActivated,
		logger:             logger,
	}
}

// HandleAuthenticate handles POST /api/v1/authenticate
func (h *Handler) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestIDFromContext(r.Context())

	var req LoginRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBodyBytes))
	if err := dec.Decode(&req); err != nil {
		h.record(observability.LoginRejected)
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		h.record(observability.LoginRejected)
		details := make(map[string]interface{})
		for k, v := range utils.GetValidationFields(err) {
			details[k] = v
		}
		_ = utils.WriteBadRequest(w, "Validation failed", details)
		return
	}

	principal, err := h.verifier.Verify(r.Context(), req.Username, req.Password)
	if err != nil {
		h.handleLoginError(w, requestID, err)
		return
	}

	token, err := h.issuer.CreateToken(principal, req.RememberMe)
	if err != nil {
		h.logger.Error("failed to issue token",
			zap.String("request_id", requestID),
			zap.String("login", principal.Subject),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "An internal error occurred")
		return
	}

	h.record(observability.LoginSuccess)
	h.logger.Info("login succeeded",
		zap.String("request_id", requestID),
		zap.String("login", principal.Subject),
		zap.Bool("remember_me", req.RememberMe))

	w.Header().Set(middleware.AuthorizationHeader, middleware.BearerPrefix+token)
	_ = utils.WriteJSON(w, http.StatusOK, TokenResponse{IDToken: token})
}

func (h *Handler) handleLoginError(w http.ResponseWriter, requestID string, err error) {
	switch {
	case services.IsNotActivatedError(err):
		h.record(observability.LoginNotActivated)
		h.logger.Info("login refused, account not activated", zap.String("request_id", requestID))
		if h.revealNotActivated {
			_ = utils.WriteAuthError(w, utils.CodeUserNotActivated, "User account is not activated")
			return
		}
		_ = utils.WriteAuthError(w, utils.CodeInvalidCredentials, "Invalid username or password")

	case services.IsNotFoundError(err), services.IsBadCredentialsError(err):
		h.record(observability.LoginBadCredentials)
		h.logger.Info("login refused, bad credentials", zap.String("request_id", requestID))
		_ = utils.WriteAuthError(w, utils.CodeInvalidCredentials, "Invalid username or password")

	default:
		h.logger.Error("login failed", zap.String("request_id", requestID), zap.Error(err))
		_ = utils.WriteInternalServerError(w, "An internal error occurred")
	}
}

func (h *Handler) record(outcome string) {
	if h.recorder != nil {
		h.recorder.RecordLogin(outcome)
	}
}
