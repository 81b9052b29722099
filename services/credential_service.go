package services

import (
	"context"
	"errors"
	"strings"

	"github.com/hrapp/hr-backend/models"
	"github.com/hrapp/hr-backend/repositories"
	"github.com/hrapp/hr-backend/security"
	"github.com/hrapp/hr-backend/utils"
	"go.uber.org/zap"
)

// CredentialService checks a username/password pair against the identity store
type CredentialService struct {
	store     repositories.IdentityStore
	hasher    PasswordHasher
	dummyHash string
	logger    *zap.Logger
}

// dummyPassword is hashed once so unknown users cost one comparison like known ones
const dummyPassword = "userNotFoundPassword"

// NewCredentialService creates a new credential service
func NewCredentialService(store repositories.IdentityStore, hasher PasswordHasher, logger *zap.Logger) *CredentialService {
	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		logger.Warn("failed to prepare dummy password hash", zap.Error(err))
	}
	return &CredentialService{
		store:     store,
		hasher:    hasher,
		dummyHash: dummyHash,
		logger:    logger,
	}
}

// Verify resolves the user and checks the password.
//
// Email-shaped usernames are looked up by email ignoring case; anything else
// is lower-cased and looked up by login. Activation is checked before the
// password. Errors are ErrUserNotFound, ErrUserNotActivated, ErrBadCredentials
// or an internal error when the store fails.
func (s *CredentialService) Verify(ctx context.Context, username, password string) (security.Principal, error) {
	s.logger.Debug("authenticating", zap.String("username", username))

	user, err := s.lookup(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// spend the same bcrypt work as a wrong password
			_ = s.hasher.Compare(s.dummyHash, password)
			return security.Principal{}, ErrUserNotFound
		}
		return security.Principal{}, WrapInternal("failed to load user", err)
	}

	if !user.Activated {
		return security.Principal{}, ErrUserNotActivated
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if !IsBadCredentialsError(err) {
			s.logger.Warn("password comparison failed", zap.String("login", user.Login), zap.Error(err))
		}
		return security.Principal{}, ErrBadCredentials
	}

	return security.NewPrincipal(user.Login, user.AuthorityNames()...), nil
}

func (s *CredentialService) lookup(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if utils.IsEmail(username) {
		return s.store.FindByEmail(ctx, username)
	}
	return s.store.FindByLogin(ctx, models.NormalizeLogin(username))
}
