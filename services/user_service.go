package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hrapp/hr-backend/models"
	"github.com/hrapp/hr-backend/repositories"
	"github.com/hrapp/hr-backend/security"
	"go.uber.org/zap"
)

// UserInput carries the administrator-editable fields of an account
type UserInput struct {
	Login       string
	FirstName   string
	LastName    string
	Email       string
	LangKey     string
	Activated   bool
	Authorities []string
	// Password is only read on create; empty means a random one
	Password string
}

// UserService implements account administration on top of the user store
type UserService struct {
	users       repositories.UserRepository
	authorities repositories.AuthorityRepository
	txManager   repositories.TransactionManager
	hasher      PasswordHasher
	logger      *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(
	users repositories.UserRepository,
	authorities repositories.AuthorityRepository,
	txManager repositories.TransactionManager,
	hasher PasswordHasher,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		users:       users,
		authorities: authorities,
		txManager:   txManager,
		hasher:      hasher,
		logger:      logger,
	}
}

// CreateUser stores a new account audited as the current principal
func (s *UserService) CreateUser(ctx context.Context, in UserInput) (*models.User, error) {
	password := in.Password
	if password == "" {
		password = uuid.NewString()
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, WrapInternal("failed to hash password", err)
	}

	user := models.NewUser(in.Login, in.Email, hash, security.CurrentAuditor(ctx))
	applyProfile(user, in)

	err = s.txManager.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
		if err := s.checkAuthorities(ctx, user.Authorities); err != nil {
			return err
		}
		return s.users.Create(ctx, user)
	})
	if err != nil {
		return nil, s.mapError("failed to create user", err)
	}

	s.logger.Info("user created",
		zap.String("login", user.Login),
		zap.String("created_by", user.CreatedBy))
	return user, nil
}

// UpdateUser rewrites the profile and authorities of the account named by login
func (s *UserService) UpdateUser(ctx context.Context, login string, in UserInput) (*models.User, error) {
	var user *models.User

	err := s.txManager.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
		existing, err := s.users.FindByLogin(ctx, models.NormalizeLogin(login))
		if err != nil {
			return err
		}

		if in.Login != "" {
			existing.Login = models.NormalizeLogin(in.Login)
		}
		existing.Email = strings.TrimSpace(in.Email)
		applyProfile(existing, in)
		existing.UpdatedBy = security.CurrentAuditor(ctx)
		existing.UpdatedAt = time.Now().UTC()

		if err := s.checkAuthorities(ctx, existing.Authorities); err != nil {
			return err
		}
		if err := s.users.Update(ctx, existing); err != nil {
			return err
		}
		user = existing
		return nil
	})
	if err != nil {
		return nil, s.mapError("failed to update user", err)
	}

	s.logger.Info("user updated",
		zap.String("login", user.Login),
		zap.String("updated_by", user.UpdatedBy))
	return user, nil
}

// DeleteUser removes the account named by login. Callers cannot delete themselves.
func (s *UserService) DeleteUser(ctx context.Context, login string) error {
	login = models.NormalizeLogin(login)
	if login == security.CurrentAuditor(ctx) {
		return ErrForbidden
	}

	err := s.txManager.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
		user, err := s.users.FindByLogin(ctx, login)
		if err != nil {
			return err
		}
		return s.users.Delete(ctx, user.ID)
	})
	if err != nil {
		return s.mapError("failed to delete user", err)
	}

	s.logger.Info("user deleted",
		zap.String("login", login),
		zap.String("deleted_by", security.CurrentAuditor(ctx)))
	return nil
}

// GetUser loads one account with its authorities
func (s *UserService) GetUser(ctx context.Context, login string) (*models.User, error) {
	user, err := s.users.FindByLogin(ctx, models.NormalizeLogin(login))
	if err != nil {
		return nil, s.mapError("failed to load user", err)
	}
	return user, nil
}

// ListPublicUsers pages through activated accounts and returns the total count
func (s *UserService) ListPublicUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	total, err := s.users.CountActivated(ctx)
	if err != nil {
		return nil, 0, WrapInternal("failed to count users", err)
	}
	users, err := s.users.ListActivated(ctx, limit, offset)
	if err != nil {
		return nil, 0, WrapInternal("failed to list users", err)
	}
	return users, total, nil
}

// checkAuthorities rejects names the authority table does not know
func (s *UserService) checkAuthorities(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	known, err := s.authorities.List(ctx)
	if err != nil {
		return err
	}
	valid := make(map[string]struct{}, len(known))
	for _, name := range known {
		valid[name] = struct{}{}
	}

	var unknown []string
	for _, name := range names {
		if _, ok := valid[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return ErrInvalidInput.WithDetail("authorities", unknown)
	}
	return nil
}

func (s *UserService) mapError(message string, err error) error {
	var domainErr *DomainError
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, repositories.ErrNotFound):
		return ErrUserNotFound
	case errors.Is(err, repositories.ErrDuplicate):
		var dup *repositories.DuplicateError
		if errors.As(err, &dup) && strings.Contains(dup.Constraint, "email") {
			return ErrDuplicateEmail
		}
		return ErrDuplicateLogin
	default:
		return WrapInternal(message, err)
	}
}

func applyProfile(user *models.User, in UserInput) {
	user.FirstName = strings.TrimSpace(in.FirstName)
	user.LastName = strings.TrimSpace(in.LastName)
	user.LangKey = in.LangKey
	user.Activated = in.Activated
	user.Authorities = in.Authorities
	user.Authorities = user.AuthorityNames()
}
