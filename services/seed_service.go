package services

import (
	"context"
	"errors"

	"github.com/hrapp/hr-backend/models"
	"github.com/hrapp/hr-backend/repositories"
	"github.com/hrapp/hr-backend/security"
	"go.uber.org/zap"
)

// SeedAccount describes the bootstrap administrator
type SeedAccount struct {
	Login    string
	Email    string
	Password string
}

// AccountSeeder creates the base authorities and a first administrator on an empty store
type AccountSeeder struct {
	users       repositories.UserRepository
	authorities repositories.AuthorityRepository
	txManager   repositories.TransactionManager
	hasher      PasswordHasher
	logger      *zap.Logger
}

// NewAccountSeeder creates a new account seeder
func NewAccountSeeder(
	users repositories.UserRepository,
	authorities repositories.AuthorityRepository,
	txManager repositories.TransactionManager,
	hasher PasswordHasher,
	logger *zap.Logger,
) *AccountSeeder {
	return &AccountSeeder{
		users:       users,
		authorities: authorities,
		txManager:   txManager,
		hasher:      hasher,
		logger:      logger,
	}
}

// Seed runs in one transaction and reports whether an administrator was created.
// Authorities are always ensured; the administrator is only created when the
// user table is empty and a password is configured.
func (s *AccountSeeder) Seed(ctx context.Context, account SeedAccount) (bool, error) {
	created := false

	err := s.txManager.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
		for _, name := range []string{security.RoleAdmin, security.RoleUser} {
			if err := s.authorities.Ensure(ctx, name); err != nil {
				return err
			}
		}

		count, err := s.users.Count(ctx)
		if err != nil {
			return err
		}
		if count > 0 {
			s.logger.Debug("user table not empty, skipping admin seed", zap.Int("users", count))
			return nil
		}
		if account.Password == "" || account.Login == "" {
			s.logger.Info("no bootstrap admin configured, skipping admin seed")
			return nil
		}

		hash, err := s.hasher.Hash(account.Password)
		if err != nil {
			return err
		}

		admin := models.NewUser(account.Login, account.Email, hash, security.CurrentAuditor(ctx))
		admin.Activated = true
		admin.Authorities = []string{security.RoleAdmin, security.RoleUser}

		if err := s.users.Create(ctx, admin); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				return ErrDuplicateLogin
			}
			return err
		}

		created = true
		s.logger.Info("bootstrap admin account created", zap.String("login", admin.Login))
		return nil
	})
	if err != nil {
		var domainErr *DomainError
		if errors.As(err, &domainErr) {
			return false, err
		}
		return false, WrapInternal("failed to seed accounts", err)
	}

	return created, nil
}
