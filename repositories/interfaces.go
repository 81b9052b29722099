package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hrapp/hr-backend/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when an insert violates a unique constraint
	ErrDuplicate = errors.New("record already exists")
)

// DuplicateError names the unique constraint a write violated. It matches ErrDuplicate.
type DuplicateError struct {
	Constraint string
}

func (e *DuplicateError) Error() string {
	return ErrDuplicate.Error() + ": " + e.Constraint
}

// Is reports ErrDuplicate as equal
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// IdentityStore is the read side used by credential verification.
// Both lookups return the user with its authorities loaded, or ErrNotFound.
type IdentityStore interface {
	// FindByLogin retrieves a user by its lower-cased login
	FindByLogin(ctx context.Context, login string) (*models.User, error)

	// FindByEmail retrieves a user by email, ignoring case
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// UserRepository handles user data operations
type UserRepository interface {
	IdentityStore

	// Create inserts a user and its authority links
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// List retrieves users ordered by login with pagination
	List(ctx context.Context, limit, offset int) ([]*models.User, error)

	// Count returns the number of stored users
	Count(ctx context.Context) (int, error)

	// ListActivated retrieves activated users ordered by login, without authorities
	ListActivated(ctx context.Context, limit, offset int) ([]*models.User, error)

	// CountActivated returns the number of activated users
	CountActivated(ctx context.Context) (int, error)

	// Update rewrites the profile columns and replaces the authority links
	Update(ctx context.Context, user *models.User) error

	// Delete removes the user and its authority links
	Delete(ctx context.Context, id uuid.UUID) error
}

// AuthorityRepository handles authority data operations
type AuthorityRepository interface {
	// List returns all authority names sorted
	List(ctx context.Context) ([]string, error)

	// Ensure creates the authority if it does not exist
	Ensure(ctx context.Context, name string) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users       UserRepository
	Authorities AuthorityRepository
}
