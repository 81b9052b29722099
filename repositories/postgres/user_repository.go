package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hrapp/hr-backend/models"
	"github.com/hrapp/hr-backend/repositories"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// uniqueViolation is the Postgres SQLSTATE for duplicate keys
const uniqueViolation = "23505"

const userColumns = `id, login, password_hash, COALESCE(first_name, ''), COALESCE(last_name, ''),
		COALESCE(email, ''), activated, COALESCE(lang_key, ''), created_by, created_at,
		COALESCE(updated_by, ''), updated_at`

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// FindByLogin retrieves a user by login together with its authorities
func (r *UserRepository) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM sec_user WHERE login = $1`
	return r.getOne(ctx, query, login)
}

// FindByEmail retrieves a user by email, case-insensitively, together with its authorities
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM sec_user WHERE LOWER(email) = LOWER($1)`
	return r.getOne(ctx, query, email)
}

// GetByID retrieves a user by ID together with its authorities
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM sec_user WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	executor := GetExecutor(ctx, r.db)

	user, err := scanUser(executor.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := r.loadAuthorities(ctx, executor, []*models.User{user}); err != nil {
		return nil, err
	}

	return user, nil
}

// Create inserts the user and links its authorities
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO sec_user (id, login, password_hash, first_name, last_name, email, activated,
			lang_key, created_by, created_at, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		user.ID,
		user.Login,
		user.PasswordHash,
		nullString(user.FirstName),
		nullString(user.LastName),
		nullString(user.Email),
		user.Activated,
		nullString(user.LangKey),
		user.CreatedBy,
		user.CreatedAt,
		nullString(user.UpdatedBy),
		user.UpdatedAt,
	)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	if err := grantAuthorities(ctx, executor, user); err != nil {
		return err
	}

	r.logger.Debug("user created", zap.String("id", user.ID.String()), zap.String("login", user.Login))
	return nil
}

// Update rewrites the profile columns and replaces the authority links.
// The password hash and creation audit columns are left untouched.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE sec_user
		SET login = $2, first_name = $3, last_name = $4, email = $5, activated = $6,
			lang_key = $7, updated_by = $8, updated_at = $9
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		user.ID,
		user.Login,
		nullString(user.FirstName),
		nullString(user.LastName),
		nullString(user.Email),
		user.Activated,
		nullString(user.LangKey),
		nullString(user.UpdatedBy),
		user.UpdatedAt,
	)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	if _, err := executor.ExecContext(ctx, `DELETE FROM sec_user_authority WHERE user_id = $1`, user.ID); err != nil {
		return fmt.Errorf("failed to revoke authorities: %w", err)
	}
	if err := grantAuthorities(ctx, executor, user); err != nil {
		return err
	}

	r.logger.Debug("user updated", zap.String("id", user.ID.String()), zap.String("login", user.Login))
	return nil
}

// Delete removes the user; authority links go with it through ON DELETE CASCADE
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, `DELETE FROM sec_user WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	r.logger.Debug("user deleted", zap.String("id", id.String()))
	return nil
}

func grantAuthorities(ctx context.Context, executor Executor, user *models.User) error {
	linkQuery := `INSERT INTO sec_user_authority (user_id, authority_name) VALUES ($1, $2)`
	for _, name := range user.AuthorityNames() {
		if _, err := executor.ExecContext(ctx, linkQuery, user.ID, name); err != nil {
			return fmt.Errorf("failed to grant authority %s: %w", name, err)
		}
	}
	return nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// duplicateError converts a unique violation into a repositories.DuplicateError
func duplicateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return &repositories.DuplicateError{Constraint: pqErr.Constraint}
	}
	return nil
}

// List retrieves users ordered by login
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM sec_user ORDER BY login LIMIT $1 OFFSET $2`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	if err := r.loadAuthorities(ctx, executor, users); err != nil {
		return nil, err
	}

	return users, nil
}

// ListActivated retrieves activated users ordered by login. Authorities are not loaded.
func (r *UserRepository) ListActivated(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT id, login FROM sec_user WHERE activated = true ORDER BY login LIMIT $1 OFFSET $2`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0, limit)
	for rows.Next() {
		user := &models.User{Activated: true}
		if err := rows.Scan(&user.ID, &user.Login); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	return users, nil
}

// CountActivated returns the number of activated users
func (r *UserRepository) CountActivated(ctx context.Context) (int, error) {
	var count int
	executor := GetExecutor(ctx, r.db)
	if err := executor.QueryRowContext(ctx, `SELECT COUNT(*) FROM sec_user WHERE activated = true`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// Count returns the number of stored users
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	executor := GetExecutor(ctx, r.db)
	if err := executor.QueryRowContext(ctx, `SELECT COUNT(*) FROM sec_user`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// loadAuthorities fills Authorities for every user with a single query
func (r *UserRepository) loadAuthorities(ctx context.Context, executor Executor, users []*models.User) error {
	if len(users) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*models.User, len(users))
	ids := make([]string, 0, len(users))
	for _, u := range users {
		u.Authorities = []string{}
		byID[u.ID] = u
		ids = append(ids, u.ID.String())
	}

	query := `
		SELECT user_id, authority_name
		FROM sec_user_authority
		WHERE user_id = ANY($1::uuid[])
		ORDER BY authority_name
	`
	rows, err := executor.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query authorities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID uuid.UUID
			name   string
		)
		if err := rows.Scan(&userID, &name); err != nil {
			return fmt.Errorf("failed to scan authority: %w", err)
		}
		if u, ok := byID[userID]; ok {
			u.Authorities = append(u.Authorities, name)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating authority rows: %w", err)
	}

	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Login,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.Activated,
		&user.LangKey,
		&user.CreatedBy,
		&user.CreatedAt,
		&user.UpdatedBy,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
