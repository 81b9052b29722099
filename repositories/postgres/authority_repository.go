package postgres

import (
	"context"
	"fmt"

	"github.com/hrapp/hr-backend/repositories"
	"go.uber.org/zap"
)

// AuthorityRepository implements the repositories.AuthorityRepository interface
type AuthorityRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuthorityRepository creates a new authority repository
func NewAuthorityRepository(db *DB, logger *zap.Logger) repositories.AuthorityRepository {
	return &AuthorityRepository{db: db, logger: logger}
}

// List returns all authority names sorted
func (r *AuthorityRepository) List(ctx context.Context) ([]string, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, `SELECT name FROM sec_authority ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query authorities: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan authority: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating authority rows: %w", err)
	}

	return names, nil
}

// Ensure inserts the authority unless it already exists
func (r *AuthorityRepository) Ensure(ctx context.Context, name string) error {
	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx,
		`INSERT INTO sec_authority (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return fmt.Errorf("failed to ensure authority %s: %w", name, err)
	}

	r.logger.Debug("authority ensured", zap.String("name", name))
	return nil
}
