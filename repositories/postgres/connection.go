package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hrapp/hr-backend/config"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// WrapDB wraps an existing pool, used with sqlmock in tests
func WrapDB(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{DB: db, logger: logger}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// schema mirrors the identity tables of the HR application
const schema = `
	CREATE TABLE IF NOT EXISTS sec_user (
		id UUID PRIMARY KEY,
		login VARCHAR(50) NOT NULL UNIQUE,
		password_hash VARCHAR(60) NOT NULL,
		first_name VARCHAR(50),
		last_name VARCHAR(50),
		email VARCHAR(254) UNIQUE,
		activated BOOLEAN NOT NULL DEFAULT false,
		lang_key VARCHAR(10),
		created_by VARCHAR(50) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_by VARCHAR(50),
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sec_authority (
		name VARCHAR(50) PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS sec_user_authority (
		user_id UUID NOT NULL REFERENCES sec_user(id) ON DELETE CASCADE,
		authority_name VARCHAR(50) NOT NULL REFERENCES sec_authority(name),
		PRIMARY KEY (user_id, authority_name)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_sec_user_email_lower ON sec_user(LOWER(email));
`

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}
