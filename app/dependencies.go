package app

import (
	"context"
	"fmt"

	"github.com/hrapp/hr-backend/auth"
	"github.com/hrapp/hr-backend/config"
	"github.com/hrapp/hr-backend/handlers"
	"github.com/hrapp/hr-backend/internal/observability"
	"github.com/hrapp/hr-backend/middleware"
	"github.com/hrapp/hr-backend/repositories"
	"github.com/hrapp/hr-backend/repositories/postgres"
	"github.com/hrapp/hr-backend/services"
	"github.com/hrapp/hr-backend/token"
	"go.uber.org/zap"
)

// Name and Version are reported at /management/info
const Name = "hr-backend"

var Version = "0.1.0"

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users       repositories.UserRepository
	Authorities repositories.AuthorityRepository
	TxManager   repositories.TransactionManager

	// Security
	Meters      *observability.SecurityMeters
	Tokens      *token.Provider
	Hasher      services.PasswordHasher
	Credentials *services.CredentialService
	Seeder      *services.AccountSeeder
	UserService *services.UserService

	// HTTP
	AuthMiddleware *middleware.AuthMiddleware
	AuthHandler    *auth.Handler
	AccountHandler *handlers.AccountHandler
	UserHandler    *handlers.UserHandler
	HealthHandler  *handlers.HealthHandler
}

// NewDependencies opens the database and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	// Fail on bad secrets before touching the database
	key, err := token.LoadSigningKey(cfg.Security.Base64Secret, cfg.Security.Secret, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps, err := newDependencies(cfg, key, factory, logger)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// NewDependenciesWithDB wires dependencies over an already open pool
func NewDependenciesWithDB(cfg *config.Config, db *postgres.DB, logger *zap.Logger) (*Dependencies, error) {
	key, err := token.LoadSigningKey(cfg.Security.Base64Secret, cfg.Security.Secret, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}
	return newDependencies(cfg, key, postgres.NewRepositoryFactoryFromDB(db, logger), logger)
}

func newDependencies(cfg *config.Config, key token.SigningKey, factory *postgres.RepositoryFactory, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		RepoFactory: factory,
		DB:          factory.GetDB(),
	}

	deps.initRepositories()

	if err := deps.initSecurity(cfg, key); err != nil {
		return nil, fmt.Errorf("failed to initialize security: %w", err)
	}

	deps.initHandlers(cfg)
	return deps, nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Users = repos.Users
	d.Authorities = repos.Authorities
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initSecurity(cfg *config.Config, key token.SigningKey) error {
	d.Meters = observability.NewSecurityMeters()

	provider, err := token.NewProvider(key, token.Config{
		TokenValidity:           cfg.Security.TokenValidity,
		TokenValidityRememberMe: cfg.Security.TokenValidityRememberMe,
	}, d.Meters, d.Logger)
	if err != nil {
		return err
	}
	d.Tokens = provider

	d.Hasher = services.NewBcryptHasher(cfg.Security.BcryptCost)
	d.Credentials = services.NewCredentialService(d.Users, d.Hasher, d.Logger)
	d.Seeder = services.NewAccountSeeder(d.Users, d.Authorities, d.TxManager, d.Hasher, d.Logger)
	d.UserService = services.NewUserService(d.Users, d.Authorities, d.TxManager, d.Hasher, d.Logger)
	d.AuthMiddleware = middleware.NewAuthMiddleware(provider, d.Logger)

	d.Logger.Info("security initialized",
		zap.String("key_source", string(key.Source())),
		zap.Duration("token_validity", cfg.Security.TokenValidity),
		zap.Duration("token_validity_remember_me", cfg.Security.TokenValidityRememberMe),
		zap.Bool("reveal_not_activated", cfg.Security.RevealNotActivated))
	return nil
}

func (d *Dependencies) initHandlers(cfg *config.Config) {
	d.AuthHandler = auth.NewHandler(d.Credentials, d.Tokens, d.Meters, cfg.Security.RevealNotActivated, d.Logger)
	d.AccountHandler = handlers.NewAccountHandler(d.Users, d.Authorities, d.Logger)
	d.UserHandler = handlers.NewUserHandler(d.UserService, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(d.DB.DB, handlers.InfoResponse{
		Name:        Name,
		Version:     Version,
		Environment: cfg.Environment,
	}, d.Logger)
}

// Bootstrap creates the schema when configured and seeds the base accounts
func (d *Dependencies) Bootstrap(ctx context.Context) error {
	if d.Config.Database.InitSchema {
		if err := d.DB.InitSchema(ctx); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	seed := d.Config.Security.SeedAdmin
	if _, err := d.Seeder.Seed(ctx, services.SeedAccount{
		Login:    seed.Login,
		Email:    seed.Email,
		Password: seed.Password,
	}); err != nil {
		return fmt.Errorf("failed to seed accounts: %w", err)
	}

	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
