package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/hrapp/hr-backend/security"
)

// authoritiesSeparator joins role names inside the auth claim
const authoritiesSeparator = ","

// Claims is the token payload: registered claims plus the comma-joined role list
type Claims struct {
	Authorities string `json:"auth"`
	jwt.RegisteredClaims
}

// Config holds token lifetimes
type Config struct {
	TokenValidity           time.Duration
	TokenValidityRememberMe time.Duration
}

// Option configures a Provider
type Option func(*Provider)

// WithClock replaces the time source used for iat, exp and validation
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// Provider issues and validates HS512 session tokens.
// It holds no mutable state after construction and is safe for concurrent use.
type Provider struct {
	key                SigningKey
	validity           time.Duration
	validityRememberMe time.Duration
	parser             *jwt.Parser
	recorder           FailureRecorder
	logger             *zap.Logger
	now                func() time.Time
}

// NewProvider creates a token provider bound to key
func NewProvider(key SigningKey, cfg Config, recorder FailureRecorder, logger *zap.Logger, opts ...Option) (*Provider, error) {
	if key.IsZero() {
		return nil, ErrNoSigningSecret
	}
	if cfg.TokenValidity <= 0 {
		return nil, fmt.Errorf("token validity must be positive, got %s", cfg.TokenValidity)
	}
	if cfg.TokenValidityRememberMe <= 0 {
		return nil, fmt.Errorf("remember-me token validity must be positive, got %s", cfg.TokenValidityRememberMe)
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Provider{
		key:                key,
		validity:           cfg.TokenValidity,
		validityRememberMe: cfg.TokenValidityRememberMe,
		recorder:           recorder,
		logger:             logger,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.parser = jwt.NewParser(
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)

	return p, nil
}

// CreateToken signs a token for principal.
// rememberMe selects the longer validity.
func (p *Provider) CreateToken(principal security.Principal, rememberMe bool) (string, error) {
	if principal.Subject == "" {
		return "", errors.New("cannot issue token without subject")
	}

	validity := p.validity
	if rememberMe {
		validity = p.validityRememberMe
	}

	now := p.now()
	claims := Claims{
		Authorities: strings.Join(principal.Roles, authoritiesSeparator),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(p.key.bytes())
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// ValidateToken reports whether the token has a valid signature and is unexpired
func (p *Provider) ValidateToken(tokenString string) bool {
	_, err := p.Authenticate(tokenString)
	return err == nil
}

// Authenticate validates the token and derives the principal from its claims in one pass.
// Failures return one of ErrTokenExpired, ErrTokenUnsupported, ErrTokenMalformed,
// ErrTokenBadSignature or ErrTokenInvalid.
func (p *Provider) Authenticate(tokenString string) (*security.Principal, error) {
	if strings.TrimSpace(tokenString) == "" {
		p.logger.Debug("Invalid JWT token", zap.String("reason", "empty token"))
		return nil, ErrTokenInvalid
	}

	claims := &Claims{}
	_, err := p.parser.ParseWithClaims(tokenString, claims, p.keyFunc)
	if err != nil {
		sentinel, kind := classify(err)
		if kind != FailureInvalid {
			p.recorder.RecordTokenFailure(kind)
		}
		p.logger.Debug("Invalid JWT token",
			zap.String("reason", kind),
			zap.Error(err),
		)
		return nil, sentinel
	}

	if claims.Subject == "" {
		p.recorder.RecordTokenFailure(FailureMalformed)
		p.logger.Debug("Invalid JWT token", zap.String("reason", "missing subject"))
		return nil, ErrTokenMalformed
	}

	principal := security.NewPrincipal(claims.Subject, strings.Split(claims.Authorities, authoritiesSeparator)...)
	return &principal, nil
}

// keyFunc only hands out the key for HS512 tokens
func (p *Provider) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method != jwt.SigningMethodHS512 {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return p.key.bytes(), nil
}
