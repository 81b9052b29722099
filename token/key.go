package token

import (
	"encoding/base64"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// MinKeyLength is the minimum signing key size in bytes accepted for HS512
const MinKeyLength = 64

var (
	// ErrNoSigningSecret is returned when neither secret source is configured
	ErrNoSigningSecret = errors.New("no signing secret configured")

	// ErrWeakSigningKey is returned when the decoded key is shorter than MinKeyLength
	ErrWeakSigningKey = fmt.Errorf("signing key must be at least %d bytes", MinKeyLength)

	// ErrInvalidBase64Secret is returned when the base64 secret cannot be decoded
	ErrInvalidBase64Secret = errors.New("base64 signing secret is not valid standard base64")
)

// KeySource records where the signing key material came from
type KeySource string

const (
	SourceBase64 KeySource = "base64"
	SourcePlain  KeySource = "plain"
)

// SigningKey is the immutable HMAC key shared by token issuing and validation.
// Its String and GoString methods never reveal the key material.
type SigningKey struct {
	material []byte
	source   KeySource
}

// LoadSigningKey derives the signing key from configuration.
// A non-empty base64 secret takes precedence and is decoded with the standard
// alphabet; otherwise the plain secret is used as UTF-8 bytes.
func LoadSigningKey(base64Secret, plainSecret string, logger *zap.Logger) (SigningKey, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var key SigningKey
	switch {
	case base64Secret != "":
		decoded, err := base64.StdEncoding.DecodeString(base64Secret)
		if err != nil {
			return SigningKey{}, fmt.Errorf("%w: %v", ErrInvalidBase64Secret, err)
		}
		key = SigningKey{material: decoded, source: SourceBase64}
		logger.Debug("Using a base64-encoded JWT secret key")
	case plainSecret != "":
		key = SigningKey{material: []byte(plainSecret), source: SourcePlain}
		logger.Warn("Using a plain-text JWT secret key, consider a base64-encoded secret for production")
	default:
		return SigningKey{}, ErrNoSigningSecret
	}

	if len(key.material) < MinKeyLength {
		return SigningKey{}, fmt.Errorf("%w: got %d bytes", ErrWeakSigningKey, len(key.material))
	}

	return key, nil
}

// Source reports which secret produced the key
func (k SigningKey) Source() KeySource {
	return k.source
}

// Len returns the key size in bytes
func (k SigningKey) Len() int {
	return len(k.material)
}

// IsZero reports whether the key was never loaded
func (k SigningKey) IsZero() bool {
	return len(k.material) == 0
}

func (k SigningKey) String() string {
	return fmt.Sprintf("SigningKey(%s, %d bytes, [REDACTED])", k.source, len(k.material))
}

func (k SigningKey) GoString() string {
	return k.String()
}

// bytes returns a copy so callers can never mutate the shared key
func (k SigningKey) bytes() []byte {
	out := make([]byte, len(k.material))
	copy(out, k.material)
	return out
}
