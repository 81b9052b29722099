package token

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired is returned when the exp claim is not after the current time
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenUnsupported is returned for tokens signed with anything other than HS512
	ErrTokenUnsupported = errors.New("unsupported token")

	// ErrTokenMalformed is returned when the token cannot be decoded or lacks required claims
	ErrTokenMalformed = errors.New("malformed token")

	// ErrTokenBadSignature is returned when the signature does not match the signing key
	ErrTokenBadSignature = errors.New("invalid token signature")

	// ErrTokenInvalid is returned for any other rejection, including empty input
	ErrTokenInvalid = errors.New("invalid token")
)

// Failure kinds reported to a FailureRecorder
const (
	FailureExpired          = "expired"
	FailureUnsupported      = "unsupported"
	FailureMalformed        = "malformed"
	FailureInvalidSignature = "invalid_signature"
	FailureInvalid          = "invalid"
)

// FailureRecorder counts token validation failures by kind
type FailureRecorder interface {
	RecordTokenFailure(kind string)
}

type nopRecorder struct{}

func (nopRecorder) RecordTokenFailure(string) {}

// classify maps a jwt parse error to one of the package sentinels and its failure kind
func classify(err error) (error, string) {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired, FailureExpired
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenUnsupported, FailureUnsupported
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenBadSignature, FailureInvalidSignature
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ErrTokenMalformed, FailureMalformed
	default:
		return ErrTokenInvalid, FailureInvalid
	}
}

// FailureKind reports the failure kind for an error returned by Authenticate
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return FailureExpired
	case errors.Is(err, ErrTokenUnsupported):
		return FailureUnsupported
	case errors.Is(err, ErrTokenBadSignature):
		return FailureInvalidSignature
	case errors.Is(err, ErrTokenMalformed):
		return FailureMalformed
	default:
		return FailureInvalid
	}
}
