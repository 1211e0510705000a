package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidToken is returned for any token that fails parsing, signature,
	// expiry, issuer or audience checks.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenKindMismatch is returned when an access token is presented where
	// a refresh token is expected, or the reverse. It wraps ErrInvalidToken.
	ErrTokenKindMismatch = fmt.Errorf("%w: unexpected token kind", ErrInvalidToken)
)
