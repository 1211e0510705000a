package identity

import (
	"errors"
	"fmt"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
)

var (
	// ErrNotFound is returned for unknown account references.
	ErrNotFound = errors.New("account not found")

	// ErrInvalidCredentials is returned for unknown, disabled or mismatched API keys.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountDisabled is returned when an operation requires an enabled account.
	ErrAccountDisabled = errors.New("account disabled")

	// ErrInvalidToken is returned for tokens that fail verification or were
	// rejected by the provider. It is the same value as auth.ErrInvalidToken.
	ErrInvalidToken = auth.ErrInvalidToken
)

// ProviderError reports that the identity provider itself failed, as opposed
// to rejecting the credential.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsProviderFailure reports whether err is, or wraps, a *ProviderError.
func IsProviderFailure(err error) bool {
	var perr *ProviderError
	return errors.As(err, &perr)
}

func providerFailure(op string, err error) error {
	return &ProviderError{Op: op, Err: err}
}
