package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Validator verifies a raw token and returns its claims. Any failure is
// reported as an error wrapping ErrInvalidToken; invalid tokens are an
// ordinary outcome, not a fault.
type Validator interface {
	Validate(ctx context.Context, raw string, kind TokenKind) (*Claims, error)
}

// KeySetValidator verifies locally issued tokens against a KeySet. It does no
// network I/O and reads the key set on every call.
type KeySetValidator struct {
	keys     *KeySet
	issuer   string
	audience string
	now      func() time.Time
}

// NewKeySetValidator creates a validator for tokens issued by issuer. An
// empty audience disables the audience check.
func NewKeySetValidator(keys *KeySet, issuer, audience string) *KeySetValidator {
	return &KeySetValidator{keys: keys, issuer: issuer, audience: audience, now: time.Now}
}

// Validate implements Validator.
func (v *KeySetValidator) Validate(_ context.Context, raw string, kind TokenKind) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	parsed := &tokenClaims{}
	_, err := jwt.ParseWithClaims(raw, parsed, v.keyFunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if parsed.Kind != kind {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrTokenKindMismatch, parsed.Kind, kind)
	}
	if parsed.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	claims := &Claims{
		Subject:  parsed.Subject,
		Issuer:   parsed.Issuer,
		Audience: parsed.Audience,
		Kind:     parsed.Kind,
		ID:       parsed.ID,
	}
	if parsed.ExpiresAt != nil {
		claims.ExpiresAt = parsed.ExpiresAt.Time
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time
	}
	return claims, nil
}

func (v *KeySetValidator) keyFunc(token *jwt.Token) (any, error) {
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("token has no key id")
	}
	key, ok := v.keys.PublicKey(kid)
	if !ok {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return key, nil
}
