package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenClaims is the signed payload of locally issued tokens.
type tokenClaims struct {
	jwt.RegisteredClaims
	Kind TokenKind `json:"kind"`
}

// IssuedToken is a freshly signed token.
type IssuedToken struct {
	Raw       string
	ID        string
	ExpiresAt time.Time
}

// IssuerOptions configures token issuance.
type IssuerOptions struct {
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Issuer signs access and refresh tokens with the active key of a KeySet.
type Issuer struct {
	keys *KeySet
	opts IssuerOptions
	now  func() time.Time
}

// NewIssuer creates an issuer backed by keys.
func NewIssuer(keys *KeySet, opts IssuerOptions) *Issuer {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = time.Hour
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 30 * 24 * time.Hour
	}
	return &Issuer{keys: keys, opts: opts, now: time.Now}
}

// Issue signs a token of the given kind for subject.
func (i *Issuer) Issue(subject string, kind TokenKind) (*IssuedToken, error) {
	if subject == "" {
		return nil, fmt.Errorf("issue token: subject is required")
	}

	ttl := i.opts.AccessTTL
	if kind == TokenKindRefresh {
		ttl = i.opts.RefreshTTL
	}

	now := i.now().UTC()
	exp := now.Add(ttl)
	jti := uuid.NewString()

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.opts.Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
		Kind: kind,
	}
	if i.opts.Audience != "" {
		claims.Audience = jwt.ClaimStrings{i.opts.Audience}
	}

	kid, key := i.keys.SigningKey()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	raw, err := token.SignedString(key)
	if err != nil {
		return nil, fmt.Errorf("sign %s token: %w", kind, err)
	}

	return &IssuedToken{Raw: raw, ID: jti, ExpiresAt: exp}, nil
}
