package auth

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// TokenKind distinguishes access tokens from refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Claims are the verified claims of a token. A Claims value only exists after
// signature, expiry, issuer and kind checks have passed.
type Claims struct {
	Subject   string    `mapstructure:"sub"`
	Issuer    string    `mapstructure:"iss"`
	Audience  []string  `mapstructure:"aud"`
	Kind      TokenKind `mapstructure:"kind"`
	ID        string    `mapstructure:"jti"`
	ExpiresAt time.Time `mapstructure:"exp"`
	IssuedAt  time.Time `mapstructure:"iat"`
	Email     string    `mapstructure:"email"`
}

// ClaimsFromMap decodes a generic claim map, as produced by OIDC token
// libraries, into Claims. Numeric dates may arrive as float64, json.Number,
// int64 or time.Time; aud may be a string or a list.
func ClaimsFromMap(raw map[string]any) (*Claims, error) {
	claims := &Claims{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       numericDateHook,
		WeaklyTypedInput: true,
		Result:           claims,
	})
	if err != nil {
		return nil, fmt.Errorf("create claims decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	return claims, nil
}

var timeType = reflect.TypeOf(time.Time{})

func numericDateHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != timeType {
		return data, nil
	}
	switch v := data.(type) {
	case time.Time:
		return v, nil
	case float64:
		sec := int64(v)
		return time.Unix(sec, int64((v-float64(sec))*1e9)).UTC(), nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	case int:
		return time.Unix(int64(v), 0).UTC(), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid numeric date %q: %w", v, err)
		}
		return time.Unix(int64(f), 0).UTC(), nil
	case nil:
		return time.Time{}, nil
	default:
		return nil, fmt.Errorf("unsupported numeric date type %T", data)
	}
}
