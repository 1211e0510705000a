package auth

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// CookieNames names the cookies that carry credentials.
type CookieNames struct {
	Session string
	Access  string
	Refresh string
}

// DefaultCookieNames returns the standard credential cookie names.
func DefaultCookieNames() CookieNames {
	return CookieNames{
		Session: "idSiteSession",
		Access:  "access_token",
		Refresh: "refresh_token",
	}
}

// Credential is raw credential material read from a request, tagged by source.
// Exactly one of the payload fields is meaningful for a given Source:
//   - SourceExisting: Principal
//   - SourceSession, SourceAccessToken, SourceRefreshToken, SourceBearer: Value
//   - SourceBasic: ID and Secret
//
// Malformed marks a credential whose source is present but whose syntax could
// not be parsed. Validation must reject it.
type Credential struct {
	Source    Source
	Principal *Principal
	Value     string
	ID        string
	Secret    string
	Malformed bool
}

// Credentials is the set of candidates present on a request, in precedence order.
type Credentials []Credential

// Get returns the candidate for source, if present.
func (c Credentials) Get(source Source) (Credential, bool) {
	for _, cred := range c {
		if cred.Source == source {
			return cred, true
		}
	}
	return Credential{}, false
}

// Has reports whether a candidate for source is present.
func (c Credentials) Has(source Source) bool {
	_, ok := c.Get(source)
	return ok
}

// ExtractCredentials reads every credential candidate present on r without
// interpreting it. It performs no I/O.
func ExtractCredentials(r *http.Request, names CookieNames) Credentials {
	var creds Credentials

	if principal, ok := PrincipalFromContext(r.Context()); ok {
		creds = append(creds, Credential{Source: SourceExisting, Principal: principal})
	}

	for _, c := range []struct {
		source Source
		name   string
	}{
		{SourceSession, names.Session},
		{SourceAccessToken, names.Access},
		{SourceRefreshToken, names.Refresh},
	} {
		if c.name == "" {
			continue
		}
		cookie, err := r.Cookie(c.name)
		if err != nil {
			continue
		}
		value := strings.TrimSpace(cookie.Value)
		creds = append(creds, Credential{Source: c.source, Value: value, Malformed: value == ""})
	}

	if cred, ok := ParseAuthorization(r.Header.Get("Authorization")); ok {
		creds = append(creds, cred)
	}

	return creds
}

// ParseAuthorization parses a Basic or Bearer Authorization header value.
// Other schemes and an empty header report ok=false. A recognised scheme
// with an unusable payload is returned with Malformed set.
func ParseAuthorization(header string) (Credential, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Credential{}, false
	}

	scheme, payload, _ := strings.Cut(header, " ")
	payload = strings.TrimSpace(payload)

	switch {
	case strings.EqualFold(scheme, "Basic"):
		id, secret, ok := decodeBasic(payload)
		if !ok {
			return Credential{Source: SourceBasic, Malformed: true}, true
		}
		return Credential{Source: SourceBasic, ID: id, Secret: secret}, true
	case strings.EqualFold(scheme, "Bearer"):
		return Credential{Source: SourceBearer, Value: payload, Malformed: payload == ""}, true
	default:
		return Credential{}, false
	}
}

func decodeBasic(payload string) (string, string, bool) {
	if payload == "" {
		return "", "", false
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", "", false
	}

	id, secret, found := strings.Cut(string(decoded), ":")
	if !found || id == "" || secret == "" {
		return "", "", false
	}
	return id, secret, true
}
