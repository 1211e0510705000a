package auth

import (
	"net/http"
	"time"
)

// CookieWriter writes rotated token cookies onto a response.
type CookieWriter struct {
	Names  CookieNames
	Secure bool
	Domain string
	Path   string
}

// SetTokens sets the access and refresh cookies with the given expirations.
func (c CookieWriter) SetTokens(w http.ResponseWriter, accessToken string, accessExpires time.Time, refreshToken string, refreshExpires time.Time) {
	http.SetCookie(w, c.cookie(c.Names.Access, accessToken, accessExpires))
	http.SetCookie(w, c.cookie(c.Names.Refresh, refreshToken, refreshExpires))
}

func (c CookieWriter) cookie(name, value string, expires time.Time) *http.Cookie {
	path := c.Path
	if path == "" {
		path = "/"
	}
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   c.Domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if !expires.IsZero() {
		cookie.MaxAge = int(time.Until(expires).Seconds())
		if cookie.MaxAge <= 0 {
			cookie.MaxAge = -1
		}
	}
	return cookie
}
