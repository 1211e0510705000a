package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieWriter_SetTokens(t *testing.T) {
	w := httptest.NewRecorder()
	writer := CookieWriter{Names: DefaultCookieNames(), Secure: true, Domain: "example.com"}

	accessExp := time.Now().Add(time.Hour)
	refreshExp := time.Now().Add(24 * time.Hour)
	writer.SetTokens(w, "new-access", accessExp, "new-refresh", refreshExp)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 2)

	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
	}

	access := byName["access_token"]
	require.NotNil(t, access)
	assert.Equal(t, "new-access", access.Value)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, "/", access.Path)
	assert.Equal(t, http.SameSiteLaxMode, access.SameSite)
	assert.Greater(t, access.MaxAge, 3500)

	refresh := byName["refresh_token"]
	require.NotNil(t, refresh)
	assert.Equal(t, "new-refresh", refresh.Value)
	assert.Greater(t, refresh.MaxAge, access.MaxAge)
}
