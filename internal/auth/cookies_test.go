package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSessionCookie_IssuesNew(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/auth/nonce", nil)
	w := httptest.NewRecorder()

	session := auth.EnsureSessionCookie(w, req, auth.CookieConfig{Secure: true, SameSite: "lax", MaxAge: 3600})

	require.NotEmpty(t, session)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionCookieName, cookies[0].Name)
	assert.Equal(t, session, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
}

func TestEnsureSessionCookie_ReusesExisting(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/auth/nonce", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "existing"})
	w := httptest.NewRecorder()

	session := auth.EnsureSessionCookie(w, req, auth.CookieConfig{})

	assert.Equal(t, "existing", session)
	assert.Empty(t, w.Result().Cookies())
}

func TestGetSessionCookie_EmptyValue(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: ""})

	_, err := auth.GetSessionCookie(req)
	assert.ErrorIs(t, err, http.ErrNoCookie)
}
