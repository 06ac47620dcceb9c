package middleware

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/loginguard/internal/auth"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
)

const (
	// NonceField is the form field carrying the nonce
	NonceField = "form_nonce"
	// NonceHeader carries the nonce for JSON clients
	NonceHeader = "X-Form-Nonce"
)

// FormNonce rejects state-changing requests whose nonce was not issued for action
// and the caller's session cookie.
func FormNonce(manager *auth.NonceManager, action string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isStateChangingMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			nonce := r.Header.Get(NonceHeader)
			if nonce == "" {
				// Only inspect url-encoded or multipart bodies; JSON bodies stay unread
				nonce = r.PostFormValue(NonceField)
			}

			session, err := auth.GetSessionCookie(r)
			if err != nil || nonce == "" || !manager.Verify(nonce, action, session) {
				logger.WarnContext(r.Context(), "form nonce check failed",
					slog.String("action", action),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Bool("has_session", err == nil),
					slog.Bool("has_nonce", nonce != ""))
				pkghttp.WriteForbidden(w, "Security check failed")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isStateChangingMethod checks if the HTTP method modifies state
func isStateChangingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	default:
		return false
	}
}
