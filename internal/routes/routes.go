package routes

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/handlers"
	"github.com/BradenHooton/loginguard/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// Dependencies groups what the route table needs
type Dependencies struct {
	AuthHandler    *handlers.AuthHandler
	HealthHandler  *handlers.HealthHandler
	TokenManager   *auth.TokenManager
	NonceManager   *auth.NonceManager
	LoginRateLimit middleware.RateLimitConfig
	Logger         *slog.Logger
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Dependencies) {
	h := deps.AuthHandler
	nonce := func(action string) func(http.Handler) http.Handler {
		return middleware.FormNonce(deps.NonceManager, action, deps.Logger)
	}

	router.Get("/health", deps.HealthHandler.Health)

	router.Route("/auth", func(r chi.Router) {
		r.Get("/nonce", h.Nonce)

		// Login is guarded by the lockout pipeline and a coarse per-IP limit
		r.With(middleware.RateLimitByIP(deps.LoginRateLimit)).Post("/login", h.Login)

		// Nonce-protected forms
		r.With(nonce(auth.ActionLostPassword)).Post("/lost-password", h.LostPassword)
		r.With(nonce(auth.ActionRegister)).Post("/register", h.Register)
		r.With(nonce(auth.ActionResetPassword)).Post("/reset-password", h.ResetPassword)

		// Protected routes - authentication required
		r.With(auth.AuthMiddleware(deps.TokenManager)).Get("/me", h.Me)
	})
}
