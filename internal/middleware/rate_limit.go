package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	KeyFunc           httprate.KeyFunc
}

// DefaultLoginRateLimit returns the throttle for the login endpoint (20 requests per minute)
func DefaultLoginRateLimit(resolver *pkghttp.IPResolver) RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 20,
		KeyFunc:           resolver.KeyFunc,
	}
}

// RateLimitByIP throttles requests per client address. This caps request volume per
// address; per-account lockouts are enforced by the login guard.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}

	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Rate limit exceeded")
		}),
	)
}
