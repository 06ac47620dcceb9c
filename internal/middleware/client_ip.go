package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
)

type clientIPKey struct{}

// ClientIP resolves the caller's address once per request and stores it in the
// context. Unresolvable requests carry pkghttp.UnknownIP.
func ClientIP(resolver *pkghttp.IPResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, err := resolver.Resolve(r)
			if errors.Is(err, pkghttp.ErrNoValidClientIP) {
				logger.DebugContext(r.Context(), "no valid client ip",
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("path", r.URL.Path))
			}

			ctx := context.WithValue(r.Context(), clientIPKey{}, ip)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIPFromContext returns the address stored by ClientIP, or pkghttp.UnknownIP
func ClientIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	return pkghttp.UnknownIP
}
