package middleware

import (
	"context"
	"net/http"

	"seabridge/ms_odex_gateway/internal/infrastructure/config"
)

// ForwardTimeout wraps a handler to apply an extended timeout for routes
// that dispatch an outbound carrier call. The carrier client may take up
// to its own 30s timeout to resolve, which exceeds the default request
// deadlines; the server's WriteTimeout still applies on top.
func ForwardTimeout(cfg config.HTTPSettings) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), cfg.ForwardTimeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
