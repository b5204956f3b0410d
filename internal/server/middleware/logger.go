package middleware

import (
	"log/slog"
	"net/http"
)

// NewRequestLogger logs each realtime handshake before the upgrade. The
// identity gate runs later in the chain, so the user id is not available
// here; it appears on the connection-scoped logger instead.
func NewRequestLogger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta, ok := ReqMetadataFrom(r.Context())
			var ip string
			if ok {
				ip = reqMeta.IP
			}

			logger.Info("Incoming handshake",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("ip", ip),
			)
			next.ServeHTTP(w, r)
		})
	}
}
