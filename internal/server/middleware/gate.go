package middleware

import (
	"log/slog"
	"net/http"

	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/internal/realtime"
)

// NewIdentityGate resolves an optional identity for a websocket handshake.
// It runs exactly once per connection, before the upgrade. Verification
// soft-fails: a bad or absent credential leaves the connection anonymous
// rather than rejecting it; real authorization happens at join time.
func NewIdentityGate(logger *slog.Logger, jwtSecret string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			bearer := realtime.BearerFromRequest(r)
			reqMeta.Bearer = bearer
			if ident, verified := realtime.VerifyToken(bearer, jwtSecret); verified {
				reqMeta.UserID = ident.UserID
			} else if bearer != "" {
				logger.Debug("Handshake credential not verified; proceeding anonymous", slog.String("ip", reqMeta.IP))
			}

			next.ServeHTTP(w, r)
		})
	}
}
