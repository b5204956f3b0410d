package middleware

import (
	"log/slog"
	"net/http"

	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/pkg/config"
)

type UserConnectionCounter func(userID string) int
type UserConnectionCycler func(userID string)

// NewConnectionLimiter bounds concurrent connections per identified user.
// Anonymous connections are exempt: the limit keys on user id, which they
// don't have.
func NewConnectionLimiter(
	logger *slog.Logger,
	counter UserConnectionCounter,
	cycler UserConnectionCycler,
	cfg config.ConnectionLimitConfig,
) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.MaxPerUser <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				logger.Error("Connection limiter could not find request metadata in context. Check middleware order.")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if reqMeta.UserID == "" {
				next.ServeHTTP(w, r)
				return
			}

			count := counter(reqMeta.UserID)
			if count < cfg.MaxPerUser {
				next.ServeHTTP(w, r)
				return
			}

			logger.Warn("User connection limit reached", slog.String("userID", reqMeta.UserID), slog.Int("count", count))
			switch cfg.Mode {
			case "reject":
				http.Error(w, "Too Many Active Connections", http.StatusTooManyRequests)
			case "cycle":
				cycler(reqMeta.UserID)
				next.ServeHTTP(w, r)
			default:
				logger.Error("Invalid connection limit mode configured", slog.String("mode", cfg.Mode))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		})
	}
}
