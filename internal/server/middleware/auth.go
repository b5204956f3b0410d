package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// KeyValidator reports whether a presented API key is acceptable.
type KeyValidator func(key string) bool

func rejectJSON(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}

// NewAPIKeyAuth guards the email endpoints: requests must carry a valid
// X-API-Key header.
func NewAPIKeyAuth(logger *slog.Logger, validate KeyValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				rejectJSON(w, http.StatusUnauthorized, "API key is required")
				return
			}
			if !validate(key) {
				logger.Warn("Rejected request with invalid API key", slog.String("path", r.URL.Path))
				rejectJSON(w, http.StatusForbidden, "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewMasterKeyAuth guards key management: only the master key may manage
// API keys.
func NewMasterKeyAuth(logger *slog.Logger, masterKey string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-Master-Key")
			if key == "" {
				rejectJSON(w, http.StatusUnauthorized, "Master API key is required")
				return
			}
			if masterKey == "" || key != masterKey {
				logger.Warn("Rejected request with invalid master key", slog.String("path", r.URL.Path))
				rejectJSON(w, http.StatusForbidden, "Invalid Master API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
