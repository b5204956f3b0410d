package api

import (
	"log/slog"
	"net/http"

	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/internal/apikey"
	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/internal/metrics"
	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/internal/server/middleware"
)

// Config carries the static credentials the routes are guarded with.
type Config struct {
	// Static key accepted alongside keys issued through the store.
	APIKey string
	// Key required for key-management endpoints.
	MasterKey string
}

// Routes assembles the /api handler tree.
func Routes(logger *slog.Logger, mailer Mailer, store *apikey.Store, m *metrics.Metrics, cfg Config) http.Handler {
	email := &emailHandler{mailer: mailer, metrics: m, logger: logger}
	keys := &keysHandler{store: store, logger: logger}

	validate := func(key string) bool {
		if cfg.APIKey != "" && key == cfg.APIKey {
			return true
		}
		return store.Validate(key)
	}
	apiKeyAuth := middleware.NewAPIKeyAuth(logger, validate)
	masterAuth := middleware.NewMasterKeyAuth(logger, cfg.MasterKey)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api", index)
	mux.HandleFunc("GET /api/email/health", email.health)
	mux.Handle("POST /api/email/send", apiKeyAuth(http.HandlerFunc(email.send)))
	mux.Handle("POST /api/email/verification", apiKeyAuth(http.HandlerFunc(email.verification)))
	mux.Handle("POST /api/email/reset-password", apiKeyAuth(http.HandlerFunc(email.resetPassword)))
	mux.Handle("POST /api/email/invitation", apiKeyAuth(http.HandlerFunc(email.invitation)))

	mux.Handle("POST /api/keys", masterAuth(http.HandlerFunc(keys.create)))
	mux.Handle("GET /api/keys", masterAuth(http.HandlerFunc(keys.list)))
	mux.Handle("GET /api/keys/{id}", masterAuth(http.HandlerFunc(keys.get)))
	mux.Handle("PUT /api/keys/{id}/revoke", masterAuth(http.HandlerFunc(keys.revoke)))
	mux.Handle("PUT /api/keys/{id}/reactivate", masterAuth(http.HandlerFunc(keys.reactivate)))
	mux.Handle("DELETE /api/keys/{id}", masterAuth(http.HandlerFunc(keys.delete)))

	return middleware.Chain(mux, middleware.SecurityHeaders())
}

func index(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, envelope{
		"success": true,
		"message": "RiverFlow SMTP Server API",
		"version": "1.0.0",
		"endpoints": envelope{
			"health":        "/api/email/health",
			"sendEmail":     "/api/email/send",
			"verification":  "/api/email/verification",
			"resetPassword": "/api/email/reset-password",
			"invitation":    "/api/email/invitation",
			"keys":          "/api/keys",
		},
	})
}
