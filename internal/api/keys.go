package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/internal/apikey"
)

type keysHandler struct {
	store  *apikey.Store
	logger *slog.Logger
}

func (h *keysHandler) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	var v validator
	v.required("name", req.Name, "Name is required")
	v.maxLen("name", req.Name, 100, "Name must not exceed 100 characters")
	v.maxLen("description", req.Description, 500, "Description must not exceed 500 characters")
	if len(v.errs) > 0 {
		respondValidation(w, v.errs)
		return
	}

	key, err := h.store.Create(strings.TrimSpace(req.Name), strings.TrimSpace(req.Description))
	if err != nil {
		h.logger.Error("Failed to create API key", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "Failed to create API key")
		return
	}

	// The full key material appears here and nowhere else.
	respond(w, http.StatusCreated, envelope{
		"success": true,
		"message": "API key created successfully",
		"data": envelope{
			"id":          key.ID,
			"key":         key.Key,
			"name":        key.Name,
			"description": key.Description,
			"createdAt":   key.CreatedAt,
			"warning":     "Save this key securely. You will not be able to see it again.",
		},
	})
}

func (h *keysHandler) list(w http.ResponseWriter, r *http.Request) {
	keys := h.store.List()
	respond(w, http.StatusOK, envelope{
		"success": true,
		"count":   len(keys),
		"data":    keys,
	})
}

func (h *keysHandler) get(w http.ResponseWriter, r *http.Request) {
	key, ok := h.store.Get(r.PathValue("id"))
	if !ok {
		respondError(w, http.StatusNotFound, "API key not found")
		return
	}
	respond(w, http.StatusOK, envelope{"success": true, "data": key})
}

func (h *keysHandler) revoke(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, h.store.Revoke(r.PathValue("id")), "API key revoked successfully")
}

func (h *keysHandler) reactivate(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, h.store.Reactivate(r.PathValue("id")), "API key reactivated successfully")
}

func (h *keysHandler) delete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, h.store.Delete(r.PathValue("id")), "API key deleted successfully")
}

func (h *keysHandler) mutate(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, apikey.ErrNotFound):
		respondError(w, http.StatusNotFound, "API key not found")
	case err != nil:
		h.logger.Error("API key mutation failed", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "Failed to update API key")
	default:
		respond(w, http.StatusOK, envelope{"success": true, "message": message})
	}
}
