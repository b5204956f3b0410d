// Package api implements the HTTP surface: email dispatch and API-key
// management, mounted under /api.
package api

import (
	"encoding/json"
	"net/http"
)

type envelope map[string]any

func respond(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respond(w, status, envelope{"success": false, "message": message})
}

func respondValidation(w http.ResponseWriter, errs []FieldError) {
	respond(w, http.StatusBadRequest, envelope{
		"success": false,
		"message": "Validation failed",
		"errors":  errs,
	})
}

// decodeBody parses a JSON request body into dst, rejecting unparseable
// input with a 400. Returns false when a response has already been written.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}
