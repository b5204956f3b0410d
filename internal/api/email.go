package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/internal/mail"
	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/internal/metrics"
)

// Mailer is the slice of the mail package these handlers need.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) (string, error)
	SendVerification(ctx context.Context, to, token, frontendURL string) (string, error)
	SendPasswordReset(ctx context.Context, to, token, frontendURL string) (string, error)
	SendInvitation(ctx context.Context, to, token, inviterName, mindmapTitle, frontendURL string) (string, error)
}

type emailHandler struct {
	mailer  Mailer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func (h *emailHandler) health(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, envelope{
		"success":   true,
		"message":   "SMTP Server is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *emailHandler) send(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		HTML    string `json:"html"`
		Text    string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	var v validator
	v.email("to", req.To)
	v.required("subject", req.Subject, "Subject is required")
	v.maxLen("subject", req.Subject, 255, "Subject must not exceed 255 characters")
	v.required("html", req.HTML, "Email content (html) is required")
	if len(v.errs) > 0 {
		respondValidation(w, v.errs)
		return
	}

	messageID, err := h.mailer.Send(r.Context(), mail.Message{
		To:      req.To,
		Subject: strings.TrimSpace(req.Subject),
		HTML:    req.HTML,
		Text:    req.Text,
	})
	h.finish(w, r, "generic", messageID, err)
}

type tokenMailRequest struct {
	To          string `json:"to"`
	Token       string `json:"token"`
	FrontendURL string `json:"frontendUrl"`
}

func (h *emailHandler) validateTokenMail(req tokenMailRequest) []FieldError {
	var v validator
	v.email("to", req.To)
	v.required("token", req.Token, "Token is required")
	v.required("frontendUrl", req.FrontendURL, "Frontend URL is required")
	if req.FrontendURL != "" {
		v.absoluteURL("frontendUrl", req.FrontendURL)
	}
	return v.errs
}

func (h *emailHandler) verification(w http.ResponseWriter, r *http.Request) {
	var req tokenMailRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := h.validateTokenMail(req); len(errs) > 0 {
		respondValidation(w, errs)
		return
	}
	messageID, err := h.mailer.SendVerification(r.Context(), req.To, req.Token, req.FrontendURL)
	h.finish(w, r, "verification", messageID, err)
}

func (h *emailHandler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req tokenMailRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := h.validateTokenMail(req); len(errs) > 0 {
		respondValidation(w, errs)
		return
	}
	messageID, err := h.mailer.SendPasswordReset(r.Context(), req.To, req.Token, req.FrontendURL)
	h.finish(w, r, "reset_password", messageID, err)
}

func (h *emailHandler) invitation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		tokenMailRequest
		InviterName  string `json:"inviterName"`
		MindmapTitle string `json:"mindmapTitle"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	errs := h.validateTokenMail(req.tokenMailRequest)
	var v validator
	v.required("inviterName", req.InviterName, "Inviter name is required")
	v.required("mindmapTitle", req.MindmapTitle, "Mindmap title is required")
	errs = append(errs, v.errs...)
	if len(errs) > 0 {
		respondValidation(w, errs)
		return
	}
	messageID, err := h.mailer.SendInvitation(r.Context(), req.To, req.Token, req.InviterName, req.MindmapTitle, req.FrontendURL)
	h.finish(w, r, "invitation", messageID, err)
}

func (h *emailHandler) finish(w http.ResponseWriter, r *http.Request, kind, messageID string, err error) {
	if err != nil {
		h.logger.Error("Failed to send email", slog.String("kind", kind), slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "Failed to send email")
		return
	}
	h.metrics.EmailsSent.WithLabelValues(kind).Inc()
	respond(w, http.StatusOK, envelope{
		"success":   true,
		"messageId": messageID,
		"message":   "Email sent successfully",
	})
}
