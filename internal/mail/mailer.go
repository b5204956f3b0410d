// Package mail dispatches transactional email through an external SMTP
// server.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/pkg/config"
)

// Message is one outbound email. Text is the plain-text alternative shown by
// clients that refuse HTML.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends mail over a single configured SMTP relay with PLAIN auth.
type Mailer struct {
	cfg    config.SMTPConfig
	auth   smtp.Auth
	send   sendFunc
	logger *slog.Logger
}

// New builds a mailer. Missing credentials are tolerated here so the server
// can start and report them; sends will fail with a pointed error instead.
func New(cfg config.SMTPConfig, logger *slog.Logger) *Mailer {
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	m := &Mailer{
		cfg:    cfg,
		send:   smtp.SendMail,
		logger: logger.With(slog.String("component", "mailer")),
	}
	if cfg.User != "" && cfg.Password != "" {
		m.auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	return m
}

func (m *Mailer) checkCredentials() error {
	if m.auth == nil {
		return fmt.Errorf("mail: SMTP credentials are missing; set smtp.user and smtp.password")
	}
	return nil
}

func (m *Mailer) addr() string {
	return net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
}

// Verify dials the SMTP relay and exchanges a greeting. Called once at
// startup; a failure is reported to the caller, who treats it as a warning.
func (m *Mailer) Verify(ctx context.Context) error {
	if err := m.checkCredentials(); err != nil {
		return err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", m.addr())
	if err != nil {
		return fmt.Errorf("mail: dial %s: %w", m.addr(), err)
	}
	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("mail: greet %s: %w", m.addr(), err)
	}
	return c.Quit()
}

// Send delivers one message and returns its Message-ID.
func (m *Mailer) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := m.checkCredentials(); err != nil {
		return "", err
	}
	if _, err := mail.ParseAddress(msg.To); err != nil {
		return "", fmt.Errorf("mail: invalid recipient %q: %w", msg.To, err)
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), m.cfg.Host)
	raw := buildMIME(m.cfg.From, messageID, msg)

	if err := m.send(m.addr(), m.auth, m.cfg.From, []string{msg.To}, raw); err != nil {
		return "", fmt.Errorf("mail: send to %s: %w", msg.To, err)
	}
	m.logger.Info("Email sent", slog.String("to", msg.To), slog.String("subject", msg.Subject))
	return messageID, nil
}

const mimeBoundary = "riverflow-alt"

// buildMIME assembles a multipart/alternative message: plain text first,
// HTML last so capable clients prefer it.
func buildMIME(from, messageID string, msg Message) []byte {
	var b bytes.Buffer
	write := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\r\n", args...)
	}

	write("From: %s", from)
	write("To: %s", msg.To)
	write("Subject: %s", sanitizeHeader(msg.Subject))
	write("Message-ID: %s", messageID)
	write("MIME-Version: 1.0")
	write("Content-Type: multipart/alternative; boundary=%q", mimeBoundary)
	write("")
	write("--%s", mimeBoundary)
	write("Content-Type: text/plain; charset=utf-8")
	write("")
	write("%s", msg.Text)
	write("--%s", mimeBoundary)
	write("Content-Type: text/html; charset=utf-8")
	write("")
	write("%s", msg.HTML)
	write("--%s--", mimeBoundary)
	return b.Bytes()
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
