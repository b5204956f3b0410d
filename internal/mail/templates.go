package mail

import (
	"bytes"
	"context"
	"fmt"
	ht "html/template"
)

// The transactional bodies share one shell; only the accent color, heading
// and inner content differ.
const shellTmpl = `<!DOCTYPE html>
<html>
<head>
<style>
  body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
  .container { max-width: 600px; margin: 0 auto; padding: 20px; }
  .header { background-color: {{.Accent}}; color: white; padding: 20px; text-align: center; }
  .content { background-color: #f9f9f9; padding: 30px; border-radius: 5px; margin-top: 20px; }
  .button { display: inline-block; padding: 12px 30px; background-color: {{.Accent}}; color: white; text-decoration: none; border-radius: 5px; margin: 20px 0; }
  .footer { text-align: center; margin-top: 30px; color: #666; font-size: 12px; }
</style>
</head>
<body>
<div class="container">
  <div class="header"><h1>{{.Heading}}</h1></div>
  <div class="content">
    <h2>{{.Title}}</h2>
    {{.Body}}
    <div style="text-align: center;"><a href="{{.Link}}" class="button">{{.Action}}</a></div>
    <p>Or copy and paste this link into your browser:</p>
    <p style="word-break: break-all; color: {{.Accent}};">{{.Link}}</p>
    <p><strong>Note:</strong> This link will expire in {{.Expiry}}.</p>
  </div>
  <div class="footer">
    <p>{{.Footer}}</p>
    <p>&copy; 2024 RiverFlow. All rights reserved.</p>
  </div>
</div>
</body>
</html>`

var shell = ht.Must(ht.New("shell").Parse(shellTmpl))

type shellData struct {
	Accent  string
	Heading string
	Title   string
	Body    ht.HTML
	Link    string
	Action  string
	Expiry  string
	Footer  string
}

func renderShell(d shellData) (string, error) {
	var buf bytes.Buffer
	if err := shell.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("mail: render template: %w", err)
	}
	return buf.String(), nil
}

// SendVerification emails an account-verification link.
func (m *Mailer) SendVerification(ctx context.Context, to, token, frontendURL string) (string, error) {
	link := frontendURL + "/verify-email?token=" + token
	html, err := renderShell(shellData{
		Accent:  "#4F46E5",
		Heading: "RiverFlow - Email Verification",
		Title:   "Welcome to RiverFlow!",
		Body:    "<p>Thank you for registering. Please verify your email address by clicking the button below:</p>",
		Link:    link,
		Action:  "Verify Email Address",
		Expiry:  "15 minutes",
		Footer:  "If you didn't create an account with RiverFlow, please ignore this email.",
	})
	if err != nil {
		return "", err
	}
	return m.Send(ctx, Message{
		To:      to,
		Subject: "RiverFlow - Verify Your Email Address",
		HTML:    html,
		Text:    "Welcome to RiverFlow! Please verify your email by visiting: " + link,
	})
}

// SendPasswordReset emails a password-reset link.
func (m *Mailer) SendPasswordReset(ctx context.Context, to, token, frontendURL string) (string, error) {
	link := frontendURL + "/reset-password?token=" + token
	html, err := renderShell(shellData{
		Accent:  "#DC2626",
		Heading: "RiverFlow - Password Reset",
		Title:   "Reset Your Password",
		Body:    "<p>We received a request to reset your password. Click the button below to create a new password. If you didn't request this, please ignore this email; your password won't change until you create a new one.</p>",
		Link:    link,
		Action:  "Reset Password",
		Expiry:  "15 minutes",
		Footer:  "If you didn't request a password reset, please contact support immediately.",
	})
	if err != nil {
		return "", err
	}
	return m.Send(ctx, Message{
		To:      to,
		Subject: "RiverFlow - Reset Your Password",
		HTML:    html,
		Text:    "Reset your RiverFlow password by visiting: " + link,
	})
}

// SendInvitation emails a collaboration invite for a mindmap.
func (m *Mailer) SendInvitation(ctx context.Context, to, token, inviterName, mindmapTitle, frontendURL string) (string, error) {
	link := frontendURL + "/accept-invitation?token=" + token
	body := fmt.Sprintf(
		"<p><strong>%s</strong> has invited you to collaborate on the mindmap <strong>%q</strong>. Click the button below to accept the invitation and start collaborating:</p>",
		ht.HTMLEscapeString(inviterName), ht.HTMLEscapeString(mindmapTitle),
	)
	html, err := renderShell(shellData{
		Accent:  "#4F46E5",
		Heading: "RiverFlow - Collaboration Invitation",
		Title:   "You're Invited to Collaborate!",
		Body:    ht.HTML(body),
		Link:    link,
		Action:  "Accept Invitation",
		Expiry:  "7 days",
		Footer:  "If you didn't expect this invitation, you can safely ignore this email.",
	})
	if err != nil {
		return "", err
	}
	return m.Send(ctx, Message{
		To:      to,
		Subject: fmt.Sprintf("RiverFlow - %s invited you to collaborate on %q", inviterName, mindmapTitle),
		HTML:    html,
		Text:    fmt.Sprintf("%s invited you to collaborate on %q. Visit: %s", inviterName, mindmapTitle, link),
	})
}
