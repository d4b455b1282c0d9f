// Package mailer delivers the password-reset email. Delivery is a swappable
// collaborator: production uses SMTP, local development logs the link.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Mailer sends transactional mail to a single recipient.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, link string) error
}

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	addr string // host:port
	from string
	auth smtp.Auth
}

// NewSMTPMailer configures a relay. user/pass may be empty for an
// unauthenticated relay.
func NewSMTPMailer(addr, from, user, pass string) *SMTPMailer {
	var auth smtp.Auth
	if user != "" {
		host := addr
		if i := strings.IndexByte(addr, ':'); i >= 0 {
			host = addr[:i]
		}
		auth = smtp.PlainAuth("", user, pass, host)
	}
	return &SMTPMailer{addr: addr, from: from, auth: auth}
}

func (m *SMTPMailer) SendPasswordReset(_ context.Context, to, link string) error {
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: Reset your password",
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"We received a request to reset your password. The link expires in 15 minutes.",
		"",
		link,
		"",
		"If you did not request this, ignore this email.",
	}, "\r\n")

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", to, err)
	}
	return nil
}

// LogMailer writes the reset link to the log instead of sending mail. Used
// when no SMTP relay is configured.
type LogMailer struct{}

func (LogMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	slog.InfoContext(ctx, "password reset link (mail disabled)", "to", to, "link", link)
	return nil
}
