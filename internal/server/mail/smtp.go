package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"
)

// SMTPConfig holds the connection settings for the SMTP sender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender implements Sender over a plain SMTP relay.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender constructs an SMTP-backed Sender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// SendActivation delivers the account activation link.
func (s *SMTPSender) SendActivation(ctx context.Context, email, domainLabel, activationURL string) error {
	body := fmt.Sprintf(
		"Welcome!\n\nYour domain %q is reserved. Activate your account by visiting:\n\n%s\n",
		domainLabel, activationURL)
	return s.send(ctx, email, "Activate your account", body)
}

// SendPasswordReset delivers the password reset link.
func (s *SMTPSender) SendPasswordReset(ctx context.Context, email, resetURL string) error {
	body := fmt.Sprintf(
		"A password reset was requested for this address. To set a new password, visit:\n\n%s\n\nIf you did not request this, ignore this mail.\n",
		resetURL)
	return s.send(ctx, email, "Password reset", body)
}

// SendPasswordChanged notifies the owner that the password was changed.
func (s *SMTPSender) SendPasswordChanged(ctx context.Context, email string) error {
	body := "Your password was just changed. If this was not you, request a reset immediately.\n"
	return s.send(ctx, email, "Password changed", body)
}

func (s *SMTPSender) send(ctx context.Context, rcpt, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("setting sender: %w", err)
	}
	if err := msg.To(rcpt); err != nil {
		return fmt.Errorf("setting recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	client, err := gomail.NewClient(s.cfg.Host,
		gomail.WithPort(s.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.Username),
		gomail.WithPassword(s.cfg.Password),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}
