package mail

import (
	"context"

	"github.com/zoneup/zoneup/internal/logging"
)

// NoopSender logs instead of delivering. Used when SMTP is unconfigured,
// typically on deployments that disable activation by email.
type NoopSender struct {
	log logging.Logger
}

// NewNoopSender constructs a logging-only Sender.
func NewNoopSender(log logging.Logger) *NoopSender {
	return &NoopSender{log: log.With("component", "mail-noop")}
}

func (s *NoopSender) SendActivation(ctx context.Context, email, domainLabel, activationURL string) error {
	s.log.Info(ctx, "skipping activation mail", "email", email, "domain", domainLabel)
	return nil
}

func (s *NoopSender) SendPasswordReset(ctx context.Context, email, resetURL string) error {
	s.log.Info(ctx, "skipping password reset mail", "email", email)
	return nil
}

func (s *NoopSender) SendPasswordChanged(ctx context.Context, email string) error {
	s.log.Info(ctx, "skipping password changed mail", "email", email)
	return nil
}
