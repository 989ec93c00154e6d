// Package mail defines the outbound-mail collaborator and its SMTP
// implementation. Delivery is fire-and-forget from the services' point of
// view: a failed send is logged, never surfaced to the client.
package mail

import "context"

// Sender delivers the account-lifecycle notifications.
type Sender interface {
	SendActivation(ctx context.Context, email, domainLabel, activationURL string) error
	SendPasswordReset(ctx context.Context, email, resetURL string) error
	SendPasswordChanged(ctx context.Context, email string) error
}
