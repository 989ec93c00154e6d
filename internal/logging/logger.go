// Package logging holds the structured logging contract shared by the
// server components. Everything logs through the Logger interface, so tests
// can swap in a silent implementation via Discard.
package logging

import "context"

// Logger is a context-aware structured logger. Variadic args are
// alternating key-value pairs:
//
//	log.Info(ctx, "dns change batch committed", "changes", n)
type Logger interface {
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger whose entries always carry the given
	// key-value pairs.
	With(args ...any) Logger
}
