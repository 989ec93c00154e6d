package logging

import (
	"context"
	"io"
	"log/slog"
)

// Slog adapts the standard library's structured logger to the Logger
// interface. Children created through With share the parent's handler.
type Slog struct {
	base *slog.Logger
}

// NewSlog wraps an already configured *slog.Logger.
func NewSlog(base *slog.Logger) *Slog {
	return &Slog{base: base}
}

// NewJSON returns a logger emitting one JSON object per line to w. This is
// what the server runs with in production.
func NewJSON(w io.Writer) *Slog {
	return NewSlog(slog.New(slog.NewJSONHandler(w, nil)))
}

// Discard returns a logger that drops all output.
func Discard() *Slog {
	return NewSlog(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (s *Slog) Info(ctx context.Context, msg string, args ...any) {
	s.base.InfoContext(ctx, msg, args...)
}

func (s *Slog) Warn(ctx context.Context, msg string, args ...any) {
	s.base.WarnContext(ctx, msg, args...)
}

func (s *Slog) Error(ctx context.Context, msg string, args ...any) {
	s.base.ErrorContext(ctx, msg, args...)
}

func (s *Slog) With(args ...any) Logger {
	return &Slog{base: s.base.With(args...)}
}
