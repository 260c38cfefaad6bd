// Package logging is the structured logger used by both binaries. Logger is
// backed by zap in production (ZapLogger) and by log/slog in tests and tools
// (SlogLogger).
package logging

import "context"

// Logger takes a message plus alternating key/value pairs:
//
//	log.Info(ctx, "pull page", "model", model, "items", n)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child that adds args to every entry.
	With(args ...any) Logger
}
