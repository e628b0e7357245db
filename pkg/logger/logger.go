package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Service is stamped on every record so api, worker and ctl logs can be
// filtered together.
const Service = "screening-platform"

// New returns the process logger writing to stdout.
func New(appEnv, process string) *slog.Logger {
	return NewWithWriter(os.Stdout, appEnv, process)
}

// NewWithWriter builds the logger on w. Local runs get a text handler at
// debug level; every other env logs JSON. Records carry service, env and,
// when set, process.
func NewWithWriter(w io.Writer, appEnv, process string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFor(appEnv)}

	var h slog.Handler
	if appEnv == "local" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	l := slog.New(h).With("service", Service, "env", appEnv)
	if process != "" {
		l = l.With("process", process)
	}
	return l
}

func levelFor(appEnv string) slog.Level {
	switch appEnv {
	case "local", "dev":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
