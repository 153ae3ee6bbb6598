package patcher

import (
	"context"
	"log/slog"
	"time"
)

// GuardLogEvent describes one guard evaluation.
type GuardLogEvent struct {
	Engine   string
	Expr     string
	Hook     string
	Matched  bool
	Duration time.Duration
	Err      error
}

// GuardLogger records guard evaluations.
type GuardLogger interface {
	LogGuard(GuardLogEvent)
}

// GuardLoggerFunc adapts a function to GuardLogger.
type GuardLoggerFunc func(GuardLogEvent)

// LogGuard implements GuardLogger.
func (f GuardLoggerFunc) LogGuard(event GuardLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopGuardLogger struct{}

func (noopGuardLogger) LogGuard(GuardLogEvent) {}

// SlogGuardLogger logs evaluations at debug level and failures at warn level.
func SlogGuardLogger(logger *slog.Logger) GuardLogger {
	if logger == nil {
		return noopGuardLogger{}
	}
	return GuardLoggerFunc(func(event GuardLogEvent) {
		attrs := []slog.Attr{
			slog.String("engine", event.Engine),
			slog.String("expr", event.Expr),
			slog.String("hook", event.Hook),
			slog.Bool("matched", event.Matched),
			slog.Duration("duration", event.Duration),
		}
		if event.Err != nil {
			attrs = append(attrs, slog.Any("error", event.Err))
			logger.LogAttrs(context.Background(), slog.LevelWarn, "guard evaluation failed", attrs...)
			return
		}
		logger.LogAttrs(context.Background(), slog.LevelDebug, "guard evaluated", attrs...)
	})
}
