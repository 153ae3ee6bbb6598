package activity

import (
	"context"
	"log/slog"
	"maps"
	"slices"
)

// LogHook writes events to a slog.Logger. Rejections log at warn level.
type LogHook struct {
	Logger *slog.Logger
}

// Notify implements ActivityHook.
func (h LogHook) Notify(ctx context.Context, event Event) error {
	if h.Logger == nil {
		return nil
	}
	level := slog.LevelInfo
	if event.Verb == VerbHookRejected {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("verb", event.Verb),
		slog.String("object_type", event.ObjectType),
		slog.String("object_id", event.ObjectID),
		slog.String("channel", event.Channel),
	}
	if event.ActorID != "" {
		attrs = append(attrs, slog.String("actor_id", event.ActorID))
	}
	for _, key := range slices.Sorted(maps.Keys(event.Metadata)) {
		attrs = append(attrs, slog.Any(key, event.Metadata[key]))
	}
	h.Logger.LogAttrs(ctx, level, "patcher activity", attrs...)
	return nil
}
