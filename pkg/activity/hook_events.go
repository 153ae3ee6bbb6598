package activity

import (
	"strings"
	"time"
)

// Verbs and object types emitted for registry changes.
const (
	VerbHookRegistered = "hook.registered"
	VerbHookRejected   = "hook.rejected"

	ObjectTypeCallback = "patcher.callback"
	ObjectTypeWrapper  = "patcher.wrapper"
)

// HookEventInput describes one registration attempt.
type HookEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	Channel    string
	Kind       string
	Hook       string
	SubKey     string
	Use        string
	Guard      string
	Engine     string
	Err        error
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildHookRegisteredEvent records a callable installed under a hook.
func BuildHookRegisteredEvent(input HookEventInput) Event {
	return buildHookEvent(VerbHookRegistered, input)
}

// BuildHookRejectedEvent records a registration that failed; input.Err is
// reported as metadata.
func BuildHookRejectedEvent(input HookEventInput) Event {
	return buildHookEvent(VerbHookRejected, input)
}

func buildHookEvent(verb string, input HookEventInput) Event {
	metadata := map[string]any{}
	for key, value := range input.Metadata {
		metadata[key] = value
	}
	setIfPresent(metadata, "hook", input.Hook)
	setIfPresent(metadata, "sub_key", input.SubKey)
	setIfPresent(metadata, "use", input.Use)
	setIfPresent(metadata, "guard", input.Guard)
	setIfPresent(metadata, "engine", input.Engine)
	if input.Err != nil {
		metadata["error"] = input.Err.Error()
	}
	if len(metadata) == 0 {
		metadata = nil
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType(input.Kind),
		ObjectID:   objectID(input),
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func objectType(kind string) string {
	if strings.EqualFold(strings.TrimSpace(kind), "wrapper") {
		return ObjectTypeWrapper
	}
	return ObjectTypeCallback
}

// objectID renders hook/sub-key/use, skipping blank parts, so events about
// the same slot group together.
func objectID(input HookEventInput) string {
	var parts []string
	for _, part := range []string{input.Hook, input.SubKey, input.Use} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return objectType(input.Kind)
	}
	return strings.Join(parts, "/")
}

func setIfPresent(metadata map[string]any, key, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		metadata[key] = trimmed
	}
}
