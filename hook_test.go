package patcher

import (
	"errors"
	"testing"
)

func TestCallbackHookNamesRoundTrip(t *testing.T) {
	hooks := CallbackHooks()
	if len(hooks) != 9 {
		t.Fatalf("expected 9 callback hooks, got %d", len(hooks))
	}
	for _, h := range hooks {
		parsed, err := ParseCallbackHook(h.String())
		if err != nil {
			t.Fatalf("parse %q: %v", h, err)
		}
		if parsed != h {
			t.Fatalf("expected %v, got %v", h, parsed)
		}
	}
	if OnLoad.String() != "on_load_after" {
		t.Fatalf("unexpected wire name for OnLoad: %q", OnLoad.String())
	}
}

func TestWrapperHookNamesRoundTrip(t *testing.T) {
	hooks := WrapperHooks()
	if len(hooks) != 5 {
		t.Fatalf("expected 5 wrapper hooks, got %d", len(hooks))
	}
	for _, h := range hooks {
		parsed, err := ParseWrapperHook(h.String())
		if err != nil || parsed != h {
			t.Fatalf("round trip failed for %q: %v %v", h, parsed, err)
		}
	}
}

func TestParseUnknownHook(t *testing.T) {
	_, err := ParseCallbackHook("on_launch")
	var hookErr *UnknownHookError
	if !errors.As(err, &hookErr) {
		t.Fatalf("expected UnknownHookError, got %T", err)
	}
	if hookErr.Kind != KindCallback || hookErr.Name != "on_launch" {
		t.Fatalf("unexpected error metadata: %+v", hookErr)
	}
	if !errors.Is(err, ErrUnknownHook) {
		t.Fatalf("expected errors.Is to match ErrUnknownHook")
	}

	if _, err := ParseWrapperHook("sample"); !errors.Is(err, ErrUnknownHook) {
		t.Fatalf("expected unknown wrapper error, got %v", err)
	}
}

func TestInvalidHookString(t *testing.T) {
	if got := CallbackHook(42).String(); got != "CallbackHook(42)" {
		t.Fatalf("unexpected string: %q", got)
	}
	if WrapperHook(0).Valid() {
		t.Fatalf("zero wrapper hook must be invalid")
	}
}

func TestInitSkeletonFollowsDeclarationOrder(t *testing.T) {
	callbacks := InitCallbacks()
	keys := callbacks.Keys()
	for i, h := range CallbackHooks() {
		if keys[i] != h.String() {
			t.Fatalf("position %d: expected %q, got %q", i, h, keys[i])
		}
		slot := callbacks.Sub(h.String())
		if got := slot.Keys(); len(got) != 1 || got[0] != Unkeyed {
			t.Fatalf("expected only the unkeyed slot for %q, got %v", h, got)
		}
	}
	if InitWrappers().Len() != len(WrapperHooks()) {
		t.Fatalf("wrapper skeleton size mismatch")
	}
}
