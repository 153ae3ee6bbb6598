package state_test

import (
	"context"
	"slices"
	"os"
	"path/filepath"
	"testing"
	"time"

	patcher "github.com/goliatone/go-patcher"
	"github.com/goliatone/go-patcher/bag"
	"github.com/goliatone/go-patcher/pkg/state"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store := state.FileStore{Root: t.TempDir()}
	ref := state.Ref{Domain: "sampling", Scope: state.Scope{Layer: state.LayerModel, ID: "sdxl"}}

	snapshot := bag.New()
	snapshot.Set("steps", 25)
	snapshot.Set("sampler", map[string]any{"name": "euler"})
	updated := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if _, err := store.Save(context.Background(), ref, snapshot, state.Meta{SnapshotID: "s1", UpdatedAt: updated}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Root, "model", "sdxl", "sampling.yaml")); err != nil {
		t.Fatalf("expected file at identifier path: %v", err)
	}

	loaded, meta, ok, err := store.Load(context.Background(), ref)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if meta.SnapshotID != "s1" || !meta.UpdatedAt.Equal(updated) {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	if keys := loaded.Keys(); len(keys) != 2 || keys[0] != "steps" || keys[1] != "sampler" {
		t.Fatalf("expected key order preserved, got %v", keys)
	}
	if name, _ := loaded.Sub("sampler").Get("name"); name != "euler" {
		t.Fatalf("unexpected nested value: %v", name)
	}
}

func TestFileStoreMissingSnapshot(t *testing.T) {
	store := state.FileStore{Root: t.TempDir()}
	_, _, ok, err := store.Load(context.Background(), state.Ref{Domain: "x", Scope: state.Scope{Layer: state.LayerDefaults}})
	if err != nil || ok {
		t.Fatalf("expected missing snapshot, ok=%v err=%v", ok, err)
	}
}

func TestFileStoreFeedsResolver(t *testing.T) {
	store := state.FileStore{Root: t.TempDir()}
	defaults := state.Scope{Layer: state.LayerDefaults}
	run := state.Scope{Layer: state.LayerRun, ID: "r-9"}
	save(t, store, state.Ref{Domain: "sampling", Scope: defaults}, map[string]any{"steps": 20}, state.Meta{})
	save(t, store, state.Ref{Domain: "sampling", Scope: run}, map[string]any{"steps": 8}, state.Meta{})

	resolved, err := state.Resolver{Store: store}.Resolve(context.Background(), "sampling", defaults, run)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if steps, _ := resolved.Options.Get("steps"); steps != 8 {
		t.Fatalf("expected run layer to win, got %v", steps)
	}
}

func TestFileStoreRegistrySkeletonSurvivesMutate(t *testing.T) {
	ctx := context.Background()
	store := state.FileStore{Root: t.TempDir()}
	ref := state.Ref{Domain: "transformer", Scope: state.Scope{Layer: state.LayerModel, ID: "sdxl"}}

	opts := patcher.NewOptions()
	if err := patcher.AddCallback(opts, patcher.OnPreRun, func(context.Context, any, ...any) error { return nil }); err != nil {
		t.Fatalf("add callback: %v", err)
	}
	if _, err := store.Save(ctx, ref, opts, state.Meta{}); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, _, ok, err := store.Load(ctx, ref)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if err := patcher.Validate(loaded); err != nil {
		t.Fatalf("loaded skeleton should validate: %v", err)
	}
	if got := len(patcher.AllCallbacks(loaded, patcher.OnPreRun)); got != 0 {
		t.Fatalf("callables must not survive persistence, got %d", got)
	}

	var calls []string
	if err := patcher.AddCallback(loaded, patcher.OnClone, func(context.Context, any, ...any) error {
		calls = append(calls, "clone")
		return nil
	}); err != nil {
		t.Fatalf("add callback on loaded bag: %v", err)
	}
	if err := patcher.RunCallbacks(ctx, loaded, patcher.OnClone, nil); err != nil {
		t.Fatalf("run callbacks: %v", err)
	}
	if !slices.Equal(calls, []string{"clone"}) {
		t.Fatalf("unexpected calls: %v", calls)
	}

	out, _, err := state.Resolver{Store: store}.Mutate(ctx, ref, state.Meta{}, func(b *bag.Bag) error {
		b.Set("steps", 20)
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if steps, _ := out.Get("steps"); steps != 20 {
		t.Fatalf("unexpected steps: %v", steps)
	}
	if !out.Has(patcher.KeyCallbacks) || !out.Has(patcher.KeyWrappers) {
		t.Fatalf("expected registries kept after mutate, keys=%v", out.Keys())
	}
}
