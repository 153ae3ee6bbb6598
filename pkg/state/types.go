package state

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	patcher "github.com/goliatone/go-patcher"
	"github.com/goliatone/go-patcher/bag"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

// ErrNotFound is returned by Resolve when none of the requested layers has a
// snapshot.
var ErrNotFound = errors.New("state: no snapshots found")

// Layer names, from least to most specific.
const (
	LayerDefaults = "defaults"
	LayerModel    = "model"
	LayerWorkflow = "workflow"
	LayerRun      = "run"
)

// Scope selects one layer instance. ID is required for every layer except
// defaults.
type Scope struct {
	Layer string
	ID    string
}

// Ref identifies one persisted snapshot for one options domain.
type Ref struct {
	Domain string
	Scope  Scope
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty" yaml:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty" yaml:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Store loads and saves one snapshot for a single reference.
type Store interface {
	Load(ctx context.Context, ref Ref) (snapshot *bag.Bag, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot *bag.Bag, meta Meta) (Meta, error)
}

// Applied records a snapshot that contributed to a resolution.
type Applied struct {
	Ref  Ref
	Meta Meta
}

// Resolved is the outcome of Resolver.Resolve.
type Resolved struct {
	Options *bag.Bag
	Layers  []Applied
}

// Resolver loads layered snapshots and merges them.
type Resolver struct {
	Store Store
}

// Mutator edits a snapshot in place.
type Mutator func(*bag.Bag) error

func (r Ref) Identifier() (string, error) {
	if r.Domain == "" {
		return "", errors.New("state: domain is required")
	}
	switch r.Scope.Layer {
	case LayerDefaults:
		return fmt.Sprintf("%s/%s", LayerDefaults, r.Domain), nil
	case LayerModel, LayerWorkflow, LayerRun:
		if r.Scope.ID == "" {
			return "", fmt.Errorf("state: missing id for layer %q", r.Scope.Layer)
		}
		return fmt.Sprintf("%s/%s/%s", r.Scope.Layer, r.Scope.ID, r.Domain), nil
	default:
		return "", fmt.Errorf("state: unsupported layer %q", r.Scope.Layer)
	}
}

// Resolve merges the snapshots of scopes in the given order. Missing
// snapshots are skipped; if none exist ErrNotFound is returned.
func (r Resolver) Resolve(ctx context.Context, domain string, scopes ...Scope) (*Resolved, error) {
	if r.Store == nil {
		return nil, errors.New("state: store is required")
	}
	if domain == "" {
		return nil, errors.New("state: domain is required")
	}
	if len(scopes) == 0 {
		return nil, errors.New("state: at least one scope is required")
	}

	out := &Resolved{Options: bag.New()}
	for _, scope := range scopes {
		ref := Ref{Domain: domain, Scope: scope}
		snapshot, meta, ok, err := r.Store.Load(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("state: load %q for layer %q: %w", domain, scope.Layer, err)
		}
		if !ok {
			continue
		}
		out.Options = bag.Merge(out.Options, snapshot)
		out.Layers = append(out.Layers, Applied{Ref: ref, Meta: meta})
	}
	if len(out.Layers) == 0 {
		return nil, fmt.Errorf("%w for domain %q", ErrNotFound, domain)
	}
	return out, nil
}

// Mutate loads one snapshot, applies fn to a copy, checks the registries it
// may hold with patcher.Validate, then saves it. A non-empty meta.ETag must
// match the stored one.
func (r Resolver) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator) (*bag.Bag, Meta, error) {
	if r.Store == nil {
		return nil, Meta{}, errors.New("state: store is required")
	}
	if _, err := ref.Identifier(); err != nil {
		return nil, Meta{}, err
	}
	if fn == nil {
		return nil, Meta{}, errors.New("state: mutator is required")
	}

	snapshot, loadedMeta, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("state: load %q for layer %q: %w", ref.Domain, ref.Scope.Layer, err)
	}
	if !ok {
		snapshot = bag.New()
		loadedMeta = Meta{}
	}

	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return nil, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	working := bag.Copy(snapshot)
	if err := fn(working); err != nil {
		return nil, loadedMeta, err
	}
	if err := patcher.Validate(working); err != nil {
		return nil, loadedMeta, err
	}

	savedMeta, err := r.Store.Save(ctx, ref, working, mergeMeta(loadedMeta, meta))
	if err != nil {
		return nil, loadedMeta, fmt.Errorf("state: save %q for layer %q: %w", ref.Domain, ref.Scope.Layer, err)
	}
	return working, savedMeta, nil
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = maps.Clone(override.Extra)
	}
	return out
}

func cloneMeta(meta Meta) Meta {
	out := meta
	out.Extra = maps.Clone(meta.Extra)
	return out
}
