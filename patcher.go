// Package patcher lets independently written extensions hook into a fixed set
// of execution points of a model patcher.
//
// Registrations live in an option bag (see package bag) under two reserved
// keys: callbacks, fired for side effects, and wrappers, which intercept a call
// site and decide whether and how often to continue the chain. Every hook name
// comes from a closed vocabulary (CallbackHook, WrapperHook); registering
// against anything else fails with *UnknownHookError.
//
// Typical usage:
//
//	opts := patcher.NewOptions()
//	_ = patcher.AddWrapperWithKey(opts, patcher.OuterSample, "ext-a", func(ctx context.Context, next *patcher.Executor, args ...any) (any, error) {
//		return next.Call(ctx, args...)
//	})
//	result, err := patcher.Wrap(ctx, opts, patcher.OuterSample, sample, noise)
package patcher

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/goliatone/go-patcher/bag"
	"github.com/google/uuid"
)

// Injection pairs reversible changes applied to a patcher's model.
type Injection struct {
	Inject func(ctx context.Context, p *Patcher) error
	Eject  func(ctx context.Context, p *Patcher) error
}

// Option configures a Patcher.
type Option func(*patcherConfig)

type patcherConfig struct {
	modelOptions *bag.Bag
	logger       *slog.Logger
	newID        func() string
}

// WithModelOptions seeds the patcher with a copy of modelOptions.
func WithModelOptions(modelOptions *bag.Bag) Option {
	return func(cfg *patcherConfig) {
		cfg.modelOptions = bag.Copy(modelOptions)
	}
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *patcherConfig) {
		cfg.logger = logger
	}
}

// WithIDGenerator replaces the UUID generator used for patcher IDs.
func WithIDGenerator(newID func() string) Option {
	return func(cfg *patcherConfig) {
		cfg.newID = newID
	}
}

// Patcher owns the model options of one model instance and fires the
// lifecycle hooks around it. A Patcher is not safe for concurrent mutation.
type Patcher struct {
	id           string
	name         string
	parent       *Patcher
	modelOptions *bag.Bag
	injections   *bag.Bag
	injected     bool
	logger       *slog.Logger
	newID        func() string
}

// NewPatcher constructs a root patcher.
func NewPatcher(name string, opts ...Option) *Patcher {
	cfg := patcherConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.modelOptions == nil {
		cfg.modelOptions = bag.New()
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.newID == nil {
		cfg.newID = uuid.NewString
	}
	p := &Patcher{
		id:           cfg.newID(),
		name:         name,
		modelOptions: cfg.modelOptions,
		injections:   bag.New(),
		logger:       cfg.logger,
		newID:        cfg.newID,
	}
	TransformerOptions(p.modelOptions)
	return p
}

// ID returns the patcher's unique identifier.
func (p *Patcher) ID() string { return p.id }

// Name returns the name given at construction.
func (p *Patcher) Name() string { return p.name }

// Parent returns the patcher this one was cloned from, or nil.
func (p *Patcher) Parent() *Patcher { return p.parent }

// ModelOptions returns the live model options bag.
func (p *Patcher) ModelOptions() *bag.Bag { return p.modelOptions }

// TransformerOptions returns the live transformer options holding the hook
// registries.
func (p *Patcher) TransformerOptions() *bag.Bag {
	return TransformerOptions(p.modelOptions)
}

// Clone returns a child patcher with an independent copy of the model options
// and injections, then runs the OnClone callbacks with the parent as owner and
// the child as argument.
func (p *Patcher) Clone(ctx context.Context) (*Patcher, error) {
	child := &Patcher{
		id:           p.newID(),
		name:         p.name,
		parent:       p,
		modelOptions: bag.Copy(p.modelOptions),
		injections:   bag.Copy(p.injections),
		logger:       p.logger,
		newID:        p.newID,
	}
	p.logger.Debug("patcher cloned", "parent", p.id, "child", child.id)
	if err := RunCallbacks(ctx, p.TransformerOptions(), OnClone, p, child); err != nil {
		return nil, err
	}
	return child, nil
}

// Lineage returns the clone ancestry, root first, ending with p.
func (p *Patcher) Lineage() []*Patcher {
	var out []*Patcher
	for current := p; current != nil; current = current.parent {
		out = append(out, current)
	}
	slices.Reverse(out)
	return out
}

// Inherit merges other's model options underneath p's own, so other's
// registrations run before p's for every hook.
func (p *Patcher) Inherit(other *Patcher) {
	if other == nil || other == p {
		return
	}
	p.modelOptions = bag.Merge(other.modelOptions, p.modelOptions)
}

// Fire runs the callbacks registered under hook with p as owner.
func (p *Patcher) Fire(ctx context.Context, hook CallbackHook, args ...any) error {
	return RunCallbacks(ctx, p.TransformerOptions(), hook, p, args...)
}

// Call runs original through the wrappers registered under hook; wrappers can
// reach p through Executor.Owner.
func (p *Patcher) Call(ctx context.Context, hook WrapperHook, original Func, args ...any) (any, error) {
	return WrapOwned(ctx, p.TransformerOptions(), hook, original, p, args...)
}

// SetInjections replaces the injections stored under key. The key keeps its
// original position in apply order.
func (p *Patcher) SetInjections(key string, injections ...Injection) {
	p.injections.Set(key, slices.Clone(injections))
}

// RemoveInjections drops every injection under key, ejecting first when the
// model is currently injected.
func (p *Patcher) RemoveInjections(ctx context.Context, key string) error {
	if !p.injections.Has(key) {
		return nil
	}
	wasInjected := p.injected
	if wasInjected {
		if err := p.Eject(ctx); err != nil {
			return err
		}
	}
	p.injections.Delete(key)
	if wasInjected {
		return p.Inject(ctx)
	}
	return nil
}

// Injected reports whether Inject applied at least one injection.
func (p *Patcher) Injected() bool { return p.injected }

// Inject applies every injection in key order and fires OnInjectModel when
// anything was applied. It is a no-op when already injected.
func (p *Patcher) Inject(ctx context.Context) error {
	if p.injected {
		return nil
	}
	for _, inj := range p.injectionList() {
		if inj.Inject == nil {
			continue
		}
		if err := inj.Inject(ctx, p); err != nil {
			return fmt.Errorf("patcher: inject: %w", err)
		}
		p.injected = true
	}
	if !p.injected {
		return nil
	}
	p.logger.Debug("patcher injected", "id", p.id)
	return p.Fire(ctx, OnInjectModel)
}

// Eject reverts every injection in key order and fires OnEjectModel. It is a
// no-op when nothing is injected.
func (p *Patcher) Eject(ctx context.Context) error {
	if !p.injected {
		return nil
	}
	for _, inj := range p.injectionList() {
		if inj.Eject == nil {
			continue
		}
		if err := inj.Eject(ctx, p); err != nil {
			return fmt.Errorf("patcher: eject: %w", err)
		}
	}
	p.injected = false
	p.logger.Debug("patcher ejected", "id", p.id)
	return p.Fire(ctx, OnEjectModel)
}

func (p *Patcher) injectionList() []Injection {
	var out []Injection
	p.injections.Range(func(_ string, value any) bool {
		if list, ok := value.([]Injection); ok {
			out = append(out, list...)
		}
		return true
	})
	return out
}
