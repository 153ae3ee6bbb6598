package manifest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	patcher "github.com/goliatone/go-patcher"
	"github.com/goliatone/go-patcher/bag"
	"github.com/goliatone/go-patcher/pkg/activity"
)

// ErrUnresolved is returned when an entry names a callable missing from the
// installer's catalogs.
var ErrUnresolved = errors.New("manifest: callable not found in catalog")

// Installer resolves manifest entries against catalogs of callables and
// registers them.
type Installer struct {
	callbacks *patcher.Catalog[patcher.Callback]
	wrappers  *patcher.Catalog[patcher.Wrapper]
	emitter   *activity.Emitter
	guardOpts []patcher.GuardOption
	logger    *slog.Logger
	source    string
}

// InstallerOption configures an Installer.
type InstallerOption func(*Installer)

// WithActivityEmitter reports every registration and rejection.
func WithActivityEmitter(emitter *activity.Emitter) InstallerOption {
	return func(i *Installer) {
		i.emitter = emitter
	}
}

// WithGuardOptions configures guards compiled for `when` expressions.
func WithGuardOptions(opts ...patcher.GuardOption) InstallerOption {
	return func(i *Installer) {
		i.guardOpts = append(i.guardOpts, opts...)
	}
}

// WithLogger sets the installer logger.
func WithLogger(logger *slog.Logger) InstallerOption {
	return func(i *Installer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithSource labels emitted events with the manifest origin, usually a path.
func WithSource(source string) InstallerOption {
	return func(i *Installer) {
		i.source = source
	}
}

// NewInstaller returns an installer resolving names against the given
// catalogs. Nil catalogs are treated as empty.
func NewInstaller(callbacks *patcher.Catalog[patcher.Callback], wrappers *patcher.Catalog[patcher.Wrapper], opts ...InstallerOption) *Installer {
	if callbacks == nil {
		callbacks = patcher.NewCatalog[patcher.Callback]()
	}
	if wrappers == nil {
		wrappers = patcher.NewCatalog[patcher.Wrapper]()
	}
	installer := &Installer{
		callbacks: callbacks,
		wrappers:  wrappers,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(installer)
		}
	}
	return installer
}

// Install returns a new options bag: target merged with the manifest's
// options, plus every entry registered under its extension's name, in file
// order. target is never modified. When any entry fails the errors are
// joined and no bag is returned.
func (i *Installer) Install(ctx context.Context, m *Manifest, target *bag.Bag) (*bag.Bag, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	result := bag.Merge(target, m.Options)
	if !result.Has(patcher.KeyCallbacks) || !result.Has(patcher.KeyWrappers) {
		result = bag.Merge(patcher.NewOptions(), result)
	}

	var errs []error
	for _, ext := range m.Extensions {
		for _, entry := range ext.Callbacks {
			err := i.installCallback(result, ext.Name, entry)
			errs = append(errs, i.report(ctx, patcher.KindCallback, ext.Name, entry, err))
		}
		for _, entry := range ext.Wrappers {
			err := i.installWrapper(result, ext.Name, entry)
			errs = append(errs, i.report(ctx, patcher.KindWrapper, ext.Name, entry, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	i.logger.Info("manifest installed",
		"source", i.source,
		"extensions", len(m.Extensions),
		"registrations", m.Registrations(),
	)
	return result, nil
}

func (i *Installer) installCallback(opts *bag.Bag, subKey string, entry Entry) error {
	hook, err := patcher.ParseCallbackHook(entry.Hook)
	if err != nil {
		return err
	}
	cb, ok := i.callbacks.Lookup(entry.Use)
	if !ok {
		return fmt.Errorf("%w: callback %q", ErrUnresolved, entry.Use)
	}
	if entry.When != "" {
		cb, err = patcher.GuardCallback(hook, guardFor(entry), cb, i.guardOpts...)
		if err != nil {
			return err
		}
	}
	return patcher.AddCallbackWithKey(opts, hook, subKey, cb)
}

func (i *Installer) installWrapper(opts *bag.Bag, subKey string, entry Entry) error {
	hook, err := patcher.ParseWrapperHook(entry.Hook)
	if err != nil {
		return err
	}
	w, ok := i.wrappers.Lookup(entry.Use)
	if !ok {
		return fmt.Errorf("%w: wrapper %q", ErrUnresolved, entry.Use)
	}
	if entry.When != "" {
		w, err = patcher.GuardWrapper(hook, guardFor(entry), w, i.guardOpts...)
		if err != nil {
			return err
		}
	}
	return patcher.AddWrapperWithKey(opts, hook, subKey, w)
}

func guardFor(entry Entry) patcher.Guard {
	return patcher.Guard{Expr: entry.When, Engine: entry.Engine, Metadata: entry.Metadata}
}

// report emits the outcome of one entry and returns err annotated with the
// entry location.
func (i *Installer) report(ctx context.Context, kind, subKey string, entry Entry, err error) error {
	input := activity.HookEventInput{
		Kind:     kind,
		Hook:     entry.Hook,
		SubKey:   subKey,
		Use:      entry.Use,
		Guard:    entry.When,
		Engine:   entry.Engine,
		Err:      err,
		Metadata: map[string]any{},
	}
	if i.source != "" {
		input.Metadata["source"] = i.source
	}

	event := activity.BuildHookRegisteredEvent(input)
	if err != nil {
		event = activity.BuildHookRejectedEvent(input)
		err = fmt.Errorf("manifest: %s %s/%s: %w", kind, subKey, entry.Hook, err)
		i.logger.Warn("registration rejected", "kind", kind, "hook", entry.Hook, "extension", subKey, "error", err)
	} else {
		i.logger.Debug("registration installed", "kind", kind, "hook", entry.Hook, "extension", subKey, "use", entry.Use)
	}
	if emitErr := i.emitter.Emit(ctx, event); emitErr != nil {
		i.logger.Warn("activity emit failed", "error", emitErr)
	}
	return err
}
