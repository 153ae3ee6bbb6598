package patcher

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/goliatone/go-patcher/bag"
)

// Reserved option bag keys.
const (
	KeyCallbacks          = "callbacks"
	KeyWrappers           = "wrappers"
	KeyTransformerOptions = "transformer_options"
)

// Unkeyed is the sub-key used by AddCallback and AddWrapper. Registrations
// under it flatten ahead of keyed registrations because the registry skeleton
// creates it first.
const Unkeyed = ""

// Callback runs for its side effects at a CallbackHook. owner is the object
// firing the hook, args are hook specific.
type Callback func(ctx context.Context, owner any, args ...any) error

// Func is the innermost function of a wrapper chain.
type Func func(ctx context.Context, args ...any) (any, error)

// Wrapper intercepts a call. It continues the chain with next.Call, may call
// it several times, or return without calling it at all.
type Wrapper func(ctx context.Context, next *Executor, args ...any) (any, error)

// NewOptions returns a transformer options bag holding empty callback and
// wrapper registries for every declared hook.
func NewOptions() *bag.Bag {
	opts := bag.New()
	opts.Set(KeyCallbacks, InitCallbacks())
	opts.Set(KeyWrappers, InitWrappers())
	return opts
}

// TransformerOptions returns the transformer options nested in a model
// options bag, creating an initialised one when it is missing.
func TransformerOptions(modelOptions *bag.Bag) *bag.Bag {
	if modelOptions == nil {
		return nil
	}
	if sub := modelOptions.Sub(KeyTransformerOptions); sub != nil {
		return sub
	}
	opts := NewOptions()
	modelOptions.Set(KeyTransformerOptions, opts)
	return opts
}

// AddCallback registers cb under hook without a sub-key.
func AddCallback(opts *bag.Bag, hook CallbackHook, cb Callback) error {
	return AddCallbackWithKey(opts, hook, Unkeyed, cb)
}

// AddCallbackWithKey registers cb under hook and key. The hook must be
// declared and present in opts; otherwise an *UnknownHookError is returned and
// opts is left unchanged.
func AddCallbackWithKey(opts *bag.Bag, hook CallbackHook, key string, cb Callback) error {
	if !hook.Valid() {
		return &UnknownHookError{Kind: KindCallback, Name: hook.String()}
	}
	if cb == nil {
		return fmt.Errorf("%w: callback for %s", ErrNilCallable, hook)
	}
	return register(opts, KeyCallbacks, KindCallback, hook.String(), key, cb)
}

// AllCallbacks returns every callback registered under hook, sub-keys in
// first-insertion order and registration order within each sub-key.
func AllCallbacks(opts *bag.Bag, hook CallbackHook) []Callback {
	return resolve[Callback](opts, KeyCallbacks, hook.String())
}

// AddWrapper registers w under hook without a sub-key.
func AddWrapper(opts *bag.Bag, hook WrapperHook, w Wrapper) error {
	return AddWrapperWithKey(opts, hook, Unkeyed, w)
}

// AddWrapperWithKey registers w under hook and key.
func AddWrapperWithKey(opts *bag.Bag, hook WrapperHook, key string, w Wrapper) error {
	if !hook.Valid() {
		return &UnknownHookError{Kind: KindWrapper, Name: hook.String()}
	}
	if w == nil {
		return fmt.Errorf("%w: wrapper for %s", ErrNilCallable, hook)
	}
	return register(opts, KeyWrappers, KindWrapper, hook.String(), key, w)
}

// AllWrappers returns every wrapper registered under hook in chain order.
func AllWrappers(opts *bag.Bag, hook WrapperHook) []Wrapper {
	return resolve[Wrapper](opts, KeyWrappers, hook.String())
}

func register[F any](opts *bag.Bag, registryKey, kind, name, key string, fn F) error {
	hooks := opts.Sub(registryKey)
	slots := hooks.Sub(name)
	if slots == nil {
		return &UnknownHookError{Kind: kind, Name: name}
	}
	var list []F
	if current, ok := slots.Get(key); ok && !emptySlot(current) {
		typed, ok := current.([]F)
		if !ok {
			return fmt.Errorf("%w: %s %q sub-key %q holds %T", ErrInvalidEntry, kind, name, key, current)
		}
		list = typed
	}
	// Clip so the new list never writes into a backing array shared with a
	// copied or merged bag.
	slots.Set(key, append(slices.Clip(list), fn))
	return nil
}

func resolve[F any](opts *bag.Bag, registryKey, name string) []F {
	out := []F{}
	walk(opts, registryKey, name, func(_ string, _ int, value any) {
		if fn, ok := value.(F); ok {
			out = append(out, fn)
		}
	})
	return out
}

// walk visits every registered value for name in resolve order.
func walk(opts *bag.Bag, registryKey, name string, visit func(subKey string, index int, value any)) {
	slots := opts.Sub(registryKey).Sub(name)
	slots.Range(func(subKey string, list any) bool {
		rv := reflect.ValueOf(list)
		if rv.Kind() != reflect.Slice {
			return true
		}
		for i := 0; i < rv.Len(); i++ {
			visit(subKey, i, rv.Index(i).Interface())
		}
		return true
	})
}

// emptySlot reports whether value is an empty list of any element type. Such
// slots appear when a registry skeleton is decoded from YAML or JSON and are
// retyped on the next registration.
func emptySlot(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	return rv.Kind() == reflect.Slice && rv.Len() == 0
}

// Validate checks that every registry slot in opts holds a list of the
// expected callable type. Empty lists of any type are accepted. It reports
// all problems at once.
func Validate(opts *bag.Bag) error {
	var errs []error
	check := func(registryKey, kind string, want reflect.Type) {
		hooks := opts.Sub(registryKey)
		hooks.Range(func(name string, value any) bool {
			slots, ok := value.(*bag.Bag)
			if !ok {
				errs = append(errs, fmt.Errorf("%w: %s %q holds %T", ErrInvalidEntry, kind, name, value))
				return true
			}
			slots.Range(func(subKey string, list any) bool {
				if reflect.TypeOf(list) != want && !emptySlot(list) {
					errs = append(errs, fmt.Errorf("%w: %s %q sub-key %q holds %T", ErrInvalidEntry, kind, name, subKey, list))
				}
				return true
			})
			return true
		})
	}
	check(KeyCallbacks, KindCallback, reflect.TypeOf([]Callback(nil)))
	check(KeyWrappers, KindWrapper, reflect.TypeOf([]Wrapper(nil)))
	return errors.Join(errs...)
}
