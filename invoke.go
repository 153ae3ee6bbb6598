package patcher

import (
	"context"

	"github.com/goliatone/go-patcher/bag"
)

// RunCallbacks invokes every callback registered under hook in order. The
// first error stops the run and is returned unchanged.
func RunCallbacks(ctx context.Context, opts *bag.Bag, hook CallbackHook, owner any, args ...any) error {
	for _, cb := range AllCallbacks(opts, hook) {
		if err := cb(ctx, owner, args...); err != nil {
			return err
		}
	}
	return nil
}

// Wrap runs original through the wrappers registered under hook.
func Wrap(ctx context.Context, opts *bag.Bag, hook WrapperHook, original Func, args ...any) (any, error) {
	return NewExecutor(original, AllWrappers(opts, hook)).Execute(ctx, args...)
}

// WrapOwned is Wrap for instance-bound call sites; wrappers reach owner
// through Executor.Owner.
func WrapOwned(ctx context.Context, opts *bag.Bag, hook WrapperHook, original Func, owner any, args ...any) (any, error) {
	return NewOwnedExecutor(original, owner, AllWrappers(opts, hook)).Execute(ctx, args...)
}
