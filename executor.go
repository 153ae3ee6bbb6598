package patcher

import (
	"context"
	"fmt"
	"slices"
)

// Executor is one node of a wrapper chain. Executing a node at index i runs
// wrapper i with the node itself as proceed handle; the node at index
// len(wrappers) runs the original function. Nodes are immutable and safe to
// share once built.
type Executor struct {
	original Func
	owner    any
	wrappers []Wrapper
	idx      int
}

// NewExecutor builds the first node of a chain around original. The wrapper
// list is snapshotted, so later registrations do not affect the chain.
func NewExecutor(original Func, wrappers []Wrapper) *Executor {
	return NewOwnedExecutor(original, nil, wrappers)
}

// NewOwnedExecutor builds a chain whose wrappers can reach owner through
// Executor.Owner, for wrapping instance-bound behaviour.
func NewOwnedExecutor(original Func, owner any, wrappers []Wrapper) *Executor {
	snapshot := make([]Wrapper, 0, len(wrappers))
	for _, w := range wrappers {
		if w != nil {
			snapshot = append(snapshot, w)
		}
	}
	return &Executor{
		original: original,
		owner:    owner,
		wrappers: snapshot,
	}
}

// Execute runs this node. Use it to start a chain; wrappers continue a chain
// through Call.
func (e *Executor) Execute(ctx context.Context, args ...any) (any, error) {
	if e.idx > len(e.wrappers) {
		return nil, &ChainOverrunError{Index: e.idx, Len: len(e.wrappers)}
	}
	args = slices.Clone(args)
	if e.IsLast() {
		if e.original == nil {
			return nil, ErrNilOriginal
		}
		return e.original(ctx, args...)
	}
	return e.wrappers[e.idx](ctx, e, args...)
}

// Call proceeds to the rest of the chain. Every call builds a fresh successor
// node, so calling it twice runs the remainder twice.
func (e *Executor) Call(ctx context.Context, args ...any) (any, error) {
	next, err := e.next()
	if err != nil {
		return nil, err
	}
	return next.Execute(ctx, args...)
}

func (e *Executor) next() (*Executor, error) {
	idx := e.idx + 1
	if idx > len(e.wrappers) {
		return nil, &ChainOverrunError{Index: idx, Len: len(e.wrappers)}
	}
	return &Executor{
		original: e.original,
		owner:    e.owner,
		wrappers: e.wrappers,
		idx:      idx,
	}, nil
}

// Owner returns the instance the chain was built for, or nil.
func (e *Executor) Owner() any {
	return e.owner
}

// Index returns the node position.
func (e *Executor) Index() int {
	return e.idx
}

// Len returns the number of wrappers in the chain.
func (e *Executor) Len() int {
	return len(e.wrappers)
}

// IsLast reports whether executing this node calls the original function.
func (e *Executor) IsLast() bool {
	return e.idx == len(e.wrappers)
}

// ExecuteAs runs the chain and asserts the result type. A nil result yields
// the zero value of R.
func ExecuteAs[R any](ctx context.Context, e *Executor, args ...any) (R, error) {
	var zero R
	result, err := e.Execute(ctx, args...)
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(R)
	if !ok {
		return zero, fmt.Errorf("%w: want %T, got %T", ErrResultType, zero, result)
	}
	return typed, nil
}
