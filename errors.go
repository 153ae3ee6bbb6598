package patcher

import (
	"errors"
	"fmt"
)

// Registry kinds reported in errors and traces.
const (
	KindCallback = "callback"
	KindWrapper  = "wrapper"
)

var (
	// ErrUnknownHook matches every *UnknownHookError.
	ErrUnknownHook = errors.New("patcher: hook is not recognized")
	// ErrChainOverrun matches every *ChainOverrunError.
	ErrChainOverrun = errors.New("patcher: wrapper chain overrun")
	// ErrNilCallable is returned when registering a nil callback or wrapper.
	ErrNilCallable = errors.New("patcher: callable must not be nil")
	// ErrNilOriginal is returned when a chain reaches its end without an
	// original function to call.
	ErrNilOriginal = errors.New("patcher: original function is nil")
	// ErrInvalidEntry reports a registry slot holding the wrong value type.
	ErrInvalidEntry = errors.New("patcher: invalid registry entry")
	// ErrResultType is returned by ExecuteAs when the chain result has an
	// unexpected type.
	ErrResultType = errors.New("patcher: unexpected result type")
)

// UnknownHookError reports a registration against a hook the registry does
// not declare. It is a programming error and should surface at setup time.
type UnknownHookError struct {
	Kind string
	Name string
}

func (e *UnknownHookError) Error() string {
	if e == nil {
		return "<nil>"
	}
	kind := e.Kind
	if kind == "" {
		kind = "hook"
	}
	return fmt.Sprintf("patcher: %s %q is not recognized", kind, e.Name)
}

// Is lets errors.Is match ErrUnknownHook.
func (e *UnknownHookError) Is(target error) bool {
	return target == ErrUnknownHook
}

// ChainOverrunError signals that a chain node tried to advance past its
// terminal position. It indicates a corrupted chain, never a caller mistake
// that can be retried.
type ChainOverrunError struct {
	Index int
	Len   int
}

func (e *ChainOverrunError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("patcher: wrapper index %d exceeds %d available wrappers", e.Index, e.Len)
}

// Is lets errors.Is match ErrChainOverrun.
func (e *ChainOverrunError) Is(target error) bool {
	return target == ErrChainOverrun
}
