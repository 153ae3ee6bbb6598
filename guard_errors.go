package patcher

import (
	"errors"
	"fmt"
)

var (
	// ErrGuardResult is returned when a guard expression yields a non-bool.
	ErrGuardResult = errors.New("patcher: guard must evaluate to a bool")
	// ErrUnknownEngine is returned for an unsupported guard engine name.
	ErrUnknownEngine = errors.New("patcher: unknown guard engine")
	// ErrEngineUnavailable is returned when an engine was compiled out.
	ErrEngineUnavailable = errors.New("patcher: guard engine not available in this build")
	// ErrEmptyExpression is returned for an empty guard expression.
	ErrEmptyExpression = errors.New("patcher: expression must not be empty")
)

// GuardError carries guard metadata alongside the failure.
type GuardError struct {
	Engine string
	Expr   string
	Hook   string
	Err    error
}

func (e *GuardError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("patcher: %s guard %s hook=%s: %v", e.Engine, describeExpression(e.Expr), e.Hook, e.Err)
}

func (e *GuardError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

// wrapGuardError attaches metadata to err, filling blanks on an existing
// GuardError instead of nesting a second one.
func wrapGuardError(engine, expr, hook string, err error) error {
	if err == nil {
		return nil
	}
	var guardErr *GuardError
	if errors.As(err, &guardErr) {
		if guardErr.Engine == "" {
			guardErr.Engine = engine
		}
		if guardErr.Expr == "" {
			guardErr.Expr = expr
		}
		if guardErr.Hook == "" {
			guardErr.Hook = hook
		}
		return guardErr
	}
	return &GuardError{
		Engine: engine,
		Expr:   expr,
		Hook:   hook,
		Err:    err,
	}
}
