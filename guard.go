package patcher

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"
)

// Guard gates a registration on an expression evaluated at call time. When
// the expression is false a guarded wrapper proceeds straight to the rest of
// the chain and a guarded callback is skipped.
type Guard struct {
	Expr     string
	Engine   string
	Metadata map[string]any
}

// GuardOption configures guard compilation and evaluation.
type GuardOption func(*guardConfig)

type guardConfig struct {
	evaluator Evaluator
	cache     ProgramCache
	functions *Catalog[Function]
	logger    GuardLogger
	now       func() time.Time
}

// WithGuardEvaluator overrides the engine selected by Guard.Engine.
func WithGuardEvaluator(evaluator Evaluator) GuardOption {
	return func(cfg *guardConfig) {
		cfg.evaluator = evaluator
	}
}

// WithGuardCache shares compiled programs between guards.
func WithGuardCache(cache ProgramCache) GuardOption {
	return func(cfg *guardConfig) {
		cfg.cache = cache
	}
}

// WithGuardFunctions exposes helper functions to guard expressions.
func WithGuardFunctions(functions *Catalog[Function]) GuardOption {
	return func(cfg *guardConfig) {
		cfg.functions = functions
	}
}

// WithGuardLogger records every guard evaluation.
func WithGuardLogger(logger GuardLogger) GuardOption {
	return func(cfg *guardConfig) {
		cfg.logger = logger
	}
}

// WithGuardClock overrides the time source exposed as now.
func WithGuardClock(now func() time.Time) GuardOption {
	return func(cfg *guardConfig) {
		cfg.now = now
	}
}

func applyGuardOptions(opts []GuardOption) guardConfig {
	cfg := guardConfig{
		logger: noopGuardLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = noopGuardLogger{}
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return cfg
}

// NewEvaluator returns the evaluator for engine. An empty engine selects expr.
func NewEvaluator(engine string, opts ...EvaluatorOption) (Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineExpr:
		return NewExprEvaluator(opts...), nil
	case EngineCEL:
		return NewCELEvaluator(opts...), nil
	case EngineJS:
		if !jsEvaluatorAvailable() {
			return nil, fmt.Errorf("%w: %s", ErrEngineUnavailable, engine)
		}
		return NewJSEvaluator(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, engine)
	}
}

type compiledGuard struct {
	guard  Guard
	engine string
	rule   CompiledRule
	cfg    guardConfig
}

func compileGuard(g Guard, opts []GuardOption) (*compiledGuard, error) {
	cfg := applyGuardOptions(opts)
	engine := strings.ToLower(strings.TrimSpace(g.Engine))
	if engine == "" {
		engine = EngineExpr
	}
	evaluator := cfg.evaluator
	if evaluator == nil {
		var evalOpts []EvaluatorOption
		if cfg.cache != nil {
			evalOpts = append(evalOpts, WithProgramCache(cfg.cache))
		}
		if cfg.functions != nil {
			evalOpts = append(evalOpts, WithFunctions(cfg.functions))
		}
		var err error
		evaluator, err = NewEvaluator(engine, evalOpts...)
		if err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(g.Expr) == "" {
		return nil, wrapGuardError(engine, "", "", ErrEmptyExpression)
	}
	rule, err := evaluator.Compile(g.Expr)
	if err != nil {
		return nil, wrapGuardError(engine, g.Expr, "", err)
	}
	return &compiledGuard{guard: g, engine: engine, rule: rule, cfg: cfg}, nil
}

func (c *compiledGuard) match(hook string, owner any, args []any) (bool, error) {
	now := c.cfg.now()
	ctx := RuleContext{
		Hook:     hook,
		Owner:    owner,
		Args:     args,
		Metadata: maps.Clone(c.guard.Metadata),
		Now:      &now,
	}
	start := time.Now()
	value, err := c.rule.Evaluate(ctx)
	matched := false
	if err == nil {
		var ok bool
		matched, ok = value.(bool)
		if !ok {
			err = fmt.Errorf("%w, got %T", ErrGuardResult, value)
		}
	}
	err = wrapGuardError(c.engine, c.guard.Expr, hook, err)
	c.cfg.logger.LogGuard(GuardLogEvent{
		Engine:   c.engine,
		Expr:     c.guard.Expr,
		Hook:     hook,
		Matched:  matched,
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return false, err
	}
	return matched, nil
}

// GuardWrapper compiles g and returns a wrapper that runs w only when g holds.
// Compilation errors surface here, at registration time.
func GuardWrapper(hook WrapperHook, g Guard, w Wrapper, opts ...GuardOption) (Wrapper, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: wrapper for %s", ErrNilCallable, hook)
	}
	compiled, err := compileGuard(g, opts)
	if err != nil {
		return nil, err
	}
	name := hook.String()
	return func(ctx context.Context, next *Executor, args ...any) (any, error) {
		ok, err := compiled.match(name, next.Owner(), args)
		if err != nil {
			return nil, err
		}
		if !ok {
			return next.Call(ctx, args...)
		}
		return w(ctx, next, args...)
	}, nil
}

// GuardCallback compiles g and returns a callback that runs cb only when g
// holds.
func GuardCallback(hook CallbackHook, g Guard, cb Callback, opts ...GuardOption) (Callback, error) {
	if cb == nil {
		return nil, fmt.Errorf("%w: callback for %s", ErrNilCallable, hook)
	}
	compiled, err := compileGuard(g, opts)
	if err != nil {
		return nil, err
	}
	name := hook.String()
	return func(ctx context.Context, owner any, args ...any) error {
		ok, err := compiled.match(name, owner, args)
		if err != nil || !ok {
			return err
		}
		return cb(ctx, owner, args...)
	}, nil
}
