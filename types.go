package patcher

import (
	"sync"
	"time"
)

// Guard engines.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

// RuleContext carries the inputs of a guard evaluation. Expressions see it as
// the variables hook, args, metadata and now.
type RuleContext struct {
	Hook     string
	Owner    any
	Args     []any
	Metadata map[string]any
	Now      *time.Time
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Args == nil {
		ctx.Args = []any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	return *ctx.withDefaults().Now
}

func (ctx RuleContext) hookLabel() string {
	if ctx.Hook == "" {
		return "unknown"
	}
	return ctx.Hook
}

// Evaluator executes guard expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule is a reusable, pre-checked expression.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// ProgramCache stores compiled programs keyed by engine, function catalog and
// expression.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// NewProgramCache returns an unbounded in-memory ProgramCache safe for
// concurrent use.
func NewProgramCache() ProgramCache {
	return &memoryProgramCache{programs: map[string]any{}}
}

type memoryProgramCache struct {
	mu       sync.RWMutex
	programs map[string]any
}

func (c *memoryProgramCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	program, ok := c.programs[key]
	return program, ok
}

func (c *memoryProgramCache) Set(key string, value any) {
	c.mu.Lock()
	c.programs[key] = value
	c.mu.Unlock()
}

// EvaluatorOption configures an evaluator.
type EvaluatorOption func(*evaluatorConfig)

type evaluatorConfig struct {
	cache       ProgramCache
	functions   *Catalog[Function]
	functionsID string
}

// WithProgramCache shares compiled programs through cache.
func WithProgramCache(cache ProgramCache) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		cfg.cache = cache
	}
}

// WithFunctions exposes the catalog's helpers to expressions, both by name and
// through call(name, ...).
func WithFunctions(functions *Catalog[Function]) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		if functions == nil {
			return
		}
		cfg.functionsID = functions.identity()
		cfg.functions = functions.Clone()
	}
}

func applyEvaluatorOptions(opts []EvaluatorOption) evaluatorConfig {
	cfg := evaluatorConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// cacheKey scopes programs to the function catalog they were compiled
// against, since compiled programs capture the catalog's functions.
func (cfg evaluatorConfig) cacheKey(engine, expression string) string {
	if cfg.functionsID == "" {
		return engine + ":" + expression
	}
	return engine + ":" + cfg.functionsID + ":" + expression
}

func (cfg evaluatorConfig) cached(engine, expression string) (any, bool) {
	if cfg.cache == nil {
		return nil, false
	}
	return cfg.cache.Get(cfg.cacheKey(engine, expression))
}

func (cfg evaluatorConfig) store(engine, expression string, program any) {
	if cfg.cache != nil {
		cfg.cache.Set(cfg.cacheKey(engine, expression), program)
	}
}
