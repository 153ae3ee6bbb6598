package patcher

import (
	"fmt"
	"time"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// exprEvaluator executes guards using github.com/expr-lang/expr.
type exprEvaluator struct {
	cfg evaluatorConfig
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr. It is the
// default guard engine.
func NewExprEvaluator(opts ...EvaluatorOption) Evaluator {
	return &exprEvaluator{cfg: applyEvaluatorOptions(opts)}
}

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *exprEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapGuardError(EngineExpr, "", "", ErrEmptyExpression)
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return &exprCompiledRule{program: program, expression: expression}, nil
}

func (e *exprEvaluator) loadOrCompile(expression string) (*exprvm.Program, error) {
	if cached, ok := e.cfg.cached(EngineExpr, expression); ok {
		if program, ok := cached.(*exprvm.Program); ok {
			return program, nil
		}
	}
	options := []exprlang.Option{
		exprlang.Env(map[string]any{
			"hook":     "",
			"args":     []any{},
			"metadata": map[string]any{},
			"now":      time.Time{},
		}),
	}
	if functions := e.cfg.functions; functions != nil {
		options = append(options, exprlang.Function("call", func(params ...any) (any, error) {
			if len(params) == 0 {
				return nil, fmt.Errorf("call requires a function name")
			}
			name, ok := params[0].(string)
			if !ok {
				return nil, fmt.Errorf("call name must be a string, got %T", params[0])
			}
			return CallFunction(functions, name, params[1:]...)
		}))
		for _, name := range functions.Names() {
			fn, _ := functions.Lookup(name)
			options = append(options, exprlang.Function(name, fn))
		}
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, wrapGuardError(EngineExpr, expression, "", err)
	}
	e.cfg.store(EngineExpr, expression, program)
	return program, nil
}

type exprCompiledRule struct {
	program    *exprvm.Program
	expression string
}

func (r *exprCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	env := map[string]any{
		"hook":     ctx.Hook,
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
		"now":      ctx.timestamp(),
	}
	result, err := exprlang.Run(r.program, env)
	if err != nil {
		return nil, wrapGuardError(EngineExpr, r.expression, ctx.hookLabel(), err)
	}
	return result, nil
}
