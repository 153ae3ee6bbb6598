package patcher

import (
	"fmt"
	"reflect"
	"sync"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

type celEvaluator struct {
	cfg evaluatorConfig

	once   sync.Once
	env    *celgo.Env
	envErr error
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. Expressions are
// type-checked against hook (string), args (list), metadata (map) and now
// (timestamp).
func NewCELEvaluator(opts ...EvaluatorOption) Evaluator {
	return &celEvaluator{cfg: applyEvaluatorOptions(opts)}
}

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *celEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapGuardError(EngineCEL, "", "", ErrEmptyExpression)
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, wrapGuardError(EngineCEL, expression, "", err)
	}
	return &celCompiledRule{program: program, expression: expression}, nil
}

func (e *celEvaluator) loadOrCompile(expression string) (celgo.Program, error) {
	if cached, ok := e.cfg.cached(EngineCEL, expression); ok {
		if program, ok := cached.(celgo.Program); ok {
			return program, nil
		}
	}
	env, err := e.environment()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	e.cfg.store(EngineCEL, expression, program)
	return program, nil
}

func (e *celEvaluator) environment() (*celgo.Env, error) {
	e.once.Do(func() {
		opts := []celgo.EnvOption{
			celgo.Variable("hook", celgo.StringType),
			celgo.Variable("args", celgo.ListType(celgo.DynType)),
			celgo.Variable("metadata", celgo.MapType(celgo.StringType, celgo.DynType)),
			celgo.Variable("now", celgo.TimestampType),
		}
		if e.cfg.functions != nil {
			opts = append(opts, celgo.Function("call",
				celgo.Overload("call_string",
					[]*celgo.Type{celgo.StringType},
					celgo.DynType,
					celgo.UnaryBinding(func(name ref.Val) ref.Val {
						return e.call(name, nil)
					}),
				),
				celgo.Overload("call_string_list",
					[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
					celgo.DynType,
					celgo.BinaryBinding(func(name, arguments ref.Val) ref.Val {
						return e.call(name, arguments)
					}),
				),
			))
		}
		e.env, e.envErr = celgo.NewEnv(opts...)
	})
	return e.env, e.envErr
}

func (e *celEvaluator) call(name, arguments ref.Val) ref.Val {
	fnName, ok := name.Value().(string)
	if !ok {
		return types.NewErr("patcher: call name must be a string")
	}
	var args []any
	if arguments != nil {
		native, err := arguments.ConvertToNative(reflect.TypeOf([]any{}))
		if err != nil {
			return types.NewErr("patcher: call arguments: %v", err)
		}
		args, _ = native.([]any)
	}
	result, err := CallFunction(e.cfg.functions, fnName, args...)
	if err != nil {
		return types.NewErr("%v", err)
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}

type celCompiledRule struct {
	program    celgo.Program
	expression string
}

func (r *celCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	out, _, err := r.program.Eval(map[string]any{
		"hook":     ctx.Hook,
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
		"now":      ctx.timestamp(),
	})
	if err != nil {
		return nil, wrapGuardError(EngineCEL, r.expression, ctx.hookLabel(), err)
	}
	if out == nil {
		return nil, wrapGuardError(EngineCEL, r.expression, ctx.hookLabel(), fmt.Errorf("no result"))
	}
	return out.Value(), nil
}
