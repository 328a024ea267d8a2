package visibility

import (
	"fmt"
	"reflect"

	celgo "github.com/google/cel-go/cel"
	functions "github.com/google/cel-go/common/functions"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

var anySliceType = reflect.TypeOf([]any{})

type celProgram struct {
	env     *celgo.Env
	program celgo.Program
}

type celEvaluator struct {
	ruleEngine
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. Rules see the
// variables now, args, metadata, node and id.
func NewCELEvaluator(opts ...RuleEngineOption) Evaluator {
	return &celEvaluator{ruleEngine: newRuleEngine(opts)}
}

func (e *celEvaluator) engine() string { return "cel" }

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *celEvaluator) Compile(expression string, opts ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, errEmptyExpression("cel")
	}
	program, err := compileCached(e.ruleEngine, applyCompileOptions(opts), expression, e.compile)
	if err != nil {
		return nil, err
	}
	return &celCompiledRule{
		evaluator:  e,
		expression: expression,
		program:    program,
	}, nil
}

func (e *celEvaluator) compile(expression string) (*celProgram, error) {
	env, err := e.buildEnv()
	if err != nil {
		return nil, wrapEvaluatorError("cel", err)
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, wrapRuleError("cel", expression, "", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, wrapRuleError("cel", expression, "", err)
	}
	return &celProgram{env: env, program: prg}, nil
}

func (e *celEvaluator) buildEnv() (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.DynType),
		celgo.Variable("metadata", celgo.DynType),
		celgo.Variable("node", celgo.DynType),
		celgo.Variable("id", celgo.StringType),
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call", celgo.Overload(
			"call_dyn",
			[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
			celgo.DynType,
			celgo.FunctionBinding(functions.FunctionOp(e.callBinding())),
		)))
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) activation(ctx RuleContext) map[string]any {
	return map[string]any{
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
		"node":     ctx.Node,
		"id":       ctx.ID,
	}
}

type celCompiledRule struct {
	evaluator  *celEvaluator
	expression string
	program    *celProgram
}

func (r *celCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil || r.program == nil {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("compiled rule missing evaluator"))
	}
	ctx = ctx.withDefaults()
	out, _, err := r.program.program.Eval(r.evaluator.activation(ctx))
	if err != nil {
		return nil, wrapRuleError("cel", r.expression, ctx.label(), err)
	}
	return out.Value(), nil
}

// callBinding backs call(name, [args]) against the function registry.
func (e *celEvaluator) callBinding() func(...ref.Val) ref.Val {
	return func(values ...ref.Val) ref.Val {
		if len(values) == 0 {
			return types.NewErr("visibility: call requires function name")
		}
		name, ok := values[0].Value().(string)
		if !ok {
			return types.NewErr("visibility: call name must be string")
		}
		var args []any
		if len(values) > 1 {
			native, err := values[1].ConvertToNative(anySliceType)
			if err != nil {
				return types.NewErr("visibility: call arguments: %v", err)
			}
			args, _ = native.([]any)
		}
		result, err := e.call(name, args...)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}
