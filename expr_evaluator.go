package visibility

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// exprEvaluator runs target rules with github.com/expr-lang/expr. Registry
// functions are bound at compile time, so rules see only the context
// variables at run time.
type exprEvaluator struct {
	ruleEngine
}

// NewExprEvaluator constructs the default rule engine. Rules see the
// variables now, args, metadata, node and id; undefined names evaluate to nil.
func NewExprEvaluator(opts ...RuleEngineOption) Evaluator {
	return &exprEvaluator{ruleEngine: newRuleEngine(opts)}
}

func (e *exprEvaluator) engine() string { return "expr" }

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *exprEvaluator) Compile(expression string, opts ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, errEmptyExpression("expr")
	}
	program, err := compileCached(e.ruleEngine, applyCompileOptions(opts), expression, e.compile)
	if err != nil {
		return nil, err
	}
	return exprRule{program: program, expression: expression}, nil
}

func (e *exprEvaluator) compile(expression string) (*exprvm.Program, error) {
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for name, fn := range e.functions() {
		options = append(options, exprlang.Function(name, fn))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, wrapRuleError("expr", expression, "", err)
	}
	return program, nil
}

type exprRule struct {
	program    *exprvm.Program
	expression string
}

func (r exprRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	result, err := exprlang.Run(r.program, ctx.bindings())
	if err != nil {
		return nil, wrapRuleError("expr", r.expression, ctx.label(), err)
	}
	return result, nil
}
