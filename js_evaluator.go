//go:build js_eval

package visibility

import (
	"fmt"

	"github.com/dop251/goja"
)

// jsEvaluator runs target rules as JavaScript expressions on goja. Every
// evaluation gets a fresh runtime; only compiled programs are shared.
type jsEvaluator struct {
	ruleEngine
}

// NewJSEvaluator constructs an Evaluator backed by goja.
func NewJSEvaluator(opts ...RuleEngineOption) Evaluator {
	return &jsEvaluator{ruleEngine: newRuleEngine(opts)}
}

func (e *jsEvaluator) engine() string { return "js" }

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *jsEvaluator) Compile(expression string, opts ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, errEmptyExpression("js")
	}
	program, err := compileCached(e.ruleEngine, applyCompileOptions(opts), expression, compileJS)
	if err != nil {
		return nil, err
	}
	return jsRule{engine: e.ruleEngine, program: program, expression: expression}, nil
}

// compileJS wraps the expression in an immediately invoked function so rules
// may be written as bare expressions.
func compileJS(expression string) (*goja.Program, error) {
	source := fmt.Sprintf("(function(){ return (%s); })()", expression)
	program, err := goja.Compile("rule.js", source, false)
	if err != nil {
		return nil, wrapRuleError("js", expression, "", err)
	}
	return program, nil
}

type jsRule struct {
	engine     ruleEngine
	program    *goja.Program
	expression string
}

func (r jsRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	vm := goja.New()
	for name, value := range ctx.bindings() {
		if err := vm.Set(name, value); err != nil {
			return nil, wrapRuleError("js", r.expression, ctx.label(), err)
		}
	}
	for name, fn := range r.engine.functions() {
		if err := vm.Set(name, fn); err != nil {
			return nil, wrapRuleError("js", r.expression, ctx.label(), err)
		}
	}
	value, err := vm.RunProgram(r.program)
	if err != nil {
		return nil, wrapRuleError("js", r.expression, ctx.label(), err)
	}
	return value.Export(), nil
}
