package visibility

import "fmt"

// RuleEngineOption configures a rule engine (expr, CEL or JS).
type RuleEngineOption func(*ruleEngine)

// WithProgramCache shares compiled rule programs through cache. One cache may
// back several engines; an entry compiled by another engine is recompiled.
func WithProgramCache(cache ProgramCache) RuleEngineOption {
	return func(e *ruleEngine) {
		e.cache = cache
	}
}

// WithFunctionRegistry exposes the registry's functions to rules by name and
// through call(name, args). The registry is cloned, so later registrations do
// not reach an engine that is already built.
func WithFunctionRegistry(registry *FunctionRegistry) RuleEngineOption {
	return func(e *ruleEngine) {
		if registry != nil {
			e.registry = registry.Clone()
		}
	}
}

// ruleEngine is the state every rule engine shares.
type ruleEngine struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

func newRuleEngine(opts []RuleEngineOption) ruleEngine {
	engine := ruleEngine{}
	for _, opt := range opts {
		if opt != nil {
			opt(&engine)
		}
	}
	return engine
}

func (e ruleEngine) call(name string, arguments ...any) (any, error) {
	return e.registry.Call(name, arguments...)
}

// functions maps every registered name, plus "call", to a variadic Go func.
func (e ruleEngine) functions() map[string]func(...any) (any, error) {
	if e.registry == nil {
		return nil
	}
	out := map[string]func(...any) (any, error){
		"call": func(arguments ...any) (any, error) {
			if len(arguments) == 0 {
				return nil, fmt.Errorf("visibility: call requires function name")
			}
			name, ok := arguments[0].(string)
			if !ok {
				return nil, fmt.Errorf("visibility: call name must be string")
			}
			return e.call(name, arguments[1:]...)
		},
	}
	for _, name := range e.registry.Names() {
		fn := name
		out[fn] = func(arguments ...any) (any, error) {
			return e.call(fn, arguments...)
		}
	}
	return out
}

// compileCached returns the program cached for expression, compiling and
// storing it on a miss. Options may bypass the cache for a single rule.
func compileCached[P any](e ruleEngine, cfg compileConfig, expression string, compile func(string) (P, error)) (P, error) {
	if e.cache == nil || cfg.skipCache {
		return compile(expression)
	}
	if cached, ok := e.cache.Get(expression); ok {
		if program, ok := cached.(P); ok {
			return program, nil
		}
	}
	program, err := compile(expression)
	if err != nil {
		return program, err
	}
	e.cache.Set(expression, program)
	return program, nil
}

func errEmptyExpression(engine string) error {
	return wrapEvaluatorError(engine, fmt.Errorf("expression must not be empty"))
}
