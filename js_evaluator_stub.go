//go:build !js_eval

package visibility

// NewJSEvaluator returns nil in builds without the js_eval tag; callers treat
// a nil Evaluator as an engine that is not compiled in.
func NewJSEvaluator(...RuleEngineOption) Evaluator {
	return nil
}
