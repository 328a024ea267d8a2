package visibility

import (
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// Targeter decides whether a node is an explicit transition target. Targets
// bypass ancestry suppression. When Configured reports false no node is
// treated as a target.
type Targeter[N comparable] interface {
	Configured() bool
	IsValidTarget(node N, id string) (bool, error)
}

// Describer renders a node into the map that target rules see as `node`.
type Describer[N comparable] interface {
	Describe(node N, id string) map[string]any
}

// DescriberFunc adapts a function to Describer.
type DescriberFunc[N comparable] func(node N, id string) map[string]any

// Describe implements Describer.
func (f DescriberFunc[N]) Describe(node N, id string) map[string]any {
	if f == nil {
		return nil
	}
	return f(node, id)
}

// Rule is a compiled target expression.
type Rule struct {
	Engine string
	Expr   string

	compiled CompiledRule
}

// NewRule compiles expr with evaluator.
func NewRule(evaluator Evaluator, expr string, opts ...CompileOption) (Rule, error) {
	if evaluator == nil {
		return Rule{}, ErrNoEvaluator
	}
	engine := evaluatorEngineName(evaluator)
	compiled, err := evaluator.Compile(expr, opts...)
	if err != nil {
		return Rule{}, wrapRuleError(engine, expr, "", err)
	}
	return Rule{Engine: engine, Expr: expr, compiled: compiled}, nil
}

// Match evaluates the rule and requires a boolean result.
func (r Rule) Match(ctx RuleContext) (bool, error) {
	if r.compiled == nil {
		return false, wrapRuleError(r.Engine, r.Expr, ctx.label(), ErrNoEvaluator)
	}
	result, err := r.compiled.Evaluate(ctx)
	if err != nil {
		return false, wrapRuleError(r.Engine, r.Expr, ctx.label(), err)
	}
	matched, ok := result.(bool)
	if !ok {
		return false, wrapRuleError(r.Engine, r.Expr, ctx.label(), fmt.Errorf("rule returned %T, want bool", result))
	}
	return matched, nil
}

// TargetSet is the standard Targeter: explicit nodes, stable ids and rules.
// A node is a target when any of the three matches. TargetSet is safe for
// concurrent use.
type TargetSet[N comparable] struct {
	nodes mapset.Set[N]
	ids   mapset.Set[string]

	mu        sync.RWMutex
	rules     []Rule
	describer Describer[N]
	args      map[string]any
	metadata  map[string]any
}

// TargetOption configures a TargetSet.
type TargetOption[N comparable] func(*TargetSet[N])

// WithDescriber sets how nodes are rendered for rules.
func WithDescriber[N comparable](describer Describer[N]) TargetOption[N] {
	return func(s *TargetSet[N]) {
		s.describer = describer
	}
}

// WithRuleArgs sets the `args` map passed to every rule.
func WithRuleArgs[N comparable](args map[string]any) TargetOption[N] {
	return func(s *TargetSet[N]) {
		s.args = copyMap(args)
	}
}

// WithRuleMetadata sets the `metadata` map passed to every rule.
func WithRuleMetadata[N comparable](metadata map[string]any) TargetOption[N] {
	return func(s *TargetSet[N]) {
		s.metadata = copyMap(metadata)
	}
}

// NewTargetSet constructs an empty set.
func NewTargetSet[N comparable](opts ...TargetOption[N]) *TargetSet[N] {
	s := &TargetSet[N]{
		nodes: mapset.NewSet[N](),
		ids:   mapset.NewSet[string](),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// AddNode registers nodes by identity. The zero node is ignored.
func (s *TargetSet[N]) AddNode(nodes ...N) *TargetSet[N] {
	var zero N
	for _, node := range nodes {
		if node != zero {
			s.nodes.Add(node)
		}
	}
	return s
}

// AddID registers stable ids. Empty ids are ignored.
func (s *TargetSet[N]) AddID(ids ...string) *TargetSet[N] {
	for _, id := range ids {
		if id != "" {
			s.ids.Add(id)
		}
	}
	return s
}

// AddRule registers a compiled rule.
func (s *TargetSet[N]) AddRule(rule Rule) *TargetSet[N] {
	s.mu.Lock()
	s.rules = append(s.rules, rule)
	s.mu.Unlock()
	return s
}

// AddExpression compiles expr with evaluator and registers it.
func (s *TargetSet[N]) AddExpression(evaluator Evaluator, expr string) error {
	rule, err := NewRule(evaluator, expr)
	if err != nil {
		return err
	}
	s.AddRule(rule)
	return nil
}

// Configured reports whether any node, id or rule was registered.
func (s *TargetSet[N]) Configured() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	rules := len(s.rules)
	s.mu.RUnlock()
	return s.nodes.Cardinality() > 0 || s.ids.Cardinality() > 0 || rules > 0
}

// IsValidTarget reports whether node or id belongs to the set. Rules are
// evaluated in registration order after the node and id lookups miss.
func (s *TargetSet[N]) IsValidTarget(node N, id string) (bool, error) {
	if s == nil {
		return false, nil
	}
	var zero N
	if node != zero && s.nodes.Contains(node) {
		return true, nil
	}
	if id != "" && s.ids.Contains(id) {
		return true, nil
	}

	s.mu.RLock()
	rules := append([]Rule(nil), s.rules...)
	describer := s.describer
	s.mu.RUnlock()
	if len(rules) == 0 {
		return false, nil
	}

	ctx := RuleContext{
		Node:     describeNode(describer, node, id),
		ID:       id,
		Args:     s.args,
		Metadata: s.metadata,
	}
	for _, rule := range rules {
		matched, err := rule.Match(ctx)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

func describeNode[N comparable](describer Describer[N], node N, id string) map[string]any {
	if describer != nil {
		if described := describer.Describe(node, id); described != nil {
			return described
		}
	}
	return map[string]any{
		"key": fmt.Sprint(node),
		"id":  id,
	}
}

func copyMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
