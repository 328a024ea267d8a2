package visibility

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoCapturer is returned by Evaluate when the Decider has no capturer.
	ErrNoCapturer = errors.New("visibility: capturer not configured")
	// ErrNoEvaluator indicates a target rule was built without an evaluator.
	ErrNoEvaluator = errors.New("visibility: evaluator not configured")
	// ErrDepthExceeded is logged when an ancestry walk hits the depth limit.
	ErrDepthExceeded = errors.New("visibility: ancestry depth limit exceeded")
	// ErrCycleDetected is logged when an ancestry walk revisits a container pair.
	ErrCycleDetected = errors.New("visibility: ancestry cycle detected")
)

// RuleError captures target rule metadata alongside the originating error.
type RuleError struct {
	Engine string
	Expr   string
	Node   string
	Err    error
}

func (e *RuleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("visibility: %s rule %s node=%s: %v", e.Engine, describeExpression(e.Expr), e.Node, e.Err)
}

func (e *RuleError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var ruleErr *RuleError
	if errors.As(err, &ruleErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "visibility:") {
		return err
	}
	return fmt.Errorf("visibility: %s evaluator: %w", engine, err)
}

func wrapRuleError(engine, expr, node string, err error) error {
	if err == nil {
		return nil
	}

	var ruleErr *RuleError
	if errors.As(err, &ruleErr) {
		if ruleErr.Engine == "" {
			ruleErr.Engine = engine
		}
		if ruleErr.Expr == "" {
			ruleErr.Expr = expr
		}
		if ruleErr.Node == "" {
			ruleErr.Node = node
		}
		return ruleErr
	}

	return &RuleError{
		Engine: engine,
		Expr:   expr,
		Node:   node,
		Err:    err,
	}
}
