package visibility

import (
	"context"
	"log/slog"
	"time"
)

// Decider turns per-node facts from two scenes into appear / disappear
// decisions. A Decider holds no per-evaluation state and is safe for
// concurrent use.
type Decider[N comparable] struct {
	capture Capturer[N]
	targets Targeter[N]
	cfg     config
}

// New constructs a Decider that reads container facts through capturer. A
// nil capturer is allowed for callers that only use Classify and Decide with
// unparented facts; Evaluate then returns ErrNoCapturer.
func New[N comparable](capturer Capturer[N], opts ...Option) *Decider[N] {
	cfg := applyOptions(opts)
	d := &Decider[N]{
		capture: capturer,
		cfg:     cfg,
	}
	if cfg.targets != nil {
		targeter, ok := cfg.targets.(Targeter[N])
		if ok {
			d.targets = targeter
		} else {
			d.logger().Warn("ignoring targets configured for a different node type")
		}
	}
	return d
}

type ancestryWalker[N comparable] interface {
	ancestryChanging(sceneRoot, start, end N) bool
}

func (d *Decider[N]) ancestryChanging(sceneRoot, start, end N) bool {
	return d.IsAncestryChanging(sceneRoot, start, end)
}

// Decide classifies the node's own change and, unless the node is targeted,
// suppresses it when an ancestry container is itself changing between the
// scenes. Nil facts mean the node was absent from that scene.
func (d *Decider[N]) Decide(sceneRoot N, start, end *Facts[N], targeted bool) Decision {
	return d.decide(d, sceneRoot, start, end, targeted)
}

func (d *Decider[N]) decide(walker ancestryWalker[N], sceneRoot N, start, end *Facts[N], targeted bool) Decision {
	info := Classify(start, end)
	decision := Decision{
		Outcome:         OutcomeNone,
		StartVisibility: info.StartVisibility,
		EndVisibility:   info.EndVisibility,
		Reason:          ReasonUnchanged,
	}
	if !info.Changed {
		return decision
	}

	decision.Reason = ReasonTargeted
	if !targeted {
		var zero N
		switch {
		// Inserted and removed nodes walk too: a parent missing from the
		// other scene counts as changing, so only the outermost one fires.
		case info.StartParent != zero || info.EndParent != zero:
			if walker.ancestryChanging(sceneRoot, info.StartParent, info.EndParent) {
				decision.Reason = ReasonAncestryChanging
				return decision
			}
			decision.Reason = ReasonStableAncestry
		case d.cfg.requireAttachedParent:
			decision.Reason = ReasonDetached
			return decision
		default:
			decision.Reason = ReasonUnparented
		}
	}

	if info.FadeIn {
		decision.Outcome = OutcomeAppear
	} else {
		decision.Outcome = OutcomeDisappear
	}
	return decision
}

// Evaluate captures the candidate's facts in both scenes, resolves whether it
// is targeted and returns the decision for it.
func (d *Decider[N]) Evaluate(ctx context.Context, sceneRoot N, candidate Candidate[N]) (Decision, error) {
	return d.evaluate(ctx, d.capturer(), d, "", sceneRoot, candidate)
}

func (d *Decider[N]) evaluate(ctx context.Context, capture Capturer[N], walker ancestryWalker[N], batchID string, sceneRoot N, candidate Candidate[N]) (Decision, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	if d.capture == nil {
		return Decision{}, ErrNoCapturer
	}

	var zero N
	var start, end *Facts[N]
	if candidate.StartNode != zero {
		if facts, ok := capture.Capture(candidate.StartNode, StartScene); ok {
			start = &facts
		}
	}
	if candidate.EndNode != zero {
		if facts, ok := capture.Capture(candidate.EndNode, EndScene); ok {
			end = &facts
		}
	}

	began := time.Now()
	targeted, err := d.isTarget(candidate)
	if err != nil {
		d.decisionLogger().LogDecision(DecisionLogEvent{
			Node:     candidate.Label(),
			BatchID:  batchID,
			Duration: time.Since(began),
			Err:      err,
		})
		return Decision{}, err
	}
	decision := d.decide(walker, sceneRoot, start, end, targeted)
	d.decisionLogger().LogDecision(DecisionLogEvent{
		Node:     candidate.Label(),
		BatchID:  batchID,
		Decision: decision,
		Targeted: targeted,
		Duration: time.Since(began),
	})

	if err := d.emitDecision(ctx, batchID, sceneRoot, candidate, decision); err != nil {
		d.logger().Warn("activity hooks failed",
			slog.String("node", candidate.Label()),
			slog.Any("err", err),
		)
	}
	return decision, nil
}

func (d *Decider[N]) isTarget(candidate Candidate[N]) (bool, error) {
	if d.targets == nil || !d.targets.Configured() {
		return false, nil
	}
	var zero N
	if candidate.StartNode != zero || candidate.StartID != "" {
		ok, err := d.targets.IsValidTarget(candidate.StartNode, candidate.StartID)
		if err != nil || ok {
			return ok, err
		}
	}
	if candidate.EndNode != zero || candidate.EndID != "" {
		return d.targets.IsValidTarget(candidate.EndNode, candidate.EndID)
	}
	return false, nil
}

func (d *Decider[N]) capturer() Capturer[N] {
	if d.capture != nil {
		return d.capture
	}
	return CapturerFunc[N](nil)
}

func (d *Decider[N]) logger() *slog.Logger {
	if d.cfg.logger != nil {
		return d.cfg.logger
	}
	return slog.New(slog.DiscardHandler)
}

func (d *Decider[N]) decisionLogger() DecisionLogger {
	if d.cfg.decisionLogger != nil {
		return d.cfg.decisionLogger
	}
	return noopDecisionLogger{}
}
