package visibility

import (
	"context"
	"fmt"

	"github.com/goliatone/go-visibility/pkg/activity"
)

// ActivityHooks returns a cloned slice of the activity hooks configured on
// the Decider. The returned slice can be safely mutated by the caller.
func (d *Decider[N]) ActivityHooks() activity.Hooks {
	if d == nil {
		return nil
	}
	return cloneActivityHooks(d.cfg.activityHooks)
}

func (d *Decider[N]) emitDecision(ctx context.Context, batchID string, sceneRoot N, candidate Candidate[N], decision Decision) error {
	if len(d.cfg.activityHooks) == 0 {
		return nil
	}
	input := activity.DecisionEventInput{
		NodeID:          candidate.Label(),
		Channel:         d.cfg.activityChannel,
		StartVisibility: decision.StartVisibility.String(),
		EndVisibility:   decision.EndVisibility.String(),
		Reason:          string(decision.Reason),
		BatchID:         batchID,
		SceneRoot:       fmt.Sprint(sceneRoot),
	}
	var event activity.Event
	switch {
	case decision.Outcome == OutcomeAppear:
		event = activity.BuildAppearEvent(input)
	case decision.Outcome == OutcomeDisappear:
		event = activity.BuildDisappearEvent(input)
	case decision.Reason == ReasonAncestryChanging || decision.Reason == ReasonDetached:
		event = activity.BuildSuppressedEvent(input)
	default:
		return nil
	}
	emitter := activity.NewEmitter(d.cfg.activityHooks, activity.Config{Enabled: true, Channel: d.cfg.activityChannel})
	return emitter.Emit(ctx, event)
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}
