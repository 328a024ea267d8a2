package visibility

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Batch evaluates many candidates against one pair of scenes. Captured facts
// and ancestry results are memoized for the lifetime of the batch, so a batch
// must not outlive the scenes it was created for.
type Batch[N comparable] struct {
	ID string

	decider  *Decider[N]
	mu       sync.RWMutex
	facts    map[factKey[N]]factEntry[N]
	ancestry map[[3]N]bool
}

type factKey[N comparable] struct {
	node  N
	scene Scene
}

type factEntry[N comparable] struct {
	facts Facts[N]
	ok    bool
}

// NewBatch starts a batch with a fresh identifier.
func (d *Decider[N]) NewBatch() *Batch[N] {
	return &Batch[N]{
		ID:       uuid.NewString(),
		decider:  d,
		facts:    map[factKey[N]]factEntry[N]{},
		ancestry: map[[3]N]bool{},
	}
}

// Capture implements Capturer, reading through to the Decider's capturer on
// the first request for a (node, scene) pair.
func (b *Batch[N]) Capture(node N, scene Scene) (Facts[N], bool) {
	key := factKey[N]{node: node, scene: scene}
	b.mu.RLock()
	entry, found := b.facts[key]
	b.mu.RUnlock()
	if found {
		return entry.facts, entry.ok
	}

	facts, ok := b.decider.capturer().Capture(node, scene)
	b.mu.Lock()
	b.facts[key] = factEntry[N]{facts: facts, ok: ok}
	b.mu.Unlock()
	return facts, ok
}

func (b *Batch[N]) ancestryChanging(sceneRoot, start, end N) bool {
	key := [3]N{sceneRoot, start, end}
	b.mu.RLock()
	changing, found := b.ancestry[key]
	b.mu.RUnlock()
	if found {
		return changing
	}

	changing, _ = b.decider.walkAncestry(b, sceneRoot, start, end, false)
	b.mu.Lock()
	b.ancestry[key] = changing
	b.mu.Unlock()
	return changing
}

// Decide is Decider.Decide with the batch's memoized captures.
func (b *Batch[N]) Decide(sceneRoot N, start, end *Facts[N], targeted bool) Decision {
	return b.decider.decide(b, sceneRoot, start, end, targeted)
}

// Evaluate is Decider.Evaluate with the batch's memoized captures.
func (b *Batch[N]) Evaluate(ctx context.Context, sceneRoot N, candidate Candidate[N]) (Decision, error) {
	return b.decider.evaluate(ctx, b, b, b.ID, sceneRoot, candidate)
}

// EvaluateAll evaluates candidates using up to the configured number of
// workers. Decisions are returned in candidate order. The first error
// cancels the remaining evaluations.
func (b *Batch[N]) EvaluateAll(ctx context.Context, sceneRoot N, candidates []Candidate[N]) ([]Decision, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]Decision, len(candidates))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(b.decider.cfg.workers)
	for i, candidate := range candidates {
		group.Go(func() error {
			decision, err := b.Evaluate(groupCtx, sceneRoot, candidate)
			if err != nil {
				return fmt.Errorf("visibility: evaluate %s: %w", candidate.Label(), err)
			}
			results[i] = decision
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
