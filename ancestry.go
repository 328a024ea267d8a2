package visibility

import (
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"
)

// DefaultMaxDepth bounds the ancestry walk when no limit is configured.
const DefaultMaxDepth = 256

// IsAncestryChanging reports whether any container between the given start
// and end ancestors and the scene root differs in visibility or parent
// between the two scenes. The scene root itself is never changing.
func (d *Decider[N]) IsAncestryChanging(sceneRoot, startAncestor, endAncestor N) bool {
	changing, _ := d.walkAncestry(d.capturer(), sceneRoot, startAncestor, endAncestor, false)
	return changing
}

// TraceAncestry runs the same walk as IsAncestryChanging and records every
// level it visited.
func (d *Decider[N]) TraceAncestry(sceneRoot, startAncestor, endAncestor N) AncestryTrace[N] {
	_, trace := d.walkAncestry(d.capturer(), sceneRoot, startAncestor, endAncestor, true)
	return trace
}

func (d *Decider[N]) walkAncestry(capture Capturer[N], sceneRoot, start, end N, record bool) (bool, AncestryTrace[N]) {
	var zero N
	trace := AncestryTrace[N]{}
	finish := func(changing bool, stop StopReason) (bool, AncestryTrace[N]) {
		trace.Changing = changing
		trace.Stop = stop
		return changing, trace
	}

	maxDepth := d.cfg.maxDepth
	visited := mapset.NewThreadUnsafeSet[[2]N]()

	for depth := 0; ; depth++ {
		if start == sceneRoot || end == sceneRoot {
			return finish(false, StopRoot)
		}
		if depth >= maxDepth {
			d.logger().Warn("ancestry walk exceeded depth limit",
				slog.Int("max_depth", maxDepth),
				slog.Any("err", ErrDepthExceeded),
			)
			return finish(true, StopDepth)
		}
		if !visited.Add([2]N{start, end}) {
			d.logger().Warn("ancestry walk revisited a container pair",
				slog.Int("depth", depth),
				slog.Any("err", ErrCycleDetected),
			)
			return finish(true, StopCycle)
		}

		startNode, endNode := start, end
		if startNode == zero {
			startNode = end
		}
		if endNode == zero {
			endNode = start
		}
		startFacts, startOK := capture.Capture(startNode, StartScene)
		endFacts, endOK := capture.Capture(endNode, EndScene)

		if record {
			trace.Levels = append(trace.Levels, AncestryLevel[N]{
				Depth:      depth,
				StartNode:  start,
				EndNode:    end,
				StartFacts: factsOrNil(startFacts, startOK),
				EndFacts:   factsOrNil(endFacts, endOK),
			})
		}

		if !startOK || !endOK {
			return finish(true, StopMissing)
		}
		if startFacts.Visibility != endFacts.Visibility || startFacts.Parent != endFacts.Parent {
			return finish(true, StopMismatch)
		}
		if !startFacts.HasParent() && !endFacts.HasParent() {
			return finish(false, StopUnparented)
		}
		start, end = startFacts.Parent, endFacts.Parent
	}
}

func factsOrNil[N comparable](facts Facts[N], ok bool) *Facts[N] {
	if !ok {
		return nil
	}
	return &facts
}
