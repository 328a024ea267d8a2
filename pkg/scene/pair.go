package scene

import (
	"fmt"

	visibility "github.com/goliatone/go-visibility"
)

// Pair is the start and end scene of one transition. It implements
// visibility.Capturer and visibility.Describer over node identities and is
// safe for concurrent use once constructed.
type Pair struct {
	Start Snapshot
	End   Snapshot
}

// NewPair validates both snapshots. Both scenes must resolve to the same root
// identity, since ancestry walks stop at a single root.
func NewPair(start, end Snapshot) (*Pair, error) {
	if err := start.Validate(); err != nil {
		return nil, fmt.Errorf("scene: start %q: %w", start.Name, err)
	}
	if err := end.Validate(); err != nil {
		return nil, fmt.Errorf("scene: end %q: %w", end.Name, err)
	}
	if startRoot, endRoot := start.RootIdentity(), end.RootIdentity(); startRoot != endRoot {
		return nil, fmt.Errorf("%w: start %q, end %q", ErrRootMismatch, startRoot, endRoot)
	}
	return &Pair{Start: start, End: end}, nil
}

// Root is the scene root identity used for ancestry walks.
func (p *Pair) Root() string {
	return p.Start.RootIdentity()
}

func (p *Pair) snapshot(scene visibility.Scene) *Snapshot {
	if scene == visibility.EndScene {
		return &p.End
	}
	return &p.Start
}

// Capture implements visibility.Capturer.
func (p *Pair) Capture(node string, scene visibility.Scene) (visibility.Facts[string], bool) {
	if node == "" {
		return visibility.Facts[string]{}, false
	}
	return p.snapshot(scene).Facts(node)
}

// Describe implements visibility.Describer. The end scene wins when the node
// exists in both.
func (p *Pair) Describe(node string, id string) map[string]any {
	name := node
	if name == "" {
		name = id
	}
	found, ok := p.End.Lookup(name)
	if !ok {
		found, ok = p.Start.Lookup(name)
	}
	out := map[string]any{
		"key": name,
		"id":  id,
	}
	if !ok {
		return out
	}
	out["key"] = found.Key
	out["parent"] = found.Parent
	out["visibility"] = found.Visibility.String()
	attributes := cloneMap(found.Attributes)
	if attributes == nil {
		attributes = map[string]any{}
	}
	out["attributes"] = attributes
	return out
}

// Candidates lists every non-root node of either scene, start order first.
func (p *Pair) Candidates() []visibility.Candidate[string] {
	seen := map[string]struct{}{}
	out := []visibility.Candidate[string]{}
	add := func(identity string) {
		if _, ok := seen[identity]; ok {
			return
		}
		seen[identity] = struct{}{}
		candidate := visibility.Candidate[string]{}
		if _, ok := p.Start.Lookup(identity); ok {
			candidate.StartNode = identity
			candidate.StartID = identity
		}
		if _, ok := p.End.Lookup(identity); ok {
			candidate.EndNode = identity
			candidate.EndID = identity
		}
		out = append(out, candidate)
	}
	for _, identity := range p.Start.Identities() {
		add(identity)
	}
	for _, identity := range p.End.Identities() {
		add(identity)
	}
	return out
}
