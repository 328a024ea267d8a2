package scene

import (
	"fmt"

	visibility "github.com/goliatone/go-visibility"
)

// OpKind names a patch operation.
type OpKind string

const (
	// OpSet changes a node's visibility and merges attributes into it.
	OpSet OpKind = "set"
	// OpReparent moves a node under a new parent.
	OpReparent OpKind = "reparent"
	// OpRemove drops a node and everything below it.
	OpRemove OpKind = "remove"
	// OpInsert adds a new node.
	OpInsert OpKind = "insert"
)

// Op is one patch step. Target accepts a key or an identity.
type Op struct {
	Op         OpKind           `json:"op"`
	Target     string           `json:"target,omitempty"`
	Visibility *visibility.Code `json:"visibility,omitempty"`
	Parent     string           `json:"parent,omitempty"`
	Attributes map[string]any   `json:"attributes,omitempty"`
	Node       *Node            `json:"node,omitempty"`
}

// Patch derives an end scene from a start scene.
type Patch struct {
	Name string `json:"name,omitempty"`
	Ops  []Op   `json:"ops"`
}

// Apply returns a copy of base with the patch applied in order. base is
// never modified.
func Apply(base Snapshot, patch Patch) (Snapshot, error) {
	out := base.Clone()
	if patch.Name != "" {
		out.Name = patch.Name
	}
	if err := out.Validate(); err != nil {
		return Snapshot{}, err
	}

	for i, op := range patch.Ops {
		if err := applyOp(&out, op); err != nil {
			return Snapshot{}, fmt.Errorf("scene: patch op %d (%s): %w", i, op.Op, err)
		}
		out.index, out.alias = nil, nil
		if err := out.Validate(); err != nil {
			return Snapshot{}, fmt.Errorf("scene: patch op %d (%s): %w", i, op.Op, err)
		}
	}
	return out, nil
}

func applyOp(s *Snapshot, op Op) error {
	switch op.Op {
	case OpInsert:
		if op.Node == nil {
			return fmt.Errorf("insert requires a node")
		}
		node := *op.Node
		node.Attributes = cloneMap(node.Attributes)
		s.Nodes = append(s.Nodes, node)
		return nil
	case OpSet, OpReparent, OpRemove:
	default:
		return fmt.Errorf("unsupported op %q", op.Op)
	}

	identity, ok := s.alias[op.Target]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, op.Target)
	}
	if identity == s.RootIdentity() {
		return fmt.Errorf("root %q cannot be patched", op.Target)
	}
	i := s.index[identity]

	switch op.Op {
	case OpSet:
		if op.Visibility != nil {
			s.Nodes[i].Visibility = *op.Visibility
		}
		s.Nodes[i].Attributes = mergeAttributes(op.Attributes, s.Nodes[i].Attributes)
	case OpReparent:
		if op.Parent == "" {
			return fmt.Errorf("reparent requires a parent")
		}
		s.Nodes[i].Parent = op.Parent
	case OpRemove:
		s.Nodes = removeSubtree(s, identity)
	}
	return nil
}

func removeSubtree(s *Snapshot, identity string) []Node {
	removed := map[string]bool{identity: true}
	for changed := true; changed; {
		changed = false
		for _, node := range s.Nodes {
			id := node.Identity()
			if removed[id] || node.Parent == "" {
				continue
			}
			if removed[s.alias[node.Parent]] {
				removed[id] = true
				changed = true
			}
		}
	}
	kept := make([]Node, 0, len(s.Nodes))
	for _, node := range s.Nodes {
		if !removed[node.Identity()] {
			kept = append(kept, node)
		}
	}
	return kept
}

// mergeAttributes keeps every key of strong and fills the rest from weak.
// Nested maps merge recursively.
func mergeAttributes(strong, weak map[string]any) map[string]any {
	if strong == nil {
		return cloneMap(weak)
	}
	out := cloneMap(weak)
	if out == nil {
		out = make(map[string]any, len(strong))
	}
	for key, value := range strong {
		strongMap, strongIsMap := value.(map[string]any)
		weakMap, weakIsMap := out[key].(map[string]any)
		if strongIsMap && weakIsMap {
			out[key] = mergeAttributes(strongMap, weakMap)
			continue
		}
		out[key] = cloneAny(value)
	}
	return out
}
