package scene

import (
	"errors"
	"fmt"

	visibility "github.com/goliatone/go-visibility"
)

var (
	// ErrNoRoot is returned when a snapshot does not name its root.
	ErrNoRoot = errors.New("scene: root is required")
	// ErrDuplicateNode is returned when two nodes share an identity.
	ErrDuplicateNode = errors.New("scene: duplicate node")
	// ErrUnknownParent is returned when a node references a parent that is not
	// part of the snapshot.
	ErrUnknownParent = errors.New("scene: unknown parent")
	// ErrUnknownNode is returned by patches that address a missing node.
	ErrUnknownNode = errors.New("scene: unknown node")
	// ErrRootMismatch is returned when the two scenes of a pair name different
	// roots.
	ErrRootMismatch = errors.New("scene: root mismatch")
)

// Node is one element of a scene tree.
type Node struct {
	Key        string          `json:"key"`
	ID         string          `json:"id,omitempty"`
	Parent     string          `json:"parent,omitempty"`
	Visibility visibility.Code `json:"visibility"`
	Attributes map[string]any  `json:"attributes,omitempty"`
}

// Identity is the name the node is matched by across scenes.
func (n Node) Identity() string {
	if n.ID != "" {
		return n.ID
	}
	return n.Key
}

// Snapshot is one scene: a named root and the nodes below it. The root does
// not have to be listed in Nodes; an unlisted root is visible and unparented.
type Snapshot struct {
	Name  string `json:"name,omitempty"`
	Root  string `json:"root"`
	Nodes []Node `json:"nodes"`

	index map[string]int
	alias map[string]string
}

// Validate checks the snapshot and builds its lookup index.
func (s *Snapshot) Validate() error {
	if s.Root == "" {
		return ErrNoRoot
	}
	index := make(map[string]int, len(s.Nodes))
	alias := make(map[string]string, len(s.Nodes)+1)
	for i, node := range s.Nodes {
		if node.Key == "" {
			return fmt.Errorf("scene: node %d has no key", i)
		}
		identity := node.Identity()
		if _, exists := index[identity]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicateNode, identity)
		}
		index[identity] = i
		if previous, exists := alias[node.Key]; exists && previous != identity {
			return fmt.Errorf("%w: key %q", ErrDuplicateNode, node.Key)
		}
		alias[node.Key] = identity
	}
	for identity := range index {
		alias[identity] = identity
	}
	if _, listed := alias[s.Root]; !listed {
		alias[s.Root] = s.Root
	}

	for _, node := range s.Nodes {
		if node.Parent == "" {
			continue
		}
		parent, ok := alias[node.Parent]
		if !ok {
			return fmt.Errorf("%w: %q (node %q)", ErrUnknownParent, node.Parent, node.Identity())
		}
		if parent == node.Identity() {
			return fmt.Errorf("scene: node %q is its own parent", node.Identity())
		}
	}

	s.index = index
	s.alias = alias
	return nil
}

func (s *Snapshot) ensureIndex() {
	if s.alias == nil {
		// An invalid snapshot resolves nothing.
		if err := s.Validate(); err != nil {
			s.index = map[string]int{}
			s.alias = map[string]string{}
		}
	}
}

// RootIdentity is the identity of the root node.
func (s *Snapshot) RootIdentity() string {
	s.ensureIndex()
	if identity, ok := s.alias[s.Root]; ok {
		return identity
	}
	return s.Root
}

// Lookup resolves a key or identity to a node. The unlisted root resolves to
// a synthetic visible node.
func (s *Snapshot) Lookup(name string) (Node, bool) {
	s.ensureIndex()
	identity, ok := s.alias[name]
	if !ok {
		return Node{}, false
	}
	if i, ok := s.index[identity]; ok {
		return s.Nodes[i], true
	}
	if identity == s.RootIdentity() {
		return Node{Key: s.Root, Visibility: visibility.Visible}, true
	}
	return Node{}, false
}

// Facts returns the captured facts for the node, with the parent resolved to
// its identity.
func (s *Snapshot) Facts(name string) (visibility.Facts[string], bool) {
	node, ok := s.Lookup(name)
	if !ok {
		return visibility.Facts[string]{}, false
	}
	facts := visibility.Facts[string]{Visibility: node.Visibility}
	if node.Parent != "" {
		facts.Parent = s.alias[node.Parent]
	}
	return facts, true
}

// Identities lists node identities in document order, root excluded.
func (s *Snapshot) Identities() []string {
	s.ensureIndex()
	root := s.RootIdentity()
	out := make([]string, 0, len(s.Nodes))
	for _, node := range s.Nodes {
		if identity := node.Identity(); identity != root {
			out = append(out, identity)
		}
	}
	return out
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Name: s.Name, Root: s.Root}
	if s.Nodes != nil {
		out.Nodes = make([]Node, len(s.Nodes))
		for i, node := range s.Nodes {
			node.Attributes = cloneMap(node.Attributes)
			out.Nodes[i] = node
		}
	}
	return out
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = cloneAny(value)
	}
	return dst
}

func cloneAny(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return cloneMap(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneAny(item)
		}
		return out
	default:
		return v
	}
}
