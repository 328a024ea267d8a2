package visibility

import "sync/atomic"

type testNode struct {
	name string
}

func (n *testNode) String() string {
	if n == nil {
		return "<nil>"
	}
	return n.name
}

// testTree captures facts from two hand-built scenes.
type testTree struct {
	start map[*testNode]Facts[*testNode]
	end   map[*testNode]Facts[*testNode]
	calls atomic.Int64
}

func newTestTree() *testTree {
	return &testTree{
		start: map[*testNode]Facts[*testNode]{},
		end:   map[*testNode]Facts[*testNode]{},
	}
}

func (t *testTree) Capture(node *testNode, scene Scene) (Facts[*testNode], bool) {
	t.calls.Add(1)
	source := t.start
	if scene == EndScene {
		source = t.end
	}
	facts, ok := source[node]
	return facts, ok
}

func (t *testTree) both(node *testNode, facts Facts[*testNode]) {
	t.start[node] = facts
	t.end[node] = facts
}

func facts(code Code, parent *testNode) *Facts[*testNode] {
	return &Facts[*testNode]{Visibility: code, Parent: parent}
}
