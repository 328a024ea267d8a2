package scene_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	visibility "github.com/goliatone/go-visibility"
	"github.com/goliatone/go-visibility/pkg/scene"
)

func fixture(name string) string {
	return filepath.Join("..", "..", "testdata", "scenes", name)
}

func loadPair(t *testing.T, start, end string) *scene.Pair {
	t.Helper()
	s, err := scene.LoadFile(fixture(start))
	require.NoError(t, err)
	e, err := scene.LoadFile(fixture(end))
	require.NoError(t, err)
	pair, err := scene.NewPair(s, e)
	require.NoError(t, err)
	return pair
}

func TestNewPairRejectsDifferentRoots(t *testing.T) {
	start, err := scene.LoadFile(fixture("list_start.yaml"))
	require.NoError(t, err)

	_, err = scene.NewPair(start, scene.Snapshot{Name: "elsewhere", Root: "other"})
	require.ErrorIs(t, err, scene.ErrRootMismatch)

	_, err = scene.NewPair(start, scene.Snapshot{Name: "same-root", Root: start.Root})
	require.NoError(t, err)
}

func outcomes(t *testing.T, pair *scene.Pair, opts ...visibility.Option) map[string]visibility.Decision {
	t.Helper()
	decider := visibility.New[string](pair, opts...)
	candidates := pair.Candidates()
	decisions, err := decider.NewBatch().EvaluateAll(context.Background(), pair.Root(), candidates)
	require.NoError(t, err)
	out := make(map[string]visibility.Decision, len(candidates))
	for i, candidate := range candidates {
		out[candidate.Label()] = decisions[i]
	}
	return out
}

func TestLoadFileYAMLAndJSONAgree(t *testing.T) {
	fromYAML, err := scene.LoadFile(fixture("list_end.yaml"))
	require.NoError(t, err)
	fromJSON, err := scene.LoadFile(fixture("list_end.json"))
	require.NoError(t, err)

	assert.Equal(t, "list-end", fromYAML.Name)
	assert.Equal(t, "list-end-json", fromJSON.Name)
	assert.Equal(t, scene.Fingerprint(fromYAML), scene.Fingerprint(fromJSON))

	badge, ok := fromYAML.Lookup("badge")
	require.True(t, ok)
	assert.Equal(t, visibility.Visible, badge.Visibility)
}

func TestSnapshotIdentityAndFacts(t *testing.T) {
	snapshot, err := scene.LoadFile(fixture("list_start.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "root", snapshot.RootIdentity())
	assert.Equal(t, []string{"header", "list", "item-1", "item-2", "footer", "promo"}, snapshot.Identities())

	byKey, ok := snapshot.Facts("banner-1")
	require.True(t, ok)
	byID, ok := snapshot.Facts("promo")
	require.True(t, ok)
	assert.Equal(t, byKey, byID)
	assert.Equal(t, visibility.Facts[string]{Visibility: visibility.Invisible, Parent: "header"}, byID)

	root, ok := snapshot.Facts("root")
	require.True(t, ok)
	assert.False(t, root.HasParent())

	_, ok = snapshot.Facts("missing")
	assert.False(t, ok)
}

func TestDecodeValidation(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		err  error
	}{
		{name: "missing root", doc: "nodes: []\n", err: scene.ErrNoRoot},
		{name: "duplicate", doc: "root: r\nnodes:\n  - {key: a, parent: r}\n  - {key: a, parent: r}\n", err: scene.ErrDuplicateNode},
		{name: "duplicate id", doc: "root: r\nnodes:\n  - {key: a, id: x, parent: r}\n  - {key: b, id: x, parent: r}\n", err: scene.ErrDuplicateNode},
		{name: "unknown parent", doc: "root: r\nnodes:\n  - {key: a, parent: nope}\n", err: scene.ErrUnknownParent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := scene.Decode([]byte(tc.doc), scene.FormatYAML)
			require.ErrorIs(t, err, tc.err)
		})
	}

	_, err := scene.Decode([]byte(`{"root": "r", "layers": []}`), scene.FormatJSON)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
}

func TestPairCandidatesAndDescribe(t *testing.T) {
	pair := loadPair(t, "list_start.yaml", "list_end.yaml")

	candidates := pair.Candidates()
	labels := make([]string, 0, len(candidates))
	for _, c := range candidates {
		labels = append(labels, c.Label())
	}
	assert.Equal(t, []string{"header", "list", "item-1", "item-2", "footer", "promo", "badge"}, labels)

	badge := candidates[len(candidates)-1]
	assert.Empty(t, badge.StartNode)
	assert.Equal(t, "badge", badge.EndNode)

	described := pair.Describe("promo", "promo")
	assert.Equal(t, "banner-2", described["key"])
	assert.Equal(t, "visible", described["visibility"])
	assert.Equal(t, map[string]any{"class": "banner"}, described["attributes"])

	unknown := pair.Describe("", "ghost")
	assert.Equal(t, map[string]any{"key": "ghost", "id": "ghost"}, unknown)
}

func TestPairDecisions(t *testing.T) {
	pair := loadPair(t, "list_start.yaml", "list_end.yaml")
	got := outcomes(t, pair)

	want := map[string]struct {
		outcome visibility.Outcome
		reason  visibility.Reason
	}{
		"header": {visibility.OutcomeNone, visibility.ReasonUnchanged},
		"list":   {visibility.OutcomeDisappear, visibility.ReasonStableAncestry},
		"item-1": {visibility.OutcomeNone, visibility.ReasonUnchanged},
		"item-2": {visibility.OutcomeNone, visibility.ReasonAncestryChanging},
		"footer": {visibility.OutcomeAppear, visibility.ReasonStableAncestry},
		"promo":  {visibility.OutcomeAppear, visibility.ReasonStableAncestry},
		"badge":  {visibility.OutcomeAppear, visibility.ReasonStableAncestry},
	}
	require.Len(t, got, len(want))
	for label, expected := range want {
		assert.Equal(t, expected.outcome, got[label].Outcome, label)
		assert.Equal(t, expected.reason, got[label].Reason, label)
	}
}

func TestPairDecisionsWithTargetRule(t *testing.T) {
	pair := loadPair(t, "list_start.yaml", "list_end.yaml")
	targets := visibility.NewTargetSet(visibility.WithDescriber[string](pair))
	require.NoError(t, targets.AddExpression(visibility.NewExprEvaluator(), `node.key startsWith "item-"`))

	got := outcomes(t, pair, visibility.WithTargets(targets))
	assert.Equal(t, visibility.OutcomeDisappear, got["item-2"].Outcome)
	assert.Equal(t, visibility.ReasonTargeted, got["item-2"].Reason)
	assert.Equal(t, visibility.ReasonUnchanged, got["item-1"].Reason)
}

func TestApplyPatchMatchesEndScene(t *testing.T) {
	start, err := scene.LoadFile(fixture("list_start.yaml"))
	require.NoError(t, err)
	patch, err := scene.LoadPatchFile(fixture("list_patch.yaml"))
	require.NoError(t, err)

	end, err := scene.Apply(start, patch)
	require.NoError(t, err)
	assert.Equal(t, "list-patched", end.Name)

	promo, ok := end.Lookup("promo")
	require.True(t, ok)
	assert.Equal(t, visibility.Visible, promo.Visibility)
	assert.Equal(t, map[string]any{"class": "banner", "seen": true}, promo.Attributes)

	item, ok := end.Lookup("item-2")
	require.True(t, ok)
	assert.Equal(t, visibility.Gone, item.Visibility)

	original, ok := start.Lookup("promo")
	require.True(t, ok)
	assert.Equal(t, visibility.Invisible, original.Visibility, "base must not be modified")
	assert.Equal(t, map[string]any{"class": "banner"}, original.Attributes)

	pair, err := scene.NewPair(start, end)
	require.NoError(t, err)
	got := outcomes(t, pair)
	assert.Equal(t, visibility.OutcomeAppear, got["badge"].Outcome)
	assert.Equal(t, visibility.ReasonAncestryChanging, got["item-2"].Reason)
}

func TestApplyPatchOps(t *testing.T) {
	start, err := scene.LoadFile(fixture("list_start.yaml"))
	require.NoError(t, err)

	removed, err := scene.Apply(start, scene.Patch{Ops: []scene.Op{{Op: scene.OpRemove, Target: "list"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"header", "footer", "promo"}, removed.Identities())

	moved, err := scene.Apply(start, scene.Patch{Ops: []scene.Op{{Op: scene.OpReparent, Target: "item-1", Parent: "header"}}})
	require.NoError(t, err)
	facts, ok := moved.Facts("item-1")
	require.True(t, ok)
	assert.Equal(t, "header", facts.Parent)

	_, err = scene.Apply(start, scene.Patch{Ops: []scene.Op{{Op: scene.OpSet, Target: "ghost"}}})
	require.ErrorIs(t, err, scene.ErrUnknownNode)

	_, err = scene.Apply(start, scene.Patch{Ops: []scene.Op{{Op: scene.OpRemove, Target: "root"}}})
	require.Error(t, err)

	_, err = scene.Apply(start, scene.Patch{Ops: []scene.Op{{Op: scene.OpReparent, Target: "item-1", Parent: "nowhere"}}})
	require.ErrorIs(t, err, scene.ErrUnknownParent)

	_, err = scene.Apply(start, scene.Patch{Ops: []scene.Op{{Op: "rename", Target: "item-1"}}})
	require.Error(t, err)
}

func TestFingerprintIgnoresOrderAndName(t *testing.T) {
	a := scene.Snapshot{Name: "a", Root: "r", Nodes: []scene.Node{
		{Key: "x", Parent: "r"},
		{Key: "y", Parent: "x", Attributes: map[string]any{"k": 1}},
	}}
	b := scene.Snapshot{Name: "b", Root: "r", Nodes: []scene.Node{a.Nodes[1], a.Nodes[0]}}
	assert.Equal(t, scene.Fingerprint(a), scene.Fingerprint(b))

	b.Nodes[0].Visibility = visibility.Gone
	assert.NotEqual(t, scene.Fingerprint(a), scene.Fingerprint(b))
}
