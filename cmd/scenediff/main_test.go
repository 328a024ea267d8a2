package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(name string) string {
	return filepath.Join("..", "..", "testdata", "scenes", name)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type jsonDecision struct {
	Node     string `json:"node"`
	Targeted bool   `json:"targeted"`
	Decision struct {
		Outcome string `json:"outcome"`
		Reason  string `json:"reason"`
	} `json:"decision"`
}

type jsonReport struct {
	Batch     string         `json:"batch"`
	Start     string         `json:"start"`
	End       string         `json:"end"`
	Decisions []jsonDecision `json:"decisions"`
	Events    []struct {
		Verb   string `json:"verb"`
		Object string `json:"object"`
	} `json:"events"`
}

func decideJSON(t *testing.T, args ...string) jsonReport {
	t.Helper()
	out, err := run(t, append([]string{"decide", "--format", "json"}, args...)...)
	require.NoError(t, err)
	var report jsonReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	return report
}

func byNode(report jsonReport) map[string]jsonDecision {
	out := map[string]jsonDecision{}
	for _, d := range report.Decisions {
		out[d.Node] = d
	}
	return out
}

func TestDecideJSON(t *testing.T) {
	report := decideJSON(t, "--start", fixture("list_start.yaml"), "--end", fixture("list_end.yaml"), "--events")
	assert.NotEmpty(t, report.Batch)
	assert.NotEqual(t, report.Start, report.End)

	decisions := byNode(report)
	require.Len(t, decisions, 7)
	assert.Equal(t, "disappear", decisions["list"].Decision.Outcome)
	assert.Equal(t, "none", decisions["item-2"].Decision.Outcome)
	assert.Equal(t, "ancestry_changing", decisions["item-2"].Decision.Reason)
	assert.Equal(t, "appear", decisions["promo"].Decision.Outcome)
	assert.Equal(t, "appear", decisions["badge"].Decision.Outcome)

	verbs := map[string]string{}
	for _, event := range report.Events {
		verbs[event.Object] = event.Verb
	}
	assert.Equal(t, "visibility.suppressed", verbs["item-2"])
	assert.Equal(t, "visibility.disappear", verbs["list"])
	assert.NotContains(t, verbs, "header")
}

func TestDecideTargetsAndRules(t *testing.T) {
	report := decideJSON(t, "--start", fixture("list_start.yaml"), "--end", fixture("list_end.yaml"), "--target", "item-2")
	decisions := byNode(report)
	assert.Equal(t, "disappear", decisions["item-2"].Decision.Outcome)
	assert.Equal(t, "targeted", decisions["item-2"].Decision.Reason)
	assert.True(t, decisions["item-2"].Targeted)

	report = decideJSON(t, "--start", fixture("list_start.yaml"), "--end", fixture("list_end.yaml"),
		"--engine", "cel", "--rule", `node.key.startsWith("item-")`)
	assert.Equal(t, "targeted", byNode(report)["item-2"].Decision.Reason)

	report = decideJSON(t, "--start", fixture("list_start.yaml"), "--end", fixture("list_end.yaml"),
		"--rule", `glob("item-*", id)`)
	assert.Equal(t, "targeted", byNode(report)["item-2"].Decision.Reason)
}

func TestDecideWithPatch(t *testing.T) {
	fromPatch := decideJSON(t, "--start", fixture("list_start.yaml"), "--patch", fixture("list_patch.yaml"))
	fromFile := decideJSON(t, "--start", fixture("list_start.yaml"), "--end", fixture("list_end.json"))

	patched := byNode(fromPatch)
	for node, decision := range byNode(fromFile) {
		assert.Equal(t, decision.Decision, patched[node].Decision, node)
	}
}

func TestDecideTableAndMetrics(t *testing.T) {
	out, err := run(t, "decide", "--start", fixture("list_start.yaml"), "--end", fixture("list_end.yaml"), "--metrics")
	require.NoError(t, err)
	assert.Contains(t, out, "ancestry_changing")
	assert.Contains(t, out, "7 candidates")
	assert.Contains(t, out, `visibility_decisions_total{outcome="appear",reason="stable_ancestry"} 3`)
}

func TestDecideErrors(t *testing.T) {
	_, err := run(t, "decide", "--start", fixture("list_start.yaml"))
	require.Error(t, err)

	_, err = run(t, "decide", "--start", fixture("list_start.yaml"), "--end", fixture("list_end.yaml"), "--patch", fixture("list_patch.yaml"))
	require.Error(t, err)

	_, err = run(t, "decide", "--start", fixture("list_start.yaml"), "--end", fixture("list_end.yaml"), "--format", "xml")
	require.ErrorContains(t, err, "unsupported format")

	_, err = run(t, "decide", "--start", fixture("list_start.yaml"), "--end", fixture("list_end.yaml"), "--engine", "lua", "--rule", "true")
	require.ErrorContains(t, err, "unknown rule engine")

	_, err = run(t, "decide", "--start", fixture("missing.yaml"), "--end", fixture("list_end.yaml"))
	require.Error(t, err)

	_, err = run(t, "--log-level", "loud", "decide", "--start", fixture("list_start.yaml"), "--end", fixture("list_end.yaml"))
	require.ErrorContains(t, err, "unknown level")
}

func TestTrace(t *testing.T) {
	out, err := run(t, "trace", "--start", fixture("list_start.yaml"), "--end", fixture("list_end.yaml"), "--node", "item-2", "--format", "json")
	require.NoError(t, err)

	var trace struct {
		Changing bool   `json:"changing"`
		Stop     string `json:"stop"`
		Levels   []struct {
			StartNode string `json:"start_node"`
		} `json:"levels"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &trace))
	assert.True(t, trace.Changing)
	assert.Equal(t, "mismatch", trace.Stop)
	require.Len(t, trace.Levels, 1)
	assert.Equal(t, "list", trace.Levels[0].StartNode)

	out, err = run(t, "trace", "--start", fixture("list_start.yaml"), "--end", fixture("list_end.yaml"), "--node", "promo")
	require.NoError(t, err)
	assert.Contains(t, out, "changing=false stop=root")

	_, err = run(t, "trace", "--start", fixture("list_start.yaml"), "--end", fixture("list_end.yaml"), "--node", "ghost")
	require.ErrorContains(t, err, "neither scene")
}

func TestClassify(t *testing.T) {
	out, err := run(t, "classify", "--start", fixture("list_start.yaml"), "--end", fixture("list_end.yaml"), "--node", "promo", "--format", "json")
	require.NoError(t, err)

	var report classifyReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Changed)
	assert.True(t, report.FadeIn)
	assert.False(t, report.StartVisible)
	assert.True(t, report.EndVisible)
	assert.Equal(t, "header", report.EndParent)

	out, err = run(t, "classify", "--start", fixture("list_start.yaml"), "--end", fixture("list_end.yaml"), "--node", "header")
	require.NoError(t, err)
	assert.Contains(t, out, "visibility")
	assert.Contains(t, out, "root")
}
