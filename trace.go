package visibility

import (
	"encoding/json"
)

// StopReason explains where an ancestry walk ended.
type StopReason string

const (
	StopRoot       StopReason = "root"
	StopUnparented StopReason = "unparented"
	StopMissing    StopReason = "missing"
	StopMismatch   StopReason = "mismatch"
	StopDepth      StopReason = "depth"
	StopCycle      StopReason = "cycle"
)

// AncestryTrace captures every container pair visited while testing whether
// a node's ancestry changed between scenes.
type AncestryTrace[N comparable] struct {
	Levels   []AncestryLevel[N] `json:"levels"`
	Changing bool               `json:"changing"`
	Stop     StopReason         `json:"stop"`
}

// AncestryLevel details one step of the walk. Facts are nil when the
// container could not be captured in that scene.
type AncestryLevel[N comparable] struct {
	Depth      int       `json:"depth"`
	StartNode  N         `json:"start_node"`
	EndNode    N         `json:"end_node"`
	StartFacts *Facts[N] `json:"start_facts,omitempty"`
	EndFacts   *Facts[N] `json:"end_facts,omitempty"`
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t AncestryTrace[N]) ToJSON() ([]byte, error) {
	return json.Marshal(t)
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON[N comparable](payload []byte) (AncestryTrace[N], error) {
	var trace AncestryTrace[N]
	if err := json.Unmarshal(payload, &trace); err != nil {
		return AncestryTrace[N]{}, err
	}
	return trace, nil
}
