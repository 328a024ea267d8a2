package activity

import (
	"strings"
	"time"
)

// Verbs emitted for visibility decisions.
const (
	VerbAppear     = "visibility.appear"
	VerbDisappear  = "visibility.disappear"
	VerbSuppressed = "visibility.suppressed"
)

// ObjectTypeNode is the object type of every decision event.
const ObjectTypeNode = "node"

// DecisionEventInput describes one decision about one node.
type DecisionEventInput struct {
	ActorID         string
	UserID          string
	TenantID        string
	NodeID          string
	Channel         string
	StartVisibility string
	EndVisibility   string
	Reason          string
	BatchID         string
	SceneRoot       string
	Metadata        map[string]any
	OccurredAt      time.Time
}

// BuildAppearEvent constructs the event for a node that appears.
func BuildAppearEvent(input DecisionEventInput) Event {
	return buildDecisionEvent(VerbAppear, input)
}

// BuildDisappearEvent constructs the event for a node that disappears.
func BuildDisappearEvent(input DecisionEventInput) Event {
	return buildDecisionEvent(VerbDisappear, input)
}

// BuildSuppressedEvent constructs the event for a node whose own change was
// absorbed by an ancestor or dropped for being detached.
func BuildSuppressedEvent(input DecisionEventInput) Event {
	return buildDecisionEvent(VerbSuppressed, input)
}

func buildDecisionEvent(verb string, input DecisionEventInput) Event {
	metadata := cloneMap(input.Metadata)
	set := func(key, value string) {
		if value == "" {
			return
		}
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[key] = value
	}
	set("start_visibility", input.StartVisibility)
	set("end_visibility", input.EndVisibility)
	set("reason", input.Reason)
	set("batch_id", input.BatchID)
	set("scene_root", input.SceneRoot)

	objectID := strings.TrimSpace(input.NodeID)
	if objectID == "" {
		objectID = ObjectTypeNode
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectTypeNode,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}
