// Package visibility decides which nodes of a tree should run an appear or
// disappear transition when the tree moves from a start scene to an end scene.
// A node's own visibility change is suppressed when one of its containers is
// itself changing, so only the outermost changing subtree animates.
package visibility

import (
	"fmt"
	"strconv"
	"strings"
)

// Code is the visibility state captured for a node. The numeric values match
// the codes used by view toolkits so captured integers can be passed through.
type Code int

const (
	// Unknown marks a node with no captured value in a scene.
	Unknown Code = -1
	// Visible nodes are drawn and take part in layout.
	Visible Code = 0
	// Invisible nodes take part in layout but are not drawn.
	Invisible Code = 4
	// Gone nodes are neither drawn nor laid out.
	Gone Code = 8
)

func (c Code) String() string {
	switch c {
	case Visible:
		return "visible"
	case Invisible:
		return "invisible"
	case Gone:
		return "gone"
	case Unknown:
		return "unknown"
	default:
		return "code(" + strconv.Itoa(int(c)) + ")"
	}
}

// ParseCode converts a name or numeric string into a Code.
func ParseCode(value string) (Code, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "visible":
		return Visible, nil
	case "invisible":
		return Invisible, nil
	case "gone":
		return Gone, nil
	case "unknown", "":
		return Unknown, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return Unknown, fmt.Errorf("visibility: unrecognised code %q", value)
	}
	return Code(n), nil
}

// MarshalText implements encoding.TextMarshaler.
func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Code) UnmarshalText(text []byte) error {
	parsed, err := ParseCode(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Scene names one of the two snapshots being compared.
type Scene int

const (
	StartScene Scene = iota
	EndScene
)

func (s Scene) String() string {
	if s == EndScene {
		return "end"
	}
	return "start"
}

// Facts holds what was captured for one node in one scene. The zero value of
// N stands for "no parent".
type Facts[N comparable] struct {
	Visibility Code `json:"visibility"`
	Parent     N    `json:"parent"`
}

// HasParent reports whether the node was attached to a container.
func (f Facts[N]) HasParent() bool {
	var zero N
	return f.Parent != zero
}

// Capturer resolves the facts of a node as of a scene. ok is false when the
// node does not exist in that scene.
type Capturer[N comparable] interface {
	Capture(node N, scene Scene) (facts Facts[N], ok bool)
}

// CapturerFunc adapts a function to Capturer.
type CapturerFunc[N comparable] func(node N, scene Scene) (Facts[N], bool)

// Capture implements Capturer.
func (f CapturerFunc[N]) Capture(node N, scene Scene) (Facts[N], bool) {
	if f == nil {
		return Facts[N]{}, false
	}
	return f(node, scene)
}

// Info is the classification of one node's own change between two scenes.
type Info[N comparable] struct {
	Changed         bool
	FadeIn          bool
	StartVisibility Code
	EndVisibility   Code
	StartParent     N
	EndParent       N
}

// Outcome is the verdict for a node.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeAppear
	OutcomeDisappear
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAppear:
		return "appear"
	case OutcomeDisappear:
		return "disappear"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Reason records which rule produced a Decision.
type Reason string

const (
	ReasonUnchanged        Reason = "unchanged"
	ReasonAncestryChanging Reason = "ancestry_changing"
	ReasonDetached         Reason = "detached"
	ReasonTargeted         Reason = "targeted"
	ReasonStableAncestry   Reason = "stable_ancestry"
	ReasonUnparented       Reason = "unparented"
)

// Decision is the result of evaluating one node.
type Decision struct {
	Outcome         Outcome `json:"outcome"`
	StartVisibility Code    `json:"start_visibility"`
	EndVisibility   Code    `json:"end_visibility"`
	Reason          Reason  `json:"reason"`
}

// Fires reports whether the decision asks for an appear or disappear effect.
func (d Decision) Fires() bool {
	return d.Outcome != OutcomeNone
}

// Candidate names a node of interest in both scenes. StartNode or EndNode is
// the zero value when the node is missing from that scene. The ids are the
// stable identifiers used for target matching.
type Candidate[N comparable] struct {
	StartNode N
	EndNode   N
	StartID   string
	EndID     string
}

// Label returns a printable identifier for logs and activity events.
func (c Candidate[N]) Label() string {
	if c.EndID != "" {
		return c.EndID
	}
	if c.StartID != "" {
		return c.StartID
	}
	var zero N
	if c.EndNode != zero {
		return fmt.Sprint(c.EndNode)
	}
	if c.StartNode != zero {
		return fmt.Sprint(c.StartNode)
	}
	return "unknown"
}
