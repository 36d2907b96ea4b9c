// Package trace implements the SSA value-trace graph: one trace per version
// of a variable, anchoring a shape to a program point and counting how the
// value is used.
package trace

import (
	"errors"
	"fmt"

	"github.com/speakeasy-api/shapeflow/shapes"
)

// ErrInvariant is wrapped by every error reporting a malformed trace graph.
var ErrInvariant = errors.New("trace invariant violated")

// TraceID indexes the graph's arena.
type TraceID int32

// NoTrace marks an absent predecessor.
const NoTrace TraceID = -1

// Kind is the variant of a value trace.
type Kind int

const (
	KindUninitialized Kind = iota
	KindInit
	KindInitStarArgs
	KindInitStarDict
	KindAssign
	KindDeleted
	KindUnknown
	KindEscaped
	KindMerge
	KindLoopIncomplete
	KindLoopComplete
)

func (k Kind) String() string {
	switch k {
	case KindUninitialized:
		return "Uninitialized"
	case KindInit:
		return "Init"
	case KindInitStarArgs:
		return "InitStarArgs"
	case KindInitStarDict:
		return "InitStarDict"
	case KindAssign:
		return "Assign"
	case KindDeleted:
		return "Deleted"
	case KindUnknown:
		return "Unknown"
	case KindEscaped:
		return "Escaped"
	case KindMerge:
		return "Merge"
	case KindLoopIncomplete:
		return "LoopIncomplete"
	case KindLoopComplete:
		return "LoopComplete"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// IsLoop reports both loop variants.
func (k Kind) IsLoop() bool {
	return k == KindLoopIncomplete || k == KindLoopComplete
}

// Trust grades how far an assigned value may be relied upon.
type Trust int

const (
	// TrustPlain: the value may be changed behind our back once it escapes.
	TrustPlain Trust = iota
	// TrustUnescapable: the value cannot be mutated by foreign code.
	TrustUnescapable
	// TrustVeryTrusted: an immutable constant; safe to substitute.
	TrustVeryTrusted
	// TrustUnescapablePropagated: unescapable because its source was.
	TrustUnescapablePropagated
)

func (t Trust) String() string {
	switch t {
	case TrustPlain:
		return "plain"
	case TrustUnescapable:
		return "unescapable"
	case TrustVeryTrusted:
		return "very_trusted"
	case TrustUnescapablePropagated:
		return "unescapable_propagated"
	default:
		return fmt.Sprintf("Trust(%d)", int(t))
	}
}

// Presence is the tri-state answer to "does the variable hold a value".
type Presence int

const (
	PresenceMaybe Presence = iota
	PresenceAlways
	PresenceNever
)

func (p Presence) String() string {
	switch p {
	case PresenceAlways:
		return "always"
	case PresenceNever:
		return "never"
	default:
		return "maybe"
	}
}

// ValueNode is the expression an Assign trace takes its value from.
type ValueNode interface {
	// TypeShape is the node's currently resolved shape.
	TypeShape() shapes.Shape
	// MayRaise reports whether computing the value needs an exception check.
	MayRaise() bool
}

// ValueTrace is one version of one variable.
type ValueTrace struct {
	g        *Graph
	id       TraceID
	kind     Kind
	variable *Variable
	version  int
	previous []TraceID

	node  ValueNode    // Assign only
	trust Trust        // Assign only
	shape shapes.Shape // fixed shape of start traces
	seed  shapes.Shape // loop members carried over from an earlier pass
	memo  shapes.Shape // shape of a complete loop, cleared when edges are added

	usage          int
	nameUsage      int
	mergeUsage     int
	localNameUsage int // part of nameUsage that must not propagate
}

func (t *ValueTrace) ID() TraceID           { return t.id }
func (t *ValueTrace) Kind() Kind            { return t.kind }
func (t *ValueTrace) Variable() *Variable   { return t.variable }
func (t *ValueTrace) Version() int          { return t.version }
func (t *ValueTrace) Trust() Trust          { return t.trust }
func (t *ValueTrace) Usage() int            { return t.usage }
func (t *ValueTrace) NameUsage() int        { return t.nameUsage }
func (t *ValueTrace) MergeUsage() int       { return t.mergeUsage }
func (t *ValueTrace) AssignNode() ValueNode { return t.node }

// Previous returns the predecessor IDs.
func (t *ValueTrace) Previous() []TraceID {
	out := make([]TraceID, len(t.previous))
	copy(out, t.previous)
	return out
}

func (t *ValueTrace) String() string {
	return fmt.Sprintf("%s#%d(%s)", t.variable, t.version, t.kind)
}

// TypeShape returns the shape of the value at this version.
func (t *ValueTrace) TypeShape() shapes.Shape {
	s, _ := newShapeWalk(t.g).visit(t.id)
	if s == nil {
		return shapes.Unknown
	}
	return s
}

// MustHaveValue reports that the variable certainly holds a value.
func (t *ValueTrace) MustHaveValue() bool {
	return t.g.presence(t.id, make(map[TraceID]bool), true)
}

// MustNotHaveValue reports that the variable certainly holds no value.
func (t *ValueTrace) MustNotHaveValue() bool {
	return t.g.presence(t.id, make(map[TraceID]bool), false)
}

// Presence combines MustHaveValue and MustNotHaveValue.
func (t *ValueTrace) Presence() Presence {
	switch {
	case t.MustHaveValue():
		return PresenceAlways
	case t.MustNotHaveValue():
		return PresenceNever
	}
	return PresenceMaybe
}

// AttributeNode returns the node that provided the value, looking through
// escapes. Nothing about the node may be assumed beyond its shape.
func (t *ValueTrace) AttributeNode() ValueNode {
	switch t.kind {
	case KindAssign:
		return t.node
	case KindEscaped:
		return t.g.Trace(t.previous[0]).AttributeNode()
	}
	return nil
}

// AttributeNodeTrusted returns the node when foreign code cannot have
// changed the value.
func (t *ValueTrace) AttributeNodeTrusted() ValueNode {
	if t.kind == KindAssign && t.trust != TrustPlain {
		return t.node
	}
	return nil
}

// AttributeNodeVeryTrusted returns the node only when it can replace the
// variable outright.
func (t *ValueTrace) AttributeNodeVeryTrusted() ValueNode {
	if t.kind == KindAssign && t.trust == TrustVeryTrusted {
		return t.node
	}
	return nil
}
