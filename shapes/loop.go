package shapes

import (
	"sort"
	"strings"

	"github.com/speakeasy-api/shapeflow"
	"github.com/speakeasy-api/shapeflow/escape"
)

// Alternative is the shape of a loop-header value: the set of shapes seen
// on the entry and back edges.
//
// An Initial alternative belongs to a loop that is still being analysed; its
// operations always report FullEscape and it never narrows. A Complete
// alternative is built once every back edge is known.
type Alternative struct {
	complete bool
	members  []*TypeShape // sorted by ID, no duplicates, never Unknown
	key      string
}

func (a *Alternative) isShape() {}

// IsComplete reports the Complete variant.
func (a *Alternative) IsComplete() bool { return a.complete }

// Members returns the member shapes in ID order.
func (a *Alternative) Members() []*TypeShape {
	out := make([]*TypeShape, len(a.members))
	copy(out, a.members)
	return out
}

func (a *Alternative) Name() string {
	names := make([]string, len(a.members))
	for i, m := range a.members {
		names[i] = m.name
	}
	if a.complete {
		return "Complete(" + strings.Join(names, "|") + ")"
	}
	return "Initial(" + strings.Join(names, "|") + ")"
}

func (a *Alternative) String() string { return a.Name() }

// Capabilities answers Yes or No only when every member agrees.
func (a *Alternative) Capabilities() Capabilities {
	out := a.members[0].caps
	for _, m := range a.members[1:] {
		c := m.caps
		out.HasLen = agree(out.HasLen, c.HasLen)
		out.HasIter = agree(out.HasIter, c.HasIter)
		out.HasHash = agree(out.HasHash, c.HasHash)
		out.HasContains = agree(out.HasContains, c.HasContains)
		out.IsNumeric = agree(out.IsNumeric, c.IsNumeric)
		out.IsSequence = agree(out.IsSequence, c.IsSequence)
		out.IsMutable = agree(out.IsMutable, c.IsMutable)
	}
	return out
}

func agree(a, b Tristate) Tristate {
	if a == b {
		return a
	}
	return Maybe
}

func (a *Alternative) OperationShape(op shapeflow.Operator, right Shape) (Shape, *escape.Descriptor) {
	if op.IsUnary() {
		reportDefect(Defect{Op: op, Left: a.Name(), Right: nameOf(right), Reason: "unary operator used as binary"})
		return Unknown, escape.FullEscape
	}
	return a.collect(func(member *TypeShape) (Shape, *escape.Descriptor) {
		return member.OperationShape(op, right)
	})
}

func (a *Alternative) UnaryShape(op shapeflow.Operator) (Shape, *escape.Descriptor) {
	return a.collect(func(member *TypeShape) (Shape, *escape.Descriptor) {
		return member.UnaryShape(op)
	})
}

// collect distributes operation over the members. Any unknown member
// result makes the whole result unknown.
func (a *Alternative) collect(operation func(*TypeShape) (Shape, *escape.Descriptor)) (Shape, *escape.Descriptor) {
	var (
		results []*TypeShape
		esc     *escape.Descriptor
		initial = !a.complete
	)
	for _, m := range a.members {
		s, e := operation(m)
		if s == Unknown {
			return Unknown, escape.FullEscape
		}
		switch r := s.(type) {
		case *TypeShape:
			results = append(results, r)
		case *Alternative:
			results = append(results, r.members...)
			initial = initial || !r.complete
		}
		if esc == nil {
			esc = e
		} else {
			esc = escape.Join(esc, e)
		}
	}

	if initial {
		esc = escape.FullEscape
	}
	members := normalize(results)
	if len(members) == 1 {
		return members[0], esc
	}
	return intern(!initial, members), esc
}

// normalize sorts and deduplicates shapes by ID.
func normalize(shapes []*TypeShape) []*TypeShape {
	seen := make(map[ID]bool, len(shapes))
	out := make([]*TypeShape, 0, len(shapes))
	for _, s := range shapes {
		if !seen[s.id] {
			seen[s.id] = true
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// flatten expands alternatives into their members. It reports false if any
// input is Unknown.
func flatten(in []Shape) ([]*TypeShape, bool) {
	out := make([]*TypeShape, 0, len(in))
	for _, s := range in {
		switch v := s.(type) {
		case *TypeShape:
			if v == Unknown {
				return nil, false
			}
			out = append(out, v)
		case *Alternative:
			out = append(out, v.members...)
		default:
			return nil, false
		}
	}
	return normalize(out), true
}

// NewInitial returns the Initial alternative over the given shapes, even for
// a single member. Unknown anywhere gives Unknown.
func NewInitial(shapes ...Shape) Shape {
	members, ok := flatten(shapes)
	if !ok || len(members) == 0 {
		return Unknown
	}
	return intern(false, members)
}

// NewComplete returns the Complete alternative over the given shapes. A
// single member collapses to that concrete shape.
func NewComplete(shapes ...Shape) Shape {
	members, ok := flatten(shapes)
	if !ok || len(members) == 0 {
		return Unknown
	}
	if len(members) == 1 {
		return members[0]
	}
	return intern(true, members)
}

// Members returns the concrete shapes s stands for; Unknown has none.
func Members(s Shape) []*TypeShape {
	switch v := s.(type) {
	case *TypeShape:
		if v == Unknown {
			return nil
		}
		return []*TypeShape{v}
	case *Alternative:
		return v.Members()
	}
	return nil
}

// IsAtLeastAsGeneral reports whether newer claims no more than older: it is
// Unknown, or it covers every shape older covers.
func IsAtLeastAsGeneral(newer, older Shape) bool {
	if newer == Unknown {
		return true
	}
	if older == Unknown {
		return false
	}
	have := make(map[ID]bool)
	for _, m := range Members(newer) {
		have[m.id] = true
	}
	for _, m := range Members(older) {
		if !have[m.id] {
			return false
		}
	}
	return true
}
