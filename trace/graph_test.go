package trace

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/speakeasy-api/shapeflow"
	"github.com/speakeasy-api/shapeflow/escape"
	"github.com/speakeasy-api/shapeflow/shapes"
)

// shapeNode is a value node with a fixed shape.
type shapeNode struct {
	shape shapes.Shape
	raise bool
}

func (n *shapeNode) TypeShape() shapes.Shape { return n.shape }
func (n *shapeNode) MayRaise() bool          { return n.raise }

func node(s shapes.Shape) *shapeNode { return &shapeNode{shape: s} }

func mustID(t *testing.T) func(TraceID, error) TraceID {
	return func(id TraceID, err error) TraceID {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return id
	}
}

func TestVersionsAreSequential(t *testing.T) {
	g := NewGraph(nil)
	x := NewVariable("f", "x", false)
	start := g.NewUninitialized(x)
	a := mustID(t)(g.NewAssign(x, start, node(shapes.Int), TrustPlain))
	b := mustID(t)(g.NewAssign(x, a, node(shapes.Str), TrustPlain))

	var got []int
	for _, tr := range g.Versions(x) {
		got = append(got, tr.Version())
	}
	if diff := cmp.Diff([]int{0, 1, 2}, got); diff != "" {
		t.Errorf("versions mismatch (-want +got):\n%s", diff)
	}
	if tr, ok := g.Lookup(x, 2); !ok || tr.ID() != b {
		t.Errorf("Lookup(x, 2) = %v, %v", tr, ok)
	}
	if _, ok := g.Lookup(x, 3); ok {
		t.Error("Lookup past the last version should fail")
	}
	if got := g.Trace(b).String(); got != "f.x#2(Assign)" {
		t.Errorf("String() = %s", got)
	}
}

func TestPredecessorsMustBelongToVariable(t *testing.T) {
	g := NewGraph(nil)
	x := NewVariable("f", "x", false)
	y := NewVariable("f", "y", false)
	yStart := g.NewUninitialized(y)

	if _, err := g.NewAssign(x, yStart, node(shapes.Int), TrustPlain); !errors.Is(err, ErrInvariant) {
		t.Errorf("cross-variable predecessor: got %v", err)
	}
	if _, err := g.NewDeleted(x, TraceID(99)); !errors.Is(err, ErrInvariant) {
		t.Errorf("unknown predecessor: got %v", err)
	}
	if _, err := g.NewAssign(y, yStart, nil, TrustPlain); !errors.Is(err, ErrInvariant) {
		t.Errorf("nil node: got %v", err)
	}
	if _, err := g.NewInit(x, KindAssign); !errors.Is(err, ErrInvariant) {
		t.Errorf("non-parameter init kind: got %v", err)
	}
}

func TestMergeShapes(t *testing.T) {
	tests := []struct {
		name     string
		branches []shapes.Shape
		want     shapes.Shape
	}{
		{"agree", []shapes.Shape{shapes.Int, shapes.Int}, shapes.Int},
		{"disagree", []shapes.Shape{shapes.Int, shapes.Str}, shapes.Unknown},
		{"three_way", []shapes.Shape{shapes.List, shapes.List, shapes.Tuple}, shapes.Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph(nil)
			x := NewVariable("f", "x", false)
			start := g.NewUninitialized(x)
			var preds []TraceID
			for _, s := range tt.branches {
				preds = append(preds, mustID(t)(g.NewAssign(x, start, node(s), TrustPlain)))
			}
			m := mustID(t)(g.NewMerge(x, preds))
			if got := g.Trace(m).TypeShape(); got != tt.want {
				t.Errorf("merge shape = %s, want %s", got.Name(), tt.want.Name())
			}
		})
	}
}

func TestMergeFlattening(t *testing.T) {
	g := NewGraph(nil)
	x := NewVariable("f", "x", false)
	start := g.NewUninitialized(x)
	a := mustID(t)(g.NewAssign(x, start, node(shapes.Int), TrustPlain))
	b := mustID(t)(g.NewAssign(x, start, node(shapes.Int), TrustPlain))
	c := mustID(t)(g.NewAssign(x, start, node(shapes.Int), TrustPlain))

	inner := mustID(t)(g.NewMerge(x, []TraceID{a, b}))
	outer := mustID(t)(g.NewMerge(x, []TraceID{inner, c, a}))

	if diff := cmp.Diff([]TraceID{a, b, c}, g.Trace(outer).Previous()); diff != "" {
		t.Errorf("flattened predecessors mismatch (-want +got):\n%s", diff)
	}
	if _, err := g.NewMerge(x, []TraceID{a, a}); !errors.Is(err, ErrInvariant) {
		t.Errorf("merge of one distinct trace: got %v", err)
	}
	if _, err := g.NewMerge(x, nil); !errors.Is(err, ErrInvariant) {
		t.Errorf("empty merge: got %v", err)
	}
}

func TestPresence(t *testing.T) {
	g := NewGraph(nil)
	x := NewVariable("f", "x", false)
	start := g.NewUninitialized(x)
	assigned := mustID(t)(g.NewAssign(x, start, node(shapes.Int), TrustPlain))
	other := mustID(t)(g.NewAssign(x, start, node(shapes.Int), TrustPlain))
	param := mustID(t)(g.NewInit(x, KindInit))
	deleted := mustID(t)(g.NewDeleted(x, assigned))
	unknown := mustID(t)(g.NewUnknown(x, assigned))
	escaped := mustID(t)(g.NewEscaped(x, assigned))
	maybe := mustID(t)(g.NewMerge(x, []TraceID{assigned, start}))
	always := mustID(t)(g.NewMerge(x, []TraceID{assigned, other}))
	never := mustID(t)(g.NewMerge(x, []TraceID{start, deleted}))
	incomplete := mustID(t)(g.NewLoop(x, assigned))
	complete := mustID(t)(g.NewLoop(x, assigned))
	if _, err := g.AddLoopContinueTraces(complete, other); err != nil {
		t.Fatal(err)
	}
	if err := g.CompleteLoop(complete); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		id   TraceID
		want Presence
	}{
		{"uninitialized", start, PresenceNever},
		{"assign", assigned, PresenceAlways},
		{"parameter", param, PresenceAlways},
		{"deleted", deleted, PresenceNever},
		{"unknown", unknown, PresenceMaybe},
		{"escaped", escaped, PresenceAlways},
		{"merge_maybe", maybe, PresenceMaybe},
		{"merge_always", always, PresenceAlways},
		{"merge_never", never, PresenceNever},
		{"loop_incomplete", incomplete, PresenceMaybe},
		{"loop_complete", complete, PresenceAlways},
	}
	for _, tt := range tests {
		if got := g.Trace(tt.id).Presence(); got != tt.want {
			t.Errorf("%s: presence = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestStarParameterShapes(t *testing.T) {
	g := NewGraph(nil)
	args := mustID(t)(g.NewInit(NewVariable("f", "args", false), KindInitStarArgs))
	kwargs := mustID(t)(g.NewInit(NewVariable("f", "kwargs", false), KindInitStarDict))
	plain := mustID(t)(g.NewInit(NewVariable("f", "p", false), KindInit))

	if got := g.Trace(args).TypeShape(); got != shapes.Tuple {
		t.Errorf("*args shape = %s", got.Name())
	}
	if got := g.Trace(kwargs).TypeShape(); got != shapes.Dict {
		t.Errorf("**kwargs shape = %s", got.Name())
	}
	if got := g.Trace(plain).TypeShape(); got != shapes.Unknown {
		t.Errorf("parameter shape = %s", got.Name())
	}
}

func TestLoopAlternatives(t *testing.T) {
	g := NewGraph(nil)
	x := NewVariable("f", "x", false)
	start := g.NewUninitialized(x)
	entry := mustID(t)(g.NewAssign(x, start, node(shapes.Int), TrustPlain))
	loop := mustID(t)(g.NewLoop(x, entry))

	if got := g.Trace(loop).TypeShape().Name(); got != "Initial(int)" {
		t.Fatalf("entry-only loop shape = %s", got)
	}

	edge := mustID(t)(g.NewAssign(x, loop, node(shapes.Str), TrustPlain))
	added, err := g.AddLoopContinueTraces(loop, edge)
	if err != nil || !added {
		t.Fatalf("AddLoopContinueTraces = %v, %v", added, err)
	}
	s := g.Trace(loop).TypeShape()
	if s.Name() != "Initial(int|str)" {
		t.Fatalf("loop shape = %s", s.Name())
	}
	if r, _ := s.OperationShape(shapeflow.OpAdd, shapes.Int); r != shapes.Unknown {
		t.Errorf("Initial(int|str) + int = %s, want unknown", r.Name())
	}

	if added, _ := g.AddLoopContinueTraces(loop, edge); added {
		t.Error("re-adding a known edge reported a change")
	}

	if err := g.CompleteLoop(loop); err != nil {
		t.Fatal(err)
	}
	if got := g.Trace(loop).TypeShape().Name(); got != "Complete(int|str)" {
		t.Errorf("completed shape = %s", got)
	}
	if _, err := g.AddLoopContinueTraces(loop, edge); !errors.Is(err, ErrInvariant) {
		t.Errorf("edge after completion: got %v", err)
	}
	if err := g.CompleteLoop(loop); !errors.Is(err, ErrInvariant) {
		t.Errorf("double completion: got %v", err)
	}
	if _, err := g.AddLoopContinueTraces(entry, edge); !errors.Is(err, ErrInvariant) {
		t.Errorf("non-loop header: got %v", err)
	}
}

func TestContinueEdgeWidensLoopHeader(t *testing.T) {
	g := NewGraph(nil)
	x := NewVariable("f", "x", false)
	start := g.NewUninitialized(x)
	entry := mustID(t)(g.NewAssign(x, start, node(shapes.Int), TrustPlain))
	loop := mustID(t)(g.NewLoop(x, entry))
	edge := mustID(t)(g.NewAssign(x, loop, node(shapes.Str), TrustPlain))
	if _, err := g.AddLoopContinueTraces(loop, edge); err != nil {
		t.Fatal(err)
	}

	header := g.Trace(loop).TypeShape()
	if header != shapes.NewInitial(shapes.Int, shapes.Str) {
		t.Fatalf("header shape = %s, want Initial(int|str)", header.Name())
	}

	// str + int has no result, so the whole operation is unknown.
	if r, e := header.OperationShape(shapeflow.OpAdd, shapes.Int); r != shapes.Unknown || e != escape.FullEscape {
		t.Errorf("Initial(int|str) + int = (%s, %s), want (unknown, FullEscape)", r.Name(), e)
	}
	// Known but different member results stay apart while the loop is open.
	r, e := header.OperationShape(shapeflow.OpMult, shapes.Int)
	if alt, ok := r.(*shapes.Alternative); !ok || alt.IsComplete() || len(alt.Members()) != 2 {
		t.Errorf("Initial(int|str) * int = %s, want an Initial over both results", r.Name())
	}
	if e != escape.FullEscape {
		t.Errorf("escape = %s, want FullEscape", e)
	}
}

func TestLoopShapeIsMonotonic(t *testing.T) {
	g := NewGraph(nil)
	x := NewVariable("f", "x", false)
	start := g.NewUninitialized(x)
	entry := mustID(t)(g.NewAssign(x, start, node(shapes.Int), TrustPlain))
	loop := mustID(t)(g.NewLoop(x, entry))

	prev := g.Trace(loop).TypeShape()
	for _, s := range []shapes.Shape{shapes.Int, shapes.Float, shapes.Long, shapes.Unknown, shapes.Str} {
		edge := mustID(t)(g.NewAssign(x, loop, node(s), TrustPlain))
		if _, err := g.AddLoopContinueTraces(loop, edge); err != nil {
			t.Fatal(err)
		}
		next := g.Trace(loop).TypeShape()
		if !shapes.IsAtLeastAsGeneral(next, prev) {
			t.Errorf("adding %s narrowed %s to %s", s.Name(), prev.Name(), next.Name())
		}
		prev = next
	}
	if prev != shapes.Unknown {
		t.Errorf("final shape = %s, want unknown", prev.Name())
	}
}

func TestLoopBackEdgeThroughMerge(t *testing.T) {
	g := NewGraph(nil)
	x := NewVariable("f", "x", false)
	start := g.NewUninitialized(x)
	entry := mustID(t)(g.NewAssign(x, start, node(shapes.Int), TrustPlain))
	loop := mustID(t)(g.NewLoop(x, entry))
	body := mustID(t)(g.NewAssign(x, loop, node(shapes.Float), TrustPlain))
	join := mustID(t)(g.NewMerge(x, []TraceID{loop, body}))

	if _, err := g.AddLoopContinueTraces(loop, join); err != nil {
		t.Fatal(err)
	}
	if got := g.Trace(loop).TypeShape().Name(); got != "Initial(int|float)" {
		t.Errorf("loop shape = %s", got)
	}
	// The join mixes the header alternative with a concrete float.
	if got := g.Trace(join).TypeShape(); got != shapes.Unknown {
		t.Errorf("join shape = %s", got.Name())
	}
}

func TestAttachBackEdges(t *testing.T) {
	seed := shapes.NewComplete(shapes.Int, shapes.Float)
	tests := []struct {
		name string
		edge shapes.Shape
		want bool
	}{
		{"inside_seed", shapes.Float, true},
		{"outside_seed", shapes.Str, false},
		{"unknown_edge", shapes.Unknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph(nil)
			x := NewVariable("f", "x", false)
			start := g.NewUninitialized(x)
			entry := mustID(t)(g.NewAssign(x, start, node(shapes.Int), TrustPlain))
			loop := mustID(t)(g.NewLoopComplete(x, entry, seed))
			if got := g.Trace(loop).TypeShape(); got != seed {
				t.Fatalf("seeded shape = %s", got.Name())
			}
			edge := mustID(t)(g.NewAssign(x, loop, node(tt.edge), TrustPlain))
			covered, err := g.AttachBackEdges(loop, edge)
			if err != nil {
				t.Fatal(err)
			}
			if covered != tt.want {
				t.Errorf("covered = %v, want %v", covered, tt.want)
			}
			if got := g.Trace(edge).MergeUsage(); got != 1 {
				t.Errorf("edge merge usage = %d", got)
			}
		})
	}
}

func TestAttributeNodeAccessors(t *testing.T) {
	g := NewGraph(nil)
	x := NewVariable("f", "x", false)
	start := g.NewUninitialized(x)
	n := node(shapes.Int)

	plain := mustID(t)(g.NewAssign(x, start, n, TrustPlain))
	unescapable := mustID(t)(g.NewAssign(x, start, n, TrustUnescapable))
	propagated := mustID(t)(g.NewAssign(x, start, n, TrustUnescapablePropagated))
	very := mustID(t)(g.NewAssign(x, start, n, TrustVeryTrusted))
	escaped := mustID(t)(g.NewEscaped(x, very))

	tests := []struct {
		name                       string
		id                         TraceID
		attr, trusted, veryTrusted bool
	}{
		{"plain", plain, true, false, false},
		{"unescapable", unescapable, true, true, false},
		{"propagated", propagated, true, true, false},
		{"very_trusted", very, true, true, true},
		{"escaped", escaped, true, false, false},
		{"uninitialized", start, false, false, false},
	}
	for _, tt := range tests {
		tr := g.Trace(tt.id)
		if got := tr.AttributeNode() != nil; got != tt.attr {
			t.Errorf("%s: AttributeNode present = %v", tt.name, got)
		}
		if got := tr.AttributeNodeTrusted() != nil; got != tt.trusted {
			t.Errorf("%s: AttributeNodeTrusted present = %v", tt.name, got)
		}
		if got := tr.AttributeNodeVeryTrusted() != nil; got != tt.veryTrusted {
			t.Errorf("%s: AttributeNodeVeryTrusted present = %v", tt.name, got)
		}
	}
	if got := g.Trace(escaped).TypeShape(); got != shapes.Int {
		t.Errorf("escaped shape = %s, want the wrapped int", got.Name())
	}
}
