package trace

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/speakeasy-api/shapeflow/shapes"
)

type counters struct{ Usage, Name, Merge int }

func countersOf(g *Graph) map[string]counters {
	out := make(map[string]counters, g.Len())
	for _, t := range g.Traces() {
		out[t.String()] = counters{t.Usage(), t.NameUsage(), t.MergeUsage()}
	}
	return out
}

func TestUsageCutoff(t *testing.T) {
	g := NewGraph(nil)
	x := NewVariable("f", "x", false)
	start := g.NewUninitialized(x)
	a := mustID(t)(g.NewAssign(x, start, node(shapes.Int), TrustPlain))
	b := mustID(t)(g.NewAssign(x, start, node(shapes.Int), TrustPlain))
	m := mustID(t)(g.NewMerge(x, []TraceID{a, b}))

	for i := 0; i < 5; i++ {
		g.AddUsage(m)
	}
	if got := g.Trace(m).Usage(); got != 5 {
		t.Errorf("merge usage = %d, want 5", got)
	}
	for _, id := range []TraceID{a, b} {
		tr := g.Trace(id)
		if tr.MergeUsage() != 2 || tr.Usage() != 2 {
			t.Errorf("%s: usage=%d merge=%d, want 2 and 2", tr, tr.Usage(), tr.MergeUsage())
		}
	}
	if got := g.Trace(start).Usage(); got != 0 {
		t.Errorf("merge usage leaked past the assignments: %d", got)
	}
}

func TestUsagePropagationByKind(t *testing.T) {
	g := NewGraph(nil)
	x := NewVariable("f", "x", false)
	start := g.NewUninitialized(x)
	a := mustID(t)(g.NewAssign(x, start, node(shapes.Int), TrustPlain))
	esc := mustID(t)(g.NewEscaped(x, a))
	unk := mustID(t)(g.NewUnknown(x, esc))

	// A read of the unknown trace needs the name of whatever came before;
	// the escape passes that on exactly one level.
	g.AddUsage(unk)

	want := map[string]counters{
		"f.x#0(Uninitialized)": {},
		"f.x#1(Assign)":        {Usage: 1, Name: 1},
		"f.x#2(Escaped)":       {Usage: 1, Name: 1},
		"f.x#3(Unknown)":       {Usage: 1},
	}
	if diff := cmp.Diff(want, countersOf(g)); diff != "" {
		t.Errorf("counters mismatch (-want +got):\n%s", diff)
	}

	g.AddNameUsage(a)
	if got := g.Trace(start).NameUsage(); got != 1 {
		t.Errorf("name usage of an assignment reaches its predecessor: got %d", got)
	}
}

func TestUsageSymmetry(t *testing.T) {
	g := NewGraph(nil)
	x := NewVariable("f", "x", false)
	start := g.NewUninitialized(x)
	a := mustID(t)(g.NewAssign(x, start, node(shapes.Int), TrustPlain))
	b := mustID(t)(g.NewAssign(x, start, node(shapes.Str), TrustPlain))
	esc := mustID(t)(g.NewEscaped(x, a))
	m := mustID(t)(g.NewMerge(x, []TraceID{esc, b}))
	unk := mustID(t)(g.NewUnknown(x, m))
	del := mustID(t)(g.NewDeleted(x, unk))
	m2 := mustID(t)(g.NewMerge(x, []TraceID{del, m, start}))
	ids := []TraceID{start, a, b, esc, m, unk, del, m2}

	adders := []func(TraceID){g.AddUsage, g.AddNameUsage, g.AddMergeUsage}
	removers := []func(TraceID){g.RemoveUsage, g.RemoveNameUsage, g.RemoveMergeUsage}

	type op struct {
		kind int
		id   TraceID
	}
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		var ops []op
		for i := 0; i < 12; i++ {
			o := op{kind: rng.Intn(3), id: ids[rng.Intn(len(ids))]}
			adders[o.kind](o.id)
			ops = append(ops, o)
		}
		rng.Shuffle(len(ops), func(i, j int) { ops[i], ops[j] = ops[j], ops[i] })
		for _, o := range ops {
			removers[o.kind](o.id)
		}
		for _, tr := range g.Traces() {
			if tr.Usage() != 0 || tr.NameUsage() != 0 || tr.MergeUsage() != 0 {
				t.Fatalf("round %d: %s left with usage=%d name=%d merge=%d",
					round, tr, tr.Usage(), tr.NameUsage(), tr.MergeUsage())
			}
		}
	}
}

func TestUsageUnderflowPanics(t *testing.T) {
	g := NewGraph(nil)
	x := NewVariable("f", "x", false)
	start := g.NewUninitialized(x)

	defer func() {
		if recover() == nil {
			t.Error("expected a panic on underflow")
		}
	}()
	g.AddNameUsage(start)
	g.RemoveMergeUsage(start)
}

func TestLoopEdgesReplayUsage(t *testing.T) {
	g := NewGraph(nil)
	x := NewVariable("f", "x", false)
	start := g.NewUninitialized(x)
	entry := mustID(t)(g.NewAssign(x, start, node(shapes.Int), TrustPlain))
	loop := mustID(t)(g.NewLoop(x, entry))

	for i := 0; i < 3; i++ {
		g.AddUsage(loop)
	}
	edge := mustID(t)(g.NewAssign(x, loop, node(shapes.Int), TrustPlain))
	if _, err := g.AddLoopContinueTraces(loop, edge); err != nil {
		t.Fatal(err)
	}
	// two replayed from the loop's reads, one for the edge itself
	if got := g.Trace(edge).MergeUsage(); got != 3 {
		t.Errorf("edge merge usage = %d, want 3", got)
	}

	for i := 0; i < 3; i++ {
		g.RemoveUsage(loop)
	}
	if got := g.Trace(entry).MergeUsage(); got != 0 {
		t.Errorf("entry merge usage = %d after removal", got)
	}
	if got := g.Trace(edge).MergeUsage(); got != 1 {
		t.Errorf("edge merge usage = %d after removal, want 1", got)
	}
}
