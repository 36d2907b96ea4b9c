package trace

import (
	"fmt"
	"math"

	"github.com/speakeasy-api/shapeflow"
	"github.com/speakeasy-api/shapeflow/shapes"
)

// Graph is the arena owning every trace of one analysis pass. Predecessors
// are arena indices, so loop back edges need no owning cycles.
type Graph struct {
	traces     []*ValueTrace
	byVariable map[*Variable][]TraceID // version -> trace
	log        shapeflow.Logger
}

// NewGraph creates an empty arena. A nil logger discards output.
func NewGraph(logger shapeflow.Logger) *Graph {
	if logger == nil {
		logger = shapeflow.NewNoopLogger()
	}
	return &Graph{
		traces:     make([]*ValueTrace, 0, 64),
		byVariable: make(map[*Variable][]TraceID),
		log:        logger,
	}
}

// Trace returns the trace for id, or nil if id is not in the arena.
func (g *Graph) Trace(id TraceID) *ValueTrace {
	if id < 0 || int(id) >= len(g.traces) {
		return nil
	}
	return g.traces[id]
}

// Len returns the number of traces.
func (g *Graph) Len() int { return len(g.traces) }

// Traces returns every trace in creation order.
func (g *Graph) Traces() []*ValueTrace {
	out := make([]*ValueTrace, len(g.traces))
	copy(out, g.traces)
	return out
}

// Lookup finds the trace of one version of v.
func (g *Graph) Lookup(v *Variable, version int) (*ValueTrace, bool) {
	ids := g.byVariable[v]
	if version < 0 || version >= len(ids) {
		return nil, false
	}
	return g.traces[ids[version]], true
}

// Versions returns the traces of v ordered by version.
func (g *Graph) Versions(v *Variable) []*ValueTrace {
	ids := g.byVariable[v]
	out := make([]*ValueTrace, len(ids))
	for i, id := range ids {
		out[i] = g.traces[id]
	}
	return out
}

// add assigns the arena slot and the next version of the trace's variable.
func (g *Graph) add(t *ValueTrace) TraceID {
	t.g = g
	t.id = TraceID(len(g.traces))
	t.version = len(g.byVariable[t.variable])
	g.traces = append(g.traces, t)
	g.byVariable[t.variable] = append(g.byVariable[t.variable], t.id)
	g.log.Debugf("trace %s prev=%v", t, t.previous)
	return t.id
}

// check verifies that every id exists and belongs to v.
func (g *Graph) check(v *Variable, ids ...TraceID) error {
	for _, id := range ids {
		t := g.Trace(id)
		if t == nil {
			return fmt.Errorf("%w: unknown trace %d", ErrInvariant, id)
		}
		if t.variable != v {
			return fmt.Errorf("%w: trace %s used as a version of %s", ErrInvariant, t, v)
		}
	}
	return nil
}

// NewUninitialized starts v with no value.
func (g *Graph) NewUninitialized(v *Variable) TraceID {
	return g.add(&ValueTrace{kind: KindUninitialized, variable: v, shape: shapes.Unknown})
}

// NewInit starts v as a parameter. kind selects a plain, *args or **kwargs
// parameter.
func (g *Graph) NewInit(v *Variable, kind Kind) (TraceID, error) {
	var s shapes.Shape
	switch kind {
	case KindInit:
		s = shapes.Unknown
	case KindInitStarArgs:
		s = shapes.Tuple
	case KindInitStarDict:
		s = shapes.Dict
	default:
		return NoTrace, fmt.Errorf("%w: %s is not a parameter trace", ErrInvariant, kind)
	}
	return g.add(&ValueTrace{kind: kind, variable: v, shape: s}), nil
}

// NewAssign records an assignment of node's value.
func (g *Graph) NewAssign(v *Variable, prev TraceID, node ValueNode, trust Trust) (TraceID, error) {
	if node == nil {
		return NoTrace, fmt.Errorf("%w: assignment to %s without a value node", ErrInvariant, v)
	}
	if err := g.check(v, prev); err != nil {
		return NoTrace, err
	}
	return g.add(&ValueTrace{kind: KindAssign, variable: v, previous: []TraceID{prev}, node: node, trust: trust}), nil
}

// NewDeleted records a del statement.
func (g *Graph) NewDeleted(v *Variable, prev TraceID) (TraceID, error) {
	if err := g.check(v, prev); err != nil {
		return NoTrace, err
	}
	return g.add(&ValueTrace{kind: KindDeleted, variable: v, previous: []TraceID{prev}, shape: shapes.Unknown}), nil
}

// NewUnknown records that v may have been rebound by foreign code. prev
// may be NoTrace.
func (g *Graph) NewUnknown(v *Variable, prev TraceID) (TraceID, error) {
	t := &ValueTrace{kind: KindUnknown, variable: v, shape: shapes.Unknown}
	if prev != NoTrace {
		if err := g.check(v, prev); err != nil {
			return NoTrace, err
		}
		t.previous = []TraceID{prev}
	}
	return g.add(t), nil
}

// NewEscaped records that the value of prev was handed to foreign code.
func (g *Graph) NewEscaped(v *Variable, prev TraceID) (TraceID, error) {
	if err := g.check(v, prev); err != nil {
		return NoTrace, err
	}
	return g.add(&ValueTrace{kind: KindEscaped, variable: v, previous: []TraceID{prev}}), nil
}

// NewMerge joins the traces reaching a control-flow join. Merge predecessors
// are flattened into this merge and duplicates dropped; fewer than two
// distinct predecessors is an error.
func (g *Graph) NewMerge(v *Variable, preds []TraceID) (TraceID, error) {
	if err := g.check(v, preds...); err != nil {
		return NoTrace, err
	}
	seen := make(map[TraceID]bool, len(preds))
	flat := make([]TraceID, 0, len(preds))
	for _, p := range preds {
		inner := []TraceID{p}
		if t := g.traces[p]; t.kind == KindMerge {
			inner = t.previous
		}
		for _, q := range inner {
			if !seen[q] {
				seen[q] = true
				flat = append(flat, q)
			}
		}
	}
	if len(flat) < 2 {
		return NoTrace, fmt.Errorf("%w: merge of %s needs two distinct predecessors, got %d", ErrInvariant, v, len(flat))
	}
	return g.add(&ValueTrace{kind: KindMerge, variable: v, previous: flat}), nil
}

// NewLoop creates the incomplete loop-header trace of v entered from entry.
func (g *Graph) NewLoop(v *Variable, entry TraceID) (TraceID, error) {
	if err := g.check(v, entry); err != nil {
		return NoTrace, err
	}
	return g.add(&ValueTrace{kind: KindLoopIncomplete, variable: v, previous: []TraceID{entry}}), nil
}

// NewLoopComplete creates a loop-header trace whose back-edge shapes are
// already known from an earlier pass.
func (g *Graph) NewLoopComplete(v *Variable, entry TraceID, seed shapes.Shape) (TraceID, error) {
	if err := g.check(v, entry); err != nil {
		return NoTrace, err
	}
	if seed == nil {
		seed = shapes.Unknown
	}
	return g.add(&ValueTrace{kind: KindLoopComplete, variable: v, previous: []TraceID{entry}, seed: seed}), nil
}

// loopTrace fetches id and checks that it is a loop header.
func (g *Graph) loopTrace(id TraceID) (*ValueTrace, error) {
	t := g.Trace(id)
	if t == nil || !t.kind.IsLoop() {
		return nil, fmt.Errorf("%w: trace %d is not a loop header", ErrInvariant, id)
	}
	return t, nil
}

// appendEdges adds unseen back edges to the loop, replaying the usage the
// loop already passes on so that later removals stay balanced.
func (g *Graph) appendEdges(t *ValueTrace, edges []TraceID) bool {
	added := false
	for _, id := range edges {
		if id == t.id || containsTrace(t.previous, id) {
			continue
		}
		t.previous = append(t.previous, id)
		t.memo = nil
		g.replay(t, id)
		g.AddMergeUsage(id)
		added = true
	}
	return added
}

// AddLoopContinueTraces appends back edges found while analysing the loop
// body. It reports whether any edge was new. Completed loops reject edges.
func (g *Graph) AddLoopContinueTraces(loop TraceID, edges ...TraceID) (bool, error) {
	t, err := g.loopTrace(loop)
	if err != nil {
		return false, err
	}
	if t.kind == KindLoopComplete {
		return false, fmt.Errorf("%w: back edge added to completed loop %s", ErrInvariant, t)
	}
	if err := g.check(t.variable, edges...); err != nil {
		return false, err
	}
	return g.appendEdges(t, edges), nil
}

// AttachBackEdges records the back edges of a loop completed from an earlier
// pass. It reports whether the loop's shape already covers every edge; if
// not, the seed was too narrow and the caller must widen it and re-run.
func (g *Graph) AttachBackEdges(loop TraceID, edges ...TraceID) (bool, error) {
	t, err := g.loopTrace(loop)
	if err != nil {
		return false, err
	}
	if t.kind != KindLoopComplete {
		return false, fmt.Errorf("%w: %s is still incomplete", ErrInvariant, t)
	}
	if err := g.check(t.variable, edges...); err != nil {
		return false, err
	}
	current := t.TypeShape()
	covered := true
	for _, id := range edges {
		if id == t.id {
			continue
		}
		if !shapes.IsAtLeastAsGeneral(current, g.traces[id].TypeShape()) {
			covered = false
		}
	}
	g.appendEdges(t, edges)
	return covered, nil
}

// CompleteLoop promotes an incomplete loop header in place once no further
// back edges can appear.
func (g *Graph) CompleteLoop(loop TraceID) error {
	t, err := g.loopTrace(loop)
	if err != nil {
		return err
	}
	if t.kind == KindLoopComplete {
		return fmt.Errorf("%w: %s completed twice", ErrInvariant, t)
	}
	t.kind = KindLoopComplete
	g.log.Debugf("loop %s complete: %s", t, t.TypeShape())
	return nil
}

func containsTrace(ids []TraceID, id TraceID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

const noCut = math.MaxInt

// shapeWalk computes trace shapes. Back edges lead to loop headers that are
// still being computed; such a cycle contributes nothing to the union.
// Results that did not depend on an open header are cached for the walk.
type shapeWalk struct {
	g     *Graph
	depth map[TraceID]int          // open loop headers
	done  map[TraceID]shapes.Shape // finished results
}

func newShapeWalk(g *Graph) *shapeWalk {
	return &shapeWalk{g: g, depth: make(map[TraceID]int), done: make(map[TraceID]shapes.Shape)}
}

// visit returns the shape of id, nil when it is purely a cycle, and the
// depth of the outermost open header it depended on.
func (w *shapeWalk) visit(id TraceID) (shapes.Shape, int) {
	if s, ok := w.done[id]; ok {
		return s, noCut
	}
	if d, ok := w.depth[id]; ok {
		return nil, d
	}

	t := w.g.traces[id]
	var (
		s   shapes.Shape
		low = noCut
	)
	switch t.kind {
	case KindAssign:
		s = t.node.TypeShape()
	case KindEscaped:
		s, low = w.visit(t.previous[0])
	case KindMerge:
		s, low = w.merge(t)
	case KindLoopIncomplete, KindLoopComplete:
		s, low = w.loop(t)
	default:
		s = t.shape
	}
	if low == noCut {
		w.done[id] = s
	}
	return s, low
}

// merge is the common shape of the predecessors, or Unknown if they differ.
func (w *shapeWalk) merge(t *ValueTrace) (shapes.Shape, int) {
	var common shapes.Shape
	low := noCut
	for _, p := range t.previous {
		s, l := w.visit(p)
		low = min(low, l)
		switch {
		case s == nil:
		case common == nil:
			common = s
		case common != s:
			common = shapes.Unknown
		}
	}
	return common, low
}

// loop is the alternative over the seed and every predecessor. Complete
// loops keep the result once it no longer depends on an open header.
func (w *shapeWalk) loop(t *ValueTrace) (shapes.Shape, int) {
	if t.memo != nil {
		return t.memo, noCut
	}
	d := len(w.depth)
	w.depth[t.id] = d
	defer delete(w.depth, t.id)

	members := make([]shapes.Shape, 0, len(t.previous)+1)
	if t.seed != nil {
		members = append(members, t.seed)
	}
	low := noCut
	for _, p := range t.previous {
		s, l := w.visit(p)
		low = min(low, l)
		if s != nil {
			members = append(members, s)
		}
	}
	if low >= d {
		low = noCut
	}
	if t.kind == KindLoopComplete {
		s := shapes.NewComplete(members...)
		if low == noCut {
			t.memo = s
		}
		return s, low
	}
	return shapes.NewInitial(members...), low
}

// presence answers MustHaveValue (must) or MustNotHaveValue (!must). A
// cycle back to an open merge or loop is neutral for the conjunction.
func (g *Graph) presence(id TraceID, visiting map[TraceID]bool, must bool) bool {
	t := g.traces[id]
	switch t.kind {
	case KindInit, KindInitStarArgs, KindInitStarDict, KindAssign:
		return must
	case KindUninitialized, KindDeleted:
		return !must
	case KindEscaped:
		return g.presence(t.previous[0], visiting, must)
	case KindMerge, KindLoopComplete:
		if visiting[id] {
			return true
		}
		visiting[id] = true
		defer delete(visiting, id)
		for _, p := range t.previous {
			if !g.presence(p, visiting, must) {
				return false
			}
		}
		return true
	}
	// Unknown and incomplete loops
	return false
}
