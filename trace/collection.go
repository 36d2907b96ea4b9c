package trace

import (
	"fmt"

	"github.com/speakeasy-api/shapeflow"
	"github.com/speakeasy-api/shapeflow/shapes"
)

// Snapshot maps each variable to its active trace at one program point.
type Snapshot map[*Variable]TraceID

func (s Snapshot) clone() Snapshot {
	out := make(Snapshot, len(s))
	for v, id := range s {
		out[v] = id
	}
	return out
}

// ExceptionExit is the variable state at a point where an exception may
// leave the current block.
type ExceptionExit struct {
	Kind  shapeflow.ExceptionKind
	State Snapshot
}

// Collection follows the active trace of every variable while a function
// body is walked in program order.
type Collection struct {
	g      *Graph
	log    shapeflow.Logger
	vars   []*Variable
	active Snapshot
	exits  []ExceptionExit
}

// NewCollection starts collecting into g.
func NewCollection(g *Graph, logger shapeflow.Logger) *Collection {
	if logger == nil {
		logger = shapeflow.NewNoopLogger()
	}
	return &Collection{
		g:      g,
		log:    logger,
		active: make(Snapshot),
	}
}

// Graph returns the arena traces are created in.
func (c *Collection) Graph() *Graph { return c.g }

// Variables returns the declared variables in declaration order.
func (c *Collection) Variables() []*Variable {
	out := make([]*Variable, len(c.vars))
	copy(out, c.vars)
	return out
}

// Declare starts v as uninitialized. Declaring twice keeps the first start.
func (c *Collection) Declare(v *Variable) TraceID {
	if id, ok := c.active[v]; ok {
		return id
	}
	id := c.g.NewUninitialized(v)
	c.vars = append(c.vars, v)
	c.active[v] = id
	return id
}

// OnVariableInit starts v as a parameter.
func (c *Collection) OnVariableInit(v *Variable, kind Kind) (TraceID, error) {
	if _, ok := c.active[v]; ok {
		return NoTrace, fmt.Errorf("%w: %s initialized twice", ErrInvariant, v)
	}
	id, err := c.g.NewInit(v, kind)
	if err != nil {
		return NoTrace, err
	}
	c.vars = append(c.vars, v)
	c.active[v] = id
	return id, nil
}

// Active returns the current trace of v.
func (c *Collection) Active(v *Variable) (*ValueTrace, error) {
	id, ok := c.active[v]
	if !ok {
		return nil, fmt.Errorf("%w: %s was never declared", ErrInvariant, v)
	}
	return c.g.traces[id], nil
}

// OnVariableSet records an assignment and makes it the active trace.
func (c *Collection) OnVariableSet(v *Variable, node ValueNode, trust Trust) (TraceID, error) {
	prev, err := c.Active(v)
	if err != nil {
		return NoTrace, err
	}
	id, err := c.g.NewAssign(v, prev.id, node, trust)
	if err != nil {
		return NoTrace, err
	}
	c.active[v] = id
	return id, nil
}

// OnVariableDel records a del statement. The deleted name is used.
func (c *Collection) OnVariableDel(v *Variable) (TraceID, error) {
	prev, err := c.Active(v)
	if err != nil {
		return NoTrace, err
	}
	c.g.AddNameUsage(prev.id)
	id, err := c.g.NewDeleted(v, prev.id)
	if err != nil {
		return NoTrace, err
	}
	c.active[v] = id
	return id, nil
}

// OnVariableRead records a read of v and returns the trace that was read.
func (c *Collection) OnVariableRead(v *Variable) (*ValueTrace, error) {
	t, err := c.Active(v)
	if err != nil {
		return nil, err
	}
	c.g.AddUsage(t.id)
	return t, nil
}

// MarkActiveVariableAsEscaped records that v's value reached foreign code.
func (c *Collection) MarkActiveVariableAsEscaped(v *Variable) error {
	prev, err := c.Active(v)
	if err != nil {
		return err
	}
	switch prev.kind {
	case KindEscaped, KindUnknown, KindUninitialized, KindDeleted:
		return nil
	}
	id, err := c.g.NewEscaped(v, prev.id)
	if err != nil {
		return err
	}
	c.active[v] = id
	return nil
}

// MarkActiveVariableAsUnknown records that v may have been rebound.
func (c *Collection) MarkActiveVariableAsUnknown(v *Variable) error {
	prev, err := c.Active(v)
	if err != nil {
		return err
	}
	if prev.kind == KindUnknown {
		return nil
	}
	id, err := c.g.NewUnknown(v, prev.id)
	if err != nil {
		return err
	}
	c.active[v] = id
	return nil
}

// OnControlFlowEscape records that arbitrary code may have run. Shared
// variables may have been rebound by it.
func (c *Collection) OnControlFlowEscape() error {
	for _, v := range c.vars {
		if !v.Shared {
			continue
		}
		if err := c.MarkActiveVariableAsUnknown(v); err != nil {
			return err
		}
	}
	return nil
}

// OnExceptionRaiseExit records the state at a point that may raise kind.
func (c *Collection) OnExceptionRaiseExit(kind shapeflow.ExceptionKind) {
	c.exits = append(c.exits, ExceptionExit{Kind: kind, State: c.active.clone()})
}

// ExceptionExits returns the recorded raise points in program order.
func (c *Collection) ExceptionExits() []ExceptionExit {
	out := make([]ExceptionExit, len(c.exits))
	copy(out, c.exits)
	return out
}

// Snapshot captures the active traces.
func (c *Collection) Snapshot() Snapshot { return c.active.clone() }

// Restore makes s the active state.
func (c *Collection) Restore(s Snapshot) { c.active = s.clone() }

// MergeBranches makes the join of the given branch states active. Variables
// with the same trace on every branch keep it; the rest get a merge.
func (c *Collection) MergeBranches(branches ...Snapshot) error {
	if len(branches) == 0 {
		return fmt.Errorf("%w: merge of no branches", ErrInvariant)
	}
	merged := make(Snapshot, len(c.vars))
	for _, v := range c.vars {
		preds := make([]TraceID, 0, len(branches))
		for _, b := range branches {
			id, ok := b[v]
			if !ok {
				return fmt.Errorf("%w: %s missing from a branch", ErrInvariant, v)
			}
			if !containsTrace(preds, id) {
				preds = append(preds, id)
			}
		}
		if len(preds) == 1 {
			merged[v] = preds[0]
			continue
		}
		id, err := c.g.NewMerge(v, preds)
		if err != nil {
			return err
		}
		merged[v] = id
	}
	c.active = merged
	return nil
}

// Loop tracks the header traces of one loop during its analysis.
type Loop struct {
	c         *Collection
	vars      []*Variable
	headers   map[*Variable]TraceID
	header    Snapshot
	continues []Snapshot
	breaks    []Snapshot
}

// EnterLoop creates header traces for the variables the loop body assigns.
// A variable with a seed from an earlier pass starts complete.
func (c *Collection) EnterLoop(assigned []*Variable, seeds map[*Variable]shapes.Shape) (*Loop, error) {
	l := &Loop{c: c, headers: make(map[*Variable]TraceID, len(assigned))}
	for _, v := range assigned {
		if _, ok := l.headers[v]; ok {
			continue
		}
		entry, err := c.Active(v)
		if err != nil {
			return nil, err
		}
		var id TraceID
		if seed, ok := seeds[v]; ok {
			id, err = c.g.NewLoopComplete(v, entry.id, seed)
		} else {
			id, err = c.g.NewLoop(v, entry.id)
		}
		if err != nil {
			return nil, err
		}
		l.vars = append(l.vars, v)
		l.headers[v] = id
		c.active[v] = id
	}
	l.header = c.active.clone()
	return l, nil
}

// Header returns the state at the top of the loop body.
func (l *Loop) Header() Snapshot { return l.header.clone() }

// HeaderTrace returns the loop header trace of v.
func (l *Loop) HeaderTrace(v *Variable) (TraceID, bool) {
	id, ok := l.headers[v]
	return id, ok
}

// OnContinue records the state flowing back to the loop header.
func (l *Loop) OnContinue() { l.continues = append(l.continues, l.c.active.clone()) }

// OnBreak records the state leaving the loop.
func (l *Loop) OnBreak() { l.breaks = append(l.breaks, l.c.active.clone()) }

// Breaks returns the states recorded by OnBreak.
func (l *Loop) Breaks() []Snapshot {
	out := make([]Snapshot, len(l.breaks))
	copy(out, l.breaks)
	return out
}

// CloseIteration attaches the recorded back edges to the headers. It
// reports whether any header shape changed, or for headers seeded from an
// earlier pass, whether an edge fell outside the seed.
func (l *Loop) CloseIteration() (bool, error) {
	changed := false
	for _, v := range l.vars {
		hid := l.headers[v]
		edges := make([]TraceID, 0, len(l.continues))
		for _, s := range l.continues {
			if id := s[v]; id != hid && !containsTrace(edges, id) {
				edges = append(edges, id)
			}
		}
		h := l.c.g.traces[hid]
		if h.kind == KindLoopComplete {
			covered, err := l.c.g.AttachBackEdges(hid, edges...)
			if err != nil {
				return false, err
			}
			changed = changed || !covered
			continue
		}
		before := shapes.Fingerprint(h.TypeShape())
		if _, err := l.c.g.AddLoopContinueTraces(hid, edges...); err != nil {
			return false, err
		}
		if shapes.Fingerprint(h.TypeShape()) != before {
			changed = true
		}
	}
	l.continues = nil
	return changed, nil
}

// Restart rewinds to the loop header for another pass over the body.
func (l *Loop) Restart() {
	l.continues = nil
	l.breaks = nil
	l.c.Restore(l.header)
}

// Widen gives every incomplete header an unknown back edge, used when the
// body did not settle within the iteration bound.
func (l *Loop) Widen() error {
	for _, v := range l.vars {
		hid := l.headers[v]
		if l.c.g.traces[hid].kind != KindLoopIncomplete {
			continue
		}
		u, err := l.c.g.NewUnknown(v, hid)
		if err != nil {
			return err
		}
		if _, err := l.c.g.AddLoopContinueTraces(hid, u); err != nil {
			return err
		}
	}
	return nil
}

// Complete promotes the incomplete headers.
func (l *Loop) Complete() error {
	for _, v := range l.vars {
		hid := l.headers[v]
		if l.c.g.traces[hid].kind == KindLoopComplete {
			continue
		}
		if err := l.c.g.CompleteLoop(hid); err != nil {
			return err
		}
	}
	return nil
}

// Shapes returns the header shape of every loop variable.
func (l *Loop) Shapes() map[*Variable]shapes.Shape {
	out := make(map[*Variable]shapes.Shape, len(l.vars))
	for _, v := range l.vars {
		out[v] = l.c.g.traces[l.headers[v]].TypeShape()
	}
	return out
}
