package trace

import "fmt"

// usageCutoff bounds propagation: only the first two uses of each kind are
// passed on to predecessors. Optimizations only ask "unused, once, or more".
const usageCutoff = 2

type usageKind uint8

const (
	usePlain usageKind = iota
	useName
	useNameLocal // a name usage that stops at the receiving trace
	useMerge
)

type usageItem struct {
	id    TraceID
	kind  usageKind
	delta int
}

// usageWorklist is a LIFO of pending counter updates.
type usageWorklist struct {
	data []usageItem
}

func newUsageWorklist() *usageWorklist {
	return &usageWorklist{data: make([]usageItem, 0, 16)}
}

func (w *usageWorklist) push(it usageItem) {
	w.data = append(w.data, it)
}

// pop removes and returns the top item. Panics if the worklist is empty.
func (w *usageWorklist) pop() usageItem {
	if len(w.data) == 0 {
		panic("usage worklist underflow")
	}
	it := w.data[len(w.data)-1]
	w.data = w.data[:len(w.data)-1]
	return it
}

func (w *usageWorklist) empty() bool {
	return len(w.data) == 0
}

// AddUsage records a read of the trace's value.
func (g *Graph) AddUsage(id TraceID) { g.propagate(id, usePlain, 1) }

// AddNameUsage records a use of the variable name itself, such as del.
func (g *Graph) AddNameUsage(id TraceID) { g.propagate(id, useName, 1) }

// AddMergeUsage records that a merge or loop header needs the value.
func (g *Graph) AddMergeUsage(id TraceID) { g.propagate(id, useMerge, 1) }

// RemoveUsage undoes AddUsage.
func (g *Graph) RemoveUsage(id TraceID) { g.propagate(id, usePlain, -1) }

// RemoveNameUsage undoes AddNameUsage.
func (g *Graph) RemoveNameUsage(id TraceID) { g.propagate(id, useName, -1) }

// RemoveMergeUsage undoes AddMergeUsage.
func (g *Graph) RemoveMergeUsage(id TraceID) { g.propagate(id, useMerge, -1) }

// propagate applies one counter change and passes it on while the counter
// that drives it stays within the cutoff. Removal checks the counter before
// decrementing, so every removal retraces exactly the propagation of the
// addition it undoes. Going below zero panics.
func (g *Graph) propagate(id TraceID, kind usageKind, delta int) {
	w := newUsageWorklist()
	w.push(usageItem{id: id, kind: kind, delta: delta})
	for !w.empty() {
		it := w.pop()
		t := g.traces[it.id]
		if t.apply(it.kind, it.delta) > usageCutoff {
			continue
		}
		next, targets := t.targets(it.kind)
		for _, p := range targets {
			w.push(usageItem{id: p, kind: next, delta: it.delta})
		}
	}
}

// replay hands a newly attached loop predecessor the usage the loop has
// already passed on to its other predecessors.
func (g *Graph) replay(loop *ValueTrace, pred TraceID) {
	for _, kind := range []usageKind{usePlain, useName, useMerge} {
		next, _ := loop.targets(kind)
		for i := 0; i < min(loop.level(kind), usageCutoff); i++ {
			g.propagate(pred, next, 1)
		}
	}
}

// apply updates the counters and returns the level that decides whether the
// change propagates.
func (t *ValueTrace) apply(kind usageKind, delta int) int {
	level := t.level(kind)
	if delta < 0 && (level <= 0 || t.usage <= 0) {
		panic(fmt.Sprintf("usage underflow on %s", t))
	}
	t.usage += delta
	switch kind {
	case useName:
		t.nameUsage += delta
	case useNameLocal:
		t.nameUsage += delta
		t.localNameUsage += delta
	case useMerge:
		t.mergeUsage += delta
	}
	if delta > 0 {
		level = t.level(kind)
	}
	return level
}

// level is the counter that drives propagation of kind. Plain reads have no
// counter of their own; they are what remains of the total.
func (t *ValueTrace) level(kind usageKind) int {
	switch kind {
	case useName:
		return t.nameUsage - t.localNameUsage
	case useNameLocal:
		return t.localNameUsage
	case useMerge:
		return t.mergeUsage
	}
	return t.usage - t.nameUsage - t.mergeUsage
}

// targets names the predecessors a change of kind reaches and the kind they
// receive.
func (t *ValueTrace) targets(kind usageKind) (usageKind, []TraceID) {
	switch kind {
	case useNameLocal:
		return useNameLocal, nil
	case useName:
		if t.kind == KindEscaped {
			return useNameLocal, t.previous
		}
		return useName, t.previous
	case useMerge:
		if t.kind == KindMerge || t.kind.IsLoop() {
			return useMerge, t.previous
		}
		return useMerge, nil
	}

	switch t.kind {
	case KindMerge, KindLoopIncomplete, KindLoopComplete:
		return useMerge, t.previous
	case KindUnknown:
		return useName, t.previous
	case KindEscaped:
		return useNameLocal, t.previous
	}
	return usePlain, nil
}
