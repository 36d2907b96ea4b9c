package shapes

import (
	"errors"
	"fmt"
	"sync"

	"github.com/speakeasy-api/shapeflow"
	"github.com/speakeasy-api/shapeflow/escape"
)

// ErrTableDefect is wrapped by Verify when any table entry is missing.
var ErrTableDefect = errors.New("shape table defect")

// Defect describes a missing or misused table entry.
type Defect struct {
	Op     shapeflow.Operator
	Left   string
	Right  string
	Reason string
}

func (d Defect) String() string {
	if d.Right == "" {
		return fmt.Sprintf("%s(%s): %s", d.Op, d.Left, d.Reason)
	}
	return fmt.Sprintf("%s(%s, %s): %s", d.Op, d.Left, d.Right, d.Reason)
}

// entry is one frozen table cell.
type entry struct {
	result *TypeShape
	escape *escape.Descriptor
}

type pair struct{ left, right ID }

// opTable is the sparse form a constructor produces before freezing.
type opTable map[pair]entry

type tables struct {
	binary [shapeflow.NumOperators][NumShapes][NumShapes]entry
	unary  [shapeflow.NumOperators][NumShapes]entry
}

var (
	buildOnce sync.Once
	frozen    *tables

	defectsMu    sync.Mutex
	buildDefects []Defect
	useDefects   []Defect
)

func getTables() *tables {
	buildOnce.Do(func() {
		var defects []Defect
		frozen, defects = buildTables(binaryConstructors(), unaryConstructors())
		defectsMu.Lock()
		buildDefects = defects
		defectsMu.Unlock()
	})
	return frozen
}

// buildTables freezes sparse constructor output into dense arrays. Every
// absent cell is recorded as a defect and filled with (unknown, FullEscape).
func buildTables(binary map[shapeflow.Operator]func() opTable, unary map[shapeflow.Operator]func() map[ID]entry) (*tables, []Defect) {
	t := &tables{}
	var defects []Defect

	for _, op := range shapeflow.Operators() {
		if op.IsUnary() {
			var sparse map[ID]entry
			if ctor, ok := unary[op]; ok {
				sparse = ctor()
			}
			for _, l := range universe {
				e, ok := sparse[l.id]
				if !ok || e.result == nil || e.escape == nil {
					defects = append(defects, Defect{Op: op, Left: l.name, Reason: "missing table entry"})
					e = entry{Unknown, escape.FullEscape}
				}
				t.unary[op][l.id] = e
			}
			continue
		}

		var sparse opTable
		if ctor, ok := binary[op]; ok {
			sparse = ctor()
		}
		for _, l := range universe {
			for _, r := range universe {
				e, ok := sparse[pair{l.id, r.id}]
				if !ok || e.result == nil || e.escape == nil {
					defects = append(defects, Defect{Op: op, Left: l.name, Right: r.name, Reason: "missing table entry"})
					e = entry{Unknown, escape.FullEscape}
				}
				t.binary[op][l.id][r.id] = e
			}
		}
	}
	return t, defects
}

func reportDefect(d Defect) {
	defectsMu.Lock()
	defer defectsMu.Unlock()
	useDefects = append(useDefects, d)
}

// TableDefects returns every defect found while building the tables or
// while looking entries up.
func TableDefects() []Defect {
	getTables()
	defectsMu.Lock()
	defer defectsMu.Unlock()
	out := make([]Defect, 0, len(buildDefects)+len(useDefects))
	out = append(out, buildDefects...)
	out = append(out, useDefects...)
	return out
}

// Verify builds the tables and fails if any defect has been recorded.
func Verify() error {
	defects := TableDefects()
	if len(defects) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d entries, first %s", ErrTableDefect, len(defects), defects[0])
}

// Lookup returns the frozen cell for a concrete pair. It exists for table
// dumps; analysis code calls OperationShape.
func Lookup(op shapeflow.Operator, left, right *TypeShape) (*TypeShape, *escape.Descriptor) {
	t := getTables()
	if op.IsUnary() {
		e := t.unary[op][left.id]
		return e.result, e.escape
	}
	e := t.binary[op][left.id][right.id]
	return e.result, e.escape
}
