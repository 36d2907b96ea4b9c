package resolve

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/speakeasy-api/shapeflow"
	"github.com/speakeasy-api/shapeflow/escape"
	"github.com/speakeasy-api/shapeflow/expr"
	"github.com/speakeasy-api/shapeflow/pyvalue"
	"github.com/speakeasy-api/shapeflow/shapes"
	"github.com/speakeasy-api/shapeflow/trace"
)

func ref(v *trace.Variable) *expr.VariableRef { return expr.NewVariableRef(v) }

func tags(changes []ChangeRecord) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.Tag.String()
	}
	return out
}

func quietOptions() shapeflow.Options {
	opts := shapeflow.DefaultOptions()
	opts.LogLevel = ""
	return opts
}

// counter builds f(n): x = 0; while n: x = x + 1; return x
func counter() (*expr.Function, *expr.Operation) {
	n := trace.NewVariable("f", "n", false)
	x := trace.NewVariable("f", "x", false)
	inc := expr.NewBinary(shapeflow.OpAdd, ref(x), intc(1))
	return &expr.Function{
		Name:   "f",
		Params: []expr.Param{{Variable: n, Kind: trace.KindInit}},
		Locals: []*trace.Variable{x},
		Body: []expr.Stmt{
			&expr.Assign{Target: x, Value: intc(0)},
			&expr.Loop{Cond: ref(n), Body: []expr.Stmt{&expr.Assign{Target: x, Value: inc}}},
			&expr.Return{Value: ref(x)},
		},
	}, inc
}

func TestOptimizeFoldsAndConverges(t *testing.T) {
	x := trace.NewVariable("f", "x", false)
	y := trace.NewVariable("f", "y", false)
	first := &expr.Assign{Target: x, Value: expr.NewBinary(shapeflow.OpAdd, intc(1), intc(2))}
	second := &expr.Assign{Target: y, Value: expr.NewBinary(shapeflow.OpMult, ref(x), intc(4))}
	fn := &expr.Function{
		Name:   "f",
		Locals: []*trace.Variable{x, y},
		Body:   []expr.Stmt{first, second, &expr.Return{Value: ref(y)}},
	}

	res, err := Optimize(context.Background(), fn, quietOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Converged || res.Passes != 2 {
		t.Errorf("converged %v after %d passes, want true after 2", res.Converged, res.Passes)
	}
	if diff := cmp.Diff([]string{"new_constant", "new_constant"}, tags(res.Changes)); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}
	if got := first.Value.String(); got != "3" {
		t.Errorf("x = %s, want 3", got)
	}
	if got := second.Value.String(); got != "12" {
		t.Errorf("y = %s, want 12", got)
	}
}

func TestOptimizeIsIdempotent(t *testing.T) {
	fn, inc := counter()
	if _, err := Optimize(context.Background(), fn, quietOptions()); err != nil {
		t.Fatal(err)
	}
	shape, esc := inc.TypeShape(), inc.Escape()

	res, err := Optimize(context.Background(), fn, quietOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Changes) != 0 {
		t.Errorf("second run changes = %v, want none", tags(res.Changes))
	}
	if inc.TypeShape() != shape || inc.Escape() != esc {
		t.Errorf("second run moved (%s, %s) to (%s, %s)",
			shape.Name(), esc, inc.TypeShape().Name(), inc.Escape())
	}
}

func TestOptimizeLoopFixpoint(t *testing.T) {
	fn, inc := counter()
	res, err := Optimize(context.Background(), fn, quietOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Converged || res.Passes != 2 {
		t.Errorf("converged %v after %d passes, want true after 2", res.Converged, res.Passes)
	}
	if inc.TypeShape() != shapes.IntOrLong || inc.Escape() != escape.NoEscape {
		t.Errorf("x + 1 = (%s, %s), want (int_or_long, NoEscape)", inc.TypeShape().Name(), inc.Escape())
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v", res.Warnings)
	}

	x := fn.Locals[0]
	var loops []string
	for _, tr := range res.Graph.Versions(x) {
		if tr.Kind().IsLoop() {
			loops = append(loops, tr.Kind().String()+" "+tr.TypeShape().Name())
		}
	}
	want := []string{"LoopComplete " + shapes.NewComplete(shapes.Int, shapes.IntOrLong).Name()}
	if diff := cmp.Diff(want, loops); diff != "" {
		t.Errorf("loop headers mismatch (-want +got):\n%s", diff)
	}
}

func TestOptimizeLoopWidening(t *testing.T) {
	fn, inc := counter()
	opts := quietOptions()
	opts.MaxLoopIterations = 1

	res, err := Optimize(context.Background(), fn, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Converged {
		t.Errorf("widened loop did not converge in %d passes", res.Passes)
	}
	if len(res.Warnings) == 0 || !strings.Contains(res.Warnings[0], "widening") {
		t.Errorf("warnings = %v, want a widening warning", res.Warnings)
	}
	if inc.TypeShape() != shapes.Unknown || inc.Escape() != escape.FullEscape {
		t.Errorf("x + 1 = (%s, %s), want (unknown, FullEscape) after widening", inc.TypeShape().Name(), inc.Escape())
	}

	fn, _ = counter()
	opts.EnableWarnings = false
	res, err = Optimize(context.Background(), fn, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings collected with EnableWarnings off: %v", res.Warnings)
	}
}

func TestOptimizePassLimit(t *testing.T) {
	fn, _ := counter()
	opts := quietOptions()
	opts.MaxPasses = 1

	res, err := Optimize(context.Background(), fn, opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Converged || res.Passes != 1 {
		t.Errorf("converged %v after %d passes, want false after 1", res.Converged, res.Passes)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "no fixpoint") {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestOptimizeReplacesAlwaysFailingOperation(t *testing.T) {
	l := trace.NewVariable("f", "l", false)
	s := trace.NewVariable("f", "s", false)
	x := trace.NewVariable("f", "x", false)
	stmt := &expr.ExprStmt{Value: expr.NewBinary(shapeflow.OpMult, ref(l), ref(s))}
	fn := &expr.Function{
		Name:   "f",
		Locals: []*trace.Variable{l, s, x},
		Body: []expr.Stmt{
			&expr.Assign{Target: l, Value: expr.NewConstant(pyvalue.NewList())},
			&expr.Assign{Target: s, Value: expr.NewConstant(mustSet(t))},
			stmt,
			&expr.Assign{Target: x, Value: intc(1)},
		},
	}

	res, err := Optimize(context.Background(), fn, quietOptions())
	if err != nil {
		t.Fatal(err)
	}
	r, ok := stmt.Value.(*expr.Raise)
	if !ok {
		t.Fatalf("l * s = %s, want a raise", stmt.Value)
	}
	if r.Message != "can't multiply sequence by non-int of type 'set'" {
		t.Errorf("message = %q", r.Message)
	}
	if diff := cmp.Diff([]string{"new_raise"}, tags(res.Changes)); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}
	if got := len(res.Graph.Versions(x)); got != 1 {
		t.Errorf("x has %d versions, want only the uninitialized one after the raise", got)
	}
	var kinds []shapeflow.ExceptionKind
	for _, exit := range res.Exits {
		kinds = append(kinds, exit.Kind)
	}
	if diff := cmp.Diff([]shapeflow.ExceptionKind{shapeflow.ExceptionTypeError}, kinds); diff != "" {
		t.Errorf("exits mismatch (-want +got):\n%s", diff)
	}
}

func TestOptimizeBranches(t *testing.T) {
	c := trace.NewVariable("f", "c", false)
	x := trace.NewVariable("f", "x", false)
	y := trace.NewVariable("f", "y", false)

	build := func(cond expr.Expr) (*expr.Function, *expr.Assign) {
		use := &expr.Assign{Target: y, Value: expr.NewBinary(shapeflow.OpAdd, ref(x), intc(1))}
		return &expr.Function{
			Name:   "f",
			Params: []expr.Param{{Variable: c, Kind: trace.KindInit}},
			Locals: []*trace.Variable{x, y},
			Body: []expr.Stmt{
				&expr.If{
					Cond: cond,
					Then: []expr.Stmt{&expr.Assign{Target: x, Value: intc(1)}},
					Else: []expr.Stmt{&expr.Assign{Target: x, Value: strc("a")}},
				},
				use,
			},
		}, use
	}

	fn, use := build(ref(c))
	res, err := Optimize(context.Background(), fn, quietOptions())
	if err != nil {
		t.Fatal(err)
	}
	op, ok := use.Value.(*expr.Operation)
	if !ok {
		t.Fatalf("y = %s, want the operation kept", use.Value)
	}
	if op.TypeShape() != shapes.Unknown || op.Escape() != escape.FullEscape {
		t.Errorf("merged x + 1 = (%s, %s), want (unknown, FullEscape)", op.TypeShape().Name(), op.Escape())
	}
	var merges int
	for _, tr := range res.Graph.Versions(x) {
		if tr.Kind() == trace.KindMerge {
			merges++
		}
	}
	if merges != 1 {
		t.Errorf("x has %d merges, want 1", merges)
	}

	fn, use = build(expr.NewConstant(pyvalue.Bool(true)))
	if _, err := Optimize(context.Background(), fn, quietOptions()); err != nil {
		t.Fatal(err)
	}
	if got := use.Value.String(); got != "2" {
		t.Errorf("y = %s, want 2 with only the true branch reachable", got)
	}
}

func TestOptimizeBreakState(t *testing.T) {
	x := trace.NewVariable("f", "x", false)
	y := trace.NewVariable("f", "y", false)
	use := &expr.Assign{Target: y, Value: expr.NewBinary(shapeflow.OpAdd, ref(x), intc(1))}
	fn := &expr.Function{
		Name:   "f",
		Locals: []*trace.Variable{x, y},
		Body: []expr.Stmt{
			&expr.Loop{Body: []expr.Stmt{
				&expr.Assign{Target: x, Value: intc(1)},
				&expr.Break{},
			}},
			use,
		},
	}

	res, err := Optimize(context.Background(), fn, quietOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Converged {
		t.Errorf("did not converge in %d passes", res.Passes)
	}
	if got := use.Value.String(); got != "2" {
		t.Errorf("y = %s, want 2 from the only break", got)
	}
}

func TestOptimizeRejectsStrayBreak(t *testing.T) {
	fn := &expr.Function{Name: "f", Body: []expr.Stmt{&expr.Break{}}}
	if _, err := Optimize(context.Background(), fn, quietOptions()); err == nil {
		t.Error("break outside a loop should fail")
	}
}

func TestOptimizeUndeclaredVariable(t *testing.T) {
	x := trace.NewVariable("f", "x", false)
	fn := &expr.Function{Name: "f", Body: []expr.Stmt{&expr.Return{Value: ref(x)}}}
	_, err := Optimize(context.Background(), fn, quietOptions())
	if !errors.Is(err, trace.ErrInvariant) {
		t.Errorf("err = %v, want ErrInvariant", err)
	}
}

func TestOptimizeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fn, _ := counter()
	if _, err := Optimize(ctx, fn, quietOptions()); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestOptimizeOptions(t *testing.T) {
	fn, _ := counter()
	opts := quietOptions()
	opts.MaxPasses = 0
	if _, err := Optimize(context.Background(), fn, opts); err == nil {
		t.Error("MaxPasses 0 should be rejected")
	}

	opts = quietOptions()
	opts.StrictTables = true
	_, err := Optimize(context.Background(), fn, opts)
	if (err != nil) != (shapes.Verify() != nil) {
		t.Errorf("strict tables err = %v, verify = %v", err, shapes.Verify())
	}
}
