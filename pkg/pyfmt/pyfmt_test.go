package pyfmt

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/speakeasy-api/shapeflow"
	"github.com/speakeasy-api/shapeflow/expr"
	"github.com/speakeasy-api/shapeflow/pyvalue"
	"github.com/speakeasy-api/shapeflow/resolve"
	"github.com/speakeasy-api/shapeflow/trace"
)

func counter() *expr.Function {
	n := trace.NewVariable("f", "n", false)
	x := trace.NewVariable("f", "x", false)
	return &expr.Function{
		Name:   "f",
		Params: []expr.Param{{Variable: n, Kind: trace.KindInit}},
		Locals: []*trace.Variable{x},
		Body: []expr.Stmt{
			&expr.Assign{Target: x, Value: expr.NewConstant(pyvalue.NewInt(0))},
			&expr.Loop{Cond: expr.NewVariableRef(n), Body: []expr.Stmt{
				&expr.Assign{Target: x, Value: expr.NewBinary(shapeflow.OpAdd, expr.NewVariableRef(x), expr.NewConstant(pyvalue.NewInt(1)))},
			}},
			&expr.Return{Value: expr.NewVariableRef(x)},
		},
	}
}

func TestFormat(t *testing.T) {
	args := trace.NewVariable("g", "args", false)
	kw := trace.NewVariable("g", "kw", false)
	y := trace.NewVariable("g", "y", false)
	shared := trace.NewVariable("g", "counter", true)

	tests := []struct {
		name   string
		fn     *expr.Function
		config Config
		want   string
	}{
		{
			name:   "loop",
			fn:     counter(),
			config: DefaultConfig(),
			want: `def f(n):
    x = 0
    while n:
        x = x + 1
    return x
`,
		},
		{
			name: "star_params_and_globals",
			fn: &expr.Function{
				Name: "g",
				Params: []expr.Param{
					{Variable: args, Kind: trace.KindInitStarArgs},
					{Variable: kw, Kind: trace.KindInitStarDict},
				},
				Locals: []*trace.Variable{y, shared},
				Body: []expr.Stmt{
					&expr.If{
						Cond: expr.NewUnary(shapeflow.OpNot, expr.NewVariableRef(args)),
						Then: []expr.Stmt{&expr.Return{}},
						Else: []expr.Stmt{&expr.Delete{Target: y}},
					},
					&expr.Loop{Body: []expr.Stmt{&expr.Break{}}},
					&expr.ExprStmt{Value: expr.NewVariableRef(shared)},
				},
			},
			config: Config{Indent: 2},
			want: `def g(*args, **kw):
  global counter
  if not args:
    return
  else:
    del y
  while True:
    break
  counter
`,
		},
		{
			name:   "empty_body",
			fn:     &expr.Function{Name: "h"},
			config: DefaultConfig(),
			want: `def h():
    pass
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Format(tt.fn, tt.config)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Format mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatAnnotated(t *testing.T) {
	fn := counter()
	opts := shapeflow.DefaultOptions()
	opts.LogLevel = ""
	if _, err := resolve.Optimize(context.Background(), fn, opts); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.Annotate = true
	got, err := Format(fn, cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := `def f(n):
    x = 0
    while n:
        x = x + 1  # int_or_long, NoEscape
    return x
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Format mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatRaise(t *testing.T) {
	x := trace.NewVariable("f", "x", false)
	fn := &expr.Function{
		Name:   "f",
		Locals: []*trace.Variable{x},
		Body: []expr.Stmt{
			&expr.Assign{Target: x, Value: &expr.Raise{Kind: shapeflow.ExceptionTypeError, Message: "bad operand"}},
		},
	}
	got, err := Format(fn, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	want := "def f():\n    raise TypeError('bad operand')\n"
	if got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
}

func TestValidateConfig(t *testing.T) {
	for _, indent := range []int{0, -1, 17} {
		if _, err := ValidateConfig(Config{Indent: indent}); err == nil {
			t.Errorf("indent %d should be rejected", indent)
		}
	}
	if _, err := Format(nil, DefaultConfig()); err == nil {
		t.Error("formatting nil should fail")
	}
}
