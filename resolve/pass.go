package resolve

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/speakeasy-api/shapeflow"
	"github.com/speakeasy-api/shapeflow/expr"
	"github.com/speakeasy-api/shapeflow/pyvalue"
	"github.com/speakeasy-api/shapeflow/shapes"
	"github.com/speakeasy-api/shapeflow/trace"
)

// Result is the outcome of optimizing one function.
type Result struct {
	Function *expr.Function
	Graph    *trace.Graph // traces of the final pass

	Passes    int
	Converged bool
	Changes   []ChangeRecord
	Exits     []trace.ExceptionExit
	Warnings  []string
}

func (r *Result) String() string {
	if r == nil {
		return "<nil>"
	}
	warnings := ""
	if len(r.Warnings) > 0 {
		warnings = fmt.Sprintf(" (warnings: %d)", len(r.Warnings))
	}
	return fmt.Sprintf("Result{Function: %s, Passes: %d, Changes: %d%s}", r.Function.Name, r.Passes, len(r.Changes), warnings)
}

// Optimize resolves every operation in fn and repeats whole passes until one
// makes no change or Options.MaxPasses is reached. Nodes of fn are replaced
// in place.
//
// Example:
//
//	res, err := resolve.Optimize(context.Background(), fn)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, c := range res.Changes {
//	    fmt.Println(c.Tag, c.Message)
//	}
func Optimize(ctx context.Context, fn *expr.Function, opts ...shapeflow.Options) (*Result, error) {
	opt := shapeflow.DefaultOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	if err := opt.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if fn == nil {
		return nil, errors.New("function cannot be nil")
	}
	return newOptimizer(ctx, opt, shapeflow.NewLoggerFromOptions(opt)).run(fn)
}

var tableDefectsOnce sync.Once

// checkTables enforces or reports shape table defects.
func checkTables(opts shapeflow.Options, logger shapeflow.Logger) error {
	if opts.StrictTables {
		return shapes.Verify()
	}
	tableDefectsOnce.Do(func() {
		for _, d := range shapes.TableDefects() {
			logger.Errorf("shape table defect: %s", d)
		}
	})
	return nil
}

// optimizer carries state across the passes over one function.
type optimizer struct {
	ctx    context.Context
	opts   shapeflow.Options
	logger shapeflow.Logger
	rt     *pyvalue.Runtime

	// seeds holds the header shapes each loop completed with in the
	// previous pass.
	seeds map[*expr.Loop]map[*trace.Variable]shapes.Shape

	warnings []string
}

func newOptimizer(ctx context.Context, opts shapeflow.Options, logger shapeflow.Logger) *optimizer {
	if logger == nil {
		logger = shapeflow.NewNoopLogger()
	}
	return &optimizer{
		ctx:    ctx,
		opts:   opts,
		logger: logger,
		rt:     pyvalue.NewRuntime(opts),
		seeds:  make(map[*expr.Loop]map[*trace.Variable]shapes.Shape),
	}
}

func (o *optimizer) addWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	o.logger.Warnf("%s", msg)
	if o.opts.EnableWarnings {
		o.warnings = append(o.warnings, msg)
	}
}

func (o *optimizer) run(fn *expr.Function) (*Result, error) {
	o.logger = o.logger.With(map[string]any{"fn": fn.Name})
	if err := checkTables(o.opts, o.logger); err != nil {
		return nil, err
	}

	o.logger.With(map[string]any{
		"params":    len(fn.Params),
		"locals":    len(fn.Locals),
		"maxPasses": o.opts.MaxPasses,
	}).Infof("Starting optimization")

	res := &Result{Function: fn}
	for n := 1; n <= o.opts.MaxPasses; n++ {
		select {
		case <-o.ctx.Done():
			return nil, o.ctx.Err()
		default:
		}

		p, err := o.runPass(fn, n, n == o.opts.MaxPasses)
		if err != nil {
			return nil, fmt.Errorf("pass %d: %w", n, err)
		}
		res.Passes = n
		res.Graph = p.coll.Graph()
		res.Exits = p.coll.ExceptionExits()
		res.Changes = append(res.Changes, p.driver.Changes()...)

		o.logger.Debugf("pass %d: %d traces, %d changes, seeds changed %v",
			n, res.Graph.Len(), len(p.driver.Changes()), p.seedsChanged)

		if len(p.driver.Changes()) == 0 && !p.seedsChanged {
			res.Converged = true
			break
		}
	}
	if !res.Converged {
		o.addWarning("no fixpoint after %d passes; the last pass is used unseeded", o.opts.MaxPasses)
	}
	res.Warnings = o.warnings

	o.logger.Infof("Optimization complete: %d passes, %d changes", res.Passes, len(res.Changes))
	return res, nil
}

// pass walks the function body once.
type pass struct {
	o      *optimizer
	coll   *trace.Collection
	driver *Driver
	log    shapeflow.Logger

	// final passes run loops unseeded.
	final        bool
	reachable    bool
	loops        []*trace.Loop
	seedsChanged bool
}

func (o *optimizer) runPass(fn *expr.Function, n int, final bool) (*pass, error) {
	logger := o.logger.With(map[string]any{"pass": n})
	coll := trace.NewCollection(trace.NewGraph(logger), logger)
	p := &pass{
		o:         o,
		coll:      coll,
		driver:    NewDriver(o.rt, coll, logger),
		log:       logger,
		final:     final,
		reachable: true,
	}

	for _, prm := range fn.Params {
		if _, err := coll.OnVariableInit(prm.Variable, prm.Kind); err != nil {
			return nil, err
		}
	}
	for _, v := range fn.Locals {
		coll.Declare(v)
	}
	if err := p.block(fn.Body); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *pass) block(stmts []expr.Stmt) error {
	for _, s := range stmts {
		if !p.reachable {
			return nil
		}
		if err := p.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (p *pass) stmt(s expr.Stmt) error {
	switch s := s.(type) {
	case *expr.Assign:
		value, err := p.driver.Resolve(s.Value)
		if err != nil {
			return err
		}
		s.Value = value
		if r, ok := value.(*expr.Raise); ok {
			p.raise(r)
			return nil
		}
		_, err = p.coll.OnVariableSet(s.Target, value, trustOf(value))
		return err

	case *expr.Delete:
		prev, err := p.coll.Active(s.Target)
		if err != nil {
			return err
		}
		if !prev.MustHaveValue() {
			p.coll.OnExceptionRaiseExit(shapeflow.ExceptionGeneric)
		}
		if prev.MustNotHaveValue() {
			p.reachable = false
			return nil
		}
		_, err = p.coll.OnVariableDel(s.Target)
		return err

	case *expr.ExprStmt:
		value, err := p.driver.Resolve(s.Value)
		if err != nil {
			return err
		}
		s.Value = value
		if r, ok := value.(*expr.Raise); ok {
			p.raise(r)
		}
		return nil

	case *expr.If:
		return p.branch(s)

	case *expr.Loop:
		return p.loop(s)

	case *expr.Break:
		lp, err := p.innermost("break")
		if err != nil {
			return err
		}
		lp.OnBreak()
		p.reachable = false
		return nil

	case *expr.Continue:
		lp, err := p.innermost("continue")
		if err != nil {
			return err
		}
		lp.OnContinue()
		p.reachable = false
		return nil

	case *expr.Return:
		if s.Value != nil {
			value, err := p.driver.Resolve(s.Value)
			if err != nil {
				return err
			}
			s.Value = value
			if r, ok := value.(*expr.Raise); ok {
				p.raise(r)
				return nil
			}
		}
		p.reachable = false
		return nil
	}
	return fmt.Errorf("unsupported statement %T", s)
}

// trustOf picks the trust tier of an assignment from its value.
func trustOf(value expr.Expr) trace.Trust {
	switch n := value.(type) {
	case *expr.Constant:
		if n.IsImmutable() {
			return trace.TrustVeryTrusted
		}
		return trace.TrustUnescapable
	case *expr.VariableRef:
		if n.Trace() != nil && n.Trace().AttributeNodeTrusted() != nil {
			return trace.TrustUnescapablePropagated
		}
	}
	return trace.TrustPlain
}

func (p *pass) raise(r *expr.Raise) {
	p.coll.OnExceptionRaiseExit(r.Kind)
	p.reachable = false
}

func (p *pass) innermost(what string) (*trace.Loop, error) {
	if len(p.loops) == 0 {
		return nil, fmt.Errorf("%s outside loop", what)
	}
	return p.loops[len(p.loops)-1], nil
}

// condition resolves a branch or loop condition. It reports the constant
// truth value when the condition is a literal, and whether evaluation
// continues at all.
func (p *pass) condition(cond expr.Expr) (expr.Expr, *bool, error) {
	cond, err := p.driver.Resolve(cond)
	if err != nil {
		return nil, nil, err
	}
	switch n := cond.(type) {
	case *expr.Raise:
		p.raise(n)
		return cond, nil, nil
	case *expr.Constant:
		truth := pyvalue.Truth(n.Value)
		return cond, &truth, nil
	}

	// Truth testing an opaque value may run arbitrary code.
	members := shapes.Members(cond.TypeShape())
	for _, m := range members {
		if shapes.IsOpaque(m) {
			members = nil
			break
		}
	}
	if len(members) == 0 {
		p.coll.OnExceptionRaiseExit(shapeflow.ExceptionBase)
		if err := p.coll.OnControlFlowEscape(); err != nil {
			return nil, nil, err
		}
	}
	return cond, nil, nil
}

func (p *pass) branch(s *expr.If) error {
	cond, truth, err := p.condition(s.Cond)
	if err != nil {
		return err
	}
	s.Cond = cond
	if !p.reachable {
		return nil
	}
	if truth != nil {
		if *truth {
			return p.block(s.Then)
		}
		return p.block(s.Else)
	}

	before := p.coll.Snapshot()
	var states []trace.Snapshot
	for _, body := range [][]expr.Stmt{s.Then, s.Else} {
		p.coll.Restore(before)
		p.reachable = true
		if err := p.block(body); err != nil {
			return err
		}
		if p.reachable {
			states = append(states, p.coll.Snapshot())
		}
	}
	if len(states) == 0 {
		p.reachable = false
		return nil
	}
	p.reachable = true
	return p.coll.MergeBranches(states...)
}

// loopVariables returns the variables that need header traces: those the
// loop assigns or deletes, shared variables, which any escape may change,
// and read variables not bound to a very trusted literal on entry.
func (p *pass) loopVariables(s *expr.Loop) ([]*trace.Variable, error) {
	body := append([]expr.Stmt{&expr.ExprStmt{Value: s.Cond}}, s.Body...)
	vars := expr.Targets(body)
	for _, v := range p.coll.Variables() {
		if v.Shared {
			vars = append(vars, v)
		}
	}
	for _, v := range expr.Variables(body) {
		t, err := p.coll.Active(v)
		if err != nil {
			return nil, err
		}
		if t.AttributeNodeVeryTrusted() == nil {
			vars = append(vars, v)
		}
	}
	return vars, nil
}

func (p *pass) loop(s *expr.Loop) error {
	seeds := p.o.seeds[s]
	if p.final {
		seeds = nil
	}
	vars, err := p.loopVariables(s)
	if err != nil {
		return err
	}
	lp, err := p.coll.EnterLoop(vars, seeds)
	if err != nil {
		return err
	}

	var exits []trace.Snapshot
	for iteration := 1; ; iteration++ {
		exits, err = p.iterate(s, lp)
		if err != nil {
			return err
		}
		changed, err := lp.CloseIteration()
		if err != nil {
			return err
		}
		if seeds != nil {
			// One iteration against the seed decides everything; a miss
			// widens the seed for the next pass.
			break
		}
		if !changed {
			break
		}
		if iteration >= p.o.opts.MaxLoopIterations {
			p.o.addWarning("loop did not settle after %d iterations, widening to unknown", iteration)
			if err := lp.Widen(); err != nil {
				return err
			}
			lp.Restart()
			if exits, err = p.iterate(s, lp); err != nil {
				return err
			}
			if _, err := lp.CloseIteration(); err != nil {
				return err
			}
			break
		}
		lp.Restart()
	}
	if err := lp.Complete(); err != nil {
		return err
	}
	p.recordSeeds(s, lp.Shapes())

	states := append(exits, lp.Breaks()...)
	if len(states) == 0 {
		p.reachable = false
		return nil
	}
	p.reachable = true
	return p.coll.MergeBranches(states...)
}

// iterate analyses the condition and body once from the loop header and
// returns the states leaving through a false condition.
func (p *pass) iterate(s *expr.Loop, lp *trace.Loop) ([]trace.Snapshot, error) {
	p.reachable = true
	var exits []trace.Snapshot
	if s.Cond != nil {
		cond, truth, err := p.condition(s.Cond)
		if err != nil {
			return nil, err
		}
		s.Cond = cond
		if !p.reachable {
			return nil, nil
		}
		if truth != nil && !*truth {
			return []trace.Snapshot{p.coll.Snapshot()}, nil
		}
		if truth == nil {
			exits = append(exits, p.coll.Snapshot())
		}
	}

	p.loops = append(p.loops, lp)
	defer func() { p.loops = p.loops[:len(p.loops)-1] }()
	if err := p.block(s.Body); err != nil {
		return nil, err
	}
	if p.reachable {
		lp.OnContinue()
	}
	return exits, nil
}

// recordSeeds stores the completed header shapes for the next pass.
func (p *pass) recordSeeds(s *expr.Loop, got map[*trace.Variable]shapes.Shape) {
	old := p.o.seeds[s]
	if !sameSeeds(old, got) {
		p.seedsChanged = true
		p.log.Debugf("loop seeds changed: %s", p.o.describeSeeds(got))
	}
	p.o.seeds[s] = got
}

func sameSeeds(a, b map[*trace.Variable]shapes.Shape) bool {
	if len(a) != len(b) {
		return false
	}
	for v, s := range a {
		t, ok := b[v]
		if !ok || shapes.Fingerprint(s) != shapes.Fingerprint(t) {
			return false
		}
	}
	return true
}

func (o *optimizer) describeSeeds(seeds map[*trace.Variable]shapes.Shape) string {
	items := make([]string, 0, len(seeds))
	for v, s := range seeds {
		items = append(items, v.Name+"="+s.Name())
	}
	sort.Strings(items)
	return shapeflow.TruncateList(items, o.opts.LogMaxShapes)
}
