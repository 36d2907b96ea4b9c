package expr

import "github.com/speakeasy-api/shapeflow/trace"

// Stmt is a statement node.
type Stmt interface {
	stmtNode()
}

// Assign binds Target to the value of Value.
type Assign struct {
	Target *trace.Variable
	Value  Expr
}

// Delete unbinds Target.
type Delete struct {
	Target *trace.Variable
}

// ExprStmt evaluates Value for its effects.
type ExprStmt struct {
	Value Expr
}

// If runs Then when Cond is true and Else otherwise.
type If struct {
	Cond       Expr
	Then, Else []Stmt
}

// Loop runs Body while Cond is true. A nil Cond loops until a Break.
type Loop struct {
	Cond Expr
	Body []Stmt
}

// Break leaves the innermost loop.
type Break struct{}

// Continue jumps to the header of the innermost loop.
type Continue struct{}

// Return leaves the function. Value may be nil.
type Return struct {
	Value Expr
}

func (*Assign) stmtNode()   {}
func (*Delete) stmtNode()   {}
func (*ExprStmt) stmtNode() {}
func (*If) stmtNode()       {}
func (*Loop) stmtNode()     {}
func (*Break) stmtNode()    {}
func (*Continue) stmtNode() {}
func (*Return) stmtNode()   {}

// Param is a function parameter.
type Param struct {
	Variable *trace.Variable
	Kind     trace.Kind // KindInit, KindInitStarArgs or KindInitStarDict
}

// Function is the unit the fixpoint pass optimizes. Locals lists every
// non-parameter variable the body touches, in scope construction order.
type Function struct {
	Name   string
	Params []Param
	Locals []*trace.Variable
	Body   []Stmt
}

// Variables returns the parameters followed by the locals.
func (f *Function) Variables() []*trace.Variable {
	out := make([]*trace.Variable, 0, len(f.Params)+len(f.Locals))
	for _, p := range f.Params {
		out = append(out, p.Variable)
	}
	return append(out, f.Locals...)
}

// Variables returns every variable read, assigned or deleted in stmts, in
// first-seen order.
func Variables(stmts []Stmt) []*trace.Variable {
	c := &variableCollector{seen: make(map[*trace.Variable]bool)}
	c.stmts(stmts)
	return c.out
}

// Targets returns every variable assigned or deleted in stmts, in
// first-seen order.
func Targets(stmts []Stmt) []*trace.Variable {
	c := &variableCollector{seen: make(map[*trace.Variable]bool), targetsOnly: true}
	c.stmts(stmts)
	return c.out
}

type variableCollector struct {
	seen        map[*trace.Variable]bool
	out         []*trace.Variable
	targetsOnly bool
}

func (c *variableCollector) add(v *trace.Variable) {
	if !c.seen[v] {
		c.seen[v] = true
		c.out = append(c.out, v)
	}
}

func (c *variableCollector) stmts(stmts []Stmt) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *Assign:
			c.expr(s.Value)
			c.add(s.Target)
		case *Delete:
			c.add(s.Target)
		case *ExprStmt:
			c.expr(s.Value)
		case *If:
			c.expr(s.Cond)
			c.stmts(s.Then)
			c.stmts(s.Else)
		case *Loop:
			c.expr(s.Cond)
			c.stmts(s.Body)
		case *Return:
			c.expr(s.Value)
		}
	}
}

func (c *variableCollector) expr(e Expr) {
	if c.targetsOnly {
		return
	}
	switch e := e.(type) {
	case *VariableRef:
		c.add(e.Variable)
	case *Operation:
		for _, operand := range e.Operands() {
			c.expr(operand)
		}
	}
}
