// Package pyfmt prints functions of the expression model as source text,
// optionally annotated with the shapes and escapes the optimizer resolved.
package pyfmt

import (
	"fmt"
	"strings"

	"github.com/speakeasy-api/shapeflow/expr"
	"github.com/speakeasy-api/shapeflow/trace"
)

type Config struct {
	// Indent is the number of spaces per block level.
	Indent int
	// Annotate appends the resolved shape and escape of the outermost
	// operation of each statement as a trailing comment.
	Annotate bool
}

// DefaultConfig indents by four spaces without annotations.
func DefaultConfig() Config {
	return Config{Indent: 4}
}

func ValidateConfig(cfg Config) (Config, error) {
	if cfg.Indent < 1 || cfg.Indent > 16 {
		return cfg, fmt.Errorf("invalid indent %d; must be between 1 and 16", cfg.Indent)
	}
	return cfg, nil
}

type printer struct {
	cfg Config
	b   strings.Builder
}

// Format prints fn.
func Format(fn *expr.Function, cfg Config) (string, error) {
	cfg, err := ValidateConfig(cfg)
	if err != nil {
		return "", err
	}
	if fn == nil {
		return "", fmt.Errorf("no function to format")
	}
	p := &printer{cfg: cfg}

	params := make([]string, len(fn.Params))
	for i, param := range fn.Params {
		switch param.Kind {
		case trace.KindInitStarArgs:
			params[i] = "*" + param.Variable.Name
		case trace.KindInitStarDict:
			params[i] = "**" + param.Variable.Name
		default:
			params[i] = param.Variable.Name
		}
	}
	p.line(0, fmt.Sprintf("def %s(%s):", fn.Name, strings.Join(params, ", ")), nil)

	var shared []string
	for _, v := range fn.Locals {
		if v.Shared {
			shared = append(shared, v.Name)
		}
	}
	if len(shared) > 0 {
		p.line(1, "global "+strings.Join(shared, ", "), nil)
	}

	if len(fn.Body) == 0 {
		p.line(1, "pass", nil)
	}
	p.block(1, fn.Body)
	return p.b.String(), nil
}

func (p *printer) block(depth int, stmts []expr.Stmt) {
	for _, s := range stmts {
		p.stmt(depth, s)
	}
}

func (p *printer) body(depth int, stmts []expr.Stmt) {
	if len(stmts) == 0 {
		p.line(depth, "pass", nil)
		return
	}
	p.block(depth, stmts)
}

func (p *printer) stmt(depth int, s expr.Stmt) {
	switch s := s.(type) {
	case *expr.Assign:
		if r, ok := s.Value.(*expr.Raise); ok {
			p.line(depth, r.String(), nil)
			return
		}
		p.line(depth, s.Target.Name+" = "+exprString(s.Value), s.Value)
	case *expr.Delete:
		p.line(depth, "del "+s.Target.Name, nil)
	case *expr.ExprStmt:
		p.line(depth, exprString(s.Value), s.Value)
	case *expr.If:
		p.line(depth, "if "+exprString(s.Cond)+":", s.Cond)
		p.body(depth+1, s.Then)
		if len(s.Else) > 0 {
			p.line(depth, "else:", nil)
			p.block(depth+1, s.Else)
		}
	case *expr.Loop:
		if s.Cond == nil {
			p.line(depth, "while True:", nil)
		} else {
			p.line(depth, "while "+exprString(s.Cond)+":", s.Cond)
		}
		p.body(depth+1, s.Body)
	case *expr.Break:
		p.line(depth, "break", nil)
	case *expr.Continue:
		p.line(depth, "continue", nil)
	case *expr.Return:
		if s.Value == nil {
			p.line(depth, "return", nil)
			return
		}
		p.line(depth, "return "+exprString(s.Value), s.Value)
	default:
		p.line(depth, fmt.Sprintf("# unknown statement %T", s), nil)
	}
}

func (p *printer) line(depth int, text string, e expr.Expr) {
	p.b.WriteString(strings.Repeat(" ", depth*p.cfg.Indent))
	p.b.WriteString(text)
	if p.cfg.Annotate {
		if op, ok := e.(*expr.Operation); ok && op.Resolved() {
			fmt.Fprintf(&p.b, "  # %s, %s", op.TypeShape().Name(), op.Escape())
		}
	}
	p.b.WriteByte('\n')
}

// exprString drops the outer parentheses operations print with.
func exprString(e expr.Expr) string {
	s := e.String()
	if _, ok := e.(*expr.Operation); ok && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		return s[1 : len(s)-1]
	}
	return s
}
