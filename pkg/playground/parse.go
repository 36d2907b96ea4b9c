package playground

import (
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/speakeasy-api/shapeflow"
	"github.com/speakeasy-api/shapeflow/expr"
	"github.com/speakeasy-api/shapeflow/pyvalue"
	"github.com/speakeasy-api/shapeflow/trace"
	"gopkg.in/yaml.v3"
)

// FunctionExtension carries a function description on an OpenAPI schema.
const FunctionExtension = "x-shapeflow-function"

var (
	identRe  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	bigIntRe = regexp.MustCompile(`^[-+]?[0-9]+$`)
)

// scope declares the variables of one function. Names that are neither
// parameters nor declared become locals on first use.
type scope struct {
	owner string
	vars  map[string]*trace.Variable
	fn    *expr.Function
}

func (s *scope) declare(name string, shared bool) (*trace.Variable, error) {
	if !identRe.MatchString(name) {
		return nil, fmt.Errorf("invalid variable name %q", name)
	}
	if _, ok := s.vars[name]; ok {
		return nil, fmt.Errorf("variable %q declared twice", name)
	}
	v := trace.NewVariable(s.owner, name, shared)
	s.vars[name] = v
	return v, nil
}

func (s *scope) lookup(name string) (*trace.Variable, error) {
	if v, ok := s.vars[name]; ok {
		return v, nil
	}
	v, err := s.declare(name, false)
	if err != nil {
		return nil, err
	}
	s.fn.Locals = append(s.fn.Locals, v)
	return v, nil
}

// ParseSource parses a YAML function description.
func ParseSource(src string) (*expr.Function, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse function: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("function source is empty")
	}
	return ParseFunction(doc.Content[0])
}

// ParseFunction builds a function from its description:
//
//	name: f
//	params: [n, "*args", "**kwargs"]
//	locals: [x]
//	shared: [total]
//	body:
//	  - assign: x
//	    value: {Add: [n, 1]}
//	  - return: x
func ParseFunction(node *yaml.Node) (*expr.Function, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("function must be an object")
	}

	var name string
	var params, locals, shared []string
	var body *yaml.Node
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		var err error
		switch key.Value {
		case "name":
			if value.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: 'name' must be a string", value.Line)
			}
			name = strings.TrimSpace(value.Value)
		case "params":
			params, err = names(value)
		case "locals":
			locals, err = names(value)
		case "shared":
			shared, err = names(value)
		case "body":
			body = value
		default:
			return nil, fmt.Errorf("line %d: unknown function key %q", key.Line, key.Value)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key.Value, err)
		}
	}
	if !identRe.MatchString(name) {
		return nil, fmt.Errorf("function requires a valid 'name', got %q", name)
	}

	fn := &expr.Function{Name: name}
	s := &scope{owner: name, vars: make(map[string]*trace.Variable), fn: fn}
	for _, p := range params {
		kind := trace.KindInit
		switch {
		case strings.HasPrefix(p, "**"):
			kind, p = trace.KindInitStarDict, p[2:]
		case strings.HasPrefix(p, "*"):
			kind, p = trace.KindInitStarArgs, p[1:]
		}
		v, err := s.declare(p, false)
		if err != nil {
			return nil, fmt.Errorf("params: %w", err)
		}
		fn.Params = append(fn.Params, expr.Param{Variable: v, Kind: kind})
	}
	for _, group := range []struct {
		names  []string
		shared bool
	}{{locals, false}, {shared, true}} {
		for _, n := range group.names {
			v, err := s.declare(n, group.shared)
			if err != nil {
				return nil, err
			}
			fn.Locals = append(fn.Locals, v)
		}
	}

	if body != nil {
		stmts, err := s.block(body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		fn.Body = stmts
	}
	return fn, nil
}

func names(node *yaml.Node) ([]string, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: expected a list of names", node.Line)
	}
	out := make([]string, 0, len(node.Content))
	for _, n := range node.Content {
		if n.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: expected a name", n.Line)
		}
		out = append(out, strings.TrimSpace(n.Value))
	}
	return out, nil
}

func (s *scope) block(node *yaml.Node) ([]expr.Stmt, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: a block must be a list of statements", node.Line)
	}
	stmts := make([]expr.Stmt, 0, len(node.Content))
	for _, n := range node.Content {
		st, err := s.stmt(n)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, st)
	}
	return stmts, nil
}

// fields indexes a mapping node by key.
func fields(node *yaml.Node) map[string]*yaml.Node {
	out := make(map[string]*yaml.Node, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		out[node.Content[i].Value] = node.Content[i+1]
	}
	return out
}

func (s *scope) stmt(node *yaml.Node) (expr.Stmt, error) {
	if node.Kind == yaml.ScalarNode {
		switch node.Value {
		case "break":
			return &expr.Break{}, nil
		case "continue":
			return &expr.Continue{}, nil
		case "return":
			return &expr.Return{}, nil
		case "pass":
			return &expr.ExprStmt{Value: expr.NewConstant(pyvalue.None)}, nil
		}
		return nil, fmt.Errorf("line %d: unknown statement %q", node.Line, node.Value)
	}
	if node.Kind != yaml.MappingNode || len(node.Content) == 0 {
		return nil, fmt.Errorf("line %d: a statement must be an object or a keyword", node.Line)
	}

	f := fields(node)
	switch key := node.Content[0].Value; key {
	case "assign":
		target, err := s.target(f["assign"])
		if err != nil {
			return nil, err
		}
		value, err := s.required(f, "value", node)
		if err != nil {
			return nil, err
		}
		return &expr.Assign{Target: target, Value: value}, nil
	case "del":
		target, err := s.target(f["del"])
		if err != nil {
			return nil, err
		}
		return &expr.Delete{Target: target}, nil
	case "expr":
		value, err := s.expr(f["expr"])
		if err != nil {
			return nil, err
		}
		return &expr.ExprStmt{Value: value}, nil
	case "if":
		cond, err := s.expr(f["if"])
		if err != nil {
			return nil, err
		}
		st := &expr.If{Cond: cond}
		if n, ok := f["then"]; ok {
			if st.Then, err = s.block(n); err != nil {
				return nil, err
			}
		}
		if n, ok := f["else"]; ok {
			if st.Else, err = s.block(n); err != nil {
				return nil, err
			}
		}
		return st, nil
	case "while", "loop":
		st := &expr.Loop{}
		if key == "while" {
			cond, err := s.expr(f["while"])
			if err != nil {
				return nil, err
			}
			st.Cond = cond
		}
		bodyNode := f["body"]
		if key == "loop" {
			bodyNode = f["loop"]
		}
		if bodyNode != nil {
			var err error
			if st.Body, err = s.block(bodyNode); err != nil {
				return nil, err
			}
		}
		return st, nil
	case "return":
		n := f["return"]
		if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
			return &expr.Return{}, nil
		}
		value, err := s.expr(n)
		if err != nil {
			return nil, err
		}
		return &expr.Return{Value: value}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown statement %q", node.Line, key)
	}
}

func (s *scope) required(f map[string]*yaml.Node, key string, node *yaml.Node) (expr.Expr, error) {
	n, ok := f[key]
	if !ok {
		return nil, fmt.Errorf("line %d: statement requires %q", node.Line, key)
	}
	return s.expr(n)
}

func (s *scope) target(node *yaml.Node) (*trace.Variable, error) {
	if node.Kind != yaml.ScalarNode || node.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle) != 0 {
		return nil, fmt.Errorf("line %d: target must be a variable name", node.Line)
	}
	return s.lookup(node.Value)
}

// expr parses an expression. Plain scalars name variables unless YAML
// resolves them to numbers, booleans or null; quoted scalars are strings.
// Single-key objects apply an operator by name or build a container
// constant.
func (s *scope) expr(node *yaml.Node) (expr.Expr, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!str" && node.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle) == 0 {
			v, err := s.lookup(node.Value)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", node.Line, err)
			}
			return expr.NewVariableRef(v), nil
		}
		v, err := constant(node)
		if err != nil {
			return nil, err
		}
		return expr.NewConstant(v), nil
	case yaml.SequenceNode:
		v, err := constant(node)
		if err != nil {
			return nil, err
		}
		return expr.NewConstant(v), nil
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return nil, fmt.Errorf("line %d: an expression object must have exactly one key", node.Line)
		}
		key, arg := node.Content[0].Value, node.Content[1]
		if _, ok := containers[key]; ok {
			v, err := constant(node)
			if err != nil {
				return nil, err
			}
			return expr.NewConstant(v), nil
		}
		op, err := shapeflow.ParseOperator(key)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		if op.IsUnary() {
			operand, err := s.expr(arg)
			if err != nil {
				return nil, err
			}
			return expr.NewUnary(op, operand), nil
		}
		if arg.Kind != yaml.SequenceNode || len(arg.Content) != 2 {
			return nil, fmt.Errorf("line %d: %s takes two operands", node.Line, op)
		}
		left, err := s.expr(arg.Content[0])
		if err != nil {
			return nil, err
		}
		right, err := s.expr(arg.Content[1])
		if err != nil {
			return nil, err
		}
		return expr.NewBinary(op, left, right), nil
	}
	return nil, fmt.Errorf("line %d: unsupported expression", node.Line)
}

var containers = map[string]bool{
	"str": true, "bytes": true, "bytearray": true, "list": true, "tuple": true,
	"set": true, "frozenset": true, "dict": true, "complex": true,
}

// constant parses a literal. Unlike expressions, plain scalars are strings.
func constant(node *yaml.Node) (pyvalue.Value, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return scalar(node)
	case yaml.SequenceNode:
		items, err := constants(node.Content)
		if err != nil {
			return nil, err
		}
		return pyvalue.NewList(items...), nil
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return nil, fmt.Errorf("line %d: a constant object must have exactly one key", node.Line)
		}
		return container(node.Content[0].Value, node.Content[1])
	}
	return nil, fmt.Errorf("line %d: unsupported constant", node.Line)
}

func scalar(node *yaml.Node) (pyvalue.Value, error) {
	switch node.Tag {
	case "!!null":
		return pyvalue.None, nil
	case "!!bool":
		b, err := strconv.ParseBool(strings.ToLower(node.Value))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid bool %q", node.Line, node.Value)
		}
		return pyvalue.Bool(b), nil
	case "!!int":
		n, ok := new(big.Int).SetString(node.Value, 0)
		if !ok {
			return nil, fmt.Errorf("line %d: invalid int %q", node.Line, node.Value)
		}
		return pyvalue.NewBigInt(n), nil
	case "!!float":
		// YAML resolves integers beyond 64 bits as floats.
		if bigIntRe.MatchString(node.Value) {
			n, _ := new(big.Int).SetString(node.Value, 10)
			return pyvalue.NewBigInt(n), nil
		}
		f, err := parseFloat(node.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid float %q", node.Line, node.Value)
		}
		return pyvalue.Float(f), nil
	}
	return pyvalue.Str(node.Value), nil
}

func parseFloat(s string) (float64, error) {
	switch strings.ToLower(s) {
	case ".inf", "+.inf":
		s = "inf"
	case "-.inf":
		s = "-inf"
	case ".nan":
		s = "nan"
	}
	return strconv.ParseFloat(s, 64)
}

func constants(nodes []*yaml.Node) ([]pyvalue.Value, error) {
	out := make([]pyvalue.Value, 0, len(nodes))
	for _, n := range nodes {
		v, err := constant(n)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func container(kind string, node *yaml.Node) (pyvalue.Value, error) {
	switch kind {
	case "str", "bytes", "bytearray", "complex":
		if node.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: %s takes a scalar", node.Line, kind)
		}
		switch kind {
		case "str":
			return pyvalue.Str(node.Value), nil
		case "bytes":
			return pyvalue.Bytes(node.Value), nil
		case "bytearray":
			return pyvalue.NewByteArray([]byte(node.Value)), nil
		}
		c, err := strconv.ParseComplex(node.Value, 128)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid complex %q", node.Line, node.Value)
		}
		return pyvalue.Complex(c), nil
	case "dict":
		if node.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("line %d: dict takes an object", node.Line)
		}
		pairs, err := constants(node.Content)
		if err != nil {
			return nil, err
		}
		d, err := pyvalue.NewDict(pairs...)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return d, nil
	}

	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: %s takes a list", node.Line, kind)
	}
	items, err := constants(node.Content)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "list":
		return pyvalue.NewList(items...), nil
	case "tuple":
		return pyvalue.Tuple(items), nil
	case "set":
		v, err := pyvalue.NewSet(items...)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return v, nil
	case "frozenset":
		v, err := pyvalue.NewFrozenSet(items...)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("line %d: unknown constant kind %q", node.Line, kind)
}
