package progfile

import (
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/715d/phpflow/pkg/cfg"
)

func (d *decoder) stmt(n *yaml.Node) (cfg.Stmt, error) {
	key, v, ok := single(n)
	if !ok {
		return nil, d.errorf(n, "statement must be a single-key mapping")
	}
	switch key {
	case "expr":
		x, err := d.expr(v)
		if err != nil {
			return nil, err
		}
		return &cfg.ExprStmt{X: x}, nil
	case "return":
		if isNull(v) {
			return &cfg.ReturnStmt{}, nil
		}
		x, err := d.expr(v)
		if err != nil {
			return nil, err
		}
		return &cfg.ReturnStmt{Value: x}, nil
	case "echo":
		args, err := d.exprs(sequence(v))
		if err != nil {
			return nil, err
		}
		return &cfg.EchoStmt{Args: args}, nil
	case "unset":
		vars, err := d.exprs(sequence(v))
		if err != nil {
			return nil, err
		}
		return &cfg.UnsetStmt{Vars: vars}, nil
	case "global":
		s := &cfg.GlobalStmt{}
		for _, item := range sequence(v) {
			name, err := d.varName(item)
			if err != nil {
				return nil, err
			}
			s.Names = append(s.Names, name)
		}
		return s, nil
	case "static":
		s := &cfg.StaticStmt{}
		for _, item := range sequence(v) {
			sv, err := d.staticVar(item)
			if err != nil {
				return nil, err
			}
			s.Vars = append(s.Vars, sv)
		}
		return s, nil
	case "throw":
		x, err := d.expr(v)
		if err != nil {
			return nil, err
		}
		return &cfg.ThrowStmt{X: x}, nil
	default:
		return nil, d.errorf(n, "unknown statement kind %q", key)
	}
}

func (d *decoder) staticVar(n *yaml.Node) (cfg.StaticVar, error) {
	if n.Kind == yaml.ScalarNode {
		name, err := d.varName(n)
		return cfg.StaticVar{Name: name}, err
	}
	f, err := d.fields(n, "name", "init")
	if err != nil {
		return cfg.StaticVar{}, err
	}
	name, err := d.varName(f["name"])
	if err != nil {
		return cfg.StaticVar{}, err
	}
	init, err := d.optExpr(f["init"])
	return cfg.StaticVar{Name: name, Init: init}, err
}

func (d *decoder) edge(b *cfg.Block, n *yaml.Node) (cfg.Edge, error) {
	key, v, ok := single(n)
	if !ok {
		return nil, d.errorf(n, "edge must be a single-key mapping")
	}
	switch key {
	case "goto":
		t, err := d.target(v)
		if err != nil {
			return nil, err
		}
		return &cfg.SimpleEdge{Target: t}, nil

	case "if":
		f, err := d.fields(v, "cond", "then", "else")
		if err != nil {
			return nil, err
		}
		cond, err := d.expr(f["cond"])
		if err != nil {
			return nil, err
		}
		then, err := d.target(f["then"])
		if err != nil {
			return nil, err
		}
		els, err := d.target(f["else"])
		if err != nil {
			return nil, err
		}
		return &cfg.ConditionalEdge{Cond: cond, True: then, False: els}, nil

	case "foreach":
		f, err := d.fields(v, "over", "head")
		if err != nil {
			return nil, err
		}
		over, err := d.expr(f["over"])
		if err != nil {
			return nil, err
		}
		head, err := d.target(f["head"])
		if err != nil {
			return nil, err
		}
		e := &cfg.ForeachEnumereeEdge{Enumeree: over, Target: head}
		d.enumerees[head] = e
		return e, nil

	case "movenext":
		f, err := d.fields(v, "key", "value", "byref", "body", "exit")
		if err != nil {
			return nil, err
		}
		en, ok := d.enumerees[b]
		if !ok {
			return nil, d.errorf(n, "movenext block is not the head of a foreach")
		}
		e := &cfg.ForeachMoveNextEdge{Enumeree: en}
		if e.Key, err = d.optExpr(f["key"]); err != nil {
			return nil, err
		}
		if e.Value, err = d.expr(f["value"]); err != nil {
			return nil, err
		}
		if e.ByRef, err = d.flag(f["byref"]); err != nil {
			return nil, err
		}
		if e.Body, err = d.target(f["body"]); err != nil {
			return nil, err
		}
		if e.Exit, err = d.target(f["exit"]); err != nil {
			return nil, err
		}
		return e, nil

	case "switch":
		f, err := d.fields(v, "on", "cases", "end")
		if err != nil {
			return nil, err
		}
		e := &cfg.SwitchEdge{}
		if e.Scrutinee, err = d.expr(f["on"]); err != nil {
			return nil, err
		}
		if f["cases"] != nil {
			for _, c := range sequence(f["cases"]) {
				cf, err := d.fields(c, "value", "target")
				if err != nil {
					return nil, err
				}
				sc := cfg.SwitchCase{}
				if sc.Value, err = d.optExpr(cf["value"]); err != nil {
					return nil, err
				}
				if sc.Target, err = d.target(cf["target"]); err != nil {
					return nil, err
				}
				if sc.Target.Kind == cfg.BlockPlain {
					sc.Target.Kind = cfg.BlockCase
				}
				e.Cases = append(e.Cases, sc)
			}
		}
		if !isNull(f["end"]) {
			if e.End, err = d.target(f["end"]); err != nil {
				return nil, err
			}
		}
		return e, nil

	case "try":
		f, err := d.fields(v, "body", "catches", "finally")
		if err != nil {
			return nil, err
		}
		e := &cfg.TryEdge{}
		if e.Body, err = d.target(f["body"]); err != nil {
			return nil, err
		}
		if f["catches"] != nil {
			for _, c := range sequence(f["catches"]) {
				cb, err := d.target(c)
				if err != nil {
					return nil, err
				}
				if cb.Kind != cfg.BlockCatch {
					return nil, d.errorf(c, "block %q has no catch header", c.Value)
				}
				e.Catches = append(e.Catches, cb)
			}
		}
		if !isNull(f["finally"]) {
			if e.Finally, err = d.target(f["finally"]); err != nil {
				return nil, err
			}
		}
		return e, nil

	default:
		return nil, d.errorf(n, "unknown edge kind %q", key)
	}
}

func (d *decoder) flag(n *yaml.Node) (bool, error) {
	if isNull(n) {
		return false, nil
	}
	v, err := strconv.ParseBool(n.Value)
	if err != nil || n.Kind != yaml.ScalarNode {
		return false, d.errorf(n, "expected a boolean, got %q", n.Value)
	}
	return v, nil
}

func (d *decoder) varName(n *yaml.Node) (string, error) {
	if n == nil || n.Kind != yaml.ScalarNode || n.Value == "" {
		return "", d.errorf(n, "expected a variable name")
	}
	return strings.TrimPrefix(n.Value, "$"), nil
}

func (d *decoder) name(n *yaml.Node) (string, error) {
	if n == nil || n.Kind != yaml.ScalarNode || n.Value == "" {
		return "", d.errorf(n, "expected a name")
	}
	return n.Value, nil
}

func (d *decoder) exprs(nodes []*yaml.Node) ([]cfg.Expr, error) {
	out := make([]cfg.Expr, 0, len(nodes))
	for _, n := range nodes {
		x, err := d.expr(n)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

// optExpr decodes n, returning nil for an absent or null node.
func (d *decoder) optExpr(n *yaml.Node) (cfg.Expr, error) {
	if isNull(n) {
		return nil, nil
	}
	return d.expr(n)
}

// operands decodes the items of a sequence node of exactly want items.
func (d *decoder) operands(n *yaml.Node, kind string, want int) ([]*yaml.Node, error) {
	if n.Kind != yaml.SequenceNode || len(n.Content) != want {
		return nil, d.errorf(n, "%s takes %d operands", kind, want)
	}
	return n.Content, nil
}

func (d *decoder) expr(n *yaml.Node) (cfg.Expr, error) {
	if n == nil || n.Kind == 0 {
		return nil, d.errorf(n, "missing expression")
	}
	switch n.Kind {
	case yaml.ScalarNode:
		return d.scalar(n)
	case yaml.AliasNode:
		return d.expr(n.Alias)
	case yaml.MappingNode:
	default:
		return nil, d.errorf(n, "expected an expression")
	}

	key, v, ok := single(n)
	if !ok {
		return nil, d.errorf(n, "expression must be a scalar or a single-key mapping")
	}
	switch key {
	case "var":
		name, err := d.varName(v)
		if err != nil {
			return nil, err
		}
		return cfg.Var(name), nil
	case "int":
		i, err := strconv.ParseInt(v.Value, 0, 64)
		if err != nil {
			return nil, d.errorf(v, "invalid integer %q", v.Value)
		}
		return cfg.Int(i), nil
	case "float":
		f, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			return nil, d.errorf(v, "invalid float %q", v.Value)
		}
		return &cfg.Literal{Value: f}, nil
	case "str":
		return cfg.Str(v.Value), nil
	case "const":
		if isNull(v) {
			return &cfg.Literal{}, nil
		}
		name, err := d.name(v)
		if err != nil {
			return nil, err
		}
		return &cfg.Constant{Name: name}, nil
	case "dynvar":
		x, err := d.expr(v)
		if err != nil {
			return nil, err
		}
		return &cfg.DynamicVariable{NameExpr: x}, nil

	case "item":
		f, err := d.fields(v, "array", "index")
		if err != nil {
			return nil, err
		}
		arr, err := d.expr(f["array"])
		if err != nil {
			return nil, err
		}
		idx, err := d.optExpr(f["index"])
		if err != nil {
			return nil, err
		}
		return &cfg.ArrayItem{Array: arr, Index: idx}, nil
	case "field":
		f, err := d.fields(v, "object", "name")
		if err != nil {
			return nil, err
		}
		obj, err := d.expr(f["object"])
		if err != nil {
			return nil, err
		}
		name, err := d.name(f["name"])
		if err != nil {
			return nil, err
		}
		return &cfg.Field{Object: obj, Name: name}, nil
	case "sfield":
		f, err := d.fields(v, "class", "name")
		if err != nil {
			return nil, err
		}
		class, err := d.name(f["class"])
		if err != nil {
			return nil, err
		}
		name, err := d.varName(f["name"])
		if err != nil {
			return nil, err
		}
		return &cfg.StaticField{Class: class, Name: name}, nil

	case "array":
		return d.arrayLiteral(v)
	case "list":
		return d.list(v)

	case "bin":
		ops, err := d.operands(v, "bin", 3)
		if err != nil {
			return nil, err
		}
		op, ok := cfg.ParseBinaryOp(ops[1].Value)
		if !ok {
			return nil, d.errorf(ops[1], "unknown binary operator %q", ops[1].Value)
		}
		l, err := d.expr(ops[0])
		if err != nil {
			return nil, err
		}
		r, err := d.expr(ops[2])
		if err != nil {
			return nil, err
		}
		return &cfg.Binary{Op: op, Left: l, Right: r}, nil
	case "un":
		ops, err := d.operands(v, "un", 2)
		if err != nil {
			return nil, err
		}
		op, ok := cfg.ParseUnaryOp(ops[0].Value)
		if !ok {
			return nil, d.errorf(ops[0], "unknown unary operator %q", ops[0].Value)
		}
		x, err := d.expr(ops[1])
		if err != nil {
			return nil, err
		}
		return &cfg.Unary{Op: op, Operand: x}, nil

	case "assign", "assignref":
		ops, err := d.operands(v, key, 2)
		if err != nil {
			return nil, err
		}
		t, err := d.expr(ops[0])
		if err != nil {
			return nil, err
		}
		x, err := d.expr(ops[1])
		if err != nil {
			return nil, err
		}
		return &cfg.Assign{Target: t, Value: x, ByRef: key == "assignref"}, nil
	case "compound":
		ops, err := d.operands(v, "compound", 3)
		if err != nil {
			return nil, err
		}
		op, ok := cfg.ParseBinaryOp(strings.TrimSuffix(ops[1].Value, "="))
		if !ok || !strings.HasSuffix(ops[1].Value, "=") {
			return nil, d.errorf(ops[1], "unknown compound operator %q", ops[1].Value)
		}
		t, err := d.expr(ops[0])
		if err != nil {
			return nil, err
		}
		x, err := d.expr(ops[2])
		if err != nil {
			return nil, err
		}
		return &cfg.CompoundAssign{Op: op, Target: t, Value: x}, nil
	case "inc", "dec", "postinc", "postdec":
		t, err := d.expr(v)
		if err != nil {
			return nil, err
		}
		return &cfg.IncDec{
			Target:    t,
			Increment: strings.HasSuffix(key, "inc"),
			Postfix:   strings.HasPrefix(key, "post"),
		}, nil

	case "cond":
		ops, err := d.operands(v, "cond", 3)
		if err != nil {
			return nil, err
		}
		c, err := d.expr(ops[0])
		if err != nil {
			return nil, err
		}
		then, err := d.optExpr(ops[1])
		if err != nil {
			return nil, err
		}
		els, err := d.expr(ops[2])
		if err != nil {
			return nil, err
		}
		return &cfg.Conditional{Cond: c, Then: then, Else: els}, nil
	case "cast":
		ops, err := d.operands(v, "cast", 2)
		if err != nil {
			return nil, err
		}
		kind, ok := cfg.ParseCastKind(ops[0].Value)
		if !ok {
			return nil, d.errorf(ops[0], "unknown cast %q", ops[0].Value)
		}
		x, err := d.expr(ops[1])
		if err != nil {
			return nil, err
		}
		return &cfg.Cast{To: kind, Operand: x}, nil
	case "instanceof":
		ops, err := d.operands(v, "instanceof", 2)
		if err != nil {
			return nil, err
		}
		x, err := d.expr(ops[0])
		if err != nil {
			return nil, err
		}
		class, err := d.name(ops[1])
		if err != nil {
			return nil, err
		}
		return &cfg.InstanceOf{Operand: x, Class: class}, nil
	case "isset":
		vars, err := d.exprs(sequence(v))
		if err != nil {
			return nil, err
		}
		return &cfg.Isset{Vars: vars}, nil
	case "empty":
		x, err := d.expr(v)
		if err != nil {
			return nil, err
		}
		return &cfg.Empty{Operand: x}, nil

	case "call":
		items := sequence(v)
		if len(items) == 0 {
			return nil, d.errorf(v, "call needs a function name")
		}
		name, err := d.name(items[0])
		if err != nil {
			return nil, err
		}
		args, err := d.args(items[1:])
		if err != nil {
			return nil, err
		}
		return &cfg.Call{Name: name, Args: args}, nil
	case "mcall":
		items := sequence(v)
		if len(items) < 2 {
			return nil, d.errorf(v, "mcall needs an object and a method name")
		}
		obj, err := d.expr(items[0])
		if err != nil {
			return nil, err
		}
		name, err := d.name(items[1])
		if err != nil {
			return nil, err
		}
		args, err := d.args(items[2:])
		if err != nil {
			return nil, err
		}
		return &cfg.MethodCall{Object: obj, Name: name, Args: args}, nil
	case "scall":
		items := sequence(v)
		if len(items) < 2 {
			return nil, d.errorf(v, "scall needs a class and a method name")
		}
		class, err := d.name(items[0])
		if err != nil {
			return nil, err
		}
		name, err := d.name(items[1])
		if err != nil {
			return nil, err
		}
		args, err := d.args(items[2:])
		if err != nil {
			return nil, err
		}
		return &cfg.StaticCall{Class: class, Name: name, Args: args}, nil
	case "new":
		items := sequence(v)
		if len(items) == 0 {
			return nil, d.errorf(v, "new needs a class name")
		}
		class, err := d.name(items[0])
		if err != nil {
			return nil, err
		}
		args, err := d.args(items[1:])
		if err != nil {
			return nil, err
		}
		return &cfg.New{Class: class, Args: args}, nil

	case "closure":
		c := &cfg.Closure{}
		for _, u := range sequence(v) {
			name, err := d.name(u)
			if err != nil {
				return nil, err
			}
			byRef := strings.HasPrefix(name, "&")
			c.Uses = append(c.Uses, cfg.ClosureUse{
				Name:  strings.TrimPrefix(strings.TrimPrefix(name, "&"), "$"),
				ByRef: byRef,
			})
		}
		return c, nil
	case "include":
		x, err := d.expr(v)
		if err != nil {
			return nil, err
		}
		return &cfg.Include{Path: x}, nil
	case "eval":
		x, err := d.expr(v)
		if err != nil {
			return nil, err
		}
		return &cfg.Eval{Code: x}, nil
	case "exit":
		x, err := d.optExpr(v)
		if err != nil {
			return nil, err
		}
		return &cfg.Exit{Status: x}, nil

	default:
		return nil, d.errorf(n, "unknown expression kind %q", key)
	}
}

// scalar decodes a plain scalar: $name is a variable, anything else is a
// literal of the scalar's resolved YAML type.
func (d *decoder) scalar(n *yaml.Node) (cfg.Expr, error) {
	switch n.ShortTag() {
	case "!!null":
		return &cfg.Literal{}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, d.errorf(n, "invalid boolean %q", n.Value)
		}
		return &cfg.Literal{Value: b}, nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, d.errorf(n, "invalid integer %q", n.Value)
		}
		return cfg.Int(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, d.errorf(n, "invalid float %q", n.Value)
		}
		return &cfg.Literal{Value: f}, nil
	}
	if name, ok := strings.CutPrefix(n.Value, "$"); ok && name != "" {
		return cfg.Var(name), nil
	}
	return cfg.Str(n.Value), nil
}

func (d *decoder) args(nodes []*yaml.Node) ([]cfg.Argument, error) {
	out := make([]cfg.Argument, 0, len(nodes))
	for _, n := range nodes {
		if key, v, ok := single(n); ok && key == "unpack" {
			x, err := d.expr(v)
			if err != nil {
				return nil, err
			}
			out = append(out, cfg.Argument{Value: x, Unpack: true})
			continue
		}
		x, err := d.expr(n)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg.Argument{Value: x})
	}
	return out, nil
}

// hasKey reports whether the mapping n has the key.
func hasKey(n *yaml.Node, key string) bool {
	if n.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return true
		}
	}
	return false
}

func (d *decoder) arrayLiteral(n *yaml.Node) (cfg.Expr, error) {
	lit := &cfg.ArrayLiteral{}
	for _, item := range sequence(n) {
		if !hasKey(item, "value") {
			x, err := d.expr(item)
			if err != nil {
				return nil, err
			}
			lit.Items = append(lit.Items, cfg.ArrayElement{Value: x})
			continue
		}
		f, err := d.fields(item, "key", "value", "byref", "spread")
		if err != nil {
			return nil, err
		}
		el := cfg.ArrayElement{}
		if el.Key, err = d.optExpr(f["key"]); err != nil {
			return nil, err
		}
		if el.Value, err = d.expr(f["value"]); err != nil {
			return nil, err
		}
		if el.ByRef, err = d.flag(f["byref"]); err != nil {
			return nil, err
		}
		if el.Spread, err = d.flag(f["spread"]); err != nil {
			return nil, err
		}
		lit.Items = append(lit.Items, el)
	}
	return lit, nil
}

func (d *decoder) list(n *yaml.Node) (cfg.Expr, error) {
	l := &cfg.List{}
	for _, item := range sequence(n) {
		if isNull(item) {
			l.Items = append(l.Items, cfg.ListItem{})
			continue
		}
		if !hasKey(item, "target") {
			x, err := d.expr(item)
			if err != nil {
				return nil, err
			}
			l.Items = append(l.Items, cfg.ListItem{Target: x})
			continue
		}
		f, err := d.fields(item, "key", "target", "byref")
		if err != nil {
			return nil, err
		}
		li := cfg.ListItem{}
		if li.Key, err = d.optExpr(f["key"]); err != nil {
			return nil, err
		}
		if li.Target, err = d.expr(f["target"]); err != nil {
			return nil, err
		}
		if li.ByRef, err = d.flag(f["byref"]); err != nil {
			return nil, err
		}
		l.Items = append(l.Items, li)
	}
	return l, nil
}
