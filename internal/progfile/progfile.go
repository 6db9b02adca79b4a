// Package progfile decodes the YAML description of a control-flow-graph
// program into a cfg.Program. It stands in for a PHP front end in tests
// and in the command line tool.
//
// A file lists library routines (declared return types, no body), free
// routines and classes:
//
//	library:
//	  - {name: strlen, returns: int, params: [{name: s}]}
//	routines:
//	  - name: main
//	    entry: true
//	    blocks:
//	      - name: start
//	        stmts:
//	          - expr: {assign: [$x, 1]}
//	          - return: $x
//	        next: {goto: exit}
//	classes:
//	  - {name: B, extends: A, methods: [...]}
//
// The first block of a routine is its start block; the label "exit" names
// the implicit exit block. Expressions are written as scalars ($name is a
// variable, other scalars are literals of their YAML type) or as
// single-key maps such as {bin: [$x, "+", 1]} or {call: [f, $x]}. An empty
// return statement returns no value; the null literal is {const: null}.
package progfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/715d/phpflow/pkg/cfg"
)

// ExitLabel names the exit block of every routine.
const ExitLabel = "exit"

// Error is a positioned decoding error.
type Error struct {
	Line    int
	Routine string
	Block   string
	Msg     string
}

func (e *Error) Error() string {
	var parts, where []string
	if e.Line > 0 {
		parts = append(parts, fmt.Sprintf("line %d", e.Line))
	}
	if e.Routine != "" {
		where = append(where, fmt.Sprintf("routine %q", e.Routine))
	}
	if e.Block != "" {
		where = append(where, fmt.Sprintf("block %q", e.Block))
	}
	if len(where) > 0 {
		parts = append(parts, strings.Join(where, " "))
	}
	parts = append(parts, e.Msg)
	return strings.Join(parts, ": ")
}

type file struct {
	Library  []libraryDecl `yaml:"library"`
	Routines []yaml.Node   `yaml:"routines"`
	Classes  []classDecl   `yaml:"classes"`
}

type libraryDecl struct {
	Name    string      `yaml:"name"`
	Returns string      `yaml:"returns"`
	Params  []paramDecl `yaml:"params"`
}

type classDecl struct {
	Name    string      `yaml:"name"`
	Extends string      `yaml:"extends"`
	Methods []yaml.Node `yaml:"methods"`
}

type routineDecl struct {
	Name    string      `yaml:"name"`
	Entry   bool        `yaml:"entry"`
	Static  bool        `yaml:"static"`
	Returns string      `yaml:"returns"`
	Params  []paramDecl `yaml:"params"`
	Blocks  []yaml.Node `yaml:"blocks"`
}

type paramDecl struct {
	Name     string    `yaml:"name"`
	Type     string    `yaml:"type"`
	ByRef    bool      `yaml:"byref"`
	Variadic bool      `yaml:"variadic"`
	Default  yaml.Node `yaml:"default"`
}

type blockDecl struct {
	Name  string      `yaml:"name"`
	Catch *catchDecl  `yaml:"catch"`
	Stmts []yaml.Node `yaml:"stmts"`
	Next  yaml.Node   `yaml:"next"`
}

type catchDecl struct {
	Var  string `yaml:"var"`
	Type string `yaml:"type"`
}

// Load reads and decodes the program file at path.
func Load(path string) (*cfg.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open program: %w", err)
	}
	defer f.Close()

	p, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Decode decodes one program description.
func Decode(r io.Reader) (*cfg.Program, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("decode program: empty document")
		}
		return nil, fmt.Errorf("decode program: %w", err)
	}

	p := &cfg.Program{}
	for _, l := range f.Library {
		if l.Name == "" {
			return nil, &Error{Msg: "library routine without name"}
		}
		r := &cfg.Routine{Name: l.Name, ReturnHint: l.Returns}
		d := &decoder{routine: l.Name}
		params, err := d.params(l.Params)
		if err != nil {
			return nil, err
		}
		r.Params = params
		p.Library = append(p.Library, r)
	}
	for i := range f.Routines {
		r, err := decodeRoutine(&f.Routines[i], "")
		if err != nil {
			return nil, err
		}
		p.Routines = append(p.Routines, r)
	}
	for _, c := range f.Classes {
		if c.Name == "" {
			return nil, &Error{Msg: "class without name"}
		}
		class := &cfg.Class{Name: c.Name, Extends: c.Extends}
		for i := range c.Methods {
			m, err := decodeRoutine(&c.Methods[i], c.Name)
			if err != nil {
				return nil, err
			}
			class.Methods = append(class.Methods, m)
		}
		p.Classes = append(p.Classes, class)
	}
	return p, nil
}

// decoder holds the position of the routine and block being decoded.
type decoder struct {
	routine string
	block   string

	graph  *cfg.Graph
	labels map[string]*cfg.Block
	// enumerees links foreach heads to the edge evaluating their collection.
	enumerees map[*cfg.Block]*cfg.ForeachEnumereeEdge
}

func (d *decoder) errorf(n *yaml.Node, format string, args ...any) error {
	e := &Error{Routine: d.routine, Block: d.block, Msg: fmt.Sprintf(format, args...)}
	if n != nil {
		e.Line = n.Line
	}
	return e
}

func decodeRoutine(n *yaml.Node, class string) (*cfg.Routine, error) {
	var decl routineDecl
	if err := n.Decode(&decl); err != nil {
		return nil, fmt.Errorf("decode routine: %w", err)
	}
	d := &decoder{routine: decl.Name}
	if class != "" {
		d.routine = class + "::" + decl.Name
	}
	if decl.Name == "" {
		return nil, d.errorf(n, "routine without name")
	}
	if len(decl.Blocks) == 0 {
		return nil, d.errorf(n, "routine has no blocks")
	}

	r := &cfg.Routine{
		Name:       decl.Name,
		Class:      class,
		Static:     decl.Static,
		Entry:      decl.Entry,
		ReturnHint: decl.Returns,
	}
	params, err := d.params(decl.Params)
	if err != nil {
		return nil, err
	}
	r.Params = params

	if err := d.graphOf(r, decl.Blocks); err != nil {
		return nil, err
	}
	return r, nil
}

func (d *decoder) params(decls []paramDecl) ([]*cfg.Param, error) {
	out := make([]*cfg.Param, 0, len(decls))
	for _, pd := range decls {
		name := strings.TrimPrefix(pd.Name, "$")
		if name == "" {
			return nil, d.errorf(&pd.Default, "parameter without name")
		}
		p := &cfg.Param{Name: name, TypeHint: pd.Type, ByRef: pd.ByRef, Variadic: pd.Variadic}
		if pd.Default.Kind != 0 {
			def, err := d.expr(&pd.Default)
			if err != nil {
				return nil, err
			}
			p.Default = def
		}
		out = append(out, p)
	}
	return out, nil
}

// graphOf builds the graph of r in two passes: blocks are created first so
// that edges may name blocks declared later.
func (d *decoder) graphOf(r *cfg.Routine, nodes []yaml.Node) error {
	d.graph = cfg.NewGraph(r)
	d.graph.Exit.Label = ExitLabel
	d.labels = map[string]*cfg.Block{ExitLabel: d.graph.Exit}
	d.enumerees = make(map[*cfg.Block]*cfg.ForeachEnumereeEdge)

	decls := make([]blockDecl, len(nodes))
	blocks := make([]*cfg.Block, len(nodes))
	for i := range nodes {
		n := &nodes[i]
		if err := n.Decode(&decls[i]); err != nil {
			return d.errorf(n, "decode block: %v", err)
		}
		decl := &decls[i]
		d.block = decl.Name
		if decl.Name == ExitLabel {
			return d.errorf(n, "block label %q is reserved", ExitLabel)
		}
		if _, dup := d.labels[decl.Name]; dup && decl.Name != "" {
			return d.errorf(n, "duplicate block label")
		}

		var b *cfg.Block
		switch {
		case i == 0:
			if decl.Catch != nil {
				return d.errorf(n, "start block cannot be a catch block")
			}
			b = d.graph.Start
		case decl.Catch != nil:
			b = d.graph.NewCatchBlock(strings.TrimPrefix(decl.Catch.Var, "$"), decl.Catch.Type)
		default:
			b = d.graph.NewBlock()
		}
		b.Label = decl.Name
		if decl.Name != "" {
			d.labels[decl.Name] = b
		}
		blocks[i] = b
	}

	var moveNext []int
	for i, decl := range decls {
		d.block = blocks[i].Name()
		for j := range decl.Stmts {
			s, err := d.stmt(&decl.Stmts[j])
			if err != nil {
				return err
			}
			blocks[i].Stmts = append(blocks[i].Stmts, s)
		}
		if isNull(&decl.Next) {
			continue
		}
		if key, _, ok := single(&decl.Next); ok && key == "movenext" {
			moveNext = append(moveNext, i)
			continue
		}
		next, err := d.edge(blocks[i], &decl.Next)
		if err != nil {
			return err
		}
		blocks[i].Next = next
	}
	for _, i := range moveNext {
		d.block = blocks[i].Name()
		next, err := d.edge(blocks[i], &decls[i].Next)
		if err != nil {
			return err
		}
		blocks[i].Next = next
	}
	d.block = ""
	return nil
}

func (d *decoder) target(n *yaml.Node) (*cfg.Block, error) {
	if n == nil {
		return nil, d.errorf(nil, "missing block reference")
	}
	if n.Kind != yaml.ScalarNode {
		return nil, d.errorf(n, "block reference must be a label")
	}
	b, ok := d.labels[n.Value]
	if !ok {
		return nil, d.errorf(n, "unknown block %q", n.Value)
	}
	return b, nil
}

// single returns the key and value of a one-entry mapping.
func single(n *yaml.Node) (string, *yaml.Node, bool) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return "", nil, false
	}
	return n.Content[0].Value, n.Content[1], true
}

// fields returns the entries of a mapping, rejecting keys not in allowed.
func (d *decoder) fields(n *yaml.Node, allowed ...string) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, d.errorf(n, "expected a mapping with keys %s", strings.Join(allowed, ", "))
	}
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		known := false
		for _, a := range allowed {
			if key.Value == a {
				known = true
				break
			}
		}
		if !known {
			return nil, d.errorf(key, "unknown key %q", key.Value)
		}
		out[key.Value] = n.Content[i+1]
	}
	return out, nil
}

// sequence returns the items of n; a scalar counts as a one-item list.
func sequence(n *yaml.Node) []*yaml.Node {
	switch n.Kind {
	case yaml.SequenceNode:
		return n.Content
	case yaml.ScalarNode:
		if n.ShortTag() == "!!null" {
			return nil
		}
	}
	return []*yaml.Node{n}
}

func isNull(n *yaml.Node) bool {
	return n == nil || n.Kind == 0 || (n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null")
}
