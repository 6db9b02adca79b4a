// Package cfg defines the control-flow graph contract consumed by the
// dataflow engine: programs, routines, basic blocks and typed edges.
package cfg

import (
	"strconv"
	"strings"
)

// Program is a compiled unit: free routines, classes with methods, and
// library routines that have no body.
type Program struct {
	Routines []*Routine
	Classes  []*Class
	Library  []*Routine
}

// AllRoutines returns every routine with a body, methods included.
func (p *Program) AllRoutines() []*Routine {
	out := make([]*Routine, 0, len(p.Routines))
	out = append(out, p.Routines...)
	for _, c := range p.Classes {
		out = append(out, c.Methods...)
	}
	return out
}

// Class declares a PHP class for method resolution and instanceof checks.
type Class struct {
	Name    string
	Extends string
	Methods []*Routine
}

// Param is a declared routine parameter.
type Param struct {
	Name     string
	TypeHint string // empty when untyped
	ByRef    bool
	Variadic bool
	Default  Expr // nil when required
}

// Routine is a function or method. Library routines have a nil Graph and
// carry their declared return type in ReturnHint.
type Routine struct {
	Name       string
	Class      string // declaring class for methods
	Static     bool
	Entry      bool // analysis root
	Params     []*Param
	ReturnHint string
	Graph      *Graph
}

// QualifiedName returns Class::name for methods and name otherwise.
func (r *Routine) QualifiedName() string {
	if r.Class != "" {
		return r.Class + "::" + r.Name
	}
	return r.Name
}

// IsLibrary reports whether the routine has no analyzable body.
func (r *Routine) IsLibrary() bool { return r.Graph == nil }

// Graph is the control-flow graph of one routine.
type Graph struct {
	Routine *Routine
	Start   *Block
	Exit    *Block
	Blocks  []*Block // indexed by Block.ID
}

// BlockKind classifies basic blocks.
type BlockKind int

const (
	BlockPlain BlockKind = iota
	BlockStart
	BlockExit
	BlockCatch
	BlockCase
)

func (k BlockKind) String() string {
	switch k {
	case BlockStart:
		return "start"
	case BlockExit:
		return "exit"
	case BlockCatch:
		return "catch"
	case BlockCase:
		return "case"
	default:
		return "plain"
	}
}

// Block is a basic block. Next is nil for the exit block and for blocks
// that end the routine by other means (throw, exit).
type Block struct {
	ID    int
	Label string // optional, for reports
	Kind  BlockKind
	Graph *Graph
	Stmts []Stmt
	Next  Edge

	// Catch describes the exception binding of a BlockCatch block.
	Catch *CatchClause
}

// CatchClause is the header of a catch block.
type CatchClause struct {
	Var  string // empty for catch without variable
	Type string
}

// Name returns the label of b, or "b<ID>" when it has none.
func (b *Block) Name() string {
	if b.Label != "" {
		return b.Label
	}
	return "b" + strconv.Itoa(b.ID)
}

// Successors lists the blocks reachable through b's outgoing edge.
func (b *Block) Successors() []*Block {
	if b.Next == nil {
		return nil
	}
	return b.Next.Targets()
}

// Variables collects every plain variable name used by the routine,
// parameters first, in first-seen order.
func (g *Graph) Variables() []string {
	seen := make(map[string]struct{})
	var names []string
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	if g.Routine != nil {
		for _, p := range g.Routine.Params {
			add(p.Name)
		}
		if g.Routine.Class != "" && !g.Routine.Static {
			add(ThisVar)
		}
	}
	visit := func(e Expr) bool {
		if v, ok := e.(*Variable); ok {
			add(v.Name)
		}
		if c, ok := e.(*Closure); ok {
			for _, u := range c.Uses {
				add(u.Name)
			}
		}
		return true
	}
	for _, b := range g.Blocks {
		if b.Catch != nil {
			add(b.Catch.Var)
		}
		for _, s := range b.Stmts {
			switch s := s.(type) {
			case *GlobalStmt:
				for _, n := range s.Names {
					add(n)
				}
			case *StaticStmt:
				for _, v := range s.Vars {
					add(v.Name)
				}
			}
			InspectStmt(s, visit)
		}
		if b.Next != nil {
			for _, e := range b.Next.Exprs() {
				Inspect(e, visit)
			}
		}
	}
	return names
}

// ThisVar is the name of the implicit receiver variable.
const ThisVar = "this"

// superglobals are always initialized and always possibly referenced.
var superglobals = map[string]struct{}{
	"GLOBALS": {}, "_SERVER": {}, "_GET": {}, "_POST": {}, "_FILES": {},
	"_COOKIE": {}, "_SESSION": {}, "_REQUEST": {}, "_ENV": {},
}

// IsSuperglobal reports whether name is an auto-global variable.
func IsSuperglobal(name string) bool {
	_, ok := superglobals[name]
	return ok
}

// CanonicalName normalizes a function or class name for lookup: PHP names
// are case-insensitive and may be fully qualified with a leading backslash.
func CanonicalName(name string) string {
	return strings.ToLower(strings.TrimPrefix(name, `\`))
}
