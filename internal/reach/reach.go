// Package reach computes the blocks of a routine that can never execute:
// blocks type inference never attached a state to, and blocks only
// reachable through a branch whose condition is a constant.
package reach

import (
	"slices"

	"golang.org/x/tools/container/intsets"

	"github.com/715d/phpflow/internal/fixpoint"
	"github.com/715d/phpflow/pkg/cfg"
)

// analysis is a boolean reachability problem that follows only the live
// side of constant conditions.
type analysis struct {
	// live restricts propagation to blocks type inference reached; nil
	// allows every block.
	live func(*cfg.Block) bool
}

func (analysis) Entry(*cfg.Graph) bool { return true }

func (analysis) Join(stored, incoming bool) (bool, bool) {
	return stored || incoming, incoming && !stored
}

func (a analysis) Transfer(b *cfg.Block, in bool) []fixpoint.Flow[bool] {
	var flows []fixpoint.Flow[bool]
	if c, ok := b.Next.(*cfg.ConditionalEdge); ok {
		if v, known := Constant(c.Cond); known {
			target := c.False
			if v {
				target = c.True
			}
			flows = []fixpoint.Flow[bool]{{Target: target, State: in}}
		}
	}
	if flows == nil {
		flows = fixpoint.Broadcast(b, in)
	}
	if a.live == nil {
		return flows
	}
	return slices.DeleteFunc(flows, func(f fixpoint.Flow[bool]) bool {
		return f.Target == nil || !a.live(f.Target)
	})
}

// Result holds the reachable blocks of one graph.
type Result struct {
	Graph  *cfg.Graph
	Visits int

	dead intsets.Sparse
}

// Analyze computes the reachable blocks of g. live reports the blocks the
// type inference pass attached a state to; nil treats every block as live.
func Analyze(g *cfg.Graph, live func(*cfg.Block) bool) *Result {
	solved := fixpoint.Solve[bool](g, analysis{live: live})
	r := &Result{Graph: g, Visits: solved.Visits}
	for _, b := range g.Blocks {
		if !solved.Reached(b) {
			r.dead.Insert(b.ID)
		}
	}
	return r
}

// Reachable reports whether b may execute.
func (r *Result) Reachable(b *cfg.Block) bool { return !r.dead.Has(b.ID) }

// Unreachable returns the unreachable blocks ordered by ID. The exit block
// is left out: a routine that never returns normally is not dead code.
func (r *Result) Unreachable() []*cfg.Block {
	var out []*cfg.Block
	for _, id := range r.dead.AppendTo(nil) {
		b := r.Graph.Blocks[id]
		if b == r.Graph.Exit {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Constant evaluates a condition whose truth value is known without
// running the program: boolean, integer and null literals, the true, false
// and null constants, and their negations.
func Constant(e cfg.Expr) (value, ok bool) {
	switch e := e.(type) {
	case *cfg.Literal:
		switch v := e.Value.(type) {
		case bool:
			return v, true
		case int64:
			return v != 0, true
		case int:
			return v != 0, true
		case nil:
			return false, true
		}
	case *cfg.Constant:
		switch cfg.CanonicalName(e.Name) {
		case "true":
			return true, true
		case "false", "null":
			return false, true
		}
	case *cfg.Unary:
		if e.Op == cfg.OpNot {
			v, ok := Constant(e.Operand)
			return !v, ok
		}
	}
	return false, false
}
