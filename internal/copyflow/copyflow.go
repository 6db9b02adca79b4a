// Package copyflow decides which plain variable-to-variable assignments
// may share their source's storage and which need a deep copy. Every
// `$a = $b` is an assignment site; the analysis tracks, per variable, the
// sites whose value currently flows into it unmodified. A site needs a deep
// copy as soon as either side may be modified in place while they share
// storage. Dynamic variable access taints every site.
package copyflow

import (
	"golang.org/x/tools/container/intsets"

	"github.com/715d/phpflow/internal/fixpoint"
	"github.com/715d/phpflow/internal/symbols"
	"github.com/715d/phpflow/pkg/cfg"
)

// Site is one `$target = $source` assignment.
type Site struct {
	ID     int
	Block  *cfg.Block
	Assign *cfg.Assign
	Target string
	Source string
}

// state holds, per variable slot, the sites flowing into it.
type state []*intsets.Sparse

func (s state) clone() state {
	out := make(state, len(s))
	for i, set := range s {
		out[i] = new(intsets.Sparse)
		out[i].Copy(set)
	}
	return out
}

type analysis struct {
	slots    map[string]int
	sites    map[*cfg.Assign]int
	resolver *symbols.Resolver
	caller   *cfg.Routine
	// aliased names variables that may be bound by reference; their sites
	// always need a deep copy.
	aliased map[string]bool
}

func (a *analysis) Entry(*cfg.Graph) state {
	s := make(state, len(a.slots))
	for i := range s {
		s[i] = new(intsets.Sparse)
	}
	return s
}

func (a *analysis) Join(stored, incoming state) (state, bool) {
	merged := stored.clone()
	changed := false
	for i, set := range incoming {
		if merged[i].UnionWith(set) {
			changed = true
		}
	}
	if !changed {
		return stored, false
	}
	return merged, true
}

func (a *analysis) Transfer(b *cfg.Block, in state) []fixpoint.Flow[state] {
	w := &walker{analysis: a, st: in.clone()}
	w.block(b)
	return fixpoint.Broadcast(b, w.st)
}

// Result is the deep-copy decision for every site of one routine.
type Result struct {
	Sites  []Site
	Visits int

	deep intsets.Sparse
}

// Analyze runs copy analysis over r. The resolver identifies by-reference
// parameters of called routines; it may be nil, in which case every
// variable passed to a call is assumed modified.
func Analyze(r *cfg.Routine, resolver *symbols.Resolver) *Result {
	g := r.Graph
	a := &analysis{
		slots:    make(map[string]int),
		sites:    make(map[*cfg.Assign]int),
		resolver: resolver,
		caller:   r,
		aliased:  referencedNames(r),
	}
	for i, name := range g.Variables() {
		a.slots[name] = i
	}
	res := &Result{}
	for _, b := range g.Blocks {
		visit := func(e cfg.Expr) bool {
			as, ok := e.(*cfg.Assign)
			if !ok || as.ByRef {
				return true
			}
			dst, ok1 := as.Target.(*cfg.Variable)
			src, ok2 := as.Value.(*cfg.Variable)
			if ok1 && ok2 && dst.Name != src.Name {
				id := len(res.Sites)
				a.sites[as] = id
				res.Sites = append(res.Sites, Site{ID: id, Block: b, Assign: as, Target: dst.Name, Source: src.Name})
			}
			return true
		}
		for _, s := range b.Stmts {
			cfg.InspectStmt(s, visit)
		}
		if b.Next != nil {
			for _, e := range b.Next.Exprs() {
				cfg.Inspect(e, visit)
			}
		}
	}

	solved := fixpoint.Solve[state](g, a)
	res.Visits = solved.Visits

	// Replay every reached block once on its converged state to collect the
	// sites that need a deep copy.
	for _, b := range g.Blocks {
		in, ok := solved.State(b)
		if !ok {
			continue
		}
		w := &walker{analysis: a, st: in.clone(), deep: &res.deep}
		w.block(b)
	}
	return res
}

// NeedsCopy reports whether the value assigned by as must be deep-copied.
func (r *Result) NeedsCopy(as *cfg.Assign) bool {
	for _, s := range r.Sites {
		if s.Assign == as {
			return r.deep.Has(s.ID)
		}
	}
	return false
}

// DeepCopies lists the sites needing a deep copy, ordered by ID.
func (r *Result) DeepCopies() []Site {
	var out []Site
	for _, id := range r.deep.AppendTo(nil) {
		out = append(out, r.Sites[id])
	}
	return out
}

// referencedNames collects the variables of r that are ever bound by
// reference.
func referencedNames(r *cfg.Routine) map[string]bool {
	out := make(map[string]bool)
	root := func(e cfg.Expr) {
		for {
			switch v := e.(type) {
			case *cfg.Variable:
				out[v.Name] = true
				return
			case *cfg.ArrayItem:
				e = v.Array
			default:
				return
			}
		}
	}
	for _, p := range r.Params {
		if p.ByRef {
			out[p.Name] = true
		}
	}
	visit := func(e cfg.Expr) bool {
		switch e := e.(type) {
		case *cfg.Assign:
			if e.ByRef {
				root(e.Target)
				root(e.Value)
			}
		case *cfg.Closure:
			for _, u := range e.Uses {
				if u.ByRef {
					out[u.Name] = true
				}
			}
		case *cfg.ArrayLiteral:
			for _, it := range e.Items {
				if it.ByRef {
					root(it.Value)
				}
			}
		case *cfg.List:
			for _, it := range e.Items {
				if it.ByRef {
					root(it.Target)
				}
			}
		}
		return true
	}
	for _, b := range r.Graph.Blocks {
		for _, s := range b.Stmts {
			switch s := s.(type) {
			case *cfg.GlobalStmt:
				for _, n := range s.Names {
					out[n] = true
				}
			case *cfg.StaticStmt:
				for _, v := range s.Vars {
					out[v.Name] = true
				}
			}
			cfg.InspectStmt(s, visit)
		}
		switch e := b.Next.(type) {
		case *cfg.ForeachMoveNextEdge:
			if e.ByRef {
				root(e.Value)
				if e.Enumeree != nil {
					root(e.Enumeree.Enumeree)
				}
			}
		case nil:
		default:
			for _, x := range e.Exprs() {
				cfg.Inspect(x, visit)
			}
		}
	}
	return out
}
