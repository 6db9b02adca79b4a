package typeinf

import (
	"maps"
	"slices"

	"github.com/715d/phpflow/internal/fixpoint"
	"github.com/715d/phpflow/internal/flow"
	"github.com/715d/phpflow/internal/interproc"
	"github.com/715d/phpflow/internal/lattice"
	"github.com/715d/phpflow/pkg/cfg"
)

// routineState is everything the analysis of one routine owns. It is
// touched by one worker at a time.
type routineState struct {
	routine *cfg.Routine
	summary *interproc.Summary
	ctx     *flow.Context
	store   *fixpoint.Store[*flow.State]

	// exprTypes accumulates the type-set of every visited expression.
	exprTypes map[cfg.Expr]lattice.TypeSet
	// uninit records, per variable read, whether the variable was possibly
	// uninitialized at the latest visit of the read.
	uninit map[*cfg.Variable]bool
	// enumTypes accumulates the type of each foreach collection.
	enumTypes map[*cfg.ForeachEnumereeEdge]lattice.TypeSet

	visits int
}

func newRoutineState(r *cfg.Routine, s *interproc.Summary) *routineState {
	ctx := flow.NewContext(r.Graph.Variables())
	return &routineState{
		routine:   r,
		summary:   s,
		ctx:       ctx,
		store:     fixpoint.NewStore(r.Graph, joinStates),
		exprTypes: make(map[cfg.Expr]lattice.TypeSet),
		uninit:    make(map[*cfg.Variable]bool),
		enumTypes: make(map[*cfg.ForeachEnumereeEdge]lattice.TypeSet),
	}
}

func joinStates(stored, incoming *flow.State) (*flow.State, bool) {
	merged := stored.Merge(incoming)
	if merged.Equal(stored) {
		return stored, false
	}
	return merged, true
}

// entryState binds parameters, $this and superglobals from the current
// seed of the routine.
func (a *analysis) entryState() *flow.State {
	r := a.rs.routine
	u := a.types
	st := flow.NewState(a.rs.ctx)
	seed := a.rs.summary.Seed()

	for i, p := range r.Params {
		var t lattice.TypeSet
		hint := u.FromHint(p.TypeHint)
		switch {
		case p.ByRef:
			t = lattice.Any
			st.SetReferenced(p.Name)
		case p.TypeHint != "" && !hint.IsAny():
			t = hint
			if p.Variadic {
				t = u.Array(hint)
			}
		case p.Variadic && seed.Params[i].Any:
			t = u.Array(lattice.Any)
		default:
			t = u.Import(seed.Params[i])
		}
		if seed.Omitted[i] && p.Default != nil {
			t |= a.expr(st.Clone(), p.Default)
		}
		st.SetType(p.Name, t)
		if seed.LessThanMax[i] && !p.ByRef {
			st.SetLessThanMax(p.Name, true)
		}
	}
	if r.Class != "" && !r.Static {
		st.SetType(cfg.ThisVar, u.Object(r.Class))
	}
	for _, name := range a.rs.ctx.Names() {
		if cfg.IsSuperglobal(name) {
			st.SetType(name, lattice.Any)
			st.SetReferenced(name)
		}
	}
	return st
}

// RoutineResult is the converged type information of one routine.
type RoutineResult struct {
	Routine *cfg.Routine
	Context *flow.Context
	// Return is the union of every returned type-set; Void when the
	// routine never returns a value.
	Return    lattice.TypeSet
	ExprTypes map[cfg.Expr]lattice.TypeSet
	// Uninitialized lists the variables read while possibly unassigned.
	Uninitialized []string
	// Unused lists the locals assigned but never read.
	Unused []string
	Visits int
	Seeded bool

	store *fixpoint.Store[*flow.State]
}

// Types returns the type universe of the routine.
func (r *RoutineResult) Types() *lattice.Universe { return r.Context.Types }

// VarType returns the accumulated type-set of a local variable.
func (r *RoutineResult) VarType(name string) lattice.TypeSet {
	return r.Context.Accumulated(name)
}

// State returns the converged entry state of b.
func (r *RoutineResult) State(b *cfg.Block) (*flow.State, bool) {
	return r.store.State(b)
}

// Reached reports whether b was attached a state.
func (r *RoutineResult) Reached(b *cfg.Block) bool { return r.store.Reached(b) }

// ExprType returns the accumulated type-set of e; Void when e was never
// visited.
func (r *RoutineResult) ExprType(e cfg.Expr) lattice.TypeSet { return r.ExprTypes[e] }

func (rs *routineState) result(s *interproc.Summary) *RoutineResult {
	uninit := make(map[string]struct{})
	for v, ok := range rs.uninit {
		if ok {
			uninit[v.Name] = struct{}{}
		}
	}
	return &RoutineResult{
		Routine:       rs.routine,
		Context:       rs.ctx,
		Return:        rs.ctx.AccumulatedReturn(),
		ExprTypes:     rs.exprTypes,
		Uninitialized: slices.Sorted(maps.Keys(uninit)),
		Unused:        rs.unused(),
		Visits:        rs.visits,
		Seeded:        s.IsSeeded(),
		store:         rs.store,
	}
}

// unused lists the locals assigned a type that no read ever observed.
// Parameters, $this, superglobals and referenced variables are never listed,
// nor are catch variables, which are marked used when bound.
func (rs *routineState) unused() []string {
	ctx := rs.ctx
	var out []string
	for _, name := range ctx.Names() {
		switch {
		case name == cfg.ThisVar, cfg.IsSuperglobal(name), rs.isParam(name):
		case ctx.IsReferenced(name), ctx.IsUsed(name), ctx.Accumulated(name).IsVoid():
		default:
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

func (rs *routineState) isParam(name string) bool {
	return slices.ContainsFunc(rs.routine.Params, func(p *cfg.Param) bool { return p.Name == name })
}

// Result is the outcome of type inference over a program.
type Result struct {
	Routines map[*cfg.Routine]*RoutineResult
	// Unreachable lists routines never reached from a root.
	Unreachable []*cfg.Routine
	Visits      int
}

// Routine returns the result of r, or nil for library routines.
func (r *Result) Routine(routine *cfg.Routine) *RoutineResult {
	return r.Routines[routine]
}
