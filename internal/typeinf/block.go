package typeinf

import (
	"fmt"
	"strings"

	"github.com/715d/phpflow/internal/flow"
	"github.com/715d/phpflow/internal/lattice"
	"github.com/715d/phpflow/pkg/cfg"
)

// analysis is the context passed to every transfer function while one
// block is analyzed.
type analysis struct {
	e     *Engine
	rs    *routineState
	block *cfg.Block
	types *lattice.Universe
}

func (a *analysis) visitBlock() {
	b := a.block
	g := b.Graph
	a.rs.visits++
	if b == g.Start {
		a.rs.store.Propagate(b, a.entryState())
	}
	in, ok := a.rs.store.State(b)
	if !ok {
		return
	}
	st := in.Clone()
	for _, s := range b.Stmts {
		a.stmt(st, s)
	}
	if b == g.Exit {
		a.publishReturn(st)
		return
	}
	a.edge(st, b.Next)
}

// propagate hands st to target and schedules target when its state grew.
// st must not be used by the caller afterwards.
func (a *analysis) propagate(target *cfg.Block, st *flow.State) {
	if target == nil {
		return
	}
	if a.rs.store.Propagate(target, st) {
		a.e.wl.Enqueue(target)
	}
}

// publishReturn exports the return type reaching the exit block and
// re-schedules subscribed callers when it grew.
func (a *analysis) publishReturn(st *flow.State) {
	ret := a.types.Export(st.ReturnType())
	if !a.rs.summary.PublishReturn(ret) {
		return
	}
	for _, caller := range a.rs.summary.Subscribers() {
		a.e.wl.Enqueue(caller)
	}
}

func (a *analysis) edge(st *flow.State, next cfg.Edge) {
	switch edge := next.(type) {
	case nil:
	case *cfg.SimpleEdge:
		a.propagate(edge.Target, st)

	case *cfg.ConditionalEdge:
		onTrue := a.condition(st.Clone(), edge.Cond, ToTrue)
		onFalse := a.condition(st, edge.Cond, ToFalse)
		a.propagate(edge.True, onTrue)
		a.propagate(edge.False, onFalse)

	case *cfg.ForeachEnumereeEdge:
		t := a.expr(st, edge.Enumeree)
		if v, ok := edge.Enumeree.(*cfg.Variable); ok && a.foreachByRef(edge) {
			st.SetReferenced(v.Name)
		}
		old, seen := a.rs.enumTypes[edge]
		a.rs.enumTypes[edge] = old | t
		a.propagate(edge.Target, st)
		if seen && old|t != old {
			// The move-next block types its variables from the collection.
			a.e.wl.Enqueue(edge.Target)
		}

	case *cfg.ForeachMoveNextEdge:
		a.moveNext(st, edge)

	case *cfg.SwitchEdge:
		a.expr(st, edge.Scrutinee)
		for _, c := range edge.Cases {
			if c.Value != nil {
				a.expr(st, c.Value)
			}
		}
		for _, c := range edge.Cases {
			a.propagate(c.Target, st.Clone())
		}
		a.propagate(edge.End, st.Clone())

	case *cfg.TryEdge:
		for _, c := range edge.Catches {
			a.propagate(c, a.bindCatch(st.Clone(), c))
		}
		if edge.Finally != nil {
			a.propagate(edge.Finally, st.Clone())
		}
		a.propagate(edge.Body, st)

	default:
		a.e.logUnsupported(fmt.Sprintf("%T", next), a.rs.routine)
		for _, t := range next.Targets() {
			a.propagate(t, st.Clone())
		}
	}
}

func (a *analysis) foreachByRef(edge *cfg.ForeachEnumereeEdge) bool {
	if edge.Target == nil {
		return false
	}
	mn, ok := edge.Target.Next.(*cfg.ForeachMoveNextEdge)
	return ok && mn.ByRef
}

// moveNext binds the key and value of a foreach loop on the body path and
// leaves the exit path untouched.
func (a *analysis) moveNext(st *flow.State, edge *cfg.ForeachMoveNextEdge) {
	body := st.Clone()
	elem := lattice.Any
	if edge.Enumeree != nil {
		elem = a.types.ElementType(a.rs.enumTypes[edge.Enumeree])
	}
	if edge.Key != nil {
		a.write(body, edge.Key, lattice.Any, false)
	}
	if edge.Value != nil {
		a.write(body, edge.Value, elem, edge.ByRef)
	}
	a.propagate(edge.Body, body)
	a.propagate(edge.Exit, st)
}

// bindCatch binds the exception variable of a catch block. The variable is
// marked used since PHP requires it syntactically.
func (a *analysis) bindCatch(st *flow.State, b *cfg.Block) *flow.State {
	if b.Catch == nil || b.Catch.Var == "" {
		return st
	}
	var t lattice.TypeSet
	for _, class := range strings.Split(b.Catch.Type, "|") {
		class = strings.TrimSpace(class)
		if class == "" {
			class = "Throwable"
		}
		t |= a.types.Object(class)
	}
	st.SetType(b.Catch.Var, t)
	st.SetLessThanMax(b.Catch.Var, false)
	st.SetUsed(b.Catch.Var)
	return st
}

func (a *analysis) stmt(st *flow.State, s cfg.Stmt) {
	switch s := s.(type) {
	case *cfg.ExprStmt:
		a.expr(st, s.X)
	case *cfg.ReturnStmt:
		if s.Value != nil {
			st.MarkReturn(a.expr(st, s.Value))
		}
	case *cfg.EchoStmt:
		for _, arg := range s.Args {
			a.expr(st, arg)
		}
	case *cfg.UnsetStmt:
		for _, v := range s.Vars {
			a.unset(st, v)
		}
	case *cfg.GlobalStmt:
		for _, name := range s.Names {
			st.SetType(name, lattice.Any)
			st.SetLessThanMax(name, false)
			st.SetReferenced(name)
		}
	case *cfg.StaticStmt:
		for _, v := range s.Vars {
			if v.Init != nil {
				a.expr(st, v.Init)
			}
			// The value persists across calls.
			st.SetType(v.Name, lattice.Any)
			st.SetLessThanMax(v.Name, false)
		}
	case *cfg.ThrowStmt:
		a.expr(st, s.X)
	default:
		a.e.logUnsupported(fmt.Sprintf("%T", s), a.rs.routine)
	}
}

func (a *analysis) unset(st *flow.State, e cfg.Expr) {
	switch v := e.(type) {
	case *cfg.Variable:
		if !st.IsReferenced(v.Name) {
			st.Unset(v.Name)
		}
	case *cfg.ArrayItem:
		a.quiet(st, v.Array)
		if v.Index != nil {
			a.expr(st, v.Index)
		}
	case *cfg.Field:
		a.expr(st, v.Object)
	case *cfg.DynamicVariable:
		a.expr(st, v.NameExpr)
		st.Context().SetAllReferenced()
	}
}
