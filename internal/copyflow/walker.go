package copyflow

import (
	"golang.org/x/tools/container/intsets"

	"github.com/715d/phpflow/pkg/cfg"
)

// walker applies the effects of one block to st. deep is nil while the
// fixed point is computed and collects the deep-copy sites on replay.
type walker struct {
	*analysis
	st   state
	deep *intsets.Sparse
}

func (w *walker) block(b *cfg.Block) {
	if b.Catch != nil && b.Catch.Var != "" {
		w.overwrite(b.Catch.Var)
	}
	for _, s := range b.Stmts {
		w.stmt(s)
	}
	w.edge(b.Next)
}

func (w *walker) stmt(s cfg.Stmt) {
	switch s := s.(type) {
	case *cfg.UnsetStmt:
		for _, v := range s.Vars {
			if v, ok := v.(*cfg.Variable); ok {
				w.overwrite(v.Name)
				continue
			}
			w.modify(v)
		}
	case *cfg.GlobalStmt:
		for _, name := range s.Names {
			w.overwrite(name)
		}
	case *cfg.StaticStmt:
		for _, v := range s.Vars {
			w.expr(v.Init)
			w.overwrite(v.Name)
		}
	default:
		cfg.InspectStmt(s, func(e cfg.Expr) bool {
			w.expr(e)
			return false
		})
	}
}

func (w *walker) edge(next cfg.Edge) {
	switch e := next.(type) {
	case *cfg.ConditionalEdge:
		w.expr(e.Cond)
	case *cfg.ForeachEnumereeEdge:
		w.expr(e.Enumeree)
	case *cfg.ForeachMoveNextEdge:
		if e.ByRef && e.Enumeree != nil {
			w.modify(e.Enumeree.Enumeree)
		}
		if e.Key != nil {
			w.store(e.Key)
		}
		w.store(e.Value)
	case *cfg.SwitchEdge:
		w.expr(e.Scrutinee)
		for _, c := range e.Cases {
			w.expr(c.Value)
		}
	}
}

func (w *walker) expr(e cfg.Expr) {
	switch e := e.(type) {
	case nil:
	case *cfg.Assign:
		if e.ByRef {
			w.modify(e.Value)
			w.store(e.Target)
			return
		}
		if id, ok := w.sites[e]; ok {
			w.copySite(id, e.Target.(*cfg.Variable).Name, e.Value.(*cfg.Variable).Name)
			return
		}
		w.expr(e.Value)
		w.store(e.Target)
	case *cfg.CompoundAssign:
		w.expr(e.Value)
		w.modify(e.Target)
	case *cfg.IncDec:
		w.modify(e.Target)
	case *cfg.DynamicVariable:
		w.expr(e.NameExpr)
		w.taintAll()
	case *cfg.Include:
		w.expr(e.Path)
		w.taintAll()
	case *cfg.Eval:
		w.expr(e.Code)
		w.taintAll()
	case *cfg.Call:
		var callee *cfg.Routine
		if w.resolver != nil {
			callee = w.resolver.Function(e.Name)
		}
		w.args(e.Args, callee)
		switch cfg.CanonicalName(e.Name) {
		case "extract", "parse_str", "get_defined_vars":
			w.taintAll()
		}
	case *cfg.MethodCall:
		w.expr(e.Object)
		w.args(e.Args, nil)
	case *cfg.StaticCall:
		var callee *cfg.Routine
		if w.resolver != nil {
			if class := w.resolver.ClassName(w.caller, e.Class); class != "" {
				callee = w.resolver.Method(class, e.Name)
			}
		}
		w.args(e.Args, callee)
	case *cfg.New:
		var ctor *cfg.Routine
		if w.resolver != nil {
			if class := w.resolver.ClassName(w.caller, e.Class); class != "" {
				ctor = w.resolver.Constructor(class)
			}
		}
		w.args(e.Args, ctor)
	case *cfg.Closure:
		for _, u := range e.Uses {
			if u.ByRef {
				w.mutate(u.Name)
			}
		}
	case *cfg.ArrayLiteral:
		for _, it := range e.Items {
			w.expr(it.Key)
			if it.ByRef {
				w.modify(it.Value)
				continue
			}
			w.expr(it.Value)
		}
	default:
		cfg.Inspect(e, func(c cfg.Expr) bool {
			if c == e {
				return true
			}
			w.expr(c)
			return false
		})
	}
}

// args evaluates call arguments. Arguments bound to by-reference
// parameters are modified in place; with an unknown callee every writable
// argument is.
func (w *walker) args(args []cfg.Argument, callee *cfg.Routine) {
	for i, arg := range args {
		if byRefArgument(callee, i, arg.Value) {
			w.modify(arg.Value)
			continue
		}
		w.expr(arg.Value)
	}
}

func byRefArgument(callee *cfg.Routine, i int, e cfg.Expr) bool {
	switch e.(type) {
	case *cfg.Variable, *cfg.ArrayItem, *cfg.DynamicVariable:
	default:
		return false
	}
	if callee == nil {
		return true
	}
	n := len(callee.Params)
	switch {
	case i < n:
		return callee.Params[i].ByRef
	case n > 0 && callee.Params[n-1].Variadic:
		return callee.Params[n-1].ByRef
	}
	return false
}

// modify records an in-place change of the storage target denotes.
func (w *walker) modify(target cfg.Expr) {
	switch t := target.(type) {
	case *cfg.Variable:
		w.mutate(t.Name)
	case *cfg.ArrayItem:
		w.expr(t.Index)
		w.modify(t.Array)
	case *cfg.Field:
		w.expr(t.Object)
	case *cfg.DynamicVariable:
		w.expr(t.NameExpr)
		w.taintAll()
	case *cfg.StaticField:
	default:
		w.expr(target)
	}
}

// store records an assignment replacing the value of target.
func (w *walker) store(target cfg.Expr) {
	switch t := target.(type) {
	case *cfg.Variable:
		w.overwrite(t.Name)
	case *cfg.List:
		for _, it := range t.Items {
			w.expr(it.Key)
			switch {
			case it.Target == nil:
			case it.ByRef:
				w.modify(it.Target)
			default:
				w.store(it.Target)
			}
		}
	default:
		w.modify(target)
	}
}

func (w *walker) slot(name string) (*intsets.Sparse, bool) {
	idx, ok := w.slots[name]
	if !ok {
		return nil, false
	}
	return w.st[idx], true
}

func (w *walker) mutate(name string) {
	if set, ok := w.slot(name); ok && w.deep != nil {
		w.deep.UnionWith(set)
	}
}

func (w *walker) overwrite(name string) {
	if set, ok := w.slot(name); ok {
		set.Clear()
	}
}

func (w *walker) copySite(id int, dst, src string) {
	if w.aliased[dst] || w.aliased[src] {
		w.mark(id)
	}
	from, ok1 := w.slot(src)
	_, ok2 := w.slot(dst)
	if !ok1 || !ok2 {
		w.mark(id)
		return
	}
	to := new(intsets.Sparse)
	to.Copy(from)
	to.Insert(id)
	from.Insert(id)
	w.st[w.slots[dst]] = to
}

func (w *walker) mark(id int) {
	if w.deep != nil {
		w.deep.Insert(id)
	}
}

func (w *walker) taintAll() {
	if w.deep == nil {
		return
	}
	for id := range len(w.sites) {
		w.deep.Insert(id)
	}
}
