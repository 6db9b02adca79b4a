package paramcopy

import (
	"golang.org/x/tools/container/intsets"

	"github.com/715d/phpflow/pkg/cfg"
)

// walker applies the effects of one block to st. copies is nil while the
// fixed point is computed; on replay it collects the parameters needing a
// copy.
type walker struct {
	*analysis
	st     Status
	copies *intsets.Sparse
}

func (w *walker) dirty() { w.st = Dirty }

func (w *walker) block(b *cfg.Block) {
	for _, s := range b.Stmts {
		w.stmt(s)
	}
	switch e := b.Next.(type) {
	case *cfg.ConditionalEdge:
		w.expr(e.Cond)
	case *cfg.ForeachEnumereeEdge:
		w.expr(e.Enumeree)
	case *cfg.ForeachMoveNextEdge:
		if e.ByRef && e.Enumeree != nil {
			w.modify(e.Enumeree.Enumeree)
		}
		if e.Key != nil {
			w.write(e.Key)
		}
		w.write(e.Value)
	case *cfg.SwitchEdge:
		w.expr(e.Scrutinee)
		for _, c := range e.Cases {
			w.expr(c.Value)
		}
	}
}

func (w *walker) stmt(s cfg.Stmt) {
	switch s := s.(type) {
	case *cfg.EchoStmt:
		for _, arg := range s.Args {
			w.expr(arg)
			if w.mayBeObject(arg) {
				w.dirty()
			}
		}
	case *cfg.UnsetStmt:
		for _, v := range s.Vars {
			if _, ok := v.(*cfg.Variable); ok {
				continue
			}
			w.write(v)
		}
	case *cfg.GlobalStmt:
	default:
		cfg.InspectStmt(s, func(e cfg.Expr) bool {
			w.expr(e)
			return false
		})
	}
}

func (w *walker) expr(e cfg.Expr) {
	switch e := e.(type) {
	case nil:
	case *cfg.Variable:
		w.read(e.Name)
	case *cfg.Assign:
		if e.ByRef {
			w.modify(e.Value)
		} else {
			w.expr(e.Value)
		}
		w.write(e.Target)
	case *cfg.CompoundAssign:
		w.expr(e.Value)
		if e.Op == cfg.OpConcat && w.mayBeObject(e.Value) {
			w.dirty()
		}
		w.update(e.Target)
	case *cfg.IncDec:
		w.update(e.Target)
	case *cfg.Binary:
		w.expr(e.Left)
		w.expr(e.Right)
		if e.Op == cfg.OpConcat && (w.mayBeObject(e.Left) || w.mayBeObject(e.Right)) {
			w.dirty()
		}
	case *cfg.Unary:
		w.expr(e.Operand)
		switch e.Op {
		case cfg.OpClone:
			w.dirty()
		case cfg.OpPrint:
			if w.mayBeObject(e.Operand) {
				w.dirty()
			}
		}
	case *cfg.Cast:
		w.expr(e.Operand)
		if e.To == cfg.CastString && w.mayBeObject(e.Operand) {
			w.dirty()
		}
	case *cfg.Call:
		var callee *cfg.Routine
		if w.opts.Resolver != nil {
			callee = w.opts.Resolver.Function(e.Name)
		}
		w.args(e.Args, callee)
		w.dirty()
	case *cfg.MethodCall:
		w.expr(e.Object)
		w.args(e.Args, nil)
		w.dirty()
	case *cfg.StaticCall:
		var callee *cfg.Routine
		if w.opts.Resolver != nil {
			if class := w.opts.Resolver.ClassName(w.caller, e.Class); class != "" {
				callee = w.opts.Resolver.Method(class, e.Name)
			}
		}
		w.args(e.Args, callee)
		w.dirty()
	case *cfg.New:
		var ctor *cfg.Routine
		if w.opts.Resolver != nil {
			if class := w.opts.Resolver.ClassName(w.caller, e.Class); class != "" {
				ctor = w.opts.Resolver.Constructor(class)
			}
		}
		w.args(e.Args, ctor)
		w.dirty()
	case *cfg.Eval:
		w.expr(e.Code)
		w.dirty()
	case *cfg.Include:
		w.expr(e.Path)
		w.dirty()
	case *cfg.DynamicVariable:
		w.expr(e.NameExpr)
		w.all()
	case *cfg.Closure:
		for _, u := range e.Uses {
			if u.ByRef {
				w.mutate(u.Name)
				continue
			}
			w.read(u.Name)
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

func (w *walker) args(args []cfg.Argument, callee *cfg.Routine) {
	for i, arg := range args {
		if passedByRef(callee, i, arg.Value) {
			w.modify(arg.Value)
			continue
		}
		w.expr(arg.Value)
	}
}

func passedByRef(callee *cfg.Routine, i int, e cfg.Expr) bool {
	switch e.(type) {
	case *cfg.Variable, *cfg.ArrayItem:
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

// write records an assignment to target. Replacing a whole variable
// neither mutates shared storage nor escapes; element and field writes do.
func (w *walker) write(target cfg.Expr) {
	switch t := target.(type) {
	case *cfg.Variable:
	case *cfg.List:
		for _, it := range t.Items {
			w.expr(it.Key)
			if it.Target == nil {
				continue
			}
			if it.ByRef {
				w.modify(it.Target)
				continue
			}
			w.write(it.Target)
		}
	case *cfg.ArrayItem, *cfg.Field, *cfg.StaticField:
		w.modify(target)
		w.dirty()
	default:
		w.modify(target)
	}
}

// update is a read-modify-write of target.
func (w *walker) update(target cfg.Expr) {
	if v, ok := target.(*cfg.Variable); ok {
		w.read(v.Name)
		return
	}
	w.write(target)
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
	case *cfg.StaticField:
	case *cfg.DynamicVariable:
		w.expr(t.NameExpr)
		w.all()
	default:
		w.expr(target)
	}
}

// read marks name when it is a parameter observed after a possible
// external mutation.
func (w *walker) read(name string) {
	if w.st == Dirty {
		w.mark(name)
	}
}

func (w *walker) mutate(name string) { w.mark(name) }

func (w *walker) mark(name string) {
	if w.copies == nil {
		return
	}
	if i, ok := w.params[name]; ok {
		w.copies.Insert(i)
	}
}

// all marks every parameter; a dynamic variable may name any of them.
func (w *walker) all() {
	w.dirty()
	if w.copies == nil {
		return
	}
	for _, i := range w.params {
		w.copies.Insert(i)
	}
}
