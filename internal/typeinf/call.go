package typeinf

import (
	"github.com/715d/phpflow/internal/flow"
	"github.com/715d/phpflow/internal/interproc"
	"github.com/715d/phpflow/internal/lattice"
	"github.com/715d/phpflow/internal/symbols"
	"github.com/715d/phpflow/pkg/cfg"
)

// byRefFunc reports whether argument i is passed by reference.
type byRefFunc func(i int) bool

func paramsByRef(callee *cfg.Routine) byRefFunc {
	return func(i int) bool {
		p := paramAt(callee, i)
		return p != nil && p.ByRef
	}
}

// paramAt returns the parameter receiving argument i, or nil.
func paramAt(callee *cfg.Routine, i int) *cfg.Param {
	if callee == nil {
		return nil
	}
	n := len(callee.Params)
	switch {
	case i < n:
		return callee.Params[i]
	case n > 0 && callee.Params[n-1].Variadic:
		return callee.Params[n-1]
	}
	return nil
}

// arguments evaluates the actual arguments of a call in order. Arguments
// bound to by-reference parameters are written as Any through the
// reference. After an unpacked argument positions are unknown, so nparams
// trailing Any arguments are appended.
func (a *analysis) arguments(st *flow.State, args []cfg.Argument, byRef byRefFunc, nparams int) []interproc.Argument {
	u := a.types
	out := make([]interproc.Argument, 0, len(args))
	for i, arg := range args {
		if arg.Unpack {
			a.expr(st, arg.Value)
			for len(out) < max(nparams, i+1) {
				out = append(out, interproc.Argument{Type: lattice.AnyPortable})
			}
			break
		}
		if byRef(i) && writable(arg.Value) {
			a.write(st, arg.Value, lattice.Any, true)
			out = append(out, interproc.Argument{Type: lattice.AnyPortable})
			continue
		}
		t := a.expr(st, arg.Value)
		out = append(out, interproc.Argument{
			Type:        u.Export(t),
			LessThanMax: a.lessThanMax(st, arg.Value),
		})
	}
	return out
}

func writable(e cfg.Expr) bool {
	switch e.(type) {
	case *cfg.Variable, *cfg.ArrayItem, *cfg.Field, *cfg.StaticField, *cfg.DynamicVariable:
		return true
	}
	return false
}

// invoke binds args into the seed of callee and returns its current return
// type. The calling block subscribes before the return type is read.
func (a *analysis) invoke(callee *cfg.Routine, args []interproc.Argument) lattice.TypeSet {
	if callee.IsLibrary() {
		return a.types.FromHint(callee.ReturnHint)
	}
	s := a.e.summaries[callee]
	if s == nil {
		return lattice.Any
	}
	if s.BindArguments(args) {
		a.e.wl.Enqueue(callee.Graph.Start)
	}
	s.Subscribe(a.block)
	return a.types.Import(s.ReturnType())
}

func (a *analysis) call(st *flow.State, e *cfg.Call) lattice.TypeSet {
	candidates := a.e.resolver.Functions(e.Name)
	if callee := symbols.Unique(candidates); callee != nil {
		args := a.arguments(st, e.Args, paramsByRef(callee), len(callee.Params))
		return a.invoke(callee, args)
	}

	name := a.e.resolver.Names.Canonical(e.Name)
	b, ok := builtins[name]
	if !ok {
		b.byRef = noByRef
	}
	a.arguments(st, e.Args, b.byRef, 0)
	if len(candidates) > 1 {
		return lattice.Any
	}
	switch name {
	case "extract", "parse_str":
		if name != "parse_str" || len(e.Args) < 2 {
			st.Context().SetAllReferenced()
		}
	case "compact":
		for _, arg := range e.Args {
			if l, ok := arg.Value.(*cfg.Literal); ok {
				if s, ok := l.Value.(string); ok {
					st.SetUsed(s)
				}
			}
		}
	}
	if b.returns == "" {
		return lattice.Any
	}
	return a.types.FromHint(b.returns)
}

func (a *analysis) methodCall(st *flow.State, e *cfg.MethodCall) lattice.TypeSet {
	u := a.types
	ot := a.expr(st, e.Object)
	var classes []string
	if receiver := ot.Without(u.Null()); !receiver.IsAny() && u.IsObjectOnly(receiver) {
		classes = u.Classes(receiver)
		if len(classes) != len(u.Types(receiver)) {
			// an object of unknown class
			classes = nil
		}
	}
	callee := symbols.Unique(a.e.resolver.MethodCandidates(classes, e.Name))
	return a.dispatch(st, callee, e.Args)
}

func (a *analysis) staticCall(st *flow.State, e *cfg.StaticCall) lattice.TypeSet {
	var callee *cfg.Routine
	if class := a.e.resolver.ClassName(a.rs.routine, e.Class); class != "" {
		callee = a.e.resolver.Method(class, e.Name)
	}
	return a.dispatch(st, callee, e.Args)
}

func (a *analysis) newObject(st *flow.State, e *cfg.New) lattice.TypeSet {
	class := a.e.resolver.ClassName(a.rs.routine, e.Class)
	var ctor *cfg.Routine
	if class != "" {
		ctor = a.e.resolver.Constructor(class)
	}
	a.dispatch(st, ctor, e.Args)
	return a.types.Object(class)
}

// dispatch evaluates args and invokes callee; unresolved callees return
// Any.
func (a *analysis) dispatch(st *flow.State, callee *cfg.Routine, args []cfg.Argument) lattice.TypeSet {
	if callee == nil {
		a.arguments(st, args, noByRef, 0)
		return lattice.Any
	}
	return a.invoke(callee, a.arguments(st, args, paramsByRef(callee), len(callee.Params)))
}

func noByRef(int) bool { return false }
