package typeinf

import (
	"strings"

	"github.com/715d/phpflow/internal/flow"
	"github.com/715d/phpflow/internal/lattice"
	"github.com/715d/phpflow/pkg/cfg"
)

// BranchTag selects the outcome a condition is evaluated under.
type BranchTag int

const (
	AnyResult BranchTag = iota
	ToTrue
	ToFalse
)

func (t BranchTag) String() string {
	switch t {
	case ToTrue:
		return "true"
	case ToFalse:
		return "false"
	default:
		return "any"
	}
}

func (t BranchTag) flip() BranchTag {
	switch t {
	case ToTrue:
		return ToFalse
	case ToFalse:
		return ToTrue
	default:
		return AnyResult
	}
}

// condition evaluates cond in st assuming the outcome selected by tag and
// returns the resulting state. st is consumed.
func (a *analysis) condition(st *flow.State, cond cfg.Expr, tag BranchTag) *flow.State {
	switch c := cond.(type) {
	case *cfg.Binary:
		switch c.Op {
		case cfg.OpAnd:
			st = a.and(st, c, tag)
			a.record(c, a.types.Bool())
			return st
		case cfg.OpOr:
			st = a.or(st, c, tag)
			a.record(c, a.types.Bool())
			return st
		}
	case *cfg.Unary:
		if c.Op == cfg.OpNot {
			st = a.condition(st, c.Operand, tag.flip())
			a.record(c, a.types.Bool())
			return st
		}
	}
	a.leaf(st, cond, tag)
	return st
}

// and evaluates Left && Right. The right operand only runs on states where
// the left one was true.
func (a *analysis) and(st *flow.State, c *cfg.Binary, tag BranchTag) *flow.State {
	switch tag {
	case ToTrue:
		return a.condition(a.condition(st, c.Left, ToTrue), c.Right, ToTrue)
	case ToFalse:
		leftFalse := a.condition(st.Clone(), c.Left, ToFalse)
		rightFalse := a.condition(a.condition(st, c.Left, ToTrue), c.Right, ToFalse)
		return leftFalse.Merge(rightFalse)
	default:
		leftFalse := a.condition(st.Clone(), c.Left, ToFalse)
		right := a.condition(a.condition(st, c.Left, ToTrue), c.Right, AnyResult)
		return leftFalse.Merge(right)
	}
}

// or evaluates Left || Right. The right operand only runs on states where
// the left one was false.
func (a *analysis) or(st *flow.State, c *cfg.Binary, tag BranchTag) *flow.State {
	switch tag {
	case ToTrue:
		leftTrue := a.condition(st.Clone(), c.Left, ToTrue)
		rightTrue := a.condition(a.condition(st, c.Left, ToFalse), c.Right, ToTrue)
		return leftTrue.Merge(rightTrue)
	case ToFalse:
		return a.condition(a.condition(st, c.Left, ToFalse), c.Right, ToFalse)
	default:
		leftTrue := a.condition(st.Clone(), c.Left, ToTrue)
		right := a.condition(a.condition(st, c.Left, ToFalse), c.Right, AnyResult)
		return leftTrue.Merge(right)
	}
}

// leaf evaluates a condition that is not a boolean connective and applies
// the refinement its outcome implies.
func (a *analysis) leaf(st *flow.State, cond cfg.Expr, tag BranchTag) {
	if c, ok := cond.(*cfg.Binary); ok && c.Op.IsComparison() {
		lt := a.expr(st, c.Left)
		rt := a.expr(st, c.Right)
		a.record(c, a.types.Bool())
		if tag != AnyResult {
			a.refineComparison(st, c, lt, rt, tag)
		}
		return
	}
	a.expr(st, cond)
	if tag == AnyResult {
		return
	}
	u := a.types
	switch c := cond.(type) {
	case *cfg.InstanceOf:
		if tag == ToTrue {
			if name, ok := a.refinable(st, c.Operand); ok {
				a.narrow(st, name, a.narrowInstance(st.Type(name), c.Class))
			}
		}
	case *cfg.Isset:
		if tag == ToTrue {
			for _, v := range c.Vars {
				if name, ok := a.refinable(st, v); ok {
					a.narrow(st, name, st.Type(name).Without(u.Null()))
				}
			}
		}
	case *cfg.Variable:
		// A truthy variable is not null.
		if tag == ToTrue {
			if name, ok := a.refinable(st, c); ok && st.IsInitialized(name) {
				a.narrow(st, name, st.Type(name).Without(u.Null()))
			}
		}
	case *cfg.Call:
		a.refineTypeCheck(st, c, tag)
	}
}

// refinable returns the variable name e refers to when e is a plain,
// non-aliased local.
func (a *analysis) refinable(st *flow.State, e cfg.Expr) (string, bool) {
	v, ok := e.(*cfg.Variable)
	if !ok || st.IsReferenced(v.Name) || cfg.IsSuperglobal(v.Name) {
		return "", false
	}
	if _, ok := st.Context().Slot(v.Name); !ok {
		return "", false
	}
	return v.Name, true
}

// narrow replaces the type of name with t unless that would leave no type
// at all, in which case the branch is infeasible for the current types and
// the state is kept as is.
func (a *analysis) narrow(st *flow.State, name string, t lattice.TypeSet) {
	if t.IsVoid() {
		return
	}
	ltm := st.IsLessThanMax(name)
	st.SetType(name, t)
	st.SetLessThanMax(name, ltm)
}

// narrowInstance keeps the object types of cur compatible with class. An
// object of unknown class or of an ancestor of class may hold an instance
// of class itself, which is then added.
func (a *analysis) narrowInstance(cur lattice.TypeSet, class string) lattice.TypeSet {
	u := a.types
	if cur.IsAny() {
		return u.Object(class)
	}
	r := a.e.resolver
	var narrowed lattice.TypeSet
	widen := false
	for _, t := range u.Types(cur) {
		switch {
		case t.Kind != lattice.KindObject:
		case t.Class == "":
			widen = true
		case r.IsSubclassOf(t.Class, class):
			narrowed |= u.Object(t.Class)
		case r.IsSubclassOf(class, t.Class):
			widen = true
		}
	}
	if widen || narrowed.IsVoid() {
		narrowed |= u.Object(class)
	}
	return narrowed
}

func (a *analysis) refineComparison(st *flow.State, c *cfg.Binary, lt, rt lattice.TypeSet, tag BranchTag) {
	u := a.types
	switch {
	case c.Op == cfg.OpLt && tag == ToTrue, c.Op == cfg.OpGtEq && tag == ToFalse:
		// left < right
		if name, ok := a.refinable(st, c.Left); ok && u.IsLongOnly(rt) {
			st.SetLessThanMax(name, true)
		}
	case c.Op == cfg.OpGt && tag == ToTrue, c.Op == cfg.OpLtEq && tag == ToFalse:
		// right < left
		if name, ok := a.refinable(st, c.Right); ok && u.IsLongOnly(lt) {
			st.SetLessThanMax(name, true)
		}
	case c.Op == cfg.OpIdentical, c.Op == cfg.OpNotIdentical:
		isNull := (c.Op == cfg.OpIdentical) == (tag == ToTrue)
		operand := c.Left
		if isNullLiteral(c.Left) {
			operand = c.Right
		} else if !isNullLiteral(c.Right) {
			return
		}
		name, ok := a.refinable(st, operand)
		if !ok || !st.IsInitialized(name) {
			return
		}
		cur := st.Type(name)
		if isNull {
			if u.IsNullable(cur) {
				a.narrow(st, name, u.Null())
			}
			return
		}
		a.narrow(st, name, cur.Without(u.Null()))
	}
}

// typeChecks maps is_* functions to the kind they accept.
var typeChecks = map[string]lattice.Kind{
	"is_null":    lattice.KindNull,
	"is_bool":    lattice.KindBool,
	"is_int":     lattice.KindLong,
	"is_integer": lattice.KindLong,
	"is_long":    lattice.KindLong,
	"is_float":   lattice.KindDouble,
	"is_double":  lattice.KindDouble,
	"is_string":  lattice.KindString,
	"is_array":   lattice.KindArray,
}

func (a *analysis) refineTypeCheck(st *flow.State, c *cfg.Call, tag BranchTag) {
	kind, ok := typeChecks[a.e.resolver.Names.Canonical(c.Name)]
	if !ok || len(c.Args) != 1 || c.Args[0].Unpack || a.e.resolver.Function(c.Name) != nil {
		return
	}
	name, ok := a.refinable(st, c.Args[0].Value)
	if !ok || !st.IsInitialized(name) {
		return
	}
	u := a.types
	cur := st.Type(name)
	if cur.IsAny() {
		if tag == ToTrue {
			a.narrow(st, name, a.kindType(kind))
		}
		return
	}
	matching := u.OfKind(cur, kind)
	if tag == ToTrue {
		if matching.IsVoid() {
			matching = a.kindType(kind)
		}
		a.narrow(st, name, matching)
		return
	}
	a.narrow(st, name, cur.Without(matching))
}

// kindType returns the widest type-set of kind.
func (a *analysis) kindType(kind lattice.Kind) lattice.TypeSet {
	u := a.types
	switch kind {
	case lattice.KindNull:
		return u.Null()
	case lattice.KindBool:
		return u.Bool()
	case lattice.KindLong:
		return u.Long()
	case lattice.KindDouble:
		return u.Double()
	case lattice.KindString:
		return u.Str()
	case lattice.KindArray:
		return u.Array(lattice.Any)
	case lattice.KindObject:
		return u.Object("")
	}
	return lattice.Any
}

func isNullLiteral(e cfg.Expr) bool {
	switch e := e.(type) {
	case *cfg.Literal:
		return e.Value == nil
	case *cfg.Constant:
		return strings.EqualFold(e.Name, "null")
	}
	return false
}
