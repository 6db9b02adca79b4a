package typeinf

import (
	"fmt"
	"math"
	"strings"

	"github.com/715d/phpflow/internal/flow"
	"github.com/715d/phpflow/internal/lattice"
	"github.com/715d/phpflow/pkg/cfg"
)

// record accumulates t into the expression-type table and returns it.
func (a *analysis) record(e cfg.Expr, t lattice.TypeSet) lattice.TypeSet {
	a.rs.exprTypes[e] |= t
	return t
}

// expr evaluates e in st, applying its effects to st, and returns its
// type-set. Unmodeled forms evaluate to Any.
func (a *analysis) expr(st *flow.State, e cfg.Expr) lattice.TypeSet {
	if e == nil {
		return lattice.Void
	}
	return a.record(e, a.eval(st, e))
}

func (a *analysis) eval(st *flow.State, e cfg.Expr) lattice.TypeSet {
	u := a.types
	switch e := e.(type) {
	case *cfg.Literal:
		return a.literal(e)
	case *cfg.Constant:
		return a.constant(e.Name)
	case *cfg.Variable:
		return a.read(st, e)
	case *cfg.DynamicVariable:
		a.expr(st, e.NameExpr)
		st.Context().SetAllReferenced()
		return lattice.Any
	case *cfg.ArrayItem:
		return a.arrayItem(st, e, false)
	case *cfg.Field:
		a.expr(st, e.Object)
		return lattice.Any
	case *cfg.StaticField:
		return lattice.Any
	case *cfg.ArrayLiteral:
		return a.arrayLiteral(st, e)
	case *cfg.Binary:
		return a.binary(st, e)
	case *cfg.Unary:
		return a.unary(st, e)
	case *cfg.Assign:
		return a.assign(st, e)
	case *cfg.CompoundAssign:
		return a.compoundAssign(st, e)
	case *cfg.IncDec:
		return a.incDec(st, e)
	case *cfg.Conditional:
		return a.conditional(st, e)
	case *cfg.Cast:
		return a.cast(st, e)
	case *cfg.InstanceOf:
		a.expr(st, e.Operand)
		return u.Bool()
	case *cfg.Isset:
		for _, v := range e.Vars {
			a.quiet(st, v)
		}
		return u.Bool()
	case *cfg.Empty:
		a.quiet(st, e.Operand)
		return u.Bool()
	case *cfg.Call:
		return a.call(st, e)
	case *cfg.MethodCall:
		return a.methodCall(st, e)
	case *cfg.StaticCall:
		return a.staticCall(st, e)
	case *cfg.New:
		return a.newObject(st, e)
	case *cfg.Closure:
		return a.closure(st, e)
	case *cfg.Include:
		a.expr(st, e.Path)
		st.Context().SetAllReferenced()
		return lattice.Any
	case *cfg.Eval:
		a.expr(st, e.Code)
		st.Context().SetAllReferenced()
		return lattice.Any
	case *cfg.Exit:
		a.expr(st, e.Status)
		return lattice.Void
	}
	a.e.logUnsupported(fmt.Sprintf("%T", e), a.rs.routine)
	return lattice.Any
}

func (a *analysis) literal(e *cfg.Literal) lattice.TypeSet {
	u := a.types
	switch e.Value.(type) {
	case int64, int:
		return u.Long()
	case float64:
		return u.Double()
	case string:
		return u.Str()
	case bool:
		return u.Bool()
	case nil:
		return u.Null()
	}
	return lattice.Any
}

func (a *analysis) constant(name string) lattice.TypeSet {
	u := a.types
	switch strings.ToUpper(strings.TrimPrefix(name, `\`)) {
	case "TRUE", "FALSE":
		return u.Bool()
	case "NULL":
		return u.Null()
	case "PHP_INT_MAX", "PHP_INT_MIN", "PHP_INT_SIZE", "PHP_MAJOR_VERSION", "PHP_MINOR_VERSION",
		"E_ALL", "E_ERROR", "E_WARNING", "E_NOTICE", "E_STRICT", "E_DEPRECATED", "__LINE__":
		return u.Long()
	case "PHP_FLOAT_EPSILON", "PHP_FLOAT_MAX", "PHP_FLOAT_MIN", "M_PI", "M_E", "NAN", "INF":
		return u.Double()
	case "PHP_EOL", "PHP_VERSION", "PHP_OS", "PHP_OS_FAMILY", "DIRECTORY_SEPARATOR", "PATH_SEPARATOR",
		"__FILE__", "__DIR__", "__FUNCTION__", "__CLASS__", "__METHOD__", "__NAMESPACE__":
		return u.Str()
	}
	return lattice.Any
}

// read evaluates a variable in read context.
func (a *analysis) read(st *flow.State, v *cfg.Variable) lattice.TypeSet {
	st.SetUsed(v.Name)
	if _, ok := st.Context().Slot(v.Name); !ok {
		return lattice.Any
	}
	initialized := st.IsInitialized(v.Name)
	a.rs.uninit[v] = !initialized
	if st.IsReferenced(v.Name) {
		return lattice.Any
	}
	t := st.Type(v.Name)
	if !initialized {
		t |= a.types.Null()
	}
	return t
}

// quiet evaluates e as isset, empty and ?? do: reads of unassigned
// variables or missing elements yield null without being reported.
func (a *analysis) quiet(st *flow.State, e cfg.Expr) lattice.TypeSet {
	switch v := e.(type) {
	case *cfg.Variable:
		st.SetUsed(v.Name)
		if _, ok := st.Context().Slot(v.Name); !ok || st.IsReferenced(v.Name) {
			return a.record(v, lattice.Any)
		}
		t := st.Type(v.Name)
		if !st.IsInitialized(v.Name) {
			t |= a.types.Null()
		}
		return a.record(v, t)
	case *cfg.ArrayItem:
		return a.record(v, a.arrayItem(st, v, true))
	case *cfg.Field:
		a.quiet(st, v.Object)
		return a.record(v, lattice.Any)
	}
	return a.expr(st, e)
}

func (a *analysis) arrayItem(st *flow.State, e *cfg.ArrayItem, quiet bool) lattice.TypeSet {
	u := a.types
	var at lattice.TypeSet
	if quiet {
		at = a.quiet(st, e.Array)
	} else {
		at = a.expr(st, e.Array)
	}
	if e.Index != nil {
		a.expr(st, e.Index)
	}
	if at.IsAny() {
		return lattice.Any
	}
	if u.IncludesKind(at, lattice.KindObject) {
		// ArrayAccess
		return lattice.Any
	}
	var t lattice.TypeSet
	if u.IncludesKind(at, lattice.KindString) {
		t |= u.Str()
	}
	arrays := u.OfKind(at, lattice.KindArray)
	t |= u.ElementType(arrays)
	if t.IsVoid() || !at.Without(arrays|u.OfKind(at, lattice.KindString)).IsVoid() {
		t |= u.Null()
	}
	return t
}

func (a *analysis) arrayLiteral(st *flow.State, e *cfg.ArrayLiteral) lattice.TypeSet {
	u := a.types
	var elem lattice.TypeSet
	for _, it := range e.Items {
		if it.Key != nil {
			a.expr(st, it.Key)
		}
		if it.ByRef {
			a.write(st, it.Value, lattice.Any, true)
			elem = lattice.Any
			continue
		}
		t := a.expr(st, it.Value)
		if it.Spread {
			t = u.ElementType(t)
		}
		elem |= t
	}
	return u.Array(elem)
}

func (a *analysis) binary(st *flow.State, e *cfg.Binary) lattice.TypeSet {
	u := a.types
	switch e.Op {
	case cfg.OpAnd, cfg.OpOr:
		st.Assign(a.condition(st.Clone(), e, AnyResult))
		return u.Bool()
	case cfg.OpCoalesce:
		lt := a.quiet(st, e.Left)
		other := st.Clone()
		rt := a.expr(other, e.Right)
		st.Assign(st.Merge(other))
		if lt.IsAny() {
			return lattice.Any
		}
		return lt.Without(u.Null()) | rt
	}
	lt := a.expr(st, e.Left)
	rt := a.expr(st, e.Right)
	if e.Op.IsComparison() || e.Op == cfg.OpXor {
		return u.Bool()
	}
	return a.binaryType(e.Op, lt, rt, e.Op == cfg.OpAdd && a.boundedIncrement(st, e.Left, e.Right))
}

// binaryType is the result type of an arithmetic, bitwise or string
// operator. bounded reports an increment by one of a value known to be
// below PHP_INT_MAX, which cannot overflow to float.
func (a *analysis) binaryType(op cfg.BinaryOp, lt, rt lattice.TypeSet, bounded bool) lattice.TypeSet {
	u := a.types
	switch op {
	case cfg.OpAdd, cfg.OpSub, cfg.OpMul, cfg.OpPow:
		return a.arith(op, lt, rt, bounded)
	case cfg.OpDiv:
		switch {
		case lt.IsAny() || rt.IsAny():
			return u.Number()
		case u.IsDoubleOnly(lt) || u.IsDoubleOnly(rt):
			return u.Double()
		}
		return u.Number()
	case cfg.OpMod, cfg.OpShl, cfg.OpShr, cfg.OpSpaceship:
		return u.Long()
	case cfg.OpBitAnd, cfg.OpBitOr, cfg.OpBitXor:
		if u.IsStringOnly(lt) && u.IsStringOnly(rt) {
			return u.Str()
		}
		return u.Long()
	case cfg.OpConcat:
		return u.Str()
	case cfg.OpEq, cfg.OpNotEq, cfg.OpIdentical, cfg.OpNotIdentical, cfg.OpLt, cfg.OpLtEq,
		cfg.OpGt, cfg.OpGtEq, cfg.OpAnd, cfg.OpOr, cfg.OpXor:
		return u.Bool()
	}
	a.e.logUnsupported("binary "+op.String(), a.rs.routine)
	return lattice.Any
}

// arith types +, -, * and **. Array + array yields an array; an array
// combined with a non-array contributes nothing; Any may be either.
func (a *analysis) arith(op cfg.BinaryOp, lt, rt lattice.TypeSet, bounded bool) lattice.TypeSet {
	u := a.types
	if lt.IsAny() || rt.IsAny() {
		if op == cfg.OpAdd {
			return u.Number() | u.Array(lattice.Any)
		}
		return u.Number()
	}
	var out lattice.TypeSet
	la, ra := u.OfKind(lt, lattice.KindArray), u.OfKind(rt, lattice.KindArray)
	if op == cfg.OpAdd && !la.IsVoid() && !ra.IsVoid() {
		out |= u.Array(u.ElementType(la | ra))
	}
	ln, rn := lt.Without(la), rt.Without(ra)
	if ln.IsVoid() || rn.IsVoid() {
		return out
	}
	switch {
	case u.IsDoubleOnly(ln) || u.IsDoubleOnly(rn):
		out |= u.Double()
	case bounded && u.IsLongOnly(ln) && u.IsLongOnly(rn):
		out |= u.Long()
	default:
		out |= u.Number()
	}
	return out
}

// boundedIncrement reports whether l + r adds one to a value known to be
// below PHP_INT_MAX.
func (a *analysis) boundedIncrement(st *flow.State, l, r cfg.Expr) bool {
	return (a.lessThanMax(st, l) && isOne(r)) || (isOne(l) && a.lessThanMax(st, r))
}

// lessThanMax reports whether e is known to be below PHP_INT_MAX.
func (a *analysis) lessThanMax(st *flow.State, e cfg.Expr) bool {
	switch e := e.(type) {
	case *cfg.Literal:
		switch v := e.Value.(type) {
		case int64:
			return v < math.MaxInt64
		case int:
			return int64(v) < math.MaxInt64
		}
	case *cfg.Variable:
		name, ok := a.refinable(st, e)
		return ok && st.IsLessThanMax(name)
	}
	return false
}

func isOne(e cfg.Expr) bool {
	l, ok := e.(*cfg.Literal)
	if !ok {
		return false
	}
	switch v := l.Value.(type) {
	case int64:
		return v == 1
	case int:
		return v == 1
	}
	return false
}

func (a *analysis) unary(st *flow.State, e *cfg.Unary) lattice.TypeSet {
	u := a.types
	t := a.expr(st, e.Operand)
	switch e.Op {
	case cfg.OpNot:
		return u.Bool()
	case cfg.OpNeg, cfg.OpPlus:
		switch {
		case t.IsAny():
			return u.Number()
		case u.IsDoubleOnly(t):
			return u.Double()
		case u.IsLongOnly(t):
			return u.Long()
		}
		return u.Number()
	case cfg.OpBitNot:
		switch {
		case u.IsStringOnly(t):
			return u.Str()
		case u.IsNumberOnly(t):
			return u.Long()
		}
		return u.Long() | u.Str()
	case cfg.OpSilence, cfg.OpClone:
		return t
	case cfg.OpPrint:
		return u.Long()
	}
	a.e.logUnsupported("unary "+e.Op.String(), a.rs.routine)
	return lattice.Any
}

func (a *analysis) assign(st *flow.State, e *cfg.Assign) lattice.TypeSet {
	if e.ByRef {
		a.reference(st, e.Value)
		a.write(st, e.Target, lattice.Any, true)
		return lattice.Any
	}
	t := a.expr(st, e.Value)
	a.write(st, e.Target, t, false)
	return t
}

// reference evaluates the source of a reference: the referenced storage
// becomes aliased and is created as null when missing.
func (a *analysis) reference(st *flow.State, e cfg.Expr) {
	switch v := e.(type) {
	case *cfg.Variable:
		if _, ok := st.Context().Slot(v.Name); !ok {
			return
		}
		if !st.IsInitialized(v.Name) {
			st.SetType(v.Name, a.types.Null())
		}
		st.SetReferenced(v.Name)
		a.record(v, lattice.Any)
	case *cfg.ArrayItem, *cfg.Field:
		if root := rootVariable(v); root != nil {
			st.SetReferenced(root.Name)
		}
		a.quiet(st, v)
	case *cfg.StaticField:
	default:
		a.expr(st, e)
	}
}

// rootVariable returns the variable an element or field access is rooted
// at.
func rootVariable(e cfg.Expr) *cfg.Variable {
	for {
		switch v := e.(type) {
		case *cfg.Variable:
			return v
		case *cfg.ArrayItem:
			e = v.Array
		case *cfg.Field:
			e = v.Object
		default:
			return nil
		}
	}
}

func (a *analysis) compoundAssign(st *flow.State, e *cfg.CompoundAssign) lattice.TypeSet {
	u := a.types
	if e.Op == cfg.OpCoalesce {
		cur := a.quiet(st, e.Target)
		other := st.Clone()
		rt := a.expr(other, e.Value)
		st.Assign(st.Merge(other))
		t := lattice.Any
		if !cur.IsAny() {
			t = cur.Without(u.Null()) | rt
		}
		a.write(st, e.Target, t, false)
		return t
	}
	cur := a.expr(st, e.Target)
	rt := a.expr(st, e.Value)
	bounded := e.Op == cfg.OpAdd && a.boundedIncrement(st, e.Target, e.Value)
	t := a.binaryType(e.Op, cur, rt, bounded)
	a.write(st, e.Target, t, false)
	return t
}

func (a *analysis) incDec(st *flow.State, e *cfg.IncDec) lattice.TypeSet {
	u := a.types
	pre := a.expr(st, e.Target)
	var post lattice.TypeSet
	if pre.IsAny() {
		post = lattice.Any
	} else {
		nums := u.OfKind(pre, lattice.KindLong, lattice.KindDouble)
		strs := u.OfKind(pre, lattice.KindString)
		nulls := u.OfKind(pre, lattice.KindNull)
		if !nums.IsVoid() {
			bounded := e.Increment && a.lessThanMax(st, e.Target)
			if e.Increment {
				post |= a.arith(cfg.OpAdd, nums, u.Long(), bounded)
			} else {
				post |= a.arith(cfg.OpSub, nums, u.Long(), false)
			}
		}
		if !strs.IsVoid() {
			post |= u.Str() | u.Number()
		}
		if !nulls.IsVoid() {
			// null++ is 1, null-- stays null.
			if e.Increment {
				post |= u.Long()
			} else {
				post |= nulls
			}
		}
		post |= pre.Without(nums | strs | nulls)
	}
	a.write(st, e.Target, post, false)
	if e.Postfix {
		return pre
	}
	return post
}

func (a *analysis) conditional(st *flow.State, e *cfg.Conditional) lattice.TypeSet {
	u := a.types
	if e.Then == nil {
		ct := a.expr(st, e.Cond)
		other := st.Clone()
		et := a.expr(other, e.Else)
		st.Assign(st.Merge(other))
		if ct.IsAny() {
			return lattice.Any
		}
		return ct.Without(u.Null()) | et
	}
	thenSt := a.condition(st.Clone(), e.Cond, ToTrue)
	tt := a.expr(thenSt, e.Then)
	elseSt := a.condition(st, e.Cond, ToFalse)
	et := a.expr(elseSt, e.Else)
	st.Assign(thenSt.Merge(elseSt))
	return tt | et
}

func (a *analysis) cast(st *flow.State, e *cfg.Cast) lattice.TypeSet {
	u := a.types
	t := a.expr(st, e.Operand)
	switch e.To {
	case cfg.CastInt:
		return u.Long()
	case cfg.CastFloat:
		return u.Double()
	case cfg.CastString:
		return u.Str()
	case cfg.CastBool:
		return u.Bool()
	case cfg.CastUnset:
		return u.Null()
	case cfg.CastArray:
		if t.IsAny() {
			return u.Array(lattice.Any)
		}
		arrays := u.OfKind(t, lattice.KindArray)
		rest := t.Without(arrays)
		switch {
		case u.IncludesKind(rest, lattice.KindObject):
			arrays |= u.Array(lattice.Any)
		case !rest.Without(u.Null()).IsVoid():
			arrays |= u.Array(rest.Without(u.Null()))
		case u.IsNullable(rest):
			arrays |= u.Array(lattice.Void)
		}
		return arrays
	case cfg.CastObject:
		if t.IsAny() {
			return lattice.Any
		}
		objects := u.OfKind(t, lattice.KindObject)
		if !t.Without(objects).IsVoid() {
			objects |= u.Object("stdClass")
		}
		return objects
	}
	a.e.logUnsupported("cast "+e.To.String(), a.rs.routine)
	return lattice.Any
}

func (a *analysis) closure(st *flow.State, e *cfg.Closure) lattice.TypeSet {
	for _, use := range e.Uses {
		if use.ByRef {
			if !st.IsInitialized(use.Name) {
				st.SetType(use.Name, a.types.Null())
			}
			st.SetReferenced(use.Name)
			continue
		}
		st.SetUsed(use.Name)
	}
	return a.types.Closure()
}

// write stores t through target. By-reference writes flag the written
// variable as aliased for the rest of the routine.
func (a *analysis) write(st *flow.State, target cfg.Expr, t lattice.TypeSet, byRef bool) {
	switch tg := target.(type) {
	case *cfg.Variable:
		if _, ok := st.Context().Slot(tg.Name); !ok || cfg.IsSuperglobal(tg.Name) {
			return
		}
		if byRef {
			st.SetReferenced(tg.Name)
		}
		st.SetType(tg.Name, t)
		st.SetLessThanMax(tg.Name, false)
		a.record(tg, t)
	case *cfg.DynamicVariable:
		a.expr(st, tg.NameExpr)
		st.Context().SetAllReferenced()
	case *cfg.ArrayItem:
		if byRef {
			if root := rootVariable(tg); root != nil {
				st.SetReferenced(root.Name)
			}
		}
		base := a.quiet(st, tg.Array)
		if tg.Index != nil {
			a.expr(st, tg.Index)
		}
		a.write(st, tg.Array, a.withElement(base, t), false)
	case *cfg.Field:
		a.expr(st, tg.Object)
	case *cfg.StaticField:
	case *cfg.List:
		a.writeList(st, tg, t)
	default:
		a.e.logUnsupported(fmt.Sprintf("write to %T", target), a.rs.routine)
	}
}

// withElement returns the type of an array-like value of type cur after
// an element of type t is stored into it.
func (a *analysis) withElement(cur, t lattice.TypeSet) lattice.TypeSet {
	u := a.types
	if cur.IsAny() {
		return lattice.Any
	}
	arrays := u.OfKind(cur, lattice.KindArray)
	others := cur.Without(arrays).Without(u.Null())
	if arrays.IsVoid() && !others.IsVoid() && !u.IsNullable(cur) {
		// string offsets and ArrayAccess objects keep their type
		return others
	}
	return u.Array(u.ElementType(arrays)|t) | others
}

// writeList destructures a value of type t into the targets of l.
func (a *analysis) writeList(st *flow.State, l *cfg.List, t lattice.TypeSet) {
	u := a.types
	elem := lattice.Any
	if !t.IsAny() {
		elem = u.ElementType(t)
		if elem.IsVoid() {
			elem = u.Null()
		}
	}
	for _, it := range l.Items {
		if it.Key != nil {
			a.expr(st, it.Key)
		}
		if it.Target == nil {
			continue
		}
		if it.ByRef {
			a.write(st, it.Target, lattice.Any, true)
			continue
		}
		a.write(st, it.Target, elem, false)
	}
}
