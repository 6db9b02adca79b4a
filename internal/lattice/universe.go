package lattice

import (
	"slices"
	"strings"

	"github.com/715d/phpflow/pkg/cfg"
)

// Kind classifies concrete types.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindLong
	KindDouble
	KindString
	KindArray
	KindObject
	KindClosure
	KindResource
	KindCallable
)

// Type is a concrete type interned in a Universe.
type Type struct {
	Kind  Kind
	Class string  // KindObject; empty for an object of unknown class
	Elem  TypeSet // KindArray; element types in the same universe
}

// maxArrayDepth bounds array nesting. A deeper array collapses to "array"
// so that recursion like f([$x]) reaches a fixpoint.
const maxArrayDepth = 3

type typeKey struct {
	kind  Kind
	class string
	elem  TypeSet
}

// Universe is the per-routine interning table assigning each distinct
// concrete type a bit. It is owned by a single routine analysis and is not
// safe for concurrent use; types cross routine boundaries as Portable.
type Universe struct {
	types  []Type
	depths []uint8 // array nesting depth per type; 0 for scalars
	index  map[typeKey]int
}

// NewUniverse returns an empty universe.
func NewUniverse() *Universe {
	return &Universe{index: make(map[typeKey]int)}
}

// Len returns the number of interned types.
func (u *Universe) Len() int { return len(u.types) }

// Intern returns the singleton set of t, interning it on first use. Once
// the universe is full every new type degrades to Any. Arrays nested
// deeper than maxArrayDepth lose their element type.
func (u *Universe) Intern(t Type) TypeSet {
	if t.Kind == KindArray && !t.Elem.IsAny() && u.depth(t.Elem) >= maxArrayDepth {
		t.Elem = Any
	}
	key := typeKey{kind: t.Kind, elem: t.Elem}
	if t.Kind == KindObject {
		key.class = cfg.CanonicalName(t.Class)
	}
	if t.Kind != KindArray {
		key.elem = Void
	}
	if idx, ok := u.index[key]; ok {
		return 1 << idx
	}
	if len(u.types) >= capacity {
		return Any
	}
	var d uint8
	if t.Kind == KindArray {
		d = 1 + u.depth(t.Elem)
	} else {
		t.Elem = Void
	}
	u.index[key] = len(u.types)
	u.types = append(u.types, t)
	u.depths = append(u.depths, d)
	return 1 << (len(u.types) - 1)
}

// depth returns the deepest array nesting in t. Any counts as flat.
func (u *Universe) depth(t TypeSet) uint8 {
	if t.IsAny() {
		return 0
	}
	var d uint8
	t.each(func(idx int) { d = max(d, u.depths[idx]) })
	return d
}

func (u *Universe) Null() TypeSet     { return u.Intern(Type{Kind: KindNull}) }
func (u *Universe) Bool() TypeSet     { return u.Intern(Type{Kind: KindBool}) }
func (u *Universe) Long() TypeSet     { return u.Intern(Type{Kind: KindLong}) }
func (u *Universe) Double() TypeSet   { return u.Intern(Type{Kind: KindDouble}) }
func (u *Universe) Str() TypeSet      { return u.Intern(Type{Kind: KindString}) }
func (u *Universe) Closure() TypeSet  { return u.Intern(Type{Kind: KindClosure}) }
func (u *Universe) Resource() TypeSet { return u.Intern(Type{Kind: KindResource}) }
func (u *Universe) Callable() TypeSet { return u.Intern(Type{Kind: KindCallable}) }

// Number is the generic numeric type long|double.
func (u *Universe) Number() TypeSet { return u.Long() | u.Double() }

// Array returns the array type with the given element types.
func (u *Universe) Array(elem TypeSet) TypeSet {
	return u.Intern(Type{Kind: KindArray, Elem: elem})
}

// Object returns the object type of class; an empty class means an object
// of unknown class.
func (u *Universe) Object(class string) TypeSet {
	return u.Intern(Type{Kind: KindObject, Class: class})
}

// Types lists the concrete types of t. It returns nil for Any.
func (u *Universe) Types(t TypeSet) []Type {
	if t.IsAny() {
		return nil
	}
	out := make([]Type, 0, t.Count())
	t.each(func(idx int) { out = append(out, u.types[idx]) })
	return out
}

// Filter keeps the types of t satisfying keep. Any is returned unchanged.
func (u *Universe) Filter(t TypeSet, keep func(Type) bool) TypeSet {
	if t.IsAny() {
		return t
	}
	var out TypeSet
	t.each(func(idx int) {
		if keep(u.types[idx]) {
			out |= 1 << idx
		}
	})
	return out
}

// OfKind returns the subset of t with the given kinds.
func (u *Universe) OfKind(t TypeSet, kinds ...Kind) TypeSet {
	return u.Filter(t, func(ty Type) bool { return slices.Contains(kinds, ty.Kind) })
}

// only reports whether t is non-empty, not Any, and made of the given kinds.
func (u *Universe) only(t TypeSet, kinds ...Kind) bool {
	if t.IsAny() || t.IsVoid() {
		return false
	}
	return u.OfKind(t, kinds...) == t
}

// IncludesKind reports whether t may hold a value of kind. Any includes
// every kind.
func (u *Universe) IncludesKind(t TypeSet, kind Kind) bool {
	if t.IsAny() {
		return true
	}
	return u.OfKind(t, kind) != Void
}

func (u *Universe) IsNumberOnly(t TypeSet) bool { return u.only(t, KindLong, KindDouble) }
func (u *Universe) IsLongOnly(t TypeSet) bool   { return u.only(t, KindLong) }
func (u *Universe) IsDoubleOnly(t TypeSet) bool { return u.only(t, KindDouble) }
func (u *Universe) IsStringOnly(t TypeSet) bool { return u.only(t, KindString) }
func (u *Universe) IsArrayOnly(t TypeSet) bool  { return u.only(t, KindArray) }
func (u *Universe) IsNullOnly(t TypeSet) bool   { return u.only(t, KindNull) }
func (u *Universe) IsObjectOnly(t TypeSet) bool { return u.only(t, KindObject) }
func (u *Universe) IsBoolOnly(t TypeSet) bool   { return u.only(t, KindBool) }

// MayBeArray reports whether t may hold an array.
func (u *Universe) MayBeArray(t TypeSet) bool { return u.IncludesKind(t, KindArray) }

// IsNullable reports whether t may hold null.
func (u *Universe) IsNullable(t TypeSet) bool { return u.IncludesKind(t, KindNull) }

// ElementType returns the element types of the arrays in t. Null
// contributes nothing; any other non-array type, or Any, yields Any.
func (u *Universe) ElementType(t TypeSet) TypeSet {
	if t.IsAny() {
		return Any
	}
	var elem TypeSet
	for _, ty := range u.Types(t) {
		switch ty.Kind {
		case KindArray:
			elem |= ty.Elem
		case KindNull:
		default:
			return Any
		}
	}
	return elem
}

// Classes returns the class names of the object types in t.
func (u *Universe) Classes(t TypeSet) []string {
	var out []string
	for _, ty := range u.Types(t) {
		if ty.Kind == KindObject && ty.Class != "" {
			out = append(out, ty.Class)
		}
	}
	return out
}

// Name renders t as sorted type names joined by '|': "int|string",
// "array<int>", "mixed" for Any and "void" for Void.
func (u *Universe) Name(t TypeSet) string {
	switch {
	case t.IsAny():
		return "mixed"
	case t.IsVoid():
		return "void"
	}
	names := make([]string, 0, t.Count())
	for _, ty := range u.Types(t) {
		names = append(names, u.formatType(ty))
	}
	slices.Sort(names)
	names = slices.Compact(names)
	return strings.Join(names, "|")
}

func (u *Universe) formatType(ty Type) string {
	switch ty.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindLong:
		return "int"
	case KindDouble:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		if ty.Elem.IsAny() {
			return "array"
		}
		return "array<" + u.Name(ty.Elem) + ">"
	case KindObject:
		if ty.Class == "" {
			return "object"
		}
		return ty.Class
	case KindClosure:
		return "Closure"
	case KindResource:
		return "resource"
	case KindCallable:
		return "callable"
	}
	return "unknown"
}
