package lattice

import (
	"cmp"
	"slices"
	"strings"

	"github.com/715d/phpflow/pkg/cfg"
)

// Portable is a universe-independent description of a TypeSet. Summaries
// shared between routines (argument seeds, return types) are exchanged in
// this form so that no routine ever touches another routine's Universe.
// The zero value describes Void.
type Portable struct {
	Any   bool
	Types []PortableType // sorted by compareType, no duplicates
}

// PortableType describes one concrete type.
type PortableType struct {
	Kind  Kind
	Class string
	Elem  *Portable // KindArray only
}

// AnyPortable describes Any.
var AnyPortable = Portable{Any: true}

// Export describes t.
func (u *Universe) Export(t TypeSet) Portable {
	if t.IsAny() {
		return AnyPortable
	}
	p := Portable{}
	for _, ty := range u.Types(t) {
		pt := PortableType{Kind: ty.Kind, Class: ty.Class}
		if ty.Kind == KindArray {
			elem := u.Export(ty.Elem)
			pt.Elem = &elem
		}
		p.Types = append(p.Types, pt)
	}
	p.normalize()
	return p
}

// Import interns every type of p and returns their union.
func (u *Universe) Import(p Portable) TypeSet {
	if p.Any {
		return Any
	}
	var t TypeSet
	for _, pt := range p.Types {
		ty := Type{Kind: pt.Kind, Class: pt.Class}
		if pt.Kind == KindArray {
			ty.Elem = Any
			if pt.Elem != nil {
				ty.Elem = u.Import(*pt.Elem)
			}
		}
		t |= u.Intern(ty)
	}
	return t
}

// IsVoid reports whether p describes no type.
func (p Portable) IsVoid() bool { return !p.Any && len(p.Types) == 0 }

// Union joins p and q.
func (p Portable) Union(q Portable) Portable {
	if p.Any || q.Any {
		return AnyPortable
	}
	out := Portable{Types: make([]PortableType, 0, len(p.Types)+len(q.Types))}
	out.Types = append(out.Types, p.Types...)
	out.Types = append(out.Types, q.Types...)
	out.normalize()
	return out
}

// Equal reports whether p and q describe the same set. Class names compare
// case-insensitively.
func (p Portable) Equal(q Portable) bool { return comparePortable(p, q) == 0 }

// String renders p like Universe.Name.
func (p Portable) String() string {
	switch {
	case p.Any:
		return "mixed"
	case len(p.Types) == 0:
		return "void"
	}
	names := make([]string, len(p.Types))
	for i, pt := range p.Types {
		names[i] = pt.key()
	}
	slices.Sort(names)
	return strings.Join(slices.Compact(names), "|")
}

func (pt PortableType) key() string {
	switch pt.Kind {
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
		if pt.Elem == nil || pt.Elem.Any {
			return "array"
		}
		return "array<" + pt.Elem.String() + ">"
	case KindObject:
		if pt.Class == "" {
			return "object"
		}
		return pt.Class
	case KindClosure:
		return "Closure"
	case KindResource:
		return "resource"
	case KindCallable:
		return "callable"
	}
	return "unknown"
}

func (pt PortableType) elem() Portable {
	if pt.Elem == nil {
		return AnyPortable
	}
	return *pt.Elem
}

func (p *Portable) normalize() {
	slices.SortStableFunc(p.Types, compareType)
	p.Types = slices.CompactFunc(p.Types, func(a, b PortableType) bool {
		return compareType(a, b) == 0
	})
}

// comparePortable orders normalized descriptions structurally. Any sorts
// after every finite set.
func comparePortable(p, q Portable) int {
	switch {
	case p.Any && q.Any:
		return 0
	case p.Any:
		return 1
	case q.Any:
		return -1
	}
	return slices.CompareFunc(p.Types, q.Types, compareType)
}

func compareType(a, b PortableType) int {
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	if c := strings.Compare(cfg.CanonicalName(a.Class), cfg.CanonicalName(b.Class)); c != 0 {
		return c
	}
	if a.Kind != KindArray {
		return 0
	}
	return comparePortable(a.elem(), b.elem())
}
