// Package lattice implements the type-set lattice used by type inference:
// a bitset over a per-routine universe of concrete types, joined by union.
package lattice

import "math/bits"

// TypeSet is a set of concrete types, one bit per type of the owning
// Universe. The zero value is Void: the uninitialized bottom element and
// the "no value" return type. Any is the top element; since it has every
// bit set, union with Any yields Any.
type TypeSet uint64

const (
	Void TypeSet = 0
	Any  TypeSet = ^TypeSet(0)
)

// capacity is the number of distinct types a universe can intern. The
// remaining high bit is never assigned so that no union of interned types
// equals Any.
const capacity = 63

// Or is the lattice join.
func (t TypeSet) Or(u TypeSet) TypeSet { return t | u }

// IsAny reports whether t is the top element.
func (t TypeSet) IsAny() bool { return t == Any }

// IsVoid reports whether t is the bottom element.
func (t TypeSet) IsVoid() bool { return t == Void }

// Includes reports whether every type of u is in t.
func (t TypeSet) Includes(u TypeSet) bool { return t&u == u }

// Intersects reports whether t and u share a type.
func (t TypeSet) Intersects(u TypeSet) bool { return t&u != 0 }

// Without removes the types of u from t. Any is unaffected.
func (t TypeSet) Without(u TypeSet) TypeSet {
	if t.IsAny() {
		return t
	}
	return t &^ u
}

// Count returns the number of types in t; Any counts as -1.
func (t TypeSet) Count() int {
	if t.IsAny() {
		return -1
	}
	return bits.OnesCount64(uint64(t))
}

// each calls f with the index of every type in t. It must not be called
// on Any.
func (t TypeSet) each(f func(idx int)) {
	for m := uint64(t); m != 0; m &= m - 1 {
		f(bits.TrailingZeros64(m))
	}
}
