package flow

import (
	"maps"

	"github.com/715d/phpflow/internal/lattice"
)

// State is the flow environment of one basic block: the type-set of every
// slot, the initialized mask, and the set of variables known to be
// strictly less than PHP_INT_MAX. States are immutable by convention once
// attached to a block; transfer functions work on a Clone.
type State struct {
	ctx         *Context
	types       []lattice.TypeSet
	initialized uint64
	lessThanMax map[string]struct{}
}

// NewState returns an environment of ctx in which nothing is initialized.
func NewState(ctx *Context) *State {
	return &State{
		ctx:   ctx,
		types: make([]lattice.TypeSet, ctx.Len()),
	}
}

// Context returns the routine-wide context shared by s.
func (s *State) Context() *Context { return s.ctx }

// Type returns the type-set of name. Unknown names yield Any.
func (s *State) Type(name string) lattice.TypeSet {
	idx, ok := s.ctx.slots[name]
	if !ok || idx >= len(s.types) {
		return lattice.Any
	}
	return s.types[idx]
}

// SetType assigns t to name, marks it initialized and accumulates t into
// the routine-wide record of name. Writes to unknown names are dropped.
func (s *State) SetType(name string, t lattice.TypeSet) {
	idx, ok := s.ctx.slots[name]
	if !ok {
		return
	}
	s.set(idx, t)
}

func (s *State) set(idx int, t lattice.TypeSet) {
	if idx >= len(s.types) {
		s.types = append(s.types, make([]lattice.TypeSet, idx+1-len(s.types))...)
	}
	s.types[idx] = t
	if idx < maskBits {
		s.initialized |= 1 << idx
	}
	s.ctx.accumulate(idx, t)
}

// Unset destroys name: its type becomes Void and it is no longer
// initialized.
func (s *State) Unset(name string) {
	idx, ok := s.ctx.slots[name]
	if !ok || idx >= len(s.types) {
		return
	}
	s.types[idx] = lattice.Void
	if idx < maskBits {
		s.initialized &^= 1 << idx
	}
	delete(s.lessThanMax, name)
}

// IsInitialized reports whether name is assigned on every path reaching s.
// Slots beyond the mask are never reported uninitialized.
func (s *State) IsInitialized(name string) bool {
	idx, ok := s.ctx.slots[name]
	if !ok || idx >= maskBits {
		return true
	}
	return s.initialized&(1<<idx) != 0
}

// SetUsed records a read of name in the shared usage table.
func (s *State) SetUsed(name string) { s.ctx.SetUsed(name) }

// SetReferenced flags name as possibly aliased for the rest of the routine.
func (s *State) SetReferenced(name string) { s.ctx.SetReferenced(name) }

// IsReferenced reports whether name may be aliased.
func (s *State) IsReferenced(name string) bool { return s.ctx.IsReferenced(name) }

// MarkReturn records t as the returned type-set.
func (s *State) MarkReturn(t lattice.TypeSet) {
	s.set(s.ctx.returnSlot, t)
}

// ReturnType returns the type-set written by MarkReturn, or Void when no
// value is returned on the paths reaching s.
func (s *State) ReturnType() lattice.TypeSet {
	if s.ctx.returnSlot >= len(s.types) {
		return lattice.Void
	}
	return s.types[s.ctx.returnSlot]
}

// SetLessThanMax adds name to, or removes it from, the set of variables
// known to be strictly less than PHP_INT_MAX.
func (s *State) SetLessThanMax(name string, lessThanMax bool) {
	if !lessThanMax {
		delete(s.lessThanMax, name)
		return
	}
	if s.lessThanMax == nil {
		s.lessThanMax = make(map[string]struct{})
	}
	s.lessThanMax[name] = struct{}{}
}

// IsLessThanMax reports whether name is known to be below PHP_INT_MAX.
func (s *State) IsLessThanMax(name string) bool {
	_, ok := s.lessThanMax[name]
	return ok
}

// Clone deep-copies the slot types and refinements; the context and usage
// table stay shared.
func (s *State) Clone() *State {
	c := &State{
		ctx:         s.ctx,
		types:       append([]lattice.TypeSet(nil), s.types...),
		initialized: s.initialized,
	}
	if len(s.lessThanMax) > 0 {
		c.lessThanMax = maps.Clone(s.lessThanMax)
	}
	return c
}

// Merge joins s and other: slot types are unioned, a variable stays
// initialized only if initialized in both, and the less-than-max set is
// intersected. Both states must belong to the same Context.
func (s *State) Merge(other *State) *State {
	if s.ctx != other.ctx {
		panic("flow: merging states of different routines")
	}
	n := max(len(s.types), len(other.types))
	out := &State{
		ctx:         s.ctx,
		types:       make([]lattice.TypeSet, n),
		initialized: s.initialized & other.initialized,
	}
	copy(out.types, s.types)
	for i, t := range other.types {
		out.types[i] |= t
	}
	for name := range s.lessThanMax {
		if other.IsLessThanMax(name) {
			out.SetLessThanMax(name, true)
		}
	}
	return out
}

// Assign overwrites s with the content of other, which must belong to the
// same Context and must not be used afterwards.
func (s *State) Assign(other *State) {
	if s.ctx != other.ctx {
		panic("flow: assigning a state of a different routine")
	}
	*s = *other
}

// Equal reports whether s and other hold the same information.
func (s *State) Equal(other *State) bool {
	if s == other {
		return true
	}
	if other == nil || s.ctx != other.ctx || s.initialized != other.initialized {
		return false
	}
	n := max(len(s.types), len(other.types))
	for i := range n {
		if s.typeAt(i) != other.typeAt(i) {
			return false
		}
	}
	if len(s.lessThanMax) != len(other.lessThanMax) {
		return false
	}
	for name := range s.lessThanMax {
		if !other.IsLessThanMax(name) {
			return false
		}
	}
	return true
}

func (s *State) typeAt(idx int) lattice.TypeSet {
	if idx >= len(s.types) {
		return lattice.Void
	}
	return s.types[idx]
}

// IncludedIn reports whether s is below or equal to other in the lattice
// order: every slot type is a subset, every variable initialized in other
// is initialized in s, and every refinement of other holds in s.
func (s *State) IncludedIn(other *State) bool {
	return s.Merge(other).Equal(other)
}
