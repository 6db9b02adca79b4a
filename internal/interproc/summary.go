// Package interproc holds the state shared between routines during type
// inference: the argument seeds a routine is analyzed with, its published
// return type, and the caller blocks subscribed to that return type. Every
// operation is safe for concurrent use by the workers of different
// routines.
package interproc

import (
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/715d/phpflow/internal/lattice"
	"github.com/715d/phpflow/pkg/cfg"
)

// Argument is the type of one actual argument at a call site.
type Argument struct {
	Type        lattice.Portable
	LessThanMax bool
}

// Seed is a snapshot of the parameter bindings a routine is analyzed with.
type Seed struct {
	Seeded      bool
	Params      []lattice.Portable
	LessThanMax []bool
	// Omitted flags parameters left out by at least one call site; their
	// default value contributes to the parameter type.
	Omitted []bool
}

// Summary is the cross-routine record of one routine.
type Summary struct {
	Routine *cfg.Routine

	mu   sync.Mutex
	seed Seed

	ret         atomic.Pointer[lattice.Portable]
	subscribers *xsync.Map[*cfg.Block, struct{}]
}

// NewSummary returns the summary of r; r is unseeded and returns nothing.
func NewSummary(r *cfg.Routine) *Summary {
	n := len(r.Params)
	return &Summary{
		Routine: r,
		seed: Seed{
			Params:      make([]lattice.Portable, n),
			LessThanMax: make([]bool, n),
			Omitted:     make([]bool, n),
		},
		subscribers: xsync.NewMap[*cfg.Block, struct{}](),
	}
}

// SeedAny marks the routine as an analysis root: every parameter may hold
// any value. It reports whether the seed changed.
func (s *Summary) SeedAny() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := !s.seed.Seeded
	s.seed.Seeded = true
	for i := range s.seed.Params {
		if !s.seed.Params[i].Any {
			changed = true
		}
		s.seed.Params[i] = lattice.AnyPortable
		if s.seed.LessThanMax[i] {
			changed = true
		}
		s.seed.LessThanMax[i] = false
	}
	return changed
}

// BindArguments unions the argument types of one call site into the
// parameter seeds, binding positionally. Extra arguments flow into a
// variadic last parameter and are dropped otherwise; missing arguments mark
// their parameter as omitted. It reports whether the seed changed, in
// which case the routine must be re-analyzed.
func (s *Summary) BindArguments(args []Argument) bool {
	params := s.Routine.Params
	s.mu.Lock()
	defer s.mu.Unlock()

	first := !s.seed.Seeded
	s.seed.Seeded = true
	changed := first
	for i, p := range params {
		var (
			t   lattice.Portable
			ltm bool
		)
		switch {
		case p.Variadic:
			var elem lattice.Portable
			for _, a := range args[min(i, len(args)):] {
				elem = elem.Union(a.Type)
			}
			t = lattice.Portable{Types: []lattice.PortableType{{Kind: lattice.KindArray, Elem: &elem}}}
		case i < len(args):
			t, ltm = args[i].Type, args[i].LessThanMax
		default:
			if !s.seed.Omitted[i] {
				s.seed.Omitted[i] = true
				changed = true
			}
		}

		merged := s.seed.Params[i].Union(t)
		if !merged.Equal(s.seed.Params[i]) {
			s.seed.Params[i] = merged
			changed = true
		}
		switch {
		case first:
			s.seed.LessThanMax[i] = ltm
		case s.seed.LessThanMax[i] && !ltm:
			s.seed.LessThanMax[i] = false
			changed = true
		}
	}
	return changed
}

// Seed returns a copy of the current parameter bindings.
func (s *Summary) Seed() Seed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Seed{
		Seeded:      s.seed.Seeded,
		Params:      append([]lattice.Portable(nil), s.seed.Params...),
		LessThanMax: append([]bool(nil), s.seed.LessThanMax...),
		Omitted:     append([]bool(nil), s.seed.Omitted...),
	}
}

// IsSeeded reports whether the routine is a root or was reached from a
// call site.
func (s *Summary) IsSeeded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seed.Seeded
}

// PublishReturn unions t into the published return type and reports
// whether it grew. Callers that observe a change must notify the
// subscribers afterwards.
func (s *Summary) PublishReturn(t lattice.Portable) bool {
	for {
		old := s.ret.Load()
		var cur lattice.Portable
		if old != nil {
			cur = *old
		}
		next := cur.Union(t)
		if old != nil && next.Equal(cur) {
			return false
		}
		if s.ret.CompareAndSwap(old, &next) {
			return old != nil || !next.IsVoid()
		}
	}
}

// ReturnType returns the published return type. It is Void until the
// routine's exit block has been reached.
func (s *Summary) ReturnType() lattice.Portable {
	if p := s.ret.Load(); p != nil {
		return *p
	}
	return lattice.Portable{}
}

// Subscribe registers a caller block for re-analysis when the return type
// changes. Callers subscribe before reading ReturnType so that no change
// published in between is lost.
func (s *Summary) Subscribe(b *cfg.Block) {
	s.subscribers.Store(b, struct{}{})
}

// Subscribers lists the subscribed caller blocks.
func (s *Summary) Subscribers() []*cfg.Block {
	out := make([]*cfg.Block, 0, s.subscribers.Size())
	s.subscribers.Range(func(b *cfg.Block, _ struct{}) bool {
		out = append(out, b)
		return true
	})
	return out
}
