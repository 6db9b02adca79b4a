// Package fixpoint is the generic block-granularity fixed-point driver
// shared by type inference and the secondary analyses. An analysis is a
// pure transfer function from a block's entry state to the states flowing
// into its successors; the driver owns the per-block states and the
// worklist.
package fixpoint

import (
	"github.com/715d/phpflow/internal/worklist"
	"github.com/715d/phpflow/pkg/cfg"
)

// JoinFunc returns the least upper bound of stored and incoming and
// reports whether it differs from stored.
type JoinFunc[S any] func(stored, incoming S) (S, bool)

// Store holds the state attached to each block of one graph.
type Store[S any] struct {
	states []S
	set    []bool
	join   JoinFunc[S]
}

// NewStore returns a store with no block reached.
func NewStore[S any](g *cfg.Graph, join JoinFunc[S]) *Store[S] {
	return &Store[S]{
		states: make([]S, len(g.Blocks)),
		set:    make([]bool, len(g.Blocks)),
		join:   join,
	}
}

func (s *Store[S]) grow(id int) {
	for id >= len(s.states) {
		var zero S
		s.states = append(s.states, zero)
		s.set = append(s.set, false)
	}
}

// State returns the state attached to b.
func (s *Store[S]) State(b *cfg.Block) (S, bool) {
	if b.ID >= len(s.states) || !s.set[b.ID] {
		var zero S
		return zero, false
	}
	return s.states[b.ID], true
}

// Reached reports whether a state is attached to b.
func (s *Store[S]) Reached(b *cfg.Block) bool {
	return b.ID < len(s.set) && s.set[b.ID]
}

// Propagate attaches incoming to target when target was never reached;
// otherwise it joins incoming into the stored state and replaces it only
// when the join differs. It reports whether target must be (re-)analyzed.
// The store takes ownership of incoming.
func (s *Store[S]) Propagate(target *cfg.Block, incoming S) bool {
	s.grow(target.ID)
	if !s.set[target.ID] {
		s.states[target.ID] = incoming
		s.set[target.ID] = true
		return true
	}
	merged, changed := s.join(s.states[target.ID], incoming)
	if !changed {
		return false
	}
	s.states[target.ID] = merged
	return true
}

// Flow is a state flowing into a successor block.
type Flow[S any] struct {
	Target *cfg.Block
	State  S
}

// Analysis is a forward dataflow analysis over one graph.
type Analysis[S any] interface {
	// Entry returns the state at the start block.
	Entry(g *cfg.Graph) S
	// Join returns the least upper bound of stored and incoming and
	// reports whether it differs from stored.
	Join(stored, incoming S) (S, bool)
	// Transfer computes the states flowing out of b given its entry state.
	// It must not modify in.
	Transfer(b *cfg.Block, in S) []Flow[S]
}

// Broadcast sends out to every successor of b. Block-granularity analyses
// without edge-specific refinement use it as their whole edge handling.
func Broadcast[S any](b *cfg.Block, out S) []Flow[S] {
	targets := b.Successors()
	flows := make([]Flow[S], len(targets))
	for i, t := range targets {
		flows[i] = Flow[S]{Target: t, State: out}
	}
	return flows
}

// Result is the converged solution of an analysis.
type Result[S any] struct {
	*Store[S]
	Visits int
}

// Solve runs a to a fixed point over g.
func Solve[S any](g *cfg.Graph, a Analysis[S]) *Result[S] {
	store := NewStore(g, a.Join)
	var wl *worklist.Worklist[*cfg.Block]
	wl = worklist.New(func(b *cfg.Block) {
		in, ok := store.State(b)
		if !ok {
			return
		}
		for _, f := range a.Transfer(b, in) {
			if f.Target != nil && store.Propagate(f.Target, f.State) {
				wl.Enqueue(f.Target)
			}
		}
	})
	if g.Start != nil {
		store.Propagate(g.Start, a.Entry(g))
		wl.Enqueue(g.Start)
	}
	wl.RunToCompletion()
	return &Result[S]{Store: store, Visits: wl.Visits()}
}
