// Package paramcopy decides which by-value parameters of a routine need a
// defensive deep copy at entry. A parameter shares its storage with the
// caller's value until something could observe the difference: the routine
// modifying the parameter in place, or reading it after an operation that
// may have mutated an external alias (field and element writes, object to
// string conversion, clone, eval, any call).
package paramcopy

import (
	"golang.org/x/tools/container/intsets"

	"github.com/715d/phpflow/internal/fixpoint"
	"github.com/715d/phpflow/internal/symbols"
	"github.com/715d/phpflow/pkg/cfg"
)

// Status is the escape lattice: Unexplored < Clean < Dirty.
type Status uint8

const (
	Unexplored Status = iota
	Clean
	Dirty
)

func (s Status) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	default:
		return "unexplored"
	}
}

// Options configures an analysis. The zero value is fully conservative.
type Options struct {
	// Resolver identifies by-reference parameters of callees; nil treats
	// every variable argument as modified.
	Resolver *symbols.Resolver
	// MayBeObject reports whether e may evaluate to an object, making its
	// string conversion observable; nil answers true.
	MayBeObject func(cfg.Expr) bool
	// Scalar reports whether a parameter only ever holds scalars, which
	// are copied on assignment anyway; nil answers false.
	Scalar func(name string) bool
}

type analysis struct {
	opts   Options
	caller *cfg.Routine
	// params maps by-value parameter names to their position.
	params map[string]int
}

func (a *analysis) Entry(*cfg.Graph) Status { return Clean }

func (a *analysis) Join(stored, incoming Status) (Status, bool) {
	if incoming > stored {
		return incoming, true
	}
	return stored, false
}

func (a *analysis) Transfer(b *cfg.Block, in Status) []fixpoint.Flow[Status] {
	w := &walker{analysis: a, st: in}
	w.block(b)
	return fixpoint.Broadcast(b, w.st)
}

func (a *analysis) mayBeObject(e cfg.Expr) bool {
	if a.opts.MayBeObject == nil {
		return true
	}
	return a.opts.MayBeObject(e)
}

// Result is the defensive-copy decision for the parameters of a routine.
type Result struct {
	Routine *cfg.Routine
	Visits  int

	solved *fixpoint.Result[Status]
	copies intsets.Sparse
}

// Analyze runs parameter-escape analysis over r.
func Analyze(r *cfg.Routine, opts Options) *Result {
	a := &analysis{opts: opts, caller: r, params: make(map[string]int)}
	for i, p := range r.Params {
		if !p.ByRef {
			a.params[p.Name] = i
		}
	}
	solved := fixpoint.Solve[Status](r.Graph, a)
	res := &Result{Routine: r, Visits: solved.Visits, solved: solved}
	if len(a.params) == 0 {
		return res
	}
	for _, b := range r.Graph.Blocks {
		in, ok := solved.State(b)
		if !ok {
			continue
		}
		w := &walker{analysis: a, st: in, copies: &res.copies}
		w.block(b)
	}
	if opts.Scalar != nil {
		for _, i := range res.copies.AppendTo(nil) {
			if opts.Scalar(r.Params[i].Name) {
				res.copies.Remove(i)
			}
		}
	}
	return res
}

// Status returns the converged entry status of b; Unexplored when b was
// never reached.
func (r *Result) Status(b *cfg.Block) Status {
	st, _ := r.solved.State(b)
	return st
}

// NeedsCopy reports whether p must be deep-copied at routine entry.
func (r *Result) NeedsCopy(p *cfg.Param) bool {
	for i, q := range r.Routine.Params {
		if q == p {
			return r.copies.Has(i)
		}
	}
	return false
}

// Copies lists the names of the parameters needing a copy, in declaration
// order.
func (r *Result) Copies() []string {
	var out []string
	for _, i := range r.copies.AppendTo(nil) {
		out = append(out, r.Routine.Params[i].Name)
	}
	return out
}
