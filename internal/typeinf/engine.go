// Package typeinf infers the type-sets of local variables, expressions and
// return values of every routine of a program. Blocks of all routines share
// one worklist; call sites seed their callees and subscribe to callee
// return types, so the whole program converges to a single fixed point.
package typeinf

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/715d/phpflow/internal/interproc"
	"github.com/715d/phpflow/internal/symbols"
	"github.com/715d/phpflow/internal/worklist"
	"github.com/715d/phpflow/pkg/cfg"
)

// Options configures an Engine. The zero value drains the worklist
// concurrently with one worker per CPU.
type Options struct {
	// Workers bounds the routines analyzed in parallel; <= 0 means NumCPU.
	Workers int
	// Sequential drains the worklist on the calling goroutine.
	Sequential bool
}

// Engine runs type inference over one program.
type Engine struct {
	program  *cfg.Program
	resolver *symbols.Resolver
	opts     Options

	wl *worklist.Worklist[*cfg.Block]

	// Read-only after New.
	routines  map[*cfg.Graph]*routineState
	summaries map[*cfg.Routine]*interproc.Summary

	unsupported *xsync.Map[string, struct{}]
}

// New prepares the analysis state of every routine of p.
func New(p *cfg.Program, resolver *symbols.Resolver, opts Options) *Engine {
	if resolver == nil {
		resolver = symbols.NewResolver(p)
	}
	e := &Engine{
		program:     p,
		resolver:    resolver,
		opts:        opts,
		routines:    make(map[*cfg.Graph]*routineState),
		summaries:   make(map[*cfg.Routine]*interproc.Summary),
		unsupported: xsync.NewMap[string, struct{}](),
	}
	e.wl = worklist.New(e.visit)
	for _, r := range p.AllRoutines() {
		if r.IsLibrary() {
			continue
		}
		s := interproc.NewSummary(r)
		e.summaries[r] = s
		e.routines[r.Graph] = newRoutineState(r, s)
	}
	return e
}

// Roots returns the analysis roots: routines flagged as entry points, or
// every routine when none is flagged.
func (e *Engine) Roots() []*cfg.Routine {
	var all, entries []*cfg.Routine
	for _, r := range e.program.AllRoutines() {
		if r.IsLibrary() {
			continue
		}
		all = append(all, r)
		if r.Entry {
			entries = append(entries, r)
		}
	}
	if len(entries) > 0 {
		return entries
	}
	return all
}

// Run seeds the roots and drains the worklist to the fixed point.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	roots := e.Roots()
	for _, r := range roots {
		if e.summaries[r].SeedAny() {
			e.wl.Enqueue(r.Graph.Start)
		}
	}
	slog.Debug("starting type inference", "routines", len(e.routines), "roots", len(roots))

	if e.opts.Sequential {
		e.wl.RunToCompletion()
	} else {
		err := e.wl.RunConcurrent(ctx, e.opts.Workers, func(b *cfg.Block) any { return b.Graph })
		if err != nil {
			return nil, fmt.Errorf("infer types: %w", err)
		}
	}

	res := e.result()
	slog.Debug("type inference finished",
		"visits", res.Visits,
		"unreachable_routines", len(res.Unreachable),
		"duration", time.Since(start))
	return res, nil
}

func (e *Engine) result() *Result {
	res := &Result{
		Routines: make(map[*cfg.Routine]*RoutineResult, len(e.routines)),
		Visits:   e.wl.Visits(),
	}
	for _, rs := range e.routines {
		res.Routines[rs.routine] = rs.result(e.summaries[rs.routine])
	}
	for r, s := range e.summaries {
		if !s.IsSeeded() {
			res.Unreachable = append(res.Unreachable, r)
		}
	}
	slices.SortFunc(res.Unreachable, func(a, b *cfg.Routine) int {
		return strings.Compare(a.QualifiedName(), b.QualifiedName())
	})
	return res
}

// visit analyzes one block; it is the worklist callback.
func (e *Engine) visit(b *cfg.Block) {
	rs := e.routines[b.Graph]
	if rs == nil {
		return
	}
	a := &analysis{e: e, rs: rs, block: b, types: rs.ctx.Types}
	a.visitBlock()
}

// logUnsupported logs an unmodeled construct once per kind.
func (e *Engine) logUnsupported(kind string, r *cfg.Routine) {
	if _, loaded := e.unsupported.LoadOrStore(kind, struct{}{}); loaded {
		return
	}
	slog.Debug("unsupported construct, assuming any type", "construct", kind, "routine", r.QualifiedName())
}
