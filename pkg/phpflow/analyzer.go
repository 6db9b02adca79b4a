package phpflow

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	goruntime "runtime"
	"slices"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"

	"github.com/715d/phpflow/internal/copyflow"
	"github.com/715d/phpflow/internal/lattice"
	"github.com/715d/phpflow/internal/paramcopy"
	"github.com/715d/phpflow/internal/reach"
	"github.com/715d/phpflow/internal/symbols"
	"github.com/715d/phpflow/internal/typeinf"
	"github.com/715d/phpflow/pkg/cfg"
)

// AnalyzerOptions holds configuration options for the analyzer.
type AnalyzerOptions struct {
	// Workers bounds the routines analyzed in parallel; <= 0 means one per
	// CPU.
	Workers int
	// Sequential runs type inference on the calling goroutine. Results are
	// identical to a concurrent run.
	Sequential bool
}

// Analyzer runs type inference followed by the per-routine analyses.
type Analyzer struct {
	opts AnalyzerOptions
}

// NewAnalyzer creates a new analyzer with the given options.
func NewAnalyzer(opts AnalyzerOptions) *Analyzer {
	return &Analyzer{opts: opts}
}

// Analyze analyzes every routine of p.
func (a *Analyzer) Analyze(ctx context.Context, p *cfg.Program) (*Result, error) {
	if p == nil || len(p.AllRoutines()) == 0 {
		return nil, errors.New("no routines provided")
	}
	start := time.Now()

	resolver := symbols.NewResolver(p)
	engine := typeinf.New(p, resolver, typeinf.Options{
		Workers:    a.opts.Workers,
		Sequential: a.opts.Sequential,
	})
	types, err := engine.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("type inference: %w", err)
	}

	reports := xsync.NewMap[*cfg.Routine, *RoutineReport]()
	g, ctx := errgroup.WithContext(ctx)
	workers := a.opts.Workers
	if workers <= 0 {
		workers = goruntime.NumCPU()
	}
	g.SetLimit(workers)
	for _, r := range p.AllRoutines() {
		if r.IsLibrary() {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reports.Store(r, report(r, types.Routine(r), resolver))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("routine analyses: %w", err)
	}

	res := &Result{Visits: types.Visits}
	reports.Range(func(_ *cfg.Routine, rr *RoutineReport) bool {
		res.Routines = append(res.Routines, rr)
		return true
	})
	slices.SortFunc(res.Routines, func(x, y *RoutineReport) int {
		return cmp.Compare(x.Name, y.Name)
	})
	for _, r := range types.Unreachable {
		res.UnreachableRoutines = append(res.UnreachableRoutines, r.QualifiedName())
	}

	slog.Info("analysis finished",
		"routines", len(res.Routines),
		"unreachable_routines", len(res.UnreachableRoutines),
		"visits", res.Visits,
		"duration", time.Since(start))
	return res, nil
}

// report runs the secondary analyses of r on top of its inferred types.
func report(r *cfg.Routine, tr *typeinf.RoutineResult, resolver *symbols.Resolver) *RoutineReport {
	rep := &RoutineReport{
		Name:   r.QualifiedName(),
		Return: "void",
	}
	opts := paramcopy.Options{Resolver: resolver}

	if tr != nil && tr.Seeded {
		u := tr.Types()
		rep.Return = u.Name(tr.Return)
		rep.Exprs = len(tr.ExprTypes)
		rep.Uninitialized = tr.Uninitialized
		rep.Unused = tr.Unused
		rep.Visits = tr.Visits
		for _, name := range tr.Context.Names() {
			t := tr.VarType(name)
			if t.IsVoid() || cfg.IsSuperglobal(name) {
				continue
			}
			if rep.Vars == nil {
				rep.Vars = make(map[string]string)
			}
			rep.Vars[name] = u.Name(t)
		}

		for _, b := range reach.Analyze(r.Graph, tr.Reached).Unreachable() {
			rep.UnreachableBlocks = append(rep.UnreachableBlocks, b.Name())
		}

		opts.MayBeObject = func(e cfg.Expr) bool {
			t := tr.ExprType(e)
			return t.IsVoid() || u.IncludesKind(t, lattice.KindObject)
		}
		opts.Scalar = func(name string) bool {
			t := tr.VarType(name)
			return !t.IsVoid() && !t.IsAny() &&
				u.OfKind(t, lattice.KindNull, lattice.KindBool, lattice.KindLong, lattice.KindDouble, lattice.KindString) == t
		}
	}

	rep.ParamCopies = paramcopy.Analyze(r, opts).Copies()
	for _, s := range copyflow.Analyze(r, resolver).DeepCopies() {
		rep.DeepCopies = append(rep.DeepCopies, fmt.Sprintf("%s: $%s = $%s", s.Block.Name(), s.Target, s.Source))
	}
	return rep
}
