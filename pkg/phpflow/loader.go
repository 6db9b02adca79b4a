// Package phpflow provides type inference and the copy, parameter-escape
// and reachability analyses over PHP control-flow-graph programs.
package phpflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/715d/phpflow/internal/progfile"
	"github.com/715d/phpflow/pkg/cfg"
)

// LoaderOptions configures program loading.
type LoaderOptions struct {
	// Paths are program description files or directories; a directory
	// contributes every *.yaml and *.yml file directly inside it.
	Paths []string
}

// LoadProgram decodes and merges the program descriptions named by opts
// into one program.
func LoadProgram(ctx context.Context, opts LoaderOptions) (*cfg.Program, error) {
	if len(opts.Paths) == 0 {
		return nil, fmt.Errorf("no program files provided")
	}
	files, err := expandPaths(opts.Paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no program files found in %v", opts.Paths)
	}

	// Each goroutine writes its own index; the merge reads after Wait.
	parts := make([]*cfg.Program, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(goruntime.NumCPU())
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := progfile.Load(path)
			if err != nil {
				return err
			}
			parts[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading program: %w", err)
	}

	merged := &cfg.Program{}
	for _, p := range parts {
		merged.Routines = append(merged.Routines, p.Routines...)
		merged.Classes = append(merged.Classes, p.Classes...)
		merged.Library = append(merged.Library, p.Library...)
	}
	return merged, nil
}

// expandPaths resolves directories to the program files they hold and
// drops duplicates, keeping the first occurrence.
func expandPaths(paths []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(path string) {
		clean := filepath.Clean(path)
		if !seen[clean] {
			seen[clean] = true
			out = append(out, clean)
		}
	}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat program path: %w", err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		var found []string
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(path, pattern))
			if err != nil {
				return nil, fmt.Errorf("list %s: %w", path, err)
			}
			found = append(found, matches...)
		}
		slices.Sort(found)
		for _, f := range found {
			add(f)
		}
	}
	return out, nil
}
