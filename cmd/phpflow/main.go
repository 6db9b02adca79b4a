// Package main implements the CLI driver for the phpflow analyzer.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"runtime"
	"runtime/pprof"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/715d/phpflow/pkg/phpflow"
)

// Config holds all command-line configuration options for the analyzer.
type Config struct {
	Paths      []string // program description files or directories
	Verbose    bool     // enables detailed output and statistics
	JSON       bool     // enables JSON output format
	Profile    bool     // enables CPU and memory profiling
	Workers    int      // routines analyzed in parallel, 0 for one per CPU
	Sequential bool     // drain the worklist on a single goroutine
	Strict     bool     // fail when uninitialized reads or dead code are found
}

const (
	exitFindings = 1
	exitError    = 2
)

var (
	// Set via ldflags during build.
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var cfg Config

func main() {
	var rootCmd = &cobra.Command{
		Use:   "phpflow [program.yaml...]",
		Short: "Infer types and copy requirements of PHP control-flow graphs",
		Long: `phpflow runs worklist-driven type inference over PHP routines described
as control-flow graphs and reports, per routine:
- the inferred type of every local variable and of the return value
- reads of possibly uninitialized variables and unreachable blocks
- parameters needing a defensive copy and assignments needing a deep copy`,
		Example: `  phpflow program.yaml                 # Analyze one program
  phpflow testdata/                    # Analyze every program file in a directory
  phpflow --json program.yaml          # JSON output
  phpflow --strict program.yaml        # Exit 1 when findings exist`,
		Args:               cobra.MinimumNArgs(1),
		RunE:               runCommand,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
		SilenceUsage:       true,
		SilenceErrors:      true,
		Version:            version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("phpflow version %s\n  commit: %s\n  built:  %s\n", version, gitCommit, buildTime))

	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&cfg.JSON, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&cfg.Profile, "profile", false, "Enable CPU and memory profiling (writes cpu.prof and mem.prof to current directory)")
	rootCmd.PersistentFlags().IntVar(&cfg.Workers, "workers", 0, "Routines analyzed in parallel (0 = one per CPU)")
	rootCmd.PersistentFlags().BoolVar(&cfg.Sequential, "sequential", false, "Run type inference on a single goroutine")
	rootCmd.PersistentFlags().BoolVar(&cfg.Strict, "strict", false, "Exit with status 1 when uninitialized reads or unreachable code are found")

	if err := rootCmd.Execute(); err != nil {
		_ = teardown(nil, nil)
		if err.Error() != "" {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		var cErr *codedError
		if errors.As(err, &cErr) {
			os.Exit(cErr.code)
		}
		os.Exit(exitError)
	}
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg.Paths = args
	slog.Info("starting analysis", "paths", cfg.Paths)

	result, err := runAnalysis(cmd.Context(), &cfg)
	if err != nil {
		return errWithCode(fmt.Errorf("analyze: %w", err), exitError)
	}

	if err := writeResults(os.Stdout, result, &cfg); err != nil {
		return errWithCode(fmt.Errorf("format results: %w", err), exitError)
	}

	if cfg.Strict && result.HasFindings() {
		return errWithCode(nil, exitFindings)
	}
	return nil
}

func runAnalysis(ctx context.Context, cfg *Config) (*phpflow.Result, error) {
	start := time.Now()

	p, err := phpflow.LoadProgram(ctx, phpflow.LoaderOptions{Paths: cfg.Paths})
	if err != nil {
		return nil, fmt.Errorf("loading program: %w", err)
	}
	slog.Info("loaded program", "routines", len(p.AllRoutines()), "classes", len(p.Classes))

	analyzer := phpflow.NewAnalyzer(phpflow.AnalyzerOptions{
		Workers:    cfg.Workers,
		Sequential: cfg.Sequential,
	})
	result, err := analyzer.Analyze(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("analyze program: %w", err)
	}
	slog.Info("analysis completed", "dur", time.Since(start))
	return result, nil
}

func writeResults(w io.Writer, result *phpflow.Result, cfg *Config) error {
	var output string
	var err error

	if cfg.JSON {
		output, err = formatJSONOutput(result)
	} else {
		output = formatTextOutput(result, cfg)
	}
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, output)
	return err
}

type jOutput struct {
	*phpflow.Result
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

func formatJSONOutput(result *phpflow.Result) (string, error) {
	data, err := json.MarshalIndent(jOutput{
		Result:    result,
		Version:   version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling json output: %w", err)
	}
	return string(data) + "\n", nil
}

func formatTextOutput(result *phpflow.Result, cfg *Config) string {
	var output strings.Builder

	if cfg.Verbose {
		slog.Info("",
			"routines", len(result.Routines),
			"unreachable_routines", len(result.UnreachableRoutines),
			"visits", result.Visits)
	}

	for _, r := range result.Routines {
		fmt.Fprintf(&output, "%s: %s\n", r.Name, r.Return)
		if cfg.Verbose {
			for _, name := range slices.Sorted(maps.Keys(r.Vars)) {
				fmt.Fprintf(&output, "  $%s: %s\n", name, r.Vars[name])
			}
		}
		for _, v := range r.Uninitialized {
			fmt.Fprintf(&output, "  uninitialized read of $%s\n", v)
		}
		for _, v := range r.Unused {
			fmt.Fprintf(&output, "  unused variable $%s\n", v)
		}
		for _, b := range r.UnreachableBlocks {
			fmt.Fprintf(&output, "  unreachable block %s\n", b)
		}
		for _, p := range r.ParamCopies {
			fmt.Fprintf(&output, "  parameter $%s needs a copy\n", p)
		}
		for _, c := range r.DeepCopies {
			fmt.Fprintf(&output, "  deep copy at %s\n", c)
		}
	}
	for _, name := range result.UnreachableRoutines {
		fmt.Fprintf(&output, "unreachable routine %s\n", name)
	}
	return output.String()
}

var cpuProfile *os.File

func setup(_ *cobra.Command, _ []string) error {
	// Disable logger unless verbose flag is set.
	slog.SetDefault(slog.New(slog.DiscardHandler))
	if cfg.Verbose {
		opts := &slog.HandlerOptions{Level: slog.LevelDebug}
		var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
		if cfg.JSON {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		}
		slog.SetDefault(slog.New(handler))
	}

	if !cfg.Profile {
		return nil
	}

	var err error
	cpuProfile, err = os.Create("cpu.prof")
	if err != nil {
		return fmt.Errorf("creating cpu.prof: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuProfile); err != nil {
		_ = cpuProfile.Close()
		return fmt.Errorf("starting CPU profile: %w", err)
	}
	slog.Info("cpu profiling started", "file", "cpu.prof")
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if !cfg.Profile || cpuProfile == nil {
		return nil
	}

	pprof.StopCPUProfile()
	defer cpuProfile.Close()
	cpuProfile = nil
	slog.Info("cpu profiling stopped", "file", "cpu.prof")

	memFile, err := os.Create("mem.prof")
	if err != nil {
		return fmt.Errorf("creating mem.prof: %w", err)
	}
	defer memFile.Close()
	runtime.GC() // Get up-to-date statistics
	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("writing memory profile: %w", err)
	}
	slog.Info("memory profiling completed", "file", "mem.prof")
	return nil
}

func errWithCode(err error, code int) error {
	return &codedError{err: err, code: code}
}

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}

func (e *codedError) Unwrap() error { return e.err }
