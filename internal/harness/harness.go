package harness

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/715d/phpflow/pkg/phpflow"
)

// TestCase represents a single test scenario.
type TestCase struct {
	// Dir is the directory containing the program description.
	Dir string `yaml:"-"`

	// Description says what the case exercises.
	Description string `yaml:"description"`

	// Configurations defines the worklist drivers to run the case under.
	// Empty means defaultConfigurations.
	Configurations []RunConfiguration `yaml:"configurations"`

	// Routines lists the expected report of every analyzed routine.
	Routines []phpflow.RoutineReport `yaml:"routines"`

	// UnreachableRoutines lists the routines expected to be never reached.
	UnreachableRoutines []string `yaml:"unreachable_routines"`

	// ExpectedErrors lists substrings of an expected analysis error.
	ExpectedErrors []string `yaml:"expected_errors"`
}

// TestHarness manages test execution.
type TestHarness struct {
	// root is the root directory for test data
	root string
}

// NewHarness creates a new test harness.
func NewHarness(root string) *TestHarness {
	return &TestHarness{root: root}
}

// Run executes a test case under all its configurations.
func (h *TestHarness) Run(t *testing.T, tc *TestCase) *TestResult {
	t.Helper()
	configs := tc.Configurations
	if len(configs) == 0 {
		configs = defaultConfigurations
	}

	var results []ConfigurationResult
	allSuccess, ran := true, 0
	for _, cfg := range configs {
		if cfg.Skip {
			t.Logf("[%s] skipped: %s", cfg.Name, cfg.Reason)
			continue
		}
		ran++
		cfgResult := h.runConfiguration(t, tc, cfg)
		results = append(results, *cfgResult)
		if !cfgResult.Success {
			allSuccess = false
		}
	}
	if ran == 0 {
		return &TestResult{TestCase: tc, Skipped: true, Message: "all configurations skipped"}
	}

	var resultMsg string
	if allSuccess {
		resultMsg = fmt.Sprintf("All %d configurations passed", ran)
	} else {
		failedCount := 0
		var msgs []string
		for _, cr := range results {
			if !cr.Success {
				failedCount++
				msgs = append(msgs, fmt.Sprintf("[%s] %s:\n  %s",
					cr.Configuration.Name, cr.Message, strings.Join(cr.Details, "\n")))
			}
		}
		resultMsg = fmt.Sprintf("%d/%d configurations failed:\n%s",
			failedCount, ran, strings.Join(msgs, "\n"))
	}

	return &TestResult{
		TestCase:             tc,
		ConfigurationResults: results,
		Success:              allSuccess,
		Message:              resultMsg,
	}
}

// runConfiguration analyzes the case program under a single configuration.
func (h *TestHarness) runConfiguration(t *testing.T, tc *TestCase, cfg RunConfiguration) *ConfigurationResult {
	t.Helper()
	p := LoadProgram(t, h.root, tc.Dir)

	analyzer := phpflow.NewAnalyzer(phpflow.AnalyzerOptions{
		Workers:    cfg.Workers,
		Sequential: cfg.Sequential,
	})
	result, err := analyzer.Analyze(t.Context(), p)
	if err != nil {
		for _, expectedErr := range tc.ExpectedErrors {
			if strings.Contains(err.Error(), expectedErr) {
				return &ConfigurationResult{
					Configuration: cfg,
					Success:       true,
					Message:       fmt.Sprintf("Got expected error: %v", err),
				}
			}
		}
		require.NoError(t, err)
	}
	if len(tc.ExpectedErrors) > 0 {
		return &ConfigurationResult{
			Configuration: cfg,
			Result:        result,
			Message:       "Expected an error",
			Details:       tc.ExpectedErrors,
		}
	}
	return validateResults(cfg, tc, result)
}

// ConfigurationResult represents the result of running a single configuration.
type ConfigurationResult struct {
	// Configuration is the configuration that was run.
	Configuration RunConfiguration

	// Result is the raw result from the analyzer.
	Result *phpflow.Result

	// Success indicates if this configuration passed.
	Success bool

	// Message provides a summary of the result for this configuration.
	Message string

	// Details provides detailed information about failures for this configuration.
	Details []string
}

// TestResult represents the result of running a test case.
type TestResult struct {
	// TestCase is the test case that was run.
	TestCase *TestCase

	// ConfigurationResults contains results for each configuration.
	ConfigurationResults []ConfigurationResult

	// Success indicates if the test passed (all configurations passed)
	Success bool

	// Skipped indicates if the test was skipped.
	Skipped bool

	// Message provides a summary of the result.
	Message string
}

var reportOpts = []cmp.Option{
	cmpopts.IgnoreFields(phpflow.RoutineReport{}, "Exprs", "Visits"),
	cmpopts.EquateEmpty(),
}

// validateExpectedRoutines validates that expected routines have required fields
func validateExpectedRoutines(expected []phpflow.RoutineReport) error {
	seen := make(map[string]bool)
	for i, exp := range expected {
		if strings.TrimSpace(exp.Name) == "" {
			return fmt.Errorf("expected routine at index %d has empty or missing 'name' field", i)
		}
		if exp.Return == "" {
			return fmt.Errorf("expected routine %s has no 'return' field", exp.Name)
		}
		if seen[exp.Name] {
			return fmt.Errorf("expected routine %s is listed twice", exp.Name)
		}
		seen[exp.Name] = true
	}
	return nil
}

func validateResults(cfg RunConfiguration, tc *TestCase, result *phpflow.Result) *ConfigurationResult {
	cfgResult := &ConfigurationResult{
		Configuration: cfg,
		Result:        result,
	}
	if err := validateExpectedRoutines(tc.Routines); err != nil {
		cfgResult.Message = fmt.Sprintf("Invalid expected.yaml: %v", err)
		cfgResult.Details = []string{err.Error()}
		return cfgResult
	}

	var details []string
	var missing, unexpected []string
	for _, exp := range tc.Routines {
		got := result.Routine(exp.Name)
		if got == nil {
			missing = append(missing, exp.Name)
			continue
		}
		if diff := cmp.Diff(exp, *got, reportOpts...); diff != "" {
			details = append(details, fmt.Sprintf("Report mismatch for %s (-want +got):\n%s", exp.Name, diff))
		}
	}
	for _, got := range result.Routines {
		if !slices.ContainsFunc(tc.Routines, func(exp phpflow.RoutineReport) bool { return exp.Name == got.Name }) {
			unexpected = append(unexpected, got.Name)
		}
	}
	slices.Sort(missing)
	slices.Sort(unexpected)
	for _, m := range missing {
		details = append(details, "Routine was not analyzed: "+m)
	}
	for _, u := range unexpected {
		details = append(details, "Routine has no expected report: "+u)
	}
	if diff := cmp.Diff(tc.UnreachableRoutines, result.UnreachableRoutines, cmpopts.EquateEmpty(), cmpopts.SortSlices(strings.Compare)); diff != "" {
		details = append(details, fmt.Sprintf("Unreachable routines mismatch (-want +got):\n%s", diff))
	}

	cfgResult.Success = len(details) == 0
	cfgResult.Details = details
	if cfgResult.Success {
		cfgResult.Message = fmt.Sprintf("All %d expected routine reports matched", len(tc.Routines))
	} else {
		cfgResult.Message = fmt.Sprintf("Test failed: %d mismatches, %d missing, %d unexpected",
			len(details)-len(missing)-len(unexpected), len(missing), len(unexpected))
	}
	return cfgResult
}
