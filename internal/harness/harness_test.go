package harness

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestAll runs all integration tests.
func TestAll(t *testing.T) {
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "get current file path")

	harnessDir := filepath.Dir(filename)
	testdataDir := filepath.Join(harnessDir, "..", "..", "testdata")

	testCases := discoverTestCases(t, testdataDir)
	require.NotEmpty(t, testCases, "no test cases found")

	if testing.Verbose() {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	for _, tc := range testCases {
		t.Run(tc.Dir, func(t *testing.T) {
			t.Parallel()
			if tc.Description != "" {
				t.Log(tc.Description)
			}

			result := NewHarness(testdataDir).Run(t, tc)
			if result.Skipped {
				t.Skipf("Test skipped: %s", result.Message)
				return
			}

			if !result.Success {
				t.Errorf("Test failed: %s", result.Message)
			}
		})
	}
}

func TestValidateExpectedRoutines(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "expected.yaml"), []byte(`
routines:
  - name: f
    return: void
  - name: f
    return: int
`), 0o600))
	tc := LoadTestCase(t, dir, "")

	res := validateResults(RunConfiguration{Name: "sequential"}, tc, nil)
	require.False(t, res.Success)
	require.Contains(t, res.Message, "listed twice")
}

func discoverTestCases(t *testing.T, root string) []*TestCase {
	t.Helper()

	entries, err := os.ReadDir(root)
	require.NoError(t, err)

	var testCases []*TestCase
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dir := filepath.Join(root, entry.Name())

		// Check if this directory has an expected.yaml.
		if _, err := os.Stat(filepath.Join(dir, "expected.yaml")); err == nil {
			testCases = append(testCases, LoadTestCase(t, dir, root))
		}
	}

	return testCases
}
