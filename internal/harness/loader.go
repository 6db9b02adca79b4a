package harness

import (
	"os"
	"path/filepath"
	"testing"

	yaml "gopkg.in/yaml.v3"

	"github.com/stretchr/testify/require"

	"github.com/715d/phpflow/pkg/cfg"
	"github.com/715d/phpflow/pkg/phpflow"
)

// programFile is the program description of every case directory.
const programFile = "program.yaml"

// LoadProgram loads the program description of the case in dir.
func LoadProgram(t *testing.T, root, dir string) *cfg.Program {
	t.Helper()

	path := filepath.Join(root, dir, programFile)
	t.Logf("Loading program from %q", path)
	p, err := phpflow.LoadProgram(t.Context(), phpflow.LoaderOptions{Paths: []string{path}})
	require.NoError(t, err)
	return p
}

// LoadTestCase loads a test case from a directory with a specified testdata root.
func LoadTestCase(t *testing.T, dir, root string) *TestCase {
	t.Helper()
	yamlPath := filepath.Join(dir, "expected.yaml")

	f, err := os.Open(yamlPath)
	require.NoError(t, err)
	defer f.Close()

	tc := &TestCase{}
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	require.NoError(t, dec.Decode(tc), "decoding %s", yamlPath)

	// Use relative path from testdata root if provided.
	if root != "" {
		relPath, err := filepath.Rel(root, dir)
		if err != nil {
			tc.Dir = filepath.Base(dir)
		} else {
			tc.Dir = relPath
		}
		return tc
	}

	tc.Dir = filepath.Base(dir)
	return tc
}
