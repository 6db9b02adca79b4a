package phpflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	functionsFile = `
library:
  - {name: strlen, returns: int}
routines:
  - name: f
    blocks:
      - next: {goto: exit}
`
	classesFile = `
classes:
  - name: A
    methods:
      - name: m
        blocks:
          - next: {goto: exit}
`
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadProgram(t *testing.T) {
	dir := t.TempDir()
	fns := writeFile(t, dir, "functions.yaml", functionsFile)
	writeFile(t, dir, "classes.yml", classesFile)
	writeFile(t, dir, "notes.txt", "not a program")

	tests := []struct {
		name     string
		paths    []string
		routines int
		classes  int
		library  int
	}{
		{"single file", []string{fns}, 1, 0, 1},
		{"directory", []string{dir}, 1, 1, 1},
		{"duplicates are loaded once", []string{fns, dir, fns}, 1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := LoadProgram(context.Background(), LoaderOptions{Paths: tt.paths})
			require.NoError(t, err)
			assert.Len(t, p.Routines, tt.routines)
			assert.Len(t, p.Classes, tt.classes)
			assert.Len(t, p.Library, tt.library)
		})
	}
}

func TestLoadProgram_Errors(t *testing.T) {
	dir := t.TempDir()
	broken := writeFile(t, dir, "broken.yaml", "routines:\n  - name: f\n")

	tests := []struct {
		name  string
		paths []string
		want  string
	}{
		{"no paths", nil, "no program files provided"},
		{"empty directory", []string{t.TempDir()}, "no program files found"},
		{"missing file", []string{filepath.Join(dir, "missing.yaml")}, "stat program path"},
		{"decode error", []string{broken}, "routine has no blocks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadProgram(context.Background(), LoaderOptions{Paths: tt.paths})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
