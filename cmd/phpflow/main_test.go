package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/715d/phpflow/pkg/phpflow"
)

func sampleResult() *phpflow.Result {
	return &phpflow.Result{
		Routines: []*phpflow.RoutineReport{
			{
				Name:              "main",
				Return:            "int",
				Vars:              map[string]string{"x": "int", "a": "array<int>"},
				Uninitialized:     []string{"y"},
				Unused:            []string{"tmp"},
				UnreachableBlocks: []string{"dead"},
				DeepCopies:        []string{"start: $b = $a"},
			},
			{Name: "f", Return: "void", ParamCopies: []string{"list"}},
		},
		UnreachableRoutines: []string{"orphan"},
		Visits:              7,
	}
}

func TestFormatTextOutput(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "findings only",
			want: "main: int\n" +
				"  uninitialized read of $y\n" +
					"  unused variable $tmp\n" +
				"  unreachable block dead\n" +
				"  deep copy at start: $b = $a\n" +
				"f: void\n" +
				"  parameter $list needs a copy\n" +
				"unreachable routine orphan\n",
		},
		{
			name: "verbose lists variables",
			cfg:  Config{Verbose: true},
			want: "main: int\n" +
				"  $a: array<int>\n" +
				"  $x: int\n" +
				"  uninitialized read of $y\n" +
					"  unused variable $tmp\n" +
				"  unreachable block dead\n" +
				"  deep copy at start: $b = $a\n" +
				"f: void\n" +
				"  parameter $list needs a copy\n" +
				"unreachable routine orphan\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatTextOutput(sampleResult(), &tt.cfg))
		})
	}
}

func TestWriteResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResults(&buf, sampleResult(), &Config{JSON: true}))

	var got struct {
		Routines []struct {
			Name string `json:"name"`
		} `json:"routines"`
		UnreachableRoutines []string `json:"unreachable_routines"`
		Version             string   `json:"version"`
		Timestamp           string   `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got.Routines, 2)
	assert.Equal(t, "main", got.Routines[0].Name)
	assert.Equal(t, []string{"orphan"}, got.UnreachableRoutines)
	assert.Equal(t, version, got.Version)
	assert.NotEmpty(t, got.Timestamp)
}

func TestCodedError(t *testing.T) {
	base := errors.New("boom")
	err := errWithCode(base, exitError)

	var cErr *codedError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, exitError, cErr.code)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "boom", err.Error())

	assert.Empty(t, errWithCode(nil, exitFindings).Error())
}
