package phpflow

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/715d/phpflow/internal/progfile"
	"github.com/715d/phpflow/pkg/cfg"
)

const program = `
routines:
  - name: main
    entry: true
    blocks:
      - name: start
        stmts:
          - expr: {assign: [$a, {array: [1, 2]}]}
          - expr: {assign: [$b, $a]}
          - expr: {call: [mutator, $a]}
          - expr: {assign: [{item: {array: $b}}, 3]}
          - expr: {assign: [$n, {call: [shout, hi]}]}
        next: {if: {cond: false, then: dead, else: tail}}
      - name: dead
        stmts: [{echo: $missing}]
        next: {goto: tail}
      - name: tail
        stmts: [{return: $n}]
        next: {goto: exit}
  - name: shout
    params: [{name: x}]
    blocks:
      - stmts: [{return: {bin: [$x, ".", "!"]}}]
        next: {goto: exit}
  - name: mutator
    params: [{name: list}]
    blocks:
      - stmts: [{expr: {assign: [{item: {array: $list}}, 1]}}]
        next: {goto: exit}
  - name: orphan
    blocks:
      - next: {goto: exit}
`

func decode(t *testing.T, src string) *cfg.Program {
	t.Helper()
	p, err := progfile.Decode(strings.NewReader(src))
	require.NoError(t, err)
	return p
}

func TestAnalyzer_NoRoutines(t *testing.T) {
	tests := []struct {
		name string
		p    *cfg.Program
	}{
		{"nil program", nil},
		{"empty program", &cfg.Program{}},
		{"library only", &cfg.Program{Library: []*cfg.Routine{{Name: "strlen"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAnalyzer(AnalyzerOptions{}).Analyze(context.Background(), tt.p)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "no routines")
		})
	}
}

func TestAnalyzer_Analyze(t *testing.T) {
	res, err := NewAnalyzer(AnalyzerOptions{Sequential: true}).Analyze(context.Background(), decode(t, program))
	require.NoError(t, err)

	require.Len(t, res.Routines, 4)
	assert.Equal(t, []string{"orphan"}, res.UnreachableRoutines)
	assert.True(t, res.HasFindings())

	main := res.Routine("main")
	require.NotNil(t, main)
	assert.Equal(t, "string", main.Return)
	assert.Equal(t, "array<int>", main.Vars["a"])
	assert.Equal(t, "array<int>", main.Vars["b"])
	assert.Equal(t, "string", main.Vars["n"])
	assert.Equal(t, []string{"missing"}, main.Uninitialized)
	assert.Empty(t, main.Unused, "every assigned local of main is read")
	assert.Equal(t, []string{"dead"}, main.UnreachableBlocks)
	assert.Equal(t, []string{"start: $b = $a"}, main.DeepCopies)
	assert.Empty(t, main.ParamCopies)
	assert.Positive(t, main.Exprs)

	shout := res.Routine("shout")
	require.NotNil(t, shout)
	assert.Equal(t, "string", shout.Return)
	assert.Empty(t, shout.ParamCopies)

	mutator := res.Routine("mutator")
	require.NotNil(t, mutator)
	assert.Equal(t, "void", mutator.Return)
	assert.Equal(t, []string{"list"}, mutator.ParamCopies)

	orphan := res.Routine("orphan")
	require.NotNil(t, orphan)
	assert.Equal(t, "void", orphan.Return)
	assert.Empty(t, orphan.Vars)
	assert.Empty(t, orphan.UnreachableBlocks)
}

func TestAnalyzer_SequentialMatchesConcurrent(t *testing.T) {
	p := decode(t, program)
	seq, err := NewAnalyzer(AnalyzerOptions{Sequential: true}).Analyze(context.Background(), p)
	require.NoError(t, err)

	for _, workers := range []int{1, 2, 8} {
		conc, err := NewAnalyzer(AnalyzerOptions{Workers: workers}).Analyze(context.Background(), p)
		require.NoError(t, err)
		diff := cmp.Diff(seq, conc,
			cmpopts.IgnoreFields(Result{}, "Visits"),
			cmpopts.IgnoreFields(RoutineReport{}, "Visits"))
		assert.Empty(t, diff, "workers=%d", workers)
	}
}

func TestAnalyzer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewAnalyzer(AnalyzerOptions{}).Analyze(ctx, decode(t, program))
	require.ErrorIs(t, err, context.Canceled)
}

func TestResult_HasFindings(t *testing.T) {
	clean := &Result{Routines: []*RoutineReport{{Name: "f", DeepCopies: []string{"start: $b = $a"}}}}
	assert.False(t, clean.HasFindings())

	clean.Routines[0].UnreachableBlocks = []string{"b3"}
	assert.True(t, clean.HasFindings())
	assert.Nil(t, clean.Routine("g"))
}
