package fixpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/715d/phpflow/pkg/cfg"
)

// depth computes the maximum number of statements on any acyclic path into
// a block, saturating at limit; a small monotone analysis over ints.
type depth struct{ limit int }

func (depth) Entry(*cfg.Graph) int { return 0 }

func (depth) Join(stored, incoming int) (int, bool) {
	if incoming > stored {
		return incoming, true
	}
	return stored, false
}

func (d depth) Transfer(b *cfg.Block, in int) []Flow[int] {
	return Broadcast(b, min(in+len(b.Stmts), d.limit))
}

func loopGraph() (*cfg.Graph, *cfg.Block, *cfg.Block) {
	g := cfg.NewGraph(&cfg.Routine{Name: "loop"})
	head := g.NewBlock()
	body := g.NewBlock().Add(&cfg.ExprStmt{X: cfg.Int(1)})
	g.Start.Goto(head)
	head.If(cfg.Var("c"), body, g.Exit)
	body.Goto(head)
	return g, head, body
}

func TestSolve_LoopConverges(t *testing.T) {
	g, head, body := loopGraph()
	res := Solve[int](g, depth{limit: 5})

	got, ok := res.State(g.Exit)
	require.True(t, ok)
	assert.Equal(t, 5, got, "saturates at the lattice height")

	got, _ = res.State(head)
	assert.Equal(t, 5, got)
	assert.True(t, res.Reached(body))
	assert.LessOrEqual(t, res.Visits, 3*len(g.Blocks)*6, "re-visits are bounded by the lattice height")
}

func TestSolve_UnreachedBlocks(t *testing.T) {
	g := cfg.NewGraph(&cfg.Routine{Name: "f"})
	orphan := g.NewBlock()
	orphan.Goto(g.Exit)
	g.Start.Goto(g.Exit)

	res := Solve[int](g, depth{limit: 3})
	assert.False(t, res.Reached(orphan))
	_, ok := res.State(orphan)
	assert.False(t, ok)
}

func TestStore_Propagate(t *testing.T) {
	g, head, _ := loopGraph()
	s := NewStore(g, depth{}.Join)

	require.True(t, s.Propagate(head, 1), "first visit attaches")
	require.False(t, s.Propagate(head, 1), "equal join stops propagation")
	require.False(t, s.Propagate(head, 0), "smaller state is absorbed")
	require.True(t, s.Propagate(head, 2))
	got, _ := s.State(head)
	require.Equal(t, 2, got)
}
