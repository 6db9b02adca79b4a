package interproc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/715d/phpflow/internal/lattice"
	"github.com/715d/phpflow/pkg/cfg"
)

func portable(t lattice.TypeSet, u *lattice.Universe) lattice.Portable { return u.Export(t) }

func TestSummary_BindArguments(t *testing.T) {
	u := lattice.NewUniverse()
	r := &cfg.Routine{Name: "f", Params: []*cfg.Param{{Name: "x"}, {Name: "y", Default: cfg.Int(0)}}}
	s := NewSummary(r)
	require.False(t, s.IsSeeded())

	changed := s.BindArguments([]Argument{{Type: portable(u.Long(), u), LessThanMax: true}})
	require.True(t, changed, "first binding seeds the routine")

	seed := s.Seed()
	require.True(t, seed.Seeded)
	assert.Equal(t, "int", seed.Params[0].String())
	assert.True(t, seed.LessThanMax[0])
	assert.True(t, seed.Omitted[1])
	assert.True(t, seed.Params[1].IsVoid())

	require.False(t, s.BindArguments([]Argument{{Type: portable(u.Long(), u), LessThanMax: true}}),
		"same binding is a no-op")

	require.True(t, s.BindArguments([]Argument{{Type: portable(u.Long(), u)}}),
		"losing the less-than-max refinement changes the seed")
	require.False(t, s.Seed().LessThanMax[0])

	require.True(t, s.BindArguments([]Argument{{Type: portable(u.Str(), u)}, {Type: portable(u.Long(), u)}}))
	seed = s.Seed()
	assert.Equal(t, "int|string", seed.Params[0].String())
	assert.Equal(t, "int", seed.Params[1].String())
}

func TestSummary_Variadic(t *testing.T) {
	u := lattice.NewUniverse()
	r := &cfg.Routine{Name: "f", Params: []*cfg.Param{{Name: "first"}, {Name: "rest", Variadic: true}}}
	s := NewSummary(r)
	s.BindArguments([]Argument{
		{Type: portable(u.Long(), u)},
		{Type: portable(u.Str(), u)},
		{Type: portable(u.Double(), u)},
	})
	seed := s.Seed()
	assert.Equal(t, "int", seed.Params[0].String())
	assert.Equal(t, "array<float|string>", seed.Params[1].String())
}

func TestSummary_SeedAny(t *testing.T) {
	r := &cfg.Routine{Name: "main", Params: []*cfg.Param{{Name: "argv"}}}
	s := NewSummary(r)
	require.True(t, s.SeedAny())
	require.False(t, s.SeedAny())
	require.True(t, s.Seed().Params[0].Any)

	u := lattice.NewUniverse()
	require.False(t, s.BindArguments([]Argument{{Type: portable(u.Long(), u)}}),
		"any absorbs every later binding")
}

func TestSummary_PublishReturn(t *testing.T) {
	u := lattice.NewUniverse()
	s := NewSummary(&cfg.Routine{Name: "g"})
	require.True(t, s.ReturnType().IsVoid())

	require.False(t, s.PublishReturn(lattice.Portable{}), "publishing void changes nothing")
	require.True(t, s.PublishReturn(portable(u.Long(), u)))
	require.False(t, s.PublishReturn(portable(u.Long(), u)))
	require.True(t, s.PublishReturn(portable(u.Str(), u)))
	require.Equal(t, "int|string", s.ReturnType().String())
}

func TestSummary_ConcurrentSubscribe(t *testing.T) {
	s := NewSummary(&cfg.Routine{Name: "g"})
	g := cfg.NewGraph(&cfg.Routine{Name: "caller"})
	blocks := make([]*cfg.Block, 64)
	for i := range blocks {
		blocks[i] = g.NewBlock()
	}

	var wg sync.WaitGroup
	for _, b := range blocks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Subscribe(b)
			s.Subscribe(b)
		}()
	}
	wg.Wait()
	require.ElementsMatch(t, blocks, s.Subscribers())
}

func TestSummary_ConcurrentPublish(t *testing.T) {
	s := NewSummary(&cfg.Routine{Name: "g"})
	kinds := []lattice.Kind{lattice.KindLong, lattice.KindString, lattice.KindBool, lattice.KindNull}

	var wg sync.WaitGroup
	for _, k := range kinds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.PublishReturn(lattice.Portable{Types: []lattice.PortableType{{Kind: k}}})
		}()
	}
	wg.Wait()
	require.Equal(t, "bool|int|null|string", s.ReturnType().String())
}
