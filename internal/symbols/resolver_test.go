package symbols

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/715d/phpflow/pkg/cfg"
)

func testProgram() *cfg.Program {
	base := &cfg.Class{Name: "Shape", Methods: []*cfg.Routine{
		{Name: "area", Class: "Shape"},
		{Name: "__construct", Class: "Shape"},
	}}
	circle := &cfg.Class{Name: "Circle", Extends: "Shape", Methods: []*cfg.Routine{
		{Name: "area", Class: "Circle"},
		{Name: "radius", Class: "Circle"},
	}}
	square := &cfg.Class{Name: "Square", Extends: "\\Shape"}
	return &cfg.Program{
		Routines: []*cfg.Routine{{Name: "main"}, {Name: "helper"}, {Name: "dup"}, {Name: "DUP"}},
		Classes:  []*cfg.Class{base, circle, square},
		Library:  []*cfg.Routine{{Name: "strlen", ReturnHint: "int"}},
	}
}

func TestResolver_Functions(t *testing.T) {
	r := NewResolver(testProgram())
	tests := []struct {
		name  string
		found bool
	}{
		{name: "main", found: true},
		{name: "\\Helper", found: true},
		{name: "STRLEN", found: true},
		{name: "dup", found: false},
		{name: "missing", found: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.found, r.Function(tt.name) != nil)
		})
	}
	require.Len(t, r.Functions("dup"), 2, "case-insensitive duplicates are ambiguous")
	require.True(t, r.Function("strlen").IsLibrary())
}

func TestResolver_Methods(t *testing.T) {
	r := NewResolver(testProgram())

	m := r.Method("circle", "AREA")
	require.NotNil(t, m)
	assert.Equal(t, "Circle", m.Class)

	m = r.Method("Square", "area")
	require.NotNil(t, m)
	assert.Equal(t, "Shape", m.Class, "inherited along extends")

	require.NotNil(t, r.Constructor("Circle"))
	require.Nil(t, r.Method("Square", "radius"))

	assert.Len(t, r.MethodCandidates(nil, "area"), 2, "unknown receiver")
	assert.Len(t, r.MethodCandidates([]string{"Square", "Shape"}, "area"), 1)
	assert.Equal(t, "Shape", r.ClassOf(r.Method("Square", "area")).Name)
}

func TestResolver_ClassName(t *testing.T) {
	r := NewResolver(testProgram())
	caller := &cfg.Routine{Name: "radius", Class: "Circle"}

	assert.Equal(t, "Circle", r.ClassName(caller, "self"))
	assert.Equal(t, "Circle", r.ClassName(caller, "static"))
	assert.Equal(t, "Shape", r.ClassName(caller, "parent"))
	assert.Equal(t, "Other", r.ClassName(caller, "Other"))
	assert.Empty(t, r.ClassName(&cfg.Routine{Name: "main"}, "parent"))
}

func TestResolver_IsSubclassOf(t *testing.T) {
	r := NewResolver(testProgram())
	assert.True(t, r.IsSubclassOf("Circle", "shape"))
	assert.True(t, r.IsSubclassOf("Square", "Shape"))
	assert.True(t, r.IsSubclassOf("Circle", "Circle"))
	assert.False(t, r.IsSubclassOf("Shape", "Circle"))
	assert.True(t, r.IsSubclassOf("Unknown", "unknown"))
	assert.False(t, r.IsSubclassOf("Unknown", "Shape"))
}

func TestResolver_CyclicExtendsTerminates(t *testing.T) {
	r := NewResolver(&cfg.Program{Classes: []*cfg.Class{
		{Name: "A", Extends: "B"},
		{Name: "B", Extends: "A"},
	}})
	assert.False(t, r.IsSubclassOf("A", "C"))
	assert.Nil(t, r.Method("A", "missing"))
}

func TestNameCache_RoutineName(t *testing.T) {
	c := NewNameCache()
	m := &cfg.Routine{Name: "Area", Class: "\\Geo\\Circle"}
	require.Equal(t, "geo\\circle::area", c.RoutineName(m))
	require.Equal(t, c.RoutineName(m), c.RoutineName(m))
	require.Equal(t, "main", c.RoutineName(&cfg.Routine{Name: "Main"}))
	require.Empty(t, c.RoutineName(nil))
	require.Empty(t, c.Canonical(""))
}

func TestNameCache_Concurrent(t *testing.T) {
	c := NewNameCache()
	routines := make([]*cfg.Routine, 32)
	for i := range routines {
		routines[i] = &cfg.Routine{Name: "Fn", Class: "K"}
	}
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, r := range routines {
				assert.Equal(t, "k::fn", c.RoutineName(r))
			}
		}()
	}
	wg.Wait()
}
