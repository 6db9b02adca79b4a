package typeinf

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/715d/phpflow/pkg/cfg"
)

func newRoutine(name string, params ...string) *cfg.Routine {
	r := &cfg.Routine{Name: name}
	for _, p := range params {
		r.Params = append(r.Params, &cfg.Param{Name: p})
	}
	cfg.NewGraph(r)
	return r
}

func returns(e cfg.Expr) cfg.Stmt { return &cfg.ReturnStmt{Value: e} }

func assign(target, value cfg.Expr) cfg.Stmt {
	return &cfg.ExprStmt{X: &cfg.Assign{Target: target, Value: value}}
}

func echo(args ...cfg.Expr) cfg.Stmt { return &cfg.EchoStmt{Args: args} }

func call(name string, args ...cfg.Expr) *cfg.Call {
	return &cfg.Call{Name: name, Args: cfg.Args(args...)}
}

func add(l, r cfg.Expr) *cfg.Binary { return &cfg.Binary{Op: cfg.OpAdd, Left: l, Right: r} }

func infer(t *testing.T, p *cfg.Program, opts Options) *Result {
	t.Helper()
	res, err := New(p, nil, opts).Run(context.Background())
	require.NoError(t, err)
	return res
}

// returnName renders the converged return type of r.
func returnName(t *testing.T, res *Result, r *cfg.Routine) string {
	t.Helper()
	rr := res.Routine(r)
	require.NotNil(t, rr, "no result for %s", r.QualifiedName())
	return rr.Types().Name(rr.Return)
}

func varName(t *testing.T, res *Result, r *cfg.Routine, name string) string {
	t.Helper()
	rr := res.Routine(r)
	require.NotNil(t, rr)
	return rr.Types().Name(rr.VarType(name))
}

func exprName(t *testing.T, res *Result, r *cfg.Routine, e cfg.Expr) string {
	t.Helper()
	rr := res.Routine(r)
	require.NotNil(t, rr)
	return rr.Types().Name(rr.ExprType(e))
}

var bothModes = []struct {
	name string
	opts Options
}{
	{"sequential", Options{Sequential: true}},
	{"concurrent", Options{Workers: 4}},
}

func TestRun_BoundedIncrementStaysInt(t *testing.T) {
	tests := []struct {
		name string
		arg  cfg.Expr
		want string
	}{
		{"literal below max", cfg.Int(5), "int"},
		{"PHP_INT_MAX may overflow", &cfg.Constant{Name: "PHP_INT_MAX"}, "float|int"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			main := newRoutine("main")
			main.Entry = true
			f := newRoutine("f", "x")
			f.Graph.Start.Add(returns(add(cfg.Var("x"), cfg.Int(1)))).Goto(f.Graph.Exit)
			main.Graph.Start.Add(assign(cfg.Var("r"), call("f", tt.arg))).Goto(main.Graph.Exit)
			p := &cfg.Program{Routines: []*cfg.Routine{main, f}}

			for _, mode := range bothModes {
				res := infer(t, p, mode.opts)
				assert.Equal(t, tt.want, returnName(t, res, f), mode.name)
				assert.Equal(t, tt.want, varName(t, res, main, "r"), mode.name)
			}
		})
	}
}

func TestRun_ReturnUnion(t *testing.T) {
	g := newRoutine("g")
	then, els := g.Graph.NewBlock(), g.Graph.NewBlock()
	g.Graph.Start.If(call("rand"), then, els)
	then.Add(returns(cfg.Int(1))).Goto(g.Graph.Exit)
	els.Add(returns(cfg.Str("s"))).Goto(g.Graph.Exit)

	res := infer(t, &cfg.Program{Routines: []*cfg.Routine{g}}, Options{Sequential: true})
	assert.Equal(t, "int|string", returnName(t, res, g))
}

func TestRun_ForeachOverUnknownCollection(t *testing.T) {
	r := newRoutine("each", "arr")
	g := r.Graph
	head, body := g.NewBlock(), g.NewBlock()
	g.Start.Foreach(cfg.Var("arr"), head, cfg.Var("k"), cfg.Var("v"), false, body, g.Exit)
	body.Add(echo(cfg.Var("k"), cfg.Var("v"))).Goto(head)

	res := infer(t, &cfg.Program{Routines: []*cfg.Routine{r}}, Options{Sequential: true})
	assert.Equal(t, "mixed", varName(t, res, r, "k"))
	assert.Equal(t, "mixed", varName(t, res, r, "v"))
}

func TestRun_ForeachElementType(t *testing.T) {
	r := newRoutine("sum")
	g := r.Graph
	head, body := g.NewBlock(), g.NewBlock()
	g.Start.Add(assign(cfg.Var("xs"), &cfg.ArrayLiteral{Items: []cfg.ArrayElement{
		{Value: cfg.Int(1)}, {Value: cfg.Str("two")},
	}}))
	g.Start.Foreach(cfg.Var("xs"), head, nil, cfg.Var("v"), false, body, g.Exit)
	body.Add(echo(cfg.Var("v"))).Goto(head)

	res := infer(t, &cfg.Program{Routines: []*cfg.Routine{r}}, Options{Sequential: true})
	assert.Equal(t, "array<int|string>", varName(t, res, r, "xs"))
	assert.Equal(t, "int|string", varName(t, res, r, "v"))
}

func TestRun_BranchIsolation(t *testing.T) {
	r := newRoutine("pick", "c")
	g := r.Graph
	then, els, join := g.NewBlock(), g.NewBlock(), g.NewBlock()
	xThen, xElse, xJoin := cfg.Var("x"), cfg.Var("x"), cfg.Var("x")
	g.Start.If(cfg.Var("c"), then, els)
	then.Add(assign(cfg.Var("x"), cfg.Int(1)), echo(xThen)).Goto(join)
	els.Add(assign(cfg.Var("x"), cfg.Str("s")), echo(xElse)).Goto(join)
	join.Add(returns(xJoin)).Goto(g.Exit)

	res := infer(t, &cfg.Program{Routines: []*cfg.Routine{r}}, Options{Sequential: true})
	assert.Equal(t, "int", exprName(t, res, r, xThen))
	assert.Equal(t, "string", exprName(t, res, r, xElse))
	assert.Equal(t, "int|string", exprName(t, res, r, xJoin))
	assert.Empty(t, res.Routine(r).Uninitialized)
}

func TestRun_ShortCircuit(t *testing.T) {
	r := newRoutine("sc", "a")
	g := r.Graph
	then, els := g.NewBlock(), g.NewBlock()
	yThen, yElse := cfg.Var("y"), cfg.Var("y")
	cond := &cfg.Binary{Op: cfg.OpAnd, Left: cfg.Var("a"), Right: &cfg.Assign{Target: cfg.Var("y"), Value: cfg.Int(1)}}
	g.Start.If(cond, then, els)
	then.Add(echo(yThen)).Goto(g.Exit)
	els.Add(echo(yElse)).Goto(g.Exit)

	res := infer(t, &cfg.Program{Routines: []*cfg.Routine{r}}, Options{Sequential: true})
	assert.Equal(t, "int", exprName(t, res, r, yThen), "the right operand ran on every true path")
	assert.Equal(t, "int|null", exprName(t, res, r, yElse), "the right operand may be skipped")
	assert.Equal(t, []string{"y"}, res.Routine(r).Uninitialized)
	assert.Equal(t, "bool", exprName(t, res, r, cond))
}

func TestRun_LessThanMaxLoop(t *testing.T) {
	tests := []struct {
		op   cfg.BinaryOp
		want string
	}{
		{cfg.OpLt, "int"},
		{cfg.OpLtEq, "float|int"},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			r := newRoutine("loop")
			g := r.Graph
			head, body := g.NewBlock(), g.NewBlock()
			g.Start.Add(assign(cfg.Var("i"), cfg.Int(0))).Goto(head)
			head.If(&cfg.Binary{Op: tt.op, Left: cfg.Var("i"), Right: cfg.Int(10)}, body, g.Exit)
			body.Add(&cfg.ExprStmt{X: &cfg.IncDec{Target: cfg.Var("i"), Increment: true, Postfix: true}}).Goto(head)

			res := infer(t, &cfg.Program{Routines: []*cfg.Routine{r}}, Options{Sequential: true})
			assert.Equal(t, tt.want, varName(t, res, r, "i"))
		})
	}
}

func TestRun_RecursionConverges(t *testing.T) {
	main := newRoutine("main")
	main.Entry = true
	fact := newRoutine("fact", "n")
	g := fact.Graph
	base, rec := g.NewBlock(), g.NewBlock()
	g.Start.If(&cfg.Binary{Op: cfg.OpLt, Left: cfg.Var("n"), Right: cfg.Int(2)}, base, rec)
	base.Add(returns(cfg.Int(1))).Goto(g.Exit)
	rec.Add(returns(&cfg.Binary{
		Op:    cfg.OpMul,
		Left:  cfg.Var("n"),
		Right: call("fact", &cfg.Binary{Op: cfg.OpSub, Left: cfg.Var("n"), Right: cfg.Int(1)}),
	})).Goto(g.Exit)
	main.Graph.Start.Add(assign(cfg.Var("r"), call("fact", cfg.Int(5)))).Goto(main.Graph.Exit)
	p := &cfg.Program{Routines: []*cfg.Routine{main, fact}}

	for _, mode := range bothModes {
		res := infer(t, p, mode.opts)
		assert.Equal(t, "float|int", returnName(t, res, fact), mode.name)
		assert.Equal(t, "float|int", varName(t, res, main, "r"), mode.name)
		assert.Equal(t, "float|int", varName(t, res, fact, "n"), mode.name)
	}
}

func TestRun_NestedArrayRecursionConverges(t *testing.T) {
	// f($x) { return f([$x]); }
	main := newRoutine("main")
	main.Entry = true
	f := newRoutine("f", "x")
	wrap := &cfg.ArrayLiteral{Items: []cfg.ArrayElement{{Value: cfg.Var("x")}}}
	f.Graph.Start.Add(returns(call("f", wrap))).Goto(f.Graph.Exit)
	main.Graph.Start.Add(echo(call("f", cfg.Int(1)))).Goto(main.Graph.Exit)
	p := &cfg.Program{Routines: []*cfg.Routine{main, f}}

	for _, mode := range bothModes {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		res, err := New(p, nil, mode.opts).Run(ctx)
		cancel()
		require.NoError(t, err, mode.name)

		x := varName(t, res, f, "x")
		assert.Contains(t, x, "int", mode.name)
		assert.True(t, strings.HasPrefix(x, "array|"), "%s: deepest level collapses to array, got %s", mode.name, x)
		assert.Equal(t, "void", returnName(t, res, f), mode.name)
	}
}

func TestRun_ArgumentsWidenCallee(t *testing.T) {
	main := newRoutine("main")
	main.Entry = true
	id := newRoutine("id", "p")
	id.Graph.Start.Add(returns(cfg.Var("p"))).Goto(id.Graph.Exit)
	main.Graph.Start.Add(
		assign(cfg.Var("a"), call("id", cfg.Int(1))),
		assign(cfg.Var("b"), call("id", cfg.Str("s"))),
	).Goto(main.Graph.Exit)

	res := infer(t, &cfg.Program{Routines: []*cfg.Routine{main, id}}, Options{Sequential: true})
	assert.Equal(t, "int|string", returnName(t, res, id))
	assert.Equal(t, "int|string", varName(t, res, main, "a"))
	assert.Equal(t, "int|string", varName(t, res, main, "b"))
}

func TestRun_MethodDispatchAndUnreachable(t *testing.T) {
	method := func(class string, value cfg.Expr) *cfg.Routine {
		m := newRoutine("m")
		m.Class = class
		m.Graph.Start.Add(returns(value)).Goto(m.Graph.Exit)
		return m
	}
	am, bm := method("A", cfg.Int(1)), method("B", cfg.Str("s"))
	main := newRoutine("main")
	main.Entry = true
	main.Graph.Start.Add(
		assign(cfg.Var("o"), &cfg.New{Class: "B"}),
		assign(cfg.Var("r"), &cfg.MethodCall{Object: cfg.Var("o"), Name: "m"}),
	).Goto(main.Graph.Exit)
	p := &cfg.Program{
		Routines: []*cfg.Routine{main},
		Classes: []*cfg.Class{
			{Name: "A", Methods: []*cfg.Routine{am}},
			{Name: "B", Extends: "A", Methods: []*cfg.Routine{bm}},
		},
	}

	res := infer(t, p, Options{Sequential: true})
	assert.Equal(t, "B", varName(t, res, main, "o"))
	assert.Equal(t, "string", varName(t, res, main, "r"))
	assert.Equal(t, "B", varName(t, res, bm, cfg.ThisVar))
	require.Len(t, res.Unreachable, 1)
	assert.Equal(t, "A::m", res.Unreachable[0].QualifiedName())
	assert.False(t, res.Routine(am).Seeded)
}

func TestRun_InstanceOfNarrowsUnknown(t *testing.T) {
	r := newRoutine("check", "o")
	g := r.Graph
	then := g.NewBlock()
	oThen := cfg.Var("o")
	g.Start.If(&cfg.InstanceOf{Operand: cfg.Var("o"), Class: "Foo"}, then, g.Exit)
	then.Add(echo(oThen)).Goto(g.Exit)

	res := infer(t, &cfg.Program{Routines: []*cfg.Routine{r}}, Options{Sequential: true})
	assert.Equal(t, "Foo", exprName(t, res, r, oThen))
}

func TestRun_InstanceOfKeepsHierarchy(t *testing.T) {
	classes := []*cfg.Class{
		{Name: "Base"},
		{Name: "Foo", Extends: "Base"},
		{Name: "Baz", Extends: "Foo"},
		{Name: "Qux"},
	}
	tests := []struct {
		name    string
		classes []string
		want    string
	}{
		{"ancestor and descendant", []string{"Base", "Baz"}, "Baz|Foo"},
		{"ancestor only", []string{"Base"}, "Foo"},
		{"unrelated dropped", []string{"Qux", "Baz"}, "Baz"},
		{"exact class", []string{"Foo", "Qux"}, "Foo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var value cfg.Expr = &cfg.New{Class: tt.classes[0]}
			for _, c := range tt.classes[1:] {
				value = &cfg.Conditional{Cond: call("rand"), Then: value, Else: &cfg.New{Class: c}}
			}
			r := newRoutine("check")
			g := r.Graph
			then := g.NewBlock()
			oThen := cfg.Var("o")
			g.Start.Add(assign(cfg.Var("o"), value))
			g.Start.If(&cfg.InstanceOf{Operand: cfg.Var("o"), Class: "Foo"}, then, g.Exit)
			then.Add(echo(oThen)).Goto(g.Exit)

			p := &cfg.Program{Routines: []*cfg.Routine{r}, Classes: classes}
			res := infer(t, p, Options{Sequential: true})
			assert.Equal(t, tt.want, exprName(t, res, r, oThen))
		})
	}
}

func TestRun_TypeCheckRefinement(t *testing.T) {
	r := newRoutine("check")
	g := r.Graph
	then, els := g.NewBlock(), g.NewBlock()
	xThen, xElse := cfg.Var("x"), cfg.Var("x")
	g.Start.Add(&cfg.ExprStmt{X: &cfg.Assign{
		Target: cfg.Var("x"),
		Value:  &cfg.Conditional{Cond: call("rand"), Then: cfg.Int(1), Else: &cfg.Literal{}},
	}})
	g.Start.If(call("is_null", cfg.Var("x")), then, els)
	then.Add(echo(xThen)).Goto(g.Exit)
	els.Add(echo(xElse)).Goto(g.Exit)

	res := infer(t, &cfg.Program{Routines: []*cfg.Routine{r}}, Options{Sequential: true})
	assert.Equal(t, "null", exprName(t, res, r, xThen))
	assert.Equal(t, "int", exprName(t, res, r, xElse))
}

func TestRun_ReferenceWidensToAny(t *testing.T) {
	main := newRoutine("main")
	main.Entry = true
	inc := &cfg.Routine{Name: "inc", Params: []*cfg.Param{{Name: "v", ByRef: true}}}
	cfg.NewGraph(inc)
	inc.Graph.Start.Add(assign(cfg.Var("v"), add(cfg.Var("v"), cfg.Int(1)))).Goto(inc.Graph.Exit)
	aRead := cfg.Var("a")
	main.Graph.Start.Add(
		assign(cfg.Var("a"), cfg.Int(1)),
		&cfg.ExprStmt{X: call("inc", cfg.Var("a"))},
		returns(aRead),
	).Goto(main.Graph.Exit)

	res := infer(t, &cfg.Program{Routines: []*cfg.Routine{main, inc}}, Options{Sequential: true})
	assert.Equal(t, "mixed", exprName(t, res, main, aRead))
	assert.True(t, res.Routine(main).Context.IsReferenced("a"))
	assert.True(t, res.Routine(inc).Context.IsReferenced("v"))
}

func TestRun_UnsupportedConstructIsAny(t *testing.T) {
	r := newRoutine("odd")
	r.Graph.Start.Add(assign(cfg.Var("x"), &cfg.List{})).Goto(r.Graph.Exit)

	res := infer(t, &cfg.Program{Routines: []*cfg.Routine{r}}, Options{Sequential: true})
	assert.Equal(t, "mixed", varName(t, res, r, "x"))
}

func TestRun_ArrayWrites(t *testing.T) {
	r := newRoutine("fill")
	r.Graph.Start.Add(
		assign(cfg.Var("a"), &cfg.ArrayLiteral{}),
		assign(&cfg.ArrayItem{Array: cfg.Var("a")}, cfg.Int(1)),
		assign(&cfg.ArrayItem{Array: cfg.Var("a"), Index: cfg.Str("k")}, &cfg.Literal{Value: 1.5}),
		assign(cfg.Var("e"), &cfg.ArrayItem{Array: cfg.Var("a"), Index: cfg.Int(0)}),
	).Goto(r.Graph.Exit)

	res := infer(t, &cfg.Program{Routines: []*cfg.Routine{r}}, Options{Sequential: true})
	rr := res.Routine(r)
	final, ok := rr.State(r.Graph.Exit)
	require.True(t, ok)
	assert.Equal(t, "array<float|int>", rr.Types().Name(final.Type("a")))
	assert.Equal(t, "float|int", varName(t, res, r, "e"))
}

// snapshot renders every routine result for comparison across runs.
func TestRun_SwitchReachesEveryCase(t *testing.T) {
	r := newRoutine("sw")
	g := r.Graph
	one, two, tail := g.NewCaseBlock(), g.NewCaseBlock(), g.NewBlock()
	kOne, kTwo, kTail := cfg.Var("k"), cfg.Var("k"), cfg.Var("k")
	yTwo := cfg.Var("y")
	g.Start.Add(assign(cfg.Var("y"), cfg.Int(1)))
	g.Start.Next = &cfg.SwitchEdge{
		Scrutinee: &cfg.Assign{Target: cfg.Var("k"), Value: cfg.Int(2)},
		Cases: []cfg.SwitchCase{
			{Value: cfg.Int(1), Target: one},
			{Value: cfg.Str("a"), Target: two},
		},
		End: tail,
	}
	one.Add(echo(kOne), assign(cfg.Var("y"), cfg.Str("s"))).Goto(tail)
	two.Add(echo(kTwo, yTwo)).Goto(tail)
	tail.Add(echo(kTail), returns(cfg.Var("y"))).Goto(g.Exit)

	for _, mode := range bothModes {
		res := infer(t, &cfg.Program{Routines: []*cfg.Routine{r}}, mode.opts)
		rr := res.Routine(r)
		for _, b := range []*cfg.Block{one, two, tail} {
			assert.True(t, rr.Reached(b), "%s: block %d", mode.name, b.ID)
		}
		// The scrutinee is evaluated once, before any case is entered.
		for _, k := range []cfg.Expr{kOne, kTwo, kTail} {
			assert.Equal(t, "int", exprName(t, res, r, k), mode.name)
		}
		assert.Equal(t, "int", exprName(t, res, r, yTwo), "%s: a case does not see a sibling's writes", mode.name)
		assert.Equal(t, "int|string", returnName(t, res, r), mode.name)
		assert.Empty(t, rr.Uninitialized, mode.name)
	}
}

func TestRun_TryEntryReachesCatchesAndFinally(t *testing.T) {
	r := newRoutine("guarded")
	g := r.Graph
	body, fin := g.NewBlock(), g.NewBlock()
	h1 := g.NewCatchBlock("e", "Exception")
	h2 := g.NewCatchBlock("err", "RuntimeException|LogicException")
	yCatch, eCatch, yFin := cfg.Var("y"), cfg.Var("e"), cfg.Var("y")
	g.Start.Add(assign(cfg.Var("y"), cfg.Int(1)))
	g.Start.Next = &cfg.TryEdge{Body: body, Catches: []*cfg.Block{h1, h2}, Finally: fin}
	body.Add(assign(cfg.Var("y"), cfg.Str("s"))).Goto(fin)
	h1.Add(echo(yCatch, eCatch)).Goto(fin)
	h2.Goto(fin)
	fin.Add(echo(yFin)).Goto(g.Exit)

	for _, mode := range bothModes {
		res := infer(t, &cfg.Program{Routines: []*cfg.Routine{r}}, mode.opts)
		rr := res.Routine(r)
		for _, b := range []*cfg.Block{body, h1, h2, fin} {
			assert.True(t, rr.Reached(b), "%s: block %d", mode.name, b.ID)
		}

		assert.Equal(t, "int", exprName(t, res, r, yCatch), "%s: catches start from the try entry state", mode.name)
		assert.Equal(t, "int|string", exprName(t, res, r, yFin), mode.name)

		assert.Equal(t, "Exception", exprName(t, res, r, eCatch), mode.name)
		assert.Equal(t, "LogicException|RuntimeException", varName(t, res, r, "err"), mode.name)
		st, ok := rr.State(h2)
		require.True(t, ok)
		assert.True(t, st.IsInitialized("err"), "%s: a catch block starts with its variable bound", mode.name)

		assert.Empty(t, rr.Uninitialized, "%s: catch variables are initialized", mode.name)
		assert.Empty(t, rr.Unused, "%s: an unread catch variable is not reported", mode.name)
	}
}

func TestRun_UnusedLocals(t *testing.T) {
	r := newRoutine("f", "p")
	g := r.Graph
	g.Start.Add(
		assign(cfg.Var("a"), cfg.Int(1)),
		assign(cfg.Var("b"), cfg.Var("a")),
		assign(cfg.Var("c"), cfg.Int(2)),
		assign(cfg.Var("c"), cfg.Int(3)),
		assign(cfg.Var("list"), &cfg.ArrayLiteral{}),
		assign(&cfg.ArrayItem{Array: cfg.Var("list")}, cfg.Int(4)),
		assign(cfg.Var("_GET"), cfg.Int(5)),
	).Goto(g.Exit)

	for _, mode := range bothModes {
		res := infer(t, &cfg.Program{Routines: []*cfg.Routine{r}}, mode.opts)
		assert.Equal(t, []string{"b", "c"}, res.Routine(r).Unused, mode.name)
	}
}

func snapshot(res *Result) []string {
	var out []string
	for r, rr := range res.Routines {
		u := rr.Types()
		line := []string{r.QualifiedName(), "return=" + u.Name(rr.Return)}
		for _, name := range rr.Context.Names() {
			line = append(line, fmt.Sprintf("%s=%s", name, u.Name(rr.VarType(name))))
		}
		line = append(line, "uninit="+strings.Join(rr.Uninitialized, ","))
		out = append(out, strings.Join(line, " "))
	}
	slices.Sort(out)
	for _, r := range res.Unreachable {
		out = append(out, "unreachable "+r.QualifiedName())
	}
	return out
}

// chainProgram builds main -> f0 -> f1 -> ... -> fn-1, each link adding one
// to its argument, plus an uncalled routine.
func chainProgram(n int) *cfg.Program {
	main := newRoutine("main")
	main.Entry = true
	p := &cfg.Program{Routines: []*cfg.Routine{main}}
	for i := range n {
		f := newRoutine(fmt.Sprintf("f%d", i), "x")
		g := f.Graph
		then, els := g.NewBlock(), g.NewBlock()
		g.Start.If(call("rand"), then, els)
		if i+1 < n {
			then.Add(returns(call(fmt.Sprintf("f%d", i+1), add(cfg.Var("x"), cfg.Int(1))))).Goto(g.Exit)
		} else {
			then.Add(returns(cfg.Str("end"))).Goto(g.Exit)
		}
		els.Add(returns(cfg.Var("x"))).Goto(g.Exit)
		p.Routines = append(p.Routines, f)
	}
	main.Graph.Start.Add(assign(cfg.Var("r"), call("f0", cfg.Int(0)))).Goto(main.Graph.Exit)
	dead := newRoutine("dead")
	dead.Graph.Start.Goto(dead.Graph.Exit)
	p.Routines = append(p.Routines, dead)
	return p
}

func TestRun_SequentialMatchesConcurrent(t *testing.T) {
	p := chainProgram(12)
	want := snapshot(infer(t, p, Options{Sequential: true}))
	for _, workers := range []int{1, 2, 8} {
		got := snapshot(infer(t, p, Options{Workers: workers}))
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("workers=%d: result mismatch (-sequential +concurrent):\n%s", workers, diff)
		}
	}
}

func TestRun_Idempotent(t *testing.T) {
	p := chainProgram(5)
	first := infer(t, p, Options{Sequential: true})
	second := infer(t, p, Options{Sequential: true})
	assert.Equal(t, snapshot(first), snapshot(second))
	assert.Equal(t, first.Visits, second.Visits)
	assert.Contains(t, snapshot(first), "unreachable dead")
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(chainProgram(3), nil, Options{}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRoots(t *testing.T) {
	p := chainProgram(2)
	assert.Len(t, New(p, nil, Options{}).Roots(), 1)
	p.Routines[0].Entry = false
	assert.Len(t, New(p, nil, Options{}).Roots(), len(p.Routines))
}
