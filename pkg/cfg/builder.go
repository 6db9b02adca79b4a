package cfg

// NewGraph creates the graph of r with an empty start block (ID 0) and
// exit block (ID 1), and attaches it to r.
func NewGraph(r *Routine) *Graph {
	g := &Graph{Routine: r}
	g.Start = g.newBlock(BlockStart)
	g.Exit = g.newBlock(BlockExit)
	if r != nil {
		r.Graph = g
	}
	return g
}

// NewBlock appends a plain block.
func (g *Graph) NewBlock() *Block { return g.newBlock(BlockPlain) }

// NewCaseBlock appends a switch case block.
func (g *Graph) NewCaseBlock() *Block { return g.newBlock(BlockCase) }

// NewCatchBlock appends a catch block binding varName to typ.
func (g *Graph) NewCatchBlock(varName, typ string) *Block {
	b := g.newBlock(BlockCatch)
	b.Catch = &CatchClause{Var: varName, Type: typ}
	return b
}

func (g *Graph) newBlock(kind BlockKind) *Block {
	b := &Block{ID: len(g.Blocks), Kind: kind, Graph: g}
	g.Blocks = append(g.Blocks, b)
	return b
}

// Goto ends b with an unconditional jump to target.
func (b *Block) Goto(target *Block) { b.Next = &SimpleEdge{Target: target} }

// If ends b with a conditional branch.
func (b *Block) If(cond Expr, then, els *Block) {
	b.Next = &ConditionalEdge{Cond: cond, True: then, False: els}
}

// Add appends statements to b.
func (b *Block) Add(stmts ...Stmt) *Block {
	b.Stmts = append(b.Stmts, stmts...)
	return b
}

// Foreach wires a foreach loop: b evaluates enumeree and falls through to
// head, whose move-next edge enters body or leaves to exit.
func (b *Block) Foreach(enumeree Expr, head *Block, key, value Expr, byRef bool, body, exit *Block) {
	en := &ForeachEnumereeEdge{Enumeree: enumeree, Target: head}
	b.Next = en
	head.Next = &ForeachMoveNextEdge{
		Enumeree: en,
		Key:      key,
		Value:    value,
		ByRef:    byRef,
		Body:     body,
		Exit:     exit,
	}
}

// Var is shorthand for a variable expression.
func Var(name string) *Variable { return &Variable{Name: name} }

// Int is shorthand for an integer literal.
func Int(v int64) *Literal { return &Literal{Value: v} }

// Str is shorthand for a string literal.
func Str(v string) *Literal { return &Literal{Value: v} }

// Args wraps plain expressions as call arguments.
func Args(exprs ...Expr) []Argument {
	out := make([]Argument, len(exprs))
	for i, e := range exprs {
		out[i] = Argument{Value: e}
	}
	return out
}
