package cfg

// Edge is the outgoing edge of a basic block. The concrete kinds form a
// closed set; analyses switch over them exhaustively.
type Edge interface {
	// Targets lists every block the edge may transfer control to.
	Targets() []*Block
	// Exprs lists the expressions the edge evaluates.
	Exprs() []Expr
	edge()
}

// SimpleEdge is an unconditional jump.
type SimpleEdge struct {
	Target *Block
}

// ConditionalEdge branches on Cond.
type ConditionalEdge struct {
	Cond  Expr
	True  *Block
	False *Block
}

// ForeachEnumereeEdge evaluates the collection of a foreach loop and falls
// through to the block holding the matching ForeachMoveNextEdge.
type ForeachEnumereeEdge struct {
	Enumeree Expr
	Target   *Block
}

// ForeachMoveNextEdge advances a foreach loop: it binds Key and Value when
// entering Body and leaves the loop through Exit.
type ForeachMoveNextEdge struct {
	Enumeree *ForeachEnumereeEdge
	Key      Expr // nil when the loop has no key variable
	Value    Expr
	ByRef    bool
	Body     *Block
	Exit     *Block
}

// SwitchCase is one arm of a switch. Value is nil for the default arm.
type SwitchCase struct {
	Value  Expr
	Target *Block
}

// SwitchEdge dispatches on Scrutinee.
type SwitchEdge struct {
	Scrutinee Expr
	Cases     []SwitchCase
	End       *Block // reached when no case matches and there is no default
}

// TryEdge enters a try statement. Catches are BlockCatch blocks.
type TryEdge struct {
	Body    *Block
	Catches []*Block
	Finally *Block // nil without finally
}

func (e *SimpleEdge) Targets() []*Block { return []*Block{e.Target} }
func (e *SimpleEdge) Exprs() []Expr     { return nil }

func (e *ConditionalEdge) Targets() []*Block { return []*Block{e.True, e.False} }
func (e *ConditionalEdge) Exprs() []Expr     { return []Expr{e.Cond} }

func (e *ForeachEnumereeEdge) Targets() []*Block { return []*Block{e.Target} }
func (e *ForeachEnumereeEdge) Exprs() []Expr     { return []Expr{e.Enumeree} }

func (e *ForeachMoveNextEdge) Targets() []*Block { return []*Block{e.Body, e.Exit} }
func (e *ForeachMoveNextEdge) Exprs() []Expr {
	out := []Expr{e.Value}
	if e.Key != nil {
		out = append(out, e.Key)
	}
	return out
}

func (e *SwitchEdge) Targets() []*Block {
	out := make([]*Block, 0, len(e.Cases)+1)
	for _, c := range e.Cases {
		out = append(out, c.Target)
	}
	if e.End != nil {
		out = append(out, e.End)
	}
	return out
}

func (e *SwitchEdge) Exprs() []Expr {
	out := []Expr{e.Scrutinee}
	for _, c := range e.Cases {
		if c.Value != nil {
			out = append(out, c.Value)
		}
	}
	return out
}

func (e *TryEdge) Targets() []*Block {
	out := []*Block{e.Body}
	out = append(out, e.Catches...)
	if e.Finally != nil {
		out = append(out, e.Finally)
	}
	return out
}

func (e *TryEdge) Exprs() []Expr { return nil }

func (*SimpleEdge) edge()          {}
func (*ConditionalEdge) edge()     {}
func (*ForeachEnumereeEdge) edge() {}
func (*ForeachMoveNextEdge) edge() {}
func (*SwitchEdge) edge()          {}
func (*TryEdge) edge()             {}
