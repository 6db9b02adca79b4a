package cfg

// Stmt is a statement of a basic block.
type Stmt interface {
	stmt()
}

// ExprStmt evaluates X for its effects.
type ExprStmt struct {
	X Expr
}

// ReturnStmt returns Value, or nothing when Value is nil. The block
// holding it jumps to the exit block.
type ReturnStmt struct {
	Value Expr
}

// EchoStmt prints Args.
type EchoStmt struct {
	Args []Expr
}

// UnsetStmt destroys Vars.
type UnsetStmt struct {
	Vars []Expr
}

// GlobalStmt binds local names to globals.
type GlobalStmt struct {
	Names []string
}

// StaticVar is one variable of a static declaration.
type StaticVar struct {
	Name string
	Init Expr
}

// StaticStmt declares function-static variables.
type StaticStmt struct {
	Vars []StaticVar
}

// ThrowStmt throws X.
type ThrowStmt struct {
	X Expr
}

func (*ExprStmt) stmt()   {}
func (*ReturnStmt) stmt() {}
func (*EchoStmt) stmt()   {}
func (*UnsetStmt) stmt()  {}
func (*GlobalStmt) stmt() {}
func (*StaticStmt) stmt() {}
func (*ThrowStmt) stmt()  {}

// InspectStmt calls Inspect on every expression of s.
func InspectStmt(s Stmt, f func(Expr) bool) {
	switch s := s.(type) {
	case *ExprStmt:
		Inspect(s.X, f)
	case *ReturnStmt:
		Inspect(s.Value, f)
	case *EchoStmt:
		for _, a := range s.Args {
			Inspect(a, f)
		}
	case *UnsetStmt:
		for _, v := range s.Vars {
			Inspect(v, f)
		}
	case *StaticStmt:
		for _, v := range s.Vars {
			Inspect(v.Init, f)
		}
	case *ThrowStmt:
		Inspect(s.X, f)
	}
}

// Inspect traverses e depth-first, calling f for each node; children are
// skipped when f returns false. Nil expressions are ignored.
func Inspect(e Expr, f func(Expr) bool) {
	if e == nil || !f(e) {
		return
	}
	args := func(as []Argument) {
		for _, a := range as {
			Inspect(a.Value, f)
		}
	}
	switch e := e.(type) {
	case *DynamicVariable:
		Inspect(e.NameExpr, f)
	case *ArrayItem:
		Inspect(e.Array, f)
		Inspect(e.Index, f)
	case *Field:
		Inspect(e.Object, f)
	case *ArrayLiteral:
		for _, it := range e.Items {
			Inspect(it.Key, f)
			Inspect(it.Value, f)
		}
	case *List:
		for _, it := range e.Items {
			Inspect(it.Key, f)
			Inspect(it.Target, f)
		}
	case *Binary:
		Inspect(e.Left, f)
		Inspect(e.Right, f)
	case *Unary:
		Inspect(e.Operand, f)
	case *Assign:
		Inspect(e.Target, f)
		Inspect(e.Value, f)
	case *CompoundAssign:
		Inspect(e.Target, f)
		Inspect(e.Value, f)
	case *IncDec:
		Inspect(e.Target, f)
	case *Conditional:
		Inspect(e.Cond, f)
		Inspect(e.Then, f)
		Inspect(e.Else, f)
	case *Cast:
		Inspect(e.Operand, f)
	case *InstanceOf:
		Inspect(e.Operand, f)
	case *Isset:
		for _, v := range e.Vars {
			Inspect(v, f)
		}
	case *Empty:
		Inspect(e.Operand, f)
	case *Call:
		args(e.Args)
	case *MethodCall:
		Inspect(e.Object, f)
		args(e.Args)
	case *StaticCall:
		args(e.Args)
	case *New:
		args(e.Args)
	case *Include:
		Inspect(e.Path, f)
	case *Eval:
		Inspect(e.Code, f)
	case *Exit:
		Inspect(e.Status, f)
	}
}
