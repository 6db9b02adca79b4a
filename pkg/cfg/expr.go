package cfg

// Expr is a PHP expression. The concrete kinds below are the complete set;
// transfer functions switch over them and treat anything else as unknown.
type Expr interface {
	expr()
}

// Literal is a constant scalar: int64, float64, string, bool or nil.
type Literal struct {
	Value any
}

// Constant is a named constant such as PHP_INT_MAX or true.
type Constant struct {
	Name string
}

// Variable is a plain local variable $Name.
type Variable struct {
	Name string
}

// DynamicVariable is a variable whose name is computed at run time ($$x).
type DynamicVariable struct {
	NameExpr Expr
}

// ArrayItem is $Array[Index]; Index is nil for the append form $a[].
type ArrayItem struct {
	Array Expr
	Index Expr
}

// Field is $Object->Name.
type Field struct {
	Object Expr
	Name   string
}

// StaticField is Class::$Name.
type StaticField struct {
	Class string
	Name  string
}

// ArrayElement is one entry of an array literal.
type ArrayElement struct {
	Key    Expr // nil for positional elements
	Value  Expr
	ByRef  bool
	Spread bool
}

// ArrayLiteral is [k => v, ...].
type ArrayLiteral struct {
	Items []ArrayElement
}

// ListItem is one target of a list() assignment.
type ListItem struct {
	Key    Expr // nil for positional items
	Target Expr // may itself be a *List
	ByRef  bool
}

// List is the destructuring target list(...) / [...] = v.
type List struct {
	Items []ListItem
}

// BinaryOp enumerates binary operators.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpConcat
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
	OpAnd // && and "and"
	OpOr  // || and "or"
	OpXor // logical xor
	OpEq
	OpNotEq
	OpIdentical
	OpNotIdentical
	OpLt
	OpLtEq
	OpGt
	OpGtEq
	OpSpaceship
	OpCoalesce
)

var binaryOpNames = map[BinaryOp]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%", OpPow: "**",
	OpConcat: ".", OpBitAnd: "&", OpBitOr: "|", OpBitXor: "^", OpShl: "<<",
	OpShr: ">>", OpAnd: "&&", OpOr: "||", OpXor: "xor", OpEq: "==",
	OpNotEq: "!=", OpIdentical: "===", OpNotIdentical: "!==", OpLt: "<",
	OpLtEq: "<=", OpGt: ">", OpGtEq: ">=", OpSpaceship: "<=>", OpCoalesce: "??",
}

func (op BinaryOp) String() string { return binaryOpNames[op] }

// ParseBinaryOp maps operator spelling to a BinaryOp.
func ParseBinaryOp(s string) (BinaryOp, bool) {
	switch s {
	case "and":
		return OpAnd, true
	case "or":
		return OpOr, true
	}
	for op, name := range binaryOpNames {
		if name == s {
			return op, true
		}
	}
	return 0, false
}

// IsComparison reports whether op always yields a bool.
func (op BinaryOp) IsComparison() bool {
	switch op {
	case OpEq, OpNotEq, OpIdentical, OpNotIdentical, OpLt, OpLtEq, OpGt, OpGtEq:
		return true
	}
	return false
}

// Binary is Left Op Right.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNeg
	OpPlus
	OpBitNot
	OpSilence
	OpPrint
	OpClone
)

var unaryOpNames = map[UnaryOp]string{
	OpNot: "!", OpNeg: "-", OpPlus: "+", OpBitNot: "~", OpSilence: "@",
	OpPrint: "print", OpClone: "clone",
}

func (op UnaryOp) String() string { return unaryOpNames[op] }

// ParseUnaryOp maps operator spelling to a UnaryOp.
func ParseUnaryOp(s string) (UnaryOp, bool) {
	for op, name := range unaryOpNames {
		if name == s {
			return op, true
		}
	}
	return 0, false
}

// Unary is Op Operand.
type Unary struct {
	Op      UnaryOp
	Operand Expr
}

// Assign is Target = Value, or Target =& Value when ByRef.
type Assign struct {
	Target Expr
	Value  Expr
	ByRef  bool
}

// CompoundAssign is Target Op= Value.
type CompoundAssign struct {
	Op     BinaryOp
	Target Expr
	Value  Expr
}

// IncDec is ++/-- in prefix or postfix form.
type IncDec struct {
	Target    Expr
	Increment bool
	Postfix   bool
}

// Conditional is Cond ? Then : Else; Then is nil for Cond ?: Else.
type Conditional struct {
	Cond Expr
	Then Expr
	Else Expr
}

// CastKind enumerates cast operators.
type CastKind int

const (
	CastInt CastKind = iota
	CastFloat
	CastString
	CastBool
	CastArray
	CastObject
	CastUnset
)

var castNames = map[CastKind]string{
	CastInt: "int", CastFloat: "float", CastString: "string", CastBool: "bool",
	CastArray: "array", CastObject: "object", CastUnset: "unset",
}

func (k CastKind) String() string { return castNames[k] }

// ParseCastKind maps a cast spelling to a CastKind.
func ParseCastKind(s string) (CastKind, bool) {
	switch s {
	case "integer":
		return CastInt, true
	case "double", "real":
		return CastFloat, true
	case "boolean":
		return CastBool, true
	}
	for k, name := range castNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// Cast is (To) Operand.
type Cast struct {
	To      CastKind
	Operand Expr
}

// InstanceOf is Operand instanceof Class.
type InstanceOf struct {
	Operand Expr
	Class   string
}

// Isset is isset(Vars...).
type Isset struct {
	Vars []Expr
}

// Empty is empty(Operand).
type Empty struct {
	Operand Expr
}

// Argument is one call argument.
type Argument struct {
	Value  Expr
	Unpack bool
}

// Call is a call of a free function by name.
type Call struct {
	Name string
	Args []Argument
}

// MethodCall is $Object->Name(Args).
type MethodCall struct {
	Object Expr
	Name   string
	Args   []Argument
}

// StaticCall is Class::Name(Args); Class may be self, parent or static.
type StaticCall struct {
	Class string
	Name  string
	Args  []Argument
}

// New is new Class(Args).
type New struct {
	Class string
	Args  []Argument
}

// ClosureUse is a captured variable of a closure.
type ClosureUse struct {
	Name  string
	ByRef bool
}

// Closure is an anonymous function. Its body is a separate routine and is
// not analyzed as part of the enclosing one.
type Closure struct {
	Uses []ClosureUse
}

// Include is include/require of Path.
type Include struct {
	Path Expr
}

// Eval is eval(Code).
type Eval struct {
	Code Expr
}

// Exit is exit/die with an optional Status.
type Exit struct {
	Status Expr
}

func (*Literal) expr()         {}
func (*Constant) expr()        {}
func (*Variable) expr()        {}
func (*DynamicVariable) expr() {}
func (*ArrayItem) expr()       {}
func (*Field) expr()           {}
func (*StaticField) expr()     {}
func (*ArrayLiteral) expr()    {}
func (*List) expr()            {}
func (*Binary) expr()          {}
func (*Unary) expr()           {}
func (*Assign) expr()          {}
func (*CompoundAssign) expr()  {}
func (*IncDec) expr()          {}
func (*Conditional) expr()     {}
func (*Cast) expr()            {}
func (*InstanceOf) expr()      {}
func (*Isset) expr()           {}
func (*Empty) expr()           {}
func (*Call) expr()            {}
func (*MethodCall) expr()      {}
func (*StaticCall) expr()      {}
func (*New) expr()             {}
func (*Closure) expr()         {}
func (*Include) expr()         {}
func (*Eval) expr()            {}
func (*Exit) expr()            {}
