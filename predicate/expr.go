package predicate

import (
	"fmt"
	"strings"
)

// Expr is a node of a predicate or ordering-key expression tree. Trees are
// immutable once built; rewriting and combining produce new trees.
type Expr interface {
	// Type is the static type of the value the node produces
	Type() Type
	String() string
	exprNode()
}

// Param is a bound variable of a lambda. Parameter identity is pointer
// identity: two *Param values are the same variable only if they are the
// same pointer.
type Param struct {
	Name string
	Of   Type
}

// Member is a field access on X.
type Member struct {
	X    Expr
	Name string

	field    FieldInfo
	resolved bool
}

// Const is a literal value.
type Const struct {
	Value any
	Of    Type
}

// UnaryOp enumerates unary operators.
type UnaryOp uint8

const (
	OpNot UnaryOp = iota + 1
)

// Unary applies Op to X.
type Unary struct {
	Op UnaryOp
	X  Expr
}

// BinaryOp enumerates comparison and logical operators.
type BinaryOp uint8

const (
	OpEq BinaryOp = iota + 1
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

var binarySymbols = map[BinaryOp]string{
	OpEq:  "==",
	OpNe:  "!=",
	OpLt:  "<",
	OpLe:  "<=",
	OpGt:  ">",
	OpGe:  ">=",
	OpAnd: "&&",
	OpOr:  "||",
}

func (op BinaryOp) String() string {
	return binarySymbols[op]
}

func (op BinaryOp) logical() bool {
	return op == OpAnd || op == OpOr
}

// Binary applies Op to L and R.
type Binary struct {
	Op   BinaryOp
	L, R Expr
}

// Func enumerates the functions a Call node may invoke.
type Func uint8

const (
	FuncContains Func = iota + 1
	FuncHasPrefix
	FuncHasSuffix
	FuncLike
	FuncLower
	FuncUpper
	FuncIsNull
	FuncIn
)

var funcNames = map[Func]string{
	FuncContains:  "Contains",
	FuncHasPrefix: "HasPrefix",
	FuncHasSuffix: "HasSuffix",
	FuncLike:      "Like",
	FuncLower:     "Lower",
	FuncUpper:     "Upper",
	FuncIsNull:    "IsNull",
	FuncIn:        "In",
}

func (f Func) String() string {
	return funcNames[f]
}

// Call invokes Fn. The first argument is the receiver.
type Call struct {
	Fn   Func
	Args []Expr
}

func (*Param) exprNode()  {}
func (*Member) exprNode() {}
func (*Const) exprNode()  {}
func (*Unary) exprNode()  {}
func (*Binary) exprNode() {}
func (*Call) exprNode()   {}

func (p *Param) Type() Type { return p.Of }

// Type is the declared type of the resolved field. Unresolved members,
// which only exist before a lambda is bound, report KindInvalid.
func (m *Member) Type() Type {
	if !m.resolved {
		return invalidType
	}
	return m.field.Type
}

// Field returns the resolved field and whether resolution has happened.
func (m *Member) Field() (FieldInfo, bool) {
	return m.field, m.resolved
}

func (c *Const) Type() Type { return c.Of }

func (u *Unary) Type() Type { return BoolType }

func (b *Binary) Type() Type { return BoolType }

func (c *Call) Type() Type {
	switch c.Fn {
	case FuncLower, FuncUpper:
		return StringType
	default:
		return BoolType
	}
}

func (p *Param) String() string { return p.Name }

func (m *Member) String() string { return m.X.String() + "." + m.Name }

func (c *Const) String() string {
	if s, ok := c.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	if c.Value == nil {
		return "nil"
	}
	return fmt.Sprintf("%v", c.Value)
}

func (u *Unary) String() string { return "!(" + u.X.String() + ")" }

func (b *Binary) String() string {
	return "(" + b.L.String() + " " + b.Op.String() + " " + b.R.String() + ")"
}

func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return c.Fn.String() + "(" + strings.Join(args, ", ") + ")"
}
