package predicate

// Field accesses the member called name on x. The member is resolved when
// the enclosing lambda is built.
func Field(x Expr, name string) *Member {
	return &Member{X: x, Name: name}
}

// Value wraps v as a constant.
func Value(v any) *Const {
	return &Const{Value: v, Of: typeOfValue(v)}
}

func Eq(l, r Expr) *Binary { return &Binary{Op: OpEq, L: l, R: r} }
func Ne(l, r Expr) *Binary { return &Binary{Op: OpNe, L: l, R: r} }
func Lt(l, r Expr) *Binary { return &Binary{Op: OpLt, L: l, R: r} }
func Le(l, r Expr) *Binary { return &Binary{Op: OpLe, L: l, R: r} }
func Gt(l, r Expr) *Binary { return &Binary{Op: OpGt, L: l, R: r} }
func Ge(l, r Expr) *Binary { return &Binary{Op: OpGe, L: l, R: r} }

// AllOf joins xs with logical AND, left to right. With no operands it is
// the constant true.
func AllOf(xs ...Expr) Expr {
	return fold(OpAnd, true, xs)
}

// AnyOf joins xs with logical OR, left to right. With no operands it is the
// constant false.
func AnyOf(xs ...Expr) Expr {
	return fold(OpOr, false, xs)
}

func fold(op BinaryOp, empty bool, xs []Expr) Expr {
	if len(xs) == 0 {
		return Value(empty)
	}
	acc := xs[0]
	for _, x := range xs[1:] {
		acc = &Binary{Op: op, L: acc, R: x}
	}
	return acc
}

func Not(x Expr) *Unary { return &Unary{Op: OpNot, X: x} }

func Contains(x Expr, substr string) *Call {
	return &Call{Fn: FuncContains, Args: []Expr{x, Value(substr)}}
}

func HasPrefix(x Expr, prefix string) *Call {
	return &Call{Fn: FuncHasPrefix, Args: []Expr{x, Value(prefix)}}
}

func HasSuffix(x Expr, suffix string) *Call {
	return &Call{Fn: FuncHasSuffix, Args: []Expr{x, Value(suffix)}}
}

// Like matches x against a SQL LIKE pattern: % matches any run of
// characters, _ matches exactly one. Matching is case sensitive.
func Like(x Expr, pattern string) *Call {
	return &Call{Fn: FuncLike, Args: []Expr{x, Value(pattern)}}
}

func Lower(x Expr) *Call { return &Call{Fn: FuncLower, Args: []Expr{x}} }

func Upper(x Expr) *Call { return &Call{Fn: FuncUpper, Args: []Expr{x}} }

func IsNull(x Expr) *Call { return &Call{Fn: FuncIsNull, Args: []Expr{x}} }

// In reports whether x equals any of values. An empty list matches nothing.
func In(x Expr, values ...any) *Call {
	args := make([]Expr, 0, len(values)+1)
	args = append(args, x)
	for _, v := range values {
		args = append(args, Value(v))
	}
	return &Call{Fn: FuncIn, Args: args}
}
