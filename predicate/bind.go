package predicate

import "fmt"

// binder resolves member accesses against their receiver's schema and checks
// operand types. It runs once, when a lambda is built.
type binder struct {
	params map[*Param]bool
}

func bind(body Expr, params []*Param) (Expr, error) {
	b := &binder{params: make(map[*Param]bool, len(params))}
	for _, p := range params {
		b.params[p] = true
	}
	return b.Visit(body)
}

func (b *binder) Visit(e Expr) (Expr, error) {
	switch n := e.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil expression", ErrTypeMismatch)

	case *Param:
		if !b.params[n] {
			return nil, fmt.Errorf("%w: parameter %s is not bound by the lambda", ErrConfiguration, n.Name)
		}
		return n, nil

	case *Member:
		x, err := b.Visit(n.X)
		if err != nil {
			return nil, err
		}
		recv := x.Type()
		if recv.Kind != KindEntity || recv.Entity == nil {
			return nil, fmt.Errorf("%w: %s has no members (type %s)", ErrTypeMismatch, x, recv)
		}
		f, ok := recv.Entity.Field(n.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no field %q", ErrUnknownMember, recv.Entity.Name, n.Name)
		}
		return &Member{X: x, Name: n.Name, field: f, resolved: true}, nil

	case *Binary:
		out, err := Rebuild(n, b)
		if err != nil {
			return nil, err
		}
		nb := out.(*Binary)
		lt, rt := nb.L.Type(), nb.R.Type()
		if nb.Op.logical() {
			if !isBoolish(lt) || !isBoolish(rt) {
				return nil, fmt.Errorf("%w: %s needs boolean operands, got %s and %s", ErrTypeMismatch, nb.Op, lt, rt)
			}
			return nb, nil
		}
		if !comparableTypes(lt, rt) {
			return nil, fmt.Errorf("%w: cannot compare %s with %s in %s", ErrTypeMismatch, lt, rt, nb)
		}
		return nb, nil

	case *Unary:
		out, err := Rebuild(n, b)
		if err != nil {
			return nil, err
		}
		nu := out.(*Unary)
		if !isBoolish(nu.X.Type()) {
			return nil, fmt.Errorf("%w: ! needs a boolean operand, got %s", ErrTypeMismatch, nu.X.Type())
		}
		return nu, nil

	case *Call:
		out, err := Rebuild(n, b)
		if err != nil {
			return nil, err
		}
		nc := out.(*Call)
		if err := checkCall(nc); err != nil {
			return nil, err
		}
		return nc, nil

	default:
		return Rebuild(e, b)
	}
}

func checkCall(c *Call) error {
	if len(c.Args) == 0 {
		return fmt.Errorf("%w: %s needs a receiver", ErrTypeMismatch, c.Fn)
	}
	recv := c.Args[0].Type()
	switch c.Fn {
	case FuncContains, FuncHasPrefix, FuncHasSuffix, FuncLike:
		if len(c.Args) != 2 {
			return fmt.Errorf("%w: %s takes one argument", ErrTypeMismatch, c.Fn)
		}
		if !isStringish(recv) || !isStringish(c.Args[1].Type()) {
			return fmt.Errorf("%w: %s works on strings, got %s", ErrTypeMismatch, c.Fn, recv)
		}
	case FuncLower, FuncUpper:
		if len(c.Args) != 1 || !isStringish(recv) {
			return fmt.Errorf("%w: %s works on strings, got %s", ErrTypeMismatch, c.Fn, recv)
		}
	case FuncIsNull:
		if len(c.Args) != 1 {
			return fmt.Errorf("%w: IsNull takes no arguments", ErrTypeMismatch)
		}
	case FuncIn:
		for _, a := range c.Args[1:] {
			if !comparableTypes(recv, a.Type()) {
				return fmt.Errorf("%w: In list value %s does not match %s", ErrTypeMismatch, a, recv)
			}
		}
	default:
		return fmt.Errorf("%w: unknown function %d", ErrTypeMismatch, c.Fn)
	}
	return nil
}

func isBoolish(t Type) bool {
	return t.Kind == KindBool || t.Kind == KindAny
}

func isStringish(t Type) bool {
	return t.Kind == KindString || t.Kind == KindAny
}
