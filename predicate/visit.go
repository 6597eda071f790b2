package predicate

import "fmt"

// Visitor transforms an expression tree one node at a time. Implementations
// typically handle the node kinds they care about and delegate the rest to
// Rebuild.
type Visitor interface {
	Visit(e Expr) (Expr, error)
}

// VisitorFunc adapts a function to the Visitor interface.
type VisitorFunc func(e Expr) (Expr, error)

func (f VisitorFunc) Visit(e Expr) (Expr, error) {
	return f(e)
}

// Rebuild returns e with each direct child replaced by v.Visit(child). When
// no child changes, e itself is returned. A Member keeps its resolved field;
// callers that change the receiver type must re-resolve it.
func Rebuild(e Expr, v Visitor) (Expr, error) {
	switch n := e.(type) {
	case *Param, *Const:
		return e, nil

	case *Member:
		x, err := v.Visit(n.X)
		if err != nil {
			return nil, err
		}
		if x == n.X {
			return n, nil
		}
		return &Member{X: x, Name: n.Name, field: n.field, resolved: n.resolved}, nil

	case *Unary:
		x, err := v.Visit(n.X)
		if err != nil {
			return nil, err
		}
		if x == n.X {
			return n, nil
		}
		return &Unary{Op: n.Op, X: x}, nil

	case *Binary:
		l, err := v.Visit(n.L)
		if err != nil {
			return nil, err
		}
		r, err := v.Visit(n.R)
		if err != nil {
			return nil, err
		}
		if l == n.L && r == n.R {
			return n, nil
		}
		return &Binary{Op: n.Op, L: l, R: r}, nil

	case *Call:
		changed := false
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			na, err := v.Visit(a)
			if err != nil {
				return nil, err
			}
			changed = changed || na != a
			args[i] = na
		}
		if !changed {
			return n, nil
		}
		return &Call{Fn: n.Fn, Args: args}, nil

	default:
		return nil, fmt.Errorf("predicate: unknown expression node %T", e)
	}
}

// Inspect walks e depth-first, calling fn for every node. Children of a
// node are skipped when fn returns false for it.
func Inspect(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *Member:
		Inspect(n.X, fn)
	case *Unary:
		Inspect(n.X, fn)
	case *Binary:
		Inspect(n.L, fn)
		Inspect(n.R, fn)
	case *Call:
		for _, a := range n.Args {
			Inspect(a, fn)
		}
	}
}
