package predicate

import "fmt"

// Compose binds second's parameters positionally onto first's and joins the
// two bodies with merge. The result is a lambda over first's parameter list.
func Compose(first, second *Lambda, merge func(l, r Expr) Expr) (*Lambda, error) {
	if len(first.Params) != len(second.Params) {
		return nil, &ConfigurationError{
			Reason: fmt.Sprintf("cannot compose lambdas with %d and %d parameters", len(first.Params), len(second.Params)),
		}
	}
	rebind := make(map[*Param]*Param, len(first.Params))
	for i, p := range second.Params {
		if p.Of != first.Params[i].Of {
			return nil, &ConfigurationError{
				Reason: fmt.Sprintf("parameter %d is %s in one lambda and %s in the other", i, first.Params[i].Of, p.Of),
			}
		}
		rebind[p] = first.Params[i]
	}

	var rebinder Visitor
	rebinder = VisitorFunc(func(e Expr) (Expr, error) {
		if p, ok := e.(*Param); ok {
			if to, ok := rebind[p]; ok {
				return to, nil
			}
			return p, nil
		}
		return Rebuild(e, rebinder)
	})
	body, err := rebinder.Visit(second.Body)
	if err != nil {
		return nil, err
	}
	return &Lambda{Params: first.Params, Body: merge(first.Body, body)}, nil
}

// Or returns a predicate matching what a or b match. A nil operand is
// ignored.
func Or[T any](a, b *Predicate[T]) *Predicate[T] {
	return compose(a, b, OpOr)
}

// And returns a predicate matching what both a and b match. A nil operand
// is ignored.
func And[T any](a, b *Predicate[T]) *Predicate[T] {
	return compose(a, b, OpAnd)
}

// CombineOr folds ps with Or from left to right, skipping nil entries. It
// returns nil when no predicate remains.
func CombineOr[T any](ps ...*Predicate[T]) *Predicate[T] {
	return combine(ps, Or[T])
}

// CombineAnd folds ps with And from left to right, skipping nil entries. It
// returns nil when no predicate remains.
func CombineAnd[T any](ps ...*Predicate[T]) *Predicate[T] {
	return combine(ps, And[T])
}

func combine[T any](ps []*Predicate[T], join func(a, b *Predicate[T]) *Predicate[T]) *Predicate[T] {
	var acc *Predicate[T]
	for _, p := range ps {
		if p == nil {
			continue
		}
		if acc == nil {
			acc = p
			continue
		}
		acc = join(acc, p)
	}
	return acc
}

func compose[T any](a, b *Predicate[T], op BinaryOp) *Predicate[T] {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	l, err := Compose(a.lambda, b.lambda, func(l, r Expr) Expr {
		return &Binary{Op: op, L: l, R: r}
	})
	if err != nil {
		// Both lambdas take exactly one T, checked when they were built.
		panic(err)
	}
	return &Predicate[T]{lambda: l}
}
