// Package predicate implements typed, immutable filter and ordering-key
// expressions over entity types, together with the operations needed to
// move them between differently-shaped types: rewriting, combining and
// in-memory evaluation.
package predicate

import (
	"fmt"
	"reflect"
)

// Predicate is a boolean expression over one T.
type Predicate[T any] struct {
	lambda *Lambda
}

// New builds a predicate over T. build receives the parameter standing for
// the T being tested:
//
//	p, err := predicate.New[Widget](func(w *predicate.Param) predicate.Expr {
//		return predicate.Gt(predicate.Field(w, "Price"), predicate.Value(10))
//	})
func New[T any](build func(x *Param) Expr) (*Predicate[T], error) {
	l, err := entityLambda[T](build)
	if err != nil {
		return nil, err
	}
	if !isBoolish(l.Body.Type()) {
		return nil, fmt.Errorf("%w: predicate body %s is %s, not bool", ErrTypeMismatch, l.Body, l.Body.Type())
	}
	return &Predicate[T]{lambda: l}, nil
}

// FromLambda wraps an already bound lambda taking a single T.
func FromLambda[T any](l *Lambda) (*Predicate[T], error) {
	if err := checkEntityLambda[T](l); err != nil {
		return nil, err
	}
	if !isBoolish(l.Body.Type()) {
		return nil, fmt.Errorf("%w: predicate body %s is %s, not bool", ErrTypeMismatch, l.Body, l.Body.Type())
	}
	return &Predicate[T]{lambda: l}, nil
}

// Must panics if err is non-nil. It is intended for predicates and
// selectors built from literals at init time.
func Must[V any](v V, err error) V {
	if err != nil {
		panic(err)
	}
	return v
}

func (p *Predicate[T]) Lambda() *Lambda { return p.lambda }

// Param is the variable standing for the tested T.
func (p *Predicate[T]) Param() *Param { return p.lambda.Params[0] }

func (p *Predicate[T]) Body() Expr { return p.lambda.Body }

// Match evaluates the predicate against item. A nil predicate matches
// everything.
func (p *Predicate[T]) Match(item *T) (bool, error) {
	if p == nil {
		return true, nil
	}
	env := map[*Param]any{p.lambda.Params[0]: reflect.ValueOf(item)}
	v, err := evaluate(p.lambda.Body, env)
	if err != nil {
		return false, err
	}
	return asBool(v, p.lambda.Body)
}

func (p *Predicate[T]) String() string {
	if p == nil {
		return "<all>"
	}
	return p.lambda.String()
}
