package predicate

import (
	"fmt"
	"reflect"
	"slices"
)

// Selector extracts a sortable key from a T.
type Selector[T any] struct {
	lambda *Lambda
}

// NewSelector builds a key selector over T.
func NewSelector[T any](build func(x *Param) Expr) (*Selector[T], error) {
	l, err := entityLambda[T](build)
	if err != nil {
		return nil, err
	}
	if k := l.Body.Type().Kind; k == KindEntity || k == KindInvalid {
		return nil, fmt.Errorf("%w: %s is not a sortable key", ErrTypeMismatch, l.Body)
	}
	return &Selector[T]{lambda: l}, nil
}

// FieldSelector selects the named field of T.
func FieldSelector[T any](name string) (*Selector[T], error) {
	return NewSelector[T](func(x *Param) Expr { return Field(x, name) })
}

// SelectorFromLambda wraps an already bound lambda taking a single T.
func SelectorFromLambda[T any](l *Lambda) (*Selector[T], error) {
	if err := checkEntityLambda[T](l); err != nil {
		return nil, err
	}
	return &Selector[T]{lambda: l}, nil
}

func (s *Selector[T]) Lambda() *Lambda { return s.lambda }

// Key evaluates the selector against item.
func (s *Selector[T]) Key(item *T) (any, error) {
	env := map[*Param]any{s.lambda.Params[0]: reflect.ValueOf(item)}
	return evaluate(s.lambda.Body, env)
}

func (s *Selector[T]) String() string {
	return s.lambda.String()
}

// Ordering is a primary sort key with an optional secondary key. Each key
// has its own direction. ThenBy is ignored unless By is set.
type Ordering[T any] struct {
	By       *Selector[T]
	Desc     bool
	ThenBy   *Selector[T]
	ThenDesc bool
}

// OrderBy returns an ordering on by.
func OrderBy[T any](by *Selector[T], desc bool) *Ordering[T] {
	return &Ordering[T]{By: by, Desc: desc}
}

// Then returns a copy of o with a secondary key.
func (o *Ordering[T]) Then(by *Selector[T], desc bool) *Ordering[T] {
	out := *o
	out.ThenBy = by
	out.ThenDesc = desc
	return &out
}

// HasSecondary reports whether the secondary key takes part in ordering.
func (o *Ordering[T]) HasSecondary() bool {
	return o != nil && o.By != nil && o.ThenBy != nil
}

// Compare orders a against b. A nil ordering considers all items equal.
func (o *Ordering[T]) Compare(a, b *T) (int, error) {
	if o == nil || o.By == nil {
		return 0, nil
	}
	ka, kb, err := o.keys(a)
	if err != nil {
		return 0, err
	}
	la, lb, err := o.keys(b)
	if err != nil {
		return 0, err
	}
	return o.compareKeys(ka, kb, la, lb)
}

// Sort stably orders items in place. Items with equal keys keep their
// relative order.
func (o *Ordering[T]) Sort(items []T) error {
	if o == nil || o.By == nil || len(items) < 2 {
		return nil
	}

	type keyed struct {
		item      T
		primary   any
		secondary any
	}
	decorated := make([]keyed, len(items))
	for i := range items {
		p, s, err := o.keys(&items[i])
		if err != nil {
			return err
		}
		decorated[i] = keyed{item: items[i], primary: p, secondary: s}
	}

	var sortErr error
	slices.SortStableFunc(decorated, func(a, b keyed) int {
		c, err := o.compareKeys(a.primary, a.secondary, b.primary, b.secondary)
		if err != nil && sortErr == nil {
			sortErr = err
		}
		return c
	})
	if sortErr != nil {
		return sortErr
	}
	for i := range decorated {
		items[i] = decorated[i].item
	}
	return nil
}

func (o *Ordering[T]) String() string {
	if o == nil || o.By == nil {
		return "<natural>"
	}
	s := o.By.String() + direction(o.Desc)
	if o.HasSecondary() {
		s += ", " + o.ThenBy.String() + direction(o.ThenDesc)
	}
	return s
}

func (o *Ordering[T]) keys(item *T) (primary, secondary any, err error) {
	primary, err = o.By.Key(item)
	if err != nil {
		return nil, nil, err
	}
	if o.ThenBy != nil {
		secondary, err = o.ThenBy.Key(item)
		if err != nil {
			return nil, nil, err
		}
	}
	return primary, secondary, nil
}

func (o *Ordering[T]) compareKeys(pa, sa, pb, sb any) (int, error) {
	c, err := compareForOrder(pa, pb)
	if err != nil {
		return 0, err
	}
	if o.Desc {
		c = -c
	}
	if c != 0 || o.ThenBy == nil {
		return c, nil
	}
	c, err = compareForOrder(sa, sb)
	if err != nil {
		return 0, err
	}
	if o.ThenDesc {
		c = -c
	}
	return c, nil
}

func direction(desc bool) string {
	if desc {
		return " desc"
	}
	return " asc"
}
