package sietch

import (
	"fmt"

	"github.com/seb7887/gofw/predicate"
)

// SortDirection is the direction of an ordering key.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// Query selects records: filter, then order, then skip, then take. A nil
// Where matches everything and a nil OrderBy keeps the store's natural
// order.
type Query[T any] struct {
	Where   *predicate.Predicate[T]
	OrderBy *predicate.Ordering[T]
	Skip    int
	Take    *int
}

// Validate rejects negative pagination.
func (q Query[T]) Validate() error {
	if q.Skip < 0 {
		return fmt.Errorf("%w: skip must be >= 0, got %d", ErrInvalidQuery, q.Skip)
	}
	if q.Take != nil && *q.Take < 0 {
		return fmt.Errorf("%w: take must be >= 0, got %d", ErrInvalidQuery, *q.Take)
	}
	return nil
}

// Paged reports whether the query skips or limits results.
func (q Query[T]) Paged() bool {
	return q.Skip > 0 || q.Take != nil
}

func (q Query[T]) String() string {
	take := "all"
	if q.Take != nil {
		take = fmt.Sprint(*q.Take)
	}
	return fmt.Sprintf("where %s order %s skip %d take %s", q.Where, q.OrderBy, q.Skip, take)
}

// QueryBuilder provides a fluent interface for building queries.
type QueryBuilder[T any] struct {
	q   Query[T]
	err error
}

// NewQuery starts a query over T.
func NewQuery[T any]() *QueryBuilder[T] {
	return &QueryBuilder[T]{}
}

// Where sets the filter. Calling it again ANDs the new predicate onto the
// previous one.
func (b *QueryBuilder[T]) Where(p *predicate.Predicate[T]) *QueryBuilder[T] {
	b.q.Where = predicate.And(b.q.Where, p)
	return b
}

// OrderBy sets the primary ordering key, replacing any previous ordering.
func (b *QueryBuilder[T]) OrderBy(by *predicate.Selector[T], dir SortDirection) *QueryBuilder[T] {
	b.q.OrderBy = predicate.OrderBy(by, dir == SortDesc)
	return b
}

// OrderByField orders on the named field of T.
func (b *QueryBuilder[T]) OrderByField(field string, dir SortDirection) *QueryBuilder[T] {
	sel, err := predicate.FieldSelector[T](field)
	if err != nil {
		b.setErr(err)
		return b
	}
	return b.OrderBy(sel, dir)
}

// ThenBy sets the secondary ordering key. It has no effect without a
// primary key.
func (b *QueryBuilder[T]) ThenBy(by *predicate.Selector[T], dir SortDirection) *QueryBuilder[T] {
	if b.q.OrderBy == nil {
		b.setErr(fmt.Errorf("%w: ThenBy without OrderBy", ErrInvalidQuery))
		return b
	}
	b.q.OrderBy = b.q.OrderBy.Then(by, dir == SortDesc)
	return b
}

// ThenByField sets the secondary ordering key to the named field of T.
func (b *QueryBuilder[T]) ThenByField(field string, dir SortDirection) *QueryBuilder[T] {
	sel, err := predicate.FieldSelector[T](field)
	if err != nil {
		b.setErr(err)
		return b
	}
	return b.ThenBy(sel, dir)
}

func (b *QueryBuilder[T]) Skip(n int) *QueryBuilder[T] {
	b.q.Skip = n
	return b
}

func (b *QueryBuilder[T]) Take(n int) *QueryBuilder[T] {
	b.q.Take = &n
	return b
}

// Build returns the query, or the first error met while building it.
func (b *QueryBuilder[T]) Build() (Query[T], error) {
	if b.err != nil {
		return Query[T]{}, b.err
	}
	if err := b.q.Validate(); err != nil {
		return Query[T]{}, err
	}
	return b.q, nil
}

// MustBuild is Build for queries assembled from literals.
func (b *QueryBuilder[T]) MustBuild() Query[T] {
	return predicate.Must(b.Build())
}

func (b *QueryBuilder[T]) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// ApplyQuery runs q over items in memory: filter, stable sort, skip, take.
// items is taken to be in natural order and is not modified.
func ApplyQuery[T any](items []T, q Query[T]) ([]T, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	out := make([]T, 0, len(items))
	for i := range items {
		ok, err := q.Where.Match(&items[i])
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, items[i])
		}
	}

	if err := q.OrderBy.Sort(out); err != nil {
		return nil, err
	}

	if q.Skip >= len(out) {
		return out[:0], nil
	}
	out = out[q.Skip:]
	if q.Take != nil && *q.Take < len(out) {
		out = out[:*q.Take]
	}
	return out, nil
}

// RewriteQuery carries q from the model type M to the storage type S.
func RewriteQuery[M, S any](q Query[M]) (Query[S], error) {
	if same, ok := any(q).(Query[S]); ok {
		return same, nil
	}
	where, err := predicate.Rewrite[M, S](q.Where)
	if err != nil {
		return Query[S]{}, err
	}
	order, err := predicate.RewriteOrdering[M, S](q.OrderBy)
	if err != nil {
		return Query[S]{}, err
	}
	return Query[S]{Where: where, OrderBy: order, Skip: q.Skip, Take: q.Take}, nil
}
