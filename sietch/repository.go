package sietch

import "context"

// Repository defines a generic contract for CRUD and query operations.
// T represents the model type and ID the primary key type.
type Repository[T any, ID comparable] interface {
	// Create returns a new, unsaved T with the given key, or a generated
	// one when none is given. Optional text fields are set to "". Storage
	// is not touched.
	Create(ctx context.Context, id ...ID) (*T, error)

	// Find returns the record stored under id, or ErrItemNotFound.
	Find(ctx context.Context, id ID) (*T, error)

	// FindOne returns the first record selected by q, or ErrItemNotFound.
	FindOne(ctx context.Context, q Query[T]) (*T, error)

	// FindAll returns the records selected by q in storage order.
	FindAll(ctx context.Context, q Query[T]) ([]T, error)

	// Save inserts item when its key is absent and updates the stored record
	// otherwise. It reports whether a new record was inserted.
	Save(ctx context.Context, item *T) (bool, error)

	// Remove deletes the record stored under id. Removing a missing key is
	// not an error; it reports false.
	Remove(ctx context.Context, id ID) (bool, error)

	// Count returns how many records q selects after skip and take. The
	// ordering of q is ignored.
	Count(ctx context.Context, q Query[T]) (int64, error)
}

// QueryPlanner is implemented by repositories that can tell whether their
// storage applies a query's ordering itself.
type QueryPlanner[T any] interface {
	SupportsQuery(q Query[T]) bool
}
