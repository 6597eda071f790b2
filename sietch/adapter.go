package sietch

import "context"

// StorageAdapter persists storage records of type S keyed by ID. Query must
// apply the query in the order filter, order, skip, take. Without an
// ordering, or between records with equal ordering keys, results come back
// in the adapter's natural order, which must be stable across calls.
type StorageAdapter[S any, ID comparable] interface {
	Query(ctx context.Context, q Query[S]) ([]S, error)

	// FindByKey returns ErrItemNotFound when no record has the key.
	FindByKey(ctx context.Context, id ID) (*S, error)

	// Insert returns ErrItemAlreadyExists when the key is taken.
	Insert(ctx context.Context, item *S) error

	// Update returns ErrNoUpdateItem when the key is absent.
	Update(ctx context.Context, item *S) error

	// Delete returns ErrNoDeleteItem when the key is absent.
	Delete(ctx context.Context, item *S) error

	Count(ctx context.Context, q Query[S]) (int64, error)
}

// Capabilities describes which orderings an adapter applies in storage.
// Every adapter applies an ascending primary key.
type Capabilities struct {
	Descending   bool
	SecondaryKey bool
}

// FullOrdering is reported by adapters that apply any ordering.
var FullOrdering = Capabilities{Descending: true, SecondaryKey: true}

// CapabilityReporter is implemented by adapters that apply more than an
// ascending primary key.
type CapabilityReporter interface {
	Capabilities() Capabilities
}

func capabilitiesOf(adapter any) Capabilities {
	if r, ok := adapter.(CapabilityReporter); ok {
		return r.Capabilities()
	}
	return Capabilities{}
}
