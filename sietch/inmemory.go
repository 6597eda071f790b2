package sietch

import (
	"context"
	"errors"
	"slices"
	"sync"
)

var _ StorageAdapter[struct{ ID string }, string] = (*InMemoryConnector[struct{ ID string }, string])(nil)

// InMemoryConnector is a map-backed StorageAdapter. Its natural order is
// insertion order. Records are copied on the way in and out, so callers
// never share memory with the store.
type InMemoryConnector[T any, ID comparable] struct {
	data  map[ID]T
	order []ID
	mu    sync.RWMutex
	key   keyAccessor[T, ID]
}

// NewInMemoryConnector creates an empty store. T must have a primary key of
// type ID.
func NewInMemoryConnector[T any, ID comparable]() (*InMemoryConnector[T, ID], error) {
	key, err := newKeyAccessor[T, ID]()
	if err != nil {
		return nil, err
	}
	return &InMemoryConnector[T, ID]{
		data: make(map[ID]T),
		key:  key,
	}, nil
}

// Capabilities implements CapabilityReporter.
func (r *InMemoryConnector[T, ID]) Capabilities() Capabilities {
	return FullOrdering
}

func (r *InMemoryConnector[T, ID]) Query(_ context.Context, q Query[T]) ([]T, error) {
	return ApplyQuery(r.Snapshot(), q)
}

func (r *InMemoryConnector[T, ID]) FindByKey(_ context.Context, id ID) (*T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, exists := r.data[id]
	if !exists {
		return nil, ErrItemNotFound
	}
	return &item, nil
}

func (r *InMemoryConnector[T, ID]) Insert(_ context.Context, item *T) error {
	if item == nil {
		return errors.New("item cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.key.get(item)
	if _, exists := r.data[id]; exists {
		return ErrItemAlreadyExists
	}
	r.data[id] = *item
	r.order = append(r.order, id)
	return nil
}

func (r *InMemoryConnector[T, ID]) Update(_ context.Context, item *T) error {
	if item == nil {
		return errors.New("item cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.key.get(item)
	if _, exists := r.data[id]; !exists {
		return ErrNoUpdateItem
	}
	r.data[id] = *item
	return nil
}

func (r *InMemoryConnector[T, ID]) Delete(_ context.Context, item *T) error {
	if item == nil {
		return errors.New("item cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.key.get(item)
	if _, exists := r.data[id]; !exists {
		return ErrNoDeleteItem
	}
	delete(r.data, id)
	if i := slices.Index(r.order, id); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	return nil
}

func (r *InMemoryConnector[T, ID]) Count(_ context.Context, q Query[T]) (int64, error) {
	q.OrderBy = nil
	items, err := ApplyQuery(r.Snapshot(), q)
	if err != nil {
		return 0, err
	}
	return int64(len(items)), nil
}

// Snapshot returns every record in natural order.
func (r *InMemoryConnector[T, ID]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]T, 0, len(r.order))
	for _, id := range r.order {
		items = append(items, r.data[id])
	}
	return items
}

// Load replaces the content of the store with items, in order. Later
// duplicates of a key overwrite earlier ones in place.
func (r *InMemoryConnector[T, ID]) Load(items []T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data = make(map[ID]T, len(items))
	r.order = r.order[:0]
	for i := range items {
		id := r.key.get(&items[i])
		if _, exists := r.data[id]; !exists {
			r.order = append(r.order, id)
		}
		r.data[id] = items[i]
	}
}

// Len returns the number of stored records.
func (r *InMemoryConnector[T, ID]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
