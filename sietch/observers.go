package sietch

import (
	"context"
	"sync"
)

// Observer receives repository lifecycle notifications. Callbacks run
// synchronously, in registration order, on the goroutine performing the
// operation. They must not affect the outcome of the operation.
type Observer[T any] interface {
	// Created is called after Create builds a new model
	Created(ctx context.Context, item *T)

	// Found is called for every model returned by Find, FindOne and FindAll
	Found(ctx context.Context, item *T)

	// Saving is called before Save writes item
	Saving(ctx context.Context, item *T)

	// Saved is called after Save wrote item
	Saved(ctx context.Context, item *T)

	// Removed is called with the data of a record Remove deleted
	Removed(ctx context.Context, item *T)
}

// BaseObserver provides a default implementation of Observer.
// Embed it in custom observers to only implement needed methods.
type BaseObserver[T any] struct{}

func (BaseObserver[T]) Created(context.Context, *T) {}
func (BaseObserver[T]) Found(context.Context, *T)   {}
func (BaseObserver[T]) Saving(context.Context, *T)  {}
func (BaseObserver[T]) Saved(context.Context, *T)   {}
func (BaseObserver[T]) Removed(context.Context, *T) {}

// ObserverRegistry manages an ordered collection of observers.
type ObserverRegistry[T any] struct {
	mu        sync.RWMutex
	observers []Observer[T]
}

// NewObserverRegistry creates an empty registry.
func NewObserverRegistry[T any]() *ObserverRegistry[T] {
	return &ObserverRegistry[T]{}
}

// AddObserver appends o to the notification order.
func (r *ObserverRegistry[T]) AddObserver(o Observer[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// RemoveAllObservers clears the registry.
func (r *ObserverRegistry[T]) RemoveAllObservers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = nil
}

func (r *ObserverRegistry[T]) each(fn func(Observer[T])) {
	r.mu.RLock()
	observers := r.observers
	r.mu.RUnlock()
	for _, o := range observers {
		fn(o)
	}
}

func (r *ObserverRegistry[T]) NotifyCreated(ctx context.Context, item *T) {
	r.each(func(o Observer[T]) { o.Created(ctx, item) })
}

func (r *ObserverRegistry[T]) NotifyFound(ctx context.Context, item *T) {
	r.each(func(o Observer[T]) { o.Found(ctx, item) })
}

func (r *ObserverRegistry[T]) NotifySaving(ctx context.Context, item *T) {
	r.each(func(o Observer[T]) { o.Saving(ctx, item) })
}

func (r *ObserverRegistry[T]) NotifySaved(ctx context.Context, item *T) {
	r.each(func(o Observer[T]) { o.Saved(ctx, item) })
}

func (r *ObserverRegistry[T]) NotifyRemoved(ctx context.Context, item *T) {
	r.each(func(o Observer[T]) { o.Removed(ctx, item) })
}

// Observable is implemented by repositories that accept observers.
type Observable[T any] interface {
	AddObserver(o Observer[T])
	RemoveAllObservers()
}
