package loader

import (
	"context"
	"sync"
)

// Deferred is the pending result of a queued request.
type Deferred[T any] struct {
	scope *Scope
	done  chan struct{}
	once  sync.Once
	val   T
	err   error
}

func newDeferred[T any](s *Scope) *Deferred[T] {
	return &Deferred[T]{scope: s, done: make(chan struct{})}
}

func resolved[T any](v T, err error) *Deferred[T] {
	d := newDeferred[T](nil)
	d.resolve(v, err)
	return d
}

func (d *Deferred[T]) resolve(v T, err error) {
	d.once.Do(func() {
		d.val, d.err = v, err
		close(d.done)
	})
}

// Done is closed once the result is available.
func (d *Deferred[T]) Done() <-chan struct{} {
	return d.done
}

// Await returns the result, dispatching the scope's open batches first when
// the request has not executed yet. It gives up when ctx is done.
func (d *Deferred[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-d.done:
		return d.val, d.err
	default:
	}

	if d.scope != nil {
		// Failures of the batch reach d through resolve.
		_ = d.scope.Dispatch(ctx)
	}

	select {
	case <-d.done:
		return d.val, d.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
