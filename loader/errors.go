package loader

import (
	"context"
	"fmt"

	"github.com/seb7887/gofw/predicate"
)

var (
	// ErrScopeClosed resolves requests still waiting when their scope is
	// closed. It matches context.Canceled.
	ErrScopeClosed = fmt.Errorf("loader: scope closed: %w", context.Canceled)

	// ErrKeyConflict is returned when two loaders queue under the same key
	// in one scope.
	ErrKeyConflict = fmt.Errorf("loader: %w: key already used by another loader", predicate.ErrConfiguration)
)

// PartitionError reports a request of a combined batch whose own filter,
// ordering or page could not be applied to the fetched records. The other
// requests of the batch are unaffected.
type PartitionError struct {
	// Key is the loader key of the batch
	Key string

	// Index is the position of the request in the batch, in queue order
	Index int

	Err error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("loader: batch %q request %d: %v", e.Key, e.Index, e.Err)
}

func (e *PartitionError) Unwrap() error {
	return e.Err
}
