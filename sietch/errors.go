package sietch

import (
	"errors"

	"github.com/seb7887/gofw/predicate"
)

var (
	ErrItemNotFound         = errors.New("item not found")
	ErrItemAlreadyExists    = errors.New("item already exists")
	ErrNoUpdateItem         = errors.New("no item has been updated")
	ErrNoDeleteItem         = errors.New("no item has been deleted")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrInvalidQuery         = errors.New("invalid query")

	// ErrConfiguration is predicate.ErrConfiguration, re-exported so callers
	// of this package can match wiring failures without importing predicate.
	ErrConfiguration = predicate.ErrConfiguration
)
