package idgen

import (
	"github.com/oklog/ulid/v2"
)

// ulid.Make is monotonic within a process, so keys generated in the same
// millisecond still sort in creation order.
var _ulidGenerator = func() string {
	return ulid.Make().String()
}

func NewULID() string {
	return _ulidGenerator()
}

// UseULID replaces the generator behind NewULID, e.g. with a fixed sequence
// in tests.
func UseULID(fn func() string) {
	_ulidGenerator = fn
}
