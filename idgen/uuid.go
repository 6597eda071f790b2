package idgen

import "github.com/google/uuid"

var (
	_uuidGenerator   = func() string { return uuid.NewString() }
	_uuidV7Generator = func() string { return uuid.Must(uuid.NewV7()).String() }
)

// NewUUID returns a random (version 4) UUID string.
func NewUUID() string {
	return _uuidGenerator()
}

// NewUUIDv7 returns a time-ordered (version 7) UUID string. Like a ULID it
// sorts by creation time, but it still parses as a UUID.
func NewUUIDv7() string {
	return _uuidV7Generator()
}

// UseUUID replaces the generator behind NewUUID.
func UseUUID(fn func() string) {
	_uuidGenerator = fn
}

func UseUUIDv7(fn func() string) {
	_uuidV7Generator = fn
}
