package sietch

import (
	"fmt"
	"time"

	"github.com/seb7887/gofw/predicate"
)

// SoftDeletable is implemented by models that are marked deleted instead of
// being removed from storage.
type SoftDeletable interface {
	// IsDeleted returns true if the entity is marked as deleted
	IsDeleted() bool

	// SetDeleted marks the entity as deleted or undeleted
	SetDeleted(deleted bool)

	// GetDeletedAt returns the timestamp when the entity was deleted
	GetDeletedAt() *time.Time

	// SetDeletedAt sets the deletion timestamp
	SetDeletedAt(deletedAt *time.Time)
}

// SoftDeleteOptions configures soft delete behavior for a repository
type SoftDeleteOptions struct {
	// IncludeDeleted when true, reads also return soft-deleted records
	IncludeDeleted bool

	// IsDeletedField names the boolean deletion flag, by field name or
	// column. Default: "is_deleted"
	IsDeletedField string
}

// DefaultSoftDeleteOptions returns the default soft delete configuration
func DefaultSoftDeleteOptions() *SoftDeleteOptions {
	return &SoftDeleteOptions{
		IncludeDeleted: false,
		IsDeletedField: "is_deleted",
	}
}

// isSoftDeletable checks if *T implements SoftDeletable
func isSoftDeletable[T any]() bool {
	var zero T
	_, ok := any(&zero).(SoftDeletable)
	return ok
}

// markAsDeleted marks an entity as soft-deleted
func markAsDeleted[T any](item *T) {
	if sd, ok := any(item).(SoftDeletable); ok {
		now := time.Now()
		sd.SetDeleted(true)
		sd.SetDeletedAt(&now)
	}
}

// isEntityDeleted checks if an entity is soft-deleted
func isEntityDeleted[T any](item *T) bool {
	if sd, ok := any(item).(SoftDeletable); ok {
		return sd.IsDeleted()
	}
	return false
}

// notDeleted builds the predicate reads are AND-composed with to hide
// soft-deleted records.
func notDeleted[T any](opts *SoftDeleteOptions) (*predicate.Predicate[T], error) {
	s, err := predicate.SchemaOf[T]()
	if err != nil {
		return nil, err
	}
	if !isSoftDeletable[T]() {
		return nil, &predicate.ConfigurationError{Entity: s.Name, Reason: "soft delete requires *" + s.Name + " to implement SoftDeletable"}
	}
	f, ok := s.Lookup(opts.IsDeletedField)
	if !ok || f.Type.Kind != predicate.KindBool {
		return nil, &predicate.ConfigurationError{
			Entity: s.Name,
			Reason: fmt.Sprintf("soft delete flag %q is not a bool field", opts.IsDeletedField),
		}
	}
	return predicate.New[T](func(x *predicate.Param) predicate.Expr {
		return predicate.Eq(predicate.Field(x, f.Name), predicate.Value(false))
	})
}
