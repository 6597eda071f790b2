package predicate

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a structural problem with an entity type or a
	// predicate signature. It is never transient.
	ErrConfiguration = errors.New("configuration error")

	// ErrRewrite marks a failure to translate a predicate between entity types.
	ErrRewrite = errors.New("rewrite error")

	// ErrUnknownMember is returned when a member access names a field the
	// receiver type does not declare.
	ErrUnknownMember = errors.New("unknown member")

	// ErrTypeMismatch is returned when operands or rewritten members have
	// incompatible types.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrEvaluation is returned when a predicate cannot be evaluated in memory
	// against a concrete value, e.g. a nil dereference on an optional field.
	ErrEvaluation = errors.New("evaluation error")
)

// ConfigurationError reports a fatal wiring problem: an entity without a
// discoverable key field, or lambdas whose signatures cannot correspond.
type ConfigurationError struct {
	// Entity is the Go type name involved, if any
	Entity string

	// Reason describes what is wrong
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("predicate: %s: %s", ErrConfiguration, e.Reason)
	}
	return fmt.Sprintf("predicate: %s: %s: %s", ErrConfiguration, e.Entity, e.Reason)
}

// Unwrap allows errors.Is(err, ErrConfiguration).
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// RewriteError reports a member that could not be carried from the source
// entity type to the target entity type.
type RewriteError struct {
	// Member is the field name being dereferenced
	Member string

	// From and To are the source and target receiver types
	From string
	To   string

	// Err is the underlying cause (ErrUnknownMember, ErrTypeMismatch or a
	// *ConfigurationError)
	Err error
}

// Error implements the error interface.
func (e *RewriteError) Error() string {
	if e.Member == "" {
		return fmt.Sprintf("predicate: cannot rewrite %s to %s: %v", e.From, e.To, e.Err)
	}
	return fmt.Sprintf("predicate: cannot rewrite member %q from %s to %s: %v", e.Member, e.From, e.To, e.Err)
}

// Unwrap exposes both ErrRewrite and the cause to errors.Is / errors.As.
func (e *RewriteError) Unwrap() []error {
	return []error{ErrRewrite, e.Err}
}
