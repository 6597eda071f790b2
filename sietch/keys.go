package sietch

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/seb7887/gofw/idgen"
	"github.com/seb7887/gofw/predicate"
)

// keyAccessor reads and writes the primary key of T through its schema.
type keyAccessor[T any, ID comparable] struct {
	schema *predicate.Schema
	field  predicate.FieldInfo
}

func newKeyAccessor[T any, ID comparable]() (keyAccessor[T, ID], error) {
	s, err := predicate.SchemaOf[T]()
	if err != nil {
		return keyAccessor[T, ID]{}, err
	}
	f, err := s.KeyField()
	if err != nil {
		return keyAccessor[T, ID]{}, err
	}
	fieldType := s.GoType.FieldByIndex(f.Index).Type
	idType := reflect.TypeOf((*ID)(nil)).Elem()
	if fieldType != idType {
		return keyAccessor[T, ID]{}, &predicate.ConfigurationError{
			Entity: s.Name,
			Reason: fmt.Sprintf("key field %s is %s, repository key type is %s", f.Name, fieldType, idType),
		}
	}
	return keyAccessor[T, ID]{schema: s, field: f}, nil
}

func (k keyAccessor[T, ID]) get(item *T) ID {
	return reflect.ValueOf(item).Elem().FieldByIndex(k.field.Index).Interface().(ID)
}

func (k keyAccessor[T, ID]) set(item *T, id ID) {
	reflect.ValueOf(item).Elem().FieldByIndex(k.field.Index).Set(reflect.ValueOf(id))
}

// column is the storage name of the key field.
func (k keyAccessor[T, ID]) column() string {
	return k.field.Column
}

// KeyOf returns the primary key of item.
func KeyOf[T any, ID comparable](item *T) (ID, error) {
	k, err := newKeyAccessor[T, ID]()
	if err != nil {
		var zero ID
		return zero, err
	}
	return k.get(item), nil
}

// SetKey sets the primary key of item.
func SetKey[T any, ID comparable](item *T, id ID) error {
	k, err := newKeyAccessor[T, ID]()
	if err != nil {
		return err
	}
	k.set(item, id)
	return nil
}

// defaultKeyGenerator returns a generator of fresh keys for ID: UUID
// strings for string kinds, random UUIDs for uuid.UUID. Other key types
// have no default and Create leaves them at their zero value.
func defaultKeyGenerator[ID comparable]() func() ID {
	idType := reflect.TypeOf((*ID)(nil)).Elem()
	switch {
	case idType == reflect.TypeOf(uuid.UUID{}):
		return func() ID { return any(uuid.New()).(ID) }
	case idType.Kind() == reflect.String:
		return func() ID {
			return reflect.ValueOf(idgen.NewUUID()).Convert(idType).Interface().(ID)
		}
	}
	return nil
}

// ULIDKeys generates ULID strings for string-kinded keys.
func ULIDKeys[ID ~string]() func() ID {
	return func() ID { return ID(idgen.NewULID()) }
}

// UUIDv7Keys generates time-ordered UUID strings for string-kinded keys.
func UUIDv7Keys[ID ~string]() func() ID {
	return func() ID { return ID(idgen.NewUUIDv7()) }
}
