package predicate

import (
	"reflect"
	"time"
)

// Kind classifies the value produced by a field or an expression.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindTime
	KindEntity
	KindAny
)

var kindNames = map[Kind]string{
	KindInvalid: "invalid",
	KindBool:    "bool",
	KindInt:     "int",
	KindUint:    "uint",
	KindFloat:   "float",
	KindString:  "string",
	KindTime:    "time",
	KindEntity:  "entity",
	KindAny:     "any",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

func (k Kind) numeric() bool {
	return k == KindInt || k == KindUint || k == KindFloat
}

// Type is the static type of an expression. Entity types carry the schema
// they were built from; two entity types are equal only if they share it.
type Type struct {
	Kind   Kind
	Entity *Schema
	// Bits is the size of numeric field types. Zero means unsized, as for
	// constants and the predeclared types below.
	Bits     int
	Nullable bool
}

var (
	BoolType    = Type{Kind: KindBool}
	StringType  = Type{Kind: KindString}
	IntType     = Type{Kind: KindInt}
	FloatType   = Type{Kind: KindFloat}
	AnyType     = Type{Kind: KindAny}
	invalidType = Type{Kind: KindInvalid}
	nullType    = Type{Kind: KindAny, Nullable: true}
)

// EntityType returns the type of values described by s.
func EntityType(s *Schema) Type {
	return Type{Kind: KindEntity, Entity: s}
}

func (t Type) String() string {
	name := t.Kind.String()
	if t.Kind == KindEntity && t.Entity != nil {
		name = t.Entity.Name
	}
	if t.Nullable {
		return "*" + name
	}
	return name
}

// convertible reports whether a value of type from can stand in for a value
// of type to without losing information. Numbers only widen: a kind keeps or
// grows its size, integers become floats and unsigned integers become wider
// signed ones. Nullability may differ. Entity types are always convertible:
// their members are re-resolved by name.
func convertible(from, to Type) bool {
	switch {
	case from.Kind == KindAny || to.Kind == KindAny:
		return true
	case from.Kind == to.Kind:
		return !from.Kind.numeric() || fits(from.Bits, to.Bits)
	case to.Kind == KindFloat:
		return from.Kind == KindInt || from.Kind == KindUint
	case from.Kind == KindUint && to.Kind == KindInt:
		return from.Bits == 0 || to.Bits == 0 || from.Bits < to.Bits
	}
	return false
}

func fits(from, to int) bool {
	return from == 0 || to == 0 || from <= to
}

// comparableTypes reports whether values of the two types may be compared.
// Any two numbers compare; comparison converts them without loss.
func comparableTypes(a, b Type) bool {
	if a.Kind == KindEntity || b.Kind == KindEntity {
		return false
	}
	if a.Kind.numeric() && b.Kind.numeric() {
		return true
	}
	return convertible(a, b) || convertible(b, a)
}

// numericBits is the size of rt when it is a number, else zero.
func numericBits(rt reflect.Type) int {
	switch rt.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return rt.Bits()
	}
	return 0
}

var timeType = reflect.TypeOf(time.Time{})

// scalarKind maps a non-struct Go type to its Kind. Struct types other than
// time.Time report KindEntity.
func scalarKind(rt reflect.Type) Kind {
	if rt == timeType {
		return KindTime
	}
	switch rt.Kind() {
	case reflect.Bool:
		return KindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return KindInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return KindUint
	case reflect.Float32, reflect.Float64:
		return KindFloat
	case reflect.String:
		return KindString
	case reflect.Struct:
		return KindEntity
	default:
		return KindAny
	}
}

// typeOfValue infers the static type of a constant.
func typeOfValue(v any) Type {
	if v == nil {
		return nullType
	}
	rt := reflect.TypeOf(v)
	nullable := false
	if rt.Kind() == reflect.Pointer {
		nullable = true
		rt = rt.Elem()
	}
	kind := scalarKind(rt)
	if kind == KindEntity {
		kind = KindAny
	}
	return Type{Kind: kind, Nullable: nullable}
}
