package predicate

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"
)

// FieldInfo describes one member of an entity type.
type FieldInfo struct {
	// Name is the Go field name. Members are resolved by it.
	Name string

	// Column is the storage name: the db tag when present, else snake_case(Name)
	Column string

	Type  Type
	Key   bool
	Index []int
}

// Schema is the startup-time descriptor of an entity type: its ordered
// fields and primary key. Schemas are built once per Go type and shared.
type Schema struct {
	Name   string
	GoType reflect.Type
	Fields []FieldInfo

	byName map[string]int
	key    int
}

// Field returns the field called name.
func (s *Schema) Field(name string) (FieldInfo, bool) {
	i, ok := s.byName[name]
	if !ok {
		return FieldInfo{}, false
	}
	return s.Fields[i], true
}

// Lookup resolves name case-insensitively against field names and columns.
// It is meant for names coming from outside the program (query strings).
func (s *Schema) Lookup(name string) (FieldInfo, bool) {
	if f, ok := s.Field(name); ok {
		return f, true
	}
	for _, f := range s.Fields {
		if strings.EqualFold(f.Name, name) || strings.EqualFold(f.Column, name) {
			return f, true
		}
	}
	return FieldInfo{}, false
}

// KeyField returns the primary key field. The key is the field tagged
// `sietch:"key"`, else a field named Id or ID, else <TypeName>Id or
// <TypeName>ID.
func (s *Schema) KeyField() (FieldInfo, error) {
	if s.key < 0 {
		return FieldInfo{}, &ConfigurationError{
			Entity: s.Name,
			Reason: fmt.Sprintf("no primary key: tag a field `sietch:\"key\"` or name it Id or %sId", s.Name),
		}
	}
	return s.Fields[s.key], nil
}

// Value reads field f from v, which must be a struct of s's type or a
// pointer to one.
func (s *Schema) Value(v reflect.Value, f FieldInfo) (reflect.Value, error) {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: nil %s reading %s", ErrEvaluation, s.Name, f.Name)
		}
		v = v.Elem()
	}
	if v.Type() != s.GoType {
		return reflect.Value{}, fmt.Errorf("%w: %s is not a %s", ErrEvaluation, v.Type(), s.Name)
	}
	return v.FieldByIndex(f.Index), nil
}

func (s *Schema) String() string {
	return s.Name
}

// SchemaOption adjusts a schema during Register.
type SchemaOption func(*Schema) error

// WithKey marks the named field as the primary key.
func WithKey(name string) SchemaOption {
	return func(s *Schema) error {
		i, ok := s.byName[name]
		if !ok {
			return &ConfigurationError{Entity: s.Name, Reason: fmt.Sprintf("key field %q does not exist", name)}
		}
		if s.key >= 0 {
			s.Fields[s.key].Key = false
		}
		s.Fields[i].Key = true
		s.key = i
		return nil
	}
}

// WithColumn overrides the storage column of a field.
func WithColumn(name, column string) SchemaOption {
	return func(s *Schema) error {
		i, ok := s.byName[name]
		if !ok {
			return &ConfigurationError{Entity: s.Name, Reason: fmt.Sprintf("field %q does not exist", name)}
		}
		s.Fields[i].Column = column
		return nil
	}
}

var registry = struct {
	mu      sync.Mutex
	schemas map[reflect.Type]*Schema
}{schemas: make(map[reflect.Type]*Schema)}

// SchemaOf returns the schema of T, building and caching it on first use.
func SchemaOf[T any]() (*Schema, error) {
	return schemaFor(reflect.TypeOf((*T)(nil)).Elem())
}

// Register builds the schema of T and applies opts to it. Call it during
// startup, before predicates over T are built.
func Register[T any](opts ...SchemaOption) (*Schema, error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()

	registry.mu.Lock()
	defer registry.mu.Unlock()

	s, err := buildLocked(rt)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// SchemaFor is SchemaOf for a type only known at run time.
func SchemaFor(rt reflect.Type) (*Schema, error) {
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	return schemaFor(rt)
}

func schemaFor(rt reflect.Type) (*Schema, error) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return buildLocked(rt)
}

func buildLocked(rt reflect.Type) (*Schema, error) {
	if s, ok := registry.schemas[rt]; ok {
		return s, nil
	}
	if rt.Kind() != reflect.Struct {
		return nil, &ConfigurationError{Entity: rt.String(), Reason: "entity types must be structs"}
	}

	s := &Schema{
		Name:   rt.Name(),
		GoType: rt,
		byName: make(map[string]int),
		key:    -1,
	}
	// Registered before the fields are collected so self-referencing
	// types resolve to the schema being built.
	registry.schemas[rt] = s

	if err := collectFields(s, rt, nil); err != nil {
		delete(registry.schemas, rt)
		return nil, err
	}
	if err := resolveKey(s); err != nil {
		delete(registry.schemas, rt)
		return nil, err
	}
	return s, nil
}

func collectFields(s *Schema, rt reflect.Type, prefix []int) error {
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		column, skip := columnOf(sf)
		if skip {
			continue
		}

		index := append(append([]int(nil), prefix...), i)
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct && sf.Type != timeType {
			if err := collectFields(s, sf.Type, index); err != nil {
				return err
			}
			continue
		}
		if _, dup := s.byName[sf.Name]; dup {
			continue
		}

		t, err := typeOfLocked(sf.Type)
		if err != nil {
			return err
		}
		s.byName[sf.Name] = len(s.Fields)
		s.Fields = append(s.Fields, FieldInfo{
			Name:   sf.Name,
			Column: column,
			Type:   t,
			Key:    hasTagOption(sf.Tag.Get("sietch"), "key"),
			Index:  index,
		})
	}
	return nil
}

func typeOfLocked(rt reflect.Type) (Type, error) {
	nullable := false
	if rt.Kind() == reflect.Pointer {
		nullable = true
		rt = rt.Elem()
	}
	kind := scalarKind(rt)
	if kind != KindEntity {
		return Type{Kind: kind, Bits: numericBits(rt), Nullable: nullable}, nil
	}
	nested, err := buildLocked(rt)
	if err != nil {
		return invalidType, err
	}
	return Type{Kind: KindEntity, Entity: nested, Nullable: nullable}, nil
}

func resolveKey(s *Schema) error {
	for i, f := range s.Fields {
		if !f.Key {
			continue
		}
		if s.key >= 0 {
			return &ConfigurationError{Entity: s.Name, Reason: "more than one field tagged as key"}
		}
		s.key = i
	}
	if s.key >= 0 {
		return nil
	}
	for _, name := range []string{"Id", "ID", s.Name + "Id", s.Name + "ID"} {
		if i, ok := s.byName[name]; ok {
			s.Fields[i].Key = true
			s.key = i
			return nil
		}
	}
	return nil
}

func columnOf(sf reflect.StructField) (string, bool) {
	tag := sf.Tag.Get("db")
	if tag == "-" {
		return "", true
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name, false
	}
	return snakeCase(sf.Name), false
}

func hasTagOption(tag, option string) bool {
	for _, part := range strings.Split(tag, ",") {
		if strings.TrimSpace(part) == option {
			return true
		}
	}
	return false
}

// snakeCase converts a Go identifier to snake_case, keeping initialisms
// together: WidgetID -> widget_id, HTTPServer -> http_server.
func snakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
