package sietch

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/seb7887/gofw/predicate"
)

// ColumnType represents SQL column data types
type ColumnType string

const (
	ColumnTypeInteger   ColumnType = "INTEGER"
	ColumnTypeBigInt    ColumnType = "BIGINT"
	ColumnTypeText      ColumnType = "TEXT"
	ColumnTypeBoolean   ColumnType = "BOOLEAN"
	ColumnTypeTimestamp ColumnType = "TIMESTAMPTZ"
	ColumnTypeFloat     ColumnType = "FLOAT8"
	ColumnTypeUUID      ColumnType = "UUID"
	ColumnTypeTextArray ColumnType = "TEXT[]"
	ColumnTypeJSON      ColumnType = "JSONB"
)

// ColumnDef defines a table column
type ColumnDef struct {
	Name       string
	Type       ColumnType
	PrimaryKey bool
	NotNull    bool
}

// TableDef defines the table a CockroachDBConnector reads and writes. It is
// used to create missing tables in development and tests; existing tables
// are never altered.
type TableDef struct {
	Name    string
	Columns []ColumnDef
}

// InferTableDef derives the table definition of the stored fields of s.
// Pointer fields are nullable.
func InferTableDef(s *predicate.Schema, tableName string) *TableDef {
	def := &TableDef{Name: tableName}
	for _, f := range storedFields(s) {
		ft := s.GoType.FieldByIndex(f.Index).Type
		def.Columns = append(def.Columns, ColumnDef{
			Name:       f.Column,
			Type:       inferColumnType(ft),
			PrimaryKey: f.Key,
			NotNull:    ft.Kind() != reflect.Pointer,
		})
	}
	return def
}

var uuidType = reflect.TypeOf(uuid.UUID{})

// inferColumnType maps Go types to SQL column types
func inferColumnType(t reflect.Type) ColumnType {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t {
	case uuidType:
		return ColumnTypeUUID
	case reflect.TypeOf(time.Time{}):
		return ColumnTypeTimestamp
	}

	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return ColumnTypeInteger
	case reflect.Int, reflect.Int64, reflect.Uint32:
		return ColumnTypeBigInt
	case reflect.String:
		return ColumnTypeText
	case reflect.Bool:
		return ColumnTypeBoolean
	case reflect.Float32, reflect.Float64:
		return ColumnTypeFloat
	case reflect.Slice:
		if t.Elem().Kind() == reflect.String {
			return ColumnTypeTextArray
		}
	}
	return ColumnTypeJSON
}

// GenerateCreateTableSQL generates CREATE TABLE SQL from table definition
func GenerateCreateTableSQL(def *TableDef) string {
	parts := make([]string, 0, len(def.Columns))
	for _, col := range def.Columns {
		colDef := fmt.Sprintf(`%s %s`, quoteIdentifier(col.Name), col.Type)
		if col.PrimaryKey {
			colDef += " PRIMARY KEY"
		} else if col.NotNull {
			colDef += " NOT NULL"
		}
		parts = append(parts, colDef)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
		quoteIdentifier(def.Name),
		strings.Join(parts, ",\n  "),
	)
}

// GenerateDropTableSQL generates DROP TABLE SQL
func GenerateDropTableSQL(tableName string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", quoteIdentifier(tableName))
}
