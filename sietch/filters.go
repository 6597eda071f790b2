package sietch

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/seb7887/gofw/predicate"
)

// ComparisonOperator is the operator of a leaf Condition.
type ComparisonOperator string

const (
	OpEqual              ComparisonOperator = "="
	OpNotEqual           ComparisonOperator = "!="
	OpGreaterThan        ComparisonOperator = ">"
	OpLessThan           ComparisonOperator = "<"
	OpGreaterThanOrEqual ComparisonOperator = ">="
	OpLessThanOrEqual    ComparisonOperator = "<="
	OpIn                 ComparisonOperator = "IN"
	OpNotIn              ComparisonOperator = "NOT IN"
	OpLike               ComparisonOperator = "LIKE"
	OpILike              ComparisonOperator = "ILIKE"
	OpIsNull             ComparisonOperator = "IS NULL"
	OpIsNotNull          ComparisonOperator = "IS NOT NULL"
	OpBetween            ComparisonOperator = "BETWEEN"
)

// LogicalOperator joins the children of a composite Condition.
type LogicalOperator string

const (
	LogicalAND LogicalOperator = "AND"
	LogicalOR  LogicalOperator = "OR"
	LogicalNOT LogicalOperator = "NOT"
)

// Condition represents a condition to filter queries. A leaf compares Field
// with Value; a composite joins Conditions with LogicalOp. NOT negates the
// AND of its children.
type Condition struct {
	Field    string
	Operator ComparisonOperator
	Value    any

	LogicalOp  LogicalOperator
	Conditions []Condition
}

func (c Condition) IsLeaf() bool {
	return len(c.Conditions) == 0
}

func (c Condition) IsComposite() bool {
	return len(c.Conditions) > 0
}

// SortField is one ordering key of a Filter.
type SortField struct {
	Field     string
	Direction SortDirection
}

// Filter groups a set of conditions, ANDed together, with an ordering and
// a page. It is the declarative, name-based form of a Query, as it arrives
// from configuration or request parameters.
type Filter struct {
	Conditions []Condition
	Sort       []SortField
	Limit      *int
	Offset     *int
}

// FilterBuilder provides a fluent interface for building filters.
type FilterBuilder struct {
	conditions []Condition
	sort       []SortField
	limit      *int
	offset     *int
}

func NewFilter() *FilterBuilder {
	return &FilterBuilder{}
}

// Where adds a leaf condition.
func (b *FilterBuilder) Where(field string, op ComparisonOperator, value any) *FilterBuilder {
	b.conditions = append(b.conditions, Condition{Field: field, Operator: op, Value: value})
	return b
}

// Or adds a condition that holds when any of conditions holds.
func (b *FilterBuilder) Or(conditions ...Condition) *FilterBuilder {
	b.conditions = append(b.conditions, Condition{LogicalOp: LogicalOR, Conditions: conditions})
	return b
}

// And adds a condition that holds when all of conditions hold.
func (b *FilterBuilder) And(conditions ...Condition) *FilterBuilder {
	b.conditions = append(b.conditions, Condition{LogicalOp: LogicalAND, Conditions: conditions})
	return b
}

// Not adds the negation of condition.
func (b *FilterBuilder) Not(condition Condition) *FilterBuilder {
	b.conditions = append(b.conditions, Condition{LogicalOp: LogicalNOT, Conditions: []Condition{condition}})
	return b
}

func (b *FilterBuilder) OrderBy(field string, direction SortDirection) *FilterBuilder {
	b.sort = append(b.sort, SortField{Field: field, Direction: direction})
	return b
}

func (b *FilterBuilder) Limit(limit int) *FilterBuilder {
	b.limit = &limit
	return b
}

func (b *FilterBuilder) Offset(offset int) *FilterBuilder {
	b.offset = &offset
	return b
}

func (b *FilterBuilder) Build() *Filter {
	return &Filter{
		Conditions: b.conditions,
		Sort:       b.sort,
		Limit:      b.limit,
		Offset:     b.offset,
	}
}

// CompileFilter turns the conditions of f into a predicate over T. Fields
// are matched by name or column, ignoring case. String values are parsed
// to the field's type, so filters built from text work unchanged. A filter
// without conditions compiles to nil, which matches everything.
func CompileFilter[T any](f *Filter) (*predicate.Predicate[T], error) {
	if f == nil || len(f.Conditions) == 0 {
		return nil, nil
	}
	s, err := predicate.SchemaOf[T]()
	if err != nil {
		return nil, err
	}
	var compileErr error
	p, err := predicate.New[T](func(x *predicate.Param) predicate.Expr {
		parts := make([]predicate.Expr, 0, len(f.Conditions))
		for _, c := range f.Conditions {
			e, err := compileCondition(s, x, c)
			if err != nil {
				compileErr = err
				return predicate.Value(false)
			}
			parts = append(parts, e)
		}
		return predicate.AllOf(parts...)
	})
	if compileErr != nil {
		return nil, compileErr
	}
	return p, err
}

func compileCondition(s *predicate.Schema, x *predicate.Param, c Condition) (predicate.Expr, error) {
	if c.IsComposite() || c.LogicalOp != "" {
		parts := make([]predicate.Expr, 0, len(c.Conditions))
		for _, child := range c.Conditions {
			e, err := compileCondition(s, x, child)
			if err != nil {
				return nil, err
			}
			parts = append(parts, e)
		}
		switch c.LogicalOp {
		case LogicalOR:
			return predicate.AnyOf(parts...), nil
		case LogicalNOT:
			return predicate.Not(predicate.AllOf(parts...)), nil
		case LogicalAND, "":
			return predicate.AllOf(parts...), nil
		}
		return nil, fmt.Errorf("%w: unknown logical operator %q", ErrInvalidQuery, c.LogicalOp)
	}

	fd, ok := s.Lookup(c.Field)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no field %q", predicate.ErrUnknownMember, s.Name, c.Field)
	}
	field := predicate.Field(x, fd.Name)

	switch c.Operator {
	case OpIsNull:
		return predicate.IsNull(field), nil
	case OpIsNotNull:
		return predicate.Not(predicate.IsNull(field)), nil
	case OpLike, OpILike:
		pattern, ok := c.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s needs a string pattern, got %T", ErrInvalidQuery, c.Operator, c.Value)
		}
		if c.Operator == OpILike {
			return predicate.Like(predicate.Lower(field), strings.ToLower(pattern)), nil
		}
		return predicate.Like(field, pattern), nil
	case OpIn, OpNotIn, OpBetween:
		values, err := conditionValues(fd, c.Value)
		if err != nil {
			return nil, err
		}
		switch c.Operator {
		case OpIn:
			return predicate.In(field, values...), nil
		case OpNotIn:
			return predicate.Not(predicate.In(field, values...)), nil
		}
		if len(values) != 2 {
			return nil, fmt.Errorf("%w: BETWEEN needs 2 values, got %d", ErrInvalidQuery, len(values))
		}
		return predicate.AllOf(
			predicate.Ge(field, predicate.Value(values[0])),
			predicate.Le(field, predicate.Value(values[1])),
		), nil
	}

	v, err := coerceValue(fd, c.Value)
	if err != nil {
		return nil, err
	}
	value := predicate.Value(v)
	switch c.Operator {
	case OpEqual:
		return predicate.Eq(field, value), nil
	case OpNotEqual:
		return predicate.Ne(field, value), nil
	case OpGreaterThan:
		return predicate.Gt(field, value), nil
	case OpGreaterThanOrEqual:
		return predicate.Ge(field, value), nil
	case OpLessThan:
		return predicate.Lt(field, value), nil
	case OpLessThanOrEqual:
		return predicate.Le(field, value), nil
	}
	return nil, fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, c.Operator)
}

// conditionValues spreads a slice value, or a comma-separated string, into
// coerced values.
func conditionValues(fd predicate.FieldInfo, v any) ([]any, error) {
	var raw []any
	if s, ok := v.(string); ok {
		for _, part := range strings.Split(s, ",") {
			raw = append(raw, strings.TrimSpace(part))
		}
	} else {
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("%w: %s needs a list, got %T", ErrInvalidQuery, fd.Name, v)
		}
		for i := 0; i < rv.Len(); i++ {
			raw = append(raw, rv.Index(i).Interface())
		}
	}

	values := make([]any, len(raw))
	for i, r := range raw {
		c, err := coerceValue(fd, r)
		if err != nil {
			return nil, err
		}
		values[i] = c
	}
	return values, nil
}

// coerceValue parses string values into the kind of fd. Other values pass
// through unchanged.
func coerceValue(fd predicate.FieldInfo, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	var (
		out any
		err error
	)
	switch fd.Type.Kind {
	case predicate.KindInt:
		out, err = strconv.ParseInt(s, 10, 64)
	case predicate.KindUint:
		out, err = strconv.ParseUint(s, 10, 64)
	case predicate.KindFloat:
		out, err = strconv.ParseFloat(s, 64)
	case predicate.KindBool:
		out, err = strconv.ParseBool(s)
	case predicate.KindTime:
		out, err = time.Parse(time.RFC3339, s)
	default:
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %q is not a %s", ErrInvalidQuery, fd.Name, s, fd.Type.Kind)
	}
	return out, nil
}

// FilterQuery turns f into a Query over T. At most two sort fields are
// allowed: the primary and the secondary ordering key.
func FilterQuery[T any](f *Filter) (Query[T], error) {
	if f == nil {
		return Query[T]{}, nil
	}
	where, err := CompileFilter[T](f)
	if err != nil {
		return Query[T]{}, err
	}

	b := NewQuery[T]()
	if where != nil {
		b.Where(where)
	}
	if len(f.Sort) > 2 {
		return Query[T]{}, fmt.Errorf("%w: at most 2 sort fields, got %d", ErrInvalidQuery, len(f.Sort))
	}
	if len(f.Sort) > 0 {
		s, err := predicate.SchemaOf[T]()
		if err != nil {
			return Query[T]{}, err
		}
		for i, sf := range f.Sort {
			fd, ok := s.Lookup(sf.Field)
			if !ok {
				return Query[T]{}, fmt.Errorf("%w: %s has no field %q", predicate.ErrUnknownMember, s.Name, sf.Field)
			}
			if i == 0 {
				b.OrderByField(fd.Name, sf.Direction)
			} else {
				b.ThenByField(fd.Name, sf.Direction)
			}
		}
	}
	if f.Offset != nil {
		b.Skip(*f.Offset)
	}
	if f.Limit != nil {
		b.Take(*f.Limit)
	}
	return b.Build()
}
