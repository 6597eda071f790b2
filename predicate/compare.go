package predicate

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// normalize folds named and sized scalar types onto int64, uint64,
// float64, string and bool so values read from differently-declared fields
// compare equal.
func normalize(v any) any {
	switch v.(type) {
	case nil, int64, uint64, float64, string, bool, time.Time:
		return v
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	}
	return v
}

func toFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}

// compareValues orders two normalized values. Numbers compare across
// signedness and width; strings compare bytewise.
func compareValues(a, b any) (int, error) {
	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			return cmp3(x < y, x > y), nil
		}
	case uint64:
		if y, ok := b.(uint64); ok {
			return cmp3(x < y, x > y), nil
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	case bool:
		if y, ok := b.(bool); ok {
			return cmp3(!x && y, x && !y), nil
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), nil
		}
	}

	af, okA := toFloat64(a)
	bf, okB := toFloat64(b)
	if okA && okB {
		return cmp3(af < bf, af > bf), nil
	}
	return 0, fmt.Errorf("%w: cannot order %T against %T", ErrEvaluation, a, b)
}

// compareForOrder is compareValues with nil sorting before everything else.
func compareForOrder(a, b any) (int, error) {
	switch {
	case a == nil && b == nil:
		return 0, nil
	case a == nil:
		return -1, nil
	case b == nil:
		return 1, nil
	}
	return compareValues(a, b)
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if c, err := compareValues(a, b); err == nil {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}
