package sietch

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/seb7887/gofw/predicate"
)

// Copier copies field values between a model and its storage record.
type Copier interface {
	Copy(from, to any) error
}

// ConversionObserver is notified around every structural copy.
type ConversionObserver interface {
	Converting(from, to any)
	Converted(from, to any)
}

// StructuralCopier copies fields that share a name. Fields of identical type
// are assigned and named string or bool types are converted. Numbers are
// converted when the target type widens the source; a narrowing conversion
// is allowed only for values that survive it unchanged, and otherwise fails
// the copy with predicate.ErrTypeMismatch. Everything else on the target is
// left untouched. The copy is shallow: pointers, slices and maps are shared.
type StructuralCopier struct {
	observers []ConversionObserver
	plans     sync.Map // planKey -> []copyStep
}

type planKey struct {
	from, to reflect.Type
}

type copyStep struct {
	name     string
	from, to []int
	convert  bool
	checked  bool
}

// NewStructuralCopier creates a copier notifying observers around each copy.
func NewStructuralCopier(observers ...ConversionObserver) *StructuralCopier {
	return &StructuralCopier{observers: observers}
}

// Copy copies from into to, which must be a non-nil pointer to a struct.
// from may be a struct or a pointer to one.
func (c *StructuralCopier) Copy(from, to any) error {
	dst := reflect.ValueOf(to)
	if dst.Kind() != reflect.Pointer || dst.IsNil() {
		return fmt.Errorf("copy target must be a non-nil pointer, got %T", to)
	}
	src := reflect.ValueOf(from)
	if src.Kind() == reflect.Pointer {
		if src.IsNil() {
			return errors.New("copy source is nil")
		}
		src = src.Elem()
	}
	dst = dst.Elem()

	steps, err := c.plan(src.Type(), dst.Type())
	if err != nil {
		return err
	}

	values := make([]reflect.Value, len(steps))
	for i, s := range steps {
		v := src.FieldByIndex(s.from)
		if s.convert {
			cv := v.Convert(dst.FieldByIndex(s.to).Type())
			if s.checked && !lossless(v, cv) {
				return fmt.Errorf("%w: %s value %v does not fit %s", predicate.ErrTypeMismatch, s.name, v, cv.Type())
			}
			v = cv
		}
		values[i] = v
	}

	for _, o := range c.observers {
		o.Converting(from, to)
	}
	for i, s := range steps {
		dst.FieldByIndex(s.to).Set(values[i])
	}
	for _, o := range c.observers {
		o.Converted(from, to)
	}
	return nil
}

func (c *StructuralCopier) plan(from, to reflect.Type) ([]copyStep, error) {
	key := planKey{from: from, to: to}
	if steps, ok := c.plans.Load(key); ok {
		return steps.([]copyStep), nil
	}

	fs, err := predicate.SchemaFor(from)
	if err != nil {
		return nil, err
	}
	ts, err := predicate.SchemaFor(to)
	if err != nil {
		return nil, err
	}

	var steps []copyStep
	for _, tf := range ts.Fields {
		ff, ok := fs.Field(tf.Name)
		if !ok {
			continue
		}
		ft := from.FieldByIndex(ff.Index).Type
		tt := to.FieldByIndex(tf.Index).Type
		step := copyStep{name: tf.Name, from: ff.Index, to: tf.Index}
		switch {
		case ft == tt:
		case widens(ft, tt):
			step.convert = true
		case isNumber(ft.Kind()) && isNumber(tt.Kind()):
			step.convert, step.checked = true, true
		default:
			continue
		}
		steps = append(steps, step)
	}
	c.plans.Store(key, steps)
	return steps, nil
}

func isInt(k reflect.Kind) bool   { return k >= reflect.Int && k <= reflect.Int64 }
func isUint(k reflect.Kind) bool  { return k >= reflect.Uint && k <= reflect.Uintptr }
func isFloat(k reflect.Kind) bool { return k == reflect.Float32 || k == reflect.Float64 }

func isNumber(k reflect.Kind) bool { return isInt(k) || isUint(k) || isFloat(k) }

// widens reports whether every value of from converts to to unchanged, using
// the same rules the predicate rewriter applies to member types.
func widens(from, to reflect.Type) bool {
	fk, tk := from.Kind(), to.Kind()
	switch {
	case isInt(fk) && isInt(tk), isUint(fk) && isUint(tk), isFloat(fk) && isFloat(tk):
		return from.Bits() <= to.Bits()
	case isUint(fk) && isInt(tk):
		return from.Bits() < to.Bits()
	case (isInt(fk) || isUint(fk)) && isFloat(tk):
		return true
	case fk == reflect.String && tk == reflect.String:
		return true
	case fk == reflect.Bool && tk == reflect.Bool:
		return true
	}
	return false
}

// lossless reports whether cv, the conversion of v, holds the same number.
func lossless(v, cv reflect.Value) bool {
	switch {
	case isInt(v.Kind()) && isUint(cv.Kind()) && v.Int() < 0:
		return false
	case isUint(v.Kind()) && isInt(cv.Kind()) && cv.Int() < 0:
		return false
	}
	return cv.Convert(v.Type()).Equal(v)
}

// checkStorageFields fails when a numeric field of model is stored in a
// member of storage that cannot hold every value the field takes.
func checkStorageFields(model, storage *predicate.Schema) error {
	for _, mf := range model.Fields {
		sf, ok := storage.Field(mf.Name)
		if !ok {
			continue
		}
		ft := model.GoType.FieldByIndex(mf.Index).Type
		tt := storage.GoType.FieldByIndex(sf.Index).Type
		if ft == tt || !isNumber(ft.Kind()) || !isNumber(tt.Kind()) || widens(ft, tt) {
			continue
		}
		return &predicate.ConfigurationError{
			Entity: model.Name,
			Reason: fmt.Sprintf("%s is %s but stored as %s on %s", mf.Name, ft, tt, storage.Name),
		}
	}
	return nil
}

// normalizeText sets every nil optional string field of item to "".
func normalizeText(s *predicate.Schema, item any) {
	v := reflect.ValueOf(item).Elem()
	for _, f := range s.Fields {
		if f.Type.Kind != predicate.KindString || !f.Type.Nullable {
			continue
		}
		fv := v.FieldByIndex(f.Index)
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}
	}
}
