package predicate

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
)

// evaluate computes e under env. Entity values travel as reflect.Value,
// scalars as normalized Go values, absent optional values as nil.
func evaluate(e Expr, env map[*Param]any) (any, error) {
	switch n := e.(type) {
	case *Param:
		v, ok := env[n]
		if !ok {
			return nil, fmt.Errorf("%w: unbound parameter %s", ErrEvaluation, n.Name)
		}
		return v, nil

	case *Const:
		return normalize(n.Value), nil

	case *Member:
		return evalMember(n, env)

	case *Unary:
		v, err := evaluate(n.X, env)
		if err != nil {
			return nil, err
		}
		b, err := asBool(v, n.X)
		if err != nil {
			return nil, err
		}
		return !b, nil

	case *Binary:
		return evalBinary(n, env)

	case *Call:
		return evalCall(n, env)
	}
	return nil, fmt.Errorf("%w: unknown expression node %T", ErrEvaluation, e)
}

func evalMember(m *Member, env map[*Param]any) (any, error) {
	if !m.resolved {
		return nil, fmt.Errorf("%w: member %s was never resolved", ErrEvaluation, m)
	}
	recv, err := evaluate(m.X, env)
	if err != nil {
		return nil, err
	}
	rv, ok := recv.(reflect.Value)
	if !ok {
		if recv == nil {
			return nil, fmt.Errorf("%w: nil dereference reading %s", ErrEvaluation, m)
		}
		return nil, fmt.Errorf("%w: %s is not an entity", ErrEvaluation, m.X)
	}
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, fmt.Errorf("%w: nil dereference reading %s", ErrEvaluation, m)
		}
		rv = rv.Elem()
	}
	recvType := m.X.Type()
	if recvType.Entity == nil || rv.Type() != recvType.Entity.GoType {
		return nil, fmt.Errorf("%w: %s evaluated against %s", ErrEvaluation, m, rv.Type())
	}

	fv := rv.FieldByIndex(m.field.Index)
	if m.field.Type.Kind == KindEntity {
		if fv.Kind() == reflect.Pointer && fv.IsNil() {
			return nil, nil
		}
		return fv, nil
	}
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return nil, nil
		}
		fv = fv.Elem()
	}
	return normalize(fv.Interface()), nil
}

func evalBinary(b *Binary, env map[*Param]any) (any, error) {
	l, err := evaluate(b.L, env)
	if err != nil {
		return nil, err
	}

	if b.Op.logical() {
		lb, err := asBool(l, b.L)
		if err != nil {
			return nil, err
		}
		if b.Op == OpAnd && !lb {
			return false, nil
		}
		if b.Op == OpOr && lb {
			return true, nil
		}
		r, err := evaluate(b.R, env)
		if err != nil {
			return nil, err
		}
		return asBool(r, b.R)
	}

	r, err := evaluate(b.R, env)
	if err != nil {
		return nil, err
	}
	switch b.Op {
	case OpEq:
		return equalValues(l, r), nil
	case OpNe:
		return !equalValues(l, r), nil
	}

	// Ordered comparisons against an absent value never hold.
	if l == nil || r == nil {
		return false, nil
	}
	c, err := compareValues(l, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b, err)
	}
	switch b.Op {
	case OpLt:
		return c < 0, nil
	case OpLe:
		return c <= 0, nil
	case OpGt:
		return c > 0, nil
	case OpGe:
		return c >= 0, nil
	}
	return nil, fmt.Errorf("%w: unknown operator %d", ErrEvaluation, b.Op)
}

func evalCall(c *Call, env map[*Param]any) (any, error) {
	args := make([]any, len(c.Args))
	for i, a := range c.Args {
		v, err := evaluate(a, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch c.Fn {
	case FuncIsNull:
		return args[0] == nil, nil
	case FuncIn:
		if args[0] == nil {
			return false, nil
		}
		for _, v := range args[1:] {
			if equalValues(args[0], v) {
				return true, nil
			}
		}
		return false, nil
	}

	if args[0] == nil {
		if c.Fn == FuncLower || c.Fn == FuncUpper {
			return nil, nil
		}
		return false, nil
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s expects a string, got %T", ErrEvaluation, c.Fn, args[0])
	}
	switch c.Fn {
	case FuncLower:
		return strings.ToLower(s), nil
	case FuncUpper:
		return strings.ToUpper(s), nil
	}

	arg, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s expects a string argument, got %T", ErrEvaluation, c.Fn, args[1])
	}
	switch c.Fn {
	case FuncContains:
		return strings.Contains(s, arg), nil
	case FuncHasPrefix:
		return strings.HasPrefix(s, arg), nil
	case FuncHasSuffix:
		return strings.HasSuffix(s, arg), nil
	case FuncLike:
		re, err := likePattern(arg)
		if err != nil {
			return nil, err
		}
		return re.MatchString(s), nil
	}
	return nil, fmt.Errorf("%w: unknown function %d", ErrEvaluation, c.Fn)
}

func asBool(v any, from Expr) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case nil:
		return false, nil
	}
	return false, fmt.Errorf("%w: %s is %T, not bool", ErrEvaluation, from, v)
}

var likeCache sync.Map // pattern -> *regexp.Regexp

// likePattern compiles a SQL LIKE pattern to an anchored regexp.
func likePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := likeCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	var b strings.Builder
	b.WriteString(`(?s)^`)
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			b.WriteString(`.*`)
		case r == '_':
			b.WriteString(`.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`$`)
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("%w: bad LIKE pattern %q: %v", ErrEvaluation, pattern, err)
	}
	likeCache.Store(pattern, re)
	return re, nil
}
