package sietch

import (
	"fmt"
	"strings"

	"github.com/seb7887/gofw/predicate"
)

// sqlDialect renders the parts of a statement that differ between drivers.
type sqlDialect struct {
	// placeholder renders the n-th (1-based) bind parameter
	placeholder func(n int) string

	// column renders a reference to a column; it may append bind args
	column func(name string) (string, []any)
}

var pgxDialect = sqlDialect{
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	column:      func(name string) (string, []any) { return quoteIdentifier(name), nil },
}

// sqlCompiler turns a predicate or key selector over a single entity
// parameter into a parameterized SQL expression. Only members read
// directly off the parameter map to columns; nested entities have no
// column and fail with ErrUnsupportedOperation.
//
// Compiled conditions are two-valued and agree with in-memory evaluation:
// a comparison or match involving NULL is false, NULL equals only NULL, and
// NOT of such a condition is true.
type sqlCompiler struct {
	dialect sqlDialect
	columns map[string]string // field name -> column
	args    []any
}

func newSQLCompiler(d sqlDialect, columns map[string]string, argsHint int) *sqlCompiler {
	return &sqlCompiler{dialect: d, columns: columns, args: make([]any, 0, argsHint)}
}

func (c *sqlCompiler) bind(v any) string {
	c.args = append(c.args, v)
	return c.dialect.placeholder(len(c.args))
}

// where compiles the body of l.
func (c *sqlCompiler) where(l *predicate.Lambda) (string, error) {
	return c.expr(l.Body, l.Params[0])
}

func (c *sqlCompiler) expr(e predicate.Expr, param *predicate.Param) (string, error) {
	switch n := e.(type) {
	case *predicate.Member:
		if n.X != predicate.Expr(param) {
			return "", fmt.Errorf("%w: nested member %s has no column", ErrUnsupportedOperation, n)
		}
		col, ok := c.columns[n.Name]
		if !ok {
			return "", fmt.Errorf("%w: field %s is not stored", ErrUnsupportedOperation, n.Name)
		}
		sql, args := c.dialect.column(col)
		c.args = append(c.args, args...)
		return sql, nil

	case *predicate.Const:
		if n.Value == nil {
			return "NULL", nil
		}
		return c.bind(n.Value), nil

	case *predicate.Unary:
		x, err := c.expr(n.X, param)
		if err != nil {
			return "", err
		}
		if mayBeNull(n.X) {
			return "NOT COALESCE(" + x + ", FALSE)", nil
		}
		return "NOT (" + x + ")", nil

	case *predicate.Binary:
		return c.binary(n, param)

	case *predicate.Call:
		return c.call(n, param)
	}
	return "", fmt.Errorf("%w: %s cannot be translated to SQL", ErrUnsupportedOperation, e)
}

var sqlOperators = map[predicate.BinaryOp]string{
	predicate.OpEq:  "=",
	predicate.OpNe:  "<>",
	predicate.OpLt:  "<",
	predicate.OpLe:  "<=",
	predicate.OpGt:  ">",
	predicate.OpGe:  ">=",
	predicate.OpAnd: "AND",
	predicate.OpOr:  "OR",
}

func isNullConst(e predicate.Expr) bool {
	c, ok := e.(*predicate.Const)
	return ok && c.Value == nil
}

// mayBeNull reports whether e can evaluate to SQL NULL.
func mayBeNull(e predicate.Expr) bool {
	switch n := e.(type) {
	case *predicate.Member:
		return n.Type().Nullable
	case *predicate.Const:
		return n.Value == nil
	case *predicate.Call:
		if n.Fn == predicate.FuncLower || n.Fn == predicate.FuncUpper {
			return mayBeNull(n.Args[0])
		}
	}
	return false
}

func notNull(sql string) string {
	return "COALESCE(" + sql + ", FALSE)"
}

func (c *sqlCompiler) binary(b *predicate.Binary, param *predicate.Param) (string, error) {
	// Comparisons with nil follow Go semantics, not SQL's three-valued logic.
	if b.Op == predicate.OpEq || b.Op == predicate.OpNe {
		other := predicate.Expr(nil)
		switch {
		case isNullConst(b.R):
			other = b.L
		case isNullConst(b.L):
			other = b.R
		}
		if other != nil {
			x, err := c.expr(other, param)
			if err != nil {
				return "", err
			}
			if b.Op == predicate.OpEq {
				return x + " IS NULL", nil
			}
			return x + " IS NOT NULL", nil
		}
	}

	l, err := c.expr(b.L, param)
	if err != nil {
		return "", err
	}
	r, err := c.expr(b.R, param)
	if err != nil {
		return "", err
	}
	if b.Op == predicate.OpAnd || b.Op == predicate.OpOr || (!mayBeNull(b.L) && !mayBeNull(b.R)) {
		return "(" + l + " " + sqlOperators[b.Op] + " " + r + ")", nil
	}
	switch b.Op {
	case predicate.OpEq:
		return "(" + l + " IS NOT DISTINCT FROM " + r + ")", nil
	case predicate.OpNe:
		return "(" + l + " IS DISTINCT FROM " + r + ")", nil
	}
	return notNull("(" + l + " " + sqlOperators[b.Op] + " " + r + ")"), nil
}

func (c *sqlCompiler) call(call *predicate.Call, param *predicate.Param) (string, error) {
	recv, err := c.expr(call.Args[0], param)
	if err != nil {
		return "", err
	}

	switch call.Fn {
	case predicate.FuncIsNull:
		return recv + " IS NULL", nil
	case predicate.FuncLower:
		return "LOWER(" + recv + ")", nil
	case predicate.FuncUpper:
		return "UPPER(" + recv + ")", nil
	case predicate.FuncIn:
		if len(call.Args) == 1 {
			return "(1 = 0)", nil
		}
		list := make([]string, 0, len(call.Args)-1)
		nullable := mayBeNull(call.Args[0])
		for _, a := range call.Args[1:] {
			v, err := c.expr(a, param)
			if err != nil {
				return "", err
			}
			list = append(list, v)
			nullable = nullable || mayBeNull(a)
		}
		in := recv + " IN (" + strings.Join(list, ", ") + ")"
		if nullable {
			return notNull(in), nil
		}
		return in, nil
	}

	lit, ok := call.Args[1].(*predicate.Const)
	if !ok {
		return "", fmt.Errorf("%w: %s needs a constant argument", ErrUnsupportedOperation, call.Fn)
	}
	s, ok := lit.Value.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s needs a string argument", ErrUnsupportedOperation, call.Fn)
	}

	var pattern string
	switch call.Fn {
	case predicate.FuncContains:
		pattern = "%" + escapeLike(s) + "%"
	case predicate.FuncHasPrefix:
		pattern = escapeLike(s) + "%"
	case predicate.FuncHasSuffix:
		pattern = "%" + escapeLike(s)
	case predicate.FuncLike:
		pattern = s
	default:
		return "", fmt.Errorf("%w: function %s", ErrUnsupportedOperation, call.Fn)
	}
	like := recv + " LIKE " + c.bind(pattern) + ` ESCAPE '\'`
	if mayBeNull(call.Args[0]) {
		return notNull(like), nil
	}
	return like, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// orderBy renders the ORDER BY list for o followed by the key column, which
// breaks ties in natural order.
func (c *sqlCompiler) orderBy(by, then *predicate.Lambda, desc, thenDesc bool, keyColumn string) (string, error) {
	var parts []string
	add := func(l *predicate.Lambda, desc bool) error {
		sql, err := c.expr(l.Body, l.Params[0])
		if err != nil {
			return err
		}
		if desc {
			sql += " DESC"
		} else {
			sql += " ASC"
		}
		// absent values order before present ones, as in memory
		if mayBeNull(l.Body) {
			if desc {
				sql += " NULLS LAST"
			} else {
				sql += " NULLS FIRST"
			}
		}
		parts = append(parts, sql)
		return nil
	}
	if by != nil {
		if err := add(by, desc); err != nil {
			return "", err
		}
		if then != nil {
			if err := add(then, thenDesc); err != nil {
				return "", err
			}
		}
	}
	key, args := c.dialect.column(keyColumn)
	c.args = append(c.args, args...)
	parts = append(parts, key+" ASC")
	return strings.Join(parts, ", "), nil
}

// compileQuery renders the WHERE and ORDER BY clauses of q. Either may be
// empty. Bind arguments accumulate on c in clause order.
func compileQuery[T any](c *sqlCompiler, q Query[T], keyColumn string, ordered bool) (where, order string, err error) {
	if q.Where != nil {
		if where, err = c.where(q.Where.Lambda()); err != nil {
			return "", "", err
		}
	}
	if !ordered {
		return where, "", nil
	}
	var by, then *predicate.Lambda
	var desc, thenDesc bool
	if o := q.OrderBy; o != nil && o.By != nil {
		by, desc = o.By.Lambda(), o.Desc
		if o.ThenBy != nil {
			then, thenDesc = o.ThenBy.Lambda(), o.ThenDesc
		}
	}
	order, err = c.orderBy(by, then, desc, thenDesc, keyColumn)
	return where, order, err
}

// fieldColumns maps every stored field of s to its column.
func fieldColumns(s *predicate.Schema) map[string]string {
	cols := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		if f.Type.Kind == predicate.KindEntity {
			continue
		}
		cols[f.Name] = f.Column
	}
	return cols
}
