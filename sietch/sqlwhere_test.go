package sietch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"

	"github.com/seb7887/gofw/predicate"
	"github.com/seb7887/gofw/sietch/internal/testutils"
)

type widgetPredicate = func(x *predicate.Param) predicate.Expr

func compileWhere(t *testing.T, d sqlDialect, build widgetPredicate) (string, []any, error) {
	t.Helper()
	p, err := predicate.New[testutils.Widget](build)
	require.NoError(t, err)
	s, err := predicate.SchemaOf[testutils.Widget]()
	require.NoError(t, err)

	c := newSQLCompiler(d, fieldColumns(s), 0)
	sql, err := c.where(p.Lambda())
	return sql, c.args, err
}

func TestSQLCompiler_Where(t *testing.T) {
	name := func(x *predicate.Param) predicate.Expr { return predicate.Field(x, "Name") }
	price := func(x *predicate.Param) predicate.Expr { return predicate.Field(x, "Price") }

	tests := []struct {
		name  string
		build widgetPredicate
		sql   string
		args  []any
	}{
		{
			name: "comparison",
			build: func(x *predicate.Param) predicate.Expr {
				return predicate.Gt(price(x), predicate.Value(10))
			},
			sql:  `("price" > $1)`,
			args: []any{10},
		},
		{
			name: "and or",
			build: func(x *predicate.Param) predicate.Expr {
				return predicate.AnyOf(
					predicate.AllOf(
						predicate.Ge(price(x), predicate.Value(5)),
						predicate.Le(price(x), predicate.Value(20)),
					),
					predicate.Eq(name(x), predicate.Value("D")),
				)
			},
			sql:  `((("price" >= $1) AND ("price" <= $2)) OR ("name" = $3))`,
			args: []any{5, 20, "D"},
		},
		{
			name: "contains escapes wildcards",
			build: func(x *predicate.Param) predicate.Expr {
				return predicate.Contains(name(x), "50%_off")
			},
			sql:  `"name" LIKE $1 ESCAPE '\'`,
			args: []any{`%50\%\_off%`},
		},
		{
			name: "prefix of lowered",
			build: func(x *predicate.Param) predicate.Expr {
				return predicate.HasPrefix(predicate.Lower(name(x)), "ab")
			},
			sql:  `LOWER("name") LIKE $1 ESCAPE '\'`,
			args: []any{"ab%"},
		},
		{
			name: "suffix",
			build: func(x *predicate.Param) predicate.Expr {
				return predicate.HasSuffix(predicate.Upper(name(x)), "Z")
			},
			sql:  `UPPER("name") LIKE $1 ESCAPE '\'`,
			args: []any{"%Z"},
		},
		{
			name: "like passes the pattern through",
			build: func(x *predicate.Param) predicate.Expr {
				return predicate.Like(name(x), "A_%")
			},
			sql:  `"name" LIKE $1 ESCAPE '\'`,
			args: []any{"A_%"},
		},
		{
			name: "null comparisons",
			build: func(x *predicate.Param) predicate.Expr {
				return predicate.AllOf(
					predicate.Ne(predicate.Field(x, "Label"), predicate.Value(nil)),
					predicate.Not(predicate.IsNull(predicate.Field(x, "DeletedAt"))),
				)
			},
			sql:  `("label" IS NOT NULL AND NOT ("deleted_at" IS NULL))`,
			args: []any{},
		},
		{
			name: "nullable equality",
			build: func(x *predicate.Param) predicate.Expr {
				return predicate.AnyOf(
					predicate.Eq(predicate.Field(x, "Label"), predicate.Value("x")),
					predicate.Ne(predicate.Field(x, "Label"), predicate.Value("y")),
				)
			},
			sql:  `(("label" IS NOT DISTINCT FROM $1) OR ("label" IS DISTINCT FROM $2))`,
			args: []any{"x", "y"},
		},
		{
			name: "negated nullable ordering",
			build: func(x *predicate.Param) predicate.Expr {
				return predicate.Not(predicate.Gt(predicate.Field(x, "Label"), predicate.Value("m")))
			},
			sql:  `NOT (COALESCE(("label" > $1), FALSE))`,
			args: []any{"m"},
		},
		{
			name: "nullable match",
			build: func(x *predicate.Param) predicate.Expr {
				return predicate.Contains(predicate.Lower(predicate.Field(x, "Label")), "a")
			},
			sql:  `COALESCE(LOWER("label") LIKE $1 ESCAPE '\', FALSE)`,
			args: []any{"%a%"},
		},
		{
			name: "nullable in list",
			build: func(x *predicate.Param) predicate.Expr {
				return predicate.In(predicate.Field(x, "Label"), "a")
			},
			sql:  `COALESCE("label" IN ($1), FALSE)`,
			args: []any{"a"},
		},
		{
			name: "in list",
			build: func(x *predicate.Param) predicate.Expr {
				return predicate.In(name(x), "A", "B")
			},
			sql:  `"name" IN ($1, $2)`,
			args: []any{"A", "B"},
		},
		{
			name: "empty in list",
			build: func(x *predicate.Param) predicate.Expr {
				return predicate.In(name(x))
			},
			sql:  `(1 = 0)`,
			args: []any{},
		},
		{
			name: "constant",
			build: func(x *predicate.Param) predicate.Expr {
				return predicate.Value(true)
			},
			sql:  `$1`,
			args: []any{true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := compileWhere(t, pgxDialect, tt.build)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestSQLCompiler_GormDialect(t *testing.T) {
	sql, args, err := compileWhere(t, gormDialect, func(x *predicate.Param) predicate.Expr {
		return predicate.Gt(predicate.Field(x, "Price"), predicate.Value(10))
	})
	require.NoError(t, err)
	assert.Equal(t, `(? > ?)`, sql)
	assert.Equal(t, []any{clause.Column{Name: "price"}, 10}, args)
}

func TestSQLCompiler_Unsupported(t *testing.T) {
	type Maker struct {
		ID   string
		Name string
	}
	type Gizmo struct {
		ID    string
		Maker *Maker
	}

	p, err := predicate.New[Gizmo](func(x *predicate.Param) predicate.Expr {
		return predicate.Eq(predicate.Field(predicate.Field(x, "Maker"), "Name"), predicate.Value("acme"))
	})
	require.NoError(t, err)
	s, err := predicate.SchemaOf[Gizmo]()
	require.NoError(t, err)

	_, err = newSQLCompiler(pgxDialect, fieldColumns(s), 0).where(p.Lambda())
	assert.True(t, errors.Is(err, ErrUnsupportedOperation), "got %v", err)
}

func TestSQLCompiler_OrderBy(t *testing.T) {
	q := NewQuery[testutils.Widget]().
		OrderByField("Price", SortDesc).
		ThenByField("Name", SortAsc).
		MustBuild()
	s, err := predicate.SchemaOf[testutils.Widget]()
	require.NoError(t, err)

	c := newSQLCompiler(pgxDialect, fieldColumns(s), 0)
	where, order, err := compileQuery(c, q, "id", true)
	require.NoError(t, err)
	assert.Empty(t, where)
	assert.Equal(t, `"price" DESC, "name" ASC, "id" ASC`, order)

	c = newSQLCompiler(pgxDialect, fieldColumns(s), 0)
	_, order, err = compileQuery(c, NewQuery[testutils.Widget]().OrderByField("Label", SortAsc).ThenByField("Label", SortDesc).MustBuild(), "id", true)
	require.NoError(t, err)
	assert.Equal(t, `"label" ASC NULLS FIRST, "label" DESC NULLS LAST, "id" ASC`, order)

	c = newSQLCompiler(pgxDialect, fieldColumns(s), 0)
	_, order, err = compileQuery(c, Query[testutils.Widget]{}, "id", true)
	require.NoError(t, err)
	assert.Equal(t, `"id" ASC`, order)
}
