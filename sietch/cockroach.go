package sietch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seb7887/gofw/predicate"
)

// Queryable is the part of pgx shared by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Queryable interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Queryable = (*pgxpool.Pool)(nil)

// pgUniqueViolation is the SQLSTATE of a duplicate key.
const pgUniqueViolation = "23505"

// CockroachDBConnector stores T as rows of a table, one column per stored
// field. Predicates and orderings are compiled to SQL; its natural order
// is ascending primary key.
type CockroachDBConnector[T any, ID comparable] struct {
	db        Queryable
	tableName string
	schema    *predicate.Schema
	fields    []predicate.FieldInfo
	columns   []string
	byField   map[string]string
	key       keyAccessor[T, ID]
	logger    QueryLogger
}

func NewCockroachDBConnPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	return pgxpool.New(ctx, dsn)
}

func sanitizeIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '_') {
			return fmt.Errorf("invalid character in identifier: %c", r)
		}
	}
	return nil
}

func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

// NewCockroachDBConnector creates a connector over tableName. Every field
// of T except nested entities is a column, named by its db tag.
func NewCockroachDBConnector[T any, ID comparable](db Queryable, tableName string) (*CockroachDBConnector[T, ID], error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := sanitizeIdentifier(tableName); err != nil {
		return nil, fmt.Errorf("invalid table name: %w", err)
	}
	key, err := newKeyAccessor[T, ID]()
	if err != nil {
		return nil, err
	}

	fields := storedFields(key.schema)
	columns := make([]string, len(fields))
	for i, f := range fields {
		if err := sanitizeIdentifier(f.Column); err != nil {
			return nil, fmt.Errorf("invalid column name '%s': %w", f.Column, err)
		}
		columns[i] = f.Column
	}

	return &CockroachDBConnector[T, ID]{
		db:        db,
		tableName: tableName,
		schema:    key.schema,
		fields:    fields,
		columns:   columns,
		byField:   fieldColumns(key.schema),
		key:       key,
		logger:    NewNoOpLogger(),
	}, nil
}

// storedFields returns the fields of s that map to a column, key first.
func storedFields(s *predicate.Schema) []predicate.FieldInfo {
	var key predicate.FieldInfo
	rest := make([]predicate.FieldInfo, 0, len(s.Fields))
	for _, f := range s.Fields {
		switch {
		case f.Type.Kind == predicate.KindEntity:
		case f.Key:
			key = f
		default:
			rest = append(rest, f)
		}
	}
	return append([]predicate.FieldInfo{key}, rest...)
}

// SetLogger sets the statement logger.
func (r *CockroachDBConnector[T, ID]) SetLogger(logger QueryLogger) {
	r.logger = logger
}

// Capabilities implements CapabilityReporter.
func (r *CockroachDBConnector[T, ID]) Capabilities() Capabilities {
	return FullOrdering
}

func joinQuotedColumns(columns []string) string {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteIdentifier(col)
	}
	return strings.Join(quoted, ", ")
}

func buildPlaceholders(n int) string {
	placeholders := make([]string, n)
	for i := 0; i < n; i++ {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(placeholders, ", ")
}

func (r *CockroachDBConnector[T, ID]) getValues(item *T) []any {
	v := reflect.ValueOf(item).Elem()
	values := make([]any, len(r.fields))
	for i, f := range r.fields {
		values[i] = v.FieldByIndex(f.Index).Interface()
	}
	return values
}

func (r *CockroachDBConnector[T, ID]) getScanDestinations(item *T) []any {
	v := reflect.ValueOf(item).Elem()
	dests := make([]any, len(r.fields))
	for i, f := range r.fields {
		dests[i] = v.FieldByIndex(f.Index).Addr().Interface()
	}
	return dests
}

func (r *CockroachDBConnector[T, ID]) insertSQL() string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(r.tableName),
		joinQuotedColumns(r.columns),
		buildPlaceholders(len(r.columns)),
	)
}

func (r *CockroachDBConnector[T, ID]) updateSQL() string {
	setClause := make([]string, 0, len(r.columns)-1)
	for i := 1; i < len(r.columns); i++ {
		setClause = append(setClause, fmt.Sprintf("%s = $%d", quoteIdentifier(r.columns[i]), i))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		quoteIdentifier(r.tableName),
		strings.Join(setClause, ", "),
		quoteIdentifier(r.columns[0]),
		len(r.columns),
	)
}

func (r *CockroachDBConnector[T, ID]) selectByKeySQL() string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		joinQuotedColumns(r.columns),
		quoteIdentifier(r.tableName),
		quoteIdentifier(r.columns[0]),
	)
}

func (r *CockroachDBConnector[T, ID]) deleteSQL() string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
		quoteIdentifier(r.tableName),
		quoteIdentifier(r.columns[0]),
	)
}

// selectSQL renders q as a SELECT. Skip and take become OFFSET and LIMIT.
func (r *CockroachDBConnector[T, ID]) selectSQL(q Query[T]) (string, []any, error) {
	c := newSQLCompiler(pgxDialect, r.byField, 4)
	where, order, err := compileQuery(c, q, r.columns[0], true)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", joinQuotedColumns(r.columns), quoteIdentifier(r.tableName))
	if where != "" {
		sb.WriteString(" WHERE " + where)
	}
	sb.WriteString(" ORDER BY " + order)
	if q.Take != nil {
		sb.WriteString(" LIMIT " + c.bind(*q.Take))
	}
	if q.Skip > 0 {
		sb.WriteString(" OFFSET " + c.bind(q.Skip))
	}
	return sb.String(), c.args, nil
}

// countSQL renders the count of q. Paged counts wrap the paged select.
func (r *CockroachDBConnector[T, ID]) countSQL(q Query[T]) (string, []any, error) {
	if q.Paged() {
		inner, args, err := r.selectSQL(q)
		if err != nil {
			return "", nil, err
		}
		return "SELECT COUNT(*) FROM (" + inner + ") AS page", args, nil
	}

	c := newSQLCompiler(pgxDialect, r.byField, 2)
	where, _, err := compileQuery(c, q, r.columns[0], false)
	if err != nil {
		return "", nil, err
	}
	sql := "SELECT COUNT(*) FROM " + quoteIdentifier(r.tableName)
	if where != "" {
		sql += " WHERE " + where
	}
	return sql, c.args, nil
}

func (r *CockroachDBConnector[T, ID]) Query(ctx context.Context, q Query[T]) (results []T, err error) {
	query, args, err := r.selectSQL(q)
	if err != nil {
		return nil, err
	}
	defer func(start time.Time) { logQuery(r.logger, ctx, "Query", query, args, start, err) }(time.Now())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item T
		if err = rows.Scan(r.getScanDestinations(&item)...); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	err = rows.Err()
	return results, err
}

func (r *CockroachDBConnector[T, ID]) FindByKey(ctx context.Context, id ID) (_ *T, err error) {
	query := r.selectByKeySQL()
	defer func(start time.Time) { logQuery(r.logger, ctx, "FindByKey", query, []any{id}, start, err) }(time.Now())

	var t T
	err = r.db.QueryRow(ctx, query, id).Scan(r.getScanDestinations(&t)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *CockroachDBConnector[T, ID]) Insert(ctx context.Context, item *T) (err error) {
	if item == nil {
		return errors.New("item cannot be nil")
	}
	query, values := r.insertSQL(), r.getValues(item)
	defer func(start time.Time) { logQuery(r.logger, ctx, "Insert", query, values, start, err) }(time.Now())

	_, err = r.db.Exec(ctx, query, values...)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrItemAlreadyExists
	}
	return err
}

func (r *CockroachDBConnector[T, ID]) Update(ctx context.Context, item *T) (err error) {
	if item == nil {
		return errors.New("item cannot be nil")
	}
	values := r.getValues(item)
	query, args := r.updateSQL(), append(values[1:], values[0])
	defer func(start time.Time) { logQuery(r.logger, ctx, "Update", query, args, start, err) }(time.Now())

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNoUpdateItem
	}
	return nil
}

func (r *CockroachDBConnector[T, ID]) Delete(ctx context.Context, item *T) (err error) {
	if item == nil {
		return errors.New("item cannot be nil")
	}
	query, id := r.deleteSQL(), r.key.get(item)
	defer func(start time.Time) { logQuery(r.logger, ctx, "Delete", query, []any{id}, start, err) }(time.Now())

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNoDeleteItem
	}
	return nil
}

func (r *CockroachDBConnector[T, ID]) Count(ctx context.Context, q Query[T]) (n int64, err error) {
	query, args, err := r.countSQL(q)
	if err != nil {
		return 0, err
	}
	defer func(start time.Time) { logQuery(r.logger, ctx, "Count", query, args, start, err) }(time.Now())

	err = r.db.QueryRow(ctx, query, args...).Scan(&n)
	return n, err
}

// EnsureTable creates the table when it does not exist yet.
func (r *CockroachDBConnector[T, ID]) EnsureTable(ctx context.Context) error {
	def := InferTableDef(r.schema, r.tableName)
	_, err := r.db.Exec(ctx, GenerateCreateTableSQL(def))
	return err
}
