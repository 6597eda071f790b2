package sietch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// gormDialect leaves placeholders and column quoting to gorm, which renders
// them for whatever database the *gorm.DB talks to.
var gormDialect = sqlDialect{
	placeholder: func(int) string { return "?" },
	column: func(name string) (string, []any) {
		return "?", []any{clause.Column{Name: name}}
	},
}

// OpenGorm opens a gorm database with the settings GormConnector relies on:
// translated driver errors so duplicate keys surface as gorm.ErrDuplicatedKey,
// and gorm's own logging silenced in favour of QueryLogger.
func OpenGorm(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
}

// GormConnector stores T through gorm. Column names follow gorm's naming
// strategy; its natural order is ascending primary key.
type GormConnector[T any, ID comparable] struct {
	db        *gorm.DB
	columns   map[string]string
	keyColumn string
	key       keyAccessor[T, ID]
	logger    QueryLogger
}

// NewGormConnector creates a connector over db. db should be opened with
// OpenGorm or an equivalent config.
func NewGormConnector[T any, ID comparable](db *gorm.DB) (*GormConnector[T, ID], error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	key, err := newKeyAccessor[T, ID]()
	if err != nil {
		return nil, err
	}
	gs, err := schema.Parse(new(T), &sync.Map{}, db.NamingStrategy)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", key.schema.Name, err)
	}

	columns := make(map[string]string, len(key.schema.Fields))
	for name := range fieldColumns(key.schema) {
		if f := gs.LookUpField(name); f != nil && f.DBName != "" {
			columns[name] = f.DBName
		}
	}
	keyColumn, ok := columns[key.field.Name]
	if !ok {
		return nil, fmt.Errorf("%w: key %s of %s is not a gorm column", ErrConfiguration, key.field.Name, key.schema.Name)
	}

	return &GormConnector[T, ID]{
		db:        db,
		columns:   columns,
		keyColumn: keyColumn,
		key:       key,
		logger:    NewNoOpLogger(),
	}, nil
}

// SetLogger sets the statement logger.
func (r *GormConnector[T, ID]) SetLogger(logger QueryLogger) {
	r.logger = logger
}

// Capabilities implements CapabilityReporter.
func (r *GormConnector[T, ID]) Capabilities() Capabilities {
	return FullOrdering
}

// EnsureTable creates the table of T when it does not exist yet.
func (r *GormConnector[T, ID]) EnsureTable(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(new(T))
}

func (r *GormConnector[T, ID]) byKey(id ID) clause.Expr {
	return clause.Expr{SQL: "? = ?", Vars: []any{clause.Column{Name: r.keyColumn}, id}}
}

// scope applies the filter, ordering and page of q to a statement over T.
func (r *GormConnector[T, ID]) scope(tx *gorm.DB, q Query[T], ordered bool) (*gorm.DB, string, error) {
	wc := newSQLCompiler(gormDialect, r.columns, 4)
	where, _, err := compileQuery(wc, q, r.keyColumn, false)
	if err != nil {
		return nil, "", err
	}
	tx = tx.Model(new(T))
	if where != "" {
		tx = tx.Where(clause.Expr{SQL: where, Vars: wc.args})
	}
	if !ordered {
		return tx, where, nil
	}

	oc := newSQLCompiler(gormDialect, r.columns, 3)
	_, order, err := compileQuery(oc, Query[T]{OrderBy: q.OrderBy}, r.keyColumn, true)
	if err != nil {
		return nil, "", err
	}
	tx = tx.Order(clause.OrderBy{Expression: clause.Expr{SQL: order, Vars: oc.args, WithoutParentheses: true}})
	if q.Take != nil {
		tx = tx.Limit(*q.Take)
	}
	if q.Skip > 0 {
		tx = tx.Offset(q.Skip)
	}
	return tx, where, nil
}

func (r *GormConnector[T, ID]) Query(ctx context.Context, q Query[T]) (results []T, err error) {
	tx, where, err := r.scope(r.db.WithContext(ctx), q, true)
	if err != nil {
		return nil, err
	}
	defer func(start time.Time) { logQuery(r.logger, ctx, "Query", where, nil, start, err) }(time.Now())

	results = make([]T, 0)
	err = tx.Find(&results).Error
	return results, err
}

func (r *GormConnector[T, ID]) FindByKey(ctx context.Context, id ID) (_ *T, err error) {
	defer func(start time.Time) { logQuery(r.logger, ctx, "FindByKey", r.keyColumn, []any{id}, start, err) }(time.Now())

	var t T
	err = r.db.WithContext(ctx).Where(r.byKey(id)).Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *GormConnector[T, ID]) Insert(ctx context.Context, item *T) (err error) {
	if item == nil {
		return errors.New("item cannot be nil")
	}
	defer func(start time.Time) { logQuery(r.logger, ctx, "Insert", "", nil, start, err) }(time.Now())

	err = r.db.WithContext(ctx).Create(item).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrItemAlreadyExists
	}
	return err
}

func (r *GormConnector[T, ID]) Update(ctx context.Context, item *T) (err error) {
	if item == nil {
		return errors.New("item cannot be nil")
	}
	id := r.key.get(item)
	defer func(start time.Time) { logQuery(r.logger, ctx, "Update", r.keyColumn, []any{id}, start, err) }(time.Now())

	res := r.db.WithContext(ctx).Model(new(T)).Where(r.byKey(id)).Select("*").Updates(item)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoUpdateItem
	}
	return nil
}

func (r *GormConnector[T, ID]) Delete(ctx context.Context, item *T) (err error) {
	if item == nil {
		return errors.New("item cannot be nil")
	}
	id := r.key.get(item)
	defer func(start time.Time) { logQuery(r.logger, ctx, "Delete", r.keyColumn, []any{id}, start, err) }(time.Now())

	res := r.db.WithContext(ctx).Where(r.byKey(id)).Delete(new(T))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoDeleteItem
	}
	return nil
}

func (r *GormConnector[T, ID]) Count(ctx context.Context, q Query[T]) (n int64, err error) {
	db := r.db.WithContext(ctx)
	tx, where, err := r.scope(db, q, q.Paged())
	if err != nil {
		return 0, err
	}
	defer func(start time.Time) { logQuery(r.logger, ctx, "Count", where, nil, start, err) }(time.Now())

	if q.Paged() {
		err = db.Table("(?) AS page", tx.Select(r.keyColumn)).Count(&n).Error
		return n, err
	}
	err = tx.Count(&n).Error
	return n, err
}
