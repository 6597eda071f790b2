package sietch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	bopts "github.com/dgraph-io/badger/v4/options"
)

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

// OpenBadger opens a BadgerDB database at dir, creating the directory if
// needed. An empty dir opens an in-memory database.
func OpenBadger(dir string, logger *slog.Logger) (*badger.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &badgerLoggerAdapter{logger: logger.With("component", "badger")}
	opts.Compression = bopts.None

	return badger.Open(opts)
}

// BadgerConnector stores each record of T as JSON under "<prefix>:<key>".
// Its natural order is the byte order of the rendered keys. Queries
// iterate the prefix and are applied in process.
type BadgerConnector[T any, ID comparable] struct {
	db      *badger.DB
	prefix  string
	keyFunc func(any) string
	key     keyAccessor[T, ID]
	logger  QueryLogger
}

// NewBadgerConnector creates a connector over db. An empty prefix uses the
// type name.
func NewBadgerConnector[T any, ID comparable](db *badger.DB, prefix string) (*BadgerConnector[T, ID], error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	key, err := newKeyAccessor[T, ID]()
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = key.schema.Name
	}
	return &BadgerConnector[T, ID]{
		db:      db,
		prefix:  prefix + ":",
		keyFunc: func(id any) string { return fmt.Sprint(id) },
		key:     key,
		logger:  NewNoOpLogger(),
	}, nil
}

// SetLogger sets the statement logger.
func (r *BadgerConnector[T, ID]) SetLogger(logger QueryLogger) {
	r.logger = logger
}

// Capabilities implements CapabilityReporter.
func (r *BadgerConnector[T, ID]) Capabilities() Capabilities {
	return FullOrdering
}

func (r *BadgerConnector[T, ID]) recordKey(id ID) []byte {
	return []byte(r.prefix + r.keyFunc(id))
}

func (r *BadgerConnector[T, ID]) Query(ctx context.Context, q Query[T]) ([]T, error) {
	items, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	return ApplyQuery(items, q)
}

func (r *BadgerConnector[T, ID]) Count(ctx context.Context, q Query[T]) (int64, error) {
	items, err := r.scan(ctx)
	if err != nil {
		return 0, err
	}
	q.OrderBy = nil
	items, err = ApplyQuery(items, q)
	return int64(len(items)), err
}

func (r *BadgerConnector[T, ID]) scan(ctx context.Context) (items []T, err error) {
	defer func(start time.Time) { logQuery(r.logger, ctx, "Scan", r.prefix, nil, start, err) }(time.Now())

	items = make([]T, 0)
	err = r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(r.prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var item T
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			}); err != nil {
				return fmt.Errorf("decoding %s: %w", it.Item().Key(), err)
			}
			items = append(items, item)
		}
		return nil
	})
	return items, err
}

func (r *BadgerConnector[T, ID]) FindByKey(ctx context.Context, id ID) (_ *T, err error) {
	key := r.recordKey(id)
	defer func(start time.Time) { logQuery(r.logger, ctx, "Get", string(key), nil, start, err) }(time.Now())

	var item T
	err = r.db.View(func(txn *badger.Txn) error {
		it, err := txn.Get(key)
		if err != nil {
			return err
		}
		return it.Value(func(val []byte) error {
			return json.Unmarshal(val, &item)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// write stores item when its key's presence matches mustExist.
func (r *BadgerConnector[T, ID]) write(ctx context.Context, operation string, item *T, mustExist bool, conflict error) (err error) {
	if item == nil {
		return errors.New("item cannot be nil")
	}
	key := r.recordKey(r.key.get(item))
	defer func(start time.Time) { logQuery(r.logger, ctx, operation, string(key), nil, start, err) }(time.Now())

	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			if mustExist {
				return conflict
			}
		case err != nil:
			return err
		case !mustExist:
			return conflict
		}
		return txn.Set(key, data)
	})
}

func (r *BadgerConnector[T, ID]) Insert(ctx context.Context, item *T) error {
	return r.write(ctx, "Insert", item, false, ErrItemAlreadyExists)
}

func (r *BadgerConnector[T, ID]) Update(ctx context.Context, item *T) error {
	return r.write(ctx, "Update", item, true, ErrNoUpdateItem)
}

func (r *BadgerConnector[T, ID]) Delete(ctx context.Context, item *T) (err error) {
	if item == nil {
		return errors.New("item cannot be nil")
	}
	key := r.recordKey(r.key.get(item))
	defer func(start time.Time) { logQuery(r.logger, ctx, "Delete", string(key), nil, start, err) }(time.Now())

	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNoDeleteItem
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}
