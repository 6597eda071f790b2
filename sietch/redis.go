package sietch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisOptions configures a RedisConnector.
type RedisOptions struct {
	// Prefix namespaces the keys of the store. Default: lowercase type name
	Prefix string

	// TTL expires records after the given duration. Zero keeps them forever
	TTL time.Duration

	// KeyFunc renders a key. Default: fmt.Sprint
	KeyFunc func(any) string

	Logger QueryLogger
}

// RedisConnector stores each record of T as a JSON string under
// "<prefix>:<key>" and keeps a sorted set "<prefix>:index" of keys scored by
// insertion sequence. Its natural order is insertion order. Queries load
// every record and are applied in process.
type RedisConnector[T any, ID comparable] struct {
	client  redis.Cmdable
	prefix  string
	ttl     time.Duration
	keyFunc func(any) string
	key     keyAccessor[T, ID]
	logger  QueryLogger
}

func NewRedisConnector[T any, ID comparable](client redis.Cmdable, opts RedisOptions) (*RedisConnector[T, ID], error) {
	if client == nil {
		return nil, errors.New("client cannot be nil")
	}
	key, err := newKeyAccessor[T, ID]()
	if err != nil {
		return nil, err
	}
	if opts.Prefix == "" {
		opts.Prefix = strings.ToLower(key.schema.Name)
	}
	if opts.KeyFunc == nil {
		opts.KeyFunc = func(id any) string { return fmt.Sprint(id) }
	}
	if opts.Logger == nil {
		opts.Logger = NewNoOpLogger()
	}
	return &RedisConnector[T, ID]{
		client:  client,
		prefix:  opts.Prefix,
		ttl:     opts.TTL,
		keyFunc: opts.KeyFunc,
		key:     key,
		logger:  opts.Logger,
	}, nil
}

// Capabilities implements CapabilityReporter.
func (r *RedisConnector[T, ID]) Capabilities() Capabilities {
	return FullOrdering
}

func (r *RedisConnector[T, ID]) indexKey() string { return r.prefix + ":index" }
func (r *RedisConnector[T, ID]) seqKey() string   { return r.prefix + ":seq" }

func (r *RedisConnector[T, ID]) recordKey(member string) string {
	return r.prefix + ":" + member
}

func (r *RedisConnector[T, ID]) Query(ctx context.Context, q Query[T]) ([]T, error) {
	items, err := r.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	return ApplyQuery(items, q)
}

func (r *RedisConnector[T, ID]) Count(ctx context.Context, q Query[T]) (int64, error) {
	items, err := r.loadAll(ctx)
	if err != nil {
		return 0, err
	}
	q.OrderBy = nil
	items, err = ApplyQuery(items, q)
	return int64(len(items)), err
}

// loadAll reads every record in insertion order. Index entries whose record
// expired are dropped from the index.
func (r *RedisConnector[T, ID]) loadAll(ctx context.Context) (items []T, err error) {
	defer func(start time.Time) { logQuery(r.logger, ctx, "Scan", r.indexKey(), nil, start, err) }(time.Now())

	members, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []T{}, nil
	}
	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = r.recordKey(m)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	items = make([]T, 0, len(values))
	var stale []any
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			stale = append(stale, members[i])
			continue
		}
		var item T
		if err := json.Unmarshal([]byte(s), &item); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", keys[i], err)
		}
		items = append(items, item)
	}
	if len(stale) > 0 {
		if err := r.client.ZRem(ctx, r.indexKey(), stale...).Err(); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (r *RedisConnector[T, ID]) FindByKey(ctx context.Context, id ID) (_ *T, err error) {
	key := r.recordKey(r.keyFunc(id))
	defer func(start time.Time) { logQuery(r.logger, ctx, "GET", key, nil, start, err) }(time.Now())

	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	var item T
	if err = json.Unmarshal(data, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *RedisConnector[T, ID]) Insert(ctx context.Context, item *T) (err error) {
	if item == nil {
		return errors.New("item cannot be nil")
	}
	member := r.keyFunc(r.key.get(item))
	key := r.recordKey(member)
	defer func(start time.Time) { logQuery(r.logger, ctx, "SETNX", key, nil, start, err) }(time.Now())

	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, key, data, r.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrItemAlreadyExists
	}
	seq, err := r.client.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		return err
	}
	return r.client.ZAdd(ctx, r.indexKey(), &redis.Z{Score: float64(seq), Member: member}).Err()
}

func (r *RedisConnector[T, ID]) Update(ctx context.Context, item *T) (err error) {
	if item == nil {
		return errors.New("item cannot be nil")
	}
	key := r.recordKey(r.keyFunc(r.key.get(item)))
	defer func(start time.Time) { logQuery(r.logger, ctx, "SETXX", key, nil, start, err) }(time.Now())

	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	ok, err := r.client.SetXX(ctx, key, data, r.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoUpdateItem
	}
	return nil
}

func (r *RedisConnector[T, ID]) Delete(ctx context.Context, item *T) (err error) {
	if item == nil {
		return errors.New("item cannot be nil")
	}
	member := r.keyFunc(r.key.get(item))
	key := r.recordKey(member)
	defer func(start time.Time) { logQuery(r.logger, ctx, "DEL", key, nil, start, err) }(time.Now())

	pipe := r.client.TxPipeline()
	del := pipe.Del(ctx, key)
	pipe.ZRem(ctx, r.indexKey(), member)
	if _, err = pipe.Exec(ctx); err != nil {
		return err
	}
	if del.Val() == 0 {
		return ErrNoDeleteItem
	}
	return nil
}

// Exists checks if a record with the given key exists in Redis
func (r *RedisConnector[T, ID]) Exists(ctx context.Context, id ID) (bool, error) {
	result, err := r.client.Exists(ctx, r.recordKey(r.keyFunc(id))).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}
