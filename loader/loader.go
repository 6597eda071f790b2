package loader

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/seb7887/gofw/observability"
	"github.com/seb7887/gofw/predicate"
	"github.com/seb7887/gofw/sietch"
)

// Loader coalesces FindAll requests against one repository. Requests queued
// under the same key in one scope window are answered by a single storage
// query; each caller still gets exactly what a direct FindAll with its own
// parameters returns.
type Loader[M any, ID comparable] struct {
	repo    sietch.Repository[M, ID]
	planner sietch.QueryPlanner[M]
	entity  string
}

// New creates a loader over repo.
func New[M any, ID comparable](repo sietch.Repository[M, ID]) (*Loader[M, ID], error) {
	if repo == nil {
		return nil, fmt.Errorf("repository cannot be nil")
	}
	s, err := predicate.SchemaOf[M]()
	if err != nil {
		return nil, err
	}
	l := &Loader[M, ID]{repo: repo, entity: s.Name}
	l.planner, _ = repo.(sietch.QueryPlanner[M])
	return l, nil
}

// FindKey is the default key of QueueFind requests.
func (l *Loader[M, ID]) FindKey() string {
	return l.entity + ".Find"
}

// FindAllKey is the default key of QueueFindAll requests.
func (l *Loader[M, ID]) FindAllKey() string {
	return l.entity + ".FindAll"
}

// QueueFindAll queues q in the scope carried by ctx. Without a scope the
// query runs immediately. key overrides FindAllKey.
func (l *Loader[M, ID]) QueueFindAll(ctx context.Context, q sietch.Query[M], key ...string) *Deferred[[]M] {
	if err := q.Validate(); err != nil {
		return resolved[[]M](nil, err)
	}
	s, ok := FromContext(ctx)
	if !ok {
		items, err := l.repo.FindAll(ctx, q)
		return resolved(items, err)
	}

	d := newDeferred[[]M](s)
	l.enqueue(s, pick(key, l.FindAllKey()), &request[M]{query: q, deliver: d.resolve})
	return d
}

// QueueFind queues a lookup of the first record matching where, in storage
// order. It resolves with sietch.ErrItemNotFound when nothing matches. key
// overrides FindKey.
func (l *Loader[M, ID]) QueueFind(ctx context.Context, where *predicate.Predicate[M], key ...string) *Deferred[*M] {
	one := 1
	q := sietch.Query[M]{Where: where, Take: &one}
	s, ok := FromContext(ctx)
	if !ok {
		item, err := l.repo.FindOne(ctx, q)
		return resolved(item, err)
	}

	d := newDeferred[*M](s)
	l.enqueue(s, pick(key, l.FindKey()), &request[M]{query: q, deliver: func(items []M, err error) {
		switch {
		case err != nil:
			d.resolve(nil, err)
		case len(items) == 0:
			d.resolve(nil, sietch.ErrItemNotFound)
		default:
			d.resolve(&items[0], nil)
		}
	}})
	return d
}

func (l *Loader[M, ID]) enqueue(s *Scope, key string, r *request[M]) {
	s.settle()
	s.mu.Lock()
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		r.deliver(nil, err)
		return
	}
	b, ok := s.open[key]
	if !ok {
		b = &batch[M, ID]{loader: l, key: key}
		s.open[key] = b
		s.keys = append(s.keys, key)
	}
	typed, ok := b.(*batch[M, ID])
	if !ok || typed.loader != l {
		s.mu.Unlock()
		r.deliver(nil, fmt.Errorf("%w: %q", ErrKeyConflict, key))
		return
	}
	typed.requests = append(typed.requests, r)
	s.mu.Unlock()

	s.metrics.AddPendingRequests(key, 1)
}

// direct reports whether q alone can be handed to the repository. Without
// a planner only the natural order is assumed to be supported.
func (l *Loader[M, ID]) direct(q sietch.Query[M]) bool {
	if l.planner == nil {
		return q.OrderBy == nil
	}
	return l.planner.SupportsQuery(q)
}

type request[M any] struct {
	query   sietch.Query[M]
	deliver func([]M, error)
}

type batch[M any, ID comparable] struct {
	loader   *Loader[M, ID]
	key      string
	requests []*request[M]
}

// fail releases the requests of a batch that will not run.
func (b *batch[M, ID]) fail(s *Scope, err error) {
	s.metrics.AddPendingRequests(b.key, -len(b.requests))
	b.reject(err)
}

func (b *batch[M, ID]) reject(err error) {
	for _, r := range b.requests {
		r.deliver(nil, err)
	}
}

func (b *batch[M, ID]) run(ctx context.Context, s *Scope) {
	// the scope may end while the batch waits for a worker
	if ctx.Err() != nil {
		b.fail(s, context.Cause(ctx))
		return
	}

	n := len(b.requests)
	s.metrics.AddPendingRequests(b.key, -n)
	ctx, span := s.tracer.Start(ctx, "loader.batch",
		attribute.String("loader_key", b.key),
		attribute.Int("size", n),
	)

	if n == 1 && b.loader.direct(b.requests[0].query) {
		s.metrics.RecordBatch(b.key, observability.PathDirect, n)
		s.tracer.AddEvent(span, observability.PathDirect)
		items, err := b.loader.repo.FindAll(ctx, b.requests[0].query)
		b.requests[0].deliver(items, err)
		s.tracer.End(span, err)
		return
	}

	s.metrics.RecordBatch(b.key, observability.PathCombined, n)
	s.tracer.AddEvent(span, observability.PathCombined)
	rows, err := b.loader.repo.FindAll(ctx, sietch.Query[M]{Where: b.where()})
	if err != nil {
		b.reject(err)
		s.tracer.End(span, err)
		return
	}

	for i, r := range b.requests {
		items, err := sietch.ApplyQuery(rows, r.query)
		if err != nil {
			s.metrics.IncrementPartitionFailures(b.key)
			s.logger.WarnContext(ctx, "batch partition failed", "loader_key", b.key, "request", i, "error", err)
			r.deliver(nil, &PartitionError{Key: b.key, Index: i, Err: err})
			continue
		}
		r.deliver(items, nil)
	}
	s.tracer.End(span, nil)
}

// where is the OR of every request's filter. A request without a filter
// selects everything, so then the batch fetches everything.
func (b *batch[M, ID]) where() *predicate.Predicate[M] {
	wheres := make([]*predicate.Predicate[M], 0, len(b.requests))
	for _, r := range b.requests {
		if r.query.Where == nil {
			return nil
		}
		wheres = append(wheres, r.query.Where)
	}
	return predicate.CombineOr(wheres...)
}

func pick(keys []string, fallback string) string {
	if len(keys) > 0 && keys[0] != "" {
		return keys[0]
	}
	return fallback
}
