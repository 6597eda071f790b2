package sietch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/seb7887/gofw/observability"
	"github.com/seb7887/gofw/predicate"
)

var _ Repository[struct{ ID string }, string] = (*Repo[struct{ ID string }, struct{ ID string }, string])(nil)

// Repo implements Repository over a StorageAdapter. M is the model type
// callers see and S the storage type the adapter persists; predicates and
// orderings written against M are rewritten to S, and records are copied
// between the two by name. When M and S are the same type no rewriting or
// copying happens on reads.
type Repo[M any, S any, ID comparable] struct {
	adapter     StorageAdapter[S, ID]
	observers   *ObserverRegistry[M]
	copier      Copier
	logger      QueryLogger
	metrics     *observability.MetricsCollector
	tracer      *observability.Tracer
	newKey      func() ID
	modelKey    keyAccessor[M, ID]
	model       *predicate.Schema
	softDelete  *SoftDeleteOptions
	visible     *predicate.Predicate[M]
	passthrough bool
}

// NewRepository creates a repository of M over adapter. It fails with a
// configuration error when M or S has no usable primary key of type ID, or
// when the default copier would store a numeric field of M in a narrower
// member of S.
func NewRepository[M any, S any, ID comparable](adapter StorageAdapter[S, ID], opts ...Option) (*Repo[M, S, ID], error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	modelKey, err := newKeyAccessor[M, ID]()
	if err != nil {
		return nil, err
	}
	storageKey, err := newKeyAccessor[S, ID]()
	if err != nil {
		return nil, err
	}

	r := &Repo[M, S, ID]{
		adapter:   adapter,
		observers: NewObserverRegistry[M](),
		copier:    o.copier,
		logger:    o.logger,
		metrics:   o.metrics,
		tracer:    o.tracer,
		newKey:    defaultKeyGenerator[ID](),
		modelKey:  modelKey,
		model:     modelKey.schema,
	}
	_, r.passthrough = any((*M)(nil)).(*S)

	if r.copier == nil {
		if !r.passthrough {
			if err := checkStorageFields(r.model, storageKey.schema); err != nil {
				return nil, err
			}
		}
		r.copier = NewStructuralCopier()
	}
	if r.logger == nil {
		r.logger = NewNoOpLogger()
	}
	if o.keyGen != nil {
		gen, ok := o.keyGen.(func() ID)
		if !ok {
			return nil, &predicate.ConfigurationError{Entity: r.model.Name, Reason: fmt.Sprintf("key generator %T does not produce the key type", o.keyGen)}
		}
		r.newKey = gen
	}
	for _, obs := range o.observers {
		typed, ok := obs.(Observer[M])
		if !ok {
			return nil, &predicate.ConfigurationError{Entity: r.model.Name, Reason: fmt.Sprintf("observer %T does not observe %s", obs, r.model.Name)}
		}
		r.observers.AddObserver(typed)
	}
	if o.softDelete != nil {
		r.softDelete = o.softDelete
		if !o.softDelete.IncludeDeleted {
			if r.visible, err = notDeleted[M](o.softDelete); err != nil {
				return nil, err
			}
		} else if !isSoftDeletable[M]() {
			return nil, &predicate.ConfigurationError{Entity: r.model.Name, Reason: "soft delete requires SoftDeletable"}
		}
	}
	return r, nil
}

// NewUUIDRepository creates a repository whose records are keyed by UUIDs.
func NewUUIDRepository[M any, S any](adapter StorageAdapter[S, uuid.UUID], opts ...Option) (*Repo[M, S, uuid.UUID], error) {
	return NewRepository[M, S, uuid.UUID](adapter, opts...)
}

// Entity returns the model type name.
func (r *Repo[M, S, ID]) Entity() string {
	return r.model.Name
}

// Create implements Repository.
func (r *Repo[M, S, ID]) Create(ctx context.Context, id ...ID) (*M, error) {
	start := time.Now()

	var key ID
	switch {
	case len(id) > 0:
		key = id[0]
	case r.newKey != nil:
		key = r.newKey()
	}

	m := new(M)
	r.modelKey.set(m, key)
	normalizeText(r.model, m)
	r.observers.NotifyCreated(ctx, m)

	r.record(ctx, "Create", start, nil)
	return m, nil
}

// Find implements Repository.
func (r *Repo[M, S, ID]) Find(ctx context.Context, id ID) (m *M, err error) {
	ctx, done := r.begin(ctx, "Find", attribute.String("key", fmt.Sprint(id)))
	defer func() { done(err) }()

	s, err := r.adapter.FindByKey(ctx, id)
	if err != nil {
		return nil, err
	}
	m, err = r.toModel(s)
	if err != nil {
		return nil, err
	}
	if r.visible != nil && isEntityDeleted(m) {
		return nil, ErrItemNotFound
	}
	r.observers.NotifyFound(ctx, m)
	return m, nil
}

// FindOne implements Repository.
func (r *Repo[M, S, ID]) FindOne(ctx context.Context, q Query[M]) (*M, error) {
	one := 1
	q.Take = &one
	items, err := r.FindAll(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrItemNotFound
	}
	return &items[0], nil
}

// FindAll implements Repository.
func (r *Repo[M, S, ID]) FindAll(ctx context.Context, q Query[M]) (items []M, err error) {
	ctx, done := r.begin(ctx, "FindAll", attribute.String("query", q.String()))
	defer func() { done(err) }()

	if err := q.Validate(); err != nil {
		return nil, err
	}
	q.Where = predicate.CombineAnd(q.Where, r.visible)

	sq, err := RewriteQuery[M, S](q)
	if err != nil {
		return nil, err
	}
	rows, err := r.adapter.Query(ctx, sq)
	if err != nil {
		return nil, err
	}

	items = make([]M, 0, len(rows))
	for i := range rows {
		m, err := r.toModel(&rows[i])
		if err != nil {
			return nil, err
		}
		r.observers.NotifyFound(ctx, m)
		items = append(items, *m)
	}
	return items, nil
}

// Save implements Repository.
func (r *Repo[M, S, ID]) Save(ctx context.Context, item *M) (created bool, err error) {
	if item == nil {
		return false, errors.New("item cannot be nil")
	}
	ctx, done := r.begin(ctx, "Save")
	defer func() { done(err) }()

	r.observers.NotifySaving(ctx, item)

	existing, err := r.adapter.FindByKey(ctx, r.modelKey.get(item))
	switch {
	case errors.Is(err, ErrItemNotFound):
		s := new(S)
		if err := r.toStorage(item, s); err != nil {
			return false, err
		}
		if err := r.adapter.Insert(ctx, s); err != nil {
			return false, err
		}
		created = true
	case err != nil:
		return false, err
	default:
		if err := r.toStorage(item, existing); err != nil {
			return false, err
		}
		if err := r.adapter.Update(ctx, existing); err != nil {
			return false, err
		}
	}

	r.observers.NotifySaved(ctx, item)
	return created, nil
}

// Remove implements Repository.
func (r *Repo[M, S, ID]) Remove(ctx context.Context, id ID) (removed bool, err error) {
	ctx, done := r.begin(ctx, "Remove", attribute.String("key", fmt.Sprint(id)))
	defer func() { done(err) }()

	s, err := r.adapter.FindByKey(ctx, id)
	if errors.Is(err, ErrItemNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	m, err := r.toModel(s)
	if err != nil {
		return false, err
	}

	if r.softDelete != nil {
		if isEntityDeleted(m) {
			return false, nil
		}
		markAsDeleted(m)
		if err := r.toStorage(m, s); err != nil {
			return false, err
		}
		if err := r.adapter.Update(ctx, s); err != nil {
			return false, err
		}
	} else if err := r.adapter.Delete(ctx, s); err != nil {
		return false, err
	}

	r.observers.NotifyRemoved(ctx, m)
	return true, nil
}

// Count implements Repository.
func (r *Repo[M, S, ID]) Count(ctx context.Context, q Query[M]) (n int64, err error) {
	ctx, done := r.begin(ctx, "Count")
	defer func() { done(err) }()

	if err := q.Validate(); err != nil {
		return 0, err
	}
	where, err := predicate.Rewrite[M, S](predicate.CombineAnd(q.Where, r.visible))
	if err != nil {
		return 0, err
	}
	return r.adapter.Count(ctx, Query[S]{Where: where, Skip: q.Skip, Take: q.Take})
}

// SupportsQuery reports whether the adapter applies q's ordering itself.
// Every adapter applies an ascending primary key; descending keys and
// secondary keys depend on its Capabilities.
func (r *Repo[M, S, ID]) SupportsQuery(q Query[M]) bool {
	o := q.OrderBy
	if o == nil || o.By == nil {
		return true
	}
	caps := capabilitiesOf(r.adapter)
	if o.Desc && !caps.Descending {
		return false
	}
	if o.HasSecondary() && (!caps.SecondaryKey || (o.ThenDesc && !caps.Descending)) {
		return false
	}
	return true
}

// AddObserver implements Observable.
func (r *Repo[M, S, ID]) AddObserver(o Observer[M]) {
	r.observers.AddObserver(o)
}

// RemoveAllObservers implements Observable.
func (r *Repo[M, S, ID]) RemoveAllObservers() {
	r.observers.RemoveAllObservers()
}

// SetLogger implements LoggableRepository.
func (r *Repo[M, S, ID]) SetLogger(logger QueryLogger) {
	r.logger = logger
}

// GetLogger implements LoggableRepository.
func (r *Repo[M, S, ID]) GetLogger() QueryLogger {
	return r.logger
}

func (r *Repo[M, S, ID]) toModel(s *S) (*M, error) {
	if r.passthrough {
		return any(s).(*M), nil
	}
	m := new(M)
	if err := r.copier.Copy(s, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Repo[M, S, ID]) toStorage(m *M, s *S) error {
	if r.passthrough {
		*s = *any(m).(*S)
		return nil
	}
	return r.copier.Copy(m, s)
}

// begin opens the span of an operation and returns the function that logs,
// measures and closes it.
func (r *Repo[M, S, ID]) begin(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	attrs = append(attrs, attribute.String("entity", r.model.Name))
	ctx, span := r.tracer.Start(ctx, "sietch."+operation, attrs...)
	return ctx, func(err error) {
		r.finish(ctx, span, operation, start, err)
	}
}

func (r *Repo[M, S, ID]) finish(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	if errors.Is(err, ErrItemNotFound) {
		r.tracer.End(span, nil)
	} else {
		r.tracer.End(span, err)
	}
	r.record(ctx, operation, start, err)
}

func (r *Repo[M, S, ID]) record(ctx context.Context, operation string, start time.Time, err error) {
	logOperation(r.logger, ctx, operation, r.model.Name, start, err)

	outcome := observability.OutcomeOK
	switch {
	case errors.Is(err, ErrItemNotFound):
		outcome = observability.OutcomeNotFound
	case err != nil:
		outcome = observability.OutcomeError
	}
	r.metrics.RecordOperation(r.model.Name, operation, outcome, time.Since(start))
}
