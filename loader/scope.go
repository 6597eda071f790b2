package loader

import (
	"context"
	"log/slog"
	"sync"

	"github.com/seb7887/gofw/observability"
	"github.com/seb7887/gofw/wp"
)

type scopeKey struct{}

// batchRunner is a batch of one loader key, erased of its entity type.
type batchRunner interface {
	run(ctx context.Context, s *Scope)
	fail(s *Scope, err error)
}

// Scope is a unit of work. Requests queued while it is open are collected
// per loader key and executed together at the next Dispatch, each key
// exactly once. A scope is not a cache: every window starts empty.
//
// The first Await of a pending request dispatches the window, so queue
// every request that should share a batch before awaiting any of them.
// A request queued after that joins the next window and costs another
// storage query.
type Scope struct {
	ctx    context.Context
	cancel context.CancelCauseFunc

	pool    *wp.Pool
	metrics *observability.MetricsCollector
	tracer  *observability.Tracer
	logger  *slog.Logger

	mu   sync.Mutex
	open map[string]batchRunner
	keys []string
	err  error
}

// ScopeOption configures a Scope.
type ScopeOption func(*Scope)

// WithPool runs batches on p instead of one goroutine per key. Batches are
// sharded on p by loader key.
func WithPool(p *wp.Pool) ScopeOption {
	return func(s *Scope) { s.pool = p }
}

func WithMetrics(m *observability.MetricsCollector) ScopeOption {
	return func(s *Scope) { s.metrics = m }
}

func WithTracer(t *observability.Tracer) ScopeOption {
	return func(s *Scope) { s.tracer = t }
}

// WithLogger sets the logger partition failures are reported on.
// Default: slog.Default()
func WithLogger(l *slog.Logger) ScopeOption {
	return func(s *Scope) { s.logger = l }
}

// NewScope opens a unit of work bound to ctx. When ctx is done, batches not
// yet executed never run and their waiters are released with the context's
// error.
func NewScope(ctx context.Context, opts ...ScopeOption) *Scope {
	s := &Scope{open: make(map[string]batchRunner)}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "loader")

	s.ctx, s.cancel = context.WithCancelCause(ctx)
	context.AfterFunc(s.ctx, func() {
		s.abort(context.Cause(s.ctx))
	})
	return s
}

// WithScope returns a copy of ctx carrying s.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// FromContext returns the scope carried by ctx.
func FromContext(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	return s, ok && s != nil
}

// Context returns the context batches execute under.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Dispatch executes every batch collected so far and waits until all of
// them are resolved or ctx is done. Requests queued meanwhile open a new
// window. Batches of different keys run concurrently.
func (s *Scope) Dispatch(ctx context.Context) error {
	s.settle()
	s.mu.Lock()
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return err
	}
	open, keys := s.open, s.keys
	s.open, s.keys = make(map[string]batchRunner), nil
	s.mu.Unlock()

	if len(keys) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	for _, key := range keys {
		b := open[key]
		wg.Add(1)
		task := func() {
			defer wg.Done()
			b.run(s.ctx, s)
		}
		if s.pool == nil || !s.pool.Submit(key, task) {
			go task()
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the unit of work. Requests not yet executed resolve with
// ErrScopeClosed; later requests fail immediately.
func (s *Scope) Close() {
	s.cancel(ErrScopeClosed)
	s.abort(ErrScopeClosed)
}

// Err returns why the scope stopped accepting requests, or nil while open.
func (s *Scope) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// settle aborts the scope right away when its context is done, without
// waiting for the AfterFunc callback to get scheduled.
func (s *Scope) settle() {
	if s.ctx.Err() != nil {
		s.abort(context.Cause(s.ctx))
	}
}

func (s *Scope) abort(err error) {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return
	}
	s.err = err
	open, keys := s.open, s.keys
	s.open, s.keys = nil, nil
	s.mu.Unlock()

	for _, key := range keys {
		open[key].fail(s, err)
	}
}
