package sietch

import (
	"github.com/seb7887/gofw/observability"
)

type options struct {
	logger     QueryLogger
	metrics    *observability.MetricsCollector
	tracer     *observability.Tracer
	copier     Copier
	keyGen     any
	observers  []any
	softDelete *SoftDeleteOptions
}

// Option configures a repository built by NewRepository.
type Option func(*options)

// WithLogger sets the operation logger. Defaults to NoOpLogger.
func WithLogger(logger QueryLogger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records operation durations on m.
func WithMetrics(m *observability.MetricsCollector) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer opens a span per operation.
func WithTracer(t *observability.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithCopier replaces the StructuralCopier used between model and storage
// records.
func WithCopier(c Copier) Option {
	return func(o *options) { o.copier = c }
}

// WithKeyGenerator sets the generator Create uses when no key is given.
// ID must be the repository's key type.
func WithKeyGenerator[ID comparable](gen func() ID) Option {
	return func(o *options) { o.keyGen = gen }
}

// WithObservers registers lifecycle observers, notified in the given order.
// T must be the repository's model type.
func WithObservers[T any](observers ...Observer[T]) Option {
	return func(o *options) {
		for _, obs := range observers {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithSoftDelete makes Remove mark records deleted and hides them from
// reads. The model must implement SoftDeletable. A nil opts uses
// DefaultSoftDeleteOptions.
func WithSoftDelete(opts *SoftDeleteOptions) Option {
	return func(o *options) {
		if opts == nil {
			opts = DefaultSoftDeleteOptions()
		}
		o.softDelete = opts
	}
}
