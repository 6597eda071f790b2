package sietch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/seb7887/gofw/eventbus"
	"github.com/seb7887/gofw/predicate"
)

// EventKind names the lifecycle step a RepositoryEvent reports.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventSaved   EventKind = "saved"
	EventRemoved EventKind = "removed"
)

// RepositoryEvent is the message EventPublisher sends.
type RepositoryEvent struct {
	Kind   EventKind       `json:"kind"`
	Entity string          `json:"entity"`
	Key    string          `json:"key"`
	Record json.RawMessage `json:"record,omitempty"`
	At     time.Time       `json:"at"`
}

var _ eventbus.Message = (*RepositoryEvent)(nil)

func (e *RepositoryEvent) Serialize() []byte {
	data, _ := json.Marshal(e)
	return data
}

// EventPublisher is an Observer that publishes Created, Saved and Removed
// notifications of T on a bus topic. Reads are not published. A failed
// publish is logged and does not affect the repository operation.
type EventPublisher[T any] struct {
	BaseObserver[T]
	bus    eventbus.Bus
	topic  string
	schema *predicate.Schema
	key    predicate.FieldInfo
	logger *slog.Logger
	now    func() time.Time
}

var _ Observer[struct{ ID string }] = (*EventPublisher[struct{ ID string }])(nil)

// NewEventPublisher creates a publisher for T. A nil logger uses
// slog.Default().
func NewEventPublisher[T any](bus eventbus.Bus, topic string, logger *slog.Logger) (*EventPublisher[T], error) {
	if bus == nil {
		return nil, fmt.Errorf("bus cannot be nil")
	}
	s, err := predicate.SchemaOf[T]()
	if err != nil {
		return nil, err
	}
	key, err := s.KeyField()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventPublisher[T]{
		bus:    bus,
		topic:  topic,
		schema: s,
		key:    key,
		logger: logger.With("component", "sietch", "topic", topic),
		now:    time.Now,
	}, nil
}

func (p *EventPublisher[T]) Created(ctx context.Context, item *T) {
	p.publish(ctx, EventCreated, item)
}

func (p *EventPublisher[T]) Saved(ctx context.Context, item *T) {
	p.publish(ctx, EventSaved, item)
}

func (p *EventPublisher[T]) Removed(ctx context.Context, item *T) {
	p.publish(ctx, EventRemoved, item)
}

func (p *EventPublisher[T]) publish(ctx context.Context, kind EventKind, item *T) {
	record, err := json.Marshal(item)
	if err != nil {
		p.logger.WarnContext(ctx, "encoding event record", "kind", kind, "error", err)
		return
	}
	key, err := p.schema.Value(reflect.ValueOf(item), p.key)
	if err != nil {
		p.logger.WarnContext(ctx, "reading event key", "kind", kind, "error", err)
		return
	}
	ev := &RepositoryEvent{
		Kind:   kind,
		Entity: p.schema.Name,
		Key:    fmt.Sprint(key.Interface()),
		Record: record,
		At:     p.now().UTC(),
	}
	if err := p.bus.Publish(p.topic, ev); err != nil {
		p.logger.WarnContext(ctx, "publishing event", "kind", kind, "key", ev.Key, "error", err)
	}
}
