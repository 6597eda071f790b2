package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

var _ Bus = (*NatsConn[Message])(nil)

// NatsConn publishes serialized messages on NATS subjects and decodes
// received ones as T with encoding/json.
type NatsConn[T Message] struct {
	nc     *nats.Conn
	logger *slog.Logger
}

func NewNatsBus[T Message](url string, opts ...nats.Option) (*NatsConn[T], error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NatsConn[T]{nc: nc, logger: slog.Default().With("component", "eventbus")}, nil
}

func (eb *NatsConn[T]) Publish(topic string, msg Message) error {
	if eb.nc.IsClosed() {
		return ErrClosed
	}
	return eb.nc.Publish(topic, msg.Serialize())
}

func (eb *NatsConn[T]) Subscribe(topic string, handler MessageReceiver) error {
	if eb.nc.IsClosed() {
		return ErrClosed
	}
	_, err := eb.nc.Subscribe(topic, eb.consumedMessages(context.Background(), handler.Receive))
	return err
}

// Close drains pending messages and closes the connection.
func (eb *NatsConn[T]) Close() error {
	if eb.nc.IsClosed() {
		return nil
	}
	return eb.nc.Drain()
}

func (eb *NatsConn[T]) consumedMessages(ctx context.Context, receiver func(ctx context.Context, msg Message)) func(*nats.Msg) {
	return func(msg *nats.Msg) {
		m, err := deserialize[T](msg)
		if err != nil {
			eb.logger.Warn("dropping undecodable message", "subject", msg.Subject, "error", err)
			return
		}
		receiver(ctx, m)
	}
}

func deserialize[T any](message *nats.Msg) (T, error) {
	var msg T
	err := json.Unmarshal(message.Data, &msg)
	return msg, err
}
