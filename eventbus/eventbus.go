package eventbus

import (
	"context"
	"errors"
)

// ErrClosed is returned when publishing on or subscribing to a closed bus.
var ErrClosed = errors.New("eventbus: bus closed")

// Message is a payload that can cross process boundaries.
type Message interface {
	Serialize() []byte
}

type Bus interface {
	Publish(topic string, msg Message) error
	Subscribe(topic string, handler MessageReceiver) error
	Close() error
}

type MessageReceiver interface {
	Receive(ctx context.Context, msg Message)
}

// ReceiverFunc adapts a function to MessageReceiver.
type ReceiverFunc func(ctx context.Context, msg Message)

func (f ReceiverFunc) Receive(ctx context.Context, msg Message) {
	f(ctx, msg)
}
