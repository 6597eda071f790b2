package eventbus

import (
	"context"
	"sync"
)

var _ Bus = (*InMem)(nil)

// InMem delivers messages to the subscribers of their topic, each on its
// own goroutine, in publish order. Publish blocks while a subscriber's
// buffer is full.
type InMem struct {
	mu     sync.RWMutex
	subs   map[string][]chan Message
	buffer int
	closed bool
	wg     sync.WaitGroup
}

func NewInMemBus() *InMem {
	return &InMem{
		subs:   make(map[string][]chan Message),
		buffer: 100,
	}
}

func (b *InMem) Publish(topic string, msg Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for _, ch := range b.subs[topic] {
		ch <- msg
	}
	return nil
}

func (b *InMem) Subscribe(topic string, handler MessageReceiver) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	ch := make(chan Message, b.buffer)
	b.subs[topic] = append(b.subs[topic], ch)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for m := range ch {
			handler.Receive(context.Background(), m)
		}
	}()
	return nil
}

// Close stops accepting messages and waits until subscribers have received
// everything already published.
func (b *InMem) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, chans := range b.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
