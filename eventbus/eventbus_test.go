package eventbus

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type textMessage struct {
	Text string `json:"text"`
}

func (m *textMessage) Serialize() []byte {
	data, _ := json.Marshal(m)
	return data
}

type collector struct {
	mu   sync.Mutex
	seen []string
}

func (c *collector) Receive(_ context.Context, msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, msg.(*textMessage).Text)
}

func (c *collector) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.seen...)
}

func TestInMem_TopicRouting(t *testing.T) {
	bus := NewInMemBus()
	a, b, c := &collector{}, &collector{}, &collector{}
	require.NoError(t, bus.Subscribe("widgets", a))
	require.NoError(t, bus.Subscribe("widgets", b))
	require.NoError(t, bus.Subscribe("accounts", c))

	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, bus.Publish("widgets", &textMessage{Text: text}))
	}
	require.NoError(t, bus.Publish("accounts", &textMessage{Text: "other"}))
	require.NoError(t, bus.Publish("nobody", &textMessage{Text: "dropped"}))

	require.NoError(t, bus.Close())

	assert.Equal(t, []string{"one", "two", "three"}, a.texts())
	assert.Equal(t, []string{"one", "two", "three"}, b.texts())
	assert.Equal(t, []string{"other"}, c.texts())
}

func TestInMem_Closed(t *testing.T) {
	bus := NewInMemBus()
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish("widgets", &textMessage{}), ErrClosed)
	assert.ErrorIs(t, bus.Subscribe("widgets", &collector{}), ErrClosed)
}

func TestReceiverFunc(t *testing.T) {
	var got Message
	ReceiverFunc(func(_ context.Context, msg Message) { got = msg }).Receive(context.Background(), &textMessage{Text: "x"})
	assert.Equal(t, &textMessage{Text: "x"}, got)
}

func TestDeserialize(t *testing.T) {
	msg, err := deserialize[*textMessage](&nats.Msg{Data: []byte(`{"text":"hi"}`)})
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Text)

	_, err = deserialize[*textMessage](&nats.Msg{Data: []byte(`{`)})
	assert.Error(t, err)
}

func TestNatsBus(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	bus, err := NewNatsBus[*textMessage](url)
	if err != nil {
		t.Skip("NATS not available for testing:", err)
	}

	received := make(chan string, 1)
	require.NoError(t, bus.Subscribe("sietch.test", ReceiverFunc(func(_ context.Context, msg Message) {
		received <- msg.(*textMessage).Text
	})))
	require.NoError(t, bus.Publish("sietch.test", &textMessage{Text: "hello"}))

	select {
	case text := <-received:
		assert.Equal(t, "hello", text)
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}

	require.NoError(t, bus.Close())
}
