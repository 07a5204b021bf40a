package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case m, ok := <-ch:
		require.True(t, ok, "channel closed")
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestTicketTopic(t *testing.T) {
	assert.Equal(t, "ticket:42", TicketTopic(42))
}

func TestLocalPubSubDeliversToTopicOnly(t *testing.T) {
	ps := NewLocalPubSub(4)
	ctx := context.Background()
	a, cancelA, err := ps.Subscribe(ctx, TicketTopic(1))
	require.NoError(t, err)
	defer cancelA()
	b, cancelB, err := ps.Subscribe(ctx, TicketTopic(2))
	require.NoError(t, err)
	defer cancelB()

	require.NoError(t, ps.Publish(ctx, TicketTopic(1), []byte("hello")))
	assert.Equal(t, "hello", string(receive(t, a).Payload))
	select {
	case m := <-b:
		t.Fatalf("unexpected message on other topic: %s", m.Payload)
	default:
	}
}

func TestLocalPubSubCancel(t *testing.T) {
	ps := NewLocalPubSub(1)
	ch, cancel, err := ps.Subscribe(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, 1, ps.Subscribers("t"))

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Zero(t, ps.Subscribers("t"))
	assert.NoError(t, ps.Publish(context.Background(), "t", []byte("x")))
}

func TestLocalPubSubContextEndsSubscription(t *testing.T) {
	ps := NewLocalPubSub(1)
	ctx, cancelCtx := context.WithCancel(context.Background())
	ch, _, err := ps.Subscribe(ctx, "t")
	require.NoError(t, err)
	cancelCtx()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed after context cancel")
	}
}

func TestLocalPubSubDropsWhenFull(t *testing.T) {
	ps := NewLocalPubSub(1)
	ch, cancel, err := ps.Subscribe(context.Background(), "t")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(context.Background(), "t", []byte("1")))
	require.NoError(t, ps.Publish(context.Background(), "t", []byte("2")))
	assert.Equal(t, "1", string(receive(t, ch).Payload))
	assert.Len(t, ch, 0)
}

func TestLocalPubSubConcurrentPublishAndCancel(t *testing.T) {
	ps := NewLocalPubSub(8)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		_, cancel, err := ps.Subscribe(context.Background(), "t")
		require.NoError(t, err)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = ps.Publish(context.Background(), "t", []byte("x"))
			}
		}()
		go func() {
			defer wg.Done()
			cancel()
		}()
	}
	wg.Wait()
	assert.Zero(t, ps.Subscribers("t"))
}

func TestRedisPubSub(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ps := NewRedisPubSub(client, 4)
	ctx := context.Background()
	ch, cancel, err := ps.Subscribe(ctx, TicketTopic(7))
	require.NoError(t, err)

	require.NoError(t, ps.Publish(ctx, TicketTopic(7), []byte(`{"id":1}`)))
	m := receive(t, ch)
	assert.Equal(t, TicketTopic(7), m.Topic)
	assert.JSONEq(t, `{"id":1}`, string(m.Payload))

	cancel()
	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("redis subscription not closed")
	}
}
