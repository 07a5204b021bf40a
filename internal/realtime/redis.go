package realtime

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "skinmarket:"

// RedisPubSub fans out through Redis channels so every instance sees
// messages published by any other.
type RedisPubSub struct {
	client  *redis.Client
	bufSize int
}

func NewRedisPubSub(client *redis.Client, bufSize int) *RedisPubSub {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &RedisPubSub{client: client, bufSize: bufSize}
}

func (r *RedisPubSub) Publish(ctx context.Context, topic string, payload []byte) error {
	return r.client.Publish(ctx, redisChannelPrefix+topic, payload).Err()
}

// Subscribe waits for Redis to confirm the subscription before returning,
// so a publish issued afterwards is never missed.
func (r *RedisPubSub) Subscribe(ctx context.Context, topic string) (<-chan Message, func(), error) {
	ps := r.client.Subscribe(ctx, redisChannelPrefix+topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}

	out := make(chan Message, r.bufSize)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}

	go func() {
		defer close(out)
		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- Message{Topic: topic, Payload: []byte(m.Payload)}:
				default:
				}
			}
		}
	}()
	return out, cancel, nil
}
