package realtime

import (
	"context"
	"sync"
)

type subscriber struct {
	ch   chan Message
	done chan struct{}
	once sync.Once
}

// LocalPubSub is an in-process fan-out.  It is enough for a single
// instance; run RedisPubSub when several instances serve one database.
type LocalPubSub struct {
	mu      sync.RWMutex
	subs    map[string]map[*subscriber]struct{}
	bufSize int
}

// NewLocalPubSub creates a hub with the given per-subscriber buffer.
func NewLocalPubSub(bufSize int) *LocalPubSub {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &LocalPubSub{subs: make(map[string]map[*subscriber]struct{}), bufSize: bufSize}
}

// Publish delivers payload to every current subscriber of topic.  A full
// buffer drops the message for that subscriber only.
func (ps *LocalPubSub) Publish(_ context.Context, topic string, payload []byte) error {
	msg := Message{Topic: topic, Payload: payload}
	// read lock is held while sending so cancel cannot close a channel
	// mid-send
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for s := range ps.subs[topic] {
		select {
		case s.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber on topic.  The subscription also ends
// when ctx is done.
func (ps *LocalPubSub) Subscribe(ctx context.Context, topic string) (<-chan Message, func(), error) {
	s := &subscriber{ch: make(chan Message, ps.bufSize), done: make(chan struct{})}

	ps.mu.Lock()
	if ps.subs[topic] == nil {
		ps.subs[topic] = make(map[*subscriber]struct{})
	}
	ps.subs[topic][s] = struct{}{}
	ps.mu.Unlock()

	cancel := func() {
		s.once.Do(func() {
			ps.mu.Lock()
			delete(ps.subs[topic], s)
			if len(ps.subs[topic]) == 0 {
				delete(ps.subs, topic)
			}
			ps.mu.Unlock()
			close(s.ch)
			close(s.done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-s.done:
		}
	}()
	return s.ch, cancel, nil
}

// Subscribers returns the number of live subscribers on topic.
func (ps *LocalPubSub) Subscribers(topic string) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subs[topic])
}
