// Package realtime fans ticket messages out to live subscribers.  Delivery
// is best effort: a slow subscriber drops messages rather than blocking
// the publisher, and nothing is replayed on reconnect.
package realtime

import (
	"context"
	"strconv"
)

// Message is one payload received on a topic.
type Message struct {
	Topic   string
	Payload []byte
}

// PubSub publishes payloads to topics and subscribes to them.  The cancel
// func returned by Subscribe releases the subscription and closes the
// channel; calling it more than once is safe.
type PubSub interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (<-chan Message, func(), error)
}

// TicketTopic names the topic carrying new messages of a ticket.
func TicketTopic(ticketID uint64) string {
	return "ticket:" + strconv.FormatUint(ticketID, 10)
}
