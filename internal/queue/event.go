// Package queue carries domain events to RabbitMQ and runs the audit
// consumer that reads them back.  Publishing is best effort: callers log a
// failed publish and carry on, the database remains the source of truth.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	EventPurchaseCompleted   = "purchase.completed"
	EventTicketStatusChanged = "ticket.status_changed"
	EventUserRoleChanged     = "user.role_changed"
)

// Event is the envelope written to the broker.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEvent wraps payload in an envelope with a fresh id.
func NewEvent(typ string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	}, nil
}

// PurchaseCompleted is published after a purchase commits.
type PurchaseCompleted struct {
	TransactionID uint64 `json:"transaction_id"`
	ListingID     uint64 `json:"listing_id"`
	CatalogItemID uint64 `json:"catalog_item_id"`
	SellerUserID  uint64 `json:"seller_user_id"`
	BuyerUserID   uint64 `json:"buyer_user_id"`
	PriceCents    int64  `json:"price_cents"`
}

// TicketStatusChanged is published when an admin moves a ticket, or when
// an admin reply advances it out of pending.
type TicketStatusChanged struct {
	TicketID    uint64 `json:"ticket_id"`
	From        string `json:"from"`
	To          string `json:"to"`
	ActorUserID uint64 `json:"actor_user_id"`
}

// UserRoleChanged is published when an admin grants or revokes admin.
type UserRoleChanged struct {
	TargetExternalID string `json:"target_external_id"`
	IsAdmin          bool   `json:"is_admin"`
	ActorUserID      uint64 `json:"actor_user_id"`
}

// Publisher sends events to the broker.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher drops every event.  Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
