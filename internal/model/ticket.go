package model

import "time"

// TicketStatus is the lifecycle state of a support ticket.
type TicketStatus string

const (
	TicketPending    TicketStatus = "pending"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
)

// Valid reports whether s is one of the four known states.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketPending, TicketInProgress, TicketResolved, TicketClosed:
		return true
	}
	return false
}

// Ticket is a support request opened by a user.  Only admins move it out
// of pending, either explicitly or by replying.
//
// Fields:
//
//	ID          – primary key identifier.
//	OwnerUserID – user who opened the ticket.
//	Title       – short summary.
//	Type        – free-form category chosen by the user.
//	Status      – pending, in_progress, resolved or closed.
//	RelatedItem – optional reference to the skin the ticket is about.
//	CreatedAt   – creation timestamp.
//	UpdatedAt   – bumped on every status change or new message.
type Ticket struct {
	ID          uint64       `json:"id"`                    // tickets.id
	OwnerUserID uint64       `json:"ownerUserId"`           // tickets.owner_user_id
	Title       string       `json:"title"`                 // tickets.title
	Type        string       `json:"type"`                  // tickets.type
	Status      TicketStatus `json:"status"`                // tickets.status
	RelatedItem *string      `json:"relatedItem,omitempty"` // tickets.related_item (nullable)
	CreatedAt   time.Time    `json:"createdAt"`             // tickets.created_at
	UpdatedAt   time.Time    `json:"updatedAt"`             // tickets.updated_at
}

// TicketMessage is one append-only entry of a ticket thread.
type TicketMessage struct {
	ID              uint64    `json:"id"`              // ticket_messages.id
	TicketID        uint64    `json:"ticketId"`        // ticket_messages.ticket_id
	AuthorUserID    uint64    `json:"authorUserId"`    // ticket_messages.author_user_id
	IsAdminAuthored bool      `json:"isAdminAuthored"` // ticket_messages.is_admin_authored
	Body            string    `json:"body"`            // ticket_messages.body
	CreatedAt       time.Time `json:"createdAt"`       // ticket_messages.created_at
	AuthorName      string    `json:"authorName,omitempty"`
	AuthorAvatarURL string    `json:"authorAvatarUrl,omitempty"`
}
