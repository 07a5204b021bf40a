package model

import "time"

// User represents a marketplace account as stored in the `users` table.
// Rows are created the first time an identity-provider profile is seen and
// are never deleted.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	ExternalID   – stable identifier issued by the identity provider (unique).
//	DisplayName  – provider display name, refreshed on every login.
//	AvatarURL    – provider avatar, refreshed on every login.
//	TradeURL     – optional trade contact link set by the user.
//	BalanceCents – spendable currency in cents; never negative.
//	IsAdmin      – persisted admin role flag.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    `json:"id"`                  // users.id
	ExternalID   string    `json:"externalId"`          // users.external_id
	DisplayName  string    `json:"displayName"`         // users.display_name
	AvatarURL    string    `json:"avatarUrl,omitempty"` // users.avatar_url (nullable)
	TradeURL     *string   `json:"tradeUrl,omitempty"`  // users.trade_url (nullable)
	BalanceCents int64     `json:"balanceCents"`        // users.balance_cents
	IsAdmin      bool      `json:"isAdmin"`             // users.is_admin
	CreatedAt    time.Time `json:"createdAt"`           // users.created_at
	UpdatedAt    time.Time `json:"updatedAt"`           // users.updated_at
}
