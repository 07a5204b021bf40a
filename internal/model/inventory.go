package model

import "time"

// InventoryEntry records that a user owns one copy of a catalog item.  An
// entry is a listing while IsListed is true; in that state
// AskingPriceCents is always set and positive.
//
// Fields:
//
//	ID               – primary key identifier.
//	OwnerUserID      – the single current owner.
//	CatalogItemID    – reference into catalog_items.
//	IsListed         – whether the entry is offered on the marketplace.
//	AskingPriceCents – price in cents while listed; nil otherwise.
//	CreatedAt        – creation timestamp.
//	UpdatedAt        – last update timestamp.
type InventoryEntry struct {
	ID               uint64    `json:"id"`                         // inventory_entries.id
	OwnerUserID      uint64    `json:"ownerUserId"`                // inventory_entries.owner_user_id
	CatalogItemID    uint64    `json:"catalogItemId"`              // inventory_entries.catalog_item_id
	IsListed         bool      `json:"isListed"`                   // inventory_entries.is_listed
	AskingPriceCents *int64    `json:"askingPriceCents,omitempty"` // inventory_entries.asking_price_cents (nullable)
	CreatedAt        time.Time `json:"createdAt"`                  // inventory_entries.created_at
	UpdatedAt        time.Time `json:"updatedAt"`                  // inventory_entries.updated_at
}

// InventoryItem is an entry joined with its catalog data, as shown on
// inventory and marketplace pages.
type InventoryItem struct {
	InventoryEntry
	Item       CatalogItem `json:"item"`
	SellerName string      `json:"sellerName,omitempty"`
	SellerID   string      `json:"sellerExternalId,omitempty"`
}
