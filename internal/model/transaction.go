package model

import "time"

// TransactionStatusCompleted is the only status written today; the column
// stays a string so refunds can be added without a migration.
const TransactionStatusCompleted = "completed"

// Transaction is an append-only ledger row written in the same database
// transaction as the ownership transfer it records.  Seller and buyer are
// nullable so the row survives removal of either account.
type Transaction struct {
	ID               uint64    `json:"id"`                         // transactions.id
	SellerUserID     *uint64   `json:"sellerUserId,omitempty"`     // transactions.seller_user_id (nullable)
	BuyerUserID      *uint64   `json:"buyerUserId,omitempty"`      // transactions.buyer_user_id (nullable)
	CatalogItemID    uint64    `json:"catalogItemId"`              // transactions.catalog_item_id
	InventoryEntryID *uint64   `json:"inventoryEntryId,omitempty"` // transactions.inventory_entry_id (nullable)
	PriceCents       int64     `json:"priceCents"`                 // transactions.price_cents
	Status           string    `json:"status"`                     // transactions.status
	CreatedAt        time.Time `json:"createdAt"`                  // transactions.created_at
}

// TransactionDetail adds display names for ledger views.
type TransactionDetail struct {
	Transaction
	ItemName   string `json:"itemName"`
	SellerName string `json:"sellerName,omitempty"`
	BuyerName  string `json:"buyerName,omitempty"`
}
