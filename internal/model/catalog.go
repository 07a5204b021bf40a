package model

import "time"

// CatalogItem is immutable reference data describing a tradable skin.
// Inventory entries point at a catalog item; the marketplace never edits
// these rows.
type CatalogItem struct {
	ID                  uint64    `json:"id"`                    // catalog_items.id
	Name                string    `json:"name"`                  // catalog_items.name
	Rarity              string    `json:"rarity"`                // catalog_items.rarity
	Description         string    `json:"description,omitempty"` // catalog_items.description (nullable)
	ImageURL            string    `json:"imageUrl,omitempty"`    // catalog_items.image_url (nullable)
	Weapon              string    `json:"weapon,omitempty"`      // catalog_items.weapon (nullable)
	Wear                string    `json:"wear,omitempty"`        // catalog_items.wear (nullable)
	ReferencePriceCents int64     `json:"referencePriceCents"`   // catalog_items.reference_price_cents
	CreatedAt           time.Time `json:"createdAt"`             // catalog_items.created_at
}
