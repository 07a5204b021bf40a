package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/skin-marketplace/internal/model"
)

// ListingQuery defines filters, ordering and pagination for the
// marketplace.  Zero values mean "no filter".
type ListingQuery struct {
	Text          string // matched against item name, weapon and rarity
	Rarity        string
	MinPriceCents int64
	MaxPriceCents int64
	Sort          string
	Page          int
	PageSize      int
}

// Listing sort keys.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortNameAsc   = "name_asc"
	SortNameDesc  = "name_desc"
)

var listingOrder = map[string]string{
	SortNewest:    "e.updated_at DESC, e.id DESC",
	SortPriceAsc:  "e.asking_price_cents ASC, e.id ASC",
	SortPriceDesc: "e.asking_price_cents DESC, e.id DESC",
	SortNameAsc:   "c.name ASC, e.id ASC",
	SortNameDesc:  "c.name DESC, e.id DESC",
}

// ValidSort reports whether s is a known sort key.
func ValidSort(s string) bool {
	_, ok := listingOrder[s]
	return ok
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// SearchListings returns one page of entries currently for sale and the
// total number of matches.  An unknown sort falls back to newest.
func (r *InventoryRepo) SearchListings(ctx context.Context, q ListingQuery) ([]model.InventoryItem, int64, error) {
	where := []string{"e.is_listed=TRUE"}
	args := []any{}

	if q.Text != "" {
		like := "%" + escapeLike(strings.ToLower(q.Text)) + "%"
		where = append(where, `(LOWER(c.name) LIKE ? ESCAPE '\\' OR LOWER(c.weapon) LIKE ? ESCAPE '\\' OR LOWER(c.rarity) LIKE ? ESCAPE '\\')`)
		args = append(args, like, like, like)
	}
	if q.Rarity != "" {
		where = append(where, "c.rarity = ?")
		args = append(args, q.Rarity)
	}
	if q.MinPriceCents > 0 {
		where = append(where, "e.asking_price_cents >= ?")
		args = append(args, q.MinPriceCents)
	}
	if q.MaxPriceCents > 0 {
		where = append(where, "e.asking_price_cents <= ?")
		args = append(args, q.MaxPriceCents)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	countSQL := `SELECT COUNT(*)
		FROM inventory_entries e
		JOIN catalog_items c ON c.id = e.catalog_item_id
		WHERE ` + cond
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order, ok := listingOrder[q.Sort]
	if !ok {
		order = listingOrder[SortNewest]
	}
	offset := (q.Page - 1) * q.PageSize
	if offset < 0 {
		offset = 0
	}
	dataSQL := itemSelect + " WHERE " + cond + " ORDER BY " + order + " LIMIT ? OFFSET ?"
	items, err := r.queryItems(ctx, dataSQL, append(append([]any{}, args...), q.PageSize, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
