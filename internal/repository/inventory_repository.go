package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/skin-marketplace/internal/model"
)

// InventoryRepo manages inventory_entries.  An entry with is_listed=TRUE
// is a marketplace listing; there is no separate listings table.
type InventoryRepo struct{ db *sql.DB }

func NewInventoryRepo(db *sql.DB) *InventoryRepo { return &InventoryRepo{db: db} }

const entryColumns = "id,owner_user_id,catalog_item_id,is_listed,asking_price_cents,created_at,updated_at"

const itemSelect = `SELECT e.id,e.owner_user_id,e.catalog_item_id,e.is_listed,e.asking_price_cents,e.created_at,e.updated_at,
       ` + catalogColumns + `,
       u.display_name,u.external_id
  FROM inventory_entries e
  JOIN catalog_items c ON c.id = e.catalog_item_id
  JOIN users u ON u.id = e.owner_user_id`

func scanEntry(row rowScanner) (model.InventoryEntry, error) {
	var (
		e     model.InventoryEntry
		price sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.OwnerUserID, &e.CatalogItemID, &e.IsListed, &price, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return model.InventoryEntry{}, err
	}
	if price.Valid {
		p := price.Int64
		e.AskingPriceCents = &p
	}
	return e, nil
}

func scanItem(row rowScanner) (model.InventoryItem, error) {
	var (
		it                          model.InventoryItem
		price                       sql.NullInt64
		desc, img, weapon, wearName sql.NullString
	)
	err := row.Scan(
		&it.ID, &it.OwnerUserID, &it.CatalogItemID, &it.IsListed, &price, &it.CreatedAt, &it.UpdatedAt,
		&it.Item.ID, &it.Item.Name, &it.Item.Rarity, &desc, &img, &weapon, &wearName,
		&it.Item.ReferencePriceCents, &it.Item.CreatedAt,
		&it.SellerName, &it.SellerID,
	)
	if err != nil {
		return model.InventoryItem{}, err
	}
	if price.Valid {
		p := price.Int64
		it.AskingPriceCents = &p
	}
	it.Item.Description = nullString(desc)
	it.Item.ImageURL = nullString(img)
	it.Item.Weapon = nullString(weapon)
	it.Item.Wear = nullString(wearName)
	return it, nil
}

func (r *InventoryRepo) queryItems(ctx context.Context, q string, args ...any) ([]model.InventoryItem, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []model.InventoryItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListForSale marks the entry as listed at priceCents.  Ownership is part
// of the predicate, so an entry owned by someone else is reported exactly
// like a missing one.
func (r *InventoryRepo) ListForSale(ctx context.Context, entryID, ownerID uint64, priceCents int64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE inventory_entries SET is_listed=TRUE, asking_price_cents=? WHERE id=? AND owner_user_id=?",
		priceCents, entryID, ownerID)
	return expectOne(res, err, "inventory entry")
}

// ByOwner returns the user's entries, listed or not, newest first.
func (r *InventoryRepo) ByOwner(ctx context.Context, ownerID uint64) ([]model.InventoryItem, error) {
	return r.queryItems(ctx, itemSelect+" WHERE e.owner_user_id=? ORDER BY e.created_at DESC, e.id DESC", ownerID)
}

// Listing returns one entry that is currently for sale.
func (r *InventoryRepo) Listing(ctx context.Context, id uint64) (model.InventoryItem, error) {
	it, err := scanItem(r.db.QueryRowContext(ctx, itemSelect+" WHERE e.id=? AND e.is_listed=TRUE", id))
	return it, notFound(err, "listing")
}

// Create inserts an unlisted entry owned by ownerID.
func (r *InventoryRepo) Create(ctx context.Context, ownerID, catalogItemID uint64) (model.InventoryEntry, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO inventory_entries (owner_user_id, catalog_item_id) VALUES (?,?)",
		ownerID, catalogItemID)
	if err != nil {
		return model.InventoryEntry{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.InventoryEntry{}, err
	}
	e, err := scanEntry(r.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM inventory_entries WHERE id=?", id))
	return e, notFound(err, "inventory entry")
}

// GetForUpdateTx reads and locks an entry until the transaction ends.
// Concurrent purchases of one listing serialise here.
func (r *InventoryRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.InventoryEntry, error) {
	e, err := scanEntry(tx.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM inventory_entries WHERE id=? FOR UPDATE", id))
	return e, notFound(err, "listing")
}

// TransferTx hands the entry to newOwnerID and takes it off the market.
func (r *InventoryRepo) TransferTx(ctx context.Context, tx *sql.Tx, id, newOwnerID uint64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE inventory_entries SET owner_user_id=?, is_listed=FALSE, asking_price_cents=NULL WHERE id=?",
		newOwnerID, id)
	return expectOne(res, err, "inventory entry")
}
