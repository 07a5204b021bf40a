package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/skin-marketplace/internal/model"
)

// TransactionRepo appends to and reads the purchase ledger.
type TransactionRepo struct{ db *sql.DB }

func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

// CreateTx inserts a ledger row inside the purchase transaction and fills in
// its id and created_at.
func (r *TransactionRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Transaction) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (seller_user_id, buyer_user_id, catalog_item_id, inventory_entry_id, price_cents, status)
		 VALUES (?,?,?,?,?,?)`,
		t.SellerUserID, t.BuyerUserID, t.CatalogItemID, t.InventoryEntryID, t.PriceCents, t.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return tx.QueryRowContext(ctx, "SELECT created_at FROM transactions WHERE id=?", t.ID).Scan(&t.CreatedAt)
}

const transactionSelect = `SELECT t.id,t.seller_user_id,t.buyer_user_id,t.catalog_item_id,t.inventory_entry_id,
       t.price_cents,t.status,t.created_at,
       c.name, s.display_name, b.display_name
  FROM transactions t
  JOIN catalog_items c ON c.id = t.catalog_item_id
  LEFT JOIN users s ON s.id = t.seller_user_id
  LEFT JOIN users b ON b.id = t.buyer_user_id`

func (r *TransactionRepo) query(ctx context.Context, q string, args ...any) ([]model.TransactionDetail, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.TransactionDetail{}
	for rows.Next() {
		var (
			d                     model.TransactionDetail
			seller, buyer, entry  sql.NullInt64
			sellerName, buyerName sql.NullString
		)
		if err := rows.Scan(&d.ID, &seller, &buyer, &d.CatalogItemID, &entry,
			&d.PriceCents, &d.Status, &d.CreatedAt,
			&d.ItemName, &sellerName, &buyerName); err != nil {
			return nil, err
		}
		d.SellerUserID = nullUint64Ptr(seller)
		d.BuyerUserID = nullUint64Ptr(buyer)
		d.InventoryEntryID = nullUint64Ptr(entry)
		d.SellerName = nullString(sellerName)
		d.BuyerName = nullString(buyerName)
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListForUser returns purchases and sales of userID, newest first.
func (r *TransactionRepo) ListForUser(ctx context.Context, userID uint64) ([]model.TransactionDetail, error) {
	return r.query(ctx, transactionSelect+" WHERE t.buyer_user_id=? OR t.seller_user_id=? ORDER BY t.created_at DESC, t.id DESC", userID, userID)
}

// ListAll returns the whole ledger, newest first.
func (r *TransactionRepo) ListAll(ctx context.Context) ([]model.TransactionDetail, error) {
	return r.query(ctx, transactionSelect+" ORDER BY t.created_at DESC, t.id DESC")
}
