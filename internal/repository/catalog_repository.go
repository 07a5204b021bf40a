package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/skin-marketplace/internal/model"
)

// CatalogRepo reads the immutable skin catalog.
type CatalogRepo struct{ db *sql.DB }

func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{db: db} }

const catalogColumns = "c.id,c.name,c.rarity,c.description,c.image_url,c.weapon,c.wear,c.reference_price_cents,c.created_at"

func scanCatalogItem(row rowScanner, extra ...any) (model.CatalogItem, error) {
	var (
		it                          model.CatalogItem
		desc, img, weapon, wearName sql.NullString
	)
	dest := append([]any{&it.ID, &it.Name, &it.Rarity, &desc, &img, &weapon, &wearName,
		&it.ReferencePriceCents, &it.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return model.CatalogItem{}, err
	}
	it.Description = nullString(desc)
	it.ImageURL = nullString(img)
	it.Weapon = nullString(weapon)
	it.Wear = nullString(wearName)
	return it, nil
}

// List returns every catalog item ordered by name.
func (r *CatalogRepo) List(ctx context.Context) ([]model.CatalogItem, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+catalogColumns+" FROM catalog_items c ORDER BY c.name, c.id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []model.CatalogItem{}
	for rows.Next() {
		it, err := scanCatalogItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetByID returns a single catalog item.
func (r *CatalogRepo) GetByID(ctx context.Context, id uint64) (model.CatalogItem, error) {
	it, err := scanCatalogItem(r.db.QueryRowContext(ctx,
		"SELECT "+catalogColumns+" FROM catalog_items c WHERE c.id=?", id))
	return it, notFound(err, "catalog item")
}
