package market

import (
	"context"
	"database/sql"

	"github.com/iliyamo/skin-marketplace/internal/model"
	"github.com/iliyamo/skin-marketplace/internal/repository"
)

// Store is the persistence the marketplace needs.  SQLStore is the MySQL
// implementation; tests use an in-memory one.
type Store interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (model.User, error)
	GetCatalogItem(ctx context.Context, id uint64) (model.CatalogItem, error)

	ListForSale(ctx context.Context, entryID, ownerID uint64, priceCents int64) error
	Inventory(ctx context.Context, ownerID uint64) ([]model.InventoryItem, error)
	Listings(ctx context.Context, q repository.ListingQuery) ([]model.InventoryItem, int64, error)
	Listing(ctx context.Context, id uint64) (model.InventoryItem, error)
	CreateEntry(ctx context.Context, ownerID, catalogItemID uint64) (model.InventoryEntry, error)

	TransactionsForUser(ctx context.Context, userID uint64) ([]model.TransactionDetail, error)
	AllTransactions(ctx context.Context) ([]model.TransactionDetail, error)

	// InTx runs fn in one atomic unit: every write made through tx is kept
	// when fn returns nil and discarded otherwise.
	InTx(ctx context.Context, fn func(tx PurchaseTx) error) error
}

// PurchaseTx is the write path of a purchase.  Lock methods hold the row
// until the unit ends.
type PurchaseTx interface {
	LockEntry(ctx context.Context, id uint64) (model.InventoryEntry, error)
	LockUser(ctx context.Context, id uint64) (model.User, error)
	AdjustBalance(ctx context.Context, userID uint64, deltaCents int64) error
	TransferEntry(ctx context.Context, entryID, newOwnerID uint64) error
	InsertTransaction(ctx context.Context, t *model.Transaction) error
}

// SQLStore implements Store on the MySQL repositories.
type SQLStore struct {
	db           *sql.DB
	users        *repository.UserRepo
	catalog      *repository.CatalogRepo
	inventory    *repository.InventoryRepo
	transactions *repository.TransactionRepo
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:           db,
		users:        repository.NewUserRepo(db),
		catalog:      repository.NewCatalogRepo(db),
		inventory:    repository.NewInventoryRepo(db),
		transactions: repository.NewTransactionRepo(db),
	}
}

func (s *SQLStore) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *SQLStore) GetUserByExternalID(ctx context.Context, externalID string) (model.User, error) {
	return s.users.GetByExternalID(ctx, externalID)
}

func (s *SQLStore) GetCatalogItem(ctx context.Context, id uint64) (model.CatalogItem, error) {
	return s.catalog.GetByID(ctx, id)
}

func (s *SQLStore) ListForSale(ctx context.Context, entryID, ownerID uint64, priceCents int64) error {
	return s.inventory.ListForSale(ctx, entryID, ownerID, priceCents)
}

func (s *SQLStore) Inventory(ctx context.Context, ownerID uint64) ([]model.InventoryItem, error) {
	return s.inventory.ByOwner(ctx, ownerID)
}

func (s *SQLStore) Listings(ctx context.Context, q repository.ListingQuery) ([]model.InventoryItem, int64, error) {
	return s.inventory.SearchListings(ctx, q)
}

func (s *SQLStore) Listing(ctx context.Context, id uint64) (model.InventoryItem, error) {
	return s.inventory.Listing(ctx, id)
}

func (s *SQLStore) CreateEntry(ctx context.Context, ownerID, catalogItemID uint64) (model.InventoryEntry, error) {
	return s.inventory.Create(ctx, ownerID, catalogItemID)
}

func (s *SQLStore) TransactionsForUser(ctx context.Context, userID uint64) ([]model.TransactionDetail, error) {
	return s.transactions.ListForUser(ctx, userID)
}

func (s *SQLStore) AllTransactions(ctx context.Context) ([]model.TransactionDetail, error) {
	return s.transactions.ListAll(ctx)
}

func (s *SQLStore) InTx(ctx context.Context, fn func(tx PurchaseTx) error) error {
	return repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&sqlPurchaseTx{tx: tx, s: s})
	})
}

type sqlPurchaseTx struct {
	tx *sql.Tx
	s  *SQLStore
}

func (p *sqlPurchaseTx) LockEntry(ctx context.Context, id uint64) (model.InventoryEntry, error) {
	return p.s.inventory.GetForUpdateTx(ctx, p.tx, id)
}

func (p *sqlPurchaseTx) LockUser(ctx context.Context, id uint64) (model.User, error) {
	return p.s.users.GetForUpdateTx(ctx, p.tx, id)
}

func (p *sqlPurchaseTx) AdjustBalance(ctx context.Context, userID uint64, deltaCents int64) error {
	return p.s.users.AdjustBalanceTx(ctx, p.tx, userID, deltaCents)
}

func (p *sqlPurchaseTx) TransferEntry(ctx context.Context, entryID, newOwnerID uint64) error {
	return p.s.inventory.TransferTx(ctx, p.tx, entryID, newOwnerID)
}

func (p *sqlPurchaseTx) InsertTransaction(ctx context.Context, t *model.Transaction) error {
	return p.s.transactions.CreateTx(ctx, p.tx, t)
}
