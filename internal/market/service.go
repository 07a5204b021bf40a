// Package market implements the inventory ledger and the purchase
// transactor.  All money is integer cents.
package market

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/skin-marketplace/internal/access"
	"github.com/iliyamo/skin-marketplace/internal/domain"
	"github.com/iliyamo/skin-marketplace/internal/metrics"
	"github.com/iliyamo/skin-marketplace/internal/model"
	"github.com/iliyamo/skin-marketplace/internal/queue"
	"github.com/iliyamo/skin-marketplace/internal/repository"
)

type Service struct {
	store Store
	pub   queue.Publisher
	log   *zap.Logger
}

func NewService(store Store, pub queue.Publisher, log *zap.Logger) *Service {
	return &Service{store: store, pub: pub, log: log.Named("market")}
}

// ListForSale puts an owned entry on the market at priceCents.  Listing an
// already listed entry overwrites its price.
func (s *Service) ListForSale(ctx context.Context, entryID, ownerID uint64, priceCents int64) error {
	if priceCents <= 0 {
		return fmt.Errorf("%w: price must be positive", domain.ErrInvalidInput)
	}
	if err := s.store.ListForSale(ctx, entryID, ownerID, priceCents); err != nil {
		return err
	}
	metrics.ListingsTotal.Inc()
	s.log.Info("entry listed", zap.Uint64("entry_id", entryID), zap.Uint64("owner_id", ownerID), zap.Int64("price_cents", priceCents))
	return nil
}

// Inventory returns every entry the user owns.
func (s *Service) Inventory(ctx context.Context, userID uint64) ([]model.InventoryItem, error) {
	return s.store.Inventory(ctx, userID)
}

const (
	defaultPageSize = 24
	maxPageSize     = 100
	maxPage         = 10000
)

// ListingPage is one page of marketplace search results.
type ListingPage struct {
	Items    []model.InventoryItem `json:"items"`
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"pageSize"`
}

// Listings searches entries currently for sale.  Page defaults to 1 and is
// capped at 10000; PageSize defaults to 24, capped at 100.
func (s *Service) Listings(ctx context.Context, q repository.ListingQuery) (ListingPage, error) {
	q.Text = strings.TrimSpace(q.Text)
	q.Rarity = strings.TrimSpace(q.Rarity)
	switch {
	case q.Sort == "":
		q.Sort = repository.SortNewest
	case !repository.ValidSort(q.Sort):
		return ListingPage{}, fmt.Errorf("%w: unknown sort %q", domain.ErrInvalidInput, q.Sort)
	}
	if q.MinPriceCents < 0 || q.MaxPriceCents < 0 {
		return ListingPage{}, fmt.Errorf("%w: price bounds must not be negative", domain.ErrInvalidInput)
	}
	if q.MaxPriceCents > 0 && q.MinPriceCents > q.MaxPriceCents {
		return ListingPage{}, fmt.Errorf("%w: minPrice exceeds maxPrice", domain.ErrInvalidInput)
	}
	switch {
	case q.Page < 1:
		q.Page = 1
	case q.Page > maxPage:
		q.Page = maxPage
	}
	switch {
	case q.PageSize <= 0:
		q.PageSize = defaultPageSize
	case q.PageSize > maxPageSize:
		q.PageSize = maxPageSize
	}

	items, total, err := s.store.Listings(ctx, q)
	if err != nil {
		return ListingPage{}, err
	}
	return ListingPage{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

// Listing returns one entry currently for sale.
func (s *Service) Listing(ctx context.Context, id uint64) (model.InventoryItem, error) {
	return s.store.Listing(ctx, id)
}

// GrantItem adds an unlisted copy of a catalog item to a user's inventory.
// Admin only.
func (s *Service) GrantItem(ctx context.Context, actorID uint64, ownerExternalID string, catalogItemID uint64) (model.InventoryEntry, error) {
	ownerExternalID = strings.TrimSpace(ownerExternalID)
	if ownerExternalID == "" || catalogItemID == 0 {
		return model.InventoryEntry{}, fmt.Errorf("%w: owner and catalog item are required", domain.ErrInvalidInput)
	}
	if _, err := access.RequireAdmin(ctx, s.store, actorID); err != nil {
		return model.InventoryEntry{}, err
	}
	owner, err := s.store.GetUserByExternalID(ctx, ownerExternalID)
	if err != nil {
		return model.InventoryEntry{}, err
	}
	if _, err := s.store.GetCatalogItem(ctx, catalogItemID); err != nil {
		return model.InventoryEntry{}, err
	}
	entry, err := s.store.CreateEntry(ctx, owner.ID, catalogItemID)
	if err != nil {
		return model.InventoryEntry{}, err
	}
	s.log.Info("item granted", zap.Uint64("actor_id", actorID), zap.Uint64("owner_id", owner.ID), zap.Uint64("entry_id", entry.ID))
	return entry, nil
}

// Purchase moves a listed entry to the buyer and the asking price from the
// buyer to the seller.  Checks, in order: the listing is for sale, the
// buyer exists, the buyer is not the seller, the buyer can afford it.
// Every write happens in one unit; on any failure nothing changes.
func (s *Service) Purchase(ctx context.Context, listingID, buyerID uint64) (model.Transaction, error) {
	var txn model.Transaction
	err := s.store.InTx(ctx, func(tx PurchaseTx) error {
		entry, err := tx.LockEntry(ctx, listingID)
		if err != nil {
			return err
		}
		if !entry.IsListed || entry.AskingPriceCents == nil {
			return fmt.Errorf("%w: listing is not for sale", domain.ErrNotFound)
		}
		price := *entry.AskingPriceCents
		sellerID := entry.OwnerUserID

		buyer, err := lockParties(ctx, tx, buyerID, sellerID)
		if err != nil {
			return err
		}
		if buyerID == sellerID {
			return fmt.Errorf("%w: cannot buy your own listing", domain.ErrInvalidInput)
		}
		if buyer.BalanceCents < price {
			return fmt.Errorf("%w: balance %d cents is below the asking price of %d cents",
				domain.ErrInsufficientFunds, buyer.BalanceCents, price)
		}

		if err := tx.AdjustBalance(ctx, buyerID, -price); err != nil {
			return fmt.Errorf("debit buyer: %w", err)
		}
		if err := tx.AdjustBalance(ctx, sellerID, price); err != nil {
			return fmt.Errorf("credit seller: %w", err)
		}
		if err := tx.TransferEntry(ctx, entry.ID, buyerID); err != nil {
			return fmt.Errorf("transfer entry: %w", err)
		}
		entryID := entry.ID
		txn = model.Transaction{
			SellerUserID:     &sellerID,
			BuyerUserID:      &buyerID,
			CatalogItemID:    entry.CatalogItemID,
			InventoryEntryID: &entryID,
			PriceCents:       price,
			Status:           model.TransactionStatusCompleted,
		}
		if err := tx.InsertTransaction(ctx, &txn); err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		metrics.PurchasesTotal.WithLabelValues(purchaseResult(err)).Inc()
		return model.Transaction{}, err
	}
	metrics.PurchasesTotal.WithLabelValues(metrics.ResultCompleted).Inc()
	s.log.Info("purchase completed",
		zap.Uint64("transaction_id", txn.ID),
		zap.Uint64("listing_id", listingID),
		zap.Uint64("buyer_id", buyerID),
		zap.Int64("price_cents", txn.PriceCents))
	s.publishPurchase(ctx, listingID, txn)
	return txn, nil
}

// lockParties locks buyer and seller in ascending id order, so two
// purchases touching the same pair of users never deadlock, and returns
// the buyer.
func lockParties(ctx context.Context, tx PurchaseTx, buyerID, sellerID uint64) (model.User, error) {
	ids := []uint64{buyerID}
	if sellerID != buyerID {
		if sellerID < buyerID {
			ids = []uint64{sellerID, buyerID}
		} else {
			ids = append(ids, sellerID)
		}
	}
	var buyer model.User
	for _, id := range ids {
		u, err := tx.LockUser(ctx, id)
		if err != nil {
			if id == buyerID && errors.Is(err, domain.ErrNotFound) {
				return model.User{}, fmt.Errorf("%w: buyer", domain.ErrNotFound)
			}
			return model.User{}, err
		}
		if id == buyerID {
			buyer = u
		}
	}
	return buyer, nil
}

func (s *Service) publishPurchase(ctx context.Context, listingID uint64, txn model.Transaction) {
	ev, err := queue.NewEvent(queue.EventPurchaseCompleted, queue.PurchaseCompleted{
		TransactionID: txn.ID,
		ListingID:     listingID,
		CatalogItemID: txn.CatalogItemID,
		SellerUserID:  *txn.SellerUserID,
		BuyerUserID:   *txn.BuyerUserID,
		PriceCents:    txn.PriceCents,
	})
	if err == nil {
		err = s.pub.Publish(ctx, ev)
	}
	if err != nil {
		s.log.Warn("purchase event not published", zap.Error(err), zap.Uint64("transaction_id", txn.ID))
	}
}

func purchaseResult(err error) string {
	switch domain.CodeOf(err) {
	case domain.CodeNotFound:
		return metrics.ResultNotFound
	case domain.CodeInsufficientFunds:
		return metrics.ResultInsufficientFunds
	case domain.CodeInvalidInput:
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}

// TransactionsForUser returns the user's purchases and sales, newest first.
func (s *Service) TransactionsForUser(ctx context.Context, userID uint64) ([]model.TransactionDetail, error) {
	return s.store.TransactionsForUser(ctx, userID)
}

// AllTransactions returns the full ledger.  Admin only.
func (s *Service) AllTransactions(ctx context.Context, actorID uint64) ([]model.TransactionDetail, error) {
	if _, err := access.RequireAdmin(ctx, s.store, actorID); err != nil {
		return nil, err
	}
	return s.store.AllTransactions(ctx)
}
