package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/iliyamo/skin-marketplace/internal/domain"
	"github.com/iliyamo/skin-marketplace/internal/model"
	"github.com/iliyamo/skin-marketplace/internal/repository"
)

var errInjected = errors.New("injected fault")

// memStore keeps everything in maps.  InTx serialises units on txMu, which
// stands in for the row locks MySQL takes, and applies a unit's writes
// only when it succeeds.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users   map[uint64]model.User
	entries map[uint64]model.InventoryEntry
	catalog map[uint64]model.CatalogItem
	txns    []model.Transaction
	nextID  uint64

	failOn    string
	lockOrder []uint64
	lastQuery repository.ListingQuery
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[uint64]model.User{},
		entries: map[uint64]model.InventoryEntry{},
		catalog: map[uint64]model.CatalogItem{1: {ID: 1, Name: "AK-47 | Redline"}},
		nextID:  100,
	}
}

func (s *memStore) addUser(id uint64, ext string, balance int64, admin bool) {
	s.users[id] = model.User{ID: id, ExternalID: ext, DisplayName: ext, BalanceCents: balance, IsAdmin: admin}
}

func (s *memStore) addEntry(id, owner uint64, price *int64) {
	s.entries[id] = model.InventoryEntry{ID: id, OwnerUserID: owner, CatalogItemID: 1, IsListed: price != nil, AskingPriceCents: price}
}

func (s *memStore) balance(id uint64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id].BalanceCents
}

func (s *memStore) entry(id uint64) model.InventoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[id]
}

func (s *memStore) transactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txns)
}

func cents(v int64) *int64 { return &v }

func notFoundErr(what string) error { return fmt.Errorf("%w: %s", domain.ErrNotFound, what) }

func (s *memStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, notFoundErr("user")
	}
	return u, nil
}

func (s *memStore) GetUserByExternalID(_ context.Context, ext string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ExternalID == ext {
			return u, nil
		}
	}
	return model.User{}, notFoundErr("user")
}

func (s *memStore) GetCatalogItem(_ context.Context, id uint64) (model.CatalogItem, error) {
	it, ok := s.catalog[id]
	if !ok {
		return model.CatalogItem{}, notFoundErr("catalog item")
	}
	return it, nil
}

func (s *memStore) ListForSale(_ context.Context, entryID, ownerID uint64, price int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok || e.OwnerUserID != ownerID {
		return notFoundErr("inventory entry")
	}
	e.IsListed, e.AskingPriceCents = true, cents(price)
	s.entries[entryID] = e
	return nil
}

func (s *memStore) items(keep func(model.InventoryEntry) bool) []model.InventoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.InventoryItem{}
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, model.InventoryItem{InventoryEntry: e, Item: s.catalog[e.CatalogItemID]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) Inventory(_ context.Context, ownerID uint64) ([]model.InventoryItem, error) {
	return s.items(func(e model.InventoryEntry) bool { return e.OwnerUserID == ownerID }), nil
}

// Listings ignores filters and ordering; it records the query it was
// given and paginates the listed entries by id.
func (s *memStore) Listings(_ context.Context, q repository.ListingQuery) ([]model.InventoryItem, int64, error) {
	s.mu.Lock()
	s.lastQuery = q
	s.mu.Unlock()
	all := s.items(func(e model.InventoryEntry) bool { return e.IsListed })
	from := min((q.Page-1)*q.PageSize, len(all))
	to := min(from+q.PageSize, len(all))
	return all[from:to], int64(len(all)), nil
}

func (s *memStore) Listing(_ context.Context, id uint64) (model.InventoryItem, error) {
	items := s.items(func(e model.InventoryEntry) bool { return e.IsListed && e.ID == id })
	if len(items) == 0 {
		return model.InventoryItem{}, notFoundErr("listing")
	}
	return items[0], nil
}

func (s *memStore) CreateEntry(_ context.Context, ownerID, catalogItemID uint64) (model.InventoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e := model.InventoryEntry{ID: s.nextID, OwnerUserID: ownerID, CatalogItemID: catalogItemID}
	s.entries[e.ID] = e
	return e, nil
}

func (s *memStore) TransactionsForUser(_ context.Context, userID uint64) ([]model.TransactionDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.TransactionDetail{}
	for _, t := range s.txns {
		if *t.BuyerUserID == userID || *t.SellerUserID == userID {
			out = append(out, model.TransactionDetail{Transaction: t})
		}
	}
	return out, nil
}

func (s *memStore) AllTransactions(context.Context) ([]model.TransactionDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.TransactionDetail{}
	for _, t := range s.txns {
		out = append(out, model.TransactionDetail{Transaction: t})
	}
	return out, nil
}

func (s *memStore) InTx(_ context.Context, fn func(tx PurchaseTx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	w := &memTx{store: s, users: map[uint64]model.User{}, entries: map[uint64]model.InventoryEntry{}, nextID: s.nextID}
	for k, v := range s.users {
		w.users[k] = v
	}
	for k, v := range s.entries {
		w.entries[k] = v
	}
	w.txns = append([]model.Transaction(nil), s.txns...)
	s.mu.Unlock()

	if err := fn(w); err != nil {
		return err
	}

	s.mu.Lock()
	s.users, s.entries, s.txns, s.nextID = w.users, w.entries, w.txns, w.nextID
	s.mu.Unlock()
	return nil
}

type memTx struct {
	store   *memStore
	users   map[uint64]model.User
	entries map[uint64]model.InventoryEntry
	txns    []model.Transaction
	nextID  uint64
}

func (t *memTx) fail(step string) error {
	if t.store.failOn == step {
		return errInjected
	}
	return nil
}

func (t *memTx) LockEntry(_ context.Context, id uint64) (model.InventoryEntry, error) {
	if err := t.fail("lock_entry"); err != nil {
		return model.InventoryEntry{}, err
	}
	e, ok := t.entries[id]
	if !ok {
		return model.InventoryEntry{}, notFoundErr("listing")
	}
	return e, nil
}

func (t *memTx) LockUser(_ context.Context, id uint64) (model.User, error) {
	if err := t.fail("lock_user"); err != nil {
		return model.User{}, err
	}
	t.store.lockOrder = append(t.store.lockOrder, id)
	u, ok := t.users[id]
	if !ok {
		return model.User{}, notFoundErr("user")
	}
	return u, nil
}

func (t *memTx) AdjustBalance(_ context.Context, userID uint64, delta int64) error {
	step := "credit"
	if delta < 0 {
		step = "debit"
	}
	if err := t.fail(step); err != nil {
		return err
	}
	u, ok := t.users[userID]
	if !ok {
		return notFoundErr("user")
	}
	if u.BalanceCents+delta < 0 {
		return errors.New("check constraint chk_users_balance violated")
	}
	u.BalanceCents += delta
	t.users[userID] = u
	return nil
}

func (t *memTx) TransferEntry(_ context.Context, entryID, newOwnerID uint64) error {
	if err := t.fail("transfer"); err != nil {
		return err
	}
	e, ok := t.entries[entryID]
	if !ok {
		return notFoundErr("inventory entry")
	}
	e.OwnerUserID, e.IsListed, e.AskingPriceCents = newOwnerID, false, nil
	t.entries[entryID] = e
	return nil
}

func (t *memTx) InsertTransaction(_ context.Context, txn *model.Transaction) error {
	if err := t.fail("insert_transaction"); err != nil {
		return err
	}
	t.nextID++
	txn.ID = t.nextID
	t.txns = append(t.txns, *txn)
	return nil
}
