package market

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/skin-marketplace/internal/domain"
	"github.com/iliyamo/skin-marketplace/internal/metrics"
	"github.com/iliyamo/skin-marketplace/internal/model"
	"github.com/iliyamo/skin-marketplace/internal/queue"
	"github.com/iliyamo/skin-marketplace/internal/repository"
)

const (
	userA uint64 = 1
	userB uint64 = 2
	userC uint64 = 3
	admin uint64 = 9

	itemX uint64 = 50
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, ev queue.Event) error {
	return m.Called(ctx, ev).Error(0)
}

// exampleStore: A has 10.00 and owns X, B has 5.00, C has 20.00.
func exampleStore() *memStore {
	s := newMemStore()
	s.addUser(userA, "A", 1000, false)
	s.addUser(userB, "B", 500, false)
	s.addUser(userC, "C", 2000, false)
	s.addUser(admin, "admin", 0, true)
	s.addEntry(itemX, userA, nil)
	return s
}

func newService(s *memStore) *Service {
	return NewService(s, queue.NopPublisher{}, zap.NewNop())
}

func TestPurchaseWalkthrough(t *testing.T) {
	ctx := context.Background()
	store := exampleStore()
	svc := newService(store)

	require.NoError(t, svc.ListForSale(ctx, itemX, userA, 750))

	_, err := svc.Purchase(ctx, itemX, userB)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, userA, store.entry(itemX).OwnerUserID)
	assert.Equal(t, int64(1000), store.balance(userA))
	assert.Equal(t, int64(500), store.balance(userB))
	assert.Zero(t, store.transactionCount())

	txn, err := svc.Purchase(ctx, itemX, userC)
	require.NoError(t, err)
	assert.Equal(t, int64(1750), store.balance(userA))
	assert.Equal(t, int64(1250), store.balance(userC))
	e := store.entry(itemX)
	assert.Equal(t, userC, e.OwnerUserID)
	assert.False(t, e.IsListed)
	assert.Nil(t, e.AskingPriceCents)
	assert.Equal(t, int64(750), txn.PriceCents)
	assert.Equal(t, model.TransactionStatusCompleted, txn.Status)
	assert.Equal(t, userA, *txn.SellerUserID)
	assert.Equal(t, userC, *txn.BuyerUserID)
	assert.Equal(t, 1, store.transactionCount())
}

func TestPurchaseAlreadySold(t *testing.T) {
	ctx := context.Background()
	store := exampleStore()
	svc := newService(store)
	require.NoError(t, svc.ListForSale(ctx, itemX, userA, 750))
	_, err := svc.Purchase(ctx, itemX, userC)
	require.NoError(t, err)

	_, err = svc.Purchase(ctx, itemX, userB)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPurchasePreconditionOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("missing listing", func(t *testing.T) {
		_, err := newService(exampleStore()).Purchase(ctx, 404, userC)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
	t.Run("unlisted entry", func(t *testing.T) {
		_, err := newService(exampleStore()).Purchase(ctx, itemX, userC)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
	t.Run("missing buyer beats funds", func(t *testing.T) {
		store := exampleStore()
		store.addEntry(itemX, userA, cents(100000))
		_, err := newService(store).Purchase(ctx, itemX, 77)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
	t.Run("own listing", func(t *testing.T) {
		store := exampleStore()
		store.addEntry(itemX, userA, cents(100))
		_, err := newService(store).Purchase(ctx, itemX, userA)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Equal(t, int64(1000), store.balance(userA))
		assert.Zero(t, store.transactionCount())
	})
	t.Run("exact balance succeeds", func(t *testing.T) {
		store := exampleStore()
		store.addEntry(itemX, userA, cents(500))
		_, err := newService(store).Purchase(ctx, itemX, userB)
		require.NoError(t, err)
		assert.Zero(t, store.balance(userB))
	})
}

func TestPurchaseLocksUsersInAscendingOrder(t *testing.T) {
	store := exampleStore()
	store.addEntry(itemX, userC, cents(100))
	_, err := newService(store).Purchase(context.Background(), itemX, userA)
	require.NoError(t, err)
	assert.Equal(t, []uint64{userA, userC}, store.lockOrder)
}

func TestPurchaseRollsBackOnFaultAtEveryStep(t *testing.T) {
	for _, step := range []string{"lock_entry", "lock_user", "debit", "credit", "transfer", "insert_transaction"} {
		t.Run(step, func(t *testing.T) {
			store := exampleStore()
			store.addEntry(itemX, userA, cents(750))
			store.failOn = step

			_, err := newService(store).Purchase(context.Background(), itemX, userC)
			assert.ErrorIs(t, err, errInjected)
			assert.Equal(t, domain.CodeInternal, domain.CodeOf(err))

			assert.Equal(t, int64(1000), store.balance(userA))
			assert.Equal(t, int64(2000), store.balance(userC))
			e := store.entry(itemX)
			assert.Equal(t, userA, e.OwnerUserID)
			assert.True(t, e.IsListed)
			assert.Equal(t, int64(750), *e.AskingPriceCents)
			assert.Zero(t, store.transactionCount())
		})
	}
}

func TestConcurrentPurchasesOneWinner(t *testing.T) {
	store := newMemStore()
	store.addUser(userA, "A", 0, false)
	const buyers = 16
	for i := uint64(0); i < buyers; i++ {
		store.addUser(10+i, "buyer", 1000, false)
	}
	store.addEntry(itemX, userA, cents(600))
	svc := newService(store)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		notFound int
		winner   uint64
	)
	for i := uint64(0); i < buyers; i++ {
		wg.Add(1)
		go func(buyer uint64) {
			defer wg.Done()
			_, err := svc.Purchase(context.Background(), itemX, buyer)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
				winner = buyer
			case domain.CodeOf(err) == domain.CodeNotFound:
				notFound++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(10 + i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, buyers-1, notFound)
	assert.Equal(t, winner, store.entry(itemX).OwnerUserID)
	assert.Equal(t, int64(600), store.balance(userA))
	assert.Equal(t, int64(400), store.balance(winner))

	var total int64
	for id := range store.users {
		total += store.balance(id)
	}
	assert.Equal(t, int64(buyers*1000), total)
	assert.Equal(t, 1, store.transactionCount())
}

func TestPurchasePublishesEventAndCountsMetric(t *testing.T) {
	store := exampleStore()
	store.addEntry(itemX, userA, cents(750))
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(ev queue.Event) bool {
		return ev.Type == queue.EventPurchaseCompleted
	})).Return(nil).Once()

	before := testutil.ToFloat64(metrics.PurchasesTotal.WithLabelValues(metrics.ResultCompleted))
	_, err := NewService(store, pub, zap.NewNop()).Purchase(context.Background(), itemX, userC)
	require.NoError(t, err)
	pub.AssertExpectations(t)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.PurchasesTotal.WithLabelValues(metrics.ResultCompleted)))
}

func TestPurchaseSucceedsWhenPublishFails(t *testing.T) {
	store := exampleStore()
	store.addEntry(itemX, userA, cents(750))
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(assert.AnError)

	_, err := NewService(store, pub, zap.NewNop()).Purchase(context.Background(), itemX, userC)
	assert.NoError(t, err)
	assert.Equal(t, userC, store.entry(itemX).OwnerUserID)
}

func TestListForSale(t *testing.T) {
	ctx := context.Background()

	t.Run("non-positive price checked before ownership", func(t *testing.T) {
		store := exampleStore()
		for _, p := range []int64{0, -1} {
			assert.ErrorIs(t, newService(store).ListForSale(ctx, 404, userB, p), domain.ErrInvalidInput)
		}
	})
	t.Run("foreign entry", func(t *testing.T) {
		for _, p := range []int64{1, 750, 1 << 40} {
			err := newService(exampleStore()).ListForSale(ctx, itemX, userB, p)
			assert.ErrorIs(t, err, domain.ErrNotFound)
		}
	})
	t.Run("relist overwrites price", func(t *testing.T) {
		store := exampleStore()
		svc := newService(store)
		require.NoError(t, svc.ListForSale(ctx, itemX, userA, 750))
		require.NoError(t, svc.ListForSale(ctx, itemX, userA, 900))
		e := store.entry(itemX)
		assert.True(t, e.IsListed)
		assert.Equal(t, int64(900), *e.AskingPriceCents)

		listing, err := svc.Listing(ctx, itemX)
		require.NoError(t, err)
		assert.Equal(t, "AK-47 | Redline", listing.Item.Name)
		page, err := svc.Listings(ctx, repository.ListingQuery{})
		require.NoError(t, err)
		assert.Len(t, page.Items, 1)
		assert.Equal(t, int64(1), page.Total)
	})
}

func TestListings_NormalisesQuery(t *testing.T) {
	ctx := context.Background()
	store := exampleStore()
	svc := newService(store)

	page, err := svc.Listings(ctx, repository.ListingQuery{Text: "  redline ", PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 100, page.PageSize)
	assert.Equal(t, "redline", store.lastQuery.Text)
	assert.Equal(t, repository.SortNewest, store.lastQuery.Sort)

	page, err = svc.Listings(ctx, repository.ListingQuery{Sort: repository.SortPriceDesc})
	require.NoError(t, err)
	assert.Equal(t, 24, page.PageSize)

	page, err = svc.Listings(ctx, repository.ListingQuery{Page: math.MaxInt, PageSize: 100})
	require.NoError(t, err)
	assert.Equal(t, 10000, page.Page)
	assert.Equal(t, 10000, store.lastQuery.Page)
	assert.Empty(t, page.Items)

	for _, q := range []repository.ListingQuery{
		{Sort: "cheapest"},
		{MinPriceCents: -1},
		{MinPriceCents: 900, MaxPriceCents: 100},
	} {
		_, err := svc.Listings(ctx, q)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "%+v", q)
	}
}

func TestGrantItem(t *testing.T) {
	ctx := context.Background()
	store := exampleStore()
	svc := newService(store)

	_, err := svc.GrantItem(ctx, userA, "B", 1)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.GrantItem(ctx, admin, "nobody", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GrantItem(ctx, admin, "B", 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GrantItem(ctx, admin, "", 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	e, err := svc.GrantItem(ctx, admin, "B", 1)
	require.NoError(t, err)
	assert.Equal(t, userB, e.OwnerUserID)
	assert.False(t, e.IsListed)

	inv, err := svc.Inventory(ctx, userB)
	require.NoError(t, err)
	assert.Len(t, inv, 1)
}

func TestTransactionViews(t *testing.T) {
	ctx := context.Background()
	store := exampleStore()
	store.addEntry(itemX, userA, cents(750))
	svc := newService(store)
	_, err := svc.Purchase(ctx, itemX, userC)
	require.NoError(t, err)

	mine, err := svc.TransactionsForUser(ctx, userC)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	none, err := svc.TransactionsForUser(ctx, userB)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = svc.AllTransactions(ctx, userC)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	all, err := svc.AllTransactions(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
