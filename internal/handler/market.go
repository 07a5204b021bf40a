package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/skin-marketplace/internal/market"
	"github.com/iliyamo/skin-marketplace/internal/model"
	"github.com/iliyamo/skin-marketplace/internal/repository"
)

// MarketService is implemented by market.Service.
type MarketService interface {
	ListForSale(ctx context.Context, entryID, ownerID uint64, priceCents int64) error
	Inventory(ctx context.Context, userID uint64) ([]model.InventoryItem, error)
	Listings(ctx context.Context, q repository.ListingQuery) (market.ListingPage, error)
	Listing(ctx context.Context, id uint64) (model.InventoryItem, error)
	GrantItem(ctx context.Context, actorID uint64, ownerExternalID string, catalogItemID uint64) (model.InventoryEntry, error)
	Purchase(ctx context.Context, listingID, buyerID uint64) (model.Transaction, error)
	TransactionsForUser(ctx context.Context, userID uint64) ([]model.TransactionDetail, error)
	AllTransactions(ctx context.Context, actorID uint64) ([]model.TransactionDetail, error)
}

type MarketHandler struct {
	Market MarketService
	Log    *zap.Logger
}

func NewMarketHandler(svc MarketService, log *zap.Logger) *MarketHandler {
	return &MarketHandler{Market: svc, Log: log}
}

// ----- DTOs -----

// listReq lists an owned inventory entry.  The price rule lives in the
// service so a zero or negative price gets its domain message.
type listReq struct {
	InventoryID uint64 `json:"inventoryId" validate:"required"`
	PriceCents  int64  `json:"priceCents"`
}

type grantReq struct {
	OwnerExternalID string `json:"ownerExternalId" validate:"required,max=64"`
	CatalogItemID   uint64 `json:"catalogItemId" validate:"required"`
}

// Listings handles GET /marketplace?q=&rarity=&minPrice=&maxPrice=&sort=&page=&pageSize=.
// Prices are in cents.
func (h *MarketHandler) Listings(c echo.Context) error {
	q := repository.ListingQuery{
		Text:   c.QueryParam("q"),
		Rarity: c.QueryParam("rarity"),
		Sort:   c.QueryParam("sort"),
	}
	ints := []struct {
		name string
		dst  *int64
	}{{"minPrice", &q.MinPriceCents}, {"maxPrice", &q.MaxPriceCents}}
	for _, p := range ints {
		if v := c.QueryParam(p.name); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return badRequest(c, "invalid "+p.name)
			}
			*p.dst = n
		}
	}
	var err error
	if q.Page, err = queryInt(c, "page"); err != nil {
		return badRequest(c, "invalid page")
	}
	if q.PageSize, err = queryInt(c, "pageSize"); err != nil {
		return badRequest(c, "invalid pageSize")
	}

	page, err := h.Market.Listings(c.Request().Context(), q)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, page)
}

// queryInt parses an optional integer query parameter; absent is zero.
func queryInt(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// Listing handles GET /marketplace/:id.
func (h *MarketHandler) Listing(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	item, err := h.Market.Listing(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, item)
}

// Inventory handles GET /inventory for the session user.
func (h *MarketHandler) Inventory(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	items, err := h.Market.Inventory(c.Request().Context(), uid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListForSale handles POST /marketplace.
func (h *MarketHandler) ListForSale(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req listReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if err := h.Market.ListForSale(c.Request().Context(), req.InventoryID, uid, req.PriceCents); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"inventoryId": req.InventoryID, "priceCents": req.PriceCents, "listed": true})
}

// Purchase handles POST /marketplace/:id.
func (h *MarketHandler) Purchase(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	txn, err := h.Market.Purchase(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, txn)
}

// Transactions handles GET /transactions: the caller's trades as buyer
// or seller, newest first.
func (h *MarketHandler) Transactions(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	list, err := h.Market.TransactionsForUser(c.Request().Context(), uid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": list})
}

// AllTransactions handles GET /admin/transactions.
func (h *MarketHandler) AllTransactions(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	list, err := h.Market.AllTransactions(c.Request().Context(), uid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": list})
}

// Grant handles POST /admin/inventory.
func (h *MarketHandler) Grant(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req grantReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	entry, err := h.Market.GrantItem(c.Request().Context(), uid, req.OwnerExternalID, req.CatalogItemID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, entry)
}
