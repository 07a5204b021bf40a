package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/skin-marketplace/internal/model"
)

// CatalogReader is satisfied by repository.CatalogRepo.
type CatalogReader interface {
	List(ctx context.Context) ([]model.CatalogItem, error)
	GetByID(ctx context.Context, id uint64) (model.CatalogItem, error)
}

type CatalogHandler struct {
	Catalog CatalogReader
	Log     *zap.Logger
}

func NewCatalogHandler(catalog CatalogReader, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{Catalog: catalog, Log: log}
}

// List returns every catalog item.
func (h *CatalogHandler) List(c echo.Context) error {
	items, err := h.Catalog.List(c.Request().Context())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get returns one catalog item.
func (h *CatalogHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	item, err := h.Catalog.GetByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, item)
}
