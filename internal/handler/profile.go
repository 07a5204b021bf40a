package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/skin-marketplace/internal/model"
)

// ProfileStore is satisfied by repository.UserRepo.
type ProfileStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdateTradeURL(ctx context.Context, id uint64, tradeURL *string) error
}

// RoleSetter is implemented by access.Roles.
type RoleSetter interface {
	SetAdmin(ctx context.Context, actorID uint64, targetExternalID string, isAdmin bool) (model.User, error)
}

type UserHandler struct {
	Users ProfileStore
	Roles RoleSetter
	Log   *zap.Logger
}

func NewUserHandler(users ProfileStore, roles RoleSetter, log *zap.Logger) *UserHandler {
	return &UserHandler{Users: users, Roles: roles, Log: log}
}

// profileReq updates the profile.  An empty or absent tradeUrl clears it.
type profileReq struct {
	TradeURL *string `json:"tradeUrl" validate:"omitempty,max=512,http_url"`
}

type roleReq struct {
	IsAdmin *bool `json:"isAdmin" validate:"required"`
}

// Profile handles GET /users/profile.
func (h *UserHandler) Profile(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	u, err := h.Users.GetByID(c.Request().Context(), uid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, u)
}

// UpdateProfile handles PATCH /users/profile.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.TradeURL != nil {
		if v := strings.TrimSpace(*req.TradeURL); v == "" {
			req.TradeURL = nil
		} else {
			req.TradeURL = &v
		}
	}
	if ok, err := validated(c, &req); !ok {
		return err
	}

	ctx := c.Request().Context()
	if err := h.Users.UpdateTradeURL(ctx, uid, req.TradeURL); err != nil {
		return respondError(c, h.Log, err)
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, u)
}

// SetRole handles PATCH /admin/users/:externalId/role.
func (h *UserHandler) SetRole(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req roleReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	u, err := h.Roles.SetAdmin(c.Request().Context(), uid, c.Param("externalId"), *req.IsAdmin)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, u)
}
