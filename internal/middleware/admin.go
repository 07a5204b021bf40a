package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/skin-marketplace/internal/access"
	"github.com/iliyamo/skin-marketplace/internal/domain"
)

// RequireAdmin aborts with 403 unless the authenticated user's persisted
// is_admin flag is set.  It must run after JWTAuth.  The flag is read on
// every request so a revoked admin loses access immediately.
func RequireAdmin(users access.UserGetter, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := UserID(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "code": "UNAUTHORIZED"})
			}
			_, err := access.RequireAdmin(c.Request().Context(), users, id)
			switch {
			case err == nil:
				return next(c)
			case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrNotFound):
				return c.JSON(http.StatusForbidden, echo.Map{"error": "administrator access required", "code": string(domain.CodeForbidden)})
			default:
				log.Error("admin check failed", zap.Error(err), zap.Uint64("user_id", id))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "code": string(domain.CodeInternal)})
			}
		}
	}
}
