package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/skin-marketplace/internal/utils"
)

// JWTAuth validates the session token and stores the subject user id and
// external id in the context.  The token comes from the Authorization
// header; when allowQuery is set a ?token= parameter is accepted too, for
// EventSource clients that cannot send headers.
func JWTAuth(secret string, allowQuery bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := ""
			if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				raw = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			} else if allowQuery {
				raw = c.QueryParam("token")
			}
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token", "code": "UNAUTHORIZED"})
			}

			claims, err := utils.ParseSessionToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token", "code": "UNAUTHORIZED"})
			}
			id, _ := claims.UserID()
			c.Set(KeyUserID, id)
			c.Set(KeyExternalID, claims.ExternalID)
			return next(c)
		}
	}
}
