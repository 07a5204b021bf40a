// Package handler contains the echo HTTP handlers.  Handlers bind and
// validate input, call a service and map domain errors onto status codes;
// they hold no business rules of their own.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/skin-marketplace/internal/domain"
	"github.com/iliyamo/skin-marketplace/internal/middleware"
)

var errNoUser = errors.New("invalid user_id in context")

// statusOf maps a domain code onto its HTTP status.
func statusOf(code domain.Code) int {
	switch code {
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeForbidden:
		return http.StatusForbidden
	case domain.CodeInvalidInput:
		return http.StatusBadRequest
	case domain.CodeInsufficientFunds:
		return http.StatusPaymentRequired
	case domain.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error","code"}.  Internal errors are logged
// and replaced by a generic message.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	code := domain.CodeOf(err)
	msg := err.Error()
	if code == domain.CodeInternal {
		log.Error("request failed",
			zap.Error(err),
			zap.String("request_id", middleware.RequestIDOf(c)),
			zap.String("path", c.Path()),
		)
		msg = "internal error"
	}
	return c.JSON(statusOf(code), echo.Map{"error": msg, "code": string(code)})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": string(domain.CodeInvalidInput)})
}

// getUserID returns the session user set by middleware.JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, errNoUser
	}
	return id, nil
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "code": "UNAUTHORIZED"})
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}

// bindValid binds the request body into req and runs struct validation.
// On failure it has already written the 400 response and returns false.
func bindValid(c echo.Context, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, badRequest(c, "invalid body")
	}
	return validated(c, req)
}

// validated runs struct validation on an already bound request.
func validated(c echo.Context, req any) (bool, error) {
	if err := c.Validate(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{
			"error":  domain.ErrMsgInvalidInput,
			"code":   string(domain.CodeInvalidInput),
			"fields": FormatValidationError(err),
		})
	}
	return true, nil
}
