package middleware

import "github.com/labstack/echo/v4"

// Context keys set by JWTAuth and RequestID.
const (
	KeyUserID     = "user_id"
	KeyExternalID = "external_id"
	KeyRequestID  = "request_id"
)

// UserID returns the authenticated user id stored by JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(KeyUserID).(uint64)
	return id, ok && id != 0
}

// RequestIDOf returns the id assigned to the current request.
func RequestIDOf(c echo.Context) string {
	s, _ := c.Get(KeyRequestID).(string)
	return s
}
