package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/skin-marketplace/internal/config"
	"github.com/iliyamo/skin-marketplace/internal/domain"
	"github.com/iliyamo/skin-marketplace/internal/metrics"
	"github.com/iliyamo/skin-marketplace/internal/model"
	"github.com/iliyamo/skin-marketplace/internal/utils"
)

const secret = "test-secret"

func whoami(c echo.Context) error {
	id, _ := UserID(c)
	return c.JSON(http.StatusOK, echo.Map{"id": id, "ext": c.Get(KeyExternalID)})
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, id uint64) string {
	t.Helper()
	tok, err := utils.NewSessionToken(secret, id, fmt.Sprintf("ext-%d", id), 5)
	require.NoError(t, err)
	return tok.Token
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret, false))
	e.GET("/stream", whoami, JWTAuth(secret, true))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, 7))
	rec := serve(e, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":7,"ext":"ext-7"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/me?token="+token(t, 7), nil)
	assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/stream?token="+token(t, 7), nil)
	assert.Equal(t, http.StatusOK, serve(e, req).Code)
}

type users map[uint64]model.User

func (u users) GetByID(_ context.Context, id uint64) (model.User, error) {
	if v, ok := u[id]; ok {
		return v, nil
	}
	return model.User{}, domain.ErrNotFound
}

func TestRequireAdmin(t *testing.T) {
	store := users{1: {ID: 1, IsAdmin: true}, 2: {ID: 2}}
	e := echo.New()
	e.GET("/admin", whoami, JWTAuth(secret, false), RequireAdmin(store, zap.NewNop()))

	for id, want := range map[uint64]int{1: http.StatusOK, 2: http.StatusForbidden, 3: http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, id))
		assert.Equal(t, want, serve(e, req).Code, "user %d", id)
	}
}

func TestRequestID(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, RequestIDOf(c)) })

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
	assert.Equal(t, rec.Header().Get(headerRequestID), rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(headerRequestID, "abc-123")
	assert.Equal(t, "abc-123", serve(e, req).Body.String())
}

func TestRecover(t *testing.T) {
	e := echo.New()
	e.Use(Recover(zap.NewNop()))
	e.GET("/boom", func(c echo.Context) error { panic("boom") })
	assert.Equal(t, http.StatusInternalServerError, serve(e, httptest.NewRequest(http.MethodGet, "/boom", nil)).Code)
}

func TestMetricsUseRouteTemplate(t *testing.T) {
	e := echo.New()
	e.Use(Metrics())
	e.GET("/tickets/:id", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/tickets/:id", "204")
	before := testutil.ToFloat64(counter)
	serve(e, httptest.NewRequest(http.MethodGet, "/tickets/1", nil))
	serve(e, httptest.NewRequest(http.MethodGet, "/tickets/2", nil))
	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestTokenBucket(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            2 * time.Hour,
		KeyStrategy:    "user_route",
		Prefix:         "rl",
	}
	e := echo.New()
	e.POST("/buy", whoami, JWTAuth(secret, false), NewTokenBucket(cfg, rdb, zap.NewNop()))

	do := func(id uint64) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/buy", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, id))
		return serve(e, req)
	}
	assert.Equal(t, http.StatusOK, do(1).Code)
	rec := do(1)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do(1)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do(2).Code)
}

func TestTokenBucketFailsOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, Prefix: "rl"}

	e := echo.New()
	e.GET("/", whoami, NewTokenBucket(cfg, rdb, zap.NewNop()))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/x")
	c.Set(KeyUserID, uint64(5))

	assert.Equal(t, "rl:user:5:route:POST /x", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user_route"}, c))
	assert.Equal(t, "rl:ip:10.0.0.1", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip"}, c))
}
