// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/skin-marketplace/internal/access"
	"github.com/iliyamo/skin-marketplace/internal/config"
	"github.com/iliyamo/skin-marketplace/internal/handler"
	"github.com/iliyamo/skin-marketplace/internal/middleware"
)

// Deps is everything the route table needs.  Redis may be nil, which turns
// rate limiting off.
type Deps struct {
	JWTSecret string
	RateLimit config.RateLimitConfig
	Redis     *redis.Client
	Log       *zap.Logger
	Users     access.UserGetter
	DB        handler.Pinger

	Auth    *handler.AuthHandler
	Catalog *handler.CatalogHandler
	Market  *handler.MarketHandler
	User    *handler.UserHandler
	Tickets *handler.TicketHandler
}

// New returns an echo instance with the global middleware chain and every
// route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()

	e.Use(
		middleware.Recover(d.Log),
		middleware.RequestID(),
		middleware.Logger(d.Log),
		middleware.Metrics(),
	)

	RegisterPublic(e, d)
	RegisterUser(e, d)
	RegisterAdmin(e, d)
	return e
}

// RegisterPublic registers routes that need no session.
func RegisterPublic(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	if d.DB != nil {
		e.GET("/readyz", handler.Ready(d.DB))
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.GET("/auth/steam/login", d.Auth.Login)
	e.GET("/auth/steam/callback", d.Auth.Callback)

	e.GET("/catalog", d.Catalog.List)
	e.GET("/catalog/:id", d.Catalog.Get)
	e.GET("/marketplace", d.Market.Listings)
	e.GET("/marketplace/:id", d.Market.Listing)
}

// RegisterUser registers routes that require a session.  Purchases and
// ticket writes go through the token bucket.  Middleware is attached per
// route: a group with an empty prefix would answer unknown paths with 401.
func RegisterUser(e *echo.Echo, d Deps) {
	auth := middleware.JWTAuth(d.JWTSecret, false)
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log)

	e.GET("/users/profile", d.User.Profile, auth)
	e.PATCH("/users/profile", d.User.UpdateProfile, auth)

	e.GET("/inventory", d.Market.Inventory, auth)
	e.POST("/marketplace", d.Market.ListForSale, auth)
	e.POST("/marketplace/:id", d.Market.Purchase, auth, limit)
	e.GET("/transactions", d.Market.Transactions, auth)

	e.GET("/tickets", d.Tickets.List, auth)
	e.POST("/tickets", d.Tickets.Create, auth, limit)
	e.GET("/tickets/:id", d.Tickets.Get, auth)
	e.PATCH("/tickets/:id", d.Tickets.SetStatus, auth)
	e.GET("/tickets/:id/messages", d.Tickets.Messages, auth)
	e.POST("/tickets/:id/messages", d.Tickets.PostMessage, auth, limit)

	// EventSource cannot set headers, so the stream also takes ?token=.
	e.GET("/tickets/:id/stream", d.Tickets.Stream, middleware.JWTAuth(d.JWTSecret, true))
}

// RegisterAdmin registers routes that require the persisted admin flag.
func RegisterAdmin(e *echo.Echo, d Deps) {
	g := e.Group("/admin",
		middleware.JWTAuth(d.JWTSecret, false),
		middleware.RequireAdmin(d.Users, d.Log),
	)
	g.GET("/transactions", d.Market.AllTransactions)
	g.DELETE("/tickets/:id", d.Tickets.Delete)
	g.DELETE("/tickets", d.Tickets.DeleteAll)
	g.POST("/inventory", d.Market.Grant)
	g.PATCH("/users/:externalId/role", d.User.SetRole)
}
