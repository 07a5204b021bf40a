package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/skin-marketplace/internal/access"
	"github.com/iliyamo/skin-marketplace/internal/config"
	"github.com/iliyamo/skin-marketplace/internal/database"
	"github.com/iliyamo/skin-marketplace/internal/handler"
	"github.com/iliyamo/skin-marketplace/internal/identity"
	"github.com/iliyamo/skin-marketplace/internal/logger"
	"github.com/iliyamo/skin-marketplace/internal/market"
	"github.com/iliyamo/skin-marketplace/internal/queue"
	"github.com/iliyamo/skin-marketplace/internal/realtime"
	"github.com/iliyamo/skin-marketplace/internal/repository"
	"github.com/iliyamo/skin-marketplace/internal/router"
	"github.com/iliyamo/skin-marketplace/internal/ticket"
)

func main() {
	cfg := config.Load()

	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		zl.Fatal("database connect failed", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		zl.Fatal("migrations failed", zap.Error(err))
	}

	// Redis is optional: without it the limiter is off and realtime
	// fan-out stays inside this process.
	rdb := config.NewRedisClient()
	var ps realtime.PubSub
	if rdb != nil {
		defer rdb.Close()
		ps = realtime.NewRedisPubSub(rdb, cfg.RealtimeBuffer)
		zl.Info("redis connected", zap.String("addr", rdb.Options().Addr))
	} else {
		ps = realtime.NewLocalPubSub(cfg.RealtimeBuffer)
		zl.Warn("redis unavailable; rate limiting off, realtime is process-local")
	}

	var pub queue.Publisher = queue.NopPublisher{}
	if cfg.RabbitURL != "" {
		pub = queue.NewAMQPPublisher(cfg.RabbitURL, zl)
		go func() {
			if err := queue.StartAuditConsumer(ctx, cfg.RabbitURL, zl); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("audit consumer stopped", zap.Error(err))
			}
		}()
	} else {
		zl.Warn("no broker configured; domain events are dropped")
	}

	users := repository.NewUserRepo(db)
	catalog := repository.NewCatalogRepo(db)
	policy := access.NewPolicy(cfg.AdminExternalIDs...)

	resolver := identity.NewResolver(users, policy, zl.Named("identity"))
	roles := access.NewRoles(users, pub, zl.Named("access"))
	marketSvc := market.NewService(market.NewSQLStore(db), pub, zl)
	tickets := ticket.NewManager(ticket.NewSQLStore(db), ps, pub, zl)

	ticketHandler := handler.NewTicketHandler(tickets, zl)
	e := router.New(router.Deps{
		JWTSecret: cfg.JWTSecret,
		RateLimit: config.LoadRateLimitConfig(),
		Redis:     rdb,
		Log:       zl,
		Users:     users,
		DB:        db,
		Auth:      handler.NewAuthHandler(cfg, identity.NewSteamProvider(cfg.SteamAPIKey), resolver, zl),
		Catalog:   handler.NewCatalogHandler(catalog, zl),
		Market:    handler.NewMarketHandler(marketSvc, zl),
		User:      handler.NewUserHandler(users, roles, zl),
		Tickets:   ticketHandler,
	})
	e.Server.RegisterOnShutdown(ticketHandler.Close)

	addr := ":" + cfg.Port
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown", zap.Error(err))
	}
}
