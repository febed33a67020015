// Package main is the entry point for the wallet API.
// It wires storage, the ledger services and the HTTP server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pearlbingo/internal/config"
	"pearlbingo/internal/handlers"
	"pearlbingo/internal/logger"
	"pearlbingo/internal/middleware"
	"pearlbingo/internal/repositories"
	"pearlbingo/internal/repositories/cache"
	"pearlbingo/internal/repositories/memory"
	"pearlbingo/internal/routes"
	"pearlbingo/internal/services/cards"
	"pearlbingo/internal/services/fraud"
	"pearlbingo/internal/services/gateway"
	"pearlbingo/internal/services/notification"
	"pearlbingo/internal/services/purchase"
	"pearlbingo/internal/services/wallet"
	"pearlbingo/internal/services/webhook"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()

	zl, err := logger.New(cfg.Env == "production")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	checks := map[string]handlers.Pinger{}

	// Storage
	var store repositories.Store
	var db *gorm.DB
	switch cfg.StoreDriver {
	case "memory":
		zl.Warn("using in-memory store, balances are lost on restart")
		store = memory.NewStore()
	default:
		db, err = repositories.OpenPostgres(cfg)
		if err != nil {
			zl.Fatal("failed to open database", zap.Error(err))
		}
		sqlDB, err := db.DB()
		if err != nil {
			zl.Fatal("failed to get database instance", zap.Error(err))
		}
		checks["database"] = sqlDB.PingContext
		store = repositories.NewGormStore(db)
		zl.Info("connected to database")
	}

	// Redis backs the fraud counters and notifications. Without it the
	// process keeps serving with local counters and no push.
	var counter cache.Counter = cache.NewMemoryCounter()
	var notifier notification.Notifier = notification.Nop{}
	rdb := cache.NewRedisClient(cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		zl.Warn("redis unavailable, falling back to in-process counters", zap.Error(err))
		_ = rdb.Close()
		rdb = nil
	} else {
		counter = cache.NewRedisCounter(rdb)
		notifier = notification.NewService(rdb, zl)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	cancel()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Services
	wallets := wallet.NewService(store, wallet.Config{
		DailySpendLimit:   cfg.Ledger.DailySpendLimit,
		MonthlySpendLimit: cfg.Ledger.MonthlySpendLimit,
		CommissionRate:    cfg.Ledger.CommissionRate,
		StrictCheck:       cfg.Ledger.StrictCheck,
	}, zl, wallet.NewPrometheusCollector(reg))

	purchases := purchase.NewService(store, wallets, cards.NewRandomGenerator(), notifier, purchase.Config{
		MaxCardsPerPurchase: cfg.Purchase.MaxCardsPerPurchase,
		DefaultCardPrice:    cfg.Purchase.DefaultCardPrice,
	}, zl)

	guard := fraud.NewGuard(counter, fraud.Config{
		MaxAttempts:           cfg.Fraud.MaxAttempts,
		AttemptWindow:         cfg.Fraud.AttemptWindow,
		NewAccountAge:         cfg.Fraud.NewAccountAge,
		NewAccountLargeAmount: cfg.Fraud.NewAccountLargeAmount,
		MaxMethodsPerIP:       cfg.Fraud.MaxMethodsPerIP,
		MethodWindow:          cfg.Fraud.MethodWindow,
		MinAmount:             cfg.Gateway.MinDeposit,
		MaxAmount:             cfg.Gateway.MaxDeposit,
	}, zl)

	bank, err := gateway.NewBankReferences(cfg.Gateway.HashidsSalt)
	if err != nil {
		zl.Fatal("failed to build bank reference encoder", zap.Error(err))
	}
	if cfg.Gateway.StripeSecretKey == "" {
		zl.Warn("STRIPE_SECRET_KEY is not set, card charges will fail")
	}
	if cfg.Gateway.WebhookSecret == "" {
		zl.Warn("WEBHOOK_SECRET is not set, every webhook will be rejected")
	}
	gw := gateway.NewService(store,
		gateway.NewStripeClient(cfg.Gateway.StripeSecretKey, cfg.Gateway.Timeout),
		wallets, guard, bank, notifier,
		gateway.Config{
			Currency:              cfg.Gateway.Currency,
			Timeout:               cfg.Gateway.Timeout,
			MaxRetries:            cfg.Gateway.MaxRetries,
			DepositExpiry:         cfg.Gateway.DepositExpiry,
			PearlsPerCurrencyUnit: cfg.Gateway.PearlsPerCurrencyUnit,
			MinDeposit:            cfg.Gateway.MinDeposit,
			MaxDeposit:            cfg.Gateway.MaxDeposit,
			WebhookSecret:         cfg.Gateway.WebhookSecret,
			WebhookTolerance:      cfg.Gateway.WebhookTolerance,
			BankName:              cfg.Gateway.BankName,
			BankAccount:           cfg.Gateway.BankAccount,
		}, zl)

	pipeline := webhook.NewPipeline(store, gw, notifier, webhook.NewMetrics(reg), zl)

	// HTTP
	app := fiber.New(fiber.Config{
		AppName:      "pearlbingo",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: config.GetEnv("CORS_ORIGINS", "http://localhost:5173"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,HEAD,OPTIONS",
	}))
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use("/api/deposits", limiter.New(limiter.Config{
		Max:        10,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
				"code":  "RATE_LIMITED",
			})
		},
	}))

	routes.SetupRoutes(app, routes.Handlers{
		Auth:     middleware.NewAuthMiddleware(cfg.JWTSecret, zl),
		Wallet:   handlers.NewWalletHandler(wallets, store.Users(), zl),
		Deposit:  handlers.NewDepositHandler(gw, zl),
		Purchase: handlers.NewPurchaseHandler(purchases, zl),
		Admin:    handlers.NewAdminHandler(wallets, purchases, gw, zl),
		Webhook:  handlers.NewWebhookHandler(pipeline, zl),
		Health:   handlers.NewHealthHandler(checks),
		Metrics:  reg,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepExpiredDeposits(ctx, gw, cfg.Gateway.ExpirySweepInterval, zl)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			zl.Error("server stopped", zap.Error(err))
			stop()
		}
	}()
	zl.Info("server started", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver))

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zl.Error("failed to shut down server", zap.Error(err))
	}
	closeBackends(db, rdb, zl)
}

// sweepExpiredDeposits closes pending deposits whose window has passed.
func sweepExpiredDeposits(ctx context.Context, gw gateway.Service, interval time.Duration, zl *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := gw.ExpireStaleDeposits(ctx, now)
			if err != nil {
				zl.Error("deposit expiry sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				zl.Info("expired stale deposits", zap.Int("count", n))
			}
		}
	}
}

func closeBackends(db *gorm.DB, rdb *redis.Client, zl *zap.Logger) {
	if db != nil {
		if err := repositories.Close(db); err != nil {
			zl.Warn("failed to close database connection", zap.Error(err))
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			zl.Warn("failed to close redis connection", zap.Error(err))
		}
	}
}
