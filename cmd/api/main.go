package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/freshpress/laundromat-backend/internal/api"
	"github.com/freshpress/laundromat-backend/internal/api/handlers"
	"github.com/freshpress/laundromat-backend/internal/auth"
	"github.com/freshpress/laundromat-backend/internal/cache"
	"github.com/freshpress/laundromat-backend/internal/config"
	"github.com/freshpress/laundromat-backend/internal/db"
	"github.com/freshpress/laundromat-backend/internal/gateway"
	"github.com/freshpress/laundromat-backend/internal/logger"
	"github.com/freshpress/laundromat-backend/internal/metrics"
	"github.com/freshpress/laundromat-backend/internal/middleware"
	"github.com/freshpress/laundromat-backend/internal/repository/postgres"
	"github.com/freshpress/laundromat-backend/internal/services"
	"github.com/freshpress/laundromat-backend/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if os.Getenv("APP_MIGRATE") == "true" {
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Error("migrations", "err", err)
			os.Exit(1)
		}
	}

	var walletCache *cache.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("redis connect", "err", err)
			os.Exit(1)
		}
		walletCache = cache.New(rdb)
	}

	metrics.Init()

	repos := postgres.NewRepositories(pool)
	wp := worker.NewPool(4)
	defer wp.Stop()

	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewaySecretKey, cfg.GatewaySecretHash)
	tm := auth.NewTokenManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTIssuer, cfg.AccessTTL, cfg.RefreshTTL)

	userSvc := services.NewUserService(repos.Users, repos.Wallets, tm)
	walletSvc := services.NewWalletService(
		repos.Users, repos.Wallets, repos.Transactions, repos.Notifications,
		gw, walletCache, wp,
		services.WalletConfig{
			Currency:    cfg.Currency,
			MinTopUp:    cfg.MinTopUp,
			RedirectURL: cfg.FrontendURL + "/wallet/verify",
		},
		log,
	)

	authH := handlers.NewAuthHandler(userSvc)
	walletH := handlers.NewWalletHandler(walletSvc, gw, cfg.FrontendURL, log)
	authMW := middleware.NewAuthMiddleware(tm)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(cfg, authH, walletH, authMW),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
