// Package main is the entry point for the varejo sync server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"varejo/internal/domain/auth"
	"varejo/internal/domain/costing"
	"varejo/internal/domain/sales"
	"varejo/internal/domain/syncsvc"
	v1 "varejo/internal/infrastructure/http/v1"
	"varejo/internal/infrastructure/storage/postgres"
	"varejo/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting varejo server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	if maxConns := getEnvInt("DB_MAX_CONNS", 0); maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatalw("failed to apply schema", "error", err)
	}

	// --- Storage ---
	txManager := postgres.NewTxManager(pool)
	changelog, err := postgres.NewChangelog(txManager)
	if err != nil {
		log.Fatalw("failed to create changelog", "error", err)
	}
	syncRepo := postgres.NewSyncRepo(txManager, changelog)
	costingRepo := postgres.NewCostingRepo(txManager)
	salesRepo := postgres.NewSalesRepo(txManager)
	deviceRepo := postgres.NewDeviceRepo(txManager)
	coupons := postgres.NewCouponSequence(txManager)

	// --- Services ---
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(mustEnv("JWT_SECRET")))
	authService := auth.NewService(deviceRepo, jwtService)
	syncService := syncsvc.NewService(syncRepo, txManager)
	costingService := costing.NewService(costingRepo, changelog)
	salesService := sales.NewService(salesRepo, costingService, coupons, changelog, txManager)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:           pool.Pool,
		Logger:         log,
		TokenValidator: jwtService,
		AuthService:    authService,
		SyncService:    syncService,
		SalesService:   salesService,
		CostingService: costingService,
		TxManager:      txManager,
	})

	// --- HTTP server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
