// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"varejo/internal/domain/auth"
	"varejo/internal/domain/costing"
	"varejo/internal/domain/sales"
	"varejo/internal/domain/syncsvc"
	"varejo/internal/infrastructure/http/v1/handlers"
	"varejo/internal/infrastructure/http/v1/middleware"
	"varejo/pkg/logger"

	coretx "varejo/internal/core/tx"
)

// RouterConfig wires the services into the router.
type RouterConfig struct {
	Pool *pgxpool.Pool

	Logger *logger.Logger

	TokenValidator middleware.TokenValidator

	AuthService    *auth.Service
	SyncService    *syncsvc.Service
	SalesService   *sales.Service
	CostingService *costing.Service
	TxManager      coretx.Manager
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	v1 := router.Group("/api/v1")
	{
		deviceHandler := handlers.NewDeviceHandler(cfg.AuthService)
		devices := v1.Group("/devices")
		{
			devices.POST("/register", deviceHandler.Register)
			devices.POST("/token", deviceHandler.Token)
		}

		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.TokenValidator))

		syncHandler := handlers.NewSyncHandler(cfg.SyncService)
		protected.POST("/sync/push", syncHandler.Push)
		protected.GET("/sync/pull", syncHandler.Pull)

		salesHandler := handlers.NewSalesHandler(cfg.SalesService)
		protected.POST("/sales/:id/confirm", salesHandler.Confirm)

		receiptHandler := handlers.NewReceiptHandler(cfg.CostingService, cfg.TxManager)
		protected.POST("/purchases/receipts", receiptHandler.Create)
	}

	return router
}
