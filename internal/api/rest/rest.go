package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/feral-file/lt-indexer/internal/api/middleware"
	"github.com/feral-file/lt-indexer/internal/metrics"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check and metrics endpoints (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// API v1 routes (public read access)
	v1 := router.Group("/api/v1")
	{
		v1.GET("/instruments", handler.GetInstruments)
		v1.GET("/instruments/:address", handler.GetInstrument)

		v1.GET("/users", handler.ListUsers)
		v1.GET("/users/:address", handler.GetUser)
		v1.GET("/users/:address/trades", handler.GetUserTrades)
		v1.GET("/users/:address/pnl", handler.GetUserPnl)
		v1.GET("/users/:address/portfolio", handler.GetPortfolio)
		v1.GET("/users/:address/referrals", handler.GetUserReferrals)

		v1.GET("/referrals/codes/:code", handler.GetReferralCode)
		v1.GET("/referrers", handler.ListReferrers)

		v1.GET("/trades/latest", handler.GetLatestTrades)
		v1.GET("/trades/:id", handler.GetTrade)

		v1.GET("/stats", handler.GetStats)
		v1.GET("/stats/volume-chart", handler.GetVolumeChart)
		v1.GET("/global-storage", handler.GetGlobalStorage)

		// Admin endpoints (requires authentication)
		admin := v1.Group("/admin", middleware.Auth(authCfg))
		admin.POST("/users/:address/reconcile", handler.ReconcileUser)
	}
}
