package handler

import (
	"github.com/korepay/settlement-backend/internal/middleware"
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, rateLimiter *middleware.RateLimiter, settlementHandler *SettlementHandler, franchiseHandler *FranchiseHandler, walletHandler *WalletHandler, wsHandler *WebSocketHandler) {
	// API version 1
	api := e.Group("/api/v1")

	// Merchant settlement routes (protected)
	merchants := api.Group("/merchants")
	merchants.Use(authMiddleware.Authenticate())
	merchants.Use(middleware.RateLimitMiddleware(rateLimiter))
	merchants.POST("/:id/settlement/batches", settlementHandler.CreateBatch)
	merchants.GET("/:id/settlement/batches/:batchId", settlementHandler.GetBatch)
	merchants.GET("/:id/settlement/batches/:batchId/candidates", settlementHandler.GetCandidates)
	merchants.POST("/:id/settlement/batches/:batchId/candidates", settlementHandler.UpdateCandidates)
	merchants.POST("/:id/settlement/batches/:batchId/process", settlementHandler.Process)
	merchants.POST("/:id/settlement/batches/:batchId/resume", settlementHandler.Resume)
	merchants.GET("/:id/settlement/batches/:batchId/progress", settlementHandler.GetProgress)
	merchants.GET("/:id/wallet", walletHandler.GetMerchantWallet)

	// Franchise bulk settlement routes (protected)
	franchises := api.Group("/franchises")
	franchises.Use(authMiddleware.Authenticate())
	franchises.Use(middleware.RateLimitMiddleware(rateLimiter))
	franchises.POST("/:id/bulk-settlement/batches", franchiseHandler.CreateBatch)
	franchises.GET("/:id/bulk-settlement/batches/:batchId", franchiseHandler.GetBatch)
	franchises.GET("/:id/bulk-settlement/batches/:batchId/candidates", franchiseHandler.GetCandidates)
	franchises.POST("/:id/bulk-settlement/batches/:batchId/process", franchiseHandler.Process)
	franchises.POST("/:id/bulk-settlement/batches/:batchId/resume", franchiseHandler.Resume)
	franchises.GET("/:id/bulk-settlement/batches/:batchId/progress", franchiseHandler.GetProgress)
	franchises.GET("/:id/wallet", walletHandler.GetFranchiseWallet)

	// WebSocket endpoint (token validated in handler, not middleware)
	e.GET("/ws", wsHandler.HandleWS)
}
