package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/korepay/settlement-backend/internal/config"
	"github.com/korepay/settlement-backend/internal/handler"
	"github.com/korepay/settlement-backend/internal/middleware"
	"github.com/korepay/settlement-backend/internal/repository/postgres"
	"github.com/korepay/settlement-backend/internal/service"
	"github.com/korepay/settlement-backend/internal/websocket"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Connect to database
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	// Verify database connection
	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Connected to database")

	// Initialize repositories
	txRepo := postgres.NewVendorTransactionRepository(pool)
	batchRepo := postgres.NewSettlementBatchRepository(pool)
	candidateRepo := postgres.NewSettlementCandidateRepository(pool)
	walletRepo := postgres.NewWalletRepository(pool)
	pricingRepo := postgres.NewPricingRepository(pool)
	merchantRepo := postgres.NewMerchantRepository(pool)
	franchiseRepo := postgres.NewFranchiseRepository(pool)

	// Initialize WebSocket hub for live settlement events
	hub := websocket.NewHub()

	// Initialize services
	walletService := service.NewWalletService(walletRepo)
	pricingService := service.NewPricingService(pricingRepo)
	candidateService := service.NewCandidateService(merchantRepo, txRepo)
	batchService := service.NewBatchService(batchRepo, candidateRepo, txRepo, merchantRepo, franchiseRepo, candidateService)
	franchiseService := service.NewFranchiseService(franchiseRepo, merchantRepo, batchRepo, candidateService, batchService)

	processor := service.NewBatchProcessor(batchRepo, candidateRepo, txRepo, pricingService, log.Logger, service.BatchProcessorConfig{
		Workers:   cfg.Processor.Workers,
		QueueSize: cfg.Processor.QueueSize,
	})

	// Wire live event publishing
	walletService.SetEventPublisher(hub)
	processor.SetEventPublisher(hub)

	// Start the batch processor worker pool
	processorCtx, cancelProcessor := context.WithCancel(context.Background())
	defer cancelProcessor()
	processor.Start(processorCtx)

	// Initialize auth middleware
	authMiddleware, err := middleware.NewAuthMiddleware(cfg.Auth0Domain, cfg.Auth0Audience)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create auth middleware")
	}

	// Per-caller rate limiting on the settlement API
	rateLimiter := middleware.NewRateLimiter()
	defer rateLimiter.Stop()

	// WebSocket token validation
	wsValidator, err := websocket.NewAuth0JWTValidator(cfg.Auth0Domain, cfg.Auth0Audience)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create websocket token validator")
	}

	// Initialize handlers
	settlementHandler := handler.NewSettlementHandler(batchService, processor)
	franchiseHandler := handler.NewFranchiseHandler(franchiseService, batchService, processor)
	walletHandler := handler.NewWalletHandler(walletService)
	wsHandler := handler.NewWebSocketHandler(hub, wsValidator, cfg.CORSOrigins)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request ID middleware
	e.Use(echomiddleware.RequestID())

	// CORS middleware
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Security headers middleware (helmet-like)
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	// Request logging middleware with zerolog
	e.Use(zerologMiddleware())

	// Recovery middleware
	e.Use(echomiddleware.Recover())

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Register API routes
	handler.RegisterRoutes(e, authMiddleware, rateLimiter, settlementHandler, franchiseHandler, walletHandler, wsHandler)

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Drain the processor after the HTTP surface stops accepting work.
	// Batches still PROCESSING at this point are recovered through resume.
	processor.Stop()

	log.Info().Msg("Server exited")
}

// zerologMiddleware returns a middleware that logs requests using zerolog
func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			log.Info().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Msg("request")

			return nil
		}
	}
}
