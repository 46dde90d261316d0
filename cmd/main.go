package main

import (
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"stock-sync-service/internal/clients/cin7"
	"stock-sync-service/internal/config"
	"stock-sync-service/internal/database"
	"stock-sync-service/internal/handlers"
	"stock-sync-service/internal/middleware"
	"stock-sync-service/internal/models"
	"stock-sync-service/internal/repository"
	"stock-sync-service/internal/services"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Environment == "development" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logger.SetLevel(logrus.DebugLevel)
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL, cfg.SQLitePath, cfg.Environment)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto-migrate models
	if err := db.AutoMigrate(
		&models.Product{},
		&models.OrderLine{},
		&models.StockLevel{},
		&models.SyncState{},
		&models.SyncRun{},
		&models.SyncRunLog{},
		&models.SyncLock{},
	); err != nil {
		logger.Fatalf("Auto-migration failed: %v", err)
	}
	logger.Info("Database models migrated")

	// Initialize inventory API client
	client := cin7.NewClient(cin7.Options{
		BaseURL:        cfg.Cin7BaseURL,
		AccountID:      cfg.Cin7AccountID,
		APIKey:         cfg.Cin7APIKey,
		ListInterval:   cfg.ListInterval,
		DetailInterval: cfg.DetailInterval,
		Logger:         logger,
	})

	// Initialize repositories
	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)
	stockRepo := repository.NewStockRepository(db)
	syncRepo := repository.NewSyncRepository(db)

	// Initialize services
	syncService := services.NewSyncService(client, orderRepo, productRepo, stockRepo, syncRepo, cfg, logger)
	velocityService := services.NewVelocityService(orderRepo, stockRepo, cfg, logger)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db)
	syncHandler := handlers.NewSyncHandler(syncService)
	metricsHandler := handlers.NewMetricsHandler(velocityService)
	catalogHandler := handlers.NewCatalogHandler(productRepo, stockRepo, orderRepo)

	router := setupRouter(cfg, logger, healthHandler, syncHandler, metricsHandler, catalogHandler)

	logger.Infof("Stock Sync Service starting on port %s (env: %s)", cfg.Port, cfg.Environment)
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}

// setupRouter configures the HTTP router
func setupRouter(
	cfg *config.Config,
	logger *logrus.Logger,
	healthHandler *handlers.HealthHandler,
	syncHandler *handlers.SyncHandler,
	metricsHandler *handlers.MetricsHandler,
	catalogHandler *handlers.CatalogHandler,
) *gin.Engine {
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeaders())

	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	var origins []string
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	} else {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(middleware.CORS(origins))

	// Health checks
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		sync := v1.Group("/sync")
		{
			sync.POST("/orders", syncHandler.TriggerOrders)
			sync.POST("/products", syncHandler.TriggerProducts)
			sync.POST("/stock", syncHandler.TriggerStock)
			sync.GET("/status", syncHandler.GetStatus)
			sync.GET("/runs", syncHandler.ListRuns)
			sync.GET("/runs/:id", syncHandler.GetRun)
			sync.POST("/runs/:id/cancel", syncHandler.CancelRun)
			sync.GET("/runs/:id/logs", syncHandler.GetRunLogs)
		}

		metrics := v1.Group("/metrics")
		{
			metrics.GET("/velocity", metricsHandler.GetVelocity)
			metrics.GET("/reorder", metricsHandler.GetReorderPoints)
			metrics.GET("/recommendations", metricsHandler.GetRecommendations)
		}

		v1.GET("/products", catalogHandler.ListProducts)
		v1.GET("/products/:sku", catalogHandler.GetProduct)
		v1.GET("/stock", catalogHandler.ListStock)
		v1.GET("/orders", catalogHandler.ListOrders)
	}

	return router
}
