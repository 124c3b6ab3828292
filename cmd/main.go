package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"supplier-import-service/internal/categorylink"
	"supplier-import-service/internal/clients"
	"supplier-import-service/internal/config"
	"supplier-import-service/internal/events"
	"supplier-import-service/internal/handlers"
	"supplier-import-service/internal/jobs"
	"supplier-import-service/internal/middleware"
	"supplier-import-service/internal/reconcile"
	"supplier-import-service/internal/repository"
	"supplier-import-service/internal/services"
)

// @title Supplier Import API
// @version 1.0.0
// @description Supplier product ingestion pipeline: staging queue, reconciliation, pricing and catalog import
// @termsOfService http://swagger.io/terms/

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8093
// @BasePath /api/v1

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Redis is optional: caching degrades to direct reads without it.
	var redisClient *redis.Client
	if redisOpts, err := redis.ParseURL(cfg.RedisURL); err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (continuing without Redis)", err)
	} else {
		redisClient = redis.NewClient(redisOpts)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("WARNING: Failed to connect to Redis: %v (caching will be disabled)", err)
			redisClient = nil
		} else {
			log.Println("✓ Redis connected successfully")
		}
		cancel()
	}

	// Repositories
	queueRepo := repository.NewQueueRepository(db, redisClient)
	catalogRepo := repository.NewCatalogRepository(db, redisClient)
	categoryRepo := repository.NewCategoryRepository(db, redisClient)

	// Event publisher only if NATS_URL is set
	var eventsPublisher *events.Publisher
	if cfg.NATSURL != "" {
		eventsPublisher, err = events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			log.Printf("WARNING: Failed to initialize events publisher: %v (continuing without event publishing)", err)
		} else {
			log.Println("✓ Events publisher initialized (NATS connected)")
		}
	} else {
		log.Println("NATS_URL not set, skipping event publishing initialization")
	}
	defer eventsPublisher.Close()

	// Supplier API client with retry, rate limiting and circuit breaking
	supplierClient := clients.NewHTTPSupplierClient(clients.SupplierClientConfig{
		BaseURL:        cfg.SupplierAPIBaseURL,
		APIKey:         cfg.SupplierAPIKey,
		Timeout:        cfg.SupplierAPITimeout,
		RequestsPerSec: cfg.SupplierAPIRateLimit,
		Burst:          cfg.SupplierAPIBurst,
		MaxRetries:     cfg.SupplierAPIRetries,
	}, logger)

	// Pipeline
	reconciler := reconcile.New(reconcile.Config{
		StockBuffer:             cfg.StockBuffer,
		PreferredCarrierPattern: cfg.PreferredCarrier,
	}, logger)
	previewService := services.NewPreviewService(supplierClient, reconciler, services.PricingConfig{
		Rules:       cfg.PricingRules,
		DefaultRule: cfg.DefaultPricingRule,
		Rates:       cfg.CurrencyRates,
		DefaultRate: cfg.DefaultRate,
		Destination: cfg.DestinationCountry,
		FreightQty:  cfg.FreightQty,
	}, cfg.FreightWorkers, logger)
	linker := categorylink.NewLinker(categoryRepo, logger)
	importService := services.NewImportService(queueRepo, catalogRepo, previewService, linker, eventsPublisher, cfg.ImportWorkers, logger)

	// Handlers
	queueHandler := handlers.NewQueueHandler(importService, queueRepo)
	exportHandler := handlers.NewExportHandler(queueRepo)
	mappingHandler := handlers.NewCategoryMappingHandler(categoryRepo)

	// Stale pending escalation job
	jobCtx, jobCancel := context.WithCancel(context.Background())
	staleJob := jobs.NewStalePendingJob(queueRepo, logger, cfg.StaleCheckInterval, cfg.StalePendingAge)
	go staleJob.Start(jobCtx)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	// Health check endpoints
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.ReadinessCheck)

	v1 := router.Group("/api/v1")
	{
		queue := v1.Group("/import-queue")
		{
			queue.POST("", queueHandler.Enqueue)
			queue.GET("", queueHandler.ListQueue)
			queue.GET("/stats", queueHandler.GetStats)
			queue.GET("/export", exportHandler.ExportQueue)
			queue.GET("/:id/preview", queueHandler.Preview)
			queue.PATCH("/:id/price", queueHandler.UpdatePrice)
			queue.POST("/approve", queueHandler.Approve)
			queue.POST("/reject", queueHandler.Reject)
			queue.POST("/restore", queueHandler.Restore)
			queue.POST("/import", queueHandler.Import)
			queue.POST("/delete", queueHandler.Delete)
		}

		v1.POST("/category-mappings", mappingHandler.CreateMapping)
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Supplier import service starting on port %s", cfg.Port)
		if err := router.Run(":" + cfg.Port); err != nil {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-quit
	log.Println("Shutting down supplier import service...")
	staleJob.Stop()
	jobCancel()
	log.Println("Supplier import service stopped")
}
