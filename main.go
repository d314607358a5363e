package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hotspot-advisor/analysis"
	"hotspot-advisor/common"
	"hotspot-advisor/config"
	"hotspot-advisor/handlers"
	"hotspot-advisor/ledger"
	"hotspot-advisor/metrics"
	"hotspot-advisor/oracle"
	"hotspot-advisor/rabbitmq"
	"hotspot-advisor/telemetry"

	"github.com/apex/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const cacheCleanupInterval = time.Hour

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment")
	}

	cfg := config.Load()
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	metrics.Register()

	// Telemetry gateway
	var fallback telemetry.Source
	if cfg.TelemetryUseFallback {
		fallback = telemetry.NewStaticSource(telemetry.DefaultRecords())
	}
	gateway := telemetry.NewClient(
		telemetry.NewHTTPSource(cfg.TelemetryBaseURL, cfg.TelemetryTimeout, cfg.TelemetryRateLimit, cfg.WitnessWindowDays),
		fallback,
	)

	// Optional last-known-good quote cache
	var quoteCache oracle.QuoteCache
	stopCleanup := make(chan struct{})
	if cfg.DB.Enabled {
		db, err := common.DBConnect(cfg.DB.DSN())
		if err != nil {
			log.Errorf("Failed to connect to the database, running without quote cache: %v", err)
		} else {
			defer db.Close()
			sqlCache := oracle.NewSQLQuoteCache(db, cfg.QuoteCacheTTL)
			if err := sqlCache.CreateCacheTable(context.Background()); err != nil {
				log.Errorf("Failed to create price_quote_cache table: %v", err)
			} else {
				quoteCache = sqlCache
				go cleanQuoteCache(sqlCache, stopCleanup)
			}
		}
	}
	prices := oracle.NewClient(
		oracle.DefaultFeeds(),
		oracle.DefaultFallbackPrices(),
		oracle.NewHermesFeed(cfg.PriceFeedURL, cfg.PriceTimeout),
		quoteCache,
	)

	// Ledger notary; credentials are checked on first submission.
	notary := ledger.NewNotary(ledger.Credentials{
		RPCURL:     cfg.Ledger.RPCURL,
		AccountID:  cfg.Ledger.AccountID,
		PrivateKey: cfg.Ledger.PrivateKey,
	}, cfg.Ledger.MirrorURL, cfg.Ledger.Timeout, ledger.WithMirrorAPIKey(cfg.Ledger.MirrorKey))

	// Optional event publisher
	var publisher analysis.Publisher
	if amqpURL := cfg.RabbitMQ.GetAMQPURL(); amqpURL != "" {
		p, err := rabbitmq.NewPublisher(amqpURL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey)
		if err != nil {
			log.Errorf("Failed to initialize RabbitMQ publisher: %v", err)
		} else {
			defer p.Close()
			publisher = p
		}
	}

	engine := analysis.NewEngine(gateway, prices, notary, publisher, analysis.Options{
		HardwareCost:     cfg.HardwareCost,
		TokenSymbol:      cfg.TokenSymbol,
		RewardWindowDays: cfg.RewardWindowDays,
	})
	h := handlers.NewHandlers(engine, prices, notary)

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.GET("/version", h.Version)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	api := router.Group("/api/v1")
	{
		api.GET("/health", h.HealthCheck)
		api.POST("/analyze", h.Analyze)
		api.POST("/compare", h.Compare)
		api.GET("/prices", h.GetPrices)
		api.POST("/agent", h.Agent)
		api.POST("/ledger/topics", h.CreateLedgerTopic)
		api.GET("/ledger/:topic/:seq", h.GetLedgerMessage)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")
	close(stopCleanup)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

func cleanQuoteCache(cache *oracle.SQLQuoteCache, stop <-chan struct{}) {
	ticker := time.NewTicker(cacheCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := cache.CleanExpiredCache(context.Background()); err != nil {
				log.Warnf("Failed to clean price quote cache: %v", err)
			}
		case <-stop:
			return
		}
	}
}
