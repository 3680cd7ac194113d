package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appbilling "github.com/logiserv/billing/internal/application/billing"
	"github.com/logiserv/billing/internal/domain/invoicing"
	"github.com/logiserv/billing/internal/domain/pricing"
	"github.com/logiserv/billing/internal/infrastructure/config"
	"github.com/logiserv/billing/internal/infrastructure/logger"
	"github.com/logiserv/billing/internal/infrastructure/persistence"
	"github.com/logiserv/billing/internal/infrastructure/sequence"
	"github.com/logiserv/billing/internal/interfaces/http/handler"
	"github.com/logiserv/billing/internal/interfaces/http/middleware"
	"github.com/logiserv/billing/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting billing engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := db.AutoMigrate(); err != nil {
		log.Fatal("Failed to migrate database schema", zap.Error(err))
	}
	log.Info("Database connected successfully")

	contractRepo := persistence.NewGormContractRepository(db.DB)
	ruleRepo := persistence.NewGormPricingRuleRepository(db.DB)
	usageRepo := persistence.NewGormUsageRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)

	var sequencer invoicing.Sequencer = persistence.NewDatabaseSequencer(invoiceRepo)
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn("Redis unavailable, falling back to database sequencer", zap.Error(err))
		} else {
			sequencer = sequence.NewRedisSequencer(redisClient, invoiceRepo)
			log.Info("Redis sequencer enabled", zap.String("addr", cfg.Redis.Addr()))
		}
	}

	calculator := pricing.NewCalculator(usageRepo)
	defaults := appbilling.BillingDefaults{
		TaxRate:             cfg.Billing.TaxRate(),
		PaymentTermDays:     cfg.Billing.DefaultPaymentTermDays,
		NumberingMaxRetries: cfg.Billing.NumberingMaxRetries,
		BatchWorkers:        cfg.Billing.BatchWorkers,
	}

	pricingService := appbilling.NewPricingService(contractRepo, ruleRepo, usageRepo, calculator, log)
	invoiceService := appbilling.NewInvoiceService(
		contractRepo, ruleRepo, usageRepo, invoiceRepo, sequencer, calculator, defaults, log,
	)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Failed to set trusted proxies", zap.Error(err))
		}
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.CORSWithConfig(corsConfig),
		middleware.Secure(),
	)

	engine.GET("/healthz", healthHandler(db))

	r := router.NewRouter(engine)
	r.Register(handler.NewBillingHandler(pricingService, invoiceService))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler reports liveness including database reachability
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			logger.GetGinLogger(c).Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
