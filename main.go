// Package main provides the main entry point for the WFAHub bulk email campaign service
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/matbaogit/WFAHub-sub000/app/dispatch"
	"github.com/matbaogit/WFAHub-sub000/app/handlers"
	"github.com/matbaogit/WFAHub-sub000/app/middleware"
	"github.com/matbaogit/WFAHub-sub000/app/queue"
	"github.com/matbaogit/WFAHub-sub000/app/router"
	"github.com/matbaogit/WFAHub-sub000/app/services"
	businessflow "github.com/matbaogit/WFAHub-sub000/business_flow"
	"github.com/matbaogit/WFAHub-sub000/config"
	"github.com/matbaogit/WFAHub-sub000/migrations"
	"github.com/matbaogit/WFAHub-sub000/repository"
	"github.com/matbaogit/WFAHub-sub000/utils"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router     router.Router
	config     *config.ProductionConfig
	server     *fiber.App
	dispatcher *dispatch.Dispatcher
	logger     *logrus.Logger
	stopFuncs  []func()
}

func main() {
	log.Println("Starting WFAHub campaign service...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start dispatch workers and the scheduler tick
	if err := app.dispatcher.Start(ctx); err != nil {
		log.Fatalf("Failed to start dispatcher: %v", err)
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		app.logger.WithField("address", address).Info("server starting")

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	app.logger.Info("shutting down gracefully")

	// Stop accepting requests
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		app.logger.WithError(err).Error("error during shutdown")
	}

	// Loops finish their current recipient; pending rows are resumed on next start
	app.dispatcher.Stop()
	cancel()

	// Release resources in reverse order
	for i := len(app.stopFuncs) - 1; i >= 0; i-- {
		app.stopFuncs[i]()
	}

	services.FlushSentry(2 * time.Second)
	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger *logrus.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"max_open_conns": cfg.MaxOpenConns,
		"max_idle_conns": cfg.MaxIdleConns,
	}).Info("database connection established")

	return db, nil
}

// initializeCache initializes the Redis client when CACHE_PROVIDER=redis
func initializeCache(cfg config.CacheConfig, logger *logrus.Logger) (*redis.Client, error) {
	if cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.WithField("db", cfg.RedisDB).Info("redis connection established")
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis. The returned function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, logger logrus.FieldLogger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					logger.WithError(err).Warn("redis healthcheck failed")
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeQueue picks the dispatch queue named by DISPATCH_QUEUE_PROVIDER
func initializeQueue(cfg config.DispatchConfig, logger logrus.FieldLogger) (queue.Queue, error) {
	switch cfg.QueueProvider {
	case "amqp":
		q, err := queue.NewAMQPQueue(cfg.AMQPURL, cfg.QueueName, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to amqp: %w", err)
		}
		return q, nil
	default:
		return queue.NewMemoryQueue(cfg.QueueCapacity, logger), nil
	}
}

func closer(name string, c io.Closer, logger logrus.FieldLogger) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.WithError(err).WithField("component", name).Warn("close failed")
		}
	}
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize logger
	logger, logCloser, err := services.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	stopFuncs = append(stopFuncs, closer("logger", logCloser, logger))

	// Route the standard logger used by handlers and middleware through logrus
	log.SetFlags(0)
	log.SetOutput(logger.WriterLevel(logrus.InfoLevel))

	// Dispatch events go to their own log file
	dispatchLogger, dispatchCloser, err := services.NewDispatchLogger(logger, cfg.Logging, cfg.Dispatch.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dispatch logger: %w", err)
	}
	stopFuncs = append(stopFuncs, closer("dispatch logger", dispatchCloser, logger))

	// Initialize error reporting
	if err := services.InitSentry(cfg.Sentry, cfg.Deployment.Version); err != nil {
		logger.WithError(err).Warn("sentry disabled")
	}

	// Run migrations
	if cfg.Database.AutoMigrate {
		if err := migrations.Up(cfg.Database.URL()); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("database migrations applied")
	}

	// Initialize database
	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	// Initialize Redis; nil falls back to in-process stores
	rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}

	var (
		uploads services.UploadCache
		locker  dispatch.Locker
	)
	if rc != nil {
		stopFuncs = append(stopFuncs, closer("redis", rc, logger))
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, 30*time.Second, logger))
		uploads = services.NewRedisUploadCache(rc, cfg.Cache.RedisPrefix, cfg.Dispatch.UploadTTL)
		locker = dispatch.NewRedisLocker(rc, cfg.Cache.RedisPrefix)
	} else {
		uploads = services.NewMemoryUploadCache(cfg.Dispatch.UploadTTL)
		locker = dispatch.NewMemoryLocker()
	}

	// Initialize dispatch queue
	q, err := initializeQueue(cfg.Dispatch, dispatchLogger)
	if err != nil {
		return nil, err
	}
	stopFuncs = append(stopFuncs, closer("queue", q, logger))

	// Scheduling timezone
	loc, err := utils.LoadLocation(cfg.Dispatch.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid dispatch timezone: %w", err)
	}

	// Initialize repositories
	campaignRepo := repository.NewCampaignRepository(db)
	recipientRepo := repository.NewRecipientRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	smtpRepo := repository.NewSMTPSettingRepository(db)

	// Initialize services
	tokenService, err := services.NewTokenService(cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"issuer":   cfg.JWT.Issuer,
		"audience": cfg.JWT.Audience,
	}).Info("token service initialized")

	// Mail transport with sealed SMTP credentials
	credentials, err := services.NewCredentialCipher(cfg.Email.CredentialKey)
	if err != nil {
		return nil, err
	}
	transport := services.NewMailTransport(cfg.Email, smtpRepo, credentials, dispatchLogger)

	// Dispatch engine
	scheduler := dispatch.NewScheduler(loc)
	tracker := dispatch.NewTracker(campaignRepo, recipientRepo, dispatchLogger)
	credits := dispatch.NewCreditAccountant(walletRepo, dispatchLogger, cfg.Dispatch.CreateMissingWallet).
		WithInitialCredits(cfg.Dispatch.InitialCredits)

	// Per-campaign send loop
	loop := dispatch.NewLoop(dispatch.LoopDeps{
		Campaigns:       campaignRepo,
		Recipients:      recipientRepo,
		Transport:       transport,
		Tracker:         tracker,
		Credits:         credits,
		Scheduler:       scheduler,
		Audit:           auditRepo,
		Logger:          dispatchLogger,
		TrackingBaseURL: cfg.Dispatch.TrackingBaseURL,
	})

	// Dispatcher consumes the queue and runs the scheduler tick
	dispatcher := dispatch.NewDispatcher(dispatch.DispatcherConfig{
		SchedulerInterval: cfg.Dispatch.SchedulerInterval,
		ResumeInterrupted: cfg.Dispatch.ResumeInterrupted,
		LockTTL:           cfg.Dispatch.LockTTL,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
	}, q, loop, campaignRepo, auditRepo, locker, dispatchLogger)

	// Initialize flows
	importFlow := businessflow.NewRecipientImportFlow(uploads, cfg.Dispatch, logger)
	campaignFlow := businessflow.NewCampaignFlow(
		campaignRepo,
		recipientRepo,
		auditRepo,
		uploads,
		dispatcher,
		scheduler,
		db,
		logger,
	)
	trackingFlow := businessflow.NewTrackingFlow(tracker)
	creditFlow := businessflow.NewCreditFlow(walletRepo)

	// Initialize handlers
	r := router.NewFiberRouter(cfg, router.Handlers{
		Campaign: handlers.NewCampaignHandler(campaignFlow),
		Upload:   handlers.NewUploadHandler(importFlow),
		Credit:   handlers.NewCreditHandler(creditFlow),
		Tracking: handlers.NewTrackingHandler(trackingFlow),
	}, middleware.NewAuthMiddleware(tokenService))

	// Log application startup
	logger.WithFields(logrus.Fields{
		"environment":    cfg.Deployment.Environment,
		"queue_provider": cfg.Dispatch.QueueProvider,
		"cache_provider": cfg.Cache.Provider,
		"email_provider": cfg.Email.Provider,
		"timezone":       cfg.Dispatch.Timezone,
	}).Info("application initialized")

	return &Application{
		router:     r,
		config:     cfg,
		server:     r.GetApp(),
		dispatcher: dispatcher,
		logger:     logger,
		stopFuncs:  stopFuncs,
	}, nil
}
