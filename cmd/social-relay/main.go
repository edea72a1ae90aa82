package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"social-relay-go/internal/collab"
	"social-relay-go/internal/config"
	"social-relay-go/internal/handlers"
	"social-relay-go/internal/jobs"
	"social-relay-go/internal/mediator"
	"social-relay-go/internal/metrics"
	"social-relay-go/internal/models"
	"social-relay-go/internal/scheduler"
	"social-relay-go/internal/settings"
	"social-relay-go/internal/store"
	"social-relay-go/internal/webhook"
)

func main() {
	// Configure logging
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting Social Relay Service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}

	// Initialize database
	db, err := initDatabase(cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize metrics
	m := metrics.NewMetrics()

	// Initialize event store
	st := store.New(db)

	// Load client settings into the in-memory snapshot
	reg := settings.NewRegistry()
	if err := reg.Reload(st); err != nil {
		logrus.Fatalf("Failed to load client settings: %v", err)
	}

	// Initialize collaborators
	var assistant collab.AssistantClient
	if cfg.OpenAI.APIKey != "" {
		assistant = collab.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.SystemPrompt)
		logrus.Info("AI assistant collaborator enabled")
	} else {
		logrus.Warn("No OpenAI API key configured, falling back to fixed replies")
	}

	platforms := make(map[models.Platform]collab.PlatformClient)
	if cfg.Instagram.AccessToken != "" {
		platforms[models.PlatformInstagram] = collab.NewInstagramClient(cfg.Instagram.AccessToken, cfg.Instagram.PageID)
		logrus.Info("Instagram platform collaborator enabled")
	}
	if cfg.Telegram.BotToken != "" {
		platforms[models.PlatformTelegram] = collab.NewTelegramClient(cfg.Telegram.BotToken)
		logrus.Info("Telegram platform collaborator enabled")
	}

	// Initialize mediator
	med := mediator.New(st, reg, assistant, platforms, m, mediator.Options{
		BatchSize:           cfg.Scheduler.BatchSize,
		MaxAttempts:         cfg.Scheduler.MaxAttempts,
		CollaboratorTimeout: cfg.Scheduler.CollaboratorTimeout,
	})

	// Initialize scheduler with the background jobs
	sched := scheduler.New(st, m)
	sched.Register(jobs.JobDrain, cfg.Scheduler.DrainInterval, jobs.Drain(med))
	sched.Register(jobs.JobCleanup, cfg.Scheduler.CleanupInterval, jobs.Cleanup(st, cfg.Scheduler.Retention, m))
	sched.Register(jobs.JobContentSync, cfg.Scheduler.ContentSyncInterval, jobs.ContentSync(st, reg, platforms))

	// Initialize HTTP handlers
	wh := webhook.NewHandler(st, m, cfg.Webhook.VerifyToken, cfg.Telegram.SecretToken, cfg.Webhook.DefaultClientID)
	admin := handlers.NewHandlers(st, sched, reg, cfg.Webhook.VerifyToken)

	// Setup HTTP server
	router := setupRouter(wh, admin)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start scheduler
	if err := sched.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop scheduler
	if err := sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}

	// Wait for in-flight jobs to finish
	sched.Wait()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	logrus.Info("Server stopped gracefully")
}

// initDatabase initializes the database connection and runs migrations
func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	// Configure GORM logger
	gormLogger := logger.New(
		logrus.StandardLogger(),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	// Connect to database
	db, err := gorm.Open(mysql.Open(cfg.GetDSN()), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL DB for connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Run migrations
	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logrus.Info("Database initialized successfully")
	return db, nil
}

// runMigrations runs database migrations
func runMigrations(db *gorm.DB) error {
	logrus.Info("Running database migrations...")

	// Auto migrate all models
	if err := db.AutoMigrate(
		&models.Event{},
		&models.JobRun{},
		&models.Post{},
		&models.Story{},
		&models.ClientSettings{},
	); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}

	logrus.Info("Database migrations completed")
	return nil
}

// setupRouter sets up the HTTP router with middleware
func setupRouter(wh *webhook.Handler, admin *handlers.Handlers) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	// Create router
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware())

	// Setup routes
	wh.SetupRoutes(router)
	admin.SetupRoutes(router)

	return router
}

// loggerMiddleware adds logging middleware
func loggerMiddleware() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	})
}
