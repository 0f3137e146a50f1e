package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/hugh/pipedesk/internal/access"
	"github.com/hugh/pipedesk/internal/airtable"
	"github.com/hugh/pipedesk/internal/api"
	"github.com/hugh/pipedesk/internal/apikeys"
	"github.com/hugh/pipedesk/internal/audit"
	"github.com/hugh/pipedesk/internal/auth"
	"github.com/hugh/pipedesk/internal/billing"
	"github.com/hugh/pipedesk/internal/crm"
	"github.com/hugh/pipedesk/internal/database"
	"github.com/hugh/pipedesk/internal/notify"
	"github.com/hugh/pipedesk/internal/orgs"
	"github.com/hugh/pipedesk/internal/settings"
	"github.com/hugh/pipedesk/internal/store"
	"github.com/hugh/pipedesk/internal/tasks"
	"github.com/hugh/pipedesk/pkg/config"
	"github.com/hugh/pipedesk/pkg/crypto"
	"github.com/hugh/pipedesk/pkg/queue"
	"github.com/hugh/pipedesk/pkg/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting pipedesk server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Server.Env}); err != nil {
			logger.Warn("failed to initialize sentry", "error", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Prepare(db, &cfg.Database, logger); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	st := store.New(db)

	// Redis is optional: without it sessions, rate limits and mention
	// delivery stay in-process.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("failed to connect to Redis", "error", err)
			redisClient = nil
		}
	}

	var (
		sessions    auth.SessionStore = auth.NewMemorySessionStore()
		notifier    notify.Notifier   = notify.NewStoreNotifier(st)
		asynqClient *asynq.Client
	)
	if redisClient != nil {
		sessions = auth.NewRedisSessionStore(redisClient)
		asynqClient = queue.NewClient(&cfg.Redis)
		notifier = tasks.NewQueueNotifier(asynqClient)
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}
	if cfg.Encryption.Key == "" {
		logger.Warn("ENCRYPTION_KEY not set, using generated key - stored secrets will be unreadable after restart")
	}

	// Initialize services
	recorder := audit.NewRecorder(st, logger)
	orgService := orgs.NewService(st, recorder, logger)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(st, jwtService, sessions, orgService, logger)
	settingsService := settings.NewService(st, recorder, encryptor, logger)

	var billingService *billing.Service
	if cfg.Billing.Enabled() {
		provider := billing.NewStripeProvider(cfg.Billing, logger)
		billingService = billing.NewService(st, provider, recorder, cfg.Billing, logger)
	} else {
		logger.Info("billing disabled, STRIPE_SECRET_KEY not set")
	}

	airtableClient := airtable.NewClient(cfg.Airtable, logger)

	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		Guard:          access.NewGuard(st, logger),
		AuthService:    authService,
		SessionTTL:     cfg.JWT.Expiry(),
		Orgs:           orgService,
		APIKeys:        apikeys.NewService(st, recorder, logger),
		Settings:       settingsService,
		Audit:          recorder,
		CRM:            crm.NewService(st, recorder, notifier, logger),
		Notifications:  notify.NewService(st, logger),
		Billing:        billingService,
		Airtable:       airtable.NewService(st, settingsService, airtableClient, recorder, logger),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimitReqs:  cfg.RateLimit.Requests,
		RateLimitSecs:  cfg.RateLimit.WindowSeconds,
		SecureCookies:  !cfg.Server.IsDevelopment(),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if asynqClient != nil {
		asynqClient.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}
