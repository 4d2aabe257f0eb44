package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DukeRupert/tenantly/internal"
	"github.com/DukeRupert/tenantly/internal/appstore"
	"github.com/DukeRupert/tenantly/internal/billing"
	"github.com/DukeRupert/tenantly/internal/cache"
	"github.com/DukeRupert/tenantly/internal/email"
	"github.com/DukeRupert/tenantly/internal/handler"
	"github.com/DukeRupert/tenantly/internal/jobs"
	"github.com/DukeRupert/tenantly/internal/livekit"
	"github.com/DukeRupert/tenantly/internal/metrics"
	"github.com/DukeRupert/tenantly/internal/middleware"
	"github.com/DukeRupert/tenantly/internal/openai"
	"github.com/DukeRupert/tenantly/internal/push"
	"github.com/DukeRupert/tenantly/internal/quota"
	"github.com/DukeRupert/tenantly/internal/rdb"
	"github.com/DukeRupert/tenantly/internal/repository"
	"github.com/DukeRupert/tenantly/internal/service"
	"github.com/DukeRupert/tenantly/internal/sms"
	"github.com/DukeRupert/tenantly/internal/storage"
	"github.com/DukeRupert/tenantly/internal/worker"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// siteIndexPrefix namespaces cached index.html bodies in Redis.
const siteIndexPrefix = "tenantly:html:"

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	store := repository.NewStore(db)

	// ==========================================================================
	// Redis (optional in development)
	// ==========================================================================

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = rdb.Connect(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer redisClient.Close()
		logger.Info("Redis ready")
	} else {
		logger.Warn("REDIS_URL not set, quotas and caches are process-local")
	}

	// ==========================================================================
	// Integrations
	// ==========================================================================

	var stripeSvc billing.Service
	if cfg.Stripe.Enabled() {
		stripeSvc = billing.NewStripeService(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	} else {
		logger.Warn("Stripe not configured, billing endpoints are disabled")
	}

	verifier, history, err := newAppStore(cfg.Apple, logger)
	if err != nil {
		return fmt.Errorf("app store initialization failed: %w", err)
	}

	objects, err := newStorage(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	var roomTokens service.RoomTokenIssuer
	if issuer, err := livekit.NewIssuer(cfg.LiveKit); err == nil {
		roomTokens = issuer
	} else {
		logger.Warn("LiveKit not configured", "error", err)
	}

	var realtime service.RealtimeSessionCreator
	if client, err := openai.New(cfg.OpenAI, logger); err == nil {
		realtime = client
	} else {
		logger.Warn("OpenAI not configured", "error", err)
	}

	// ==========================================================================
	// Caches and quotas
	// ==========================================================================

	siteCache := cache.NewSiteCache(service.SiteLoader(store), cfg.SiteCacheTTL)

	var (
		invalidator cache.Invalidator = cache.LocalInvalidator{Cache: siteCache}
		htmlCache   cache.Store       = cache.NewMemoryStore()
		quotaStore  quota.Store       = quota.NewMemoryStore()
		broadcaster *cache.Broadcaster
	)
	if redisClient != nil {
		broadcaster = cache.NewBroadcaster(redisClient, siteCache, logger)
		invalidator = broadcaster
		htmlCache = cache.NewRedisStore(redisClient, siteIndexPrefix)
		quotaStore = quota.NewRedisStore(redisClient)
	}
	counter := quota.NewCounter(quotaStore, quota.WithLocation(cfg.QuotaLocation()))

	// ==========================================================================
	// Services
	// ==========================================================================

	billingService := service.NewBillingService(store, stripeSvc, logger)
	userService := service.NewUserService(store, stripeSvc, logger)
	appleService := service.NewAppleService(store, verifier, history, logger)
	quotaService := service.NewQuotaService(counter, logger)
	agentService := service.NewAgentService(quotaService, roomTokens, realtime, service.AgentLimits{
		LiveKitTokensPerDay:  cfg.Quota.MaxLiveKitTokensPerDay,
		OpenAISessionsPerDay: cfg.Quota.MaxOpenAISessionsPerDay,
	}, logger)
	teamService := service.NewTeamService(store, cfg.Quota.MaxTeamsPerUser, logger)
	contactService := service.NewContactService(store, logger)
	siteService := service.NewSiteService(store, siteCache, invalidator, objects, htmlCache, logger)
	notificationService := service.NewNotificationService(store, cfg.Email.From, logger)

	// ==========================================================================
	// Background worker
	// ==========================================================================

	var w *worker.Worker
	if cfg.WorkerEnabled {
		w, err = newWorker(ctx, cfg, store, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		w.Start(ctx)
	}

	if broadcaster != nil {
		go func() {
			if err := broadcaster.Listen(ctx, nil); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("site invalidation listener stopped", "error", err)
			}
		}()
	}

	limits := middleware.NewPublicRateLimits()
	limits.Janitor(ctx.Done())

	// ==========================================================================
	// Middleware
	// ==========================================================================

	authMw := middleware.NewAuthMiddleware(userService, billingService, logger)
	siteMw := middleware.NewSiteMiddleware(siteService, logger)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(cfg.IsProduction(), cfg.LiveKit.URL)

	requireUser := authMw.RequireUser
	requireStaff := authMw.RequireStaff
	requireSubscriber := middleware.Stack(authMw.RequireUser, authMw.RequireActiveSubscription)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	handler.NewHealthHandler(healthChecks(db, redisClient), logger).RegisterRoutes(mux)

	metricsHandler := promhttp.Handler()
	if cfg.MetricsUsername != "" && cfg.MetricsPassword != "" {
		metricsHandler = middleware.NewBasicAuthMiddleware("metrics", cfg.MetricsUsername, cfg.MetricsPassword).Handler(metricsHandler)
	} else {
		logger.Warn("Metrics endpoint is unprotected: METRICS_USERNAME and METRICS_PASSWORD not set")
	}
	mux.Handle("GET /metrics", metricsHandler)

	handler.NewAuthHandler(userService, logger).RegisterRoutes(mux,
		limits.Login.Limit(logger), limits.Register.Limit(logger), requireUser)
	handler.NewUserHandler(userService, logger).RegisterRoutes(mux, requireUser)
	handler.NewBillingHandler(billingService, logger).RegisterRoutes(mux, requireUser)
	handler.NewWebhookHandler(stripeSvc, billingService, logger).RegisterRoutes(mux)
	handler.NewAppleHandler(appleService, logger).RegisterRoutes(mux, requireUser)
	handler.NewAgentHandler(agentService, logger).RegisterRoutes(mux, requireSubscriber)
	handler.NewTeamHandler(teamService, logger).RegisterRoutes(mux, requireUser)
	handler.NewContactHandler(contactService, logger).RegisterRoutes(mux, limits.Contact.Limit(logger))
	handler.NewAdminHandler(siteService, notificationService, logger).RegisterRoutes(mux, requireStaff)

	if validator, err := sms.NewRequestValidator(cfg.Twilio); err == nil {
		twilioMw := middleware.NewTwilioMiddleware(validator, cfg.PublicURL, logger)
		handler.NewSMSHandler(logger).RegisterRoutes(mux, twilioMw.Validate)
	} else {
		logger.Warn("Twilio not configured, inbound SMS is disabled")
	}

	// Everything else is the site's frontend.
	handler.NewSiteHandler(siteService, logger).RegisterRoutes(mux)

	// Outermost first.
	root := middleware.Stack(
		securityMw.Handler,
		loggingMw.Handler,
		metrics.Middleware,
		siteMw.WithSite,
		authMw.WithUser,
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	case err := <-serverErr:
		logger.Error("Server failed", "error", err)
	}

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	if w != nil {
		w.Stop()
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// newAppStore builds the dual-environment verifier and the transaction
// history client. Either result is nil when its settings are missing.
func newAppStore(cfg internal.AppleConfig, logger *slog.Logger) (appstore.EnvironmentVerifier, appstore.HistoryFetcher, error) {
	var (
		verifier appstore.EnvironmentVerifier
		history  appstore.HistoryFetcher
	)

	if cfg.VerificationEnabled() {
		roots, err := appstore.LoadRootCertificates(cfg.RootCertPath)
		if err != nil {
			return nil, nil, err
		}
		production, err := appstore.NewSignedDataVerifier(roots, appstore.EnvironmentProduction, cfg.BundleID, cfg.AppAppleID)
		if err != nil {
			return nil, nil, err
		}
		sandbox, err := appstore.NewSignedDataVerifier(roots, appstore.EnvironmentSandbox, cfg.BundleID, cfg.AppAppleID)
		if err != nil {
			return nil, nil, err
		}
		verifier = appstore.NewDualVerifier(production, sandbox, logger)
	} else {
		logger.Warn("Apple receipt verification not configured")
	}

	if cfg.HistoryEnabled() {
		p8, err := os.ReadFile(cfg.StoreKitKeyPath)
		if err != nil {
			return nil, nil, fmt.Errorf("read storekit key: %w", err)
		}
		key, err := appstore.ParsePrivateKey(p8)
		if err != nil {
			return nil, nil, err
		}
		creds := appstore.Credentials{
			KeyID:      cfg.StoreKitKeyID,
			IssuerID:   cfg.StoreKitIssuerID,
			BundleID:   cfg.BundleID,
			PrivateKey: key,
		}
		history = &appstore.DualClient{
			Production: appstore.NewClient(appstore.EnvironmentProduction, "", creds, nil),
			Sandbox:    appstore.NewClient(appstore.EnvironmentSandbox, "", creds, nil),
		}
	}

	return verifier, history, nil
}

func newStorage(cfg internal.StorageConfig, logger *slog.Logger) (storage.Storage, error) {
	if cfg.Provider == storage.ProviderS3 {
		return storage.NewS3Storage(cfg.S3(), logger)
	}
	return storage.NewLocalStorage(cfg.Local(), logger)
}

// newWorker registers a handler for every job type. A channel whose
// provider is not configured logs the message instead of sending it for
// email, and fails the job permanently for SMS and push.
func newWorker(ctx context.Context, cfg *internal.Config, store repository.Store, logger *slog.Logger) (*worker.Worker, error) {
	w, err := worker.New(store, cfg.Worker, logger)
	if err != nil {
		return nil, err
	}

	mailer, err := email.New(cfg.Email, logger)
	if err != nil {
		return nil, err
	}
	w.Register(jobs.NewSendEmailHandler(mailer, logger))

	var texter jobs.SMSSender = jobs.UnconfiguredSMS{}
	if sender, err := sms.NewSender(cfg.Twilio, logger); err == nil {
		texter = sender
	}
	w.Register(jobs.NewSendSMSHandler(texter, sms.IsClientError, logger))

	router := &push.Router{}
	if cfg.APNs.Enabled() {
		apns, err := push.NewAPNsSender(cfg.APNs, logger)
		if err != nil {
			return nil, err
		}
		router.APNs = apns
	}
	if cfg.FCM.Enabled() {
		fcm, err := push.NewFCMSender(ctx, cfg.FCM, logger)
		if err != nil {
			return nil, err
		}
		router.FCM = fcm
	}
	w.Register(jobs.NewSendPushHandler(store, router, logger))

	return w, nil
}

func healthChecks(db *sql.DB, redisClient *redis.Client) map[string]handler.Pinger {
	checks := map[string]handler.Pinger{"database": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
