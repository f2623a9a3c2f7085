package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DukeRupert/agentguard/internal"
	"github.com/DukeRupert/agentguard/internal/ai"
	"github.com/DukeRupert/agentguard/internal/ai/anthropic"
	"github.com/DukeRupert/agentguard/internal/ai/mock"
	"github.com/DukeRupert/agentguard/internal/ai/openai"
	"github.com/DukeRupert/agentguard/internal/billing"
	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/DukeRupert/agentguard/internal/faqcache"
	"github.com/DukeRupert/agentguard/internal/guard"
	"github.com/DukeRupert/agentguard/internal/handler"
	"github.com/DukeRupert/agentguard/internal/jobs"
	"github.com/DukeRupert/agentguard/internal/metrics"
	"github.com/DukeRupert/agentguard/internal/middleware"
	"github.com/DukeRupert/agentguard/internal/organization"
	"github.com/DukeRupert/agentguard/internal/service"
	"github.com/DukeRupert/agentguard/internal/usage"
	"github.com/DukeRupert/agentguard/internal/worker"
	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	if err := domain.ValidateCatalog(); err != nil {
		return fmt.Errorf("plan catalog invalid: %w", err)
	}

	// ==========================================================================
	// Storage
	// ==========================================================================

	var db *sql.DB
	if cfg.DatabaseUrl != "" {
		db, err = openDatabase(ctx, cfg.DatabaseUrl)
		if err != nil {
			return err
		}
		defer db.Close()
		logger.Info("Database ready")
	}

	var rdb *redis.Client
	if cfg.StoreProvider == "redis" || cfg.CacheProvider == "redis" {
		rdb, err = openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		logger.Info("Redis ready")
	}

	var orgs organization.Repository
	orgBackend := "memory"
	if db != nil {
		orgs = organization.NewPostgresRepository(db)
		orgBackend = "postgres"
	} else {
		orgs = organization.NewMemoryRepository()
	}

	var usageStore usage.Store
	switch cfg.StoreProvider {
	case "postgres":
		usageStore = usage.NewPostgresStore(db, time.Now)
	case "redis":
		usageStore = usage.NewRedisStore(rdb, time.Now)
	default:
		usageStore = usage.NewMemoryStore(time.Now)
	}

	var cacheStore faqcache.Store
	var memCache *faqcache.MemoryStore
	if cfg.CacheProvider == "redis" {
		cacheStore = faqcache.NewRedisStore(rdb, "agentguard:faq")
	} else {
		memCache = faqcache.NewMemoryStore()
		cacheStore = memCache
	}

	logger.Info("Stores configured",
		"usage", cfg.StoreProvider,
		"cache", cfg.CacheProvider,
		"organizations", orgBackend,
	)

	// ==========================================================================
	// Services
	// ==========================================================================

	provider, err := newAIProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("AI provider initialization failed: %w", err)
	}
	logger.Info("AI provider configured", "provider", provider.Name())

	var billingService billing.Service
	if cfg.BillingEnabled() {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, billing.PriceConfig{
			ProMonthlyPriceID:     cfg.StripeProMonthlyPriceID,
			ProYearlyPriceID:      cfg.StripeProYearlyPriceID,
			PremiumMonthlyPriceID: cfg.StripePremiumMonthlyPriceID,
			PremiumYearlyPriceID:  cfg.StripePremiumYearlyPriceID,
		})
		logger.Info("Stripe billing enabled")
	} else {
		logger.Warn("Stripe billing disabled, upgrades are unavailable")
	}

	policy := guard.FailClosed
	if cfg.GuardFailOpen {
		policy = guard.FailOpen
	}
	agentGuard := guard.New(usageStore, guard.Config{
		UsageTimeout:  cfg.GuardUsageTimeout,
		FailurePolicy: policy,
	}, logger)

	agentService := service.NewAgentService(
		orgs,
		usageStore,
		agentGuard,
		faqcache.New(cacheStore, cfg.FAQCacheTTL, logger),
		provider,
		service.AgentConfig{MaxOutputTokens: cfg.AIMaxOutputTokens},
		logger,
	)
	usageService := service.NewUsageService(orgs, usageStore, logger)
	subscriptionService := service.NewSubscriptionService(orgs, billingService, cfg.BaseURL, logger)

	// ==========================================================================
	// Maintenance worker
	// ==========================================================================

	if cfg.WorkerEnabled {
		w, err := newMaintenanceWorker(cfg, usageStore, memCache, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		w.Start(ctx)
		defer w.Stop()
	}

	if cfg.SeedDemoOrg {
		if err := seedDemoOrg(ctx, orgs, logger); err != nil {
			return err
		}
	}

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))
	if cfg.MetricsUsername == "" && cfg.MetricsPassword == "" && cfg.IsProduction() {
		logger.Warn("Metrics endpoint is unprotected")
	}

	handler.NewPlanHandler(usageService, logger).RegisterRoutes(mux)
	handler.NewAgentHandler(agentService, logger).RegisterRoutes(mux)
	handler.NewBillingHandler(subscriptionService, logger).RegisterRoutes(mux)
	handler.NewWebhookHandler(billingService, subscriptionService, logger).RegisterRoutes(mux)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		handler.NotFoundResponse(w, r, logger)
	})

	// metrics.Middleware wraps the mux directly so it sees the matched pattern.
	var root http.Handler = metrics.Middleware(mux)
	root = middleware.NewSecurityHeadersMiddleware(cfg.IsProduction()).Handler(root)
	root = middleware.NewRequestLoggingMiddleware(logger).Handler(root)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		// Leave room for AI retries.
		WriteTimeout: cfg.AIRequestTimeout*time.Duration(cfg.AIMaxRetries+1) + 10*time.Second,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
		return err
	}

	logger.Info("Server stopped gracefully")
	return nil
}

func openDatabase(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if err := internal.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return db, nil
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func newAIProvider(cfg *internal.Config, logger *slog.Logger) (ai.Provider, error) {
	providerCfg := ai.ProviderConfig{
		MaxRetries:     cfg.AIMaxRetries,
		RetryBaseDelay: cfg.AIRetryBaseDelay,
		RequestTimeout: cfg.AIRequestTimeout,
		MaxTokens:      cfg.AIMaxOutputTokens,
	}

	switch cfg.AIProvider {
	case "openai":
		return openai.New(openai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			Model:          cfg.OpenAIModel,
			ProviderConfig: providerCfg,
		}, logger)
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKey:         cfg.AnthropicAPIKey,
			Model:          cfg.AnthropicModel,
			ProviderConfig: providerCfg,
		}, logger)
	default:
		return mock.New(logger), nil
	}
}

// newMaintenanceWorker registers the tasks the configured stores need.
// Redis expires keys itself, so it gets no tasks.
func newMaintenanceWorker(cfg *internal.Config, usageStore usage.Store, memCache *faqcache.MemoryStore, logger *slog.Logger) (*worker.Worker, error) {
	wcfg := worker.DefaultConfig()
	wcfg.Interval = cfg.WorkerInterval
	if wcfg.TaskTimeout > wcfg.Interval {
		wcfg.TaskTimeout = wcfg.Interval
	}

	w, err := worker.New(wcfg, logger)
	if err != nil {
		return nil, err
	}

	if memCache != nil {
		w.Register(jobs.NewPurgeCacheTask(memCache, logger))
	}
	if pruner, ok := usageStore.(usage.Pruner); ok {
		task, err := jobs.NewPruneUsageTask(pruner, cfg.UsageRetention, time.Now, logger)
		if err != nil {
			return nil, err
		}
		w.Register(task)
	}
	return w, nil
}

// seedDemoOrg creates a premium organization for local testing.
func seedDemoOrg(ctx context.Context, orgs organization.Repository, logger *slog.Logger) error {
	org := &domain.Organization{
		Name:               "Demo Organization",
		Plan:               domain.PlanTierPremium,
		AIVoiceEnabled:     true,
		SubscriptionStatus: domain.SubscriptionStatusActive,
	}
	if err := orgs.Create(ctx, org); err != nil {
		return fmt.Errorf("seed demo organization: %w", err)
	}
	logger.Info("Demo organization created", "org_id", org.ID, "tier", org.Plan)
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
