package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string // Optional unless a provider below is "postgres"

	// Application base URL (for checkout redirects)
	BaseURL string

	// Persistence
	StoreProvider string // Usage counters: "memory", "postgres" or "redis"
	RedisURL      string

	// FAQ cache
	CacheProvider string // "memory" or "redis"
	FAQCacheTTL   time.Duration

	// Guard
	GuardUsageTimeout time.Duration
	GuardFailOpen     bool // Allow requests when the daily token total cannot be read

	// Maintenance worker
	WorkerEnabled  bool
	WorkerInterval time.Duration
	UsageRetention time.Duration // Age after which request records and daily counters are pruned

	// AI Provider Configuration
	AIProvider        string // "openai", "anthropic" or "mock"
	OpenAIAPIKey      string
	OpenAIModel       string
	AnthropicAPIKey   string
	AnthropicModel    string
	AIMaxRetries      int
	AIRetryBaseDelay  time.Duration
	AIRequestTimeout  time.Duration
	AIMaxOutputTokens int

	// Stripe Billing Configuration
	// In development, upgrades answer 503 if these are empty.
	StripeSecretKey     string // Stripe API secret key (sk_test_... or sk_live_...)
	StripeWebhookSecret string // Stripe webhook signing secret (whsec_...)

	// Stripe Price IDs for subscription plans
	StripeProMonthlyPriceID     string
	StripeProYearlyPriceID      string
	StripePremiumMonthlyPriceID string
	StripePremiumYearlyPriceID  string

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string

	// SeedDemoOrg creates a premium organization at startup. Development only.
	SeedDemoOrg bool
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:         getEnv("ENV", "development"),
		Port:        getEnvInt("PORT", 8080),
		LogLevel:    getEnv("LOG_LEVEL", "debug"),
		DatabaseUrl: os.Getenv("DATABASE_URL"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),

		StoreProvider: getEnv("STORE_PROVIDER", "memory"),
		RedisURL:      getEnv("REDIS_URL", ""),

		CacheProvider: getEnv("CACHE_PROVIDER", "memory"),
		FAQCacheTTL:   getEnvDuration("FAQ_CACHE_TTL", 24*time.Hour),

		GuardUsageTimeout: getEnvDuration("GUARD_USAGE_TIMEOUT", 2*time.Second),
		GuardFailOpen:     getEnvBool("GUARD_FAIL_OPEN", false),

		WorkerEnabled:  getEnvBool("WORKER_ENABLED", true),
		WorkerInterval: getEnvDuration("WORKER_INTERVAL", time.Hour),
		UsageRetention: getEnvDuration("USAGE_RETENTION", 30*24*time.Hour),

		// AI provider defaults
		AIProvider:        getEnv("AI_PROVIDER", "mock"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", ""),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:    getEnv("ANTHROPIC_MODEL", ""),
		AIMaxRetries:      getEnvInt("AI_MAX_RETRIES", 3),
		AIRetryBaseDelay:  getEnvDuration("AI_RETRY_BASE_DELAY", 1*time.Second),
		AIRequestTimeout:  getEnvDuration("AI_REQUEST_TIMEOUT", 60*time.Second),
		AIMaxOutputTokens: getEnvInt("AI_MAX_OUTPUT_TOKENS", 1024),

		// Stripe billing (optional)
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		StripeProMonthlyPriceID:     getEnv("STRIPE_PRO_MONTHLY_PRICE_ID", ""),
		StripeProYearlyPriceID:      getEnv("STRIPE_PRO_YEARLY_PRICE_ID", ""),
		StripePremiumMonthlyPriceID: getEnv("STRIPE_PREMIUM_MONTHLY_PRICE_ID", ""),
		StripePremiumYearlyPriceID:  getEnv("STRIPE_PREMIUM_YEARLY_PRICE_ID", ""),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),

		SeedDemoOrg: getEnvBool("SEED_DEMO_ORG", false),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreProvider {
	case "memory":
	case "postgres":
		if c.DatabaseUrl == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_PROVIDER is 'postgres'")
		}
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_PROVIDER is 'redis'")
		}
	default:
		return fmt.Errorf("STORE_PROVIDER must be 'memory', 'postgres' or 'redis', got: %s", c.StoreProvider)
	}

	switch c.CacheProvider {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when CACHE_PROVIDER is 'redis'")
		}
	default:
		return fmt.Errorf("CACHE_PROVIDER must be either 'memory' or 'redis', got: %s", c.CacheProvider)
	}
	if c.FAQCacheTTL <= 0 {
		return fmt.Errorf("FAQ_CACHE_TTL must be positive")
	}

	if c.WorkerEnabled {
		if c.WorkerInterval < time.Minute {
			return fmt.Errorf("WORKER_INTERVAL must be at least 1m, got %v", c.WorkerInterval)
		}
		if c.UsageRetention < 48*time.Hour {
			return fmt.Errorf("USAGE_RETENTION must be at least 48h, got %v", c.UsageRetention)
		}
	}

	// Validate AI provider configuration
	switch c.AIProvider {
	case "mock":
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is 'openai'")
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is 'anthropic'")
		}
	default:
		return fmt.Errorf("AI_PROVIDER must be 'openai', 'anthropic' or 'mock', got: %s", c.AIProvider)
	}
	if c.AIMaxOutputTokens <= 0 {
		return fmt.Errorf("AI_MAX_OUTPUT_TOKENS must be positive")
	}

	if c.StripeSecretKey != "" && c.StripeWebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}
	if c.SeedDemoOrg && c.IsProduction() {
		return fmt.Errorf("SEED_DEMO_ORG cannot be used in production")
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// BillingEnabled reports whether Stripe credentials are configured.
func (c *Config) BillingEnabled() bool {
	return c.StripeSecretKey != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
