package internal

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable NewConfig reads so the host environment
// cannot leak into a test. getEnv treats empty values as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ENV", "DATABASE_URL", "STORE_PROVIDER", "REDIS_URL", "CACHE_PROVIDER", "FAQ_CACHE_TTL",
		"GUARD_USAGE_TIMEOUT", "GUARD_FAIL_OPEN", "AI_PROVIDER", "OPENAI_API_KEY", "ANTHROPIC_API_KEY",
		"AI_MAX_OUTPUT_TOKENS", "STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "SEED_DEMO_ORG",
		"WORKER_ENABLED", "WORKER_INTERVAL", "USAGE_RETENTION",
	} {
		t.Setenv(k, "")
	}
}

func TestNewConfig_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.StoreProvider)
	assert.Equal(t, "memory", cfg.CacheProvider)
	assert.Equal(t, "mock", cfg.AIProvider)
	assert.Equal(t, 24*time.Hour, cfg.FAQCacheTTL)
	assert.Equal(t, 2*time.Second, cfg.GuardUsageTimeout)
	assert.False(t, cfg.GuardFailOpen, "guard fails closed by default")
	assert.False(t, cfg.BillingEnabled())
	assert.True(t, cfg.WorkerEnabled)
	assert.Equal(t, 30*24*time.Hour, cfg.UsageRetention)
}

func TestNewConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_PROVIDER", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("GUARD_FAIL_OPEN", "true")
	t.Setenv("GUARD_USAGE_TIMEOUT", "750ms")
	t.Setenv("AI_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("AI_MAX_OUTPUT_TOKENS", "256")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.StoreProvider)
	assert.True(t, cfg.GuardFailOpen)
	assert.Equal(t, 750*time.Millisecond, cfg.GuardUsageTimeout)
	assert.Equal(t, 256, cfg.AIMaxOutputTokens)
}

func TestNewConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"postgres without url", map[string]string{"STORE_PROVIDER": "postgres"}, "DATABASE_URL"},
		{"redis store without url", map[string]string{"STORE_PROVIDER": "redis"}, "REDIS_URL"},
		{"redis cache without url", map[string]string{"CACHE_PROVIDER": "redis"}, "REDIS_URL"},
		{"unknown store", map[string]string{"STORE_PROVIDER": "dynamo"}, "STORE_PROVIDER"},
		{"unknown cache", map[string]string{"CACHE_PROVIDER": "memcached"}, "CACHE_PROVIDER"},
		{"openai without key", map[string]string{"AI_PROVIDER": "openai"}, "OPENAI_API_KEY"},
		{"anthropic without key", map[string]string{"AI_PROVIDER": "anthropic"}, "ANTHROPIC_API_KEY"},
		{"unknown ai", map[string]string{"AI_PROVIDER": "llama"}, "AI_PROVIDER"},
		{"zero ttl", map[string]string{"FAQ_CACHE_TTL": "0s"}, "FAQ_CACHE_TTL"},
		{"stripe without webhook secret", map[string]string{"STRIPE_SECRET_KEY": "sk_test"}, "STRIPE_WEBHOOK_SECRET"},
		{"short retention", map[string]string{"USAGE_RETENTION": "1h"}, "USAGE_RETENTION"},
		{"fast worker", map[string]string{"WORKER_INTERVAL": "5s"}, "WORKER_INTERVAL"},
		{"seed in production", map[string]string{"ENV": "production", "SEED_DEMO_ORG": "true"}, "SEED_DEMO_ORG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := NewConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "production", "warn").Info("hidden")
	assert.Empty(t, buf.String())

	NewLogger(&buf, "production", "info").Info("verdict", "org_id", "abc")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "verdict", line["msg"])
	assert.Equal(t, "agentguard", line["service"])

	buf.Reset()
	NewLogger(&buf, "development", "DEBUG").Debug("text line")
	assert.Contains(t, buf.String(), "msg=\"text line\"")
}
