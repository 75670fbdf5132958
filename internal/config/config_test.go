package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfig_Defaults(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "https://api.example.com/")
	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "https://api.example.com", cfg.BackendBaseURL)
	assert.Equal(t, 4*time.Hour, cfg.HandoffTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.ContactRecallTTL)
	assert.Equal(t, "/booking/quote", cfg.QuotePagePath)
	assert.Equal(t, 5, cfg.BreakerMaxFailures)
	assert.False(t, cfg.RunMigrations)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadServerConfig_Overrides(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "http://backend:9000")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("HANDOFF_TTL", "30m")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("MIGRATE", "TRUE")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.10")

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 30*time.Minute, cfg.HandoffTTL)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.True(t, cfg.RunMigrations)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.10"}, cfg.TrustedProxies)
}

func TestLoadServerConfig_CollectsAllErrors(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "")
	t.Setenv("HANDOFF_TTL", "soon")
	t.Setenv("RATE_LIMIT_BURST", "0")
	t.Setenv("TRUSTED_PROXIES", "lb.internal")

	_, err := LoadServerConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKEND_BASE_URL is required")
	assert.Contains(t, err.Error(), "invalid HANDOFF_TTL")
	assert.Contains(t, err.Error(), "RATE_LIMIT_BURST")
	assert.Contains(t, err.Error(), "TRUSTED_PROXIES")
}

func TestLoadConsumerConfig(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("KAFKA_BROKER", "legacy:9092")
	t.Setenv("KAFKA_GROUP", "support-projector")
	cfg, err := LoadConsumerConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"legacy:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "support-projector", cfg.KafkaGroup)
	assert.Equal(t, "checkout-events", cfg.KafkaTopic)

	t.Setenv("PROJECTION_TTL", "-1h")
	_, err = LoadConsumerConfig()
	assert.Error(t, err)
}
