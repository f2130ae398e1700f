package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", strings.Repeat("s", 32))
	t.Setenv("ADMIN_EMAIL", "admin@example.com")
	t.Setenv("ADMIN_PASSWORD", "correct-horse-battery")
	t.Setenv("RAZORPAY_KEY_ID", "rzp_test_key")
	t.Setenv("RAZORPAY_KEY_SECRET", "rzp_secret")
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	setRequiredEnv(t)
	for _, k := range []string{"PORT", "MONGODB_DATABASE", "REDIS_URL", "CART_TTL", "JWT_EXPIRY",
		"KAFKA_BROKERS", "KAFKA_ORDER_TOPIC", "NOTIFICATION_MAX_ATTEMPTS", "CLOUDWATCH_ENABLED"} {
		t.Setenv(k, "")
	}

	cfg, err := configFromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "4000", cfg.Port)
	assert.Equal(t, "storefront", cfg.MongoDatabase)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 168*time.Hour, cfg.CartTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, "order-events", cfg.KafkaOrderTopic)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 5, cfg.NotificationMaxAttempts)
	assert.False(t, cfg.CloudWatchEnabled)
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("ALLOWED_ORIGINS", "https://shop.example.com")
	t.Setenv("CART_TTL", "24h")
	t.Setenv("CLOUDWATCH_ENABLED", "true")

	cfg, err := configFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"https://shop.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 24*time.Hour, cfg.CartTTL)
	assert.True(t, cfg.CloudWatchEnabled)
}

func TestConfigFromEnv_BadValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"CART_TTL", "a week"},
		{"JWT_EXPIRY", "7"},
		{"NOTIFICATION_MAX_ATTEMPTS", "many"},
		{"CLOUDWATCH_ENABLED", "sometimes"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := configFromEnv()
			assert.ErrorContains(t, err, tt.key)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{
		MongoURI:      "mongodb://localhost",
		JWTSecret:     "too-short",
		AdminEmail:    "admin@example.com",
		AdminPassword: "short",
		RazorpayKeyID: "rzp_test_key",
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "RAZORPAY_KEY_SECRET is required")
	assert.ErrorContains(t, err, "JWT_SECRET must be at least 32 characters")
	assert.ErrorContains(t, err, "ADMIN_PASSWORD must be at least 12 characters")
	assert.NotContains(t, err.Error(), "MONGODB_URI")
}

type fakeSecrets map[string]string

func (f fakeSecrets) GetSecret(_ context.Context, name string) (string, error) {
	if v, ok := f[name]; ok {
		return v, nil
	}
	return "", errors.New("ResourceNotFoundException")
}

func TestConfig_ApplySecrets(t *testing.T) {
	cfg := &Config{
		JWTSecret:             "from-env",
		RazorpayKeySecret:     "env-key-secret",
		RazorpayWebhookSecret: "env-webhook",
		AdminPassword:         "env-password",
	}

	cfg.applySecrets(context.Background(), fakeSecrets{
		"storefront/JWT_SECRET":              strings.Repeat("x", 40),
		"storefront/RAZORPAY_WEBHOOK_SECRET": "whsec_live",
		"storefront/ADMIN_PASSWORD":          "",
	})

	assert.Equal(t, strings.Repeat("x", 40), cfg.JWTSecret)
	assert.Equal(t, "whsec_live", cfg.RazorpayWebhookSecret)
	assert.Equal(t, "env-key-secret", cfg.RazorpayKeySecret)
	assert.Equal(t, "env-password", cfg.AdminPassword)
}
