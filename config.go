package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	awspkg "github.com/Vaibhavdev309/tapestry/pkg/aws"
)

const (
	minJWTSecretLength     = 32
	minAdminPasswordLength = 12
	secretPrefix           = "storefront/"
)

// Config holds all configuration for the storefront API.
type Config struct {
	Port   string
	AppEnv string

	MongoURI      string
	MongoDatabase string
	RedisURL      string
	CartTTL       time.Duration
	DatabaseURL   string // Postgres DSN for the notification outbox; empty disables it

	JWTSecret     string
	JWTExpiry     time.Duration
	AdminEmail    string
	AdminPassword string

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string

	KafkaBrokers     []string
	KafkaOrderTopic  string
	SNSOrderTopicARN string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	AllowedOrigins []string

	NotificationPollInterval time.Duration
	NotificationMaxAttempts  int

	CloudWatchEnabled   bool
	CloudWatchNamespace string

	UseAWSSecrets bool
}

// LoadConfig reads .env (when present) and the environment, then validates.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := configFromEnv()
	if err != nil {
		return nil, err
	}

	if cfg.UseAWSSecrets {
		awsCfg, err := awspkg.LoadAWSConfig(context.Background())
		if err != nil {
			return nil, err
		}
		cfg.applySecrets(context.Background(), awspkg.NewSecretsClient(awsCfg))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configFromEnv() (*Config, error) {
	cfg := &Config{
		Port:                  getEnv("PORT", "4000"),
		AppEnv:                getEnv("APP_ENV", "development"),
		MongoURI:              os.Getenv("MONGODB_URI"),
		MongoDatabase:         getEnv("MONGODB_DATABASE", "storefront"),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		AdminEmail:            os.Getenv("ADMIN_EMAIL"),
		AdminPassword:         os.Getenv("ADMIN_PASSWORD"),
		RazorpayKeyID:         os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
		KafkaBrokers:          splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaOrderTopic:       getEnv("KAFKA_ORDER_TOPIC", "order-events"),
		SNSOrderTopicARN:      os.Getenv("SNS_ORDER_TOPIC_ARN"),
		SMTPHost:              os.Getenv("SMTP_HOST"),
		SMTPPort:              getEnv("SMTP_PORT", "587"),
		SMTPUsername:          os.Getenv("SMTP_USERNAME"),
		SMTPPassword:          os.Getenv("SMTP_PASSWORD"),
		MailFrom:              getEnv("MAIL_FROM", "no-reply@storefront.local"),
		AllowedOrigins:        splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:5174")),
		CloudWatchNamespace:   getEnv("CLOUDWATCH_NAMESPACE", "Storefront"),
		UseAWSSecrets:         os.Getenv("AWS_USE_SECRETS") == "true",
	}

	var err error
	if cfg.CartTTL, err = durationEnv("CART_TTL", 168*time.Hour); err != nil {
		return nil, err
	}
	if cfg.JWTExpiry, err = durationEnv("JWT_EXPIRY", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.NotificationPollInterval, err = durationEnv("NOTIFICATION_POLL_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.NotificationMaxAttempts, err = intEnv("NOTIFICATION_MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if raw := os.Getenv("CLOUDWATCH_ENABLED"); raw != "" {
		if cfg.CloudWatchEnabled, err = strconv.ParseBool(raw); err != nil {
			return nil, fmt.Errorf("CLOUDWATCH_ENABLED: %w", err)
		}
	}
	return cfg, nil
}

// applySecrets overrides sensitive values from Secrets Manager. A secret that
// is missing or empty leaves the environment value in place.
func (c *Config) applySecrets(ctx context.Context, sm awspkg.SecretGetter) {
	targets := map[string]*string{
		"JWT_SECRET":              &c.JWTSecret,
		"RAZORPAY_KEY_SECRET":     &c.RazorpayKeySecret,
		"RAZORPAY_WEBHOOK_SECRET": &c.RazorpayWebhookSecret,
		"ADMIN_PASSWORD":          &c.AdminPassword,
	}
	for name, dst := range targets {
		v, err := sm.GetSecret(ctx, secretPrefix+name)
		if err != nil || v == "" {
			continue
		}
		*dst = v
	}
}

// Validate reports every missing or too-short required value at once.
func (c *Config) Validate() error {
	var errs []error
	required := []struct {
		name, value string
	}{
		{"MONGODB_URI", c.MongoURI},
		{"JWT_SECRET", c.JWTSecret},
		{"ADMIN_EMAIL", c.AdminEmail},
		{"ADMIN_PASSWORD", c.AdminPassword},
		{"RAZORPAY_KEY_ID", c.RazorpayKeyID},
		{"RAZORPAY_KEY_SECRET", c.RazorpayKeySecret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.name))
		}
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < minJWTSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength))
	}
	if c.AdminPassword != "" && len(c.AdminPassword) < minAdminPasswordLength {
		errs = append(errs, fmt.Errorf("ADMIN_PASSWORD must be at least %d characters", minAdminPasswordLength))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
