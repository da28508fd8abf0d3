package internal

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Env         string `env:"ENV" envDefault:"development"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"debug"`
	DatabaseUrl string `env:"DATABASE_URL,required"`

	// Optional. When set, rate limits are shared across instances.
	RedisURL string `env:"REDIS_URL"`

	// Application base URL (email links, Stripe return URLs)
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// UsageTimezone is the IANA zone whose midnight resets daily allowances.
	UsageTimezone string `env:"USAGE_TIMEZONE" envDefault:"UTC"`

	SessionDuration time.Duration `env:"SESSION_DURATION" envDefault:"168h"`

	// SMTP Configuration (defaults target Mailhog)
	SMTPHost     string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"1025"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"support@chartwise.app"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"Chartwise"`

	// Storage Configuration
	StorageProvider  string `env:"STORAGE_PROVIDER" envDefault:"local"` // "local" or "r2"
	LocalStoragePath string `env:"LOCAL_STORAGE_PATH" envDefault:"./storage"`
	LocalStorageURL  string `env:"LOCAL_STORAGE_URL" envDefault:"http://localhost:8080/files"`

	R2AccountID       string `env:"R2_ACCOUNT_ID"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	R2SecretAccessKey string `env:"R2_SECRET_ACCESS_KEY"`
	R2BucketName      string `env:"R2_BUCKET_NAME"`
	R2PublicURL       string `env:"R2_PUBLIC_URL"`
	R2Endpoint        string `env:"R2_ENDPOINT"` // e.g. a local MinIO

	// Worker Configuration
	WorkerEnabled      bool          `env:"WORKER_ENABLED" envDefault:"true"`
	WorkerConcurrency  int           `env:"WORKER_CONCURRENCY" envDefault:"2"`
	WorkerPollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"5s"`
	WorkerJobTimeout   time.Duration `env:"WORKER_JOB_TIMEOUT" envDefault:"5m"`

	// AI Provider Configuration
	AIProvider       string        `env:"AI_PROVIDER" envDefault:"mock"` // "anthropic" or "mock"
	AnthropicAPIKey  string        `env:"ANTHROPIC_API_KEY"`
	AnthropicModel   string        `env:"ANTHROPIC_MODEL" envDefault:"claude-3-5-sonnet-20241022"`
	AIMaxRetries     int           `env:"AI_MAX_RETRIES" envDefault:"3"`
	AIRetryBaseDelay time.Duration `env:"AI_RETRY_BASE_DELAY" envDefault:"1s"`
	AIRequestTimeout time.Duration `env:"AI_REQUEST_TIMEOUT" envDefault:"60s"`

	// Admin access control
	AdminEmails []string `env:"ADMIN_EMAILS" envSeparator:","`

	// Stripe Billing Configuration. Billing routes answer 503 while
	// STRIPE_SECRET_KEY is empty.
	StripeSecretKey           string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret       string `env:"STRIPE_WEBHOOK_SECRET"`
	StripePremiumMonthlyPrice string `env:"STRIPE_PREMIUM_MONTHLY_PRICE_ID"`
	StripePremiumYearlyPrice  string `env:"STRIPE_PREMIUM_YEARLY_PRICE_ID"`

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string `env:"METRICS_USERNAME"`
	MetricsPassword string `env:"METRICS_PASSWORD"`
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	return parseConfig(env.Options{})
}

func parseConfig(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether cookies and HSTS should require HTTPS.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// BillingEnabled reports whether Stripe is configured.
func (c *Config) BillingEnabled() bool {
	return c.StripeSecretKey != ""
}

func (c *Config) normalize() {
	c.StorageProvider = strings.ToLower(strings.TrimSpace(c.StorageProvider))
	c.AIProvider = strings.ToLower(strings.TrimSpace(c.AIProvider))
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	emails := c.AdminEmails[:0]
	for _, e := range c.AdminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			emails = append(emails, e)
		}
	}
	c.AdminEmails = emails
}

// Validate checks settings that depend on each other. Every problem is
// reported, not just the first.
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageProvider {
	case "local":
	case "r2":
		for _, v := range []struct{ name, value string }{
			{"R2_ACCOUNT_ID", c.R2AccountID},
			{"R2_ACCESS_KEY_ID", c.R2AccessKeyID},
			{"R2_SECRET_ACCESS_KEY", c.R2SecretAccessKey},
			{"R2_BUCKET_NAME", c.R2BucketName},
		} {
			if v.value == "" {
				errs = append(errs, fmt.Errorf("%s is required when STORAGE_PROVIDER is 'r2'", v.name))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", c.StorageProvider))
	}

	switch c.AIProvider {
	case "mock":
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required when AI_PROVIDER is 'anthropic'"))
		}
	default:
		errs = append(errs, fmt.Errorf("AI_PROVIDER must be either 'anthropic' or 'mock', got: %s", c.AIProvider))
	}

	if c.BillingEnabled() {
		if c.StripeWebhookSecret == "" {
			errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set"))
		}
		if c.StripePremiumMonthlyPrice == "" && c.StripePremiumYearlyPrice == "" {
			errs = append(errs, errors.New("at least one STRIPE_PREMIUM_*_PRICE_ID is required when STRIPE_SECRET_KEY is set"))
		}
	}

	if _, err := time.LoadLocation(c.UsageTimezone); err != nil {
		errs = append(errs, fmt.Errorf("USAGE_TIMEZONE %q is not a valid IANA zone: %w", c.UsageTimezone, err))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got: %d", c.Port))
	}
	if c.WorkerEnabled && c.WorkerConcurrency < 1 {
		errs = append(errs, fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got: %d", c.WorkerConcurrency))
	}

	return errors.Join(errs...)
}
