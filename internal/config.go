package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/DukeRupert/tenantly/internal/email"
	"github.com/DukeRupert/tenantly/internal/livekit"
	"github.com/DukeRupert/tenantly/internal/openai"
	"github.com/DukeRupert/tenantly/internal/push"
	"github.com/DukeRupert/tenantly/internal/rdb"
	"github.com/DukeRupert/tenantly/internal/sms"
	"github.com/DukeRupert/tenantly/internal/storage"
	"github.com/DukeRupert/tenantly/internal/worker"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Env         string `env:"ENV" envDefault:"development"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"debug"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	// PublicURL is the externally visible origin. Twilio signs requests
	// against it.
	PublicURL string `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`

	// SiteCacheTTL of zero keeps resolved sites until invalidated.
	SiteCacheTTL time.Duration `env:"SITE_CACHE_TTL" envDefault:"0s"`

	Redis   rdb.Config
	Quota   QuotaConfig
	Stripe  StripeConfig
	Apple   AppleConfig
	APNs    push.APNsConfig
	FCM     push.FCMConfig
	Twilio  sms.Config
	Email   email.Config
	Storage StorageConfig
	LiveKit livekit.Config
	OpenAI  openai.Config

	WorkerEnabled bool `env:"WORKER_ENABLED" envDefault:"true"`
	Worker        worker.Config

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string `env:"METRICS_USERNAME"`
	MetricsPassword string `env:"METRICS_PASSWORD"`
}

// QuotaConfig holds the per-user caps.
type QuotaConfig struct {
	MaxLiveKitTokensPerDay  int    `env:"BILLING_MAX_LIVEKIT_TOKENS_PER_DAY" envDefault:"20"`
	MaxOpenAISessionsPerDay int    `env:"BILLING_MAX_OPENAI_SESSIONS_PER_DAY" envDefault:"20"`
	MaxTeamsPerUser         int64  `env:"BILLING_MAX_TEAMS_PER_USER" envDefault:"1"`
	Timezone                string `env:"QUOTA_TIMEZONE" envDefault:"UTC"`
}

// StripeConfig is optional; billing endpoints answer not configured
// without a secret key.
type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
}

func (c StripeConfig) Enabled() bool { return c.SecretKey != "" }

// AppleConfig configures receipt verification and the App Store Server
// API.
type AppleConfig struct {
	BundleID     string   `env:"APPLE_BUNDLE_ID"`
	AppAppleID   int64    `env:"APPLE_APP_APPLE_ID"`
	RootCertPath []string `env:"APPLE_ROOT_CERT_PATHS" envSeparator:","`

	StoreKitKeyID    string `env:"APPLE_STOREKIT_KEY_ID"`
	StoreKitIssuerID string `env:"APPLE_STOREKIT_ISSUER_ID"`
	StoreKitKeyPath  string `env:"APPLE_STOREKIT_KEY_PATH"`
}

// VerificationEnabled reports whether signed payloads can be checked.
func (c AppleConfig) VerificationEnabled() bool {
	return c.BundleID != "" && len(c.RootCertPath) > 0
}

// HistoryEnabled reports whether transaction history can be fetched.
func (c AppleConfig) HistoryEnabled() bool {
	return c.StoreKitKeyID != "" && c.StoreKitIssuerID != "" && c.StoreKitKeyPath != "" && c.BundleID != ""
}

// StorageConfig selects where frontend bundles are read from.
type StorageConfig struct {
	Provider string `env:"STORAGE_PROVIDER" envDefault:"local"` // "local" or "s3"

	LocalPath string `env:"LOCAL_STORAGE_PATH" envDefault:"./frontends"`

	S3Bucket          string `env:"S3_BUCKET"`
	S3Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
}

func (c StorageConfig) S3() storage.S3Config {
	return storage.S3Config{
		Bucket:          c.S3Bucket,
		Region:          c.S3Region,
		AccessKeyID:     c.S3AccessKeyID,
		SecretAccessKey: c.S3SecretAccessKey,
		Endpoint:        c.S3Endpoint,
	}
}

func (c StorageConfig) Local() storage.LocalConfig {
	return storage.LocalConfig{BasePath: c.LocalPath}
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.Email.Provider = strings.ToLower(cfg.Email.Provider)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces settings that depend on each other.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	switch c.Storage.Provider {
	case storage.ProviderS3:
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_PROVIDER is 's3'")
		}
	case storage.ProviderLocal:
	default:
		return fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 's3', got: %s", c.Storage.Provider)
	}

	if _, err := time.LoadLocation(c.Quota.Timezone); err != nil {
		return fmt.Errorf("QUOTA_TIMEZONE: %w", err)
	}
	if c.Quota.MaxLiveKitTokensPerDay < 0 || c.Quota.MaxOpenAISessionsPerDay < 0 {
		return fmt.Errorf("daily quota caps cannot be negative")
	}

	if c.Stripe.Enabled() && c.Stripe.WebhookSecret == "" && c.IsProduction() {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}
	if c.Apple.HistoryEnabled() && !c.Apple.VerificationEnabled() {
		return fmt.Errorf("APPLE_ROOT_CERT_PATHS is required when App Store Server API credentials are set")
	}
	if c.Apple.VerificationEnabled() && c.Apple.AppAppleID == 0 {
		return fmt.Errorf("APPLE_APP_APPLE_ID is required for production receipt verification")
	}
	if (c.APNs.KeyID != "" || c.APNs.KeyPath != "") && !c.APNs.Enabled() {
		return fmt.Errorf("APNS_KEY_ID, APNS_TEAM_ID, APNS_TOPIC and APNS_KEY_PATH must be set together")
	}

	if c.WorkerEnabled {
		if err := c.Worker.Validate(); err != nil {
			return fmt.Errorf("worker: %w", err)
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// QuotaLocation is the zone quota days roll over in.
func (c *Config) QuotaLocation() *time.Location {
	loc, err := time.LoadLocation(c.Quota.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
