// Package config loads and validates portfolio service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Metadata   MetadataConfig   `mapstructure:"metadata"`
	Screenshot ScreenshotConfig `mapstructure:"screenshot"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Stripe     StripeConfig     `mapstructure:"stripe"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int    `mapstructure:"port"`
	PublicBaseURL  string `mapstructure:"public_base_url"`
	RequestTimeout int    `mapstructure:"request_timeout_seconds"`
}

// AuthConfig configures bearer-token verification.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// HTTPConfig configures the outbound HTTP client.
type HTTPConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// MetadataConfig controls page metadata extraction.
type MetadataConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int `mapstructure:"max_body_bytes"`
}

// ScreenshotConfig controls the screenshot strategy chain.
type ScreenshotConfig struct {
	ScreenshotAPIToken   string         `mapstructure:"screenshotapi_token"`
	ScreenshotOneKey     string         `mapstructure:"screenshotone_access_key"`
	APITimeoutSeconds    int            `mapstructure:"api_timeout_seconds"`
	Prefix               string         `mapstructure:"prefix"`
	Headless             HeadlessConfig `mapstructure:"headless"`
	PlaceholderCacheSecs int            `mapstructure:"placeholder_cache_seconds"`
	RedirectCacheSeconds int            `mapstructure:"redirect_cache_seconds"`
}

// HeadlessConfig configures the local headless renderer.
type HeadlessConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	MaxParallel    int    `mapstructure:"max_parallel"`
	NavTimeoutSec  int    `mapstructure:"nav_timeout_seconds"`
	SettleMillis   int    `mapstructure:"settle_ms"`
	HardTimeoutSec int    `mapstructure:"hard_timeout_seconds"`
	ExecPath       string `mapstructure:"exec_path"`
}

// IngestConfig bounds project ingestion.
type IngestConfig struct {
	ScreenshotTimeoutSec int    `mapstructure:"screenshot_timeout_seconds"`
	Topic                string `mapstructure:"topic"`
}

// StorageConfig selects the image store backend.
type StorageConfig struct {
	Backend       string      `mapstructure:"backend"`
	Bucket        string      `mapstructure:"bucket"`
	PublicBaseURL string      `mapstructure:"public_base_url"`
	Local         LocalConfig `mapstructure:"local"`
}

// LocalConfig configures the filesystem image store.
type LocalConfig struct {
	BaseDir       string `mapstructure:"base_dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// DatabaseConfig controls access to the relational database.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// RedisConfig configures the webhook event ledger.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTLHours int    `mapstructure:"ttl_hours"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// StripeConfig holds payment platform credentials and the product offered.
type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	Currency      string `mapstructure:"currency"`
	UnitAmount    int64  `mapstructure:"unit_amount"`
	ProductName   string `mapstructure:"product_name"`
	SuccessURL    string `mapstructure:"success_url"`
	CancelURL     string `mapstructure:"cancel_url"`
}

// RateLimitConfig throttles project creation per owner.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// LoggingConfig toggles zap development features and the optional file sink.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PORTFOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.public_base_url", "http://localhost:8080")
	v.SetDefault("server.request_timeout_seconds", 120)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("http.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("metadata.timeout_seconds", 15)
	v.SetDefault("metadata.max_body_bytes", 5<<20)
	v.SetDefault("screenshot.screenshotapi_token", "")
	v.SetDefault("screenshot.screenshotone_access_key", "")
	v.SetDefault("screenshot.api_timeout_seconds", 15)
	v.SetDefault("screenshot.prefix", "screenshots")
	v.SetDefault("screenshot.placeholder_cache_seconds", 3600)
	v.SetDefault("screenshot.redirect_cache_seconds", 86400)
	v.SetDefault("screenshot.headless.enabled", false)
	v.SetDefault("screenshot.headless.max_parallel", 2)
	v.SetDefault("screenshot.headless.nav_timeout_seconds", 30)
	v.SetDefault("screenshot.headless.settle_ms", 2000)
	v.SetDefault("screenshot.headless.hard_timeout_seconds", 75)
	v.SetDefault("screenshot.headless.exec_path", "")
	v.SetDefault("ingest.screenshot_timeout_seconds", 90)
	v.SetDefault("ingest.topic", "project-created")
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.local.base_dir", "./media")
	v.SetDefault("storage.local.public_base_url", "http://localhost:8080/media")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl_hours", 72)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.currency", "pln")
	v.SetDefault("stripe.unit_amount", 1900)
	v.SetDefault("stripe.product_name", "Portfolio Premium")
	v.SetDefault("stripe.success_url", "http://localhost:3000/dashboard?success=true")
	v.SetDefault("stripe.cancel_url", "http://localhost:3000/dashboard?canceled=true")
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.rps", 0.2)
	v.SetDefault("rate_limit.burst", 5)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Metadata.TimeoutSeconds <= 0 {
		return fmt.Errorf("metadata.timeout_seconds must be > 0")
	}
	if c.Screenshot.APITimeoutSeconds <= 0 {
		return fmt.Errorf("screenshot.api_timeout_seconds must be > 0")
	}
	if c.Screenshot.Headless.Enabled && c.Screenshot.Headless.MaxParallel <= 0 {
		return fmt.Errorf("screenshot.headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Ingest.ScreenshotTimeoutSec <= 0 {
		return fmt.Errorf("ingest.screenshot_timeout_seconds must be > 0")
	}
	switch c.Storage.Backend {
	case "", "memory":
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set when storage.backend is gcs")
		}
	case "local":
		if c.Storage.Local.BaseDir == "" {
			return fmt.Errorf("storage.local.base_dir must be set when storage.backend is local")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	if c.RateLimit.Enabled && c.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate_limit.rps must be > 0 when rate limiting is enabled")
	}
	if c.Stripe.SecretKey != "" && c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("stripe.webhook_secret must be set when stripe.secret_key is set")
	}
	return nil
}

// MetadataTimeout returns the page fetch bound used by the extractor.
func (c Config) MetadataTimeout() time.Duration {
	return time.Duration(c.Metadata.TimeoutSeconds) * time.Second
}

// HTTPTimeout returns the per-request bound for outbound page fetches.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// ScreenshotBudget returns the overall screenshot bound used during ingestion.
func (c Config) ScreenshotBudget() time.Duration {
	return time.Duration(c.Ingest.ScreenshotTimeoutSec) * time.Second
}
