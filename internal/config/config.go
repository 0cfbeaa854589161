package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config captures runtime configuration values used by the gate service.
type Config struct {
	// ServerAddress is the host:port pair the HTTP server listens on. Defaults to ":8787".
	ServerAddress string

	// WebhookSecret is the provider signing secret (optionally "whsec_" prefixed).
	// Empty is allowed; the webhook endpoint then rejects every delivery.
	WebhookSecret string

	// LiveMode selects the live checkout host. Set DODO_PAYMENTS_ENVIRONMENT=live_mode.
	LiveMode bool

	// ReturnURL overrides the post-checkout redirect. Defaults to <origin>/success.
	ReturnURL string

	// ProductID is the product offered on the checkout page.
	ProductID string

	// AppEmbedURL is the protected application framed on the app page.
	AppEmbedURL string

	// StoreDriver is one of memory, bolt or postgres. Empty leaves the service
	// without a record store and every request fails with 500.
	StoreDriver string

	// BoltPath is the database file for the bolt driver.
	BoltPath string

	// DatabaseURL is the Postgres DSN used by database/sql. Required for the postgres driver.
	DatabaseURL string

	TrialDuration    time.Duration
	WebhookTolerance time.Duration

	// CORSAllowedOrigins lists origins allowed to call /api/check-access from a browser.
	CORSAllowedOrigins []string

	LogLevel  string
	LogFormat string
}

const (
	defaultServerAddress    = ":8787"
	defaultBoltPath         = "trialgate.db"
	defaultAppEmbedURL      = "https://demo.imaginea.store/track"
	defaultTrialDuration    = 24 * time.Hour
	defaultWebhookTolerance = 5 * time.Minute
	defaultLogLevel         = "info"
	defaultLogFormat        = "auto"
	liveModeValue           = "live_mode"

	envServerAddress    = "BACKEND_ADDR"
	envWebhookSecret    = "DODO_PAYMENTS_WEBHOOK_KEY"
	envEnvironment      = "DODO_PAYMENTS_ENVIRONMENT"
	envReturnURL        = "DODO_PAYMENTS_RETURN_URL"
	envProductID        = "DODO_PAYMENTS_PRODUCT_ID"
	envAppEmbedURL      = "APP_EMBED_URL"
	envStoreDriver      = "STORE_DRIVER"
	envBoltPath         = "BOLT_PATH"
	envDatabaseURL      = "DATABASE_URL"
	envTrialDuration    = "TRIAL_DURATION"
	envWebhookTolerance = "WEBHOOK_TOLERANCE"
	envCORSOrigins      = "CORS_ALLOWED_ORIGINS"
	envLogLevel         = "LOG_LEVEL"
	envLogFormat        = "LOG_FORMAT"
)

// Drivers accepted for STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
)

// Load reads configuration from environment variables, applies defaults, and returns
// a Config structure. Required values return an error when missing.
func Load() (Config, error) {
	cfg := Config{
		ServerAddress:      firstNonEmpty(os.Getenv(envServerAddress), defaultServerAddress),
		WebhookSecret:      strings.TrimSpace(os.Getenv(envWebhookSecret)),
		LiveMode:           strings.EqualFold(strings.TrimSpace(os.Getenv(envEnvironment)), liveModeValue),
		ReturnURL:          strings.TrimSpace(os.Getenv(envReturnURL)),
		ProductID:          strings.TrimSpace(os.Getenv(envProductID)),
		AppEmbedURL:        firstNonEmpty(os.Getenv(envAppEmbedURL), defaultAppEmbedURL),
		StoreDriver:        strings.ToLower(strings.TrimSpace(os.Getenv(envStoreDriver))),
		BoltPath:           firstNonEmpty(os.Getenv(envBoltPath), defaultBoltPath),
		DatabaseURL:        os.Getenv(envDatabaseURL),
		CORSAllowedOrigins: splitList(os.Getenv(envCORSOrigins)),
		LogLevel:           firstNonEmpty(os.Getenv(envLogLevel), defaultLogLevel),
		LogFormat:          firstNonEmpty(os.Getenv(envLogFormat), defaultLogFormat),
	}

	var err error
	if cfg.TrialDuration, err = durationEnv(envTrialDuration, defaultTrialDuration); err != nil {
		return Config{}, err
	}
	if cfg.WebhookTolerance, err = durationEnv(envWebhookTolerance, defaultWebhookTolerance); err != nil {
		return Config{}, err
	}

	switch cfg.StoreDriver {
	case "", DriverMemory, DriverBolt:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("%s is required when %s=%s", envDatabaseURL, envStoreDriver, DriverPostgres)
		}
	default:
		return Config{}, fmt.Errorf("invalid %s %q: want %s, %s or %s", envStoreDriver, cfg.StoreDriver, DriverMemory, DriverBolt, DriverPostgres)
	}

	return cfg, nil
}

// LoadDatabaseURL returns DATABASE_URL for tools that only need the database.
func LoadDatabaseURL() (string, error) {
	dsn := os.Getenv(envDatabaseURL)
	if dsn == "" {
		return "", fmt.Errorf("%s is required", envDatabaseURL)
	}
	return dsn, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
