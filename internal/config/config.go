package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	CMSBaseURL      string
	CMSAPIToken     string
	ProgramCacheTTL time.Duration

	AdminJWTSecret   string
	AdminJWTIssuer   string
	AdminJWTAudience string

	Currency            string
	PaymentCallbackBase string
	MockGatewaySecret   string
	WebhookReplayTTL    time.Duration
	IdempotencyTTL      time.Duration

	HyrosAPIKey    string
	HyrosBaseURL   string
	KlaviyoAPIKey  string
	KlaviyoBaseURL string
	PostHogAPIKey  string
	PostHogBaseURL string
	AxceraToken    string
	AxceraBaseURL  string

	QuoteRateLimit  int
	QuoteRateWindow time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		CMSBaseURL:      strings.TrimRight(strings.TrimSpace(k.String("CMS_BASE_URL")), "/"),
		CMSAPIToken:     k.String("CMS_API_TOKEN"),
		ProgramCacheTTL: parseDuration(k.String("PROGRAM_CACHE_TTL"), "5m"),

		AdminJWTSecret:   k.String("ADMIN_JWT_SECRET"),
		AdminJWTIssuer:   strings.TrimSpace(k.String("ADMIN_JWT_ISSUER")),
		AdminJWTAudience: strings.TrimSpace(k.String("ADMIN_JWT_AUDIENCE")),

		Currency:            valueOrDefault(strings.TrimSpace(k.String("CURRENCY")), "USD"),
		PaymentCallbackBase: strings.TrimRight(strings.TrimSpace(k.String("PAYMENT_CALLBACK_BASE_URL")), "/"),
		MockGatewaySecret:   k.String("MOCK_GATEWAY_SECRET"),
		WebhookReplayTTL:    parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),
		IdempotencyTTL:      parseDuration(k.String("IDEMPOTENCY_TTL"), "15m"),

		HyrosAPIKey:    k.String("HYROS_API_KEY"),
		HyrosBaseURL:   strings.TrimRight(strings.TrimSpace(k.String("HYROS_BASE_URL")), "/"),
		KlaviyoAPIKey:  k.String("KLAVIYO_API_KEY"),
		KlaviyoBaseURL: strings.TrimRight(strings.TrimSpace(k.String("KLAVIYO_BASE_URL")), "/"),
		PostHogAPIKey:  k.String("POSTHOG_API_KEY"),
		PostHogBaseURL: strings.TrimRight(strings.TrimSpace(k.String("POSTHOG_BASE_URL")), "/"),
		AxceraToken:    k.String("AXCERA_API_TOKEN"),
		AxceraBaseURL:  strings.TrimRight(strings.TrimSpace(k.String("AXCERA_BASE_URL")), "/"),

		QuoteRateLimit:  intOrDefault(k.Int("QUOTE_RATE_LIMIT"), 60),
		QuoteRateWindow: parseDuration(k.String("QUOTE_RATE_WINDOW"), "1m"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.CMSBaseURL == "" {
		return nil, errors.New("CMS_BASE_URL is required")
	}
	if cfg.AdminJWTSecret == "" {
		return nil, errors.New("ADMIN_JWT_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func intOrDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
