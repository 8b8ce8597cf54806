package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/fundedlabs/backend-checkout/internal/config"
	"github.com/fundedlabs/backend-checkout/internal/obs"
	"github.com/fundedlabs/backend-checkout/internal/resilience"
	"github.com/fundedlabs/backend-checkout/internal/tracking"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "checkout"), nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	taskRedis, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}

	dispatcher := &tracking.Dispatcher{
		Logger: logger,
	}
	if cfg.HyrosAPIKey != "" && cfg.HyrosBaseURL != "" {
		dispatcher.Hyros = &tracking.Hyros{
			BaseURL: cfg.HyrosBaseURL,
			APIKey:  cfg.HyrosAPIKey,
			HTTP:    trackingHTTPClient("hyros", logger),
		}
	}
	if cfg.KlaviyoAPIKey != "" && cfg.KlaviyoBaseURL != "" {
		dispatcher.Klaviyo = &tracking.Klaviyo{
			BaseURL: cfg.KlaviyoBaseURL,
			APIKey:  cfg.KlaviyoAPIKey,
			HTTP:    trackingHTTPClient("klaviyo", logger),
		}
	}
	if cfg.PostHogAPIKey != "" && cfg.PostHogBaseURL != "" {
		dispatcher.PostHog = &tracking.PostHog{
			BaseURL: cfg.PostHogBaseURL,
			APIKey:  cfg.PostHogAPIKey,
			HTTP:    trackingHTTPClient("posthog", logger),
		}
	}
	if cfg.AxceraToken != "" && cfg.AxceraBaseURL != "" {
		dispatcher.Axcera = &tracking.Axcera{
			BaseURL: cfg.AxceraBaseURL,
			Token:   cfg.AxceraToken,
			HTTP:    trackingHTTPClient("axcera", logger),
		}
	}

	srv := asynq.NewServer(taskRedis, asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{"default": 1},
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return resilience.Backoff(2*time.Second, n, 0.2)
		},
		Logger: asynqLogger{logger},
	})

	go func() {
		<-ctx.Done()
		logger.Info().Msg("worker shutting down")
		srv.Shutdown()
	}()

	logger.Info().Msg("worker starting")
	if err := srv.Run(dispatcher.Mux()); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("worker shutdown complete")
}

func trackingHTTPClient(target string, logger zerolog.Logger) resilience.HTTPClient {
	componentLogger := logger.With().Str("platform", target).Logger()
	return resilience.HTTPClient{
		Client:      &http.Client{Timeout: 15 * time.Second},
		Breaker:     resilience.NewBreaker(10, 0.5, time.Minute).WithTarget(target).WithLogger(componentLogger),
		BaseBackoff: 200 * time.Millisecond,
		MaxAttempts: 3,
		Jitter:      0.2,
		Timeout:     15 * time.Second,
	}
}

// asynqLogger adapts zerolog to asynq's logger interface.
type asynqLogger struct {
	l zerolog.Logger
}

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug().Msgf("%v", args) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info().Msgf("%v", args) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn().Msgf("%v", args) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error().Msgf("%v", args) }
func (a asynqLogger) Fatal(args ...interface{}) { a.l.Fatal().Msgf("%v", args) }

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
