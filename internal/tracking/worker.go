package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/fundedlabs/backend-checkout/internal/obs"
)

// Dispatcher fans a tracking payload out to the configured platforms.
// Each platform is optional; a nil-configured client is skipped. Platform
// failures are aggregated so asynq retries the whole task.
type Dispatcher struct {
	Hyros   *Hyros
	Klaviyo *Klaviyo
	PostHog *PostHog
	Axcera  *Axcera
	Logger  zerolog.Logger
}

// Mux returns the asynq handler mux for the tracking task kinds.
func (d *Dispatcher) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskCheckoutCompleted, d.Handle)
	mux.HandleFunc(TaskPaymentCompleted, d.Handle)
	return mux
}

// Handle processes a single tracking task.
func (d *Dispatcher) Handle(ctx context.Context, t *asynq.Task) error {
	var p Payload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		// malformed payload will never succeed; drop instead of retrying
		d.Logger.Error().Err(err).Str("task", t.Type()).Msg("tracking payload unreadable")
		return fmt.Errorf("decode payload: %w: %s", asynq.SkipRetry, err)
	}

	var failures []error
	dispatch := func(platform string, fn func(context.Context, Payload) error) {
		if fn == nil {
			return
		}
		start := time.Now()
		err := fn(ctx, p)
		if obs.TrackingDispatchLatency != nil {
			obs.TrackingDispatchLatency.WithLabelValues(platform).Observe(obs.DurationMillis(time.Since(start)))
		}
		if err != nil {
			recordDispatch(platform, "failed")
			d.Logger.Warn().Err(err).
				Str("platform", platform).
				Str("orderId", p.OrderID).
				Str("event", p.Event).
				Msg("tracking dispatch failed")
			failures = append(failures, fmt.Errorf("%s: %w", platform, err))
			return
		}
		recordDispatch(platform, "ok")
		d.Logger.Info().
			Str("platform", platform).
			Str("orderId", p.OrderID).
			Str("event", p.Event).
			Msg("tracking dispatched")
	}

	if d.Hyros != nil {
		dispatch("hyros", d.Hyros.Report)
	}
	if d.Klaviyo != nil {
		dispatch("klaviyo", d.Klaviyo.Track)
	}
	if d.PostHog != nil {
		dispatch("posthog", d.PostHog.Capture)
	}
	if d.Axcera != nil {
		dispatch("axcera", d.Axcera.Forward)
	}

	if len(failures) > 0 {
		return fmt.Errorf("tracking fan-out: %d platform(s) failed: %v", len(failures), failures)
	}
	return nil
}

func recordDispatch(platform, result string) {
	if obs.TrackingDispatchTotal != nil {
		obs.TrackingDispatchTotal.WithLabelValues(platform, result).Inc()
	}
}
