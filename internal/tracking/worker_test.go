package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fundedlabs/backend-checkout/internal/resilience"
)

func taskFor(t *testing.T, p Payload) *asynq.Task {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return asynq.NewTask(TaskCheckoutCompleted, raw)
}

func TestDispatcherFansOut(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)
	cl := resilience.HTTPClient{Client: srv.Client()}

	d := &Dispatcher{
		Hyros:   &Hyros{BaseURL: srv.URL, APIKey: "k", HTTP: cl},
		PostHog: &PostHog{BaseURL: srv.URL, APIKey: "k", HTTP: cl},
		Logger:  zerolog.Nop(),
	}

	err := d.Handle(context.Background(), taskFor(t, samplePayload()))
	require.NoError(t, err)
	require.Equal(t, int64(2), hits.Load())
}

func TestDispatcherAggregatesFailures(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(ok.Close)
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	t.Cleanup(broken.Close)

	d := &Dispatcher{
		Hyros:   &Hyros{BaseURL: ok.URL, APIKey: "k", HTTP: resilience.HTTPClient{Client: ok.Client()}},
		PostHog: &PostHog{BaseURL: broken.URL, APIKey: "k", HTTP: resilience.HTTPClient{Client: broken.Client()}},
		Logger:  zerolog.Nop(),
	}

	err := d.Handle(context.Background(), taskFor(t, samplePayload()))
	require.Error(t, err)
	require.Contains(t, err.Error(), "posthog")
	require.NotContains(t, err.Error(), "hyros:")
}

func TestDispatcherSkipsUnconfiguredPlatforms(t *testing.T) {
	d := &Dispatcher{Logger: zerolog.Nop()}
	require.NoError(t, d.Handle(context.Background(), taskFor(t, samplePayload())))
}

func TestDispatcherDropsMalformedPayload(t *testing.T) {
	d := &Dispatcher{Logger: zerolog.Nop()}
	task := asynq.NewTask(TaskCheckoutCompleted, []byte("{broken"))

	err := d.Handle(context.Background(), task)
	require.Error(t, err)
	require.True(t, errors.Is(err, asynq.SkipRetry))
}
