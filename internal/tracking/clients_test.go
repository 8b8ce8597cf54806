package tracking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fundedlabs/backend-checkout/internal/resilience"
)

func strPtr(s string) *string { return &s }

func samplePayload() Payload {
	return Payload{
		OrderID:      "ord-1",
		Event:        "checkout.completed",
		ProgramID:    "prog-nitro",
		TierID:       "tier-10k",
		PurchaseType: "original-order",
		UserEmail:    "trader@example.com",
		Currency:     "USD",
		TotalPrice:   9000,
		CouponCode:   strPtr("SAVE20"),
	}
}

func trackingServer(t *testing.T, assert func(r *http.Request, body map[string]any)) (*httptest.Server, resilience.HTTPClient) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert(r, body)
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)
	return srv, resilience.HTTPClient{Client: srv.Client()}
}

func TestHyrosReport(t *testing.T) {
	srv, cl := trackingServer(t, func(r *http.Request, body map[string]any) {
		require.Equal(t, "/v1/orders", r.URL.Path)
		require.Equal(t, "hyros-key", r.Header.Get("API-Key"))
		require.Equal(t, "ord-1", body["orderId"])
		require.Equal(t, "SAVE20", body["couponCode"])
	})

	c := Hyros{BaseURL: srv.URL, APIKey: "hyros-key", HTTP: cl}
	require.NoError(t, c.Report(context.Background(), samplePayload()))
}

func TestKlaviyoTrack(t *testing.T) {
	srv, cl := trackingServer(t, func(r *http.Request, body map[string]any) {
		require.Equal(t, "/api/events", r.URL.Path)
		require.Equal(t, "Klaviyo-API-Key klaviyo-key", r.Header.Get("Authorization"))
		require.NotEmpty(t, r.Header.Get("revision"))

		data, ok := body["data"].(map[string]any)
		require.True(t, ok)
		attrs, ok := data["attributes"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, 90.0, attrs["value"])
	})

	c := Klaviyo{BaseURL: srv.URL, APIKey: "klaviyo-key", HTTP: cl}
	require.NoError(t, c.Track(context.Background(), samplePayload()))
}

func TestPostHogCapture(t *testing.T) {
	srv, cl := trackingServer(t, func(r *http.Request, body map[string]any) {
		require.Equal(t, "/capture/", r.URL.Path)
		require.Equal(t, "posthog-key", body["api_key"])
		require.Equal(t, "trader@example.com", body["distinct_id"])
	})

	c := PostHog{BaseURL: srv.URL, APIKey: "posthog-key", HTTP: cl}
	require.NoError(t, c.Capture(context.Background(), samplePayload()))
}

func TestAxceraForward(t *testing.T) {
	srv, cl := trackingServer(t, func(r *http.Request, body map[string]any) {
		require.Equal(t, "/api/orders", r.URL.Path)
		require.Equal(t, "Bearer axcera-token", r.Header.Get("Authorization"))
		require.Equal(t, "ord-1", body["orderId"])
	})

	c := Axcera{BaseURL: srv.URL, Token: "axcera-token", HTTP: cl}
	require.NoError(t, c.Forward(context.Background(), samplePayload()))
}

func TestPostJSONRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad api key", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	c := Hyros{BaseURL: srv.URL, APIKey: "wrong", HTTP: resilience.HTTPClient{Client: srv.Client()}}
	err := c.Report(context.Background(), samplePayload())
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 401")
}
