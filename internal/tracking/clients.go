package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fundedlabs/backend-checkout/internal/resilience"
)

// Hyros reports orders to the Hyros attribution API.
type Hyros struct {
	BaseURL string
	APIKey  string
	HTTP    resilience.HTTPClient
}

// Report forwards an order event to Hyros.
func (c Hyros) Report(ctx context.Context, p Payload) error {
	body := map[string]any{
		"email":        p.UserEmail,
		"orderId":      p.OrderID,
		"price":        p.TotalPrice,
		"currency":     p.Currency,
		"event":        p.Event,
		"productId":    p.ProgramID,
		"productTier":  p.TierID,
		"purchaseType": p.PurchaseType,
	}
	if p.CouponCode != nil {
		body["couponCode"] = *p.CouponCode
	}
	headers := map[string]string{"API-Key": c.APIKey}
	return postJSON(ctx, c.HTTP, joinURL(c.BaseURL, "/v1/orders"), headers, body)
}

// Klaviyo tracks customer events for email flows.
type Klaviyo struct {
	BaseURL string
	APIKey  string
	HTTP    resilience.HTTPClient
}

// Track sends a Klaviyo event for the order.
func (c Klaviyo) Track(ctx context.Context, p Payload) error {
	body := map[string]any{
		"data": map[string]any{
			"type": "event",
			"attributes": map[string]any{
				"metric": map[string]any{
					"data": map[string]any{
						"type":       "metric",
						"attributes": map[string]any{"name": p.Event},
					},
				},
				"profile": map[string]any{
					"data": map[string]any{
						"type":       "profile",
						"attributes": map[string]any{"email": p.UserEmail},
					},
				},
				"value":      float64(p.TotalPrice) / 100,
				"properties": p,
			},
		},
	}
	headers := map[string]string{
		"Authorization": "Klaviyo-API-Key " + c.APIKey,
		"revision":      "2024-10-15",
	}
	return postJSON(ctx, c.HTTP, joinURL(c.BaseURL, "/api/events"), headers, body)
}

// PostHog captures product analytics events.
type PostHog struct {
	BaseURL string
	APIKey  string
	HTTP    resilience.HTTPClient
}

// Capture records the order event in PostHog.
func (c PostHog) Capture(ctx context.Context, p Payload) error {
	body := map[string]any{
		"api_key":     c.APIKey,
		"event":       p.Event,
		"distinct_id": p.UserEmail,
		"properties":  p,
	}
	return postJSON(ctx, c.HTTP, joinURL(c.BaseURL, "/capture/"), nil, body)
}

// Axcera forwards orders to the back-office platform, including affiliate
// attribution so commission callbacks happen there.
type Axcera struct {
	BaseURL string
	Token   string
	HTTP    resilience.HTTPClient
}

// Forward pushes the full order payload to Axcera.
func (c Axcera) Forward(ctx context.Context, p Payload) error {
	headers := map[string]string{"Authorization": "Bearer " + c.Token}
	return postJSON(ctx, c.HTTP, joinURL(c.BaseURL, "/api/orders"), headers, p)
}

func postJSON(ctx context.Context, cl resilience.HTTPClient, url string, headers map[string]string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := cl.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tracking upstream %s: status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
