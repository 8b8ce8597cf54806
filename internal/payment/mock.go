package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SignatureHeader carries the hex HMAC-SHA256 of the webhook body.
const SignatureHeader = "X-Signature"

// Mock is a deterministic Provider for development and tests. Intents are
// synthesised locally and webhooks are verified against an HMAC of the raw
// body, which keeps the settlement path exercisable without a real gateway.
type Mock struct {
	Secret    string
	BaseURL   string
	IntentTTL time.Duration
}

// CreateIntent synthesises a redirect URL without a network call.
func (m Mock) CreateIntent(_ context.Context, req IntentRequest) (IntentResponse, error) {
	if strings.TrimSpace(req.OrderID) == "" {
		return IntentResponse{}, errors.New("order id is required")
	}
	if req.Amount < 0 {
		return IntentResponse{}, errors.New("amount must not be negative")
	}
	ttl := m.IntentTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	ref := fmt.Sprintf("MOCK-%s", req.OrderID)
	base := strings.TrimRight(m.BaseURL, "/")
	if base == "" {
		base = "https://pay.invalid"
	}
	return IntentResponse{
		Provider:    "mock",
		Reference:   ref,
		RedirectURL: fmt.Sprintf("%s/intent/%s", base, ref),
		ExpiresAt:   time.Now().Add(ttl).Unix(),
	}, nil
}

// VerifyWebhook checks the body HMAC and normalises the payload.
func (m Mock) VerifyWebhook(r *http.Request, body []byte) (WebhookVerifyResult, error) {
	provided := strings.TrimSpace(r.Header.Get(SignatureHeader))
	expected := m.Sign(body)
	if expected == "" || provided == "" || !hmac.Equal([]byte(expected), []byte(provided)) {
		return WebhookVerifyResult{Valid: false, Err: errors.New("invalid signature")}, nil
	}
	var payload struct {
		OrderID string `json:"orderId"`
		Amount  int64  `json:"amount"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookVerifyResult{Valid: false, Err: err}, nil
	}
	if payload.OrderID == "" {
		return WebhookVerifyResult{Valid: false, Err: errors.New("missing order id")}, nil
	}
	return WebhookVerifyResult{
		Valid:           true,
		OrderID:         payload.OrderID,
		Amount:          payload.Amount,
		Status:          normaliseStatus(payload.Status),
		ProviderPayload: body,
	}, nil
}

// Sign computes the webhook signature for body; exposed for tests.
func (m Mock) Sign(body []byte) string {
	key := strings.TrimSpace(m.Secret)
	if key == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func normaliseStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "paid", "settled", "succeeded":
		return StatusPaid
	case "failed", "cancelled", "denied":
		return StatusFailed
	case "expired":
		return StatusExpired
	default:
		return StatusPending
	}
}
