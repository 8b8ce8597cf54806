package payment

import (
	"context"
	"net/http"
)

// IntentRequest carries the server-calculated totals handed to a gateway when
// opening a payment intent. Amount is always the authoritative total in minor
// units; client-submitted numbers never reach a provider.
type IntentRequest struct {
	OrderID         string
	Amount          int64
	Currency        string
	CustomerEmail   string
	Description     string
	CallbackBaseURL string
}

// IntentResponse is the minimal information a provider returns for a new intent.
type IntentResponse struct {
	Provider    string
	Reference   string
	RedirectURL string
	ExpiresAt   int64
}

// WebhookVerifyResult is the normalised outcome of verifying a provider
// callback. Valid=false with a nil error means the signature did not check out.
type WebhookVerifyResult struct {
	Valid           bool
	OrderID         string
	Amount          int64
	Status          string
	ProviderPayload []byte
	Err             error
}

// Provider abstracts a payment gateway. Implementations receive only
// gateway-agnostic totals; pricing logic stays upstream.
type Provider interface {
	CreateIntent(ctx context.Context, req IntentRequest) (IntentResponse, error)
	VerifyWebhook(r *http.Request, body []byte) (WebhookVerifyResult, error)
}

// Webhook statuses after normalisation.
const (
	StatusPaid    = "PAID"
	StatusPending = "PENDING"
	StatusFailed  = "FAILED"
	StatusExpired = "EXPIRED"
)
