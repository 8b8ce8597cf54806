package payment

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMockCreateIntent(t *testing.T) {
	m := Mock{BaseURL: "https://pay.example.com/"}

	intent, err := m.CreateIntent(context.Background(), IntentRequest{
		OrderID: "ord-1",
		Amount:  9000,
	})
	require.NoError(t, err)
	require.Equal(t, "mock", intent.Provider)
	require.Equal(t, "MOCK-ord-1", intent.Reference)
	require.Equal(t, "https://pay.example.com/intent/MOCK-ord-1", intent.RedirectURL)
	require.Greater(t, intent.ExpiresAt, int64(0))
}

func TestMockCreateIntentRequiresOrderID(t *testing.T) {
	_, err := Mock{}.CreateIntent(context.Background(), IntentRequest{Amount: 100})
	require.Error(t, err)
}

func signedRequest(t *testing.T, m Mock, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment/mock", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, m.Sign(body))
	return req
}

func TestMockVerifyWebhook(t *testing.T) {
	m := Mock{Secret: "webhook-secret"}
	body := []byte(`{"orderId":"ord-1","amount":9000,"status":"paid"}`)

	result, err := m.VerifyWebhook(signedRequest(t, m, body), body)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, "ord-1", result.OrderID)
	require.Equal(t, int64(9000), result.Amount)
	require.Equal(t, StatusPaid, result.Status)
}

func TestMockVerifyWebhookBadSignature(t *testing.T) {
	m := Mock{Secret: "webhook-secret"}
	body := []byte(`{"orderId":"ord-1","status":"paid"}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment/mock", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, "deadbeef")

	result, err := m.VerifyWebhook(req, body)
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Error(t, result.Err)
}

func TestMockVerifyWebhookNoSecret(t *testing.T) {
	// an unconfigured secret must never validate anything
	m := Mock{}
	body := []byte(`{"orderId":"ord-1","status":"paid"}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment/mock", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, "")

	result, err := m.VerifyWebhook(req, body)
	require.NoError(t, err)
	require.False(t, result.Valid)
}

func TestMockVerifyWebhookMissingOrderID(t *testing.T) {
	m := Mock{Secret: "webhook-secret"}
	body := []byte(`{"status":"paid"}`)

	result, err := m.VerifyWebhook(signedRequest(t, m, body), body)
	require.NoError(t, err)
	require.False(t, result.Valid)
}

func TestNormaliseStatus(t *testing.T) {
	cases := map[string]string{
		"paid":      StatusPaid,
		"SETTLED":   StatusPaid,
		"succeeded": StatusPaid,
		"failed":    StatusFailed,
		"cancelled": StatusFailed,
		"expired":   StatusExpired,
		"weird":     StatusPending,
		"":          StatusPending,
	}
	for in, want := range cases {
		if got := normaliseStatus(in); got != want {
			t.Fatalf("normaliseStatus(%q) = %q, want %q", in, got, want)
		}
	}
}
