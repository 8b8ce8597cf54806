package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fundedlabs/backend-checkout/internal/common"
	"github.com/fundedlabs/backend-checkout/internal/obs"
	"github.com/fundedlabs/backend-checkout/internal/order"
)

// Tracker enqueues post-settlement tracking work. Dispatch failures must not
// fail the webhook response.
type Tracker interface {
	PaymentCompleted(ctx context.Context, o order.Order) error
}

// Webhook handles provider callbacks: signature verification, replay
// protection, settlement and tracking fan-out.
type Webhook struct {
	Providers map[string]Provider
	Orders    *order.Repository
	Replay    *redis.Client
	ReplayTTL time.Duration
	Tracker   Tracker
	Logger    zerolog.Logger
}

// Handle processes POST /webhooks/payment/{provider}.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Orders == nil || len(h.Providers) == 0 {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "webhook unavailable", nil)
		return
	}
	providerKey := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))
	provider, ok := h.Providers[providerKey]
	if !ok {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "unknown provider", nil)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "unable to read payload", nil)
		return
	}
	result, err := provider.VerifyWebhook(r, body)
	if err != nil {
		recordWebhook(providerKey, "verify_error")
		common.JSONError(w, http.StatusBadRequest, common.CodePaymentInvalid, err.Error(), nil)
		return
	}
	if !result.Valid {
		recordWebhook(providerKey, "invalid_signature")
		h.Logger.Warn().Err(result.Err).Str("provider", providerKey).Msg("webhook signature rejected")
		common.JSONError(w, http.StatusUnauthorized, common.CodePaymentInvalid, "signature verification failed", nil)
		return
	}

	ctx := r.Context()
	if h.Replay != nil && h.ReplayTTL > 0 {
		sum := sha256.Sum256(body)
		key := fmt.Sprintf("checkout:wh:%s:%s", providerKey, hex.EncodeToString(sum[:]))
		fresh, err := h.Replay.SetNX(ctx, key, "1", h.ReplayTTL).Result()
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "replay store unavailable", nil)
			return
		}
		if !fresh {
			recordWebhook(providerKey, "replay")
			common.JSONError(w, http.StatusConflict, common.CodeIdempotency, "duplicate webhook", nil)
			return
		}
	}

	orderID, err := uuid.Parse(result.OrderID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid order identifier", nil)
		return
	}
	ord, err := h.Orders.GetByID(ctx, orderID)
	if err != nil {
		if err == order.ErrNotFound {
			common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "order lookup failed", nil)
		return
	}
	if result.Amount > 0 && result.Amount != ord.TotalPrice {
		h.Logger.Warn().
			Str("orderId", ord.ID.String()).
			Int64("expected", ord.TotalPrice).
			Int64("reported", result.Amount).
			Msg("webhook amount mismatch")
		recordWebhook(providerKey, "amount_mismatch")
		common.JSONError(w, http.StatusBadRequest, common.CodePaymentInvalid, "provider amount mismatch", nil)
		return
	}

	if result.Status != StatusPaid {
		h.Logger.Info().
			Str("orderId", ord.ID.String()).
			Str("status", result.Status).
			Msg("webhook acknowledged without settlement")
		recordWebhook(providerKey, "ignored")
		common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"status": string(ord.Status)}})
		return
	}

	alreadyPaid := ord.Status == order.StatusPaid
	settled, err := h.Orders.MarkPaid(ctx, ord.ID, providerRef(providerKey, result))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "settlement failed", nil)
		return
	}
	if !alreadyPaid && settled.Status == order.StatusPaid && h.Tracker != nil {
		if err := h.Tracker.PaymentCompleted(ctx, settled); err != nil {
			h.Logger.Error().Err(err).Str("orderId", settled.ID.String()).Msg("payment tracking enqueue failed")
		}
	}
	recordWebhook(providerKey, "settled")
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"status": string(settled.Status)}})
}

func recordWebhook(provider, result string) {
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(provider, result).Inc()
	}
}

func providerRef(providerKey string, result WebhookVerifyResult) string {
	return fmt.Sprintf("%s:%s", providerKey, result.OrderID)
}
