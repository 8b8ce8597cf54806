package checkout

import (
	"errors"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/fundedlabs/backend-checkout/internal/catalog"
	"github.com/fundedlabs/backend-checkout/internal/common"
	"github.com/fundedlabs/backend-checkout/internal/obs"
	"github.com/fundedlabs/backend-checkout/internal/pricing"
)

// Handler exposes the public checkout endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// Quote handles POST /api/v1/checkout/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "checkout service not configured", nil)
		return
	}
	var payload Request
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
		return
	}
	result, err := h.Svc.Quote(r.Context(), payload)
	if err != nil {
		recordQuote(payload.PurchaseType, "error")
		h.writeError(w, err)
		return
	}
	recordQuote(payload.PurchaseType, "ok")
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Create handles POST /api/v1/checkout.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "checkout service not configured", nil)
		return
	}
	var payload CreateRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
		return
	}
	gateway := strings.ToLower(strings.TrimSpace(payload.Gateway))
	out, err := h.Svc.Create(r.Context(), payload)
	if err != nil {
		recordOrder(gateway, "error")
		h.writeError(w, err)
		return
	}
	recordOrder(gateway, "ok")
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

func recordQuote(purchaseType, result string) {
	if obs.QuoteTotal == nil {
		return
	}
	if purchaseType == "" {
		purchaseType = string(pricing.PurchaseOriginal)
	}
	obs.QuoteTotal.WithLabelValues(purchaseType, result).Inc()
}

func recordOrder(gateway, result string) {
	if obs.OrderTotal == nil {
		return
	}
	if gateway == "" {
		gateway = "unknown"
	}
	obs.OrderTotal.WithLabelValues(gateway, result).Inc()
}

func (h *Handler) validate(payload any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(payload)
}

// writeError maps calculation and orchestration errors to the canonical
// error envelope. Missing catalog data is the client's problem; failures to
// reach the catalog are ours.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		tierErr *pricing.TierNotFoundError
		feeErr  *pricing.FeeNotConfiguredError
	)
	switch {
	case errors.Is(err, catalog.ErrProgramNotFound):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "program not found", nil)
	case errors.As(err, &tierErr):
		common.JSONError(w, http.StatusBadRequest, common.CodeTierNotFound, tierErr.Error(), nil)
	case errors.As(err, &feeErr):
		common.JSONError(w, http.StatusUnprocessableEntity, common.CodeFeeNotSet, feeErr.Error(), nil)
	default:
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			common.RenderError(w, err)
			return
		}
		common.JSONError(w, http.StatusBadGateway, common.CodeUpstream, "pricing data unavailable", nil)
	}
}
