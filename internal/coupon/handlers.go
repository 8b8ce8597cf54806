package coupon

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fundedlabs/backend-checkout/internal/catalog"
	"github.com/fundedlabs/backend-checkout/internal/common"
)

// AdminHandler exposes dry-run coupon resolution for support and ops.
type AdminHandler struct {
	Coupons  catalog.CouponRepository
	Resolver *Resolver
	Logger   zerolog.Logger
}

type previewRequest struct {
	Code         string            `json:"code"`
	ProgramID    string            `json:"programId"`
	AccountSize  string            `json:"accountSize"`
	OrderAmount  int64             `json:"orderAmount"`
	UserEmail    string            `json:"userEmail"`
	URLParams    map[string]string `json:"urlParams"`
	IsFirstVisit bool              `json:"isFirstVisit"`
}

type previewResponse struct {
	Eligible       bool    `json:"eligible"`
	Code           string  `json:"code,omitempty"`
	DiscountType   string  `json:"discountType,omitempty"`
	DiscountAmount int64   `json:"discountAmount"`
	FinalPrice     int64   `json:"finalPrice"`
	Reason         *string `json:"reason,omitempty"`
}

// Preview handles POST /api/v1/admin/coupons/preview. With a code it dry-runs
// that coupon; without one it resolves the best automatic coupon for the
// context. Nothing is persisted.
func (h *AdminHandler) Preview(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Coupons == nil || h.Resolver == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "coupon preview not configured", nil)
		return
	}
	var req previewRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", nil)
		return
	}
	if req.OrderAmount <= 0 {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "orderAmount must be positive", nil)
		return
	}

	ctx := Context{
		ProgramID:    strings.TrimSpace(req.ProgramID),
		AccountSize:  req.AccountSize,
		OrderAmount:  req.OrderAmount,
		URLParams:    req.URLParams,
		UserEmail:    strings.TrimSpace(req.UserEmail),
		IsFirstVisit: req.IsFirstVisit,
	}

	code := strings.TrimSpace(req.Code)
	if code != "" {
		c, found, err := h.Coupons.GetCouponByCode(r.Context(), code)
		if err != nil {
			common.JSONError(w, http.StatusBadGateway, common.CodeUpstream, "coupon data unavailable", nil)
			return
		}
		if !found {
			reason := "coupon code not found"
			common.JSON(w, http.StatusOK, map[string]any{"data": previewResponse{Eligible: false, Reason: &reason}})
			return
		}
		sel, err := h.Resolver.Evaluate(c, ctx)
		if err != nil {
			reason := err.Error()
			common.JSON(w, http.StatusOK, map[string]any{"data": previewResponse{Eligible: false, Code: c.Code, Reason: &reason}})
			return
		}
		common.JSON(w, http.StatusOK, map[string]any{"data": toPreviewResponse(sel)})
		return
	}

	active, err := h.Coupons.ListActiveCoupons(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusBadGateway, common.CodeUpstream, "coupon data unavailable", nil)
		return
	}
	sel, ok := h.Resolver.ResolveBest(ctx, active)
	if !ok {
		reason := "no eligible coupon for context"
		common.JSON(w, http.StatusOK, map[string]any{"data": previewResponse{Eligible: false, Reason: &reason}})
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toPreviewResponse(sel)})
}

func toPreviewResponse(sel Selected) previewResponse {
	return previewResponse{
		Eligible:       true,
		Code:           strings.ToUpper(sel.Coupon.Code),
		DiscountType:   string(sel.DiscountType),
		DiscountAmount: sel.EffectiveDiscount(),
		FinalPrice:     sel.Discount.FinalPrice,
	}
}
