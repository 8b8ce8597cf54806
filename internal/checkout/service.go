package checkout

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fundedlabs/backend-checkout/internal/affiliate"
	"github.com/fundedlabs/backend-checkout/internal/catalog"
	"github.com/fundedlabs/backend-checkout/internal/common"
	"github.com/fundedlabs/backend-checkout/internal/order"
	"github.com/fundedlabs/backend-checkout/internal/payment"
	"github.com/fundedlabs/backend-checkout/internal/pricing"
)

// Request is the public quote/checkout payload. Clients submit selections
// only; every number in the response is computed server-side.
type Request struct {
	ProgramID        string                 `json:"programId" validate:"required"`
	AccountSize      string                 `json:"accountSize" validate:"required_without=TierID"`
	TierID           string                 `json:"tierId"`
	AddOns           []AddOnSelection       `json:"addOns" validate:"dive"`
	CouponCode       string                 `json:"couponCode"`
	PurchaseType     string                 `json:"purchaseType" validate:"omitempty,oneof=original-order reset-order activation-order"`
	ResetProductType string                 `json:"resetProductType"`
	UserEmail        string                 `json:"userEmail" validate:"omitempty,email"`
	URLParams        map[string]string      `json:"urlParams"`
	IsFirstVisit     bool                   `json:"isFirstVisit"`
	Affiliate        *affiliate.Attribution `json:"affiliate"`
}

// AddOnSelection is a selected add-on with its catalog price descriptor.
type AddOnSelection struct {
	ID            string          `json:"id" validate:"required"`
	PriceIncrease decimal.Decimal `json:"priceIncreasePercentage"`
	Metadata      map[string]any  `json:"metadata"`
}

// CreateRequest extends Request with the fields needed to open an order.
// ExpectedTotal, when present, is cross-checked against the server
// calculation and a mismatch rejects the checkout.
type CreateRequest struct {
	Request
	Gateway       string `json:"gateway" validate:"required"`
	ExpectedTotal *int64 `json:"expectedTotal"`
}

// PaymentInfo is the client-facing slice of a payment intent.
type PaymentInfo struct {
	Provider    string `json:"provider"`
	Reference   string `json:"reference"`
	RedirectURL string `json:"redirectUrl"`
	ExpiresAt   int64  `json:"expiresAt"`
}

// Output is the checkout response: the persisted order id, the authoritative
// breakdown and the payment redirect.
type Output struct {
	OrderID string         `json:"orderId"`
	Status  string         `json:"status"`
	Pricing pricing.Result `json:"pricing"`
	Payment PaymentInfo    `json:"payment"`
}

// Tracker enqueues checkout tracking work; failures never fail a checkout.
type Tracker interface {
	CheckoutCompleted(ctx context.Context, o order.Order) error
}

// Service orchestrates quote, order persistence, payment intent creation and
// tracking fan-out.
type Service struct {
	Calc            *PriceCalculator
	Orders          *order.Repository
	Providers       map[string]payment.Provider
	Tracker         Tracker
	Currency        string
	CallbackBaseURL string
	Logger          zerolog.Logger
}

// Quote runs the price calculation without side effects.
func (s *Service) Quote(ctx context.Context, req Request) (pricing.Result, error) {
	if s == nil || s.Calc == nil {
		return pricing.Result{}, errors.New("checkout service not configured")
	}
	return s.Calc.Calculate(ctx, req.toInput())
}

// Create calculates the price, persists the order and opens a payment intent.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Output, error) {
	if s == nil || s.Calc == nil || s.Orders == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	gateway := strings.ToLower(strings.TrimSpace(req.Gateway))
	provider, ok := s.Providers[gateway]
	if !ok {
		return Output{}, common.NewAppError(common.CodeValidation, "unsupported payment gateway", http.StatusBadRequest, nil)
	}

	in := req.toInput()
	var (
		result pricing.Result
		err    error
	)
	if req.ExpectedTotal != nil {
		result, err = s.Calc.VerifySubmitted(ctx, in, *req.ExpectedTotal)
		if errors.Is(err, ErrPriceMismatch) {
			return Output{}, common.NewAppError(common.CodePriceMismatch, "submitted total does not match server calculation", http.StatusConflict, err)
		}
	} else {
		result, err = s.Calc.Calculate(ctx, in)
	}
	if err != nil {
		return Output{}, err
	}

	ord, err := s.Orders.Create(ctx, s.buildOrder(req, in, result, gateway))
	if err != nil {
		return Output{}, err
	}

	intent, err := provider.CreateIntent(ctx, payment.IntentRequest{
		OrderID:         ord.ID.String(),
		Amount:          ord.TotalPrice,
		Currency:        ord.Currency,
		CustomerEmail:   ord.UserEmail,
		Description:     "order " + ord.ID.String(),
		CallbackBaseURL: s.CallbackBaseURL,
	})
	if err != nil {
		s.Logger.Error().Err(err).Str("orderId", ord.ID.String()).Str("gateway", gateway).Msg("payment intent creation failed")
		return Output{}, common.NewAppError(common.CodeUpstream, "payment gateway unavailable", http.StatusBadGateway, err)
	}

	if s.Tracker != nil {
		if err := s.Tracker.CheckoutCompleted(ctx, ord); err != nil {
			s.Logger.Error().Err(err).Str("orderId", ord.ID.String()).Msg("checkout tracking enqueue failed")
		}
	}

	return Output{
		OrderID: ord.ID.String(),
		Status:  string(ord.Status),
		Pricing: result,
		Payment: PaymentInfo{
			Provider:    intent.Provider,
			Reference:   intent.Reference,
			RedirectURL: intent.RedirectURL,
			ExpiresAt:   intent.ExpiresAt,
		},
	}, nil
}

func (s *Service) buildOrder(req CreateRequest, in pricing.Input, result pricing.Result, gateway string) order.Order {
	o := order.Order{
		ProgramID:       in.ProgramID,
		TierID:          in.TierID,
		AccountSize:     in.AccountSize,
		PurchaseType:    string(in.PurchaseType),
		Gateway:         gateway,
		Status:          order.StatusPendingPayment,
		UserEmail:       in.UserEmail,
		Currency:        s.Currency,
		TierPrice:       result.TierPrice,
		OriginalPrice:   result.OriginalPrice,
		AppliedDiscount: result.AppliedDiscount,
		PurchasePrice:   result.FinalPurchasePrice,
		AddOnValue:      result.AddOnValue,
		TotalPrice:      result.TotalPrice,
		CouponValid:     result.CouponValid,
		AddOns:          in.AddOns,
	}
	if o.Currency == "" {
		o.Currency = "USD"
	}
	if result.Coupon != nil {
		code := result.Coupon.Code
		kind := string(result.Coupon.DiscountType)
		value := result.Coupon.DiscountValue
		o.CouponCode = &code
		o.CouponDiscountType = &kind
		o.CouponDiscountValue = &value
		if result.Coupon.Affiliate != nil && !result.Coupon.Affiliate.Empty() {
			attribution := *result.Coupon.Affiliate
			o.Affiliate = &attribution
		}
	}
	if o.Affiliate == nil && !in.Affiliate.Empty() {
		attribution := in.Affiliate
		o.Affiliate = &attribution
	}
	return o
}

func (r Request) toInput() pricing.Input {
	purchaseType := pricing.PurchaseType(strings.TrimSpace(r.PurchaseType))
	if purchaseType == "" {
		purchaseType = pricing.PurchaseOriginal
	}
	addOns := make([]catalog.AddOn, 0, len(r.AddOns))
	for _, sel := range r.AddOns {
		addOns = append(addOns, catalog.AddOn{
			ID:            sel.ID,
			PriceIncrease: sel.PriceIncrease,
			Metadata:      sel.Metadata,
		})
	}
	in := pricing.Input{
		ProgramID:        strings.TrimSpace(r.ProgramID),
		AccountSize:      r.AccountSize,
		TierID:           strings.TrimSpace(r.TierID),
		AddOns:           addOns,
		CouponCode:       r.CouponCode,
		PurchaseType:     purchaseType,
		ResetProductType: strings.ToLower(strings.TrimSpace(r.ResetProductType)),
		UserEmail:        strings.TrimSpace(r.UserEmail),
		URLParams:        r.URLParams,
		IsFirstVisit:     r.IsFirstVisit,
	}
	if r.Affiliate != nil {
		in.Affiliate = *r.Affiliate
	}
	return in
}
