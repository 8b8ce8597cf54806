package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/fundedlabs/backend-checkout/internal/affiliate"
	"github.com/fundedlabs/backend-checkout/internal/catalog"
)

// PurchaseType distinguishes what the customer is paying for.
type PurchaseType string

const (
	// PurchaseOriginal is a new evaluation account purchase.
	PurchaseOriginal PurchaseType = "original-order"
	// PurchaseReset pays to reset a breached account.
	PurchaseReset PurchaseType = "reset-order"
	// PurchaseActivation pays to activate a funded account.
	PurchaseActivation PurchaseType = "activation-order"
)

// ResetProductFunded selects the funded-account reset fee when present.
const ResetProductFunded = "funded"

// Input is a checkout price-calculation request. URLParams and IsFirstVisit
// feed coupon trigger rules; they never influence base pricing.
type Input struct {
	ProgramID        string
	AccountSize      string
	TierID           string
	AddOns           []catalog.AddOn
	CouponCode       string
	PurchaseType     PurchaseType
	ResetProductType string
	UserEmail        string
	URLParams        map[string]string
	IsFirstVisit     bool
	Affiliate        affiliate.Attribution
}

// CouponDetails records the coupon that was actually applied, for downstream
// display and tracking.
type CouponDetails struct {
	Code          string                 `json:"code"`
	DiscountType  DiscountType           `json:"discountType"`
	DiscountValue decimal.Decimal        `json:"discountValue"`
	Affiliate     *affiliate.Attribution `json:"affiliate,omitempty"`
}

// Result is the sole artifact handed to order persistence and tracking.
// Invariants: TotalPrice == FinalPurchasePrice + AddOnValue and
// FinalPurchasePrice == OriginalPrice - AppliedDiscount, with
// FinalPurchasePrice >= 0. OriginalPrice equals TierPrice unless a coupon
// applied, in which case it records the pre-discount tier price for display.
type Result struct {
	TierPrice          int64          `json:"tierPrice"`
	OriginalPrice      int64          `json:"originalPrice"`
	AppliedDiscount    int64          `json:"appliedDiscount"`
	FinalPurchasePrice int64          `json:"finalPurchasePrice"`
	AddOnValue         int64          `json:"addOnValue"`
	TotalPrice         int64          `json:"totalPrice"`
	CouponValid        bool           `json:"couponValid"`
	Coupon             *CouponDetails `json:"couponDetails,omitempty"`

	// ExplicitCouponRejectedReason is a diagnostic only: a supplied code that
	// failed validation never blocks checkout, but callers can log or surface
	// why it did not apply.
	ExplicitCouponRejectedReason string `json:"explicitCouponRejectedReason,omitempty"`
}
