package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundedlabs/backend-checkout/internal/affiliate"
)

// ProgramCategory enumerates the evaluation models sold by the firm.
type ProgramCategory string

const (
	CategoryStepOne ProgramCategory = "step-1"
	CategoryStepTwo ProgramCategory = "step-2"
	CategoryInstant ProgramCategory = "instant"
)

// PricingTier is one priced account-size option within a program. All prices
// are in minor currency units. Tiers are read-only snapshots from the CMS.
type PricingTier struct {
	ID             string `json:"id"`
	AccountSize    string `json:"accountSize"`
	Price          int64  `json:"price"`
	ResetFee       *int64 `json:"resetFee,omitempty"`
	ResetFeeFunded *int64 `json:"resetFeeFunded,omitempty"`
}

// Program is a purchasable evaluation program with its ordered tier list.
type Program struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Category      ProgramCategory `json:"category"`
	Tiers         []PricingTier   `json:"pricingTiers"`
	ActivationFee *int64          `json:"activationFeeValue,omitempty"`
}

// CouponStatus gates whether a coupon participates in resolution at all.
type CouponStatus string

const (
	CouponActive   CouponStatus = "active"
	CouponInactive CouponStatus = "inactive"
)

// Coupon is a discount instrument as configured in the CMS. Scope slices are
// empty when the dimension is unrestricted.
type Coupon struct {
	ID            string                 `json:"id"`
	Code          string                 `json:"code"`
	Status        CouponStatus           `json:"status"`
	DiscountType  string                 `json:"discountType"`
	DiscountValue decimal.Decimal        `json:"discountValue"`
	ValidFrom     time.Time              `json:"validFrom"`
	ValidTo       *time.Time             `json:"validTo,omitempty"`
	ProgramIDs    []string               `json:"programIds,omitempty"`
	AccountSizes  []string               `json:"accountSizes,omitempty"`
	Emails        []string               `json:"emails,omitempty"`
	URLParamKey   string                 `json:"urlParamKey,omitempty"`
	URLParamValue string                 `json:"urlParamValue,omitempty"`
	FirstVisit    bool                   `json:"firstVisitOnly,omitempty"`
	Affiliate     *affiliate.Attribution `json:"affiliate,omitempty"`
}

// AddOn is an optional surcharge feature priced as a percentage of the tier
// base price. Metadata is opaque and passed through to orders untouched.
type AddOn struct {
	ID            string          `json:"id"`
	PriceIncrease decimal.Decimal `json:"priceIncreasePercentage"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
}

// NormalizeAccountSize canonicalizes an account-size label for comparison:
// currency symbols, separators and whitespace are stripped and the remainder
// upper-cased, so "$10,000", "10 000" and "10000" all compare equal and
// "10k" matches "10K".
func NormalizeAccountSize(label string) string {
	replacer := strings.NewReplacer("$", "", ",", "", " ", "", "\t", "")
	return strings.ToUpper(replacer.Replace(strings.TrimSpace(label)))
}

// TierByID returns the tier with the given identifier.
func (p Program) TierByID(id string) (PricingTier, bool) {
	for _, t := range p.Tiers {
		if t.ID == id {
			return t, true
		}
	}
	return PricingTier{}, false
}

// TierByAccountSize returns the first tier whose normalized account-size label
// matches the normalized input.
func (p Program) TierByAccountSize(label string) (PricingTier, bool) {
	want := NormalizeAccountSize(label)
	if want == "" {
		return PricingTier{}, false
	}
	for _, t := range p.Tiers {
		if NormalizeAccountSize(t.AccountSize) == want {
			return t, true
		}
	}
	return PricingTier{}, false
}
