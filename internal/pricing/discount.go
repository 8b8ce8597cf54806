package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fundedlabs/backend-checkout/internal/catalog"
)

// DiscountType is the closed set of supported discount semantics.
type DiscountType string

const (
	// DiscountPercentage discounts a percentage (0-100) of the original price.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed discounts a fixed amount in minor currency units.
	DiscountFixed DiscountType = "fixed"
)

var hundred = decimal.NewFromInt(100)

// ParseDiscountType maps a raw CMS discount-type string onto the enum. It
// fails with InvalidDiscountTypeError for anything it does not recognize.
func ParseDiscountType(raw string) (DiscountType, error) {
	switch DiscountType(strings.ToLower(strings.TrimSpace(raw))) {
	case DiscountPercentage:
		return DiscountPercentage, nil
	case DiscountFixed:
		return DiscountFixed, nil
	default:
		return "", &InvalidDiscountTypeError{Type: raw}
	}
}

// Discount is the outcome of applying a single discount against a price.
// All amounts are minor currency units.
type Discount struct {
	OriginalPrice  int64
	DiscountAmount int64
	FinalPrice     int64
}

// CalculateDiscount applies the discount described by (kind, value) to
// originalPrice. Percentage discounts round half-up so fractional cents never
// under-charge; fixed discounts keep their face value but the final price is
// clamped at zero.
func CalculateDiscount(originalPrice int64, kind DiscountType, value decimal.Decimal) (Discount, error) {
	if originalPrice < 0 {
		originalPrice = 0
	}
	switch kind {
	case DiscountPercentage:
		amount := RoundHalfUp(decimal.NewFromInt(originalPrice).Mul(value).Div(hundred))
		final := originalPrice - amount
		if final < 0 {
			final = 0
		}
		return Discount{OriginalPrice: originalPrice, DiscountAmount: amount, FinalPrice: final}, nil
	case DiscountFixed:
		amount := RoundHalfUp(value)
		final := originalPrice - amount
		if final < 0 {
			final = 0
		}
		return Discount{OriginalPrice: originalPrice, DiscountAmount: amount, FinalPrice: final}, nil
	default:
		return Discount{}, &InvalidDiscountTypeError{Type: string(kind)}
	}
}

// AddOnValue sums the surcharges for the selected add-ons against the tier
// base price. Each add-on contributes independently; increases are additive,
// never compounded against each other or against a discounted price.
func AddOnValue(basePrice int64, addOns []catalog.AddOn) int64 {
	if basePrice <= 0 {
		return 0
	}
	base := decimal.NewFromInt(basePrice)
	var total int64
	for _, addOn := range addOns {
		if addOn.PriceIncrease.Sign() <= 0 {
			continue
		}
		total += RoundHalfUp(base.Mul(addOn.PriceIncrease).Div(hundred))
	}
	return total
}

// RoundHalfUp rounds a decimal amount to the nearest integer minor unit,
// rounding .5 away from zero. Money never rides on binary floats here.
func RoundHalfUp(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
