package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fundedlabs/backend-checkout/internal/catalog"
	"github.com/fundedlabs/backend-checkout/internal/coupon"
	"github.com/fundedlabs/backend-checkout/internal/pricing"
)

var calcNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

type stubPrograms struct {
	program catalog.Program
	err     error
}

func (s stubPrograms) GetProgram(_ context.Context, _ string) (catalog.Program, error) {
	return s.program, s.err
}

type stubCoupons struct {
	byCode map[string]catalog.Coupon
	active []catalog.Coupon
	err    error
}

func (s stubCoupons) GetCouponByCode(_ context.Context, code string) (catalog.Coupon, bool, error) {
	if s.err != nil {
		return catalog.Coupon{}, false, s.err
	}
	c, ok := s.byCode[code]
	return c, ok, nil
}

func (s stubCoupons) ListActiveCoupons(_ context.Context) ([]catalog.Coupon, error) {
	return s.active, s.err
}

func int64Ptr(v int64) *int64 { return &v }

func nitroProgram() catalog.Program {
	return catalog.Program{
		ID:            "prog-nitro",
		Name:          "Nitro",
		ActivationFee: int64Ptr(7500),
		Tiers: []catalog.PricingTier{
			{
				ID:             "tier-10k",
				AccountSize:    "$10,000",
				Price:          10000,
				ResetFee:       int64Ptr(4000),
				ResetFeeFunded: int64Ptr(6000),
			},
			{ID: "tier-50k", AccountSize: "$50,000", Price: 30000},
		},
	}
}

func percentCoupon(code string, value int64) catalog.Coupon {
	return catalog.Coupon{
		Code:          code,
		Status:        catalog.CouponActive,
		DiscountType:  "percentage",
		DiscountValue: decimal.NewFromInt(value),
		ValidFrom:     calcNow.Add(-24 * time.Hour),
	}
}

func newCalculator(programs catalog.ProgramRepository, coupons catalog.CouponRepository) *PriceCalculator {
	return &PriceCalculator{
		Programs: programs,
		Coupons:  coupons,
		Resolver: &coupon.Resolver{Now: func() time.Time { return calcNow }},
	}
}

func TestCalculateExplicitCoupon(t *testing.T) {
	calc := newCalculator(
		stubPrograms{program: nitroProgram()},
		stubCoupons{byCode: map[string]catalog.Coupon{"SAVE20": percentCoupon("SAVE20", 20)}},
	)

	result, err := calc.Calculate(context.Background(), pricing.Input{
		ProgramID:   "prog-nitro",
		AccountSize: "10000",
		CouponCode:  "SAVE20",
		AddOns: []catalog.AddOn{
			{ID: "addon-news", PriceIncrease: decimal.NewFromInt(10)},
		},
	})
	require.NoError(t, err)

	require.Equal(t, int64(10000), result.TierPrice)
	require.Equal(t, int64(10000), result.OriginalPrice)
	require.Equal(t, int64(2000), result.AppliedDiscount)
	require.Equal(t, int64(8000), result.FinalPurchasePrice)
	require.Equal(t, int64(1000), result.AddOnValue)
	require.Equal(t, int64(9000), result.TotalPrice)
	require.True(t, result.CouponValid)
	require.NotNil(t, result.Coupon)
	require.Equal(t, "SAVE20", result.Coupon.Code)
	require.Empty(t, result.ExplicitCouponRejectedReason)
}

func TestCalculateExplicitCouponFallsBack(t *testing.T) {
	expired := percentCoupon("EXPIRED", 50)
	past := calcNow.Add(-time.Hour)
	expired.ValidTo = &past

	calc := newCalculator(
		stubPrograms{program: nitroProgram()},
		stubCoupons{
			byCode: map[string]catalog.Coupon{"EXPIRED": expired},
			active: []catalog.Coupon{percentCoupon("WELCOME10", 10)},
		},
	)

	result, err := calc.Calculate(context.Background(), pricing.Input{
		ProgramID:   "prog-nitro",
		AccountSize: "10000",
		CouponCode:  "EXPIRED",
	})
	require.NoError(t, err)

	require.True(t, result.CouponValid)
	require.Equal(t, "WELCOME10", result.Coupon.Code)
	require.Equal(t, int64(1000), result.AppliedDiscount)
	require.Equal(t, coupon.ErrExpired.Error(), result.ExplicitCouponRejectedReason)
}

func TestCalculateUnknownCouponCode(t *testing.T) {
	calc := newCalculator(stubPrograms{program: nitroProgram()}, stubCoupons{})

	result, err := calc.Calculate(context.Background(), pricing.Input{
		ProgramID:   "prog-nitro",
		AccountSize: "10000",
		CouponCode:  "NOPE",
	})
	require.NoError(t, err)

	require.False(t, result.CouponValid)
	require.Nil(t, result.Coupon)
	require.Equal(t, "coupon code not found", result.ExplicitCouponRejectedReason)
	require.Equal(t, int64(10000), result.TotalPrice)
}

func TestCalculateTierIDWinsOverAccountSize(t *testing.T) {
	calc := newCalculator(stubPrograms{program: nitroProgram()}, stubCoupons{})

	result, err := calc.Calculate(context.Background(), pricing.Input{
		ProgramID:   "prog-nitro",
		TierID:      "tier-50k",
		AccountSize: "10000",
	})
	require.NoError(t, err)
	require.Equal(t, int64(30000), result.TierPrice)
}

func TestCalculateTierNotFound(t *testing.T) {
	calc := newCalculator(stubPrograms{program: nitroProgram()}, stubCoupons{})

	_, err := calc.Calculate(context.Background(), pricing.Input{
		ProgramID:   "prog-nitro",
		AccountSize: "999K",
	})

	var notFound *pricing.TierNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "999K", notFound.AccountSize)
}

func TestCalculateResetOrderIgnoresCoupons(t *testing.T) {
	coupons := stubCoupons{
		byCode: map[string]catalog.Coupon{"SAVE20": percentCoupon("SAVE20", 20)},
		active: []catalog.Coupon{percentCoupon("WELCOME10", 10)},
	}
	calc := newCalculator(stubPrograms{program: nitroProgram()}, coupons)

	result, err := calc.Calculate(context.Background(), pricing.Input{
		ProgramID:    "prog-nitro",
		AccountSize:  "10000",
		PurchaseType: pricing.PurchaseReset,
		CouponCode:   "SAVE20",
	})
	require.NoError(t, err)

	require.Equal(t, int64(4000), result.TierPrice)
	require.Equal(t, int64(4000), result.TotalPrice)
	require.False(t, result.CouponValid)
	require.Nil(t, result.Coupon)
}

func TestCalculateResetOrderFundedFee(t *testing.T) {
	calc := newCalculator(stubPrograms{program: nitroProgram()}, stubCoupons{})

	result, err := calc.Calculate(context.Background(), pricing.Input{
		ProgramID:        "prog-nitro",
		AccountSize:      "10000",
		PurchaseType:     pricing.PurchaseReset,
		ResetProductType: pricing.ResetProductFunded,
	})
	require.NoError(t, err)
	require.Equal(t, int64(6000), result.TierPrice)
}

func TestCalculateResetFeeNotConfigured(t *testing.T) {
	calc := newCalculator(stubPrograms{program: nitroProgram()}, stubCoupons{})

	_, err := calc.Calculate(context.Background(), pricing.Input{
		ProgramID:    "prog-nitro",
		AccountSize:  "50000",
		PurchaseType: pricing.PurchaseReset,
	})

	var notSet *pricing.FeeNotConfiguredError
	require.ErrorAs(t, err, &notSet)
	require.Equal(t, pricing.PurchaseReset, notSet.PurchaseType)
}

func TestCalculateActivationOrder(t *testing.T) {
	calc := newCalculator(stubPrograms{program: nitroProgram()}, stubCoupons{})

	result, err := calc.Calculate(context.Background(), pricing.Input{
		ProgramID:    "prog-nitro",
		AccountSize:  "10000",
		PurchaseType: pricing.PurchaseActivation,
	})
	require.NoError(t, err)
	require.Equal(t, int64(7500), result.TotalPrice)
}

func TestCalculateActivationFeeMissing(t *testing.T) {
	program := nitroProgram()
	program.ActivationFee = nil
	calc := newCalculator(stubPrograms{program: program}, stubCoupons{})

	_, err := calc.Calculate(context.Background(), pricing.Input{
		ProgramID:    "prog-nitro",
		AccountSize:  "10000",
		PurchaseType: pricing.PurchaseActivation,
	})

	var notSet *pricing.FeeNotConfiguredError
	require.ErrorAs(t, err, &notSet)
}

func TestCalculateProgramNotFound(t *testing.T) {
	calc := newCalculator(stubPrograms{err: catalog.ErrProgramNotFound}, stubCoupons{})

	_, err := calc.Calculate(context.Background(), pricing.Input{ProgramID: "missing"})
	require.ErrorIs(t, err, catalog.ErrProgramNotFound)
}

func TestCalculateIsDeterministic(t *testing.T) {
	calc := newCalculator(
		stubPrograms{program: nitroProgram()},
		stubCoupons{active: []catalog.Coupon{percentCoupon("WELCOME10", 10), percentCoupon("SAVE5", 5)}},
	)
	in := pricing.Input{
		ProgramID:   "prog-nitro",
		AccountSize: "10000",
		AddOns:      []catalog.AddOn{{ID: "addon-news", PriceIncrease: decimal.NewFromInt(5)}},
	}

	first, err := calc.Calculate(context.Background(), in)
	require.NoError(t, err)
	second, err := calc.Calculate(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestCalculateInvariants(t *testing.T) {
	fixed := catalog.Coupon{
		Code:          "TAKE150",
		Status:        catalog.CouponActive,
		DiscountType:  "fixed",
		DiscountValue: decimal.NewFromInt(15000),
		ValidFrom:     calcNow.Add(-24 * time.Hour),
	}
	calc := newCalculator(
		stubPrograms{program: nitroProgram()},
		stubCoupons{byCode: map[string]catalog.Coupon{"TAKE150": fixed}},
	)

	result, err := calc.Calculate(context.Background(), pricing.Input{
		ProgramID:   "prog-nitro",
		AccountSize: "10000",
		CouponCode:  "TAKE150",
		AddOns:      []catalog.AddOn{{ID: "addon-news", PriceIncrease: decimal.NewFromInt(10)}},
	})
	require.NoError(t, err)

	// a fixed discount larger than the price clamps at zero rather than
	// going negative, and the applied discount reflects what came off
	require.Equal(t, int64(0), result.FinalPurchasePrice)
	require.Equal(t, int64(10000), result.AppliedDiscount)
	require.Equal(t, result.OriginalPrice-result.AppliedDiscount, result.FinalPurchasePrice)
	require.Equal(t, result.FinalPurchasePrice+result.AddOnValue, result.TotalPrice)
	require.GreaterOrEqual(t, result.FinalPurchasePrice, int64(0))
}

func TestVerifySubmitted(t *testing.T) {
	calc := newCalculator(stubPrograms{program: nitroProgram()}, stubCoupons{})
	in := pricing.Input{ProgramID: "prog-nitro", AccountSize: "10000"}

	result, err := calc.VerifySubmitted(context.Background(), in, 10000)
	require.NoError(t, err)
	require.Equal(t, int64(10000), result.TotalPrice)

	_, err = calc.VerifySubmitted(context.Background(), in, 9999)
	require.ErrorIs(t, err, ErrPriceMismatch)
}
