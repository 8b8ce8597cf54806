package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/fundedlabs/backend-checkout/internal/catalog"
	"github.com/fundedlabs/backend-checkout/internal/coupon"
	"github.com/fundedlabs/backend-checkout/internal/obs"
	"github.com/fundedlabs/backend-checkout/internal/pricing"
)

// ErrPriceMismatch indicates a client-submitted total does not match the
// server-side calculation for the same input.
var ErrPriceMismatch = errors.New("checkout: submitted price does not match calculation")

// PriceCalculator computes the authoritative price breakdown for a checkout
// request. It is the only component allowed to produce or verify a total; the
// client never supplies prices, only selections.
type PriceCalculator struct {
	Programs catalog.ProgramRepository
	Coupons  catalog.CouponRepository
	Resolver *coupon.Resolver
	Logger   *zerolog.Logger
}

// snapshot is the consistent view of catalog data a single calculation works
// from. Both reads complete before any pricing math starts and nothing is
// re-fetched mid-calculation.
type snapshot struct {
	program       catalog.Program
	explicit      catalog.Coupon
	explicitFound bool
	active        []catalog.Coupon
}

// Calculate resolves the tier, applies add-ons and coupon rules, and returns
// the complete breakdown. For a fixed catalog snapshot and clock the result
// is identical across calls, so the same function verifies submitted prices.
func (pc *PriceCalculator) Calculate(ctx context.Context, in pricing.Input) (pricing.Result, error) {
	if pc == nil || pc.Programs == nil {
		return pricing.Result{}, errors.New("checkout: price calculator not configured")
	}
	purchaseType := in.PurchaseType
	if purchaseType == "" {
		purchaseType = pricing.PurchaseOriginal
	}

	snap, err := pc.loadSnapshot(ctx, in, purchaseType)
	if err != nil {
		return pricing.Result{}, err
	}

	tier, err := resolveTier(snap.program, in)
	if err != nil {
		return pricing.Result{}, err
	}

	basePrice, err := resolveBasePrice(snap.program, tier, purchaseType, in.ResetProductType)
	if err != nil {
		return pricing.Result{}, err
	}

	addOnValue := pricing.AddOnValue(basePrice, in.AddOns)

	result := pricing.Result{
		TierPrice:          basePrice,
		OriginalPrice:      basePrice,
		FinalPurchasePrice: basePrice,
		AddOnValue:         addOnValue,
	}

	// Reset and activation purchases never accept coupons.
	if purchaseType == pricing.PurchaseOriginal {
		pc.applyCoupon(&result, in, tier, snap)
	}

	result.TotalPrice = result.FinalPurchasePrice + result.AddOnValue
	return result, nil
}

// VerifySubmitted re-runs the calculation and compares the grand total a
// client claims to have been quoted. A mismatch means tampering or a catalog
// change since the quote; either way the submitted price must not be trusted.
func (pc *PriceCalculator) VerifySubmitted(ctx context.Context, in pricing.Input, submittedTotal int64) (pricing.Result, error) {
	result, err := pc.Calculate(ctx, in)
	if err != nil {
		return pricing.Result{}, err
	}
	if result.TotalPrice != submittedTotal {
		return result, fmt.Errorf("%w: submitted %d, calculated %d", ErrPriceMismatch, submittedTotal, result.TotalPrice)
	}
	return result, nil
}

func (pc *PriceCalculator) loadSnapshot(ctx context.Context, in pricing.Input, purchaseType pricing.PurchaseType) (snapshot, error) {
	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		program, err := pc.Programs.GetProgram(gctx, in.ProgramID)
		if err != nil {
			return err
		}
		snap.program = program
		return nil
	})
	if purchaseType == pricing.PurchaseOriginal && pc.Coupons != nil {
		if code := strings.TrimSpace(in.CouponCode); code != "" {
			g.Go(func() error {
				c, found, err := pc.Coupons.GetCouponByCode(gctx, code)
				if err != nil {
					return err
				}
				snap.explicit = c
				snap.explicitFound = found
				return nil
			})
		}
		g.Go(func() error {
			active, err := pc.Coupons.ListActiveCoupons(gctx)
			if err != nil {
				return err
			}
			snap.active = active
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

func resolveTier(program catalog.Program, in pricing.Input) (catalog.PricingTier, error) {
	if in.TierID != "" {
		if tier, ok := program.TierByID(in.TierID); ok {
			return tier, nil
		}
	}
	if tier, ok := program.TierByAccountSize(in.AccountSize); ok {
		return tier, nil
	}
	return catalog.PricingTier{}, &pricing.TierNotFoundError{
		ProgramID:   program.ID,
		AccountSize: in.AccountSize,
		TierID:      in.TierID,
	}
}

func resolveBasePrice(program catalog.Program, tier catalog.PricingTier, purchaseType pricing.PurchaseType, resetProductType string) (int64, error) {
	switch purchaseType {
	case pricing.PurchaseOriginal:
		if tier.Price <= 0 {
			return 0, &pricing.FeeNotConfiguredError{PurchaseType: purchaseType, ProgramID: program.ID, TierID: tier.ID}
		}
		return tier.Price, nil
	case pricing.PurchaseReset:
		if strings.EqualFold(resetProductType, pricing.ResetProductFunded) && tier.ResetFeeFunded != nil {
			return *tier.ResetFeeFunded, nil
		}
		if tier.ResetFee != nil {
			return *tier.ResetFee, nil
		}
		return 0, &pricing.FeeNotConfiguredError{PurchaseType: purchaseType, ProgramID: program.ID, TierID: tier.ID}
	case pricing.PurchaseActivation:
		if program.ActivationFee == nil {
			return 0, &pricing.FeeNotConfiguredError{PurchaseType: purchaseType, ProgramID: program.ID, TierID: tier.ID}
		}
		return *program.ActivationFee, nil
	default:
		return 0, fmt.Errorf("checkout: unknown purchase type %q", purchaseType)
	}
}

// applyCoupon mutates result with the outcome of coupon resolution. An
// explicit code is tried first; when it fails validation the calculation
// falls through to automatic resolution instead of failing checkout. That
// silent fallback is a product decision, so the rejection reason is recorded
// for observability rather than returned as an error.
func (pc *PriceCalculator) applyCoupon(result *pricing.Result, in pricing.Input, tier catalog.PricingTier, snap snapshot) {
	couponCtx := coupon.Context{
		ProgramID:    in.ProgramID,
		AccountSize:  tier.AccountSize,
		OrderAmount:  result.TierPrice,
		URLParams:    in.URLParams,
		UserEmail:    in.UserEmail,
		IsFirstVisit: in.IsFirstVisit,
	}

	explicit := strings.TrimSpace(in.CouponCode) != ""
	if explicit {
		if !snap.explicitFound {
			result.ExplicitCouponRejectedReason = "coupon code not found"
		} else if sel, err := pc.resolver().Evaluate(snap.explicit, couponCtx); err != nil {
			result.ExplicitCouponRejectedReason = err.Error()
		} else {
			pc.record(result, sel)
			recordResolution("explicit")
			return
		}
		if pc.Logger != nil {
			pc.Logger.Info().
				Str("coupon_code", strings.TrimSpace(in.CouponCode)).
				Str("program_id", in.ProgramID).
				Str("reason", result.ExplicitCouponRejectedReason).
				Msg("explicit coupon rejected, falling back to automatic resolution")
		}
	}

	if sel, found := pc.resolver().ResolveBest(couponCtx, snap.active); found {
		pc.record(result, sel)
		if explicit {
			recordResolution("fallback")
		} else {
			recordResolution("automatic")
		}
		return
	}
	recordResolution("none")
}

func recordResolution(outcome string) {
	if obs.CouponResolutionTotal != nil {
		obs.CouponResolutionTotal.WithLabelValues(outcome).Inc()
	}
}

func (pc *PriceCalculator) record(result *pricing.Result, sel coupon.Selected) {
	result.OriginalPrice = sel.Discount.OriginalPrice
	result.FinalPurchasePrice = sel.Discount.FinalPrice
	result.AppliedDiscount = sel.Discount.OriginalPrice - sel.Discount.FinalPrice
	result.CouponValid = true
	result.Coupon = &pricing.CouponDetails{
		Code:          strings.ToUpper(strings.TrimSpace(sel.Coupon.Code)),
		DiscountType:  sel.DiscountType,
		DiscountValue: sel.Coupon.DiscountValue,
		Affiliate:     sel.Coupon.Affiliate,
	}
}

func (pc *PriceCalculator) resolver() *coupon.Resolver {
	if pc.Resolver != nil {
		return pc.Resolver
	}
	return &coupon.Resolver{}
}
