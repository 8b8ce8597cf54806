package coupon

import (
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fundedlabs/backend-checkout/internal/catalog"
	"github.com/fundedlabs/backend-checkout/internal/pricing"
)

var (
	// ErrNotEligible is returned when the coupon yields no usable discount for
	// the provided context.
	ErrNotEligible = errors.New("coupon not eligible")
	// ErrInactive is returned for coupons outside active status.
	ErrInactive = errors.New("coupon not active")
	// ErrNotStarted is returned before the coupon's validity window opens.
	ErrNotStarted = errors.New("coupon not yet valid")
	// ErrExpired is returned after the coupon's validity window closed.
	ErrExpired = errors.New("coupon expired")
	// ErrProgramScope indicates the coupon is restricted to other programs.
	ErrProgramScope = errors.New("coupon not valid for this program")
	// ErrAccountSizeScope indicates the coupon is restricted to other account sizes.
	ErrAccountSizeScope = errors.New("coupon not valid for this account size")
	// ErrEmailScope indicates the coupon is limited to an email allow-list.
	ErrEmailScope = errors.New("coupon not valid for this customer")
	// ErrURLTrigger indicates the required campaign URL parameter is missing.
	ErrURLTrigger = errors.New("coupon requires a campaign parameter")
	// ErrFirstVisitOnly indicates the coupon only applies on a first visit.
	ErrFirstVisitOnly = errors.New("coupon limited to first visits")
)

// Context carries the checkout facts coupon rules are evaluated against.
// OrderAmount is the resolved tier base price in minor units.
type Context struct {
	ProgramID    string
	AccountSize  string
	OrderAmount  int64
	URLParams    map[string]string
	UserEmail    string
	IsFirstVisit bool
}

// Selected is a coupon that passed every rule, together with the discount it
// yields against the context's order amount.
type Selected struct {
	Coupon       catalog.Coupon
	DiscountType pricing.DiscountType
	Discount     pricing.Discount
}

// EffectiveDiscount is the amount actually taken off the order, after
// clamping at a zero final price.
func (s Selected) EffectiveDiscount() int64 {
	return s.Discount.OriginalPrice - s.Discount.FinalPrice
}

// Eligible checks every scope and trigger rule of the coupon against the
// context at the provided instant. It returns nil when the coupon may apply,
// or the sentinel for the first rule that failed.
func Eligible(c catalog.Coupon, ctx Context, now time.Time) error {
	if c.Status != catalog.CouponActive {
		return ErrInactive
	}
	if now.Before(c.ValidFrom) {
		return ErrNotStarted
	}
	if c.ValidTo != nil && now.After(*c.ValidTo) {
		return ErrExpired
	}
	if len(c.ProgramIDs) > 0 && !containsFold(c.ProgramIDs, ctx.ProgramID) {
		return ErrProgramScope
	}
	if len(c.AccountSizes) > 0 && !containsAccountSize(c.AccountSizes, ctx.AccountSize) {
		return ErrAccountSizeScope
	}
	if c.URLParamKey != "" {
		value, ok := ctx.URLParams[c.URLParamKey]
		if !ok {
			return ErrURLTrigger
		}
		if c.URLParamValue != "" && !strings.EqualFold(value, c.URLParamValue) {
			return ErrURLTrigger
		}
	}
	if c.FirstVisit && !ctx.IsFirstVisit {
		return ErrFirstVisitOnly
	}
	if len(c.Emails) > 0 && !containsFold(c.Emails, ctx.UserEmail) {
		return ErrEmailScope
	}
	return nil
}

// Specificity counts the restricted dimensions of a coupon. A coupon scoped
// to a program and an account size beats an unrestricted storewide coupon
// when both yield the same discount.
func Specificity(c catalog.Coupon) int {
	n := 0
	if len(c.ProgramIDs) > 0 {
		n++
	}
	if len(c.AccountSizes) > 0 {
		n++
	}
	if len(c.Emails) > 0 {
		n++
	}
	if c.URLParamKey != "" {
		n++
	}
	if c.FirstVisit {
		n++
	}
	return n
}

// Resolver selects the best automatically applicable coupon from a catalog
// snapshot. It is pure selection over the supplied slice; it never fetches.
type Resolver struct {
	Now    func() time.Time
	Logger *zerolog.Logger
}

func (r *Resolver) now() time.Time {
	if r != nil && r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Evaluate runs the full rule set plus discount computation for one coupon.
// Malformed discount descriptors surface as errors so callers can decide to
// skip or report.
func (r *Resolver) Evaluate(c catalog.Coupon, ctx Context) (Selected, error) {
	if err := Eligible(c, ctx, r.now()); err != nil {
		return Selected{}, err
	}
	kind, err := pricing.ParseDiscountType(c.DiscountType)
	if err != nil {
		return Selected{}, err
	}
	discount, err := pricing.CalculateDiscount(ctx.OrderAmount, kind, c.DiscountValue)
	if err != nil {
		return Selected{}, err
	}
	sel := Selected{Coupon: c, DiscountType: kind, Discount: discount}
	if sel.EffectiveDiscount() <= 0 {
		return Selected{}, ErrNotEligible
	}
	return sel, nil
}

// ResolveBest filters the snapshot to eligible coupons and picks exactly one:
// largest effective discount first, then most specific scope, then earliest
// ValidFrom, then code, so resolution is deterministic for a fixed snapshot
// and clock.
func (r *Resolver) ResolveBest(ctx Context, coupons []catalog.Coupon) (Selected, bool) {
	var (
		best  Selected
		found bool
	)
	for _, c := range coupons {
		sel, err := r.Evaluate(c, ctx)
		if err != nil {
			var badType *pricing.InvalidDiscountTypeError
			if errors.As(err, &badType) && r != nil && r.Logger != nil {
				r.Logger.Warn().Str("coupon", c.Code).Str("discount_type", badType.Type).Msg("skipping coupon with invalid discount type")
			}
			continue
		}
		if !found || better(sel, best) {
			best = sel
			found = true
		}
	}
	return best, found
}

func better(a, b Selected) bool {
	if a.EffectiveDiscount() != b.EffectiveDiscount() {
		return a.EffectiveDiscount() > b.EffectiveDiscount()
	}
	if sa, sb := Specificity(a.Coupon), Specificity(b.Coupon); sa != sb {
		return sa > sb
	}
	if !a.Coupon.ValidFrom.Equal(b.Coupon.ValidFrom) {
		return a.Coupon.ValidFrom.Before(b.Coupon.ValidFrom)
	}
	return strings.ToUpper(a.Coupon.Code) < strings.ToUpper(b.Coupon.Code)
}

func containsFold(haystack []string, needle string) bool {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return false
	}
	for _, candidate := range haystack {
		if strings.EqualFold(strings.TrimSpace(candidate), needle) {
			return true
		}
	}
	return false
}

func containsAccountSize(sizes []string, label string) bool {
	want := catalog.NormalizeAccountSize(label)
	if want == "" {
		return false
	}
	for _, size := range sizes {
		if catalog.NormalizeAccountSize(size) == want {
			return true
		}
	}
	return false
}
