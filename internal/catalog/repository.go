package catalog

import (
	"context"
	"errors"
)

// ErrProgramNotFound indicates the CMS has no program with the requested id.
var ErrProgramNotFound = errors.New("catalog: program not found")

// ProgramRepository reads program snapshots. Implementations must return a
// single consistent snapshot per call; pricing never re-fetches mid
// calculation.
type ProgramRepository interface {
	GetProgram(ctx context.Context, id string) (Program, error)
}

// CouponRepository reads coupon snapshots. GetCouponByCode reports found=false
// for unknown codes rather than an error, mirroring how the pricing layer
// treats a bad code as non-fatal.
type CouponRepository interface {
	GetCouponByCode(ctx context.Context, code string) (Coupon, bool, error)
	ListActiveCoupons(ctx context.Context) ([]Coupon, error)
}
