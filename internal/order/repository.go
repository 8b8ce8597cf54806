package order

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fundedlabs/backend-checkout/internal/affiliate"
	"github.com/fundedlabs/backend-checkout/internal/catalog"
)

// ErrNotFound indicates the requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Status tracks the order lifecycle.
type Status string

const (
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusPaid           Status = "PAID"
	StatusCancelled      Status = "CANCELLED"
)

// Order is the persisted record of a checkout. It stores the full
// server-calculated breakdown; client-submitted numbers never reach this
// table.
type Order struct {
	ID                  uuid.UUID              `json:"id"`
	ProgramID           string                 `json:"programId"`
	TierID              string                 `json:"tierId"`
	AccountSize         string                 `json:"accountSize"`
	PurchaseType        string                 `json:"purchaseType"`
	Gateway             string                 `json:"gateway"`
	Status              Status                 `json:"status"`
	UserEmail           string                 `json:"userEmail"`
	Currency            string                 `json:"currency"`
	TierPrice           int64                  `json:"tierPrice"`
	OriginalPrice       int64                  `json:"originalPrice"`
	AppliedDiscount     int64                  `json:"appliedDiscount"`
	PurchasePrice       int64                  `json:"purchasePrice"`
	AddOnValue          int64                  `json:"addOnValue"`
	TotalPrice          int64                  `json:"totalPrice"`
	CouponValid         bool                   `json:"couponValid"`
	CouponCode          *string                `json:"couponCode,omitempty"`
	CouponDiscountType  *string                `json:"couponDiscountType,omitempty"`
	CouponDiscountValue *decimal.Decimal       `json:"couponDiscountValue,omitempty"`
	Affiliate           *affiliate.Attribution `json:"affiliate,omitempty"`
	AddOns              []catalog.AddOn        `json:"addOns,omitempty"`
	ProviderRef         *string                `json:"providerRef,omitempty"`
	CreatedAt           time.Time              `json:"createdAt"`
	UpdatedAt           time.Time              `json:"updatedAt"`
	PaidAt              *time.Time             `json:"paidAt,omitempty"`
}

// Repository persists orders in Postgres.
type Repository struct {
	Pool *pgxpool.Pool
}

const orderColumns = `id, program_id, tier_id, account_size, purchase_type, gateway, status,
	user_email, currency, tier_price, original_price, applied_discount, purchase_price,
	addon_value, total_price, coupon_valid, coupon_code, coupon_discount_type,
	coupon_discount_value, affiliate, addons, provider_ref, created_at, updated_at, paid_at`

// Create inserts the order and returns the stored row.
func (r *Repository) Create(ctx context.Context, o Order) (Order, error) {
	if r == nil || r.Pool == nil {
		return Order{}, errors.New("order repository not configured")
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = StatusPendingPayment
	}
	affiliateJSON, err := marshalNullable(o.Affiliate)
	if err != nil {
		return Order{}, err
	}
	addOnsJSON, err := marshalNullable(o.AddOns)
	if err != nil {
		return Order{}, err
	}
	row := r.Pool.QueryRow(ctx, `
		INSERT INTO orders (
			id, program_id, tier_id, account_size, purchase_type, gateway, status,
			user_email, currency, tier_price, original_price, applied_discount,
			purchase_price, addon_value, total_price, coupon_valid, coupon_code,
			coupon_discount_type, coupon_discount_value, affiliate, addons
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		RETURNING `+orderColumns,
		o.ID, o.ProgramID, o.TierID, o.AccountSize, o.PurchaseType, o.Gateway, o.Status,
		o.UserEmail, o.Currency, o.TierPrice, o.OriginalPrice, o.AppliedDiscount,
		o.PurchasePrice, o.AddOnValue, o.TotalPrice, o.CouponValid, o.CouponCode,
		o.CouponDiscountType, o.CouponDiscountValue, affiliateJSON, addOnsJSON,
	)
	return scanOrder(row)
}

// GetByID fetches a single order.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Order, error) {
	if r == nil || r.Pool == nil {
		return Order{}, errors.New("order repository not configured")
	}
	row := r.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

// ListRecent returns orders newest-first for the admin console.
func (r *Repository) ListRecent(ctx context.Context, limit, offset int) ([]Order, error) {
	if r == nil || r.Pool == nil {
		return nil, errors.New("order repository not configured")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.Pool.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// MarkPaid transitions a pending order to PAID; repeated webhook deliveries
// for an already-paid order are a no-op.
func (r *Repository) MarkPaid(ctx context.Context, id uuid.UUID, providerRef string) (Order, error) {
	if r == nil || r.Pool == nil {
		return Order{}, errors.New("order repository not configured")
	}
	row := r.Pool.QueryRow(ctx, `
		UPDATE orders
		SET status = $2, provider_ref = $3, paid_at = now(), updated_at = now()
		WHERE id = $1 AND status = $4
		RETURNING `+orderColumns,
		id, StatusPaid, providerRef, StatusPendingPayment,
	)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// either unknown or already settled; let the caller disambiguate
		return r.GetByID(ctx, id)
	}
	return o, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var (
		o             Order
		affiliateJSON []byte
		addOnsJSON    []byte
	)
	err := row.Scan(
		&o.ID, &o.ProgramID, &o.TierID, &o.AccountSize, &o.PurchaseType, &o.Gateway, &o.Status,
		&o.UserEmail, &o.Currency, &o.TierPrice, &o.OriginalPrice, &o.AppliedDiscount,
		&o.PurchasePrice, &o.AddOnValue, &o.TotalPrice, &o.CouponValid, &o.CouponCode,
		&o.CouponDiscountType, &o.CouponDiscountValue, &affiliateJSON, &addOnsJSON,
		&o.ProviderRef, &o.CreatedAt, &o.UpdatedAt, &o.PaidAt,
	)
	if err != nil {
		return Order{}, err
	}
	if len(affiliateJSON) > 0 {
		var attr affiliate.Attribution
		if err := json.Unmarshal(affiliateJSON, &attr); err == nil && !attr.Empty() {
			o.Affiliate = &attr
		}
	}
	if len(addOnsJSON) > 0 {
		_ = json.Unmarshal(addOnsJSON, &o.AddOns)
	}
	return o, nil
}

func marshalNullable(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	switch value := v.(type) {
	case *affiliate.Attribution:
		if value == nil {
			return nil, nil
		}
	case []catalog.AddOn:
		if len(value) == 0 {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
