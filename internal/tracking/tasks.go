package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fundedlabs/backend-checkout/internal/affiliate"
	"github.com/fundedlabs/backend-checkout/internal/order"
)

// Task kinds dispatched to the worker.
const (
	TaskCheckoutCompleted = "tracking:checkout_completed"
	TaskPaymentCompleted  = "tracking:payment_completed"
)

// Payload is the serialized order snapshot carried by tracking tasks. It is
// assembled once at enqueue time so the worker never re-reads the database.
type Payload struct {
	OrderID             string                 `json:"orderId"`
	Event               string                 `json:"event"`
	ProgramID           string                 `json:"programId"`
	TierID              string                 `json:"tierId"`
	AccountSize         string                 `json:"accountSize"`
	PurchaseType        string                 `json:"purchaseType"`
	UserEmail           string                 `json:"userEmail"`
	Currency            string                 `json:"currency"`
	TierPrice           int64                  `json:"tierPrice"`
	OriginalPrice       int64                  `json:"originalPrice"`
	AppliedDiscount     int64                  `json:"appliedDiscount"`
	PurchasePrice       int64                  `json:"purchasePrice"`
	AddOnValue          int64                  `json:"addOnValue"`
	TotalPrice          int64                  `json:"totalPrice"`
	CouponCode          *string                `json:"couponCode,omitempty"`
	CouponDiscountType  *string                `json:"couponDiscountType,omitempty"`
	CouponDiscountValue *decimal.Decimal       `json:"couponDiscountValue,omitempty"`
	Affiliate           *affiliate.Attribution `json:"affiliate,omitempty"`
	OccurredAt          time.Time              `json:"occurredAt"`
}

// Enqueuer publishes tracking tasks. Enqueue failures are reported to the
// caller for logging but checkout never blocks on downstream platforms.
type Enqueuer struct {
	Client *asynq.Client
	Logger zerolog.Logger
}

// CheckoutCompleted enqueues the checkout.completed fan-out for o.
func (e *Enqueuer) CheckoutCompleted(ctx context.Context, o order.Order) error {
	return e.enqueue(ctx, TaskCheckoutCompleted, "checkout.completed", o)
}

// PaymentCompleted enqueues the payment.completed fan-out for o.
func (e *Enqueuer) PaymentCompleted(ctx context.Context, o order.Order) error {
	return e.enqueue(ctx, TaskPaymentCompleted, "payment.completed", o)
}

func (e *Enqueuer) enqueue(ctx context.Context, kind, event string, o order.Order) error {
	if e == nil || e.Client == nil {
		return errors.New("tracking enqueuer not configured")
	}
	raw, err := json.Marshal(payloadFromOrder(event, o))
	if err != nil {
		return err
	}
	task := asynq.NewTask(kind, raw)
	info, err := e.Client.EnqueueContext(ctx, task,
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return err
	}
	e.Logger.Debug().
		Str("task", kind).
		Str("taskId", info.ID).
		Str("orderId", o.ID.String()).
		Msg("tracking task enqueued")
	return nil
}

func payloadFromOrder(event string, o order.Order) Payload {
	return Payload{
		OrderID:             o.ID.String(),
		Event:               event,
		ProgramID:           o.ProgramID,
		TierID:              o.TierID,
		AccountSize:         o.AccountSize,
		PurchaseType:        o.PurchaseType,
		UserEmail:           o.UserEmail,
		Currency:            o.Currency,
		TierPrice:           o.TierPrice,
		OriginalPrice:       o.OriginalPrice,
		AppliedDiscount:     o.AppliedDiscount,
		PurchasePrice:       o.PurchasePrice,
		AddOnValue:          o.AddOnValue,
		TotalPrice:          o.TotalPrice,
		CouponCode:          o.CouponCode,
		CouponDiscountType:  o.CouponDiscountType,
		CouponDiscountValue: o.CouponDiscountValue,
		Affiliate:           o.Affiliate,
		OccurredAt:          time.Now().UTC(),
	}
}
