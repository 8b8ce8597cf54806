package pricing

import "fmt"

// TierNotFoundError indicates the requested program/account-size/tier
// combination does not resolve to a configured pricing tier.
type TierNotFoundError struct {
	ProgramID   string
	AccountSize string
	TierID      string
}

func (e *TierNotFoundError) Error() string {
	if e.TierID != "" {
		return fmt.Sprintf("pricing: no tier %q in program %q", e.TierID, e.ProgramID)
	}
	return fmt.Sprintf("pricing: no tier for account size %q in program %q", e.AccountSize, e.ProgramID)
}

// FeeNotConfiguredError indicates the resolved tier or program lacks the fee
// required for the requested purchase type.
type FeeNotConfiguredError struct {
	PurchaseType PurchaseType
	ProgramID    string
	TierID       string
}

func (e *FeeNotConfiguredError) Error() string {
	return fmt.Sprintf("pricing: %s fee not configured for program %q tier %q", e.PurchaseType, e.ProgramID, e.TierID)
}

// InvalidDiscountTypeError indicates a coupon record carries an unrecognized
// discount type. Callers decide whether to skip the coupon or fail.
type InvalidDiscountTypeError struct {
	Type string
}

func (e *InvalidDiscountTypeError) Error() string {
	return fmt.Sprintf("pricing: invalid discount type %q", e.Type)
}
