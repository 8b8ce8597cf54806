package common

import (
	"errors"
	"net/http"
)

// Canonical error codes surfaced by the API.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeTierNotFound   = "TIER_NOT_FOUND"
	CodeFeeNotSet      = "FEE_NOT_CONFIGURED"
	CodeUpstream       = "UPSTREAM_UNAVAILABLE"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeNotFound       = "NOT_FOUND"
	CodeInternal       = "INTERNAL"
	CodeIdempotency    = "IDEMPOTENT_REPLAY"
	CodeOrderConflict  = "ORDER_CONFLICT"
	CodePriceMismatch  = "PRICE_MISMATCH"
	CodePaymentInvalid = "PAYMENT_INVALID"
)

// AppError carries a machine-readable code and an HTTP status alongside the
// underlying error.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// RenderError writes err as the canonical JSON error payload. AppError values
// keep their code and status; anything else becomes an opaque 500.
func RenderError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	JSONError(w, http.StatusInternalServerError, CodeInternal, "internal error", nil)
}
