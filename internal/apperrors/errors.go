package apperrors

import (
	"errors"
	"fmt"
)

// Reason codes are the stable machine-readable identifiers attached to
// every user-visible failure. Raw upstream error bodies are logged, never
// relayed to clients.
const (
	CodeValidation       = "validation_error"
	CodeAuthFailed       = "authentication_failed"
	CodeSupplierDown     = "supplier_unavailable"
	CodeMarketDown       = "market_unavailable"
	CodeConflictState    = "conflicting_state"
	CodeTimeout          = "timeout"
	CodeMarginBelowFloor = "margin_below_floor"
)

// ValidationError reports a bad input shape or business-rule violation.
// It is rejected locally and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s (%s)", e.Field, e.Reason)
}

// Code returns the machine-readable reason code
func (e *ValidationError) Code() string {
	if e.Reason == CodeMarginBelowFloor {
		return CodeMarginBelowFloor
	}
	return CodeValidation
}

// NewValidationError creates a field-level validation error
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// AuthenticationFailed indicates the supplier rejected our credentials or
// token. Triggers one re-auth attempt before surfacing.
type AuthenticationFailed struct {
	Account string
	Err     error
}

func (e *AuthenticationFailed) Error() string {
	return fmt.Sprintf("authentication failed for account %s: %v", e.Account, e.Err)
}

func (e *AuthenticationFailed) Unwrap() error { return e.Err }

// Code returns the machine-readable reason code
func (e *AuthenticationFailed) Code() string { return CodeAuthFailed }

// SupplierUnavailable indicates a transient supplier-side failure
// (rate limit, network error) that exhausted its retry budget.
type SupplierUnavailable struct {
	Err error
}

func (e *SupplierUnavailable) Error() string {
	return fmt.Sprintf("supplier unavailable: %v", e.Err)
}

func (e *SupplierUnavailable) Unwrap() error { return e.Err }

// Code returns the machine-readable reason code
func (e *SupplierUnavailable) Code() string { return CodeSupplierDown }

// MarketUnavailable is the marketplace-side counterpart of SupplierUnavailable
type MarketUnavailable struct {
	Err error
}

func (e *MarketUnavailable) Error() string {
	return fmt.Sprintf("marketplace unavailable: %v", e.Err)
}

func (e *MarketUnavailable) Unwrap() error { return e.Err }

// Code returns the machine-readable reason code
func (e *MarketUnavailable) Code() string { return CodeMarketDown }

// ConflictingState indicates the supplier and marketplace disagree about
// an order (e.g. supplier shipped before a cancellation arrived). Surfaced
// for manual resolution, never auto-resolved.
type ConflictingState struct {
	OrderKey string
	Detail   string
}

func (e *ConflictingState) Error() string {
	return fmt.Sprintf("conflicting state on order %s: %s", e.OrderKey, e.Detail)
}

// Code returns the machine-readable reason code
func (e *ConflictingState) Code() string { return CodeConflictState }

// TimeoutError indicates a task or call exceeded its budget. Partial
// results are preserved.
type TimeoutError struct {
	What string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s exceeded its time budget", e.What)
}

// Code returns the machine-readable reason code
func (e *TimeoutError) Code() string { return CodeTimeout }

// Coder is implemented by all taxonomy errors
type Coder interface {
	Code() string
}

// CodeOf extracts the reason code from any error, falling back to
// "internal_error" for errors outside the taxonomy.
func CodeOf(err error) string {
	var c Coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return "internal_error"
}

// IsRetryable reports whether the error class may be retried with backoff
func IsRetryable(err error) bool {
	var su *SupplierUnavailable
	var mu *MarketUnavailable
	return errors.As(err, &su) || errors.As(err, &mu)
}
