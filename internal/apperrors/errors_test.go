package apperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{NewValidationError("name", "required"), CodeValidation},
		{NewValidationError("margin_rate", CodeMarginBelowFloor), CodeMarginBelowFloor},
		{&AuthenticationFailed{Account: "seller1", Err: errors.New("denied")}, CodeAuthFailed},
		{&SupplierUnavailable{Err: errors.New("timeout")}, CodeSupplierDown},
		{&MarketUnavailable{Err: errors.New("503")}, CodeMarketDown},
		{&ConflictingState{OrderKey: "O1", Detail: "shipped"}, CodeConflictState},
		{&TimeoutError{What: "task"}, CodeTimeout},
		{errors.New("plain"), "internal_error"},
	}
	for _, c := range cases {
		if got := CodeOf(c.err); got != c.want {
			t.Errorf("CodeOf(%T) = %s, want %s", c.err, got, c.want)
		}
	}
}

func TestCodeOfWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("batch 3: %w", &SupplierUnavailable{Err: errors.New("down")})
	if got := CodeOf(wrapped); got != CodeSupplierDown {
		t.Errorf("CodeOf(wrapped) = %s, want %s", got, CodeSupplierDown)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&SupplierUnavailable{Err: errors.New("down")}) {
		t.Error("supplier outage should be retryable")
	}
	if !IsRetryable(&MarketUnavailable{Err: errors.New("down")}) {
		t.Error("market outage should be retryable")
	}
	if IsRetryable(NewValidationError("name", "required")) {
		t.Error("validation failure must never be retried")
	}
	if IsRetryable(&AuthenticationFailed{Err: errors.New("denied")}) {
		t.Error("authentication failure must never be retried")
	}
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("root cause")
	if !errors.Is(&SupplierUnavailable{Err: inner}, inner) {
		t.Error("SupplierUnavailable should unwrap to its cause")
	}
	if !errors.Is(&AuthenticationFailed{Err: inner}, inner) {
		t.Error("AuthenticationFailed should unwrap to its cause")
	}
}
