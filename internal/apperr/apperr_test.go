package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesOnCode(t *testing.T) {
	err := Reason(ErrAmountTooLow, "minimum payout amount is 10.00 USD")
	wrapped := fmt.Errorf("request payout: %w", err)

	if !errors.Is(wrapped, ErrAmountTooLow) {
		t.Fatalf("expected wrapped error to match ErrAmountTooLow")
	}
	if errors.Is(wrapped, ErrKycRequired) {
		t.Fatalf("did not expect match against ErrKycRequired")
	}
	if KindOf(wrapped) != KindBusinessRule {
		t.Fatalf("expected business rule kind, got %q", KindOf(wrapped))
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("amount must be positive"), http.StatusBadRequest},
		{ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{NotFound("wallet not found"), http.StatusNotFound},
		{Conflict("payout cannot be approved"), http.StatusConflict},
		{Forbidden("not permitted"), http.StatusForbidden},
		{External("provider call failed", errors.New("timeout")), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestExternalUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := External("provider call failed", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected external error to unwrap to its cause")
	}
	if CodeOf(err) != CodeProviderFailed {
		t.Fatalf("unexpected code %q", CodeOf(err))
	}
}
