package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationInvalidJSON, http.StatusBadRequest},
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeValidationInvalidSlot, http.StatusBadRequest},
		{ErrCodeValidationInvalidPeriod, http.StatusBadRequest},
		{ErrCodeAuthRequired, http.StatusUnauthorized},
		{ErrCodePermissionRole, http.StatusForbidden},
		{ErrCodeNotFoundSubscription, http.StatusNotFound},
		{ErrCodeNotFoundProfile, http.StatusNotFound},
		{ErrCodeNotFoundAppointment, http.StatusNotFound},
		{ErrCodeBillingUnknownPlan, http.StatusBadRequest},
		{ErrCodeBillingUnknownPrice, http.StatusBadRequest},
		{ErrCodeBillingNoActiveSubscription, http.StatusConflict},
		{ErrCodeConflictConcurrent, http.StatusConflict},
		{ErrCodeConflictSlotTaken, http.StatusConflict},
		{ErrCodePaymentDeclined, http.StatusPaymentRequired},
		{ErrCodeUpstreamStripe, http.StatusBadGateway},
		{ErrCodeUpstreamUnavailable, http.StatusBadGateway},
		{ErrCodeUpstreamRateLimited, http.StatusBadGateway},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrCodeInternalUnexpected, http.StatusInternalServerError},
		{ErrCodeInternalPartialWrite, http.StatusInternalServerError},
		{ErrorCode("something_new"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			if got := tc.code.HTTPStatus(); got != tc.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestAppErrorError(t *testing.T) {
	err := NewAppError(ErrCodeConflictSlotTaken, "slot already booked", nil)
	want := "conflict_slot_taken: slot already booked"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	inner := errors.New("duplicate key value violates unique constraint")
	err := NewAppError(ErrCodeInternalDB, "insert failed", inner)

	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}
}

func TestAppErrorChainPreservesCode(t *testing.T) {
	base := NewAppError(ErrCodeNotFoundSubscription, "no subscription", nil)
	wrapped := fmt.Errorf("loading billing state: %w", base)

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As should find the AppError in the chain")
	}
	if appErr.Code != ErrCodeNotFoundSubscription {
		t.Errorf("code = %q, want %q", appErr.Code, ErrCodeNotFoundSubscription)
	}
	if appErr.HTTPStatus() != http.StatusNotFound {
		t.Errorf("HTTPStatus() = %d, want 404", appErr.HTTPStatus())
	}
}

func TestNewAppErrorWithDetails(t *testing.T) {
	err := NewAppErrorWithDetails(ErrCodePaymentDeclined, "card declined", nil, map[string]any{
		"decline_code": "insufficient_funds",
	})

	if err.Details["decline_code"] != "insufficient_funds" {
		t.Errorf("Details[decline_code] = %v, want insufficient_funds", err.Details["decline_code"])
	}
	if err.HTTPStatus() != http.StatusPaymentRequired {
		t.Errorf("HTTPStatus() = %d, want 402", err.HTTPStatus())
	}
}
