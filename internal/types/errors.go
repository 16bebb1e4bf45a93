package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationInvalidJSON   ErrorCode = "validation_invalid_json"
	ErrCodeValidationMissingField  ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidDate   ErrorCode = "validation_invalid_date"
	ErrCodeValidationInvalidSlot   ErrorCode = "validation_invalid_slot"
	ErrCodeValidationInvalidPeriod ErrorCode = "validation_invalid_billing_period"

	// Auth (401/403)
	ErrCodeAuthRequired   ErrorCode = "auth_required"
	ErrCodePermissionRole ErrorCode = "permission_role_insufficient"

	// Not Found (404)
	ErrCodeNotFoundSubscription ErrorCode = "not_found_subscription"
	ErrCodeNotFoundProfile      ErrorCode = "not_found_profile"
	ErrCodeNotFoundAppointment  ErrorCode = "not_found_appointment"

	// Billing configuration mismatch (400): the plan registry and the
	// provider catalog disagree. Root cause is usually a deployment
	// misconfiguration, but it surfaces as a hard client-input error.
	ErrCodeBillingUnknownPlan  ErrorCode = "billing_unknown_plan"
	ErrCodeBillingUnknownPrice ErrorCode = "billing_unknown_price"

	// Conflict (409)
	ErrCodeBillingNoActiveSubscription ErrorCode = "billing_no_active_subscription"
	ErrCodeConflictConcurrent          ErrorCode = "conflict_concurrent_modification"
	ErrCodeConflictSlotTaken           ErrorCode = "conflict_slot_taken"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB           ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected   ErrorCode = "internal_unexpected_error"
	ErrCodeInternalPartialWrite ErrorCode = "internal_partial_write"
	ErrCodeUpstreamStripe       ErrorCode = "upstream_stripe_unavailable"
	ErrCodeUpstreamUnavailable  ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited  ErrorCode = "upstream_rate_limited"

	// Payment-specific
	ErrCodePaymentDeclined ErrorCode = "payment_declined"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case s == string(ErrCodeAuthRequired):
		return http.StatusUnauthorized // 401
	case s == string(ErrCodePermissionRole):
		return http.StatusForbidden // 403
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case s == string(ErrCodeBillingUnknownPlan), s == string(ErrCodeBillingUnknownPrice):
		return http.StatusBadRequest // 400
	case s == string(ErrCodeBillingNoActiveSubscription):
		return http.StatusConflict // 409
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict // 409
	case s == string(ErrCodePaymentDeclined):
		return http.StatusPaymentRequired // 402
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the service.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
