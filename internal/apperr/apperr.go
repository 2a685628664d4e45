// Package apperr defines the typed errors shared by the wallet and payout
// core so callers can map failures to transport status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the API layer.
type Kind string

const (
	KindValidation   Kind = "VALIDATION"
	KindBusinessRule Kind = "BUSINESS_RULE"
	KindNotFound     Kind = "NOT_FOUND"
	KindConflict     Kind = "CONFLICT"
	KindForbidden    Kind = "FORBIDDEN"
	KindExternal     Kind = "EXTERNAL"
)

// Code is the specific, user-facing reason attached to an error.
type Code string

const (
	CodeInvalidInput        Code = "INVALID_INPUT"
	CodeInsufficientFunds   Code = "INSUFFICIENT_FUNDS"
	CodeAmountTooLow        Code = "AMOUNT_TOO_LOW"
	CodeKycRequired         Code = "KYC_REQUIRED"
	CodeAccountFlagged      Code = "ACCOUNT_FLAGGED"
	CodeUnsupportedCurrency Code = "UNSUPPORTED_CURRENCY"
	CodeAccountNotAvailable Code = "ACCOUNT_NOT_AVAILABLE"
	CodeAccountUnverified   Code = "ACCOUNT_UNVERIFIED"
	CodeMethodMismatch      Code = "METHOD_MISMATCH"
	CodeDailyLimitReached   Code = "DAILY_LIMIT_REACHED"
	CodePayoutsDisabled     Code = "PAYOUTS_DISABLED"
	CodeNoProvider          Code = "NO_PROVIDER"
	CodeNotFound            Code = "NOT_FOUND"
	CodeInvalidState        Code = "INVALID_STATE"
	CodeForbidden           Code = "FORBIDDEN"
	CodeProviderFailed      Code = "PROVIDER_FAILED"
)

// Error is the discriminated error returned by core operations.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so sentinel values work with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrInsufficientFunds   = &Error{Kind: KindBusinessRule, Code: CodeInsufficientFunds, Message: "insufficient available balance"}
	ErrAmountTooLow        = &Error{Kind: KindBusinessRule, Code: CodeAmountTooLow, Message: "amount is below minimum payout threshold"}
	ErrKycRequired         = &Error{Kind: KindBusinessRule, Code: CodeKycRequired, Message: "verified KYC is required before requesting payouts"}
	ErrAccountFlagged      = &Error{Kind: KindBusinessRule, Code: CodeAccountFlagged, Message: "account flagged for review"}
	ErrUnsupportedCurrency = &Error{Kind: KindBusinessRule, Code: CodeUnsupportedCurrency, Message: "unsupported wallet currency"}
	ErrAccountNotAvailable = &Error{Kind: KindBusinessRule, Code: CodeAccountNotAvailable, Message: "payout account not available for this wallet"}
	ErrAccountUnverified   = &Error{Kind: KindBusinessRule, Code: CodeAccountUnverified, Message: "payout account is not verified"}
	ErrMethodMismatch      = &Error{Kind: KindBusinessRule, Code: CodeMethodMismatch, Message: "payout method does not match payout account"}
	ErrDailyLimitReached   = &Error{Kind: KindBusinessRule, Code: CodeDailyLimitReached, Message: "daily payout request limit reached"}
	ErrPayoutsDisabled     = &Error{Kind: KindBusinessRule, Code: CodePayoutsDisabled, Message: "payout execution is currently disabled"}
	ErrNoProvider          = &Error{Kind: KindBusinessRule, Code: CodeNoProvider, Message: "no settlement provider for payout method"}
	ErrNotFound            = &Error{Kind: KindNotFound, Code: CodeNotFound, Message: "not found"}
	ErrInvalidState        = &Error{Kind: KindConflict, Code: CodeInvalidState, Message: "invalid state transition"}
	ErrForbidden           = &Error{Kind: KindForbidden, Code: CodeForbidden, Message: "forbidden"}
	ErrProviderFailed      = &Error{Kind: KindExternal, Code: CodeProviderFailed, Message: "settlement provider failed"}
)

// Validation reports malformed input, rejected before the store is touched.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidInput, Message: message}
}

// NotFound reports an unknown entity.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: message}
}

// Conflict reports a transition the entity's current state does not allow.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Code: CodeInvalidState, Message: message}
}

// Forbidden reports an actor acting outside its permissions.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Code: CodeForbidden, Message: message}
}

// External wraps a failure of an outbound provider call.
func External(message string, err error) *Error {
	return &Error{Kind: KindExternal, Code: CodeProviderFailed, Message: message, Err: err}
}

// Reason returns a copy of a sentinel with a more specific message.
func Reason(sentinel *Error, message string) *Error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Message: message}
}

// KindOf returns the Kind of err, or "" for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf returns the Code of err, or "" for untyped errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HTTPStatus maps err to the status code the API layer should answer with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindBusinessRule:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
