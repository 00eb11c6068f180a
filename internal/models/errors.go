package models

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable, machine-readable category of a workflow error.
type ErrorKind string

const (
	KindInvalidRequest          ErrorKind = "INVALID_REQUEST"
	KindInsufficientInventory   ErrorKind = "INSUFFICIENT_INVENTORY"
	KindPaymentInitiationFailed ErrorKind = "PAYMENT_INITIATION_FAILED"
	KindOrderNotFound           ErrorKind = "ORDER_NOT_FOUND"
	KindInvalidTransition       ErrorKind = "INVALID_TRANSITION"
	KindUnpaidOrderImmutable    ErrorKind = "UNPAID_ORDER_IMMUTABLE"
	KindPaidOrderImmutable      ErrorKind = "PAID_ORDER_IMMUTABLE"
	KindDeleteWindowExpired     ErrorKind = "DELETE_WINDOW_EXPIRED"
	KindConcurrencyConflict     ErrorKind = "CONCURRENCY_CONFLICT"
	KindNotFound                ErrorKind = "NOT_FOUND"
	KindForbidden               ErrorKind = "FORBIDDEN"
	KindInternal                ErrorKind = "INTERNAL"
)

// Error carries a kind plus a human-readable message. The wrapped error, if any,
// is kept for logging and never rendered to clients.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrOrderNotFound)
// holds for every order-not-found error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidRequest          = &Error{Kind: KindInvalidRequest}
	ErrInsufficientInventory   = &Error{Kind: KindInsufficientInventory}
	ErrPaymentInitiationFailed = &Error{Kind: KindPaymentInitiationFailed}
	ErrOrderNotFound           = &Error{Kind: KindOrderNotFound}
	ErrInvalidTransition       = &Error{Kind: KindInvalidTransition}
	ErrUnpaidOrderImmutable    = &Error{Kind: KindUnpaidOrderImmutable}
	ErrPaidOrderImmutable      = &Error{Kind: KindPaidOrderImmutable}
	ErrDeleteWindowExpired     = &Error{Kind: KindDeleteWindowExpired}
	ErrConcurrencyConflict     = &Error{Kind: KindConcurrencyConflict}
	ErrNotFound                = &Error{Kind: KindNotFound}
	ErrForbidden               = &Error{Kind: KindForbidden}
	ErrInternal                = &Error{Kind: KindInternal}
)

// NewError builds an *Error with a formatted message.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an *Error that keeps cause for logging.
func WrapError(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf reports the kind of err, or KindInternal for anything that is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
