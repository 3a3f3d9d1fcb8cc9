package service

import (
	"errors"
	"fmt"
	"strings"

	"storefront-order-service/internal/models"
)

// Error categories. Every error returned by the service wraps exactly one of
// them, so callers can branch with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrStore      = errors.New("store failure")
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrEmptyItems      = fmt.Errorf("%w: order has no items", ErrValidation)
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be a positive integer", ErrValidation)
	ErrPriceMismatch   = fmt.Errorf("%w: price differs from catalog price", ErrValidation)
	ErrTotalMismatch   = fmt.Errorf("%w: total does not match computed total", ErrValidation)
	ErrInvalidAmount   = fmt.Errorf("%w: amount must be non-negative", ErrValidation)
	ErrOutOfStock      = fmt.Errorf("%w: insufficient stock", ErrValidation)
	ErrInvalidStatus   = fmt.Errorf("%w: unknown status", ErrValidation)

	ErrOrderNotFound   = fmt.Errorf("order %w", ErrNotFound)
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)

	ErrInvalidTransition    = fmt.Errorf("%w: invalid status transition", ErrConflict)
	ErrTerminalState        = fmt.Errorf("%w: order is in a terminal state", ErrConflict)
	ErrPaymentFailed        = fmt.Errorf("%w: payment failed, order cannot be delivered", ErrConflict)
	ErrConcurrentUpdate     = fmt.Errorf("%w: order was modified concurrently", ErrConflict)
	ErrOrderNumberExhausted = fmt.Errorf("%w: could not allocate a unique order number", ErrConflict)
	ErrIdempotencyInFlight  = fmt.Errorf("%w: request with this idempotency key is in progress", ErrConflict)
	ErrIdempotencyKeyReused = fmt.Errorf("%w: idempotency key belongs to another request", ErrConflict)

	ErrStoreUnavailable = fmt.Errorf("%w: store unavailable", ErrStore)
)

type FieldError struct {
	Field   string
	Message string
}

// ValidationError carries per-field details for malformed input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

// CreationFailedError means nothing was persisted. Cause keeps its category.
type CreationFailedError struct {
	Cause error
}

func (e *CreationFailedError) Error() string { return "order creation failed: " + e.Cause.Error() }

func (e *CreationFailedError) Unwrap() error { return e.Cause }

// ConflictStateError reports the status another writer produced.
type ConflictStateError struct {
	Err     error
	Current models.OrderStatus
}

func (e *ConflictStateError) Error() string {
	return fmt.Sprintf("%s (current status %s)", e.Err.Error(), e.Current)
}

func (e *ConflictStateError) Unwrap() error { return e.Err }

// IsRetryable tells callers whether repeating the same request can succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStore) ||
		errors.Is(err, ErrConcurrentUpdate) ||
		errors.Is(err, ErrOrderNumberExhausted) ||
		errors.Is(err, ErrIdempotencyInFlight)
}
