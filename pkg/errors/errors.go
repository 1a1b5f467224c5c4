package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the common failure classes.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrInternal      = errors.New("internal error")
	ErrConflict      = errors.New("conflict")
	ErrInvalidState  = errors.New("invalid state")
	ErrGateway       = errors.New("payment gateway error")
)

// AppError is a structured application error with an HTTP status mapping.
// Details carries machine-readable context such as available vs requested
// quantities for refund mismatches.
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Status  int            `json:"-"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails attaches machine-readable context to the error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// AlreadyExists creates a 409 error.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// InvalidRequest creates a 400 error for malformed or empty input.
func InvalidRequest(message string) *AppError {
	return &AppError{
		Code:    "INVALID_REQUEST",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Forbidden creates a 403 error for ownership or role mismatches.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// Conflict creates a 409 error, typically for optimistic-concurrency failures.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// InvalidState creates a 422 error for operations attempted in a state that
// does not permit them (e.g. refunding a pending order).
func InvalidState(message string) *AppError {
	return &AppError{
		Code:    "INVALID_STATE",
		Message: message,
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrInvalidState,
	}
}

// AlreadyRefunded creates a 409 error for refund attempts against an order
// that has already reached the terminal refunded state.
func AlreadyRefunded(orderID string) *AppError {
	return &AppError{
		Code:    "ALREADY_REFUNDED",
		Message: fmt.Sprintf("order %s has already been fully refunded", orderID),
		Status:  http.StatusConflict,
		Err:     ErrInvalidState,
	}
}

// NoPayment creates a 422 error when no captured payment exists for an order.
func NoPayment(orderID string) *AppError {
	return &AppError{
		Code:    "NO_PAYMENT",
		Message: fmt.Sprintf("no captured payment found for order %s", orderID),
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrInvalidState,
	}
}

// InsufficientQuantity creates a 422 error when a partial refund requests more
// units than remain refundable on a line. The available and requested counts
// are carried in Details so clients can present an actionable message.
func InsufficientQuantity(productID string, available, requested int) *AppError {
	return &AppError{
		Code:    "INSUFFICIENT_QUANTITY",
		Message: fmt.Sprintf("product %s has %d unit(s) available to refund, %d requested", productID, available, requested),
		Details: map[string]any{"product_id": productID, "available": available, "requested": requested},
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrInvalidState,
	}
}

// PartialRefundBlockedByDiscount creates a 422 error: coupon-bearing orders
// only support full refunds.
func PartialRefundBlockedByDiscount(orderID string) *AppError {
	return &AppError{
		Code:    "PARTIAL_REFUND_BLOCKED_BY_DISCOUNT",
		Message: fmt.Sprintf("order %s was purchased with a discount; only a full refund is supported", orderID),
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrInvalidState,
	}
}

// ExceedsCapturedAmount creates a 422 error when the requested refund total
// exceeds what the payment gateway can still refund.
func ExceedsCapturedAmount(available, requested string) *AppError {
	return &AppError{
		Code:    "EXCEEDS_CAPTURED_AMOUNT",
		Message: fmt.Sprintf("requested refund %s exceeds remaining refundable amount %s", requested, available),
		Details: map[string]any{"available": available, "requested": requested},
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrInvalidState,
	}
}

// GatewayError creates a 502 error carrying the payment processor's
// machine-readable failure reason. Gateway failures are never swallowed.
func GatewayError(reason string, err error) *AppError {
	return &AppError{
		Code:    "GATEWAY_ERROR",
		Message: fmt.Sprintf("payment gateway rejected the operation: %s", reason),
		Status:  http.StatusBadGateway,
		Err:     errors.Join(ErrGateway, err),
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidState):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
