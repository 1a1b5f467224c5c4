package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Refund status values reported by the payment gateway.
const (
	RefundStatusSucceeded = "succeeded"
	RefundStatusPending   = "pending"
	RefundStatusFailed    = "failed"
)

// Machine-readable gateway error codes.
const (
	CodeAmountExceedsRefundable = "amount_exceeds_refundable"
	CodeCaptureNotFound         = "capture_not_found"
	CodeCaptureNotSettled       = "capture_not_settled"
	CodeRefundFailed            = "refund_failed"
)

// Error is a structured failure reported by the payment gateway.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway: %s (%s)", e.Message, e.Code)
}

// Is matches gateway errors by code so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// ErrAmountExceedsRefundable is returned when a refund request exceeds the
// unrefunded remainder of the capture.
var ErrAmountExceedsRefundable = &Error{
	Code:    CodeAmountExceedsRefundable,
	Message: "requested amount exceeds the refundable remainder",
}

// ErrCaptureNotFound is returned when no capture exists for the reference.
var ErrCaptureNotFound = &Error{
	Code:    CodeCaptureNotFound,
	Message: "no capture found for the given reference",
}

// Capture is the gateway's record of a settled payment. AmountRefunded is
// the cumulative total across all refunds; the gateway ledger is the source
// of truth for how much remains refundable.
type Capture struct {
	ID             string            `json:"id"`
	SessionID      string            `json:"session_id"`
	Amount         decimal.Decimal   `json:"amount"`
	AmountRefunded decimal.Decimal   `json:"amount_refunded"`
	Currency       string            `json:"currency"`
	Status         string            `json:"status"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Refundable returns the unrefunded remainder of the capture.
func (c *Capture) Refundable() decimal.Decimal {
	return c.Amount.Sub(c.AmountRefunded)
}

// RefundRequest asks the gateway to move money back to the customer.
// IdempotencyKey makes retries after ambiguous failures safe.
type RefundRequest struct {
	PaymentRef     string            `json:"payment_ref"`
	Amount         decimal.Decimal   `json:"amount"`
	Currency       string            `json:"currency"`
	Reason         string            `json:"reason,omitempty"`
	IdempotencyKey string            `json:"-"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Refund is the gateway's record of a single refund against a capture.
type Refund struct {
	ID         string            `json:"id"`
	PaymentRef string            `json:"payment_ref"`
	Amount     decimal.Decimal   `json:"amount"`
	Currency   string            `json:"currency"`
	Status     string            `json:"status"`
	Reason     string            `json:"reason,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Gateway is the payment gateway contract. Implementations must treat the
// gateway ledger as authoritative for refunded amounts.
type Gateway interface {
	// RetrieveCapture fetches the capture for a payment reference.
	RetrieveCapture(ctx context.Context, paymentRef string) (*Capture, error)

	// CreateRefund issues a refund against a capture.
	CreateRefund(ctx context.Context, req *RefundRequest) (*Refund, error)

	// ListRefunds returns every refund recorded against a capture.
	ListRefunds(ctx context.Context, paymentRef string) ([]Refund, error)
}
