package mock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oguzkaracar/coursecommerce/internal/gateway"
)

// Gateway is an in-memory payment gateway for development and tests. It
// keeps a per-capture ledger and enforces the unrefunded-remainder rule the
// way a real gateway would.
type Gateway struct {
	mu       sync.Mutex
	captures map[string]*gateway.Capture
	refunds  map[string][]gateway.Refund
	byKey    map[string]*gateway.Refund
}

// NewGateway creates an empty mock gateway.
func NewGateway() *Gateway {
	return &Gateway{
		captures: make(map[string]*gateway.Capture),
		refunds:  make(map[string][]gateway.Refund),
		byKey:    make(map[string]*gateway.Refund),
	}
}

// SeedCapture registers a settled capture so refunds against it succeed.
func (g *Gateway) SeedCapture(paymentRef, sessionID string, amount decimal.Decimal, currency string) *gateway.Capture {
	g.mu.Lock()
	defer g.mu.Unlock()

	capture := &gateway.Capture{
		ID:             paymentRef,
		SessionID:      sessionID,
		Amount:         amount,
		AmountRefunded: decimal.Zero,
		Currency:       currency,
		Status:         "succeeded",
		CreatedAt:      time.Now().UTC(),
	}
	g.captures[paymentRef] = capture
	return capture
}

// RetrieveCapture returns a copy of the capture ledger entry.
func (g *Gateway) RetrieveCapture(_ context.Context, paymentRef string) (*gateway.Capture, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	capture, ok := g.captures[paymentRef]
	if !ok {
		return nil, gateway.ErrCaptureNotFound
	}

	cpy := *capture
	return &cpy, nil
}

// CreateRefund records a refund if the remainder allows it. Requests reusing
// an idempotency key return the original refund without moving money again.
func (g *Gateway) CreateRefund(_ context.Context, req *gateway.RefundRequest) (*gateway.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if req.IdempotencyKey != "" {
		if prior, ok := g.byKey[req.IdempotencyKey]; ok {
			cpy := *prior
			return &cpy, nil
		}
	}

	capture, ok := g.captures[req.PaymentRef]
	if !ok {
		return nil, gateway.ErrCaptureNotFound
	}

	if req.Amount.GreaterThan(capture.Refundable()) {
		return nil, gateway.ErrAmountExceedsRefundable
	}

	refund := gateway.Refund{
		ID:         "re_" + uuid.New().String(),
		PaymentRef: req.PaymentRef,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Status:     gateway.RefundStatusSucceeded,
		Reason:     req.Reason,
		Metadata:   req.Metadata,
		CreatedAt:  time.Now().UTC(),
	}

	capture.AmountRefunded = capture.AmountRefunded.Add(req.Amount)
	g.refunds[req.PaymentRef] = append(g.refunds[req.PaymentRef], refund)
	if req.IdempotencyKey != "" {
		stored := refund
		g.byKey[req.IdempotencyKey] = &stored
	}

	return &refund, nil
}

// ListRefunds returns all refunds recorded against the capture.
func (g *Gateway) ListRefunds(_ context.Context, paymentRef string) ([]gateway.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.captures[paymentRef]; !ok {
		return nil, gateway.ErrCaptureNotFound
	}

	out := make([]gateway.Refund, len(g.refunds[paymentRef]))
	copy(out, g.refunds[paymentRef])
	return out, nil
}
