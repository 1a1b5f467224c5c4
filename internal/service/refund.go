package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oguzkaracar/coursecommerce/internal/domain"
	"github.com/oguzkaracar/coursecommerce/internal/gateway"
	"github.com/oguzkaracar/coursecommerce/internal/repository"
	apperrors "github.com/oguzkaracar/coursecommerce/pkg/errors"
)

// maxConflictRetries bounds how many times a refund re-runs after losing an
// optimistic-concurrency race. The deterministic gateway idempotency key
// makes re-running the gateway call safe.
const maxConflictRetries = 3

// RoleAdmin marks actors allowed to refund any order.
const RoleAdmin = "admin"

// Actor identifies who is requesting a refund.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) mayRefund(order *domain.Order) bool {
	return a.Role == RoleAdmin || a.UserID == order.UserID
}

// PartialRefundItem is one requested line in a partial refund.
type PartialRefundItem struct {
	ProductID string
	Quantity  int
	Reason    string
}

// RefundedLineResult is the per-line confirmation in a refund result.
type RefundedLineResult struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
}

// RefundResult is the confirmation returned by a successful refund.
type RefundResult struct {
	OrderID       string               `json:"order_id"`
	RefundID      string               `json:"refund_id"`
	Amount        decimal.Decimal      `json:"amount"`
	Currency      string               `json:"currency"`
	Status        string               `json:"status"`
	TotalRefunded decimal.Decimal      `json:"total_refunded"`
	Lines         []RefundedLineResult `json:"lines,omitempty"`
}

// RefundEventPublisher publishes order refund events.
type RefundEventPublisher interface {
	PublishOrderRefunded(ctx context.Context, order *domain.Order) error
	PublishOrderPartiallyRefunded(ctx context.Context, order *domain.Order, refund *domain.PartialRefund) error
}

// EntitlementRevoker removes a user's access to a resource.
type EntitlementRevoker interface {
	Revoke(ctx context.Context, userID, resourceID string) error
}

// RefundService orchestrates refunds: it validates the request against the
// freshest order state, moves money through the payment gateway first, and
// commits local bookkeeping only after the gateway succeeded. The gateway
// ledger is authoritative for how much remains refundable.
type RefundService struct {
	orders       repository.OrderRepository
	gateway      gateway.Gateway
	entitlements EntitlementRevoker
	producer     RefundEventPublisher
	logger       *slog.Logger
}

// NewRefundService creates a new refund service.
func NewRefundService(
	orders repository.OrderRepository,
	gw gateway.Gateway,
	entitlements EntitlementRevoker,
	producer RefundEventPublisher,
	logger *slog.Logger,
) *RefundService {
	return &RefundService{
		orders:       orders,
		gateway:      gw,
		entitlements: entitlements,
		producer:     producer,
		logger:       logger,
	}
}

// RequestFullRefund refunds the order's full charged amount. Coupon orders
// are refunded at the discounted amount actually charged; the coupon use
// itself is never reversed.
func (s *RefundService) RequestFullRefund(ctx context.Context, orderID string, actor Actor) (*RefundResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		result, err := s.fullRefundOnce(ctx, orderID, actor)
		if err != nil && errors.Is(err, apperrors.ErrConflict) {
			lastErr = err
			s.logger.WarnContext(ctx, "full refund lost a write race, retrying",
				slog.String("order_id", orderID),
				slog.Int("attempt", attempt+1),
			)
			continue
		}
		return result, err
	}
	return nil, lastErr
}

func (s *RefundService) fullRefundOnce(ctx context.Context, orderID string, actor Actor) (*RefundResult, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !actor.mayRefund(order) {
		return nil, apperrors.Forbidden("only the order owner or an admin may request a refund")
	}

	if order.RefundedAt != nil || order.Status == domain.OrderStatusRefunded {
		return nil, apperrors.AlreadyRefunded(order.ID)
	}

	if !order.IsRefundable() {
		return nil, apperrors.InvalidState(fmt.Sprintf("order in status %q cannot be refunded", order.Status))
	}

	if order.PaymentRef == "" {
		return nil, apperrors.NoPayment(order.ID)
	}

	if _, err := s.gateway.RetrieveCapture(ctx, order.PaymentRef); err != nil {
		if errors.Is(err, gateway.ErrCaptureNotFound) {
			return nil, apperrors.NoPayment(order.ID)
		}
		return nil, apperrors.GatewayError("failed to retrieve payment capture", err)
	}

	amount := order.TotalAmount

	refund, err := s.gateway.CreateRefund(ctx, &gateway.RefundRequest{
		PaymentRef:     order.PaymentRef,
		Amount:         amount,
		Currency:       order.Currency,
		Reason:         "requested_by_customer",
		IdempotencyKey: fullRefundKey(order.ID, amount),
		Metadata: map[string]string{
			"order_id": order.ID,
			"kind":     "full",
		},
	})
	if err != nil {
		return nil, s.diagnoseGatewayError(ctx, err, order.PaymentRef, amount)
	}

	// The gateway call is a suspension point; reload before writing so a
	// concurrent refund cannot be clobbered.
	fresh, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if fresh.RefundedAt != nil || fresh.Status == domain.OrderStatusRefunded {
		return nil, apperrors.AlreadyRefunded(fresh.ID)
	}

	now := time.Now().UTC()
	fresh.Status = domain.OrderStatusRefunded
	fresh.RefundID = refund.ID
	fresh.RefundAmount = refund.Amount
	fresh.RefundedAt = &now
	for i := range fresh.Items {
		item := &fresh.Items[i]
		item.RefundQuantity = item.Quantity
		item.Refunded = true
		item.RefundAmount = domain.RoundMoney(item.LineTotal())
		item.RefundedAt = &now
	}

	if err := s.orders.UpdateRefundState(ctx, fresh); err != nil {
		return nil, err
	}

	s.revokeEntitlements(ctx, fresh, fresh.Items)

	if s.producer != nil {
		if err := s.producer.PublishOrderRefunded(ctx, fresh); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish order.refunded event",
				slog.String("order_id", fresh.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "order fully refunded",
		slog.String("order_id", fresh.ID),
		slog.String("refund_id", refund.ID),
		slog.String("amount", refund.Amount.StringFixed(2)),
	)

	return &RefundResult{
		OrderID:       fresh.ID,
		RefundID:      refund.ID,
		Amount:        refund.Amount,
		Currency:      fresh.Currency,
		Status:        fresh.Status,
		TotalRefunded: fresh.RefundedTotal(),
	}, nil
}

// RequestPartialRefund refunds selected quantities of individual lines.
// Coupon-bearing orders are rejected outright: proportional discount
// allocation across partially refunded lines is not supported.
func (s *RefundService) RequestPartialRefund(ctx context.Context, orderID string, actor Actor, items []PartialRefundItem) (*RefundResult, error) {
	if len(items) == 0 {
		return nil, apperrors.InvalidRequest("refund items must not be empty")
	}

	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		result, err := s.partialRefundOnce(ctx, orderID, actor, items)
		if err != nil && errors.Is(err, apperrors.ErrConflict) {
			lastErr = err
			s.logger.WarnContext(ctx, "partial refund lost a write race, retrying",
				slog.String("order_id", orderID),
				slog.Int("attempt", attempt+1),
			)
			continue
		}
		return result, err
	}
	return nil, lastErr
}

func (s *RefundService) partialRefundOnce(ctx context.Context, orderID string, actor Actor, items []PartialRefundItem) (*RefundResult, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !actor.mayRefund(order) {
		return nil, apperrors.Forbidden("only the order owner or an admin may request a refund")
	}

	if order.CouponCode != "" || order.TotalDiscount.IsPositive() {
		return nil, apperrors.PartialRefundBlockedByDiscount(order.ID)
	}

	if !order.IsRefundable() {
		if order.Status == domain.OrderStatusRefunded {
			return nil, apperrors.AlreadyRefunded(order.ID)
		}
		return nil, apperrors.InvalidState(fmt.Sprintf("order in status %q cannot be refunded", order.Status))
	}

	lines, total, err := validateRefundItems(order, items)
	if err != nil {
		return nil, err
	}

	if order.PaymentRef == "" {
		return nil, apperrors.NoPayment(order.ID)
	}

	capture, err := s.gateway.RetrieveCapture(ctx, order.PaymentRef)
	if err != nil {
		if errors.Is(err, gateway.ErrCaptureNotFound) {
			return nil, apperrors.NoPayment(order.ID)
		}
		return nil, apperrors.GatewayError("failed to retrieve payment capture", err)
	}

	// The gateway ledger is the source of truth for what has already been
	// refunded; local state may have drifted.
	alreadyRefunded, err := s.refundedAtGateway(ctx, order.PaymentRef)
	if err != nil {
		return nil, apperrors.GatewayError("failed to list existing refunds", err)
	}
	available := capture.Amount.Sub(alreadyRefunded)
	if total.GreaterThan(available) {
		return nil, apperrors.ExceedsCapturedAmount(available.StringFixed(2), total.StringFixed(2))
	}

	refund, err := s.gateway.CreateRefund(ctx, &gateway.RefundRequest{
		PaymentRef:     order.PaymentRef,
		Amount:         total,
		Currency:       order.Currency,
		Reason:         refundReason(items),
		IdempotencyKey: partialRefundKey(order.ID, items),
		Metadata:       partialRefundMetadata(order.ID, lines),
	})
	if err != nil {
		return nil, s.diagnoseGatewayError(ctx, err, order.PaymentRef, total)
	}

	// Money has moved; reload before the local write so concurrent refunds
	// that committed during the gateway call are not clobbered.
	fresh, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	justFullyRefunded := make([]domain.LineItem, 0, len(lines))
	for _, line := range lines {
		item := fresh.Item(line.ProductID)
		if item == nil {
			return nil, apperrors.NotFound("product", line.ProductID)
		}
		if line.Quantity > item.AvailableToRefund() {
			return nil, apperrors.InsufficientQuantity(line.ProductID, item.AvailableToRefund(), line.Quantity)
		}

		item.RefundQuantity += line.Quantity
		item.RefundAmount = domain.RoundMoney(item.RefundAmount.Add(line.Amount))
		if item.RefundQuantity == item.Quantity {
			item.Refunded = true
			item.RefundedAt = &now
			justFullyRefunded = append(justFullyRefunded, *item)
		}
	}

	partial := domain.PartialRefund{
		RefundID:  refund.ID,
		Amount:    refund.Amount,
		Reason:    refundReason(items),
		Items:     lines,
		CreatedAt: now,
	}
	fresh.PartialRefunds = append(fresh.PartialRefunds, partial)

	if fresh.FullyRefunded() {
		fresh.Status = domain.OrderStatusRefunded
		fresh.RefundID = refund.ID
		fresh.RefundedAt = &now
		fresh.RefundAmount = refund.Amount
	} else {
		fresh.Status = domain.OrderStatusPartiallyRefunded
	}

	if err := s.orders.UpdateRefundState(ctx, fresh); err != nil {
		return nil, err
	}

	// Access is all-or-nothing per product: only lines that just reached
	// full refund lose their entitlement.
	s.revokeEntitlements(ctx, fresh, justFullyRefunded)

	if s.producer != nil {
		if err := s.producer.PublishOrderPartiallyRefunded(ctx, fresh, &partial); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish order.partially_refunded event",
				slog.String("order_id", fresh.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "order partially refunded",
		slog.String("order_id", fresh.ID),
		slog.String("refund_id", refund.ID),
		slog.String("amount", refund.Amount.StringFixed(2)),
		slog.String("status", fresh.Status),
	)

	results := make([]RefundedLineResult, 0, len(lines))
	for _, line := range lines {
		results = append(results, RefundedLineResult{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Amount:    line.Amount,
		})
	}

	return &RefundResult{
		OrderID:       fresh.ID,
		RefundID:      refund.ID,
		Amount:        refund.Amount,
		Currency:      fresh.Currency,
		Status:        fresh.Status,
		TotalRefunded: fresh.RefundedTotal(),
		Lines:         results,
	}, nil
}

// validateRefundItems checks each requested line against the order and
// computes per-line amounts. Rounding applies per line at the final step.
func validateRefundItems(order *domain.Order, items []PartialRefundItem) ([]domain.RefundedItem, decimal.Decimal, error) {
	lines := make([]domain.RefundedItem, 0, len(items))
	total := decimal.Zero

	seen := make(map[string]bool, len(items))
	for _, req := range items {
		if req.ProductID == "" || req.Quantity <= 0 {
			return nil, decimal.Zero, apperrors.InvalidRequest("each refund item needs a product id and a positive quantity")
		}
		if seen[req.ProductID] {
			return nil, decimal.Zero, apperrors.InvalidRequest(fmt.Sprintf("duplicate refund item for product %s", req.ProductID))
		}
		seen[req.ProductID] = true

		line := order.Item(req.ProductID)
		if line == nil {
			return nil, decimal.Zero, apperrors.NotFound("product", req.ProductID)
		}

		available := line.AvailableToRefund()
		if req.Quantity > available {
			return nil, decimal.Zero, apperrors.InsufficientQuantity(req.ProductID, available, req.Quantity)
		}

		amount := domain.RoundMoney(line.Price.Mul(decimal.NewFromInt(int64(req.Quantity))))
		lines = append(lines, domain.RefundedItem{
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			Amount:    amount,
		})
		total = total.Add(amount)
	}

	if !total.IsPositive() {
		return nil, decimal.Zero, apperrors.InvalidRequest("refund amount must be greater than zero")
	}

	return lines, total, nil
}

// diagnoseGatewayError re-queries the gateway's authoritative ledger when
// the refund was rejected for exceeding the refundable remainder, so the
// caller sees the true available amount. The engine never auto-adjusts the
// amount; this is a financial operation.
func (s *RefundService) diagnoseGatewayError(ctx context.Context, err error, paymentRef string, requested decimal.Decimal) error {
	if !errors.Is(err, gateway.ErrAmountExceedsRefundable) {
		return apperrors.GatewayError("refund rejected by payment gateway", err)
	}

	capture, capErr := s.gateway.RetrieveCapture(ctx, paymentRef)
	if capErr != nil {
		return apperrors.GatewayError("refund exceeds refundable amount and re-query failed", errors.Join(err, capErr))
	}
	refunded, listErr := s.refundedAtGateway(ctx, paymentRef)
	if listErr != nil {
		return apperrors.GatewayError("refund exceeds refundable amount and re-query failed", errors.Join(err, listErr))
	}

	available := capture.Amount.Sub(refunded)
	return apperrors.ExceedsCapturedAmount(available.StringFixed(2), requested.StringFixed(2))
}

// refundedAtGateway sums refunds the gateway has recorded for the payment.
// Failed refunds do not count.
func (s *RefundService) refundedAtGateway(ctx context.Context, paymentRef string) (decimal.Decimal, error) {
	refunds, err := s.gateway.ListRefunds(ctx, paymentRef)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, r := range refunds {
		if r.Status == gateway.RefundStatusFailed {
			continue
		}
		total = total.Add(r.Amount)
	}
	return total, nil
}

// revokeEntitlements removes access for the given lines. Revocation is
// idempotent at the store; failures are logged but do not fail the refund,
// since the money has already moved.
func (s *RefundService) revokeEntitlements(ctx context.Context, order *domain.Order, items []domain.LineItem) {
	if s.entitlements == nil {
		return
	}
	for _, item := range items {
		if item.ResourceID == "" {
			continue
		}
		if err := s.entitlements.Revoke(ctx, order.UserID, item.ResourceID); err != nil {
			s.logger.ErrorContext(ctx, "failed to revoke entitlement after refund",
				slog.String("order_id", order.ID),
				slog.String("user_id", order.UserID),
				slog.String("resource_id", item.ResourceID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func refundReason(items []PartialRefundItem) string {
	for _, item := range items {
		if item.Reason != "" {
			return item.Reason
		}
	}
	return "requested_by_customer"
}

func partialRefundMetadata(orderID string, lines []domain.RefundedItem) map[string]string {
	meta := map[string]string{
		"order_id": orderID,
		"kind":     "partial",
	}
	for _, line := range lines {
		meta["line:"+line.ProductID] = fmt.Sprintf("%d:%s", line.Quantity, line.Amount.StringFixed(2))
	}
	return meta
}

// fullRefundKey derives a deterministic gateway idempotency key so a retry
// after an ambiguous failure cannot refund twice.
func fullRefundKey(orderID string, amount decimal.Decimal) string {
	return refundKey(orderID, "full", amount.StringFixed(2))
}

// partialRefundKey keys the gateway call on the order plus the exact item
// breakdown; the same breakdown retried yields the same refund.
func partialRefundKey(orderID string, items []PartialRefundItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s:%d", item.ProductID, item.Quantity))
	}
	sort.Strings(parts)
	return refundKey(orderID, "partial", strings.Join(parts, ","))
}

func refundKey(orderID, kind, detail string) string {
	sum := sha256.Sum256([]byte(orderID + "|" + kind + "|" + detail))
	return orderID + ":" + kind + ":" + hex.EncodeToString(sum[:8])
}
