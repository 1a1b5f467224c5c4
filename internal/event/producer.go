package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/oguzkaracar/coursecommerce/internal/domain"
	pkgkafka "github.com/oguzkaracar/coursecommerce/pkg/kafka"
)

// Kafka topic constants for commerce domain events.
const (
	TopicOrderCreated           = "commerce.order.created"
	TopicOrderRefunded          = "commerce.order.refunded"
	TopicOrderPartiallyRefunded = "commerce.order.partially_refunded"
	TopicDiscountApplied        = "commerce.discount.applied"
)

// Aggregate type constants.
const (
	AggregateTypeOrder    = "order"
	AggregateTypeDiscount = "discount"
)

// Source identifier for events originating from this service.
const SourceCommerce = "coursecommerce"

// OrderCreatedData is the payload for an order.created event.
type OrderCreatedData struct {
	OrderID     string          `json:"order_id"`
	SessionID   string          `json:"session_id"`
	UserID      string          `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
	CouponCode  string          `json:"coupon_code,omitempty"`
}

// OrderRefundedData is the payload for an order.refunded event.
type OrderRefundedData struct {
	OrderID      string          `json:"order_id"`
	UserID       string          `json:"user_id"`
	RefundID     string          `json:"refund_id"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	Currency     string          `json:"currency"`
}

// RefundedLine is the per-line breakdown in a partial refund event.
type RefundedLine struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
}

// OrderPartiallyRefundedData is the payload for an
// order.partially_refunded event.
type OrderPartiallyRefundedData struct {
	OrderID      string          `json:"order_id"`
	UserID       string          `json:"user_id"`
	RefundID     string          `json:"refund_id"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	Currency     string          `json:"currency"`
	Status       string          `json:"status"`
	Lines        []RefundedLine  `json:"lines"`
}

// DiscountAppliedData is the payload for a discount.applied event.
type DiscountAppliedData struct {
	Code           string          `json:"code"`
	OrderID        string          `json:"order_id"`
	UserID         string          `json:"user_id"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// Producer publishes commerce domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishOrderCreated publishes an order.created event.
func (p *Producer) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	data := OrderCreatedData{
		OrderID:     order.ID,
		SessionID:   order.SessionID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
		CouponCode:  order.CouponCode,
	}

	event, err := pkgkafka.NewEvent(TopicOrderCreated, order.ID, AggregateTypeOrder, SourceCommerce, data)
	if err != nil {
		return fmt.Errorf("create order.created event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderCreated, event); err != nil {
		return fmt.Errorf("publish order.created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.created event",
		slog.String("order_id", order.ID),
		slog.String("session_id", order.SessionID),
	)

	return nil
}

// PublishOrderRefunded publishes an order.refunded event after a full refund.
func (p *Producer) PublishOrderRefunded(ctx context.Context, order *domain.Order) error {
	data := OrderRefundedData{
		OrderID:      order.ID,
		UserID:       order.UserID,
		RefundID:     order.RefundID,
		RefundAmount: order.RefundAmount,
		Currency:     order.Currency,
	}

	event, err := pkgkafka.NewEvent(TopicOrderRefunded, order.ID, AggregateTypeOrder, SourceCommerce, data)
	if err != nil {
		return fmt.Errorf("create order.refunded event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderRefunded, event); err != nil {
		return fmt.Errorf("publish order.refunded event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.refunded event",
		slog.String("order_id", order.ID),
		slog.String("refund_id", order.RefundID),
	)

	return nil
}

// PublishOrderPartiallyRefunded publishes an order.partially_refunded event.
func (p *Producer) PublishOrderPartiallyRefunded(ctx context.Context, order *domain.Order, refund *domain.PartialRefund) error {
	lines := make([]RefundedLine, 0, len(refund.Items))
	for _, item := range refund.Items {
		lines = append(lines, RefundedLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Amount:    item.Amount,
		})
	}

	data := OrderPartiallyRefundedData{
		OrderID:      order.ID,
		UserID:       order.UserID,
		RefundID:     refund.RefundID,
		RefundAmount: refund.Amount,
		Currency:     order.Currency,
		Status:       order.Status,
		Lines:        lines,
	}

	event, err := pkgkafka.NewEvent(TopicOrderPartiallyRefunded, order.ID, AggregateTypeOrder, SourceCommerce, data)
	if err != nil {
		return fmt.Errorf("create order.partially_refunded event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderPartiallyRefunded, event); err != nil {
		return fmt.Errorf("publish order.partially_refunded event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.partially_refunded event",
		slog.String("order_id", order.ID),
		slog.String("refund_id", refund.RefundID),
	)

	return nil
}

// PublishDiscountApplied publishes a discount.applied event.
func (p *Producer) PublishDiscountApplied(ctx context.Context, usage *domain.DiscountUsage) error {
	data := DiscountAppliedData{
		Code:           usage.Code,
		OrderID:        usage.OrderID,
		UserID:         usage.UserID,
		DiscountAmount: usage.DiscountAmount,
	}

	event, err := pkgkafka.NewEvent(TopicDiscountApplied, usage.OrderID, AggregateTypeDiscount, SourceCommerce, data)
	if err != nil {
		return fmt.Errorf("create discount.applied event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicDiscountApplied, event); err != nil {
		return fmt.Errorf("publish discount.applied event: %w", err)
	}

	p.logger.DebugContext(ctx, "published discount.applied event",
		slog.String("code", usage.Code),
		slog.String("order_id", usage.OrderID),
	)

	return nil
}
