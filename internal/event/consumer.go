package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/oguzkaracar/coursecommerce/internal/domain"
	"github.com/oguzkaracar/coursecommerce/internal/service"
	pkgkafka "github.com/oguzkaracar/coursecommerce/pkg/kafka"
)

// TopicPaymentCaptured is published by the checkout pipeline once the
// gateway settles a payment.
const TopicPaymentCaptured = "commerce.payment.captured"

// ConsumerGroupID identifies this service's consumer group.
const ConsumerGroupID = "coursecommerce"

// CapturedItem is one purchased line in a payment.captured event.
type CapturedItem struct {
	ProductID  string          `json:"product_id"`
	ResourceID string          `json:"resource_id"`
	Title      string          `json:"title"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
}

// PaymentCapturedData is the payload of a payment.captured event.
type PaymentCapturedData struct {
	SessionID      string          `json:"session_id"`
	PaymentRef     string          `json:"payment_ref"`
	UserID         string          `json:"user_id"`
	Currency       string          `json:"currency"`
	CouponCode     string          `json:"coupon_code,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Items          []CapturedItem  `json:"items"`
}

// OrderCreator records a paid order for a settled capture.
type OrderCreator interface {
	CreateOrder(ctx context.Context, input service.CreateOrderInput) (*domain.Order, error)
}

// CouponRedeemer records a coupon use against an order.
type CouponRedeemer interface {
	Use(ctx context.Context, code, userID, orderID string, amount decimal.Decimal) (*domain.DiscountUsage, error)
}

// AccessGranter gives a user access to a purchased resource.
type AccessGranter interface {
	Grant(ctx context.Context, userID, resourceID, orderID string) error
}

// ConsumerHandler turns settled payments into paid orders: it records the
// order, counts the coupon use, and grants course access for every line.
type ConsumerHandler struct {
	orders       OrderCreator
	discounts    CouponRedeemer
	entitlements AccessGranter
	logger       *slog.Logger
}

// NewConsumerHandler creates a new event consumer handler.
func NewConsumerHandler(
	orders OrderCreator,
	discounts CouponRedeemer,
	entitlements AccessGranter,
	logger *slog.Logger,
) *ConsumerHandler {
	return &ConsumerHandler{
		orders:       orders,
		discounts:    discounts,
		entitlements: entitlements,
		logger:       logger,
	}
}

// Handle processes an incoming Kafka event based on its event type.
func (h *ConsumerHandler) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicPaymentCaptured:
		return h.handlePaymentCaptured(ctx, event)
	default:
		h.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

func (h *ConsumerHandler) handlePaymentCaptured(ctx context.Context, event *pkgkafka.Event) error {
	var data PaymentCapturedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal payment.captured payload: %w", err)
	}

	items := make([]service.CreateOrderItemInput, len(data.Items))
	for i, item := range data.Items {
		items[i] = service.CreateOrderItemInput{
			ProductID:  item.ProductID,
			ResourceID: item.ResourceID,
			Title:      item.Title,
			Price:      item.Price,
			Quantity:   item.Quantity,
		}
	}

	order, err := h.orders.CreateOrder(ctx, service.CreateOrderInput{
		SessionID:     data.SessionID,
		PaymentRef:    data.PaymentRef,
		UserID:        data.UserID,
		Currency:      data.Currency,
		CouponCode:    data.CouponCode,
		TotalDiscount: data.DiscountAmount,
		Items:         items,
	})
	if err != nil {
		return fmt.Errorf("create order from capture: %w", err)
	}

	if data.CouponCode != "" {
		if _, err := h.discounts.Use(ctx, data.CouponCode, data.UserID, order.ID, data.DiscountAmount); err != nil {
			// Usage accounting must not block access to purchased courses.
			h.logger.ErrorContext(ctx, "failed to record coupon use",
				slog.String("order_id", order.ID),
				slog.String("code", data.CouponCode),
				slog.String("error", err.Error()),
			)
		}
	}

	for _, item := range order.Items {
		if item.ResourceID == "" {
			continue
		}
		if err := h.entitlements.Grant(ctx, order.UserID, item.ResourceID, order.ID); err != nil {
			return fmt.Errorf("grant entitlement for %s: %w", item.ResourceID, err)
		}
	}

	h.logger.InfoContext(ctx, "payment capture processed",
		slog.String("event_id", event.EventID),
		slog.String("order_id", order.ID),
		slog.String("session_id", data.SessionID),
	)

	return nil
}

// NewConsumer builds the payment.captured consumer. The handler is wrapped
// so redelivered events are skipped once processed.
func NewConsumer(
	brokers []string,
	handler *ConsumerHandler,
	store pkgkafka.IdempotencyStore,
	dlq *pkgkafka.DLQProducer,
	logger *slog.Logger,
) *pkgkafka.Consumer {
	cfg := pkgkafka.DefaultConsumerConfig(brokers, ConsumerGroupID, TopicPaymentCaptured)

	handle := pkgkafka.IdempotentHandler(store, TopicPaymentCaptured, ConsumerGroupID, handler.Handle, logger)

	return pkgkafka.NewConsumer(cfg, handle, dlq, logger)
}
