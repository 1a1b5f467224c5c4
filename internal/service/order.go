package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oguzkaracar/coursecommerce/internal/domain"
	"github.com/oguzkaracar/coursecommerce/internal/repository"
	apperrors "github.com/oguzkaracar/coursecommerce/pkg/errors"
)

// OrderEventPublisher publishes order lifecycle events.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *domain.Order) error
}

// OrderService implements the business logic for order operations. Orders
// are created from settled payment captures, so they enter the system
// already paid.
type OrderService struct {
	repo     repository.OrderRepository
	producer OrderEventPublisher
	logger   *slog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(repo repository.OrderRepository, producer OrderEventPublisher, logger *slog.Logger) *OrderService {
	return &OrderService{
		repo:     repo,
		producer: producer,
		logger:   logger,
	}
}

// CreateOrderItemInput holds the parameters for an order line item.
type CreateOrderItemInput struct {
	ProductID  string
	ResourceID string
	Title      string
	Price      decimal.Decimal
	Quantity   int
}

// CreateOrderInput holds the parameters for creating an order from a
// settled capture.
type CreateOrderInput struct {
	SessionID     string
	PaymentRef    string
	UserID        string
	Currency      string
	CouponCode    string
	TotalDiscount decimal.Decimal
	Items         []CreateOrderItemInput
}

// CreateOrder records an order for a settled payment. The session reference
// is unique; replaying the same capture returns the existing order instead
// of failing, so the payment consumer can redeliver safely.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	if input.UserID == "" {
		return nil, apperrors.InvalidRequest("user_id is required")
	}
	if input.SessionID == "" {
		return nil, apperrors.InvalidRequest("session_id is required")
	}
	if len(input.Items) == 0 {
		return nil, apperrors.InvalidRequest("order must contain at least one item")
	}
	if len(input.Currency) != 3 {
		return nil, apperrors.InvalidRequest("currency must be a 3-letter ISO code")
	}

	now := time.Now().UTC()
	orderID := uuid.New().String()

	subtotal := decimal.Zero
	items := make([]domain.LineItem, len(input.Items))
	for i, itemInput := range input.Items {
		if itemInput.Quantity <= 0 {
			return nil, apperrors.InvalidRequest(fmt.Sprintf("item %s must have a positive quantity", itemInput.ProductID))
		}
		if itemInput.Price.IsNegative() {
			return nil, apperrors.InvalidRequest(fmt.Sprintf("item %s must not have a negative price", itemInput.ProductID))
		}
		items[i] = domain.LineItem{
			ID:         uuid.New().String(),
			OrderID:    orderID,
			ProductID:  itemInput.ProductID,
			ResourceID: itemInput.ResourceID,
			Title:      itemInput.Title,
			Price:      itemInput.Price,
			Quantity:   itemInput.Quantity,
		}
		subtotal = subtotal.Add(items[i].LineTotal())
	}

	// Rounding happens once, after summing the raw line totals.
	total := domain.RoundMoney(subtotal).Sub(input.TotalDiscount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	order := &domain.Order{
		ID:            orderID,
		SessionID:     input.SessionID,
		PaymentRef:    input.PaymentRef,
		UserID:        input.UserID,
		Status:        domain.OrderStatusPaid,
		Items:         items,
		TotalAmount:   total,
		TotalDiscount: input.TotalDiscount,
		CouponCode:    domain.NormalizeCode(input.CouponCode),
		Currency:      strings.ToUpper(input.Currency),
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, order); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			existing, getErr := s.repo.GetBySessionID(ctx, input.SessionID)
			if getErr == nil {
				s.logger.InfoContext(ctx, "order already exists for session, returning existing",
					slog.String("session_id", input.SessionID),
					slog.String("order_id", existing.ID),
				)
				return existing, nil
			}
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	if s.producer != nil {
		if err := s.producer.PublishOrderCreated(ctx, order); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish order.created event",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
			// Do not fail the operation if event publishing fails.
		}
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("user_id", order.UserID),
		slog.String("total_amount", order.TotalAmount.StringFixed(2)),
	)

	return order, nil
}

// GetOrder retrieves an order, enforcing that only the owner or an admin
// may see it.
func (s *OrderService) GetOrder(ctx context.Context, id string, actor Actor) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	if !actor.mayRefund(order) {
		return nil, apperrors.Forbidden("only the order owner or an admin may view this order")
	}
	return order, nil
}

// GetOrderBySession retrieves an order by its checkout session reference.
func (s *OrderService) GetOrderBySession(ctx context.Context, sessionID string) (*domain.Order, error) {
	order, err := s.repo.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get order by session: %w", err)
	}
	return order, nil
}

// ListOrders returns a filtered, paginated list of orders. Non-admin actors
// are always scoped to their own orders regardless of the filter.
func (s *OrderService) ListOrders(ctx context.Context, actor Actor, filter repository.OrderFilter) ([]domain.Order, int, error) {
	if actor.Role != RoleAdmin {
		filter.UserID = &actor.UserID
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}

	orders, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	return orders, total, nil
}
