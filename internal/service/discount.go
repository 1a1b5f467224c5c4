package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oguzkaracar/coursecommerce/internal/domain"
	"github.com/oguzkaracar/coursecommerce/internal/repository"
	apperrors "github.com/oguzkaracar/coursecommerce/pkg/errors"
)

// DiscountEventPublisher publishes discount domain events.
type DiscountEventPublisher interface {
	PublishDiscountApplied(ctx context.Context, usage *domain.DiscountUsage) error
}

// DiscountService implements coupon validation, usage accounting, and the
// admin-facing discount lifecycle.
type DiscountService struct {
	repo     repository.DiscountRepository
	producer DiscountEventPublisher
	logger   *slog.Logger
}

// NewDiscountService creates a new discount service.
func NewDiscountService(repo repository.DiscountRepository, producer DiscountEventPublisher, logger *slog.Logger) *DiscountService {
	return &DiscountService{
		repo:     repo,
		producer: producer,
		logger:   logger,
	}
}

// DiscountValidation holds the result of validating a coupon against a cart.
type DiscountValidation struct {
	Valid          bool            `json:"valid"`
	Code           string          `json:"code,omitempty"`
	Type           string          `json:"type,omitempty"`
	Value          decimal.Decimal `json:"value"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Reason         string          `json:"reason,omitempty"`
}

// Validate checks a coupon against a cart amount and optional target
// product. Validation is read-only; usage is recorded separately by Use at
// order-creation time. A coupon that fails a rule yields Valid=false with a
// reason, not an error.
func (s *DiscountService) Validate(ctx context.Context, code string, cartAmount decimal.Decimal, productID string) (*DiscountValidation, error) {
	discount, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return &DiscountValidation{Valid: false, Reason: "coupon not found"}, nil
		}
		return nil, fmt.Errorf("look up coupon: %w", err)
	}

	now := time.Now().UTC()

	if !discount.IsActive {
		return &DiscountValidation{Valid: false, Code: discount.Code, Reason: "coupon is not active"}, nil
	}

	if discount.ValidFrom != nil && now.Before(*discount.ValidFrom) {
		return &DiscountValidation{Valid: false, Code: discount.Code, Reason: "coupon is not yet valid"}, nil
	}
	if discount.ValidUntil != nil && now.After(*discount.ValidUntil) {
		return &DiscountValidation{Valid: false, Code: discount.Code, Reason: "coupon has expired"}, nil
	}

	if discount.IsExhausted() {
		return &DiscountValidation{Valid: false, Code: discount.Code, Reason: "coupon usage limit reached"}, nil
	}

	if discount.MinPurchaseAmount.IsPositive() && cartAmount.LessThan(discount.MinPurchaseAmount) {
		return &DiscountValidation{
			Valid:  false,
			Code:   discount.Code,
			Reason: fmt.Sprintf("minimum purchase amount is %s", discount.MinPurchaseAmount.StringFixed(2)),
		}, nil
	}

	amount := computeDiscountAmount(discount, cartAmount, productID)

	result := &DiscountValidation{
		Valid:          true,
		Code:           discount.Code,
		Type:           discount.Type,
		Value:          discount.Value,
		DiscountAmount: amount,
	}
	// A product-scoped coupon on a non-matching cart stays valid with a
	// zero amount rather than erroring.
	if discount.Type == domain.DiscountTypeProduct && amount.IsZero() {
		result.Reason = "coupon does not apply to these products"
	}

	return result, nil
}

// computeDiscountAmount applies the type-specific discount rule. Rounding
// happens once, at the end.
func computeDiscountAmount(d *domain.Discount, cartAmount decimal.Decimal, productID string) decimal.Decimal {
	var amount decimal.Decimal

	switch d.Type {
	case domain.DiscountTypePercentage:
		amount = cartAmount.Mul(d.Value).Div(decimal.NewFromInt(100))
		if d.MaxDiscountAmount.IsPositive() && amount.GreaterThan(d.MaxDiscountAmount) {
			amount = d.MaxDiscountAmount
		}
	case domain.DiscountTypeFixed:
		amount = d.Value
		if amount.GreaterThan(cartAmount) {
			amount = cartAmount
		}
	case domain.DiscountTypeProduct:
		if productID == "" || productID != d.ProductID {
			return decimal.Zero
		}
		amount = d.Value
		if amount.GreaterThan(cartAmount) {
			amount = cartAmount
		}
	default:
		return decimal.Zero
	}

	return domain.RoundMoney(amount)
}

// Use records a coupon application against an order, incrementing the usage
// counter atomically with the usage record. Usage accounting is
// one-directional: a later refund of the order does not restore the use.
func (s *DiscountService) Use(ctx context.Context, code, userID, orderID string, amount decimal.Decimal) (*domain.DiscountUsage, error) {
	usage := &domain.DiscountUsage{
		ID:             uuid.New().String(),
		Code:           domain.NormalizeCode(code),
		UserID:         userID,
		OrderID:        orderID,
		DiscountAmount: amount,
		UsedAt:         time.Now().UTC(),
	}

	if err := s.repo.RecordUsage(ctx, usage); err != nil {
		return nil, fmt.Errorf("record discount usage: %w", err)
	}

	if s.producer != nil {
		if err := s.producer.PublishDiscountApplied(ctx, usage); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish discount.applied event",
				slog.String("code", usage.Code),
				slog.String("order_id", orderID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "discount used",
		slog.String("code", usage.Code),
		slog.String("user_id", userID),
		slog.String("order_id", orderID),
		slog.String("discount_amount", amount.StringFixed(2)),
	)

	return usage, nil
}

// CreateDiscountInput holds the parameters for creating a discount.
type CreateDiscountInput struct {
	Code              string
	Type              string
	Value             decimal.Decimal
	MinPurchaseAmount decimal.Decimal
	MaxDiscountAmount decimal.Decimal
	MaxUses           int
	UserID            string
	ProductID         string
	ValidFrom         *time.Time
	ValidUntil        *time.Time
	IsActive          bool
}

// Create creates a new discount after enforcing the model invariants.
func (s *DiscountService) Create(ctx context.Context, input *CreateDiscountInput) (*domain.Discount, error) {
	if err := validateDiscountInput(input.Code, input.Type, input.Value, input.ProductID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	discount := &domain.Discount{
		ID:                uuid.New().String(),
		Code:              domain.NormalizeCode(input.Code),
		Type:              input.Type,
		Value:             input.Value,
		MinPurchaseAmount: input.MinPurchaseAmount,
		MaxDiscountAmount: input.MaxDiscountAmount,
		MaxUses:           input.MaxUses,
		UsedCount:         0,
		UserID:            input.UserID,
		ProductID:         input.ProductID,
		ValidFrom:         input.ValidFrom,
		ValidUntil:        input.ValidUntil,
		IsActive:          input.IsActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.Create(ctx, discount); err != nil {
		return nil, fmt.Errorf("create discount: %w", err)
	}

	s.logger.InfoContext(ctx, "discount created",
		slog.String("discount_id", discount.ID),
		slog.String("code", discount.Code),
		slog.String("type", discount.Type),
	)

	return discount, nil
}

// UpdateDiscountInput holds the mutable discount fields.
type UpdateDiscountInput struct {
	Code              string
	Type              string
	Value             decimal.Decimal
	MinPurchaseAmount decimal.Decimal
	MaxDiscountAmount decimal.Decimal
	MaxUses           int
	UserID            string
	ProductID         string
	ValidFrom         *time.Time
	ValidUntil        *time.Time
	IsActive          bool
}

// Update modifies an existing discount. Usage history is never touched.
func (s *DiscountService) Update(ctx context.Context, id string, input *UpdateDiscountInput) (*domain.Discount, error) {
	if err := validateDiscountInput(input.Code, input.Type, input.Value, input.ProductID); err != nil {
		return nil, err
	}

	discount, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get discount for update: %w", err)
	}

	discount.Code = domain.NormalizeCode(input.Code)
	discount.Type = input.Type
	discount.Value = input.Value
	discount.MinPurchaseAmount = input.MinPurchaseAmount
	discount.MaxDiscountAmount = input.MaxDiscountAmount
	discount.MaxUses = input.MaxUses
	discount.UserID = input.UserID
	discount.ProductID = input.ProductID
	discount.ValidFrom = input.ValidFrom
	discount.ValidUntil = input.ValidUntil
	discount.IsActive = input.IsActive

	if err := s.repo.Update(ctx, discount); err != nil {
		return nil, fmt.Errorf("update discount: %w", err)
	}

	return discount, nil
}

// Delete removes a discount definition.
func (s *DiscountService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete discount: %w", err)
	}

	s.logger.InfoContext(ctx, "discount deleted", slog.String("discount_id", id))
	return nil
}

// Get retrieves a discount by ID.
func (s *DiscountService) Get(ctx context.Context, id string) (*domain.Discount, error) {
	discount, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get discount: %w", err)
	}
	return discount, nil
}

// List returns discounts matching the filter with the total count.
func (s *DiscountService) List(ctx context.Context, filter repository.DiscountFilter) ([]domain.Discount, int, error) {
	discounts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list discounts: %w", err)
	}
	return discounts, total, nil
}

func validateDiscountInput(code, discountType string, value decimal.Decimal, productID string) error {
	if domain.NormalizeCode(code) == "" {
		return apperrors.InvalidRequest("discount code is required")
	}
	if !domain.IsValidDiscountType(discountType) {
		return apperrors.InvalidRequest(fmt.Sprintf("invalid discount type %q", discountType))
	}
	if value.IsNegative() {
		return apperrors.InvalidRequest("discount value must not be negative")
	}
	if discountType == domain.DiscountTypePercentage && value.GreaterThan(decimal.NewFromInt(100)) {
		return apperrors.InvalidRequest("percentage value must be between 0 and 100")
	}
	if discountType == domain.DiscountTypeProduct && productID == "" {
		return apperrors.InvalidRequest("product discounts require a product id")
	}
	return nil
}
