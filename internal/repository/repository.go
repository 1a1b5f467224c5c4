package repository

import (
	"context"

	"github.com/oguzkaracar/coursecommerce/internal/domain"
)

// OrderFilter defines filter criteria for listing orders.
type OrderFilter struct {
	UserID  *string
	Status  *string
	Page    int
	PerPage int
}

// OrderRepository defines the interface for order persistence operations.
type OrderRepository interface {
	// Create inserts a new order and its items atomically.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by its unique identifier, including items
	// and partial refund records.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetBySessionID retrieves an order by its checkout session reference.
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error)

	// List returns orders matching the given filter with the total count.
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)

	// UpdateStatus changes the status of an order.
	UpdateStatus(ctx context.Context, id string, status string) error

	// UpdateRefundState persists the order's refund fields, item refund
	// tracking, and any new partial refund records in one transaction. The
	// update is conditional on the order's version; a stale version returns
	// ErrConflict and order.Version is incremented on success.
	UpdateRefundState(ctx context.Context, order *domain.Order) error
}

// DiscountFilter defines filter criteria for listing discounts.
type DiscountFilter struct {
	IsActive *bool
	Type     *string
	Page     int
	PerPage  int
}

// DiscountRepository defines the interface for discount persistence.
type DiscountRepository interface {
	Create(ctx context.Context, discount *domain.Discount) error
	Update(ctx context.Context, discount *domain.Discount) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Discount, error)

	// GetByCode looks up a discount by normalized code.
	GetByCode(ctx context.Context, code string) (*domain.Discount, error)

	List(ctx context.Context, filter DiscountFilter) ([]domain.Discount, int, error)

	// RecordUsage inserts a usage record and increments the discount's
	// used count in one transaction.
	RecordUsage(ctx context.Context, usage *domain.DiscountUsage) error

	// CountUsagesByUser returns how many times the user has used the code.
	CountUsagesByUser(ctx context.Context, code, userID string) (int, error)
}

// EntitlementRepository defines the interface for entitlement persistence.
type EntitlementRepository interface {
	// Grant records an entitlement. Granting an already-granted resource
	// is a no-op.
	Grant(ctx context.Context, entitlement *domain.Entitlement) error

	// Revoke removes an entitlement. Revoking a missing one is a no-op.
	Revoke(ctx context.Context, userID, resourceID string) error

	// ListByUser returns all entitlements held by a user.
	ListByUser(ctx context.Context, userID string) ([]domain.Entitlement, error)

	// Has reports whether the user holds an entitlement for the resource.
	Has(ctx context.Context, userID, resourceID string) (bool, error)
}
