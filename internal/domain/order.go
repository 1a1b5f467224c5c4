package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order status constants.
const (
	OrderStatusPending           = "pending"
	OrderStatusPaid              = "paid"
	OrderStatusPartiallyRefunded = "partially_refunded"
	OrderStatusRefunded          = "refunded"
)

// Order is a paid snapshot of a checkout session. Prices and titles are
// captured at purchase time and never re-read from the catalog.
type Order struct {
	ID             string          `json:"id"`
	SessionID      string          `json:"session_id"`
	PaymentRef     string          `json:"payment_ref"`
	UserID         string          `json:"user_id"`
	Status         string          `json:"status"`
	Items          []LineItem      `json:"items"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	TotalDiscount  decimal.Decimal `json:"total_discount"`
	CouponCode     string          `json:"coupon_code,omitempty"`
	Currency       string          `json:"currency"`
	PartialRefunds []PartialRefund `json:"partial_refunds,omitempty"`
	RefundID       string          `json:"refund_id,omitempty"`
	RefundAmount   decimal.Decimal `json:"refund_amount"`
	RefundedAt     *time.Time      `json:"refunded_at,omitempty"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// LineItem is a purchased product line within an order.
type LineItem struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"order_id"`
	ProductID      string          `json:"product_id"`
	ResourceID     string          `json:"resource_id"`
	Title          string          `json:"title"`
	Price          decimal.Decimal `json:"price"`
	Quantity       int             `json:"quantity"`
	RefundQuantity int             `json:"refund_quantity"`
	Refunded       bool            `json:"refunded"`
	RefundAmount   decimal.Decimal `json:"refund_amount"`
	RefundedAt     *time.Time      `json:"refunded_at,omitempty"`
}

// LineTotal returns price times quantity, unrounded.
func (i *LineItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// AvailableToRefund returns the quantity not yet refunded on this line.
func (i *LineItem) AvailableToRefund() int {
	if i.Refunded {
		return 0
	}
	return i.Quantity - i.RefundQuantity
}

// PartialRefund is one append-only partial refund record on an order.
type PartialRefund struct {
	RefundID  string          `json:"refund_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason,omitempty"`
	Items     []RefundedItem  `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
}

// RefundedItem is the per-line breakdown inside a partial refund.
type RefundedItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
}

// ValidStatuses returns all valid order statuses.
func ValidStatuses() []string {
	return []string{
		OrderStatusPending,
		OrderStatusPaid,
		OrderStatusPartiallyRefunded,
		OrderStatusRefunded,
	}
}

// IsValidStatus checks if a status string is valid.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// AllowedTransitions defines which status transitions are valid.
// A refunded order is terminal.
func AllowedTransitions() map[string][]string {
	return map[string][]string{
		OrderStatusPending:           {OrderStatusPaid},
		OrderStatusPaid:              {OrderStatusPartiallyRefunded, OrderStatusRefunded},
		OrderStatusPartiallyRefunded: {OrderStatusPartiallyRefunded, OrderStatusRefunded},
		OrderStatusRefunded:          {},
	}
}

// CanTransitionTo checks if the order can transition to the target status.
func (o *Order) CanTransitionTo(target string) bool {
	allowed, ok := AllowedTransitions()[o.Status]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// IsRefundable reports whether any refund operation may start on this order.
func (o *Order) IsRefundable() bool {
	return o.Status == OrderStatusPaid || o.Status == OrderStatusPartiallyRefunded
}

// FullyRefunded reports whether every line has been completely refunded.
func (o *Order) FullyRefunded() bool {
	for i := range o.Items {
		if o.Items[i].AvailableToRefund() > 0 {
			return false
		}
	}
	return true
}

// RefundedTotal returns the cumulative amount refunded so far. The top-level
// refund amount is counted only when it came from a direct full refund; when
// partial refunds drove the order to refunded, the final refund is already a
// partialRefunds entry.
func (o *Order) RefundedTotal() decimal.Decimal {
	total := decimal.Zero
	counted := false
	for i := range o.PartialRefunds {
		total = total.Add(o.PartialRefunds[i].Amount)
		if o.PartialRefunds[i].RefundID == o.RefundID {
			counted = true
		}
	}
	if o.RefundID != "" && !counted {
		total = total.Add(o.RefundAmount)
	}
	return total
}

// Item returns the line item for the given product, or nil.
func (o *Order) Item(productID string) *LineItem {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			return &o.Items[i]
		}
	}
	return nil
}
