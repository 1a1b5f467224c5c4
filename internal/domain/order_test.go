package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

// ============================================================================
// Money Rounding Tests
// ============================================================================

func TestRoundMoney_LineTotalExact(t *testing.T) {
	item := LineItem{Price: dec("19.99"), Quantity: 3}
	assert.True(t, RoundMoney(item.LineTotal()).Equal(dec("59.97")),
		"got %s", RoundMoney(item.LineTotal()))
}

func TestRoundMoney_HalfAwayFromZero(t *testing.T) {
	assert.True(t, RoundMoney(dec("10.005")).Equal(dec("10.01")))
	assert.True(t, RoundMoney(dec("10.004")).Equal(dec("10.00")))
	assert.True(t, RoundMoney(dec("-10.005")).Equal(dec("-10.01")))
}

func TestRoundMoney_AlreadyRounded(t *testing.T) {
	assert.True(t, RoundMoney(dec("42.50")).Equal(dec("42.50")))
	assert.True(t, RoundMoney(decimal.Zero).Equal(decimal.Zero))
}

// ============================================================================
// LineItem Tests
// ============================================================================

func TestLineTotal_BasicCalculation(t *testing.T) {
	item := LineItem{Price: dec("19.99"), Quantity: 3}
	assert.True(t, item.LineTotal().Equal(dec("59.97")))
}

func TestLineTotal_ZeroQuantity(t *testing.T) {
	item := LineItem{Price: dec("19.99"), Quantity: 0}
	assert.True(t, item.LineTotal().IsZero())
}

func TestAvailableToRefund_Untouched(t *testing.T) {
	item := LineItem{Quantity: 3}
	assert.Equal(t, 3, item.AvailableToRefund())
}

func TestAvailableToRefund_PartiallyRefunded(t *testing.T) {
	item := LineItem{Quantity: 3, RefundQuantity: 2}
	assert.Equal(t, 1, item.AvailableToRefund())
}

func TestAvailableToRefund_FullyRefundedFlag(t *testing.T) {
	item := LineItem{Quantity: 3, RefundQuantity: 1, Refunded: true}
	assert.Equal(t, 0, item.AvailableToRefund())
}

// ============================================================================
// Order Status Validation Tests
// ============================================================================

func TestValidStatuses_ContainsAllStatuses(t *testing.T) {
	expected := []string{
		OrderStatusPending, OrderStatusPaid,
		OrderStatusPartiallyRefunded, OrderStatusRefunded,
	}
	assert.ElementsMatch(t, expected, ValidStatuses())
}

func TestIsValidStatus_InvalidStatus(t *testing.T) {
	assert.False(t, IsValidStatus("unknown"))
	assert.False(t, IsValidStatus(""))
	assert.False(t, IsValidStatus("PAID")) // case-sensitive
}

// ============================================================================
// Order State Transitions Tests
// ============================================================================

func TestCanTransitionTo_PaidToRefunded(t *testing.T) {
	order := &Order{Status: OrderStatusPaid}
	assert.True(t, order.CanTransitionTo(OrderStatusRefunded))
	assert.True(t, order.CanTransitionTo(OrderStatusPartiallyRefunded))
}

func TestCanTransitionTo_PartialToPartial(t *testing.T) {
	order := &Order{Status: OrderStatusPartiallyRefunded}
	assert.True(t, order.CanTransitionTo(OrderStatusPartiallyRefunded))
	assert.True(t, order.CanTransitionTo(OrderStatusRefunded))
}

func TestCanTransitionTo_RefundedIsTerminal(t *testing.T) {
	order := &Order{Status: OrderStatusRefunded}
	for _, s := range ValidStatuses() {
		assert.False(t, order.CanTransitionTo(s), "refunded must not transition to %q", s)
	}
}

func TestCanTransitionTo_PendingCannotRefund(t *testing.T) {
	order := &Order{Status: OrderStatusPending}
	assert.False(t, order.CanTransitionTo(OrderStatusRefunded))
	assert.True(t, order.CanTransitionTo(OrderStatusPaid))
}

func TestIsRefundable(t *testing.T) {
	assert.True(t, (&Order{Status: OrderStatusPaid}).IsRefundable())
	assert.True(t, (&Order{Status: OrderStatusPartiallyRefunded}).IsRefundable())
	assert.False(t, (&Order{Status: OrderStatusPending}).IsRefundable())
	assert.False(t, (&Order{Status: OrderStatusRefunded}).IsRefundable())
}

// ============================================================================
// Order Helpers Tests
// ============================================================================

func TestFullyRefunded(t *testing.T) {
	order := &Order{Items: []LineItem{
		{ProductID: "p1", Quantity: 2, RefundQuantity: 2},
		{ProductID: "p2", Quantity: 1, Refunded: true},
	}}
	assert.True(t, order.FullyRefunded())

	order.Items[0].RefundQuantity = 1
	assert.False(t, order.FullyRefunded())
}

func TestRefundedTotal_PartialsOnly(t *testing.T) {
	order := &Order{
		Status: OrderStatusPartiallyRefunded,
		PartialRefunds: []PartialRefund{
			{Amount: dec("19.99")},
			{Amount: dec("10.00")},
		},
	}
	assert.True(t, order.RefundedTotal().Equal(dec("29.99")))
}

func TestRefundedTotal_FullRefundIncluded(t *testing.T) {
	order := &Order{
		Status:       OrderStatusRefunded,
		RefundID:     "re_1",
		RefundAmount: dec("59.97"),
		PartialRefunds: []PartialRefund{
			{Amount: dec("19.99")},
		},
	}
	assert.True(t, order.RefundedTotal().Equal(dec("79.96")))
}

func TestItem_Lookup(t *testing.T) {
	order := &Order{Items: []LineItem{{ProductID: "p1"}, {ProductID: "p2"}}}

	item := order.Item("p2")
	assert.NotNil(t, item)
	assert.Equal(t, "p2", item.ProductID)
	assert.Nil(t, order.Item("p3"))
}
