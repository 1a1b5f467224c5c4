package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oguzkaracar/coursecommerce/internal/domain"
	"github.com/oguzkaracar/coursecommerce/internal/repository"
	apperrors "github.com/oguzkaracar/coursecommerce/pkg/errors"
)

func newOrderService(repo *fakeOrderRepo) *OrderService {
	return NewOrderService(repo, nil, refundTestLogger())
}

func createInput() CreateOrderInput {
	return CreateOrderInput{
		SessionID:  "cs_new",
		PaymentRef: "pi_new",
		UserID:     "user_1",
		Currency:   "usd",
		Items: []CreateOrderItemInput{
			{ProductID: "course_go", ResourceID: "res_go", Title: "Go from Scratch", Price: money("19.99"), Quantity: 3},
			{ProductID: "course_sql", ResourceID: "res_sql", Title: "Practical SQL", Price: money("49.99"), Quantity: 1},
		},
	}
}

func TestCreateOrder_Success(t *testing.T) {
	repo := newFakeOrderRepo()
	svc := newOrderService(repo)

	order, err := svc.CreateOrder(context.Background(), createInput())

	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	assert.Equal(t, "USD", order.Currency)
	assert.True(t, order.TotalAmount.Equal(money("109.96")), "3 x 19.99 + 49.99 must be 109.96, got %s", order.TotalAmount)
	assert.Equal(t, int64(1), order.Version)
	require.Len(t, order.Items, 2)
	assert.Equal(t, order.ID, order.Items[0].OrderID)
}

func TestCreateOrder_WithDiscount(t *testing.T) {
	repo := newFakeOrderRepo()
	svc := newOrderService(repo)

	input := createInput()
	input.CouponCode = "  summer10 "
	input.TotalDiscount = money("11.00")

	order, err := svc.CreateOrder(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, "SUMMER10", order.CouponCode)
	assert.True(t, order.TotalAmount.Equal(money("98.96")), "got %s", order.TotalAmount)
	assert.True(t, order.TotalDiscount.Equal(money("11.00")))
}

func TestCreateOrder_DiscountExceedingSubtotalClampsToZero(t *testing.T) {
	repo := newFakeOrderRepo()
	svc := newOrderService(repo)

	input := createInput()
	input.TotalDiscount = money("500.00")

	order, err := svc.CreateOrder(context.Background(), input)

	require.NoError(t, err)
	assert.True(t, order.TotalAmount.IsZero())
}

func TestCreateOrder_DuplicateSessionReturnsExisting(t *testing.T) {
	repo := newFakeOrderRepo()
	svc := newOrderService(repo)
	ctx := context.Background()

	first, err := svc.CreateOrder(ctx, createInput())
	require.NoError(t, err)

	second, err := svc.CreateOrder(ctx, createInput())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestCreateOrder_Validation(t *testing.T) {
	svc := newOrderService(newFakeOrderRepo())
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateOrderInput)
	}{
		{"missing user", func(in *CreateOrderInput) { in.UserID = "" }},
		{"missing session", func(in *CreateOrderInput) { in.SessionID = "" }},
		{"no items", func(in *CreateOrderInput) { in.Items = nil }},
		{"bad currency", func(in *CreateOrderInput) { in.Currency = "us" }},
		{"zero quantity", func(in *CreateOrderInput) { in.Items[0].Quantity = 0 }},
		{"negative price", func(in *CreateOrderInput) { in.Items[0].Price = money("-1") }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := createInput()
			tc.mutate(&input)
			_, err := svc.CreateOrder(ctx, input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
		})
	}
}

func TestGetOrder_OwnerAndAdmin(t *testing.T) {
	order := paidOrder()
	repo := newFakeOrderRepo(order)
	svc := newOrderService(repo)
	ctx := context.Background()

	got, err := svc.GetOrder(ctx, "ord_1", owner())
	require.NoError(t, err)
	assert.Equal(t, "ord_1", got.ID)

	_, err = svc.GetOrder(ctx, "ord_1", Actor{UserID: "admin_1", Role: RoleAdmin})
	require.NoError(t, err)

	_, err = svc.GetOrder(ctx, "ord_1", Actor{UserID: "user_2", Role: "customer"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

func TestGetOrder_NotFound(t *testing.T) {
	svc := newOrderService(newFakeOrderRepo())

	_, err := svc.GetOrder(context.Background(), "ord_missing", owner())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestListOrders_NonAdminScopedToSelf(t *testing.T) {
	repo := newFakeOrderRepo()
	var captured repository.OrderFilter
	svc := NewOrderService(&filterCapturingRepo{fakeOrderRepo: repo, captured: &captured}, nil, refundTestLogger())

	other := "user_2"
	_, _, err := svc.ListOrders(context.Background(), owner(), repository.OrderFilter{UserID: &other, PerPage: 500})

	require.NoError(t, err)
	require.NotNil(t, captured.UserID)
	assert.Equal(t, "user_1", *captured.UserID)
	assert.Equal(t, 100, captured.PerPage)
	assert.Equal(t, 1, captured.Page)
}

func TestListOrders_AdminMayFilterAnyUser(t *testing.T) {
	repo := newFakeOrderRepo()
	var captured repository.OrderFilter
	svc := NewOrderService(&filterCapturingRepo{fakeOrderRepo: repo, captured: &captured}, nil, refundTestLogger())

	other := "user_2"
	_, _, err := svc.ListOrders(context.Background(), Actor{UserID: "admin_1", Role: RoleAdmin}, repository.OrderFilter{UserID: &other})

	require.NoError(t, err)
	require.NotNil(t, captured.UserID)
	assert.Equal(t, "user_2", *captured.UserID)
}

type filterCapturingRepo struct {
	*fakeOrderRepo
	captured *repository.OrderFilter
}

func (r *filterCapturingRepo) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	*r.captured = filter
	return r.fakeOrderRepo.List(ctx, filter)
}

func TestCreateOrder_RoundsSummedLineTotals(t *testing.T) {
	svc := newOrderService(newFakeOrderRepo())

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		SessionID:  "cs_round",
		PaymentRef: "pi_round",
		UserID:     "user_1",
		Currency:   "USD",
		Items: []CreateOrderItemInput{
			{ProductID: "course_a", ResourceID: "res_a", Title: "A", Price: money("3.335"), Quantity: 3},
		},
	})

	// 3.335 x 3 = 10.005, rounded half away from zero once at the end.
	require.NoError(t, err)
	assert.True(t, order.TotalAmount.Equal(money("10.01")), "got %s", order.TotalAmount)
}
