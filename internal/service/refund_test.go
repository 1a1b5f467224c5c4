package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oguzkaracar/coursecommerce/internal/domain"
	"github.com/oguzkaracar/coursecommerce/internal/gateway"
	gatewaymock "github.com/oguzkaracar/coursecommerce/internal/gateway/mock"
	"github.com/oguzkaracar/coursecommerce/internal/repository"
	apperrors "github.com/oguzkaracar/coursecommerce/pkg/errors"
)

// --- Fakes ---

// fakeOrderRepo is an in-memory order store with the same optimistic
// concurrency semantics as the postgres repository: GetByID returns a
// deep copy, UpdateRefundState is conditional on version.
type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order

	// forceConflicts makes the next N UpdateRefundState calls fail with a
	// version conflict, simulating a lost write race.
	forceConflicts int
	updateCalls    int
}

func newFakeOrderRepo(orders ...*domain.Order) *fakeOrderRepo {
	repo := &fakeOrderRepo{orders: make(map[string]*domain.Order)}
	for _, o := range orders {
		repo.orders[o.ID] = cloneOrder(o)
	}
	return repo
}

func cloneOrder(o *domain.Order) *domain.Order {
	out := *o
	out.Items = make([]domain.LineItem, len(o.Items))
	copy(out.Items, o.Items)
	out.PartialRefunds = make([]domain.PartialRefund, len(o.PartialRefunds))
	copy(out.PartialRefunds, o.PartialRefunds)
	return &out
}

func (r *fakeOrderRepo) Create(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.SessionID == order.SessionID {
			return apperrors.AlreadyExists("order", "session_id", order.SessionID)
		}
	}
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, apperrors.NotFound("order", id)
	}
	return cloneOrder(o), nil
}

func (r *fakeOrderRepo) GetBySessionID(_ context.Context, sessionID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.SessionID == sessionID {
			return cloneOrder(o), nil
		}
	}
	return nil, apperrors.NotFound("order", sessionID)
}

func (r *fakeOrderRepo) List(_ context.Context, _ repository.OrderFilter) ([]domain.Order, int, error) {
	return nil, 0, nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return apperrors.NotFound("order", id)
	}
	o.Status = status
	return nil
}

func (r *fakeOrderRepo) UpdateRefundState(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	if r.forceConflicts > 0 {
		r.forceConflicts--
		return apperrors.Conflict("order was modified concurrently")
	}
	stored, ok := r.orders[order.ID]
	if !ok {
		return apperrors.NotFound("order", order.ID)
	}
	if stored.Version != order.Version {
		return apperrors.Conflict("order was modified concurrently")
	}
	saved := cloneOrder(order)
	saved.Version++
	r.orders[order.ID] = saved
	order.Version++
	return nil
}

func (r *fakeOrderRepo) stored(t *testing.T, id string) *domain.Order {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	require.True(t, ok)
	return cloneOrder(o)
}

// fakeRevoker records revocations.
type fakeRevoker struct {
	mu      sync.Mutex
	revoked []string
	err     error
}

func (f *fakeRevoker) Revoke(_ context.Context, userID, resourceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.revoked = append(f.revoked, userID+"/"+resourceID)
	return nil
}

// failingGateway wraps a gateway and fails CreateRefund with a fixed error.
type failingGateway struct {
	gateway.Gateway
	createErr error
}

func (g *failingGateway) CreateRefund(_ context.Context, _ *gateway.RefundRequest) (*gateway.Refund, error) {
	return nil, g.createErr
}

// --- Helpers ---

func refundTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// paidOrder returns a paid two-line order: 3x a 19.99 course and 1x a
// 49.99 course, 109.96 total, no discount.
func paidOrder() *domain.Order {
	now := time.Now().UTC()
	return &domain.Order{
		ID:         "ord_1",
		SessionID:  "cs_1",
		PaymentRef: "pi_1",
		UserID:     "user_1",
		Status:     domain.OrderStatusPaid,
		Items: []domain.LineItem{
			{
				ID:         "item_1",
				OrderID:    "ord_1",
				ProductID:  "course_go",
				ResourceID: "res_go",
				Title:      "Go from Scratch",
				Price:      money("19.99"),
				Quantity:   3,
			},
			{
				ID:         "item_2",
				OrderID:    "ord_1",
				ProductID:  "course_sql",
				ResourceID: "res_sql",
				Title:      "Practical SQL",
				Price:      money("49.99"),
				Quantity:   1,
			},
		},
		TotalAmount:   money("109.96"),
		TotalDiscount: decimal.Zero,
		Currency:      "USD",
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

type refundFixture struct {
	svc     *RefundService
	repo    *fakeOrderRepo
	gw      *gatewaymock.Gateway
	revoker *fakeRevoker
}

func newRefundFixture(order *domain.Order) *refundFixture {
	repo := newFakeOrderRepo(order)
	gw := gatewaymock.NewGateway()
	gw.SeedCapture(order.PaymentRef, order.SessionID, order.TotalAmount, order.Currency)
	revoker := &fakeRevoker{}
	return &refundFixture{
		svc:     NewRefundService(repo, gw, revoker, nil, refundTestLogger()),
		repo:    repo,
		gw:      gw,
		revoker: revoker,
	}
}

func owner() Actor { return Actor{UserID: "user_1", Role: "customer"} }

// --- Full refund ---

func TestFullRefund_Success(t *testing.T) {
	f := newRefundFixture(paidOrder())

	result, err := f.svc.RequestFullRefund(context.Background(), "ord_1", owner())

	require.NoError(t, err)
	assert.Equal(t, "ord_1", result.OrderID)
	assert.NotEmpty(t, result.RefundID)
	assert.True(t, result.Amount.Equal(money("109.96")), "got %s", result.Amount)
	assert.Equal(t, domain.OrderStatusRefunded, result.Status)
	assert.True(t, result.TotalRefunded.Equal(money("109.96")))

	stored := f.repo.stored(t, "ord_1")
	assert.Equal(t, domain.OrderStatusRefunded, stored.Status)
	require.NotNil(t, stored.RefundedAt)
	assert.Equal(t, result.RefundID, stored.RefundID)
	for _, item := range stored.Items {
		assert.True(t, item.Refunded)
		assert.Equal(t, item.Quantity, item.RefundQuantity)
	}

	assert.ElementsMatch(t, []string{"user_1/res_go", "user_1/res_sql"}, f.revoker.revoked)

	refunds, err := f.gw.ListRefunds(context.Background(), "pi_1")
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	assert.True(t, refunds[0].Amount.Equal(money("109.96")))
}

func TestFullRefund_SecondCallAlreadyRefunded(t *testing.T) {
	f := newRefundFixture(paidOrder())

	_, err := f.svc.RequestFullRefund(context.Background(), "ord_1", owner())
	require.NoError(t, err)

	_, err = f.svc.RequestFullRefund(context.Background(), "ord_1", owner())
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "ALREADY_REFUNDED", appErr.Code)

	// No second debit at the gateway.
	refunds, err := f.gw.ListRefunds(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Len(t, refunds, 1)
}

func TestFullRefund_NotOwnerForbidden(t *testing.T) {
	f := newRefundFixture(paidOrder())

	_, err := f.svc.RequestFullRefund(context.Background(), "ord_1", Actor{UserID: "user_2", Role: "customer"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	assert.Equal(t, 0, f.repo.updateCalls)
}

func TestFullRefund_AdminMayRefundAnyOrder(t *testing.T) {
	f := newRefundFixture(paidOrder())

	result, err := f.svc.RequestFullRefund(context.Background(), "ord_1", Actor{UserID: "admin_1", Role: RoleAdmin})

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRefunded, result.Status)
}

func TestFullRefund_PendingOrderRejected(t *testing.T) {
	order := paidOrder()
	order.Status = domain.OrderStatusPending
	f := newRefundFixture(order)

	_, err := f.svc.RequestFullRefund(context.Background(), "ord_1", owner())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidState))
}

func TestFullRefund_NoPaymentRef(t *testing.T) {
	order := paidOrder()
	order.PaymentRef = ""
	f := newRefundFixture(order)

	_, err := f.svc.RequestFullRefund(context.Background(), "ord_1", owner())

	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "NO_PAYMENT", appErr.Code)
}

func TestFullRefund_MissingCaptureIsNoPayment(t *testing.T) {
	order := paidOrder()
	order.PaymentRef = "pi_unknown"
	repo := newFakeOrderRepo(order)
	svc := NewRefundService(repo, gatewaymock.NewGateway(), &fakeRevoker{}, nil, refundTestLogger())

	_, err := svc.RequestFullRefund(context.Background(), "ord_1", owner())

	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "NO_PAYMENT", appErr.Code)
}

func TestFullRefund_DiscountedOrderRefundsChargedAmount(t *testing.T) {
	order := paidOrder()
	order.CouponCode = "SUMMER10"
	order.TotalDiscount = money("11.00")
	order.TotalAmount = money("98.96")
	f := newRefundFixture(order)

	result, err := f.svc.RequestFullRefund(context.Background(), "ord_1", owner())

	require.NoError(t, err)
	assert.True(t, result.Amount.Equal(money("98.96")), "refund must match the discounted charge, got %s", result.Amount)
}

func TestFullRefund_GatewayFailurePreservesLocalState(t *testing.T) {
	f := newRefundFixture(paidOrder())
	gwErr := &gateway.Error{Code: gateway.CodeRefundFailed, Message: "processor unavailable"}
	f.svc.gateway = &failingGateway{Gateway: f.gw, createErr: gwErr}

	_, err := f.svc.RequestFullRefund(context.Background(), "ord_1", owner())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrGateway))

	stored := f.repo.stored(t, "ord_1")
	assert.Equal(t, domain.OrderStatusPaid, stored.Status)
	assert.Nil(t, stored.RefundedAt)
	assert.Empty(t, f.revoker.revoked)
}

// --- Partial refund ---

func TestPartialRefund_Success(t *testing.T) {
	f := newRefundFixture(paidOrder())

	result, err := f.svc.RequestPartialRefund(context.Background(), "ord_1", owner(), []PartialRefundItem{
		{ProductID: "course_go", Quantity: 2},
	})

	require.NoError(t, err)
	assert.True(t, result.Amount.Equal(money("39.98")), "got %s", result.Amount)
	assert.Equal(t, domain.OrderStatusPartiallyRefunded, result.Status)
	assert.True(t, result.TotalRefunded.Equal(money("39.98")))
	require.Len(t, result.Lines, 1)
	assert.Equal(t, 2, result.Lines[0].Quantity)

	stored := f.repo.stored(t, "ord_1")
	assert.Equal(t, domain.OrderStatusPartiallyRefunded, stored.Status)
	assert.Nil(t, stored.RefundedAt)
	item := stored.Item("course_go")
	require.NotNil(t, item)
	assert.Equal(t, 2, item.RefundQuantity)
	assert.False(t, item.Refunded)
	assert.Equal(t, 1, item.AvailableToRefund())
	require.Len(t, stored.PartialRefunds, 1)
	assert.True(t, stored.PartialRefunds[0].Amount.Equal(money("39.98")))

	// One unit still held, so access stays.
	assert.Empty(t, f.revoker.revoked)
}

func TestPartialRefund_CouponOrderBlocked(t *testing.T) {
	order := paidOrder()
	order.CouponCode = "SUMMER10"
	order.TotalDiscount = money("11.00")
	f := newRefundFixture(order)

	_, err := f.svc.RequestPartialRefund(context.Background(), "ord_1", owner(), []PartialRefundItem{
		{ProductID: "course_go", Quantity: 1},
	})

	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PARTIAL_REFUND_BLOCKED_BY_DISCOUNT", appErr.Code)
	assert.Equal(t, 0, f.repo.updateCalls)
}

func TestPartialRefund_DiscountAmountAloneBlocks(t *testing.T) {
	order := paidOrder()
	order.TotalDiscount = money("5.00")
	f := newRefundFixture(order)

	_, err := f.svc.RequestPartialRefund(context.Background(), "ord_1", owner(), []PartialRefundItem{
		{ProductID: "course_go", Quantity: 1},
	})

	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PARTIAL_REFUND_BLOCKED_BY_DISCOUNT", appErr.Code)
}

func TestPartialRefund_InsufficientQuantity(t *testing.T) {
	f := newRefundFixture(paidOrder())

	_, err := f.svc.RequestPartialRefund(context.Background(), "ord_1", owner(), []PartialRefundItem{
		{ProductID: "course_sql", Quantity: 2},
	})

	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "INSUFFICIENT_QUANTITY", appErr.Code)
	assert.Equal(t, 1, appErr.Details["available"])
	assert.Equal(t, 2, appErr.Details["requested"])

	// Nothing moved, locally or at the gateway.
	assert.Equal(t, 0, f.repo.updateCalls)
	refunds, gwErr := f.gw.ListRefunds(context.Background(), "pi_1")
	require.NoError(t, gwErr)
	assert.Empty(t, refunds)
}

func TestPartialRefund_OverRefundAcrossCalls(t *testing.T) {
	f := newRefundFixture(paidOrder())
	ctx := context.Background()

	_, err := f.svc.RequestPartialRefund(ctx, "ord_1", owner(), []PartialRefundItem{
		{ProductID: "course_go", Quantity: 2},
	})
	require.NoError(t, err)

	// Two of three units are gone; asking for two more must fail.
	_, err = f.svc.RequestPartialRefund(ctx, "ord_1", owner(), []PartialRefundItem{
		{ProductID: "course_go", Quantity: 2},
	})
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "INSUFFICIENT_QUANTITY", appErr.Code)
	assert.Equal(t, 1, appErr.Details["available"])
}

func TestPartialRefund_DrivesOrderToRefunded(t *testing.T) {
	f := newRefundFixture(paidOrder())
	ctx := context.Background()

	first, err := f.svc.RequestPartialRefund(ctx, "ord_1", owner(), []PartialRefundItem{
		{ProductID: "course_go", Quantity: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPartiallyRefunded, first.Status)
	assert.True(t, first.Amount.Equal(money("59.97")), "3 x 19.99 must be 59.97, got %s", first.Amount)
	assert.ElementsMatch(t, []string{"user_1/res_go"}, f.revoker.revoked)

	second, err := f.svc.RequestPartialRefund(ctx, "ord_1", owner(), []PartialRefundItem{
		{ProductID: "course_sql", Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRefunded, second.Status)
	assert.True(t, second.TotalRefunded.Equal(money("109.96")))

	stored := f.repo.stored(t, "ord_1")
	assert.Equal(t, domain.OrderStatusRefunded, stored.Status)
	require.NotNil(t, stored.RefundedAt)
	assert.Equal(t, second.RefundID, stored.RefundID)
	require.Len(t, stored.PartialRefunds, 2)
	assert.True(t, stored.RefundedTotal().Equal(money("109.96")))

	assert.ElementsMatch(t, []string{"user_1/res_go", "user_1/res_sql"}, f.revoker.revoked)

	// Terminal state refuses further refunds.
	_, err = f.svc.RequestPartialRefund(ctx, "ord_1", owner(), []PartialRefundItem{
		{ProductID: "course_go", Quantity: 1},
	})
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "ALREADY_REFUNDED", appErr.Code)
}

func TestPartialRefund_RevokesOnlyWhenLineFullyRefunded(t *testing.T) {
	f := newRefundFixture(paidOrder())
	ctx := context.Background()

	_, err := f.svc.RequestPartialRefund(ctx, "ord_1", owner(), []PartialRefundItem{
		{ProductID: "course_go", Quantity: 1},
	})
	require.NoError(t, err)
	assert.Empty(t, f.revoker.revoked)

	_, err = f.svc.RequestPartialRefund(ctx, "ord_1", owner(), []PartialRefundItem{
		{ProductID: "course_go", Quantity: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"user_1/res_go"}, f.revoker.revoked)
}

func TestPartialRefund_RoundsPerLineAtFinalStep(t *testing.T) {
	order := paidOrder()
	order.Items[0].Price = money("3.335")
	order.TotalAmount = money("60.00")
	f := newRefundFixture(order)

	result, err := f.svc.RequestPartialRefund(context.Background(), "ord_1", owner(), []PartialRefundItem{
		{ProductID: "course_go", Quantity: 3},
	})

	// 3.335 x 3 = 10.005, rounded half away from zero at the final step.
	require.NoError(t, err)
	assert.True(t, result.Amount.Equal(money("10.01")), "got %s", result.Amount)
}

func TestPartialRefund_ExceedsGatewayRemainder(t *testing.T) {
	f := newRefundFixture(paidOrder())
	ctx := context.Background()

	// A refund the order service does not know about has already consumed
	// most of the capture at the gateway.
	_, err := f.gw.CreateRefund(ctx, &gateway.RefundRequest{
		PaymentRef:     "pi_1",
		Amount:         money("100.00"),
		Currency:       "USD",
		IdempotencyKey: "external-1",
	})
	require.NoError(t, err)

	_, err = f.svc.RequestPartialRefund(ctx, "ord_1", owner(), []PartialRefundItem{
		{ProductID: "course_go", Quantity: 2},
	})

	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "EXCEEDS_CAPTURED_AMOUNT", appErr.Code)
	assert.Equal(t, "9.96", appErr.Details["available"])
	assert.Equal(t, "39.98", appErr.Details["requested"])
	assert.Equal(t, 0, f.repo.updateCalls)
}

func TestPartialRefund_ConflictRetrySucceedsWithoutDoubleDebit(t *testing.T) {
	f := newRefundFixture(paidOrder())
	f.repo.forceConflicts = 2

	result, err := f.svc.RequestPartialRefund(context.Background(), "ord_1", owner(), []PartialRefundItem{
		{ProductID: "course_go", Quantity: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, 3, f.repo.updateCalls)

	// The deterministic idempotency key makes the gateway replay the same
	// refund on each retry; the capture is debited once.
	refunds, gwErr := f.gw.ListRefunds(context.Background(), "pi_1")
	require.NoError(t, gwErr)
	require.Len(t, refunds, 1)
	assert.True(t, refunds[0].Amount.Equal(money("19.99")))
	assert.Equal(t, refunds[0].ID, result.RefundID)

	capture, gwErr := f.gw.RetrieveCapture(context.Background(), "pi_1")
	require.NoError(t, gwErr)
	assert.True(t, capture.AmountRefunded.Equal(money("19.99")))
}

func TestPartialRefund_ConflictExhaustsRetries(t *testing.T) {
	f := newRefundFixture(paidOrder())
	f.repo.forceConflicts = maxConflictRetries

	_, err := f.svc.RequestPartialRefund(context.Background(), "ord_1", owner(), []PartialRefundItem{
		{ProductID: "course_go", Quantity: 1},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	assert.Equal(t, maxConflictRetries, f.repo.updateCalls)
}

func TestPartialRefund_EmptyItems(t *testing.T) {
	f := newRefundFixture(paidOrder())

	_, err := f.svc.RequestPartialRefund(context.Background(), "ord_1", owner(), nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestPartialRefund_UnknownProduct(t *testing.T) {
	f := newRefundFixture(paidOrder())

	_, err := f.svc.RequestPartialRefund(context.Background(), "ord_1", owner(), []PartialRefundItem{
		{ProductID: "course_rust", Quantity: 1},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestPartialRefund_DuplicateProductRejected(t *testing.T) {
	f := newRefundFixture(paidOrder())

	_, err := f.svc.RequestPartialRefund(context.Background(), "ord_1", owner(), []PartialRefundItem{
		{ProductID: "course_go", Quantity: 1},
		{ProductID: "course_go", Quantity: 1},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestPartialRefund_NotOwnerForbidden(t *testing.T) {
	f := newRefundFixture(paidOrder())

	_, err := f.svc.RequestPartialRefund(context.Background(), "ord_1", Actor{UserID: "user_2", Role: "customer"}, []PartialRefundItem{
		{ProductID: "course_go", Quantity: 1},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

// --- Idempotency keys ---

func TestRefundKeys_Deterministic(t *testing.T) {
	items := []PartialRefundItem{
		{ProductID: "course_go", Quantity: 2},
		{ProductID: "course_sql", Quantity: 1},
	}
	reordered := []PartialRefundItem{
		{ProductID: "course_sql", Quantity: 1},
		{ProductID: "course_go", Quantity: 2},
	}

	assert.Equal(t, partialRefundKey("ord_1", items), partialRefundKey("ord_1", reordered))
	assert.NotEqual(t, partialRefundKey("ord_1", items), partialRefundKey("ord_2", items))
	assert.NotEqual(t,
		partialRefundKey("ord_1", items),
		partialRefundKey("ord_1", []PartialRefundItem{{ProductID: "course_go", Quantity: 1}}),
	)

	assert.Equal(t, fullRefundKey("ord_1", money("109.96")), fullRefundKey("ord_1", money("109.96")))
	assert.NotEqual(t, fullRefundKey("ord_1", money("109.96")), fullRefundKey("ord_1", money("99.96")))
}
