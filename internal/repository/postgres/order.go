package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/oguzkaracar/coursecommerce/internal/domain"
	"github.com/oguzkaracar/coursecommerce/internal/repository"
	"github.com/oguzkaracar/coursecommerce/pkg/database"
	apperrors "github.com/oguzkaracar/coursecommerce/pkg/errors"
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `id, session_id, payment_ref, user_id, status, total_amount,
	total_discount, coupon_code, currency, refund_id, refund_amount, refunded_at,
	version, created_at, updated_at`

// Create inserts a new order and its items atomically within a transaction.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	orderQuery := `
		INSERT INTO orders (id, session_id, payment_ref, user_id, status, total_amount, total_discount, coupon_code, currency, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = tx.Exec(ctx, orderQuery,
		o.ID,
		o.SessionID,
		o.PaymentRef,
		o.UserID,
		o.Status,
		o.TotalAmount,
		o.TotalDiscount,
		o.CouponCode,
		o.Currency,
		o.Version,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, resource_id, title, price, quantity, refund_quantity, refunded, refund_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	for _, item := range o.Items {
		_, err = tx.Exec(ctx, itemQuery,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.ResourceID,
			item.Title,
			item.Price,
			item.Quantity,
			item.RefundQuantity,
			item.Refunded,
			item.RefundAmount,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves an order by its ID, loading items and partial refunds.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetBySessionID retrieves an order by its checkout session reference.
func (r *OrderRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	return r.getOne(ctx, "session_id = $1", sessionID)
}

func (r *OrderRepository) getOne(ctx context.Context, where string, arg any) (*domain.Order, error) {
	query := fmt.Sprintf("SELECT %s FROM orders WHERE %s", orderColumns, where)

	var o domain.Order
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&o.ID,
		&o.SessionID,
		&o.PaymentRef,
		&o.UserID,
		&o.Status,
		&o.TotalAmount,
		&o.TotalDiscount,
		&o.CouponCode,
		&o.Currency,
		&o.RefundID,
		&o.RefundAmount,
		&o.RefundedAt,
		&o.Version,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", fmt.Sprint(arg))
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if o.Items, err = r.loadItems(ctx, o.ID); err != nil {
		return nil, err
	}
	if o.PartialRefunds, err = r.loadPartialRefunds(ctx, o.ID); err != nil {
		return nil, err
	}

	return &o, nil
}

// List returns orders matching the given filter with the total count.
// Items and partial refunds are not loaded for list views.
func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIndex))
		args = append(args, *filter.UserID)
		argIndex++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// count(*) OVER() gives the total in the same query.
	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM orders
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		orderColumns, whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var totalCount int
	orders := make([]domain.Order, 0)

	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID,
			&o.SessionID,
			&o.PaymentRef,
			&o.UserID,
			&o.Status,
			&o.TotalAmount,
			&o.TotalDiscount,
			&o.CouponCode,
			&o.Currency,
			&o.RefundID,
			&o.RefundAmount,
			&o.RefundedAt,
			&o.Version,
			&o.CreatedAt,
			&o.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, totalCount, nil
}

// UpdateStatus changes the status of an order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status string) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3`

	ct, err := r.pool.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}

	return nil
}

// UpdateRefundState persists the order's refund fields, per-item refund
// tracking, and new partial refund records in one transaction. The order
// update is conditional on the version read by the caller; if another writer
// got there first, nothing is written and ErrConflict surfaces.
func (r *OrderRepository) UpdateRefundState(ctx context.Context, o *domain.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()

	orderQuery := `
		UPDATE orders
		SET status = $1, refund_id = $2, refund_amount = $3, refunded_at = $4,
			version = version + 1, updated_at = $5
		WHERE id = $6 AND version = $7`

	ct, err := tx.Exec(ctx, orderQuery,
		o.Status,
		o.RefundID,
		o.RefundAmount,
		o.RefundedAt,
		now,
		o.ID,
		o.Version,
	)
	if err != nil {
		return fmt.Errorf("update order refund state: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.Conflict("order was modified concurrently")
	}

	itemQuery := `
		UPDATE order_items
		SET refund_quantity = $1, refunded = $2, refund_amount = $3, refunded_at = $4
		WHERE order_id = $5 AND product_id = $6`

	for _, item := range o.Items {
		_, err = tx.Exec(ctx, itemQuery,
			item.RefundQuantity,
			item.Refunded,
			item.RefundAmount,
			item.RefundedAt,
			o.ID,
			item.ProductID,
		)
		if err != nil {
			return fmt.Errorf("update order item refund state: %w", err)
		}
	}

	// Partial refund records are append-only; the conflict guard on
	// (order_id, refund_id) makes re-persisting after a retry harmless.
	refundQuery := `
		INSERT INTO partial_refunds (order_id, refund_id, amount, reason, items, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_id, refund_id) DO NOTHING`

	for _, pr := range o.PartialRefunds {
		itemsJSON, err := json.Marshal(pr.Items)
		if err != nil {
			return fmt.Errorf("marshal partial refund items: %w", err)
		}

		_, err = tx.Exec(ctx, refundQuery,
			o.ID,
			pr.RefundID,
			pr.Amount,
			pr.Reason,
			itemsJSON,
			pr.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert partial refund: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	o.Version++
	o.UpdatedAt = now
	return nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderID string) ([]domain.LineItem, error) {
	query := `
		SELECT id, order_id, product_id, resource_id, title, price, quantity,
			refund_quantity, refunded, refund_amount, refunded_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.LineItem, 0)
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ResourceID,
			&item.Title,
			&item.Price,
			&item.Quantity,
			&item.RefundQuantity,
			&item.Refunded,
			&item.RefundAmount,
			&item.RefundedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order item rows: %w", err)
	}

	return items, nil
}

func (r *OrderRepository) loadPartialRefunds(ctx context.Context, orderID string) ([]domain.PartialRefund, error) {
	query := `
		SELECT refund_id, amount, reason, items, created_at
		FROM partial_refunds
		WHERE order_id = $1
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query partial refunds: %w", err)
	}
	defer rows.Close()

	var refunds []domain.PartialRefund
	for rows.Next() {
		var (
			pr        domain.PartialRefund
			itemsJSON []byte
		)
		if err := rows.Scan(&pr.RefundID, &pr.Amount, &pr.Reason, &itemsJSON, &pr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan partial refund: %w", err)
		}
		if len(itemsJSON) > 0 {
			if err := json.Unmarshal(itemsJSON, &pr.Items); err != nil {
				return nil, fmt.Errorf("unmarshal partial refund items: %w", err)
			}
		}
		refunds = append(refunds, pr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate partial refund rows: %w", err)
	}

	return refunds, nil
}
