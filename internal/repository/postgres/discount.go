package postgres

import (
	"context"
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

// DiscountRepository implements repository.DiscountRepository using PostgreSQL.
type DiscountRepository struct {
	pool database.DBTX
}

// NewDiscountRepository creates a new PostgreSQL-backed discount repository.
func NewDiscountRepository(pool database.DBTX) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

const discountColumns = `id, code, type, value, min_purchase_amount, max_discount_amount,
	max_uses, used_count, user_id, product_id, valid_from, valid_until, is_active,
	created_at, updated_at`

// Create inserts a new discount.
func (r *DiscountRepository) Create(ctx context.Context, d *domain.Discount) error {
	query := `
		INSERT INTO discounts (
			id, code, type, value, min_purchase_amount, max_discount_amount,
			max_uses, used_count, user_id, product_id, valid_from, valid_until,
			is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.pool.Exec(ctx, query,
		d.ID,
		d.Code,
		d.Type,
		d.Value,
		d.MinPurchaseAmount,
		d.MaxDiscountAmount,
		d.MaxUses,
		d.UsedCount,
		nullable(d.UserID),
		nullable(d.ProductID),
		d.ValidFrom,
		d.ValidUntil,
		d.IsActive,
		d.CreatedAt,
		d.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("discount", "code", d.Code)
		}
		return fmt.Errorf("insert discount: %w", err)
	}

	return nil
}

// Update modifies an existing discount.
func (r *DiscountRepository) Update(ctx context.Context, d *domain.Discount) error {
	d.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE discounts
		SET code = $1, type = $2, value = $3, min_purchase_amount = $4,
			max_discount_amount = $5, max_uses = $6, user_id = $7, product_id = $8,
			valid_from = $9, valid_until = $10, is_active = $11, updated_at = $12
		WHERE id = $13`

	ct, err := r.pool.Exec(ctx, query,
		d.Code,
		d.Type,
		d.Value,
		d.MinPurchaseAmount,
		d.MaxDiscountAmount,
		d.MaxUses,
		nullable(d.UserID),
		nullable(d.ProductID),
		d.ValidFrom,
		d.ValidUntil,
		d.IsActive,
		d.UpdatedAt,
		d.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("discount", "code", d.Code)
		}
		return fmt.Errorf("update discount: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("discount", d.ID)
	}

	return nil
}

// Delete removes a discount by ID. Usage records are kept.
func (r *DiscountRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM discounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete discount: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("discount", id)
	}

	return nil
}

// GetByID retrieves a discount by its ID.
func (r *DiscountRepository) GetByID(ctx context.Context, id string) (*domain.Discount, error) {
	query := fmt.Sprintf("SELECT %s FROM discounts WHERE id = $1", discountColumns)
	return r.scanDiscount(ctx, query, id)
}

// GetByCode retrieves a discount by normalized code.
func (r *DiscountRepository) GetByCode(ctx context.Context, code string) (*domain.Discount, error) {
	query := fmt.Sprintf("SELECT %s FROM discounts WHERE code = $1", discountColumns)
	return r.scanDiscount(ctx, query, domain.NormalizeCode(code))
}

// List returns discounts matching the given filter with the total count.
func (r *DiscountRepository) List(ctx context.Context, filter repository.DiscountFilter) ([]domain.Discount, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argIndex))
		args = append(args, *filter.IsActive)
		argIndex++
	}

	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIndex))
		args = append(args, *filter.Type)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM discounts
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		discountColumns, whereClause, argIndex, argIndex+1,
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
		return nil, 0, fmt.Errorf("list discounts: %w", err)
	}
	defer rows.Close()

	var totalCount int
	discounts := make([]domain.Discount, 0)

	for rows.Next() {
		var (
			d                 domain.Discount
			userID, productID *string
		)
		if err := rows.Scan(
			&d.ID,
			&d.Code,
			&d.Type,
			&d.Value,
			&d.MinPurchaseAmount,
			&d.MaxDiscountAmount,
			&d.MaxUses,
			&d.UsedCount,
			&userID,
			&productID,
			&d.ValidFrom,
			&d.ValidUntil,
			&d.IsActive,
			&d.CreatedAt,
			&d.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan discount row: %w", err)
		}
		d.UserID = deref(userID)
		d.ProductID = deref(productID)
		discounts = append(discounts, d)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate discount rows: %w", err)
	}

	return discounts, totalCount, nil
}

// RecordUsage inserts a usage record and increments the discount's used
// count in one transaction, keeping used_count equal to the number of
// usage records.
func (r *DiscountRepository) RecordUsage(ctx context.Context, usage *domain.DiscountUsage) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insertQuery := `
		INSERT INTO discount_usages (id, code, user_id, order_id, discount_amount, used_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = tx.Exec(ctx, insertQuery,
		usage.ID,
		usage.Code,
		usage.UserID,
		usage.OrderID,
		usage.DiscountAmount,
		usage.UsedAt,
	)
	if err != nil {
		return fmt.Errorf("insert discount usage: %w", err)
	}

	incrementQuery := `
		UPDATE discounts
		SET used_count = used_count + 1, updated_at = NOW()
		WHERE code = $1`

	ct, err := tx.Exec(ctx, incrementQuery, usage.Code)
	if err != nil {
		return fmt.Errorf("increment discount usage: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("discount", usage.Code)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// CountUsagesByUser returns how many times a user has used a code.
func (r *DiscountRepository) CountUsagesByUser(ctx context.Context, code, userID string) (int, error) {
	query := `SELECT count(*) FROM discount_usages WHERE code = $1 AND user_id = $2`

	var count int
	if err := r.pool.QueryRow(ctx, query, domain.NormalizeCode(code), userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count discount usages: %w", err)
	}
	return count, nil
}

func (r *DiscountRepository) scanDiscount(ctx context.Context, query string, args ...any) (*domain.Discount, error) {
	var (
		d                 domain.Discount
		userID, productID *string
	)

	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&d.ID,
		&d.Code,
		&d.Type,
		&d.Value,
		&d.MinPurchaseAmount,
		&d.MaxDiscountAmount,
		&d.MaxUses,
		&d.UsedCount,
		&userID,
		&productID,
		&d.ValidFrom,
		&d.ValidUntil,
		&d.IsActive,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan discount: %w", err)
	}

	d.UserID = deref(userID)
	d.ProductID = deref(productID)
	return &d, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// isUniqueViolation checks for a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
