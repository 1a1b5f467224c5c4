package postgres

import (
	"context"
	"fmt"

	"github.com/oguzkaracar/coursecommerce/internal/domain"
	"github.com/oguzkaracar/coursecommerce/pkg/database"
)

// EntitlementRepository implements repository.EntitlementRepository using
// PostgreSQL.
type EntitlementRepository struct {
	pool database.DBTX
}

// NewEntitlementRepository creates a new PostgreSQL-backed entitlement repository.
func NewEntitlementRepository(pool database.DBTX) *EntitlementRepository {
	return &EntitlementRepository{pool: pool}
}

// Grant records an entitlement. The unique constraint on (user_id,
// resource_id) makes repeated grants a no-op.
func (r *EntitlementRepository) Grant(ctx context.Context, e *domain.Entitlement) error {
	query := `
		INSERT INTO entitlements (id, user_id, resource_id, order_id, granted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, resource_id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query, e.ID, e.UserID, e.ResourceID, e.OrderID, e.GrantedAt)
	if err != nil {
		return fmt.Errorf("grant entitlement: %w", err)
	}

	return nil
}

// Revoke removes an entitlement. Revoking a missing one is a no-op.
func (r *EntitlementRepository) Revoke(ctx context.Context, userID, resourceID string) error {
	query := `DELETE FROM entitlements WHERE user_id = $1 AND resource_id = $2`

	_, err := r.pool.Exec(ctx, query, userID, resourceID)
	if err != nil {
		return fmt.Errorf("revoke entitlement: %w", err)
	}

	return nil
}

// ListByUser returns all entitlements held by a user.
func (r *EntitlementRepository) ListByUser(ctx context.Context, userID string) ([]domain.Entitlement, error) {
	query := `
		SELECT id, user_id, resource_id, order_id, granted_at
		FROM entitlements
		WHERE user_id = $1
		ORDER BY granted_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list entitlements: %w", err)
	}
	defer rows.Close()

	entitlements := make([]domain.Entitlement, 0)
	for rows.Next() {
		var e domain.Entitlement
		if err := rows.Scan(&e.ID, &e.UserID, &e.ResourceID, &e.OrderID, &e.GrantedAt); err != nil {
			return nil, fmt.Errorf("scan entitlement: %w", err)
		}
		entitlements = append(entitlements, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entitlement rows: %w", err)
	}

	return entitlements, nil
}

// Has reports whether the user holds an entitlement for the resource.
func (r *EntitlementRepository) Has(ctx context.Context, userID, resourceID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM entitlements WHERE user_id = $1 AND resource_id = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, resourceID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check entitlement: %w", err)
	}
	return exists, nil
}
