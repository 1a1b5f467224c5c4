package domain

import "time"

// Entitlement grants a user access to a resource (a course) because of a
// purchase. Grant and revoke are idempotent at the repository level.
type Entitlement struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ResourceID string    `json:"resource_id"`
	OrderID    string    `json:"order_id"`
	GrantedAt  time.Time `json:"granted_at"`
}
