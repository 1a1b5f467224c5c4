package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Discount type constants.
const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
	DiscountTypeProduct    = "product"
)

// Discount is a coupon definition. Codes are stored upper-cased; lookup
// normalizes the same way.
type Discount struct {
	ID                string          `json:"id"`
	Code              string          `json:"code"`
	Type              string          `json:"type"`
	Value             decimal.Decimal `json:"value"`
	MinPurchaseAmount decimal.Decimal `json:"min_purchase_amount"`
	MaxDiscountAmount decimal.Decimal `json:"max_discount_amount"`
	MaxUses           int             `json:"max_uses"`
	UsedCount         int             `json:"used_count"`
	UserID            string          `json:"user_id,omitempty"`
	ProductID         string          `json:"product_id,omitempty"`
	ValidFrom         *time.Time      `json:"valid_from,omitempty"`
	ValidUntil        *time.Time      `json:"valid_until,omitempty"`
	IsActive          bool            `json:"is_active"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// DiscountUsage is one append-only usage record. The aggregate UsedCount on
// the discount always equals the number of usage records.
type DiscountUsage struct {
	ID             string          `json:"id"`
	Code           string          `json:"code"`
	UserID         string          `json:"user_id"`
	OrderID        string          `json:"order_id"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	UsedAt         time.Time       `json:"used_at"`
}

// NormalizeCode upper-cases and trims a coupon code for storage and lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidDiscountTypes returns the set of valid discount types.
func ValidDiscountTypes() []string {
	return []string{
		DiscountTypePercentage,
		DiscountTypeFixed,
		DiscountTypeProduct,
	}
}

// IsValidDiscountType checks whether the given type string is valid.
func IsValidDiscountType(t string) bool {
	for _, v := range ValidDiscountTypes() {
		if v == t {
			return true
		}
	}
	return false
}

// IsExhausted reports whether the usage cap has been reached. MaxUses 0
// means unlimited.
func (d *Discount) IsExhausted() bool {
	return d.MaxUses > 0 && d.UsedCount >= d.MaxUses
}

// IsWithinValidity checks the validity window at the given instant. Nil
// bounds are open.
func (d *Discount) IsWithinValidity(now time.Time) bool {
	if d.ValidFrom != nil && now.Before(*d.ValidFrom) {
		return false
	}
	if d.ValidUntil != nil && now.After(*d.ValidUntil) {
		return false
	}
	return true
}
