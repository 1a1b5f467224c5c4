package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "SUMMER10", NormalizeCode("  summer10 "))
	assert.Equal(t, "SUMMER10", NormalizeCode("Summer10"))
}

func TestIsValidDiscountType(t *testing.T) {
	for _, v := range ValidDiscountTypes() {
		assert.True(t, IsValidDiscountType(v))
	}
	assert.False(t, IsValidDiscountType("bogo"))
	assert.False(t, IsValidDiscountType(""))
}

func TestIsExhausted(t *testing.T) {
	assert.False(t, (&Discount{MaxUses: 0, UsedCount: 1000}).IsExhausted(), "zero cap means unlimited")
	assert.False(t, (&Discount{MaxUses: 5, UsedCount: 4}).IsExhausted())
	assert.True(t, (&Discount{MaxUses: 5, UsedCount: 5}).IsExhausted())
}

func TestIsWithinValidity(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, (&Discount{}).IsWithinValidity(now), "open window")
	assert.True(t, (&Discount{ValidFrom: &past, ValidUntil: &future}).IsWithinValidity(now))
	assert.False(t, (&Discount{ValidFrom: &future}).IsWithinValidity(now), "not started")
	assert.False(t, (&Discount{ValidUntil: &past}).IsWithinValidity(now), "expired")
}
