package id

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	a, b := New(), New()
	assert.NotEqual(t, a, b)
	assert.True(t, Valid(a))
	assert.False(t, Valid("not-an-id"))
}

func TestDedupeKey_Deterministic(t *testing.T) {
	d := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	amt := decimal.RequireFromString("-12.50")

	k1 := DedupeKey("acct-1", d, amt, "Coffee Shop")
	k2 := DedupeKey("acct-1", d, decimal.RequireFromString("-12.5"), "Coffee Shop")
	assert.Equal(t, k1, k2, "trailing zeros do not change the key")
	assert.Len(t, k1, 64)
}

func TestDedupeKey_Distinguishes(t *testing.T) {
	d := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	amt := decimal.RequireFromString("-12.50")
	base := DedupeKey("acct-1", d, amt, "Coffee Shop")

	tests := []struct {
		name string
		key  string
	}{
		{"account", DedupeKey("acct-2", d, amt, "Coffee Shop")},
		{"date", DedupeKey("acct-1", d.AddDate(0, 0, 1), amt, "Coffee Shop")},
		{"amount", DedupeKey("acct-1", d, amt.Neg(), "Coffee Shop")},
		{"merchant", DedupeKey("acct-1", d, amt, "Coffee shop")},
	}
	for _, tt := range tests {
		assert.NotEqual(t, base, tt.key, "changing %s must change the key", tt.name)
	}
}
