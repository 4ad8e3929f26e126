package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id string, price string) Product {
	return Product{ID: id, NameFA: "کالا", NameIT: id, Price: decimal.RequireFromString(price), Stock: 10}
}

func TestCartAddMerges(t *testing.T) {
	var a, b Cart
	p := product("rice", "6.00")

	a.Add(p, 1)
	a.Add(p, 2)
	b.Add(p, 3)

	require.Len(t, a.Lines, 1)
	assert.Equal(t, b.Lines, a.Lines)
	assert.Equal(t, 3, a.Qty("rice"))
	assert.Equal(t, "18.00", a.Total().StringFixed(2))
}

func TestCartAddClampsQty(t *testing.T) {
	var c Cart
	c.Add(product("rice", "6.00"), 0)
	assert.Equal(t, 1, c.Qty("rice"))
}

func TestCartAdjustClampsAtOne(t *testing.T) {
	var c Cart
	c.Add(product("rice", "6.00"), 2)

	c.Adjust("rice", -5)
	assert.Equal(t, 1, c.Qty("rice"))

	c.Adjust("rice", 3)
	assert.Equal(t, 4, c.Qty("rice"))

	c.Adjust("missing", 1)
	assert.Equal(t, 1, len(c.Lines))
}

func TestCartRemoveKeepsOrder(t *testing.T) {
	var c Cart
	c.Add(product("a", "1.00"), 1)
	c.Add(product("b", "2.00"), 1)
	c.Add(product("c", "3.00"), 1)

	c.Remove("b")

	require.Len(t, c.Lines, 2)
	assert.Equal(t, "a", c.Lines[0].ProductID)
	assert.Equal(t, "c", c.Lines[1].ProductID)
	assert.Equal(t, 2, c.Count())
	assert.False(t, c.Empty())

	c.Clear()
	assert.True(t, c.Empty())
}

func TestCartTotalUsesCapturedPrice(t *testing.T) {
	var c Cart
	c.Add(product("rice", "6.00"), 1)
	c.Add(product("lentil", "4.00"), 2)
	assert.Equal(t, "14.00", c.Total().StringFixed(2))
}

func TestDiscountUsable(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	code := DiscountCode{Code: "WELCOME10", PercentOff: 10, ValidUntil: day, Active: true}

	// Inclusive of the whole expiry day.
	assert.True(t, code.Usable(day.Add(23*time.Hour)))
	assert.False(t, code.Usable(day.Add(25*time.Hour)))

	inactive := code
	inactive.Active = false
	assert.False(t, inactive.Usable(day))

	bad := code
	bad.PercentOff = 0
	assert.False(t, bad.Usable(day))
}

func TestDiscountApplyRoundsToCents(t *testing.T) {
	code := DiscountCode{Code: "WELCOME10", PercentOff: 10, Active: true}
	assert.Equal(t, "1.40", code.Apply(decimal.RequireFromString("14.00")).StringFixed(2))
	assert.Equal(t, "0.67", code.Apply(decimal.RequireFromString("6.65")).StringFixed(2))
}
