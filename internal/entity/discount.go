package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountCode is one row of the discount worksheet.
type DiscountCode struct {
	Code       string
	PercentOff int
	ValidUntil time.Time
	Active     bool
}

// Usable reports whether the code can still be applied at the given instant.
// ValidUntil is inclusive of its whole day (sheet rows carry dates, not times).
func (d DiscountCode) Usable(now time.Time) bool {
	if !d.Active || d.PercentOff <= 0 || d.PercentOff > 100 {
		return false
	}
	return !now.After(d.ValidUntil.Add(24*time.Hour - time.Nanosecond))
}

// Apply returns the discount amount for a quoted total, rounded to cents.
func (d DiscountCode) Apply(total decimal.Decimal) decimal.Decimal {
	return total.Mul(decimal.New(int64(d.PercentOff), -2)).Round(2)
}
