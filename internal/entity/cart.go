package domain

import "github.com/shopspring/decimal"

// CartLine is one product in a cart. UnitPrice is captured from the catalog
// snapshot at add time; the quoted total is built from it and only stock (not
// price) is re-validated at commit.
type CartLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Weight    string          `json:"weight"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Qty       int             `json:"qty"`
}

// Subtotal is qty * captured unit price.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Qty)))
}

// Cart is a pure in-memory value owned by exactly one chat session. It does
// no I/O; stock checks against the cache happen in the session engine before
// Add is called. At most one line exists per product id.
type Cart struct {
	Lines []CartLine `json:"lines"`
}

// Line returns the line for a product id, if present.
func (c *Cart) Line(productID string) (*CartLine, bool) {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return &c.Lines[i], true
		}
	}
	return nil, false
}

// Qty returns the quantity currently carted for a product, 0 if absent.
func (c *Cart) Qty(productID string) int {
	if l, ok := c.Line(productID); ok {
		return l.Qty
	}
	return 0
}

// Add merges qty into an existing line or appends a new one.
// Add(p, q1) followed by Add(p, q2) is identical to a single Add(p, q1+q2).
func (c *Cart) Add(p Product, qty int) {
	if qty < 1 {
		qty = 1
	}
	if l, ok := c.Line(p.ID); ok {
		l.Qty += qty
		return
	}
	c.Lines = append(c.Lines, CartLine{
		ProductID: p.ID,
		Name:      p.DisplayName(),
		Weight:    p.Weight,
		UnitPrice: p.Price,
		Qty:       qty,
	})
}

// Adjust changes a line's quantity by delta, clamping at 1. Dropping a line
// goes through Remove, mirroring the ➖ / ❌ split in the cart keyboard.
func (c *Cart) Adjust(productID string, delta int) {
	l, ok := c.Line(productID)
	if !ok {
		return
	}
	l.Qty += delta
	if l.Qty < 1 {
		l.Qty = 1
	}
}

// Remove deletes the line for productID, preserving the order of the rest.
func (c *Cart) Remove(productID string) {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return
		}
	}
}

// Total is the quoted total: sum of line subtotals at cached prices.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Count is the total number of units across all lines (cart badge).
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Qty
	}
	return n
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool { return len(c.Lines) == 0 }

// Clear drops all lines.
func (c *Cart) Clear() { c.Lines = nil }
