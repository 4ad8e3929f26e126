package domain

import "github.com/shopspring/decimal"

// Product is a read-only copy of one catalog row. The spreadsheet owns the
// authoritative data; the in-process cache only holds snapshots of it.
type Product struct {
	ID          string
	Category    string
	NameFA      string
	NameIT      string
	Brand       string
	Description string
	Weight      string
	Price       decimal.Decimal
	ImageURL    string
	Stock       int
	Bestseller  bool
}

// DisplayName is the bilingual label used everywhere the bot shows a product.
func (p Product) DisplayName() string {
	if p.NameIT == "" {
		return p.NameFA
	}
	return p.NameFA + " / " + p.NameIT
}
