package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusConfirmed      Status = "CONFIRMED"
	StatusPartialFailure Status = "PARTIAL_FAILURE"
	StatusFailed         Status = "FAILED"
)

// Destination selects local pickup/delivery in Perugia or shipping anywhere
// in Italy. Postal code is collected only for remote orders.
type Destination string

const (
	DestLocal  Destination = "LOCAL"
	DestRemote Destination = "REMOTE"
)

// OrderLine is one committed (or attempted) cart line with its captured
// unit price. Prices are snapshotted here and never re-read.
type OrderLine struct {
	ProductID string
	Name      string
	Qty       int
	UnitPrice decimal.Decimal
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Qty)))
}

// Order is immutable once appended to the order sheet. Lines holds only the
// lines whose stock decrement actually committed; a PARTIAL_FAILURE order
// carries fewer lines than the cart it came from.
type Order struct {
	ID          string
	Timestamp   time.Time
	SessionID   string
	Handle      string
	Name        string
	Phone       string
	Address     string
	PostalCode  string
	Destination Destination
	Notes       string
	Lines       []OrderLine

	DiscountCode   string
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
	Status         Status
}

// Subtotal is the pre-discount sum over committed lines.
func (o *Order) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
