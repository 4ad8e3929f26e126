package usecase

import (
	"context"

	domain "github.com/wirangar/bazarino-bot/internal/entity"
)

// CatalogStore is the per-cell contract the backing spreadsheet offers for
// stock: read one cell, conditionally overwrite it. No transactions, no
// locks; the commit loop builds CAS semantics on top of it.
type CatalogStore interface {
	// ReadStock returns the live stock value straight from the sheet.
	ReadStock(ctx context.Context, productID string) (int, error)
	// WriteStockIf writes next only if the cell still holds expected.
	// Returns false (no error) when a concurrent writer got there first.
	WriteStockIf(ctx context.Context, productID string, expected, next int) (bool, error)
}

// OrderLog appends one immutable order record. Append-only: nothing in this
// engine updates or deletes order rows.
type OrderLog interface {
	Append(ctx context.Context, o *domain.Order) error
}

// StockCache lets the committer patch the in-process snapshot after a
// successful decrement. Satisfied by catalog.Cache.
type StockCache interface {
	ApplyStock(productID string, stock int)
	EscalateIfLow(ctx context.Context, productID string)
}

// Notifier fans order/stock events out to the bot frontend. Every method is
// fire-and-forget: failures are logged and never block the state machine.
type Notifier interface {
	NotifyLowStock(ctx context.Context, productID string, stock int) error
	NotifyNewOrder(ctx context.Context, o *domain.Order) error
	NotifyAdmin(ctx context.Context, text string) error
}
