package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	domain "github.com/wirangar/bazarino-bot/internal/entity"
	"github.com/wirangar/bazarino-bot/internal/logging"
)

const (
	defaultCASRetries = 3
	defaultCASBackoff = 150 * time.Millisecond
)

// CommitOrderInput carries everything the committer needs; the session
// engine assembles it from the finished conversation.
type CommitOrderInput struct {
	SessionID   string
	Handle      string
	Name        string
	Phone       string
	Address     string
	PostalCode  string
	Destination domain.Destination
	Notes       string
	Cart        domain.Cart
	Discount    domain.DiscountCode // zero value when no code was applied
}

// CommitResult reports what actually happened, line by line. Conflicts holds
// the lines that could not be committed so the caller can show the user the
// exact set of unavailable items.
type CommitResult struct {
	Order     *domain.Order
	Conflicts []domain.StockConflictError
}

// Committed reports whether every cart line went through.
func (r CommitResult) Committed() bool { return len(r.Conflicts) == 0 }

// CommitOrder converts a quoted cart into stock decrements against the live
// sheet plus one appended order record. Lines are committed sequentially and
// never rolled back as a set: the backing store has no multi-row transaction,
// so a failure at line k leaves lines 1..k-1 decremented and the order is
// recorded as PARTIAL_FAILURE. This is the documented trade-off of running
// against a spreadsheet, not an accident.
type CommitOrder struct {
	store   CatalogStore
	log     OrderLog
	cache   StockCache
	notify  Notifier
	retries int
	backoff time.Duration
	logger  *slog.Logger
	sleep   func(context.Context, time.Duration) error
	now     func() time.Time
	newID   func() string
}

type CommitOption func(*CommitOrder)

func WithCASRetries(n int) CommitOption             { return func(c *CommitOrder) { c.retries = n } }
func WithCASBackoff(d time.Duration) CommitOption   { return func(c *CommitOrder) { c.backoff = d } }
func WithCommitLogger(l *slog.Logger) CommitOption  { return func(c *CommitOrder) { c.logger = l } }
func withCommitClock(f func() time.Time) CommitOption { return func(c *CommitOrder) { c.now = f } }
func withOrderID(f func() string) CommitOption      { return func(c *CommitOrder) { c.newID = f } }

func NewCommitOrder(store CatalogStore, log OrderLog, cache StockCache, notify Notifier, opts ...CommitOption) *CommitOrder {
	uc := &CommitOrder{
		store:   store,
		log:     log,
		cache:   cache,
		notify:  notify,
		retries: defaultCASRetries,
		backoff: defaultCASBackoff,
		logger:  logging.New("commit"),
		sleep:   sleepCtx,
		now:     time.Now,
		newID:   shortOrderID,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Execute runs the commit protocol. A *domain.StockConflictError per line is
// a soft outcome collected into the result; any *domain.ExternalServiceError
// aborts immediately and is returned (the session keeps its cart either way).
func (uc *CommitOrder) Execute(ctx context.Context, in CommitOrderInput) (CommitResult, error) {
	if in.Cart.Empty() {
		return CommitResult{}, domain.ErrEmptyCart
	}

	order := &domain.Order{
		ID:           uc.newID(),
		Timestamp:    uc.now().UTC(),
		SessionID:    in.SessionID,
		Handle:       in.Handle,
		Name:         in.Name,
		Phone:        in.Phone,
		Address:      in.Address,
		PostalCode:   in.PostalCode,
		Destination:  in.Destination,
		Notes:        in.Notes,
		DiscountCode: in.Discount.Code,
	}

	var conflicts []domain.StockConflictError
	for _, line := range in.Cart.Lines {
		if err := uc.commitLine(ctx, line); err != nil {
			var conflict *domain.StockConflictError
			if errors.As(err, &conflict) {
				commitConflicts.Inc()
				conflicts = append(conflicts, *conflict)
				continue
			}
			// Hard failure: stop here, report nothing as committed beyond
			// what already went through. Earlier decrements stand.
			return CommitResult{}, err
		}
		order.Lines = append(order.Lines, domain.OrderLine{
			ProductID: line.ProductID,
			Name:      line.Name,
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
		})
	}

	switch {
	case len(conflicts) == 0:
		order.Status = domain.StatusConfirmed
	case len(order.Lines) > 0:
		order.Status = domain.StatusPartialFailure
	default:
		order.Status = domain.StatusFailed
	}

	subtotal := order.Subtotal()
	order.DiscountAmount = decimal.Zero
	if in.Discount.Code != "" {
		order.DiscountAmount = in.Discount.Apply(subtotal)
	}
	order.Total = subtotal.Sub(order.DiscountAmount)

	if err := uc.log.Append(ctx, order); err != nil {
		return CommitResult{}, &domain.ExternalServiceError{Op: "order append", Err: err}
	}
	ordersCommitted.WithLabelValues(string(order.Status)).Inc()

	if uc.notify != nil {
		if err := uc.notify.NotifyNewOrder(ctx, order); err != nil {
			uc.logger.Warn("new order notification failed", "order", order.ID, "err", err)
		}
	}

	uc.logger.Info("order committed",
		"order", order.ID,
		"status", string(order.Status),
		"lines", len(order.Lines),
		"conflicts", len(conflicts),
		"total", order.Total.StringFixed(2),
	)
	return CommitResult{Order: order, Conflicts: conflicts}, nil
}

// commitLine is the CAS loop of one cart line: read live stock, check
// availability, conditional write, retry on lost races. A network error at
// any point surfaces immediately; only a rejected write is retried.
func (uc *CommitOrder) commitLine(ctx context.Context, line domain.CartLine) error {
	available := 0
	for attempt := 0; attempt <= uc.retries; attempt++ {
		if attempt > 0 {
			if err := uc.sleep(ctx, uc.backoff*time.Duration(attempt)); err != nil {
				return &domain.ExternalServiceError{Op: "commit backoff", Err: err}
			}
		}

		current, err := uc.store.ReadStock(ctx, line.ProductID)
		if err != nil {
			return &domain.ExternalServiceError{Op: "stock read", Err: err}
		}
		available = current
		if line.Qty > current {
			return &domain.StockConflictError{ProductID: line.ProductID, Available: current}
		}

		next := current - line.Qty
		ok, err := uc.store.WriteStockIf(ctx, line.ProductID, current, next)
		if err != nil {
			return &domain.ExternalServiceError{Op: "stock write", Err: err}
		}
		if !ok {
			// Lost the race; re-read and try again.
			uc.logger.Debug("stock CAS rejected", "product", line.ProductID, "attempt", attempt+1)
			continue
		}

		if uc.cache != nil {
			uc.cache.ApplyStock(line.ProductID, next)
			uc.cache.EscalateIfLow(ctx, line.ProductID)
		}
		return nil
	}
	return &domain.StockConflictError{ProductID: line.ProductID, Available: available}
}

// shortOrderID is the 8-char order reference used in the order sheet and in
// admin messages.
func shortOrderID() string {
	return uuid.NewString()[:8]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
