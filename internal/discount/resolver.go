package discount

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	domain "github.com/wirangar/bazarino-bot/internal/entity"
	"github.com/wirangar/bazarino-bot/internal/logging"
)

// Store reads the discount worksheet.
type Store interface {
	LoadCodes(ctx context.Context) ([]domain.DiscountCode, error)
}

type Option func(*Resolver)

func WithTTL(d time.Duration) Option        { return func(r *Resolver) { r.ttl = d } }
func WithLogger(l *slog.Logger) Option      { return func(r *Resolver) { r.log = l } }
func withClock(now func() time.Time) Option { return func(r *Resolver) { r.now = now } }

// Resolver validates discount codes against a cached copy of the discount
// table. Same soft-fail policy as the catalog cache: a failed reload keeps
// the previous rows so a known-valid code still resolves.
type Resolver struct {
	store Store
	ttl   time.Duration
	log   *slog.Logger
	now   func() time.Time

	mu        sync.RWMutex
	codes     map[string]domain.DiscountCode
	fetchedAt time.Time
}

func New(store Store, opts ...Option) *Resolver {
	r := &Resolver{
		store: store,
		ttl:   5 * time.Minute,
		log:   logging.New("discount"),
		now:   time.Now,
		codes: map[string]domain.DiscountCode{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the discount row for a code, or domain.ErrDiscountInvalid
// when the code is unknown, inactive or past its validity date. Resolving
// the same code twice gives the same answer for the same table snapshot.
func (r *Resolver) Resolve(ctx context.Context, code string) (domain.DiscountCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return domain.DiscountCode{}, domain.ErrDiscountInvalid
	}
	if err := r.refreshIfStale(ctx); err != nil {
		r.log.Warn("discount table refresh failed, using cached rows", "err", err)
	}

	r.mu.RLock()
	d, ok := r.codes[code]
	r.mu.RUnlock()
	if !ok || !d.Usable(r.now()) {
		return domain.DiscountCode{}, domain.ErrDiscountInvalid
	}
	return d, nil
}

func (r *Resolver) refreshIfStale(ctx context.Context) error {
	r.mu.RLock()
	fresh := !r.fetchedAt.IsZero() && r.now().Sub(r.fetchedAt) < r.ttl
	r.mu.RUnlock()
	if fresh {
		return nil
	}

	rows, err := r.store.LoadCodes(ctx)
	if err != nil {
		return &domain.ExternalServiceError{Op: "discount load", Err: err}
	}

	codes := make(map[string]domain.DiscountCode, len(rows))
	for _, d := range rows {
		codes[strings.ToUpper(strings.TrimSpace(d.Code))] = d
	}

	r.mu.Lock()
	r.codes = codes
	r.fetchedAt = r.now()
	r.mu.Unlock()
	return nil
}
