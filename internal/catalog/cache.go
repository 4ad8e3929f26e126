package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/wirangar/bazarino-bot/internal/entity"
	"github.com/wirangar/bazarino-bot/internal/logging"
)

// Source is the narrow read contract against the product worksheet.
type Source interface {
	// LoadCatalog reads the full product table in one batch call and returns
	// it together with the version token observed for this load.
	LoadCatalog(ctx context.Context) ([]domain.Product, string, error)
	// ProbeVersion reads the single version cell, cheap enough to call on
	// every staleness check.
	ProbeVersion(ctx context.Context) (string, error)
}

// Alerter receives low-stock escalations. Failures are logged, never fatal.
type Alerter interface {
	NotifyLowStock(ctx context.Context, productID string, stock int) error
}

type Option func(*Cache)

func WithTTL(d time.Duration) Option        { return func(c *Cache) { c.ttl = d } }
func WithLowStockThreshold(n int) Option    { return func(c *Cache) { c.lowStock = n } }
func WithAlerter(a Alerter) Option          { return func(c *Cache) { c.alerter = a } }
func WithLogger(l *slog.Logger) Option      { return func(c *Cache) { c.log = l } }
func withClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

// Cache holds an immutable snapshot of the product table keyed by id and
// tagged with the sheet's version token. It is read-shared across sessions;
// only RefreshIfStale / Refresh and ApplyStock write to it. It is never
// authoritative for stock decisions: the commit path reads the live cell.
type Cache struct {
	src      Source
	alerter  Alerter
	ttl      time.Duration
	lowStock int
	log      *slog.Logger
	now      func() time.Time

	mu        sync.RWMutex
	products  map[string]domain.Product
	order     []string // ids in sheet order, for stable listings
	version   string
	fetchedAt time.Time
	stale     bool
}

func New(src Source, opts ...Option) *Cache {
	c := &Cache{
		src:      src,
		ttl:      60 * time.Second,
		lowStock: 3,
		log:      logging.New("catalog"),
		now:      time.Now,
		products: map[string]domain.Product{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached product or domain.ErrProductNotFound.
func (c *Cache) Get(productID string) (domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[productID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

// Snapshot returns all products in sheet order.
func (c *Cache) Snapshot() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.products[id])
	}
	return out
}

// Categories returns the distinct category keys, sorted.
func (c *Cache) Categories() []string {
	c.mu.RLock()
	seen := map[string]bool{}
	for _, p := range c.products {
		seen[p.Category] = true
	}
	c.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for cat := range seen {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// ByCategory returns the products of one category in sheet order.
func (c *Cache) ByCategory(cat string) []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []domain.Product
	for _, id := range c.order {
		if p := c.products[id]; p.Category == cat {
			out = append(out, p)
		}
	}
	return out
}

// Search does a case-insensitive substring match over both localized names
// and the brand, serving the /search command upstream.
func (c *Cache) Search(query string) []domain.Product {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []domain.Product
	for _, id := range c.order {
		p := c.products[id]
		if strings.Contains(strings.ToLower(p.NameFA), q) ||
			strings.Contains(strings.ToLower(p.NameIT), q) ||
			strings.Contains(strings.ToLower(p.Brand), q) {
			out = append(out, p)
		}
	}
	return out
}

// Stale reports whether the last refresh attempt failed and the snapshot may
// lag the sheet. Callers warn the user instead of failing.
func (c *Cache) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stale
}

// Version returns the token of the current snapshot.
func (c *Cache) Version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// RefreshIfStale probes the version cell and reloads the snapshot when the
// token changed or the TTL expired. On any source error it keeps serving the
// previous snapshot, marks itself stale and returns the error; it never
// drops data it already has.
func (c *Cache) RefreshIfStale(ctx context.Context) error {
	c.mu.RLock()
	version := c.version
	fresh := !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.ttl
	c.mu.RUnlock()

	if fresh {
		probe, err := c.src.ProbeVersion(ctx)
		if err != nil {
			c.markStale()
			return &domain.ExternalServiceError{Op: "catalog probe", Err: err}
		}
		if probe == version {
			return nil
		}
	}
	return c.Refresh(ctx)
}

// Refresh unconditionally reloads the full catalog in one batch call.
func (c *Cache) Refresh(ctx context.Context) error {
	products, version, err := c.src.LoadCatalog(ctx)
	if err != nil {
		c.markStale()
		return &domain.ExternalServiceError{Op: "catalog load", Err: err}
	}

	byID := make(map[string]domain.Product, len(products))
	order := make([]string, 0, len(products))
	for _, p := range products {
		if _, dup := byID[p.ID]; dup {
			c.log.Warn("duplicate product id in sheet, keeping first row", "product", p.ID)
			continue
		}
		byID[p.ID] = p
		order = append(order, p.ID)
	}

	c.mu.Lock()
	c.products = byID
	c.order = order
	c.version = version
	c.fetchedAt = c.now()
	c.stale = false
	c.mu.Unlock()

	c.log.Info("catalog refreshed", "products", len(order), "version", version)
	refreshesTotal.Inc()

	for _, p := range products {
		c.EscalateIfLow(ctx, p.ID)
	}
	return nil
}

// ApplyStock patches one product's stock after a committed decrement, so
// reads in this process stop serving the pre-commit value.
func (c *Cache) ApplyStock(productID string, stock int) {
	c.mu.Lock()
	if p, ok := c.products[productID]; ok {
		p.Stock = stock
		c.products[productID] = p
	}
	c.mu.Unlock()
}

// EscalateIfLow fires a low-stock alert when the cached stock is at or below
// the threshold. Fire-and-forget: a failed notification is only logged.
func (c *Cache) EscalateIfLow(ctx context.Context, productID string) {
	if c.alerter == nil {
		return
	}
	c.mu.RLock()
	p, ok := c.products[productID]
	c.mu.RUnlock()
	if !ok || p.Stock > c.lowStock {
		return
	}
	if err := c.alerter.NotifyLowStock(ctx, p.ID, p.Stock); err != nil {
		c.log.Warn("low stock alert failed", "product", p.ID, "err", err)
	}
}

func (c *Cache) markStale() {
	c.mu.Lock()
	c.stale = true
	c.mu.Unlock()
}

// String is a one-line summary for debug logs.
func (c *Cache) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("catalog[%d products, version=%s, stale=%v]", len(c.products), c.version, c.stale)
}
