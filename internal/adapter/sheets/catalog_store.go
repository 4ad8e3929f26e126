package sheets

import (
	"context"
	"fmt"

	"github.com/wirangar/bazarino-bot/internal/catalog"
	domain "github.com/wirangar/bazarino-bot/internal/entity"
	"github.com/wirangar/bazarino-bot/internal/usecase"
)

// LoadCatalog reads the whole product table in one batch call. The version
// token is read first so a concurrent edit between the two reads surfaces as
// a token mismatch on the next probe, not as silently merged data.
func (c *Client) LoadCatalog(ctx context.Context) ([]domain.Product, string, error) {
	version, err := c.ProbeVersion(ctx)
	if err != nil {
		return nil, "", err
	}

	values, err := c.getValues(ctx, c.productsSheet+"!"+productRange)
	if err != nil {
		return nil, "", err
	}

	products := make([]domain.Product, 0, len(values))
	rows := make(map[string]int, len(values))
	for i, row := range values {
		p, err := parseProductRow(row)
		if err != nil {
			c.log.Warn("skipping product row", "row", firstDataRow+i, "err", err)
			continue
		}
		products = append(products, p)
		rows[p.ID] = firstDataRow + i
	}

	c.mu.Lock()
	c.rows = rows
	c.mu.Unlock()

	return products, version, nil
}

// ProbeVersion reads the single version cell maintained by the sheet's
// onEdit hook. Cheap enough to run on every staleness check.
func (c *Client) ProbeVersion(ctx context.Context) (string, error) {
	values, err := c.getValues(ctx, c.versionCell)
	if err != nil {
		return "", err
	}
	if len(values) == 0 || len(values[0]) == 0 {
		return "", nil
	}
	return cellString(values[0], 0), nil
}

func (c *Client) stockCell(productID string) (string, error) {
	c.mu.Lock()
	row, ok := c.rows[productID]
	c.mu.Unlock()
	if !ok {
		return "", domain.ErrProductNotFound
	}
	return fmt.Sprintf("%s!%s%d", c.productsSheet, stockColumn, row), nil
}

// ReadStock reads the authoritative live stock cell, bypassing any cache.
func (c *Client) ReadStock(ctx context.Context, productID string) (int, error) {
	cell, err := c.stockCell(productID)
	if err != nil {
		return 0, err
	}
	values, err := c.getValues(ctx, cell)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 || len(values[0]) == 0 {
		return 0, nil
	}
	return cellInt(values[0], 0)
}

// WriteStockIf emulates compare-and-swap on a store that has none: check the
// cell still holds expected, write next, then read it back and report whether
// our value survived. A concurrent writer in the window shows up either as
// the precondition failing or as the verify read disagreeing; both come back
// as ok=false, and the caller re-runs its loop from a fresh read.
func (c *Client) WriteStockIf(ctx context.Context, productID string, expected, next int) (bool, error) {
	cell, err := c.stockCell(productID)
	if err != nil {
		return false, err
	}

	current, err := c.ReadStock(ctx, productID)
	if err != nil {
		return false, err
	}
	if current != expected {
		return false, nil
	}

	if err := c.updateCell(ctx, cell, next); err != nil {
		return false, err
	}

	verify, err := c.ReadStock(ctx, productID)
	if err != nil {
		return false, err
	}
	return verify == next, nil
}

var (
	_ catalog.Source       = (*Client)(nil)
	_ usecase.CatalogStore = (*Client)(nil)
)
