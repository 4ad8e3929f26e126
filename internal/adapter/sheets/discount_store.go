package sheets

import (
	"context"

	"github.com/wirangar/bazarino-bot/internal/discount"
	domain "github.com/wirangar/bazarino-bot/internal/entity"
)

// LoadCodes reads the discount worksheet. Bad rows are skipped with a log
// line instead of failing the whole table.
func (c *Client) LoadCodes(ctx context.Context) ([]domain.DiscountCode, error) {
	values, err := c.getValues(ctx, c.discountsSheet+"!"+discountRange)
	if err != nil {
		return nil, err
	}
	codes := make([]domain.DiscountCode, 0, len(values))
	for i, row := range values {
		d, err := parseDiscountRow(row)
		if err != nil {
			c.log.Warn("skipping discount row", "row", firstDataRow+i, "err", err)
			continue
		}
		codes = append(codes, d)
	}
	return codes, nil
}

var _ discount.Store = (*Client)(nil)
