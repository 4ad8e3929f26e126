package sheets

import (
	"context"

	domain "github.com/wirangar/bazarino-bot/internal/entity"
	"github.com/wirangar/bazarino-bot/internal/usecase"
)

const orderTimeLayout = "2006-01-02 15:04:05"

// Append writes one immutable order record: one sheet row per committed
// line, all carrying the order's header fields, discount, total and status.
// Append-only by contract; nothing here updates or deletes rows.
func (c *Client) Append(ctx context.Context, o *domain.Order) error {
	ts := o.Timestamp.Format(orderTimeLayout)
	rows := make([][]interface{}, 0, len(o.Lines))
	for _, l := range o.Lines {
		rows = append(rows, []interface{}{
			ts,
			o.ID,
			o.SessionID,
			o.Handle,
			o.Name,
			o.Phone,
			o.Address,
			o.PostalCode,
			string(o.Destination),
			o.Notes,
			l.ProductID,
			l.Name,
			l.Qty,
			l.UnitPrice.StringFixed(2),
			l.Subtotal().StringFixed(2),
			o.DiscountCode,
			o.DiscountAmount.StringFixed(2),
			o.Total.StringFixed(2),
			string(o.Status),
		})
	}
	if len(rows) == 0 {
		// FAILED orders still get one row so the conflict is auditable.
		rows = append(rows, []interface{}{
			ts, o.ID, o.SessionID, o.Handle, o.Name, o.Phone, o.Address,
			o.PostalCode, string(o.Destination), o.Notes,
			"", "", 0, "", "", o.DiscountCode, "0.00", "0.00", string(o.Status),
		})
	}
	return c.appendRows(ctx, c.ordersSheet, rows)
}

var _ usecase.OrderLog = (*Client)(nil)
