package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wirangar/bazarino-bot/configs"
	"github.com/wirangar/bazarino-bot/internal/logging"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// Client wraps one spreadsheet holding the three worksheets this engine
// touches: products (read + per-cell stock writes), orders (append-only) and
// discounts (read). It offers exactly the narrow contract the engine needs;
// sheet query internals stay in here.
type Client struct {
	svc           *sheetsapi.Service
	spreadsheetID string

	productsSheet  string
	ordersSheet    string
	discountsSheet string
	versionCell    string

	timeout time.Duration
	retries int
	log     *slog.Logger

	// rows maps product id -> 1-based sheet row, rebuilt on every catalog
	// load so stock cells can be addressed directly.
	mu   sync.Mutex
	rows map[string]int
}

func NewClient(ctx context.Context, cfg configs.Config) (*Client, error) {
	svc, err := sheetsapi.NewService(ctx,
		option.WithCredentialsFile(cfg.Sheets.CredsFile),
		option.WithScopes(sheetsapi.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{
		svc:            svc,
		spreadsheetID:  cfg.Sheets.SpreadsheetID,
		productsSheet:  cfg.Sheets.ProductsSheet,
		ordersSheet:    cfg.Sheets.OrdersSheet,
		discountsSheet: cfg.Sheets.DiscountsSheet,
		versionCell:    cfg.Sheets.VersionCell,
		timeout:        cfg.Sheets.CallTimeout,
		retries:        cfg.Sheets.Retries,
		log:            logging.New("sheets"),
		rows:           map[string]int{},
	}, nil
}

// withRetry runs one sheet call with a per-attempt timeout and a bounded
// number of retries. This is transport-level retry for flaky reads; the CAS
// conflict retry lives in the commit use case, not here.
func (c *Client) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(200 * time.Millisecond * time.Duration(attempt))
			select {
			case <-ctx.Done():
				t.Stop()
				return fmt.Errorf("%s: %w", op, ctx.Err())
			case <-t.C:
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err = fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		c.log.Warn("sheet call failed", "op", op, "attempt", attempt+1, "err", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (c *Client) getValues(ctx context.Context, readRange string) ([][]interface{}, error) {
	var out [][]interface{}
	err := c.withRetry(ctx, "values.get "+readRange, func(ctx context.Context) error {
		resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, readRange).Context(ctx).Do()
		if err != nil {
			return err
		}
		out = resp.Values
		return nil
	})
	return out, err
}

func (c *Client) updateCell(ctx context.Context, cellRange string, value interface{}) error {
	vr := &sheetsapi.ValueRange{Values: [][]interface{}{{value}}}
	return c.withRetry(ctx, "values.update "+cellRange, func(ctx context.Context) error {
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, cellRange, vr).
			ValueInputOption("RAW").Context(ctx).Do()
		return err
	})
}

func (c *Client) appendRows(ctx context.Context, sheet string, rows [][]interface{}) error {
	vr := &sheetsapi.ValueRange{Values: rows}
	return c.withRetry(ctx, "values.append "+sheet, func(ctx context.Context) error {
		_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, sheet+"!A1", vr).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		return err
	})
}
