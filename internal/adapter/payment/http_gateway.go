package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wirangar/bazarino-bot/internal/session"
)

// HTTPGateway creates invoices against the payment provider's REST API.
// Confirmations do not come back on this path; the provider pushes them to
// the payment events topic consumed by the kafka adapter.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &HTTPGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type createInvoiceReq struct {
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
}

type createInvoiceResp struct {
	InvoiceID string `json:"invoiceId"`
}

// CreateInvoice asks the provider for an invoice covering the discounted
// quoted total. Reference is the session id; it comes back on the
// confirmation event so the engine can find the waiting session.
func (g *HTTPGateway) CreateInvoice(ctx context.Context, amount decimal.Decimal, currency, reference string) (string, error) {
	body, err := json.Marshal(createInvoiceReq{
		Amount:    amount.StringFixed(2),
		Currency:  currency,
		Reference: reference,
	})
	if err != nil {
		return "", fmt.Errorf("marshal invoice: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/invoices", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("create invoice: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create invoice: provider returned %s", resp.Status)
	}

	var out createInvoiceResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode invoice response: %w", err)
	}
	if out.InvoiceID == "" {
		return "", fmt.Errorf("provider returned empty invoice id")
	}
	return out.InvoiceID, nil
}

var _ session.PaymentGateway = (*HTTPGateway)(nil)
