package usecase

// PaymentEventMsg arrives on the payment events topic once the provider
// settles an invoice. Reference is the session id the invoice was issued for.
type PaymentEventMsg struct {
	Reference string `json:"reference"`
	InvoiceID string `json:"invoiceId"`
	Status    string `json:"status"` // "PAID" | "FAILED"
}
