package session

import (
	"time"

	domain "github.com/wirangar/bazarino-bot/internal/entity"
)

// State names one step of the order conversation. The chain is linear;
// REVIEW additionally allows re-entrant jumps back to any field state.
type State string

const (
	// StateShopping is the pre-checkout resting state: the cart can be
	// edited freely, no form field is being collected.
	StateShopping State = "SHOPPING"

	StateAwaitDestination State = "AWAIT_DESTINATION"
	StateAwaitName        State = "AWAIT_NAME"
	StateAwaitPhone       State = "AWAIT_PHONE"
	StateAwaitAddress     State = "AWAIT_ADDRESS"
	StateAwaitPostal      State = "AWAIT_POSTAL"
	StateAwaitDiscount    State = "AWAIT_DISCOUNT"
	StateAwaitNotes       State = "AWAIT_NOTES"
	StateReview           State = "REVIEW"
	StateCommitting       State = "COMMITTING"
	StateDone             State = "DONE"
	StateCancelled        State = "CANCELLED"
)

// Terminal reports whether the state ends the session.
func (s State) Terminal() bool { return s == StateDone || s == StateCancelled }

// Session is one chat's in-progress interaction: the cart plus the order
// form fields collected so far. It is owned by exactly one chat and driven
// by one inbound update at a time; cross-session contention exists only on
// the shared stock cells, never on this struct.
type Session struct {
	ID     string `json:"id"`
	Handle string `json:"handle"`
	State  State  `json:"state"`

	Destination domain.Destination  `json:"destination,omitempty"`
	Name        string              `json:"name,omitempty"`
	Phone       string              `json:"phone,omitempty"`
	Address     string              `json:"address,omitempty"`
	PostalCode  string              `json:"postal_code,omitempty"`
	Notes       string              `json:"notes,omitempty"`
	Discount    domain.DiscountCode `json:"discount,omitempty"`

	Cart domain.Cart `json:"cart"`

	// ReturnTo is set while editing a single field from REVIEW; after the
	// field is accepted the machine jumps back instead of walking the chain.
	ReturnTo State `json:"return_to,omitempty"`

	// InvoiceID is set once a remote order is waiting on its payment.
	InvoiceID string `json:"invoice_id,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession starts a fresh shopping session for a chat.
func NewSession(id string) *Session {
	return &Session{ID: id, State: StateShopping}
}

// resetForm drops the order draft but keeps the cart, so a failed commit
// leaves the user free to check out again.
func (s *Session) resetForm() {
	s.Destination = ""
	s.Name = ""
	s.Phone = ""
	s.Address = ""
	s.PostalCode = ""
	s.Notes = ""
	s.Discount = domain.DiscountCode{}
	s.ReturnTo = ""
	s.InvoiceID = ""
	s.State = StateShopping
}
