package session

import domain "github.com/wirangar/bazarino-bot/internal/entity"

// Kind discriminates the command variants the engine accepts. Callback
// strings like "add_rice_123" are decoded into a Command once at the chat
// boundary; nothing inside the engine parses strings.
type Kind string

const (
	KindText     Kind = "text"     // free-text answer for the current form state
	KindAdd      Kind = "add"      // add ProductID (Qty, default 1) to the cart
	KindInc      Kind = "inc"      // + button on a cart line
	KindDec      Kind = "dec"      // - button on a cart line
	KindRemove   Kind = "remove"   // x button on a cart line
	KindCheckout Kind = "checkout" // start the order form
	KindEdit     Kind = "edit"     // from REVIEW: revisit one field
	KindSkip     Kind = "skip"     // skip an optional form state
	KindConfirm  Kind = "confirm"  // from REVIEW: commit the order
	KindCancel   Kind = "cancel"   // /cancel, accepted from any state
)

// Field names an editable form field for KindEdit jumps.
type Field string

const (
	FieldDestination Field = "destination"
	FieldName        Field = "name"
	FieldPhone       Field = "phone"
	FieldAddress     Field = "address"
	FieldPostal      Field = "postal"
	FieldDiscount    Field = "discount"
	FieldNotes       Field = "notes"
)

// Command is one decoded chat update.
type Command struct {
	Kind      Kind   `json:"kind"`
	ProductID string `json:"product_id,omitempty"`
	Category  string `json:"category,omitempty"`
	Qty       int    `json:"qty,omitempty"`
	Text      string `json:"text,omitempty"`
	Field     Field  `json:"field,omitempty"`

	// Checkout extras: destination picked via the order buttons, plus the
	// chat profile values used to prefill the form.
	Destination domain.Destination `json:"destination,omitempty"`
	NamePrefill string             `json:"name_prefill,omitempty"`
	Handle      string             `json:"handle,omitempty"`
}

// fieldStates maps editable fields to the state that collects them.
var fieldStates = map[Field]State{
	FieldDestination: StateAwaitDestination,
	FieldName:        StateAwaitName,
	FieldPhone:       StateAwaitPhone,
	FieldAddress:     StateAwaitAddress,
	FieldPostal:      StateAwaitPostal,
	FieldDiscount:    StateAwaitDiscount,
	FieldNotes:       StateAwaitNotes,
}
