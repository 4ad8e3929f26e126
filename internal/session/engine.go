package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wirangar/bazarino-bot/internal/catalog"
	domain "github.com/wirangar/bazarino-bot/internal/entity"
	"github.com/wirangar/bazarino-bot/internal/logging"
	"github.com/wirangar/bazarino-bot/internal/usecase"
)

// ErrNotAllowed rejects a command that does not apply to the session's
// current state. The state is left unchanged.
var ErrNotAllowed = errors.New("command not allowed in this state")

// DiscountResolver is the port to the discount table.
type DiscountResolver interface {
	Resolve(ctx context.Context, code string) (domain.DiscountCode, error)
}

// Committer finalizes a cart against the live stock cells.
type Committer interface {
	Execute(ctx context.Context, in usecase.CommitOrderInput) (usecase.CommitResult, error)
}

// PaymentGateway creates invoices for remote paid orders. The confirmation
// comes back asynchronously through PaymentConfirmed.
type PaymentGateway interface {
	CreateInvoice(ctx context.Context, amount decimal.Decimal, currency, reference string) (string, error)
}

// Result is what the chat boundary renders after each handled command.
type Result struct {
	Session *Session
	// Commit is set when this command finalized (or partially finalized)
	// an order.
	Commit *usecase.CommitResult
	// InvoiceID is set when confirming a remote order started a payment.
	InvoiceID string
	// CatalogStale warns that prices/stock shown may lag the sheet.
	CatalogStale bool
}

type EngineOption func(*Engine)

func WithCurrency(c string) EngineOption          { return func(e *Engine) { e.currency = c } }
func WithEngineLogger(l *slog.Logger) EngineOption { return func(e *Engine) { e.log = l } }

// Engine drives one session per inbound chat update: cart edits while
// shopping, the order form once checkout starts, and the commit protocol at
// the end. It holds no per-session state itself; everything lives in the
// Store so any process behind the webhook can pick up the next update.
type Engine struct {
	catalog   *catalog.Cache
	discounts DiscountResolver
	committer Committer
	payments  PaymentGateway
	store     Store
	currency  string
	log       *slog.Logger
}

func NewEngine(cat *catalog.Cache, discounts DiscountResolver, committer Committer, payments PaymentGateway, store Store, opts ...EngineOption) *Engine {
	e := &Engine{
		catalog:   cat,
		discounts: discounts,
		committer: committer,
		payments:  payments,
		store:     store,
		currency:  "EUR",
		log:       logging.New("session"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle applies one decoded command to the chat's session.
func (e *Engine) Handle(ctx context.Context, chatID string, cmd Command) (*Result, error) {
	s, err := e.load(ctx, chatID)
	if err != nil {
		return nil, err
	}

	switch cmd.Kind {
	case KindCancel:
		return e.cancel(ctx, s)
	case KindAdd:
		return e.addToCart(ctx, s, cmd.ProductID, cmd.Qty)
	case KindInc:
		return e.addToCart(ctx, s, cmd.ProductID, 1)
	case KindDec:
		return e.cartEdit(ctx, s, func() { s.Cart.Adjust(cmd.ProductID, -1) })
	case KindRemove:
		return e.cartEdit(ctx, s, func() { s.Cart.Remove(cmd.ProductID) })
	case KindCheckout:
		return e.checkout(ctx, s, cmd)
	case KindEdit:
		return e.edit(ctx, s, cmd.Field)
	case KindSkip:
		return e.skip(ctx, s)
	case KindConfirm:
		return e.confirm(ctx, s)
	case KindText:
		return e.handleText(ctx, s, cmd.Text)
	default:
		return &Result{Session: s}, &domain.ValidationError{Field: "command", Reason: "unknown kind"}
	}
}

// Session returns the current session for a chat, if any.
func (e *Engine) Session(ctx context.Context, chatID string) (*Session, error) {
	s, ok, err := e.store.Load(ctx, chatID)
	if err != nil {
		return nil, &domain.ExternalServiceError{Op: "session load", Err: err}
	}
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

func (e *Engine) load(ctx context.Context, chatID string) (*Session, error) {
	s, ok, err := e.store.Load(ctx, chatID)
	if err != nil {
		return nil, &domain.ExternalServiceError{Op: "session load", Err: err}
	}
	if !ok {
		s = NewSession(chatID)
	}
	return s, nil
}

func (e *Engine) save(ctx context.Context, s *Session) error {
	s.UpdatedAt = time.Now().UTC()
	if err := e.store.Save(ctx, s); err != nil {
		return &domain.ExternalServiceError{Op: "session save", Err: err}
	}
	return nil
}

// cancel is accepted from any state: it clears session and cart without
// touching the sheet (nothing is reserved before commit).
func (e *Engine) cancel(ctx context.Context, s *Session) (*Result, error) {
	if err := e.store.Delete(ctx, s.ID); err != nil {
		return nil, &domain.ExternalServiceError{Op: "session delete", Err: err}
	}
	s.Cart.Clear()
	s.State = StateCancelled
	e.log.Info("session cancelled", "session", s.ID)
	return &Result{Session: s}, nil
}

func (e *Engine) addToCart(ctx context.Context, s *Session, productID string, qty int) (*Result, error) {
	if s.State != StateShopping {
		return &Result{Session: s}, ErrNotAllowed
	}
	if qty < 1 {
		qty = 1
	}

	res := &Result{Session: s}
	if err := e.catalog.RefreshIfStale(ctx); err != nil {
		e.log.Warn("catalog refresh failed, quoting from stale snapshot", "err", err)
		res.CatalogStale = true
	}

	p, err := e.catalog.Get(productID)
	if err != nil {
		return res, err
	}
	// Advisory check against the cached stock; the commit-time CAS loop is
	// the authoritative gate.
	if s.Cart.Qty(productID)+qty > p.Stock {
		return res, &domain.InsufficientStockError{ProductID: productID, Available: p.Stock}
	}

	s.Cart.Add(p, qty)
	e.catalog.EscalateIfLow(ctx, productID)
	return res, e.save(ctx, s)
}

func (e *Engine) cartEdit(ctx context.Context, s *Session, edit func()) (*Result, error) {
	if s.State != StateShopping {
		return &Result{Session: s}, ErrNotAllowed
	}
	edit()
	return &Result{Session: s}, e.save(ctx, s)
}

// checkout opens the order form. The destination buttons carry the choice,
// so AWAIT_DESTINATION is only visited when checkout starts without one; a
// usable profile name skips AWAIT_NAME.
func (e *Engine) checkout(ctx context.Context, s *Session, cmd Command) (*Result, error) {
	if s.State != StateShopping {
		return &Result{Session: s}, ErrNotAllowed
	}
	if s.Cart.Empty() {
		return &Result{Session: s}, domain.ErrEmptyCart
	}

	if cmd.Handle != "" {
		s.Handle = cmd.Handle
	}
	s.Name = cmd.NamePrefill

	if cmd.Destination == "" {
		s.State = StateAwaitDestination
	} else {
		s.Destination = cmd.Destination
		if s.Name != "" {
			s.State = StateAwaitPhone
		} else {
			s.State = StateAwaitName
		}
	}
	return &Result{Session: s}, e.save(ctx, s)
}

func (e *Engine) handleText(ctx context.Context, s *Session, text string) (*Result, error) {
	step, ok := formSteps[s.State]
	if !ok {
		return &Result{Session: s}, ErrNotAllowed
	}
	if err := step.accept(e, ctx, s, text); err != nil {
		// Invalid input leaves the state unchanged; the boundary re-prompts.
		return &Result{Session: s}, err
	}
	s.State = nextState(s, s.State)
	return &Result{Session: s}, e.save(ctx, s)
}

func (e *Engine) skip(ctx context.Context, s *Session) (*Result, error) {
	step, ok := formSteps[s.State]
	if !ok || !step.skippable {
		return &Result{Session: s}, ErrNotAllowed
	}
	skipStep(s, s.State)
	s.State = nextState(s, s.State)
	return &Result{Session: s}, e.save(ctx, s)
}

// edit jumps from REVIEW to a single field's state and marks the session to
// return to REVIEW once the field is re-entered. Other fields keep their
// values.
func (e *Engine) edit(ctx context.Context, s *Session, field Field) (*Result, error) {
	if s.State != StateReview {
		return &Result{Session: s}, ErrNotAllowed
	}
	target, ok := fieldStates[field]
	if !ok {
		return &Result{Session: s}, &domain.ValidationError{Field: "field", Reason: "unknown field"}
	}
	if target == StateAwaitPostal && s.Destination == domain.DestLocal {
		return &Result{Session: s}, ErrNotAllowed
	}
	s.ReturnTo = StateReview
	s.State = target
	return &Result{Session: s}, e.save(ctx, s)
}

// confirm leaves REVIEW. Local orders commit immediately; remote orders get
// an invoice first and commit when the payment confirmation arrives.
func (e *Engine) confirm(ctx context.Context, s *Session) (*Result, error) {
	if s.State != StateReview {
		return &Result{Session: s}, ErrNotAllowed
	}

	if s.Destination == domain.DestRemote && e.payments != nil {
		total := s.Cart.Total()
		if s.Discount.Code != "" {
			total = total.Sub(s.Discount.Apply(total))
		}
		invoiceID, err := e.payments.CreateInvoice(ctx, total, e.currency, s.ID)
		if err != nil {
			// Stay in REVIEW; the user can retry confirm or cancel.
			return &Result{Session: s}, &domain.PaymentError{Reference: s.ID, Err: err}
		}
		s.InvoiceID = invoiceID
		s.State = StateCommitting
		if err := e.save(ctx, s); err != nil {
			return &Result{Session: s}, err
		}
		return &Result{Session: s, InvoiceID: invoiceID}, nil
	}

	s.State = StateCommitting
	return e.finalize(ctx, s)
}

// PaymentConfirmed is the alternate entry into COMMITTING: called when the
// payment provider settles the invoice referenced by a session id.
func (e *Engine) PaymentConfirmed(ctx context.Context, reference string) (*Result, error) {
	s, ok, err := e.store.Load(ctx, reference)
	if err != nil {
		return nil, &domain.ExternalServiceError{Op: "session load", Err: err}
	}
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if s.State != StateCommitting || s.InvoiceID == "" {
		return &Result{Session: s}, ErrNotAllowed
	}
	return e.finalize(ctx, s)
}

// PaymentFailed destroys the session: an explicit payment failure is one of
// the two events allowed to drop user state.
func (e *Engine) PaymentFailed(ctx context.Context, reference string) error {
	e.log.Info("payment failed, dropping session", "session", reference)
	if err := e.store.Delete(ctx, reference); err != nil {
		return &domain.ExternalServiceError{Op: "session delete", Err: err}
	}
	return nil
}

// finalize runs the stock commit and settles the session. Three outcomes:
// full commit destroys the session (DONE); a conflict keeps only the
// unavailable lines in the cart and returns to SHOPPING so the user can
// adjust and resubmit; a hard store error discards the order draft but
// preserves the cart.
func (e *Engine) finalize(ctx context.Context, s *Session) (*Result, error) {
	res, err := e.committer.Execute(ctx, usecase.CommitOrderInput{
		SessionID:   s.ID,
		Handle:      s.Handle,
		Name:        s.Name,
		Phone:       s.Phone,
		Address:     s.Address,
		PostalCode:  s.PostalCode,
		Destination: s.Destination,
		Notes:       s.Notes,
		Cart:        s.Cart,
		Discount:    s.Discount,
	})
	if err != nil {
		s.resetForm()
		if saveErr := e.save(ctx, s); saveErr != nil {
			e.log.Error("session save after failed commit", "session", s.ID, "err", saveErr)
		}
		return &Result{Session: s}, err
	}

	if res.Committed() {
		if err := e.store.Delete(ctx, s.ID); err != nil {
			e.log.Warn("session delete after commit", "session", s.ID, "err", err)
		}
		s.State = StateDone
		s.Cart.Clear()
		return &Result{Session: s, Commit: &res}, nil
	}

	// Keep exactly the unavailable lines so resubmitting cannot double-sell
	// what already committed.
	conflicted := map[string]bool{}
	for _, c := range res.Conflicts {
		conflicted[c.ProductID] = true
	}
	var keep []domain.CartLine
	for _, l := range s.Cart.Lines {
		if conflicted[l.ProductID] {
			keep = append(keep, l)
		}
	}
	s.Cart.Lines = keep
	s.resetForm()
	if err := e.save(ctx, s); err != nil {
		return &Result{Session: s, Commit: &res}, err
	}
	return &Result{Session: s, Commit: &res}, nil
}
