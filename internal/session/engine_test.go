package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wirangar/bazarino-bot/internal/catalog"
	domain "github.com/wirangar/bazarino-bot/internal/entity"
	"github.com/wirangar/bazarino-bot/internal/usecase"
)

type staticSource struct {
	products []domain.Product
}

func (s *staticSource) LoadCatalog(context.Context) ([]domain.Product, string, error) {
	return s.products, "v1", nil
}

func (s *staticSource) ProbeVersion(context.Context) (string, error) { return "v1", nil }

type fakeResolver struct {
	codes map[string]domain.DiscountCode
}

func (f *fakeResolver) Resolve(_ context.Context, code string) (domain.DiscountCode, error) {
	d, ok := f.codes[code]
	if !ok {
		return domain.DiscountCode{}, domain.ErrDiscountInvalid
	}
	return d, nil
}

type fakeCommitter struct {
	fn     func(in usecase.CommitOrderInput) (usecase.CommitResult, error)
	inputs []usecase.CommitOrderInput
}

func (f *fakeCommitter) Execute(_ context.Context, in usecase.CommitOrderInput) (usecase.CommitResult, error) {
	f.inputs = append(f.inputs, in)
	if f.fn != nil {
		return f.fn(in)
	}
	order := &domain.Order{ID: "ord00001", Status: domain.StatusConfirmed}
	for _, l := range in.Cart.Lines {
		order.Lines = append(order.Lines, domain.OrderLine{
			ProductID: l.ProductID, Name: l.Name, Qty: l.Qty, UnitPrice: l.UnitPrice,
		})
	}
	subtotal := order.Subtotal()
	order.DiscountAmount = decimal.Zero
	if in.Discount.Code != "" {
		order.DiscountAmount = in.Discount.Apply(subtotal)
	}
	order.Total = subtotal.Sub(order.DiscountAmount)
	return usecase.CommitResult{Order: order}, nil
}

type fakeGateway struct {
	invoiceID string
	err       error
	amounts   []string
}

func (f *fakeGateway) CreateInvoice(_ context.Context, amount decimal.Decimal, _, _ string) (string, error) {
	f.amounts = append(f.amounts, amount.StringFixed(2))
	if f.err != nil {
		return "", f.err
	}
	return f.invoiceID, nil
}

type testRig struct {
	engine    *Engine
	store     *MemoryStore
	committer *fakeCommitter
	gateway   *fakeGateway
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	src := &staticSource{products: []domain.Product{
		{ID: "rice", Category: "grains", NameFA: "برنج", NameIT: "Riso", Price: decimal.RequireFromString("6.00"), Stock: 5},
		{ID: "lentil", Category: "grains", NameFA: "عدس", NameIT: "Lenticchie", Price: decimal.RequireFromString("4.00"), Stock: 8},
		{ID: "saffron", Category: "spices", NameFA: "زعفران", Price: decimal.RequireFromString("12.00"), Stock: 1},
	}}
	cat := catalog.New(src)
	require.NoError(t, cat.Refresh(context.Background()))

	resolver := &fakeResolver{codes: map[string]domain.DiscountCode{
		"WELCOME10": {Code: "WELCOME10", PercentOff: 10, Active: true, ValidUntil: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)},
	}}
	committer := &fakeCommitter{}
	gateway := &fakeGateway{invoiceID: "inv-42"}
	store := NewMemoryStore()

	return &testRig{
		engine:    NewEngine(cat, resolver, committer, gateway, store),
		store:     store,
		committer: committer,
		gateway:   gateway,
	}
}

func (r *testRig) handle(t *testing.T, chatID string, cmd Command) *Result {
	t.Helper()
	res, err := r.engine.Handle(context.Background(), chatID, cmd)
	require.NoError(t, err)
	return res
}

func text(s string) Command { return Command{Kind: KindText, Text: s} }

// fillCartLocal walks a session up to REVIEW with the standard two-line cart.
func (r *testRig) fillCartLocal(t *testing.T, chatID string) *Result {
	t.Helper()
	r.handle(t, chatID, Command{Kind: KindAdd, ProductID: "rice", Qty: 1})
	r.handle(t, chatID, Command{Kind: KindAdd, ProductID: "lentil", Qty: 2})
	r.handle(t, chatID, Command{Kind: KindCheckout, Handle: "@tester"})
	r.handle(t, chatID, text("perugia"))
	r.handle(t, chatID, text("Test Buyer"))
	r.handle(t, chatID, text("+393331234567"))
	r.handle(t, chatID, text("Via dei Priori 12, Perugia"))
	r.handle(t, chatID, text("WELCOME10"))
	return r.handle(t, chatID, Command{Kind: KindSkip})
}

func TestLocalOrderEndToEnd(t *testing.T) {
	rig := newTestRig(t)

	res := rig.handle(t, "chat-1", Command{Kind: KindAdd, ProductID: "rice", Qty: 1})
	assert.Equal(t, StateShopping, res.Session.State)
	assert.Equal(t, "14.00", rig.handle(t, "chat-1",
		Command{Kind: KindAdd, ProductID: "lentil", Qty: 2}).Session.Cart.Total().StringFixed(2))

	res = rig.handle(t, "chat-1", Command{Kind: KindCheckout, Handle: "@tester"})
	assert.Equal(t, StateAwaitDestination, res.Session.State)

	res = rig.handle(t, "chat-1", text("perugia"))
	assert.Equal(t, StateAwaitName, res.Session.State)
	assert.Equal(t, domain.DestLocal, res.Session.Destination)

	res = rig.handle(t, "chat-1", text("Test Buyer"))
	assert.Equal(t, StateAwaitPhone, res.Session.State)

	res = rig.handle(t, "chat-1", text("+393331234567"))
	assert.Equal(t, StateAwaitAddress, res.Session.State)

	// Local order: no postal step, straight to the discount prompt.
	res = rig.handle(t, "chat-1", text("Via dei Priori 12, Perugia"))
	assert.Equal(t, StateAwaitDiscount, res.Session.State)

	res = rig.handle(t, "chat-1", text("WELCOME10"))
	assert.Equal(t, StateAwaitNotes, res.Session.State)
	assert.Equal(t, "WELCOME10", res.Session.Discount.Code)

	res = rig.handle(t, "chat-1", Command{Kind: KindSkip})
	assert.Equal(t, StateReview, res.Session.State)
	assert.Equal(t, "-", res.Session.Notes)

	res = rig.handle(t, "chat-1", Command{Kind: KindConfirm})
	require.NotNil(t, res.Commit)
	assert.Equal(t, StateDone, res.Session.State)
	assert.Equal(t, "12.60", res.Commit.Order.Total.StringFixed(2))
	assert.True(t, res.Session.Cart.Empty())

	// Committed input carried the full form.
	require.Len(t, rig.committer.inputs, 1)
	in := rig.committer.inputs[0]
	assert.Equal(t, "@tester", in.Handle)
	assert.Equal(t, "-", in.Notes)
	assert.Empty(t, in.PostalCode)

	// Session gone after a clean commit.
	_, err := rig.engine.Session(context.Background(), "chat-1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestCheckoutWithProfilePrefill(t *testing.T) {
	rig := newTestRig(t)
	rig.handle(t, "chat-1", Command{Kind: KindAdd, ProductID: "rice"})

	// Destination chosen via button and name taken from the chat profile:
	// both AWAIT_DESTINATION and AWAIT_NAME are skipped.
	res := rig.handle(t, "chat-1", Command{
		Kind:        KindCheckout,
		Destination: domain.DestRemote,
		NamePrefill: "Profile Name",
		Handle:      "@tester",
	})
	assert.Equal(t, StateAwaitPhone, res.Session.State)
	assert.Equal(t, "Profile Name", res.Session.Name)
}

func TestCheckoutEmptyCart(t *testing.T) {
	rig := newTestRig(t)
	_, err := rig.engine.Handle(context.Background(), "chat-1", Command{Kind: KindCheckout})
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestAddRejectsOverCachedStock(t *testing.T) {
	rig := newTestRig(t)
	rig.handle(t, "chat-1", Command{Kind: KindAdd, ProductID: "saffron"})

	_, err := rig.engine.Handle(context.Background(), "chat-1", Command{Kind: KindInc, ProductID: "saffron"})
	var insufficient *domain.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 1, insufficient.Available)

	_, err = rig.engine.Handle(context.Background(), "chat-1", Command{Kind: KindAdd, ProductID: "ghost"})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestCartButtons(t *testing.T) {
	rig := newTestRig(t)
	rig.handle(t, "chat-1", Command{Kind: KindAdd, ProductID: "rice", Qty: 2})

	res := rig.handle(t, "chat-1", Command{Kind: KindDec, ProductID: "rice"})
	assert.Equal(t, 1, res.Session.Cart.Qty("rice"))

	// - never drops the line.
	res = rig.handle(t, "chat-1", Command{Kind: KindDec, ProductID: "rice"})
	assert.Equal(t, 1, res.Session.Cart.Qty("rice"))

	res = rig.handle(t, "chat-1", Command{Kind: KindRemove, ProductID: "rice"})
	assert.True(t, res.Session.Cart.Empty())
}

func TestInvalidInputKeepsState(t *testing.T) {
	rig := newTestRig(t)
	rig.handle(t, "chat-1", Command{Kind: KindAdd, ProductID: "rice"})
	rig.handle(t, "chat-1", Command{Kind: KindCheckout})
	rig.handle(t, "chat-1", text("perugia"))
	rig.handle(t, "chat-1", text("Test Buyer"))

	for _, bad := range []string{"abc", "+39", "123456789012345678"} {
		res, err := rig.engine.Handle(context.Background(), "chat-1", text(bad))
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr, bad)
		assert.Equal(t, StateAwaitPhone, res.Session.State)
	}

	rig.handle(t, "chat-1", text("+393331234567"))
	res, err := rig.engine.Handle(context.Background(), "chat-1", text("short"))
	require.Error(t, err)
	assert.Equal(t, StateAwaitAddress, res.Session.State)
}

func TestInvalidDiscountReprompts(t *testing.T) {
	rig := newTestRig(t)
	rig.handle(t, "chat-1", Command{Kind: KindAdd, ProductID: "rice"})
	rig.handle(t, "chat-1", Command{Kind: KindCheckout})
	rig.handle(t, "chat-1", text("perugia"))
	rig.handle(t, "chat-1", text("Test Buyer"))
	rig.handle(t, "chat-1", text("+393331234567"))
	rig.handle(t, "chat-1", text("Via dei Priori 12, Perugia"))

	out, err := rig.engine.Handle(context.Background(), "chat-1", text("BOGUS"))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StateAwaitDiscount, out.Session.State)

	// Skipping after a rejected code continues without one.
	out = rig.handle(t, "chat-1", Command{Kind: KindSkip})
	assert.Equal(t, StateAwaitNotes, out.Session.State)
	assert.Empty(t, out.Session.Discount.Code)
}

func TestRemoteOrderCollectsPostal(t *testing.T) {
	rig := newTestRig(t)
	rig.handle(t, "chat-1", Command{Kind: KindAdd, ProductID: "rice"})
	rig.handle(t, "chat-1", Command{Kind: KindCheckout})
	rig.handle(t, "chat-1", text("italia"))
	rig.handle(t, "chat-1", text("Test Buyer"))
	rig.handle(t, "chat-1", text("+393331234567"))

	res := rig.handle(t, "chat-1", text("Via Roma 1, Milano"))
	assert.Equal(t, StateAwaitPostal, res.Session.State)

	_, err := rig.engine.Handle(context.Background(), "chat-1", text("601"))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	res = rig.handle(t, "chat-1", text("06100"))
	assert.Equal(t, StateAwaitDiscount, res.Session.State)
	assert.Equal(t, "06100", res.Session.PostalCode)
}

func TestRemoteConfirmStartsPayment(t *testing.T) {
	rig := newTestRig(t)
	rig.handle(t, "chat-1", Command{Kind: KindAdd, ProductID: "rice"})
	rig.handle(t, "chat-1", Command{Kind: KindCheckout, Destination: domain.DestRemote, NamePrefill: "Test Buyer"})
	rig.handle(t, "chat-1", text("+393331234567"))
	rig.handle(t, "chat-1", text("Via Roma 1, Milano"))
	rig.handle(t, "chat-1", text("06100"))
	rig.handle(t, "chat-1", Command{Kind: KindSkip})
	res := rig.handle(t, "chat-1", Command{Kind: KindSkip})
	require.Equal(t, StateReview, res.Session.State)

	res = rig.handle(t, "chat-1", Command{Kind: KindConfirm})
	assert.Equal(t, StateCommitting, res.Session.State)
	assert.Equal(t, "inv-42", res.InvoiceID)
	assert.Nil(t, res.Commit)
	assert.Equal(t, []string{"6.00"}, rig.gateway.amounts)
	// No commit yet; it waits for the payment event.
	assert.Empty(t, rig.committer.inputs)

	// Settlement finalizes the order.
	out, err := rig.engine.PaymentConfirmed(context.Background(), "chat-1")
	require.NoError(t, err)
	require.NotNil(t, out.Commit)
	assert.Equal(t, StateDone, out.Session.State)
}

func TestPaymentGatewayFailureStaysInReview(t *testing.T) {
	rig := newTestRig(t)
	rig.gateway.err = errors.New("provider down")
	rig.handle(t, "chat-1", Command{Kind: KindAdd, ProductID: "rice"})
	rig.handle(t, "chat-1", Command{Kind: KindCheckout, Destination: domain.DestRemote, NamePrefill: "Test Buyer"})
	rig.handle(t, "chat-1", text("+393331234567"))
	rig.handle(t, "chat-1", text("Via Roma 1, Milano"))
	rig.handle(t, "chat-1", text("06100"))
	rig.handle(t, "chat-1", Command{Kind: KindSkip})
	rig.handle(t, "chat-1", Command{Kind: KindSkip})

	res, err := rig.engine.Handle(context.Background(), "chat-1", Command{Kind: KindConfirm})
	var perr *domain.PaymentError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StateReview, res.Session.State)

	s, loadErr := rig.engine.Session(context.Background(), "chat-1")
	require.NoError(t, loadErr)
	assert.Equal(t, StateReview, s.State)
}

func TestPaymentConfirmedGuards(t *testing.T) {
	rig := newTestRig(t)

	_, err := rig.engine.PaymentConfirmed(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// A session not waiting on an invoice rejects the event.
	rig.handle(t, "chat-1", Command{Kind: KindAdd, ProductID: "rice"})
	_, err = rig.engine.PaymentConfirmed(context.Background(), "chat-1")
	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestPaymentFailedDropsSession(t *testing.T) {
	rig := newTestRig(t)
	rig.handle(t, "chat-1", Command{Kind: KindAdd, ProductID: "rice"})

	require.NoError(t, rig.engine.PaymentFailed(context.Background(), "chat-1"))
	_, err := rig.engine.Session(context.Background(), "chat-1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestCancelFromEveryFormState(t *testing.T) {
	steps := [][]Command{
		{},
		{{Kind: KindCheckout}},
		{{Kind: KindCheckout}, text("perugia")},
		{{Kind: KindCheckout}, text("perugia"), text("Test Buyer")},
		{{Kind: KindCheckout}, text("perugia"), text("Test Buyer"), text("+393331234567")},
		{{Kind: KindCheckout}, text("perugia"), text("Test Buyer"), text("+393331234567"), text("Via dei Priori 12, Perugia")},
		{{Kind: KindCheckout}, text("perugia"), text("Test Buyer"), text("+393331234567"), text("Via dei Priori 12, Perugia"), {Kind: KindSkip}},
		{{Kind: KindCheckout}, text("perugia"), text("Test Buyer"), text("+393331234567"), text("Via dei Priori 12, Perugia"), {Kind: KindSkip}, {Kind: KindSkip}},
	}

	for i, prefix := range steps {
		rig := newTestRig(t)
		rig.handle(t, "chat-1", Command{Kind: KindAdd, ProductID: "rice"})
		for _, cmd := range prefix {
			rig.handle(t, "chat-1", cmd)
		}

		res := rig.handle(t, "chat-1", Command{Kind: KindCancel})
		assert.Equal(t, StateCancelled, res.Session.State, "step %d", i)
		assert.True(t, res.Session.Cart.Empty(), "step %d", i)

		_, err := rig.engine.Session(context.Background(), "chat-1")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "step %d", i)
	}
}

func TestEditFromReview(t *testing.T) {
	rig := newTestRig(t)
	res := rig.fillCartLocal(t, "chat-1")
	require.Equal(t, StateReview, res.Session.State)

	res = rig.handle(t, "chat-1", Command{Kind: KindEdit, Field: FieldPhone})
	assert.Equal(t, StateAwaitPhone, res.Session.State)

	// The corrected field returns straight to REVIEW with the rest intact.
	res = rig.handle(t, "chat-1", text("+393479999999"))
	assert.Equal(t, StateReview, res.Session.State)
	assert.Equal(t, "+393479999999", res.Session.Phone)
	assert.Equal(t, "Via dei Priori 12, Perugia", res.Session.Address)
	assert.Equal(t, "WELCOME10", res.Session.Discount.Code)
}

func TestEditPostalBlockedForLocal(t *testing.T) {
	rig := newTestRig(t)
	res := rig.fillCartLocal(t, "chat-1")
	require.Equal(t, StateReview, res.Session.State)

	_, err := rig.engine.Handle(context.Background(), "chat-1", Command{Kind: KindEdit, Field: FieldPostal})
	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestEditDestinationToRemotePullsPostal(t *testing.T) {
	rig := newTestRig(t)
	res := rig.fillCartLocal(t, "chat-1")
	require.Equal(t, StateReview, res.Session.State)

	rig.handle(t, "chat-1", Command{Kind: KindEdit, Field: FieldDestination})
	res = rig.handle(t, "chat-1", text("italia"))
	// Remote now needs a CAP before returning to review.
	assert.Equal(t, StateAwaitPostal, res.Session.State)

	res = rig.handle(t, "chat-1", text("06100"))
	assert.Equal(t, StateReview, res.Session.State)
	assert.Equal(t, domain.DestRemote, res.Session.Destination)
	assert.Equal(t, "06100", res.Session.PostalCode)
}

func TestConflictKeepsOnlyUnavailableLines(t *testing.T) {
	rig := newTestRig(t)
	rig.committer.fn = func(in usecase.CommitOrderInput) (usecase.CommitResult, error) {
		order := &domain.Order{ID: "ord00001", Status: domain.StatusPartialFailure}
		for _, l := range in.Cart.Lines {
			if l.ProductID == "rice" {
				continue
			}
			order.Lines = append(order.Lines, domain.OrderLine{ProductID: l.ProductID, Qty: l.Qty, UnitPrice: l.UnitPrice})
		}
		return usecase.CommitResult{
			Order:     order,
			Conflicts: []domain.StockConflictError{{ProductID: "rice", Available: 0}},
		}, nil
	}

	res := rig.fillCartLocal(t, "chat-1")
	require.Equal(t, StateReview, res.Session.State)

	res = rig.handle(t, "chat-1", Command{Kind: KindConfirm})
	require.NotNil(t, res.Commit)
	assert.Equal(t, StateShopping, res.Session.State)

	// Only the conflicted line survives, so resubmitting cannot double-sell
	// the lentils that already committed.
	require.Len(t, res.Session.Cart.Lines, 1)
	assert.Equal(t, "rice", res.Session.Cart.Lines[0].ProductID)

	// The order draft is gone but the session persists.
	s, err := rig.engine.Session(context.Background(), "chat-1")
	require.NoError(t, err)
	assert.Empty(t, s.Phone)
	assert.Empty(t, s.Discount.Code)
}

func TestHardCommitErrorKeepsCart(t *testing.T) {
	rig := newTestRig(t)
	rig.committer.fn = func(usecase.CommitOrderInput) (usecase.CommitResult, error) {
		return usecase.CommitResult{}, &domain.ExternalServiceError{Op: "stock read", Err: errors.New("network down")}
	}

	res := rig.fillCartLocal(t, "chat-1")
	require.Equal(t, StateReview, res.Session.State)

	out, err := rig.engine.Handle(context.Background(), "chat-1", Command{Kind: KindConfirm})
	var ext *domain.ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, StateShopping, out.Session.State)

	s, loadErr := rig.engine.Session(context.Background(), "chat-1")
	require.NoError(t, loadErr)
	assert.Equal(t, 2, len(s.Cart.Lines))
	assert.Empty(t, s.Phone)
}

func TestCommandsRejectedOutsideTheirState(t *testing.T) {
	rig := newTestRig(t)
	rig.handle(t, "chat-1", Command{Kind: KindAdd, ProductID: "rice"})
	rig.handle(t, "chat-1", Command{Kind: KindCheckout})

	// Mid-form: no cart edits, no second checkout, no confirm.
	for _, cmd := range []Command{
		{Kind: KindAdd, ProductID: "lentil"},
		{Kind: KindDec, ProductID: "rice"},
		{Kind: KindCheckout},
		{Kind: KindConfirm},
		{Kind: KindEdit, Field: FieldPhone},
		{Kind: KindSkip},
	} {
		res, err := rig.engine.Handle(context.Background(), "chat-1", cmd)
		assert.ErrorIs(t, err, ErrNotAllowed, string(cmd.Kind))
		assert.Equal(t, StateAwaitDestination, res.Session.State)
	}
}
