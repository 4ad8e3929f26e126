package session

import (
	"context"
	"errors"
	"regexp"
	"strings"

	domain "github.com/wirangar/bazarino-bot/internal/entity"
)

var (
	phoneRe  = regexp.MustCompile(`^\+?\d{8,15}$`)
	postalRe = regexp.MustCompile(`^\d{5}$`)
)

// acceptFunc validates one text answer and, when valid, writes it into the
// session. A returned *domain.ValidationError leaves the state unchanged so
// the boundary can re-prompt.
type acceptFunc func(e *Engine, ctx context.Context, s *Session, text string) error

// formStep is one row of the conversation's transition table. The forward
// edge is computed by nextState; skippable steps also accept KindSkip.
type formStep struct {
	field     Field
	skippable bool
	accept    acceptFunc
}

var formSteps = map[State]formStep{
	StateAwaitDestination: {field: FieldDestination, accept: acceptDestination},
	StateAwaitName:        {field: FieldName, accept: acceptName},
	StateAwaitPhone:       {field: FieldPhone, accept: acceptPhone},
	StateAwaitAddress:     {field: FieldAddress, accept: acceptAddress},
	StateAwaitPostal:      {field: FieldPostal, accept: acceptPostal},
	StateAwaitDiscount:    {field: FieldDiscount, skippable: true, accept: acceptDiscount},
	StateAwaitNotes:       {field: FieldNotes, skippable: true, accept: acceptNotes},
}

// nextState walks the linear chain, applying the two skip rules: the name
// step is skipped when the chat profile already filled it, and the postal
// step only exists for remote destinations. A pending ReturnTo short-circuits
// back to REVIEW once the edited field (and any field it newly requires) is
// collected.
func nextState(s *Session, from State) State {
	if s.ReturnTo == StateReview {
		// Switching an order to REMOTE while editing from REVIEW pulls in
		// the postal step before returning.
		if from == StateAwaitDestination && s.Destination == domain.DestRemote && s.PostalCode == "" {
			return StateAwaitPostal
		}
		s.ReturnTo = ""
		return StateReview
	}

	switch from {
	case StateAwaitDestination:
		if s.Name != "" {
			return StateAwaitPhone
		}
		return StateAwaitName
	case StateAwaitName:
		return StateAwaitPhone
	case StateAwaitPhone:
		return StateAwaitAddress
	case StateAwaitAddress:
		if s.Destination == domain.DestLocal {
			return StateAwaitDiscount
		}
		return StateAwaitPostal
	case StateAwaitPostal:
		return StateAwaitDiscount
	case StateAwaitDiscount:
		return StateAwaitNotes
	case StateAwaitNotes:
		return StateReview
	}
	return StateReview
}

func acceptDestination(_ *Engine, _ context.Context, s *Session, text string) error {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "local", "perugia":
		s.Destination = domain.DestLocal
		s.PostalCode = "" // not collected for local orders
	case "remote", "italia", "italy":
		s.Destination = domain.DestRemote
	default:
		return &domain.ValidationError{Field: "destination", Reason: "choose perugia or italia"}
	}
	return nil
}

func acceptName(_ *Engine, _ context.Context, s *Session, text string) error {
	name := strings.TrimSpace(text)
	if name == "" {
		return &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	s.Name = name
	return nil
}

func acceptPhone(_ *Engine, _ context.Context, s *Session, text string) error {
	phone := strings.TrimSpace(text)
	if !phoneRe.MatchString(phone) {
		return &domain.ValidationError{Field: "phone", Reason: "expected 8-15 digits, optional leading +"}
	}
	s.Phone = phone
	return nil
}

func acceptAddress(_ *Engine, _ context.Context, s *Session, text string) error {
	addr := strings.TrimSpace(text)
	if len(addr) <= 10 || !strings.ContainsAny(addr, "0123456789") {
		return &domain.ValidationError{Field: "address", Reason: "too short or missing street number"}
	}
	s.Address = addr
	return nil
}

func acceptPostal(_ *Engine, _ context.Context, s *Session, text string) error {
	cap := strings.TrimSpace(text)
	if !postalRe.MatchString(cap) {
		return &domain.ValidationError{Field: "postal", Reason: "expected a 5-digit CAP"}
	}
	s.PostalCode = cap
	return nil
}

// acceptDiscount asks the resolver; an unknown or expired code re-prompts
// the same state rather than failing the order.
func acceptDiscount(e *Engine, ctx context.Context, s *Session, text string) error {
	d, err := e.discounts.Resolve(ctx, text)
	if err != nil {
		if errors.Is(err, domain.ErrDiscountInvalid) {
			return &domain.ValidationError{Field: "discount", Reason: "unknown or expired code"}
		}
		return err
	}
	s.Discount = d
	return nil
}

func acceptNotes(_ *Engine, _ context.Context, s *Session, text string) error {
	notes := strings.TrimSpace(text)
	if notes == "" {
		notes = "-"
	}
	s.Notes = notes
	return nil
}

// skipStep applies the skip default for an optional step.
func skipStep(s *Session, state State) {
	switch state {
	case StateAwaitDiscount:
		s.Discount = domain.DiscountCode{}
	case StateAwaitNotes:
		s.Notes = "-"
	}
}
