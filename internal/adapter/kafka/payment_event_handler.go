package kafka

import (
	"context"
	"errors"
	"log/slog"

	domain "github.com/wirangar/bazarino-bot/internal/entity"
	"github.com/wirangar/bazarino-bot/internal/logging"
	"github.com/wirangar/bazarino-bot/internal/session"
	"github.com/wirangar/bazarino-bot/internal/usecase"
)

// PaymentEventHandler drives the session engine's alternate entry into
// COMMITTING: a PAID event finalizes the waiting order, a FAILED event drops
// the session.
type PaymentEventHandler struct {
	engine *session.Engine
	log    *slog.Logger
}

func NewPaymentEventHandler(engine *session.Engine) *PaymentEventHandler {
	return &PaymentEventHandler{engine: engine, log: logging.New("payments")}
}

func (h *PaymentEventHandler) Handle(ctx context.Context, ev usecase.PaymentEventMsg) error {
	switch ev.Status {
	case "PAID":
		res, err := h.engine.PaymentConfirmed(ctx, ev.Reference)
		if err != nil {
			// A session that is gone or not waiting is stale provider noise;
			// ack it rather than redelivering forever.
			if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, session.ErrNotAllowed) {
				h.log.Warn("payment event for non-waiting session", "reference", ev.Reference)
				return nil
			}
			return err
		}
		if res.Commit != nil && res.Commit.Order != nil {
			h.log.Info("paid order committed",
				"order", res.Commit.Order.ID,
				"status", string(res.Commit.Order.Status),
			)
		}
		return nil
	case "FAILED":
		return h.engine.PaymentFailed(ctx, ev.Reference)
	default:
		h.log.Warn("unknown payment status", "status", ev.Status, "reference", ev.Reference)
		return nil
	}
}
