package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	domain "github.com/wirangar/bazarino-bot/internal/entity"
	"github.com/wirangar/bazarino-bot/internal/logging"
	"github.com/wirangar/bazarino-bot/internal/session"
)

// SessionHandler exposes the engine to the bot frontend: one endpoint takes
// decoded commands, one reads the session back for rendering.
type SessionHandler struct {
	engine *session.Engine
}

func NewSessionHandler(engine *session.Engine) *SessionHandler {
	return &SessionHandler{engine: engine}
}

type cartLineView struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Weight    string `json:"weight,omitempty"`
	Qty       int    `json:"qty"`
	UnitPrice string `json:"unitPrice"`
	Subtotal  string `json:"subtotal"`
}

type sessionView struct {
	ID           string         `json:"id"`
	State        string         `json:"state"`
	Destination  string         `json:"destination,omitempty"`
	Name         string         `json:"name,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	Address      string         `json:"address,omitempty"`
	PostalCode   string         `json:"postalCode,omitempty"`
	Notes        string         `json:"notes,omitempty"`
	DiscountCode string         `json:"discountCode,omitempty"`
	Cart         []cartLineView `json:"cart"`
	CartTotal    string         `json:"cartTotal"`
	InvoiceID    string         `json:"invoiceId,omitempty"`
}

type orderView struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	Subtotal       string `json:"subtotal"`
	DiscountAmount string `json:"discountAmount"`
	Total          string `json:"total"`
	Lines          int    `json:"lines"`
}

type conflictView struct {
	ProductID string `json:"productId"`
	Available int    `json:"available"`
}

type commandResp struct {
	Session      sessionView    `json:"session"`
	Order        *orderView     `json:"order,omitempty"`
	Conflicts    []conflictView `json:"conflicts,omitempty"`
	InvoiceID    string         `json:"invoiceId,omitempty"`
	CatalogStale bool           `json:"catalogStale,omitempty"`
}

func viewSession(s *session.Session) sessionView {
	v := sessionView{
		ID:           s.ID,
		State:        string(s.State),
		Destination:  string(s.Destination),
		Name:         s.Name,
		Phone:        s.Phone,
		Address:      s.Address,
		PostalCode:   s.PostalCode,
		Notes:        s.Notes,
		DiscountCode: s.Discount.Code,
		Cart:         []cartLineView{},
		CartTotal:    s.Cart.Total().StringFixed(2),
		InvoiceID:    s.InvoiceID,
	}
	for _, l := range s.Cart.Lines {
		v.Cart = append(v.Cart, cartLineView{
			ProductID: l.ProductID,
			Name:      l.Name,
			Weight:    l.Weight,
			Qty:       l.Qty,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Subtotal:  l.Subtotal().StringFixed(2),
		})
	}
	return v
}

func viewResult(res *session.Result) commandResp {
	out := commandResp{
		Session:      viewSession(res.Session),
		InvoiceID:    res.InvoiceID,
		CatalogStale: res.CatalogStale,
	}
	if res.Commit != nil {
		if o := res.Commit.Order; o != nil {
			out.Order = &orderView{
				ID:             o.ID,
				Status:         string(o.Status),
				Subtotal:       o.Subtotal().StringFixed(2),
				DiscountAmount: o.DiscountAmount.StringFixed(2),
				Total:          o.Total.StringFixed(2),
				Lines:          len(o.Lines),
			}
		}
		for _, cf := range res.Commit.Conflicts {
			out.Conflicts = append(out.Conflicts, conflictView{ProductID: cf.ProductID, Available: cf.Available})
		}
	}
	return out
}

// HandleCommand applies one decoded chat command to a session.
// POST /v1/sessions/:id/commands
func (h *SessionHandler) HandleCommand(c *gin.Context) {
	var cmd session.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	res, err := h.engine.Handle(ctx, c.Param("id"), cmd)
	if err != nil {
		writeEngineError(c, res, err)
		return
	}
	c.JSON(http.StatusOK, viewResult(res))
}

// GetSession returns the current session for rendering.
// GET /v1/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	s, err := h.engine.Session(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "try_again_later"})
		return
	}
	c.JSON(http.StatusOK, viewSession(s))
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses. The
// session state in the body is always current, so the frontend can re-prompt
// without another round trip.
func writeEngineError(c *gin.Context, res *session.Result, err error) {
	body := gin.H{"error": "internal"}
	status := http.StatusInternalServerError

	var (
		ve       *domain.ValidationError
		insuff   *domain.InsufficientStockError
		payErr   *domain.PaymentError
		external *domain.ExternalServiceError
	)
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
		body = gin.H{"error": "validation", "field": ve.Field, "reason": ve.Reason}
	case errors.As(err, &insuff):
		status = http.StatusConflict
		body = gin.H{"error": "insufficient_stock", "productId": insuff.ProductID, "available": insuff.Available}
	case errors.Is(err, domain.ErrProductNotFound):
		status = http.StatusNotFound
		body = gin.H{"error": "item_unavailable"}
	case errors.Is(err, domain.ErrEmptyCart):
		status = http.StatusBadRequest
		body = gin.H{"error": "empty_cart"}
	case errors.Is(err, session.ErrNotAllowed):
		status = http.StatusConflict
		body = gin.H{"error": "not_allowed"}
	case errors.As(err, &payErr):
		status = http.StatusBadGateway
		body = gin.H{"error": "payment_failed", "reference": payErr.Reference}
	case errors.As(err, &external):
		status = http.StatusServiceUnavailable
		body = gin.H{"error": "try_again_later"}
	default:
		logging.From(c).Error("unhandled engine error", "err", err)
	}

	if res != nil && res.Session != nil {
		body["session"] = viewSession(res.Session)
	}
	c.JSON(status, body)
}
