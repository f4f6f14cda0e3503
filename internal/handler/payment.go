package handler // handler defines http handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/club-payments/internal/model"
	"github.com/iliyamo/club-payments/internal/repository"
)

// PaymentEvents is told about every payment that was saved.
type PaymentEvents interface {
	PaymentRecorded(ctx context.Context, p *model.Payment)
}

// PaymentHandler exposes a PaymentStore over JSON.
type PaymentHandler struct {
	Store  repository.PaymentStore
	Events PaymentEvents // optional
	Log    zerolog.Logger
}

// NewPaymentHandler constructs a PaymentHandler and panics if store is nil.
func NewPaymentHandler(store repository.PaymentStore, events PaymentEvents, log zerolog.Logger) *PaymentHandler {
	if store == nil {
		panic("nil store passed to NewPaymentHandler")
	}
	return &PaymentHandler{Store: store, Events: events, Log: log}
}

type itemBody struct {
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type paymentBody struct {
	Tickets     []itemBody `json:"tickets"`
	Consumables []itemBody `json:"consumables"`
	CoatCheck   *itemBody  `json:"coat_check"`
}

type paymentResponse struct {
	ID          *int64     `json:"id"`
	Tickets     []itemBody `json:"tickets"`
	Consumables []itemBody `json:"consumables"`
	CoatCheck   *itemBody  `json:"coat_check"`
	Total       string     `json:"total"`
	Summary     bool       `json:"summary,omitempty"`
}

func toResponse(p *model.Payment) paymentResponse {
	out := paymentResponse{
		Tickets:     toBodies(p.Tickets()),
		Consumables: toBodies(p.Consumables()),
		Total:       p.TotalPrice().StringFixed(2),
		Summary:     p.Summary(),
	}
	if id, ok := p.ID(); ok {
		out.ID = &id
	}
	if cc := p.CoatCheck(); cc != nil {
		out.CoatCheck = &itemBody{Description: cc.Description, UnitPrice: cc.UnitPrice}
	}
	return out
}

func toBodies(items []model.LineItem) []itemBody {
	out := make([]itemBody, 0, len(items))
	for _, it := range items {
		out = append(out, itemBody{Description: it.Description, UnitPrice: it.UnitPrice})
	}
	return out
}

// toItems validates and converts request items of one kind.
func toItems(in []itemBody, build func(string, decimal.Decimal) model.LineItem) ([]model.LineItem, error) {
	out := make([]model.LineItem, 0, len(in))
	for _, b := range in {
		it, err := toItem(b, build)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

func toItem(b itemBody, build func(string, decimal.Decimal) model.LineItem) (model.LineItem, error) {
	desc := strings.TrimSpace(b.Description)
	if desc == "" {
		return model.LineItem{}, errors.New("description is required")
	}
	if b.UnitPrice.IsNegative() {
		return model.LineItem{}, errors.New("unit_price must not be negative")
	}
	return build(desc, b.UnitPrice.Round(2)), nil
}

// bindPayment reads the request body into the parts of a payment.
func bindPayment(c echo.Context) (tickets, consumables []model.LineItem, coat *model.LineItem, err error) {
	var body paymentBody
	if err := c.Bind(&body); err != nil {
		return nil, nil, nil, errors.New("invalid request body")
	}
	if tickets, err = toItems(body.Tickets, model.Ticket); err != nil {
		return nil, nil, nil, err
	}
	if consumables, err = toItems(body.Consumables, model.Consumable); err != nil {
		return nil, nil, nil, err
	}
	if body.CoatCheck != nil {
		it, err := toItem(*body.CoatCheck, model.CoatCheck)
		if err != nil {
			return nil, nil, nil, err
		}
		coat = &it
	}
	return tickets, consumables, coat, nil
}

func parseID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id >= 0
}

// storeError maps a PaymentStore error to a response.
func (h *PaymentHandler) storeError(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "payment not found"})
	case errors.Is(err, repository.ErrUnsupported):
		return c.JSON(http.StatusNotImplemented, map[string]string{"error": "operation not supported"})
	case errors.Is(err, repository.ErrStorage):
		h.Log.Error().Str("op", op).Err(err).Msg("storage unavailable")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "storage unavailable"})
	}
	h.Log.Error().Str("op", op).Err(err).Msg("unexpected store error")
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

// CreatePayment handles POST /v1/payments
func (h *PaymentHandler) CreatePayment(c echo.Context) error {
	tickets, consumables, coat, err := bindPayment(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	p := model.NewPayment(tickets, consumables, coat)
	ctx := c.Request().Context()
	if err := h.Store.Save(ctx, p); err != nil {
		return h.storeError(c, "save", err)
	}
	if h.Events != nil {
		h.Events.PaymentRecorded(ctx, p)
	}
	return c.JSON(http.StatusCreated, toResponse(p))
}

// ListPayments handles GET /v1/payments
func (h *PaymentHandler) ListPayments(c echo.Context) error {
	all, err := h.Store.FindAll(c.Request().Context())
	if err != nil {
		return h.storeError(c, "find_all", err)
	}
	out := make([]paymentResponse, 0, len(all))
	for _, p := range all {
		out = append(out, toResponse(p))
	}
	return c.JSON(http.StatusOK, map[string]any{"items": out, "count": len(out)})
}

// GetPayment handles GET /v1/payments/:id
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}
	p, err := h.Store.FindByID(c.Request().Context(), id)
	if err != nil {
		return h.storeError(c, "find", err)
	}
	return c.JSON(http.StatusOK, toResponse(p))
}

// UpdatePayment handles PUT /v1/payments/:id and replaces every line item.
func (h *PaymentHandler) UpdatePayment(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}
	tickets, consumables, coat, err := bindPayment(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	p := model.NewPaymentWithID(id, tickets, consumables, coat)
	if err := h.Store.Update(c.Request().Context(), p); err != nil {
		return h.storeError(c, "update", err)
	}
	return c.JSON(http.StatusOK, toResponse(p))
}

// DeletePayment handles DELETE /v1/payments/:id.  Deleting an absent id
// succeeds.
func (h *PaymentHandler) DeletePayment(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}
	if err := h.Store.Delete(c.Request().Context(), id); err != nil {
		return h.storeError(c, "delete", err)
	}
	return c.NoContent(http.StatusNoContent)
}
