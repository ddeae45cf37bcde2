package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pearlevents/event-booking/internal/model"
	"github.com/pearlevents/event-booking/internal/repository"
)

// TicketHandler manages the ticket tiers nested under an event. All
// routes are admin-only except listing, which the public event detail
// endpoint also covers.
type TicketHandler struct {
	Events  *repository.EventRepo
	Tickets *repository.TicketRepo
}

func NewTicketHandler(events *repository.EventRepo, tickets *repository.TicketRepo) *TicketHandler {
	if events == nil || tickets == nil {
		panic("nil repository passed to NewTicketHandler")
	}
	return &TicketHandler{Events: events, Tickets: tickets}
}

type ticketBody struct {
	Type       string `json:"type"`
	PriceCents uint32 `json:"price_cents"`
	Quantity   uint32 `json:"quantity"`
}

func (b *ticketBody) validate() string {
	b.Type = strings.TrimSpace(b.Type)
	if b.Type == "" {
		return "type is required"
	}
	if b.Quantity == 0 {
		return "quantity must be positive"
	}
	return ""
}

// List handles GET /v1/events/:id/tickets.
func (h *TicketHandler) List(c echo.Context) error {
	eventID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx := c.Request().Context()
	if _, err := h.Events.GetByID(ctx, eventID); err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load event"})
	}
	tickets, err := h.Tickets.ListByEvent(ctx, eventID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load tickets"})
	}
	out := make([]ticketResp, 0, len(tickets))
	for i := range tickets {
		out = append(out, toTicketResp(&tickets[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"data": out})
}

// Create handles POST /v1/events/:id/tickets (admin).
func (h *TicketHandler) Create(c echo.Context) error {
	eventID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var body ticketBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if msg := body.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	ctx := c.Request().Context()
	if _, err := h.Events.GetByID(ctx, eventID); err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load event"})
	}
	t := &model.Ticket{
		EventID:    eventID,
		Type:       body.Type,
		PriceCents: body.PriceCents,
		Quantity:   body.Quantity,
	}
	if err := h.Tickets.Create(ctx, t); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create ticket"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": toTicketResp(t)})
}

// Update handles PUT /v1/events/:id/tickets/:ticketID (admin). A
// capacity change keeps the sold count intact; shrinking below what is
// already sold is rejected with 409.
func (h *TicketHandler) Update(c echo.Context) error {
	eventID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ticketID, ok := pathID(c, "ticketID")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
	}
	var body ticketBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if msg := body.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	ctx := c.Request().Context()
	cur, err := h.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		if err == repository.ErrTicketNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load ticket"})
	}
	if cur.EventID != eventID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
	}
	t := &model.Ticket{
		ID:         ticketID,
		Type:       body.Type,
		PriceCents: body.PriceCents,
		Quantity:   body.Quantity,
	}
	switch err := h.Tickets.UpdateCapacity(ctx, t); err {
	case nil:
		return c.JSON(http.StatusOK, echo.Map{"data": toTicketResp(t)})
	case repository.ErrTicketNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
	case repository.ErrConflict:
		return c.JSON(http.StatusConflict, echo.Map{"error": "capacity below tickets already sold"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update ticket"})
	}
}

// Delete handles DELETE /v1/events/:id/tickets/:ticketID (admin).
func (h *TicketHandler) Delete(c echo.Context) error {
	eventID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ticketID, ok := pathID(c, "ticketID")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
	}
	ctx := c.Request().Context()
	cur, err := h.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		if err == repository.ErrTicketNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load ticket"})
	}
	if cur.EventID != eventID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
	}
	switch err := h.Tickets.Delete(ctx, ticketID); err {
	case nil:
		return c.NoContent(http.StatusNoContent)
	case repository.ErrTicketNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
	case repository.ErrConflict:
		return c.JSON(http.StatusConflict, echo.Map{"error": "ticket has bookings and cannot be deleted"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not delete ticket"})
	}
}
