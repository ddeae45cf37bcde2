package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pearlevents/event-booking/internal/model"
	"github.com/pearlevents/event-booking/internal/repository"
)

// EventHandler serves event browsing for everyone and event management
// for admins. Role enforcement happens in middleware; handlers only
// assume an authenticated user for mutations.
type EventHandler struct {
	Events  *repository.EventRepo
	Tickets *repository.TicketRepo
}

// NewEventHandler constructs an EventHandler. Dependencies must be non-nil.
func NewEventHandler(events *repository.EventRepo, tickets *repository.TicketRepo) *EventHandler {
	if events == nil || tickets == nil {
		panic("nil repository passed to NewEventHandler")
	}
	return &EventHandler{Events: events, Tickets: tickets}
}

type eventResp struct {
	ID          uint64       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Location    string       `json:"location"`
	Date        time.Time    `json:"date"`
	Pictures    []string     `json:"pictures"`
	Tickets     []ticketResp `json:"tickets,omitempty"`
}

type ticketResp struct {
	ID         uint64 `json:"id"`
	EventID    uint64 `json:"event_id"`
	Type       string `json:"type"`
	PriceCents uint32 `json:"price_cents"`
	Quantity   uint32 `json:"quantity"`
	Sold       uint32 `json:"tickets_sold"`
	Available  uint32 `json:"available"`
}

func toEventResp(e *model.Event) eventResp {
	return eventResp{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Location:    e.Location,
		Date:        e.Date,
		Pictures:    e.Pictures,
	}
}

func toTicketResp(t *model.Ticket) ticketResp {
	return ticketResp{
		ID:         t.ID,
		EventID:    t.EventID,
		Type:       t.Type,
		PriceCents: t.PriceCents,
		Quantity:   t.Quantity,
		Sold:       t.Sold(),
		Available:  t.Available,
	}
}

// List handles GET /v1/events. Query parameters: filter=upcoming|past,
// q=<search text>.
func (h *EventHandler) List(c echo.Context) error {
	f := repository.EventFilter{Search: c.QueryParam("q")}
	switch c.QueryParam("filter") {
	case "upcoming":
		f.Upcoming = true
	case "past":
		f.Past = true
	}
	events, err := h.Events.List(c.Request().Context(), f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list events"})
	}
	out := make([]eventResp, 0, len(events))
	for i := range events {
		out = append(out, toEventResp(&events[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"data": out})
}

// Get handles GET /v1/events/:id and includes the event's ticket tiers
// with live availability.
func (h *EventHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx := c.Request().Context()
	e, err := h.Events.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load event"})
	}
	tickets, err := h.Tickets.ListByEvent(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load tickets"})
	}
	resp := toEventResp(e)
	resp.Tickets = make([]ticketResp, 0, len(tickets))
	for i := range tickets {
		resp.Tickets = append(resp.Tickets, toTicketResp(&tickets[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"data": resp})
}

type eventBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Date        string `json:"date"` // RFC3339
}

func (b *eventBody) validate() (time.Time, string) {
	b.Name = strings.TrimSpace(b.Name)
	b.Location = strings.TrimSpace(b.Location)
	if b.Name == "" {
		return time.Time{}, "name is required"
	}
	if b.Location == "" {
		return time.Time{}, "location is required"
	}
	date, err := time.Parse(time.RFC3339, strings.TrimSpace(b.Date))
	if err != nil {
		return time.Time{}, "invalid date format, want RFC3339"
	}
	return date.UTC(), ""
}

// Create handles POST /v1/events (admin).
func (h *EventHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body eventBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	date, msg := body.validate()
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	e := &model.Event{
		UserID:      uid,
		Name:        body.Name,
		Description: body.Description,
		Location:    body.Location,
		Date:        date,
	}
	if err := h.Events.Create(c.Request().Context(), e); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create event"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": toEventResp(e)})
}

// Update handles PUT /v1/events/:id (admin).
func (h *EventHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var body eventBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	date, msg := body.validate()
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	ctx := c.Request().Context()
	e, err := h.Events.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load event"})
	}
	e.Name = body.Name
	e.Description = body.Description
	e.Location = body.Location
	e.Date = date
	if err := h.Events.Update(ctx, e); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update event"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": toEventResp(e)})
}

// Delete handles DELETE /v1/events/:id (admin). Events with bookings
// cannot be deleted.
func (h *EventHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	switch err := h.Events.Delete(c.Request().Context(), id); err {
	case nil:
		return c.NoContent(http.StatusNoContent)
	case repository.ErrEventNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	case repository.ErrConflict:
		return c.JSON(http.StatusConflict, echo.Map{"error": "event has bookings and cannot be deleted"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not delete event"})
	}
}

type pictureBody struct {
	URL string `json:"url"`
}

// AddPicture handles POST /v1/events/:id/pictures (admin). Only the
// URL is stored; upload and hosting live outside this service.
func (h *EventHandler) AddPicture(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var body pictureBody
	if err := c.Bind(&body); err != nil || strings.TrimSpace(body.URL) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "url is required"})
	}
	ctx := c.Request().Context()
	e, err := h.Events.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load event"})
	}
	pics := append(e.Pictures, strings.TrimSpace(body.URL))
	if err := h.Events.UpdatePictures(ctx, id, pics); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update pictures"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": pics})
}

// RemovePicture handles DELETE /v1/events/:id/pictures (admin).
func (h *EventHandler) RemovePicture(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var body pictureBody
	if err := c.Bind(&body); err != nil || strings.TrimSpace(body.URL) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "url is required"})
	}
	ctx := c.Request().Context()
	e, err := h.Events.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load event"})
	}
	url := strings.TrimSpace(body.URL)
	pics := make([]string, 0, len(e.Pictures))
	for _, p := range e.Pictures {
		if p != url {
			pics = append(pics, p)
		}
	}
	if err := h.Events.UpdatePictures(ctx, id, pics); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update pictures"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": pics})
}
