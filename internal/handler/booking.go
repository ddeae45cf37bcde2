package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pearlevents/event-booking/internal/queue"
	"github.com/pearlevents/event-booking/internal/repository"
	"github.com/pearlevents/event-booking/internal/reservation"
	queue_publisher "github.com/pearlevents/event-booking/internal/service"
)

// BookingQueries is the read side the booking handler needs. The write
// path goes through the reservation core exclusively.
type BookingQueries interface {
	GetDetail(ctx context.Context, id uint64) (*repository.BookingDetail, error)
	List(ctx context.Context, f repository.BookingFilter) ([]repository.BookingDetail, error)
	StatisticsForUser(ctx context.Context, userID uint64, now time.Time) (*repository.Statistics, error)
}

// BookingHandler serves the booking endpoints. Stock-affecting
// operations delegate to the reservation core; reads go straight to
// the repository. Publish is called after a booking commits and is
// best-effort: its error is logged, never surfaced.
type BookingHandler struct {
	Reservations *reservation.Service
	Queries      BookingQueries
	Publish      func(ctx context.Context, event queue.BookingCreatedEvent) error
}

// NewBookingHandler wires the handler with the production publisher.
func NewBookingHandler(svc *reservation.Service, bookings *repository.BookingRepo) *BookingHandler {
	if svc == nil || bookings == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{
		Reservations: svc,
		Queries:      bookings,
		Publish:      queue_publisher.PublishBookingCreated,
	}
}

// reservationError maps reservation core sentinels to HTTP responses.
// Insufficient stock responds 400 with the requested and available
// counts so clients can offer the remaining amount.
func reservationError(c echo.Context, err error) error {
	var stockErr *reservation.InsufficientStockError
	switch {
	case errors.Is(err, reservation.ErrTicketNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
	case errors.Is(err, reservation.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, reservation.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, reservation.ErrInvalidQuantity):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must be at least 1"})
	case errors.As(err, &stockErr):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":     "not enough tickets available",
			"ticket_id": stockErr.TicketID,
			"requested": stockErr.Requested,
			"available": stockErr.Available,
		})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "booking operation failed"})
	}
}

func bookingFilterFromQuery(c echo.Context, userID uint64) repository.BookingFilter {
	f := repository.BookingFilter{UserID: userID}
	switch c.QueryParam("filter") {
	case "upcoming":
		f.Upcoming = true
	case "past":
		f.Past = true
	}
	return f
}

// List handles GET /v1/bookings. Clients see their own bookings;
// admins see everyone's.
func (h *BookingHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if isAdmin(c) {
		uid = 0
	}
	details, err := h.Queries.List(c.Request().Context(), bookingFilterFromQuery(c, uid))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list bookings"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": details})
}

// Upcoming handles GET /v1/bookings/upcoming for the calling user.
func (h *BookingHandler) Upcoming(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	details, err := h.Queries.List(c.Request().Context(), repository.BookingFilter{UserID: uid, Upcoming: true})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list bookings"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": details})
}

// Past handles GET /v1/bookings/past for the calling user.
func (h *BookingHandler) Past(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	details, err := h.Queries.List(c.Request().Context(), repository.BookingFilter{UserID: uid, Past: true})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list bookings"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": details})
}

// Statistics handles GET /v1/bookings/statistics for the calling user.
func (h *BookingHandler) Statistics(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	stats, err := h.Queries.StatisticsForUser(c.Request().Context(), uid, time.Now().UTC())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute statistics"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": stats})
}

// Get handles GET /v1/bookings/:id. A booking is visible to its owner
// and to admins only.
func (h *BookingHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	d, err := h.Queries.GetDetail(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load booking"})
	}
	if d.UserID != uid && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": d})
}

type createBookingBody struct {
	TicketID uint64 `json:"ticket_id"`
	Quantity uint32 `json:"quantity"`
	// UserID lets an admin book on behalf of another user. Ignored for
	// non-admin callers.
	UserID uint64 `json:"user_id,omitempty"`
}

// Create handles POST /v1/bookings. On success the stock decrement and
// the booking row have committed atomically; the confirmation event is
// then published outside the transaction.
func (h *BookingHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body createBookingBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.TicketID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ticket_id is required"})
	}
	forUser := uid
	if body.UserID != 0 && isAdmin(c) {
		forUser = body.UserID
	}
	ctx := c.Request().Context()
	b, err := h.Reservations.CreateBooking(ctx, body.TicketID, body.Quantity, forUser)
	if err != nil {
		return reservationError(c, err)
	}
	d, err := h.Queries.GetDetail(ctx, b.ID)
	if err != nil {
		// The booking committed; respond with the bare record.
		log.Printf("booking %d: detail load after create failed: %v", b.ID, err)
		return c.JSON(http.StatusCreated, echo.Map{"data": b})
	}
	h.publishCreated(d)
	return c.JSON(http.StatusCreated, echo.Map{"data": d})
}

// publishCreated emits the post-commit notification event. Failures
// are logged and swallowed: the booking already exists either way.
func (h *BookingHandler) publishCreated(d *repository.BookingDetail) {
	if h.Publish == nil {
		return
	}
	ev := queue.BookingCreatedEvent{
		BookingID:       d.ID,
		Reference:       d.Reference,
		UserID:          d.UserID,
		UserName:        d.UserName,
		UserEmail:       d.UserEmail,
		EventID:         d.EventID,
		EventName:       d.EventName,
		EventLocation:   d.EventLocation,
		EventDate:       d.EventDate.UTC().Format(time.RFC3339),
		TicketID:        d.TicketID,
		TicketType:      d.TicketType,
		PriceCents:      d.PriceCents,
		Quantity:        d.Quantity,
		TotalPriceCents: d.TotalPriceCents,
		CreatedAt:       d.CreatedAt.UTC().Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.Publish(ctx, ev); err != nil {
			log.Printf("booking %d: publish booking.created failed: %v", ev.BookingID, err)
		}
	}()
}

type updateBookingBody struct {
	TicketID *uint64 `json:"ticket_id"`
	Quantity *uint32 `json:"quantity"`
}

// Update handles PUT /v1/bookings/:id. Omitted fields keep their
// current value; sending the current values back is a successful no-op.
func (h *BookingHandler) Update(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body updateBookingBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ctx := c.Request().Context()
	req := reservation.UpdateRequest{TicketID: body.TicketID, Quantity: body.Quantity}
	b, err := h.Reservations.UpdateBooking(ctx, id, req, actor)
	if err != nil {
		return reservationError(c, err)
	}
	d, err := h.Queries.GetDetail(ctx, b.ID)
	if err != nil {
		log.Printf("booking %d: detail load after update failed: %v", b.ID, err)
		return c.JSON(http.StatusOK, echo.Map{"data": b})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": d})
}

// Delete handles DELETE /v1/bookings/:id. Cancelling returns the
// booking's full quantity to its tier.
func (h *BookingHandler) Delete(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	if err := h.Reservations.CancelBooking(c.Request().Context(), id, actor); err != nil {
		return reservationError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListForUser handles GET /v1/users/:id/bookings (admin).
func (h *BookingHandler) ListForUser(c echo.Context) error {
	userID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	details, err := h.Queries.List(c.Request().Context(), bookingFilterFromQuery(c, userID))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list bookings"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": details})
}
