package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pearlevents/event-booking/internal/model"
	"github.com/pearlevents/event-booking/internal/queue"
	"github.com/pearlevents/event-booking/internal/repository"
	"github.com/pearlevents/event-booking/internal/reservation"
)

// memQueries adapts a reservation.MemoryStore to the handler's read
// interface. Details are assembled from the store plus fixed event and
// user attributes; only the fields the tests assert on matter.
type memQueries struct {
	store  *reservation.MemoryStore
	prices map[uint64]uint32
}

func (q *memQueries) detail(b model.Booking) *repository.BookingDetail {
	price := q.prices[b.TicketID]
	return &repository.BookingDetail{
		ID:              b.ID,
		Reference:       b.Reference(),
		UserID:          b.UserID,
		UserName:        "Test User",
		UserEmail:       "user@example.com",
		EventID:         b.EventID,
		EventName:       "Summer Gala",
		EventLocation:   "Main Hall",
		EventDate:       time.Now().Add(48 * time.Hour).UTC(),
		TicketID:        b.TicketID,
		TicketType:      "VIP",
		PriceCents:      price,
		Quantity:        b.Quantity,
		TotalPriceCents: uint64(b.Quantity) * uint64(price),
		CreatedAt:       b.CreatedAt,
	}
}

func (q *memQueries) GetDetail(ctx context.Context, id uint64) (*repository.BookingDetail, error) {
	b, ok := q.store.Booking(id)
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return q.detail(b), nil
}

func (q *memQueries) List(ctx context.Context, f repository.BookingFilter) ([]repository.BookingDetail, error) {
	var out []repository.BookingDetail
	for _, b := range q.store.Bookings() {
		if f.UserID != 0 && b.UserID != f.UserID {
			continue
		}
		out = append(out, *q.detail(b))
	}
	return out, nil
}

func (q *memQueries) StatisticsForUser(ctx context.Context, userID uint64, now time.Time) (*repository.Statistics, error) {
	s := &repository.Statistics{}
	for _, b := range q.store.Bookings() {
		if b.UserID != userID {
			continue
		}
		s.TotalBookings++
		s.TotalTicketsBooked += int(b.Quantity)
		s.TotalSpentCents += uint64(b.Quantity) * uint64(q.prices[b.TicketID])
	}
	return s, nil
}

type bookingFixture struct {
	handler   *BookingHandler
	store     *reservation.MemoryStore
	published chan queue.BookingCreatedEvent
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	store := reservation.NewMemoryStore()
	store.AddTicket(model.Ticket{ID: 1, EventID: 10, Type: "VIP", PriceCents: 5000, Quantity: 10})
	store.AddTicket(model.Ticket{ID: 2, EventID: 10, Type: "Regular", PriceCents: 2000, Quantity: 3})

	published := make(chan queue.BookingCreatedEvent, 4)
	f := &bookingFixture{
		store:     store,
		published: published,
		handler: &BookingHandler{
			Reservations: reservation.NewService(store),
			Queries:      &memQueries{store: store, prices: map[uint64]uint32{1: 5000, 2: 2000}},
			Publish: func(ctx context.Context, ev queue.BookingCreatedEvent) error {
				published <- ev
				return nil
			},
		},
	}
	return f
}

// request runs one handler invocation with an authenticated identity in
// context, the way the JWT middleware would leave it.
func (f *bookingFixture) request(t *testing.T, method, target string, body string, userID uint64, role string, paramNames []string, paramValues []string, h echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	// JWT claims decode as float64.
	c.Set("user_id", float64(userID))
	c.Set("role", role)
	c.SetParamNames(paramNames...)
	c.SetParamValues(paramValues...)
	require.NoError(t, h(c))
	return rec
}

func TestCreateBookingHandler(t *testing.T) {
	f := newBookingFixture(t)

	rec := f.request(t, http.MethodPost, "/v1/bookings", `{"ticket_id":1,"quantity":3}`,
		7, model.RoleClient, nil, nil, f.handler.Create)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Data repository.BookingDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(7), resp.Data.UserID)
	assert.Equal(t, uint32(3), resp.Data.Quantity)
	assert.Equal(t, uint64(15000), resp.Data.TotalPriceCents)

	tier, _ := f.store.Ticket(1)
	assert.Equal(t, uint32(7), tier.Available)

	select {
	case ev := <-f.published:
		assert.Equal(t, resp.Data.ID, ev.BookingID)
		assert.Equal(t, resp.Data.Reference, ev.Reference)
		assert.Equal(t, uint32(3), ev.Quantity)
	case <-time.After(time.Second):
		t.Fatal("booking.created event was not published")
	}
}

func TestCreateBookingHandlerInsufficientStock(t *testing.T) {
	f := newBookingFixture(t)

	rec := f.request(t, http.MethodPost, "/v1/bookings", `{"ticket_id":2,"quantity":5}`,
		7, model.RoleClient, nil, nil, f.handler.Create)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 5, resp["requested"])
	assert.EqualValues(t, 3, resp["available"])

	assert.Equal(t, 0, f.store.BookingCount())
	tier, _ := f.store.Ticket(2)
	assert.Equal(t, uint32(3), tier.Available)
	assert.Empty(t, f.published)
}

func TestCreateBookingHandlerUnknownTicket(t *testing.T) {
	f := newBookingFixture(t)
	rec := f.request(t, http.MethodPost, "/v1/bookings", `{"ticket_id":99,"quantity":1}`,
		7, model.RoleClient, nil, nil, f.handler.Create)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateBookingHandlerAdminOnBehalf(t *testing.T) {
	f := newBookingFixture(t)

	rec := f.request(t, http.MethodPost, "/v1/bookings", `{"ticket_id":1,"quantity":2,"user_id":42}`,
		1, model.RoleAdmin, nil, nil, f.handler.Create)
	require.Equal(t, http.StatusCreated, rec.Code)

	bookings := f.store.Bookings()
	require.Len(t, bookings, 1)
	assert.Equal(t, uint64(42), bookings[0].UserID)
}

func TestCreateBookingHandlerClientCannotBookForOthers(t *testing.T) {
	f := newBookingFixture(t)

	rec := f.request(t, http.MethodPost, "/v1/bookings", `{"ticket_id":1,"quantity":2,"user_id":42}`,
		7, model.RoleClient, nil, nil, f.handler.Create)
	require.Equal(t, http.StatusCreated, rec.Code)

	bookings := f.store.Bookings()
	require.Len(t, bookings, 1)
	assert.Equal(t, uint64(7), bookings[0].UserID)
}

func TestDeleteBookingHandler(t *testing.T) {
	f := newBookingFixture(t)
	b, err := f.handler.Reservations.CreateBooking(context.Background(), 1, 4, 7)
	require.NoError(t, err)

	rec := f.request(t, http.MethodDelete, "/v1/bookings/"+strconv.FormatUint(b.ID, 10), "",
		7, model.RoleClient, []string{"id"}, []string{strconv.FormatUint(b.ID, 10)}, f.handler.Delete)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	tier, _ := f.store.Ticket(1)
	assert.Equal(t, uint32(10), tier.Available)
	assert.Equal(t, 0, f.store.BookingCount())
}

func TestDeleteBookingHandlerForbidden(t *testing.T) {
	f := newBookingFixture(t)
	b, err := f.handler.Reservations.CreateBooking(context.Background(), 1, 4, 7)
	require.NoError(t, err)

	rec := f.request(t, http.MethodDelete, "/v1/bookings/"+strconv.FormatUint(b.ID, 10), "",
		9, model.RoleClient, []string{"id"}, []string{strconv.FormatUint(b.ID, 10)}, f.handler.Delete)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	tier, _ := f.store.Ticket(1)
	assert.Equal(t, uint32(6), tier.Available, "forbidden cancel must not release stock")
}

func TestUpdateBookingHandlerSwitchTier(t *testing.T) {
	f := newBookingFixture(t)
	b, err := f.handler.Reservations.CreateBooking(context.Background(), 1, 2, 7)
	require.NoError(t, err)

	rec := f.request(t, http.MethodPut, "/v1/bookings/"+strconv.FormatUint(b.ID, 10), `{"ticket_id":2}`,
		7, model.RoleClient, []string{"id"}, []string{strconv.FormatUint(b.ID, 10)}, f.handler.Update)

	require.Equal(t, http.StatusOK, rec.Code)
	oldTier, _ := f.store.Ticket(1)
	newTier, _ := f.store.Ticket(2)
	assert.Equal(t, uint32(10), oldTier.Available)
	assert.Equal(t, uint32(1), newTier.Available)
}

func TestGetBookingHandlerHidesOthers(t *testing.T) {
	f := newBookingFixture(t)
	b, err := f.handler.Reservations.CreateBooking(context.Background(), 1, 1, 7)
	require.NoError(t, err)

	id := strconv.FormatUint(b.ID, 10)
	rec := f.request(t, http.MethodGet, "/v1/bookings/"+id, "",
		9, model.RoleClient, []string{"id"}, []string{id}, f.handler.Get)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.request(t, http.MethodGet, "/v1/bookings/"+id, "",
		9, model.RoleAdmin, []string{"id"}, []string{id}, f.handler.Get)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListBookingsHandlerScopesToUser(t *testing.T) {
	f := newBookingFixture(t)
	_, err := f.handler.Reservations.CreateBooking(context.Background(), 1, 1, 7)
	require.NoError(t, err)
	_, err = f.handler.Reservations.CreateBooking(context.Background(), 1, 1, 9)
	require.NoError(t, err)

	rec := f.request(t, http.MethodGet, "/v1/bookings", "",
		7, model.RoleClient, nil, nil, f.handler.List)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []repository.BookingDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, uint64(7), resp.Data[0].UserID)

	// Admin sees everyone's bookings.
	rec = f.request(t, http.MethodGet, "/v1/bookings", "",
		1, model.RoleAdmin, nil, nil, f.handler.List)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
}
