package reservation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pearlevents/event-booking/internal/model"
)

// MemoryStore is an in-memory Store with serializable transactions: a
// mutex admits one transaction at a time and a snapshot taken at
// transaction start is restored on rollback. It exists as the
// reference implementation of the Store contract and backs the
// reservation tests, including the concurrent no-oversell tests.
type MemoryStore struct {
	mu            sync.Mutex
	tickets       map[uint64]*model.Ticket
	bookings      map[uint64]*model.Booking
	nextBookingID uint64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets:       make(map[uint64]*model.Ticket),
		bookings:      make(map[uint64]*model.Booking),
		nextBookingID: 1,
	}
}

// AddTicket seeds a ticket tier. Available defaults to Quantity when
// left zero on a tier with capacity.
func (s *MemoryStore) AddTicket(t model.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Available == 0 && t.Quantity > 0 {
		t.Available = t.Quantity
	}
	s.tickets[t.ID] = &t
}

// Ticket returns a copy of the stored tier, or false when absent.
func (s *MemoryStore) Ticket(id uint64) (model.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return model.Ticket{}, false
	}
	return *t, true
}

// Booking returns a copy of the stored booking, or false when absent.
func (s *MemoryStore) Booking(id uint64) (model.Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, false
	}
	return *b, true
}

// Bookings returns copies of all stored bookings.
func (s *MemoryStore) Bookings() []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		out = append(out, *b)
	}
	return out
}

// BookingCount returns the number of stored bookings.
func (s *MemoryStore) BookingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

// InTx runs fn under the store mutex. Mutations apply directly to the
// live maps; on error the pre-transaction snapshot is restored, so fn
// observes the same all-or-nothing semantics as a SQL transaction.
func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snapTickets := make(map[uint64]*model.Ticket, len(s.tickets))
	for id, t := range s.tickets {
		c := *t
		snapTickets[id] = &c
	}
	snapBookings := make(map[uint64]*model.Booking, len(s.bookings))
	for id, b := range s.bookings {
		c := *b
		snapBookings[id] = &c
	}
	snapNext := s.nextBookingID

	if err := fn(&memTx{store: s}); err != nil {
		s.tickets = snapTickets
		s.bookings = snapBookings
		s.nextBookingID = snapNext
		return err
	}
	return nil
}

// memTx implements Tx over the MemoryStore's live maps. The caller
// already holds the store mutex for the whole transaction, which
// subsumes row locking.
type memTx struct {
	store *MemoryStore
}

func (tx *memTx) TicketForUpdate(ctx context.Context, ticketID uint64) (*model.Ticket, error) {
	t, ok := tx.store.tickets[ticketID]
	if !ok {
		return nil, ErrTicketNotFound
	}
	c := *t
	return &c, nil
}

func (tx *memTx) AdjustAvailable(ctx context.Context, ticketID uint64, delta int64) error {
	t, ok := tx.store.tickets[ticketID]
	if !ok {
		return ErrTicketNotFound
	}
	next := int64(t.Available) + delta
	if next < 0 || next > int64(t.Quantity) {
		return fmt.Errorf("availability adjustment out of range for ticket %d: %d%+d", ticketID, t.Available, delta)
	}
	t.Available = uint32(next)
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (tx *memTx) BookingByID(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	b, ok := tx.store.bookings[bookingID]
	if !ok {
		return nil, ErrBookingNotFound
	}
	c := *b
	return &c, nil
}

func (tx *memTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	b.ID = tx.store.nextBookingID
	tx.store.nextBookingID++
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	c := *b
	tx.store.bookings[b.ID] = &c
	return nil
}

func (tx *memTx) UpdateBooking(ctx context.Context, b *model.Booking) error {
	if _, ok := tx.store.bookings[b.ID]; !ok {
		return ErrBookingNotFound
	}
	b.UpdatedAt = time.Now().UTC()
	c := *b
	tx.store.bookings[b.ID] = &c
	return nil
}

func (tx *memTx) DeleteBooking(ctx context.Context, bookingID uint64) error {
	if _, ok := tx.store.bookings[bookingID]; !ok {
		return ErrBookingNotFound
	}
	delete(tx.store.bookings, bookingID)
	return nil
}
