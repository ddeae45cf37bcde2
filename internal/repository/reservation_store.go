package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pearlevents/event-booking/internal/model"
	"github.com/pearlevents/event-booking/internal/reservation"
)

// ReservationStore implements reservation.Store on MySQL. Each InTx
// call runs inside one sql.Tx; ticket reads go through SELECT ... FOR
// UPDATE so the availability check and the stock mutation of one
// logical operation are serialized against concurrent callers
// targeting the same tier.
type ReservationStore struct {
	db       *sql.DB
	tickets  *TicketRepo
	bookings *BookingRepo
}

// NewReservationStore wires the reservation core to the ticket and
// booking repositories over a shared database handle.
func NewReservationStore(db *sql.DB, tickets *TicketRepo, bookings *BookingRepo) *ReservationStore {
	return &ReservationStore{db: db, tickets: tickets, bookings: bookings}
}

// InTx starts a transaction, runs fn against it and commits when fn
// returns nil. Any error from fn, or from the commit itself, rolls
// back every mutation so no partial state persists.
func (s *ReservationStore) InTx(ctx context.Context, fn func(tx reservation.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&reservationTx{tx: tx, store: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// reservationTx adapts the repositories' *Tx methods to the
// reservation.Tx interface. Not-found conditions are mapped onto the
// reservation package's sentinels so the core stays storage-agnostic.
type reservationTx struct {
	tx    *sql.Tx
	store *ReservationStore
}

func (t *reservationTx) TicketForUpdate(ctx context.Context, ticketID uint64) (*model.Ticket, error) {
	ticket, err := t.store.tickets.GetForUpdateTx(ctx, t.tx, ticketID)
	if err == ErrTicketNotFound {
		return nil, reservation.ErrTicketNotFound
	}
	return ticket, err
}

func (t *reservationTx) AdjustAvailable(ctx context.Context, ticketID uint64, delta int64) error {
	return t.store.tickets.AdjustAvailableTx(ctx, t.tx, ticketID, delta)
}

func (t *reservationTx) BookingByID(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	b, err := t.store.bookings.GetByIDTx(ctx, t.tx, bookingID)
	if err == ErrBookingNotFound {
		return nil, reservation.ErrBookingNotFound
	}
	return b, err
}

func (t *reservationTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	return t.store.bookings.CreateTx(ctx, t.tx, b)
}

func (t *reservationTx) UpdateBooking(ctx context.Context, b *model.Booking) error {
	return t.store.bookings.UpdateTx(ctx, t.tx, b)
}

func (t *reservationTx) DeleteBooking(ctx context.Context, bookingID uint64) error {
	err := t.store.bookings.DeleteTx(ctx, t.tx, bookingID)
	if err == ErrBookingNotFound {
		return reservation.ErrBookingNotFound
	}
	return err
}
