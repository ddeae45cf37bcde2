// Package reservation implements the inventory reservation core: the
// only component allowed to mutate ticket tier stock, in lockstep with
// booking lifecycle changes. Every operation runs inside a single
// storage transaction with the affected ticket rows locked for the
// duration of the check and mutation, so concurrent bookings against
// the same tier can never jointly oversell it.
package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/pearlevents/event-booking/internal/model"
)

// Sentinel errors surfaced to callers. Handlers translate these into
// HTTP status codes (404, 403, 400).
var (
	// ErrTicketNotFound indicates the referenced ticket tier does not exist.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrBookingNotFound indicates the referenced booking does not exist.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrForbidden indicates the actor neither owns the booking nor is an admin.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidQuantity indicates a requested quantity below 1.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// InsufficientStockError is returned when a tier cannot cover the
// requested quantity. Requested carries the amount the operation
// needed (the delta on a same-tier increase, the full new quantity on
// a tier switch or create) and Available the tier's remaining stock
// at the time of the locked read. No mutation has occurred when this
// error is returned.
type InsufficientStockError struct {
	TicketID  uint64
	Requested uint32
	Available uint32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for ticket %d: requested %d, available %d",
		e.TicketID, e.Requested, e.Available)
}

// Actor identifies who is performing an operation. Admin actors may
// operate on any booking; others only on their own.
type Actor struct {
	UserID uint64
	Admin  bool
}

func (a Actor) mayManage(b *model.Booking) bool {
	return a.Admin || a.UserID == b.UserID
}

// UpdateRequest describes a partial booking update. Nil fields keep
// the booking's current value.
type UpdateRequest struct {
	TicketID *uint64
	Quantity *uint32
}

// Tx is the transactional view the reservation core operates on. All
// methods run inside the transaction started by Store.InTx. Ticket
// reads lock the row until the transaction ends.
type Tx interface {
	// TicketForUpdate loads a ticket tier and locks its row for the
	// remainder of the transaction. Returns ErrTicketNotFound when no
	// such tier exists.
	TicketForUpdate(ctx context.Context, ticketID uint64) (*model.Ticket, error)
	// AdjustAvailable adds delta to the tier's available counter. The
	// row must have been locked with TicketForUpdate first. The store
	// rejects adjustments that would push the counter below zero or
	// above capacity.
	AdjustAvailable(ctx context.Context, ticketID uint64, delta int64) error
	// BookingByID loads a booking. Returns ErrBookingNotFound when no
	// such booking exists.
	BookingByID(ctx context.Context, bookingID uint64) (*model.Booking, error)
	// InsertBooking persists a new booking and populates its ID and
	// timestamps.
	InsertBooking(ctx context.Context, b *model.Booking) error
	// UpdateBooking persists the booking's ticket, event and quantity
	// fields.
	UpdateBooking(ctx context.Context, b *model.Booking) error
	// DeleteBooking removes a booking row.
	DeleteBooking(ctx context.Context, bookingID uint64) error
}

// Store provides transactional access to tickets and bookings. The
// MySQL implementation lives in internal/repository; an in-memory
// implementation with the same isolation guarantees backs the tests.
type Store interface {
	// InTx runs fn inside one transaction. A non-nil error from fn
	// rolls back every mutation made through the Tx; otherwise the
	// transaction commits before InTx returns.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Service exposes the three booking operations. It is safe for
// concurrent use; all shared state lives behind the Store.
type Service struct {
	store Store
}

// NewService returns a Service backed by the given store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateBooking reserves quantity tickets of the given tier for a
// user. It fails with *InsufficientStockError when the tier's
// remaining stock cannot cover the request; in that case nothing is
// mutated. On success the stock decrement and the booking insert have
// committed together.
func (s *Service) CreateBooking(ctx context.Context, ticketID uint64, quantity uint32, userID uint64) (*model.Booking, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	var booking *model.Booking
	err := s.store.InTx(ctx, func(tx Tx) error {
		t, err := tx.TicketForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if t.Available < quantity {
			return &InsufficientStockError{TicketID: t.ID, Requested: quantity, Available: t.Available}
		}
		if err := tx.AdjustAvailable(ctx, t.ID, -int64(quantity)); err != nil {
			return err
		}
		b := &model.Booking{
			UserID:   userID,
			EventID:  t.EventID,
			TicketID: t.ID,
			Quantity: quantity,
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// UpdateBooking changes a booking's quantity, tier, or both. Omitted
// fields keep their current value; a request that resolves to the
// current state is a successful no-op that touches no stock. A
// same-tier increase is validated against the delta only, a decrease
// always succeeds, and a tier switch is validated against the full
// new quantity on the new tier while the full old quantity returns to
// the old tier. Stock adjustments and the booking update commit as
// one unit.
func (s *Service) UpdateBooking(ctx context.Context, bookingID uint64, req UpdateRequest, actor Actor) (*model.Booking, error) {
	if req.Quantity != nil && *req.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	var booking *model.Booking
	err := s.store.InTx(ctx, func(tx Tx) error {
		b, err := tx.BookingByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if !actor.mayManage(b) {
			return ErrForbidden
		}

		newTicketID := b.TicketID
		if req.TicketID != nil {
			newTicketID = *req.TicketID
		}
		newQuantity := b.Quantity
		if req.Quantity != nil {
			newQuantity = *req.Quantity
		}

		// Fast path: nothing changes, nothing is touched.
		if newTicketID == b.TicketID && newQuantity == b.Quantity {
			booking = b
			return nil
		}

		if newTicketID == b.TicketID {
			return s.adjustQuantity(ctx, tx, b, newQuantity, &booking)
		}
		return s.switchTier(ctx, tx, b, newTicketID, newQuantity, &booking)
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// adjustQuantity handles a same-tier quantity change. Only increases
// need stock: the delta is checked against the tier's remaining
// availability. Decreases release stock and cannot fail the check.
func (s *Service) adjustQuantity(ctx context.Context, tx Tx, b *model.Booking, newQuantity uint32, out **model.Booking) error {
	t, err := tx.TicketForUpdate(ctx, b.TicketID)
	if err != nil {
		return err
	}
	delta := int64(newQuantity) - int64(b.Quantity)
	if delta > 0 && int64(t.Available) < delta {
		return &InsufficientStockError{TicketID: t.ID, Requested: uint32(delta), Available: t.Available}
	}
	if err := tx.AdjustAvailable(ctx, t.ID, -delta); err != nil {
		return err
	}
	b.Quantity = newQuantity
	if err := tx.UpdateBooking(ctx, b); err != nil {
		return err
	}
	*out = b
	return nil
}

// switchTier moves a booking to a different tier. The old and new
// tiers are independent pools: the new tier must cover the full new
// quantity, and the full old quantity is released back to the old
// tier. The booking's denormalized event id follows the new tier.
func (s *Service) switchTier(ctx context.Context, tx Tx, b *model.Booking, newTicketID uint64, newQuantity uint32, out **model.Booking) error {
	// Lock both tiers in id order so concurrent switches in opposite
	// directions cannot deadlock.
	oldTicketID := b.TicketID
	var oldTicket, newTicket *model.Ticket
	var err error
	if oldTicketID < newTicketID {
		if oldTicket, err = tx.TicketForUpdate(ctx, oldTicketID); err != nil {
			return err
		}
		if newTicket, err = tx.TicketForUpdate(ctx, newTicketID); err != nil {
			return err
		}
	} else {
		if newTicket, err = tx.TicketForUpdate(ctx, newTicketID); err != nil {
			return err
		}
		if oldTicket, err = tx.TicketForUpdate(ctx, oldTicketID); err != nil {
			return err
		}
	}
	if newTicket.Available < newQuantity {
		return &InsufficientStockError{TicketID: newTicket.ID, Requested: newQuantity, Available: newTicket.Available}
	}
	if err := tx.AdjustAvailable(ctx, oldTicket.ID, int64(b.Quantity)); err != nil {
		return err
	}
	if err := tx.AdjustAvailable(ctx, newTicket.ID, -int64(newQuantity)); err != nil {
		return err
	}
	b.TicketID = newTicket.ID
	b.EventID = newTicket.EventID
	b.Quantity = newQuantity
	if err := tx.UpdateBooking(ctx, b); err != nil {
		return err
	}
	*out = b
	return nil
}

// CancelBooking releases the booking's full quantity back to its tier
// and deletes the booking, as one unit. Releasing stock cannot
// violate the non-negative availability invariant, so no availability
// check is performed.
func (s *Service) CancelBooking(ctx context.Context, bookingID uint64, actor Actor) error {
	return s.store.InTx(ctx, func(tx Tx) error {
		b, err := tx.BookingByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if !actor.mayManage(b) {
			return ErrForbidden
		}
		if _, err := tx.TicketForUpdate(ctx, b.TicketID); err != nil {
			return err
		}
		if err := tx.AdjustAvailable(ctx, b.TicketID, int64(b.Quantity)); err != nil {
			return err
		}
		return tx.DeleteBooking(ctx, b.ID)
	})
}
