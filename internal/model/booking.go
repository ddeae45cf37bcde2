package model

import (
	"fmt"
	"time"
)

// Booking represents a confirmed reservation of tickets as stored in
// the `bookings` table. Each booking references one user, one event
// and one ticket tier. EventID is denormalized from the ticket's
// owning event and is kept in sync when a booking switches tier.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – user who owns the booking.
//  EventID   – event the booked tier belongs to.
//  TicketID  – ticket tier being booked.
//  Quantity  – number of tickets reserved (>= 1).
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Booking struct {
	ID        uint64    // bookings.id
	UserID    uint64    // bookings.user_id
	EventID   uint64    // bookings.event_id
	TicketID  uint64    // bookings.ticket_id
	Quantity  uint32    // bookings.quantity
	CreatedAt time.Time // bookings.created_at
	UpdatedAt time.Time // bookings.updated_at
}

// Reference returns the human-facing booking reference, e.g. "BK-000042".
func (b *Booking) Reference() string {
	return fmt.Sprintf("BK-%06d", b.ID)
}

// TotalPriceCents computes the booking total at the tier's current
// unit price. Totals are intentionally not snapshotted at booking
// time, so editing a tier's price changes historical totals.
func (b *Booking) TotalPriceCents(unitPriceCents uint32) uint64 {
	return uint64(b.Quantity) * uint64(unitPriceCents)
}
