package model

import "time"

// Ticket represents a ticket tier of an event as stored in the
// `tickets` table. Quantity is the tier capacity set by admins.
// Available is the remaining stock counter and is the single
// mutable source of truth for inventory: it starts equal to
// Quantity and is only ever adjusted by the reservation core under
// a row lock, or by admin capacity edits. The number of tickets
// sold is derived, never stored.
//
// Fields:
//  ID         – primary key identifier.
//  EventID    – event this tier belongs to.
//  Type       – tier label (e.g. "VIP", "Regular").
//  PriceCents – unit price in cents.
//  Quantity   – total capacity of the tier.
//  Available  – remaining stock (0 <= Available <= Quantity).
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Ticket struct {
	ID         uint64    // tickets.id
	EventID    uint64    // tickets.event_id
	Type       string    // tickets.type
	PriceCents uint32    // tickets.price_cents
	Quantity   uint32    // tickets.quantity
	Available  uint32    // tickets.available
	CreatedAt  time.Time // tickets.created_at
	UpdatedAt  time.Time // tickets.updated_at
}

// Sold returns the number of tickets committed to bookings on this
// tier, derived from capacity minus remaining stock.
func (t *Ticket) Sold() uint32 {
	if t.Available > t.Quantity {
		return 0
	}
	return t.Quantity - t.Available
}
