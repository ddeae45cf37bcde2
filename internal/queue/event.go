// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingCreatedEvent is published after a booking has committed. It
// carries enough resolved detail for downstream consumers to send the
// confirmation and admin notification emails without querying the
// primary database. Delivery is best-effort: a lost event never
// affects the committed booking.
type BookingCreatedEvent struct {
	BookingID       uint64 `json:"booking_id"`
	Reference       string `json:"reference"`
	UserID          uint64 `json:"user_id"`
	UserName        string `json:"user_name"`
	UserEmail       string `json:"user_email"`
	EventID         uint64 `json:"event_id"`
	EventName       string `json:"event_name"`
	EventLocation   string `json:"event_location"`
	EventDate       string `json:"event_date"`
	TicketID        uint64 `json:"ticket_id"`
	TicketType      string `json:"ticket_type"`
	PriceCents      uint32 `json:"price_cents"`
	Quantity        uint32 `json:"quantity"`
	TotalPriceCents uint64 `json:"total_price_cents"`
	CreatedAt       string `json:"created_at"`
}
