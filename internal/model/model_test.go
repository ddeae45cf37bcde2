package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBookingReference(t *testing.T) {
	assert.Equal(t, "BK-000001", (&Booking{ID: 1}).Reference())
	assert.Equal(t, "BK-004521", (&Booking{ID: 4521}).Reference())
	// IDs beyond six digits keep their full width.
	assert.Equal(t, "BK-1234567", (&Booking{ID: 1234567}).Reference())
}

func TestBookingTotalPrice(t *testing.T) {
	b := &Booking{Quantity: 3}
	assert.Equal(t, uint64(15000), b.TotalPriceCents(5000))
	// Large quantities and prices must not overflow uint32 arithmetic.
	big := &Booking{Quantity: 4_000_000}
	assert.Equal(t, uint64(4_000_000)*uint64(4_000_000_000), big.TotalPriceCents(4_000_000_000))
}

func TestTicketSold(t *testing.T) {
	assert.Equal(t, uint32(4), (&Ticket{Quantity: 10, Available: 6}).Sold())
	assert.Equal(t, uint32(0), (&Ticket{Quantity: 10, Available: 10}).Sold())
}

func TestEventUpcoming(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, (&Event{Date: now.Add(time.Hour)}).Upcoming(now))
	assert.False(t, (&Event{Date: now.Add(-time.Hour)}).Upcoming(now))
}
