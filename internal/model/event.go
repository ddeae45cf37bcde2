package model

import "time"

// Event represents a bookable event as stored in the `events` table.
// Events are created by admin users and group the ticket tiers and
// bookings that reference them. Pictures are stored as a JSON array
// of URLs; file storage itself is handled elsewhere.
//
// Fields:
//  ID          – primary key identifier.
//  UserID      – admin user who created the event.
//  Name        – display name of the event.
//  Description – free-form description text.
//  Location    – venue or address.
//  Date        – when the event takes place (UTC).
//  Pictures    – list of picture URLs attached to the event.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Event struct {
	ID          uint64    // events.id
	UserID      uint64    // events.user_id
	Name        string    // events.name
	Description string    // events.description
	Location    string    // events.location
	Date        time.Time // events.date
	Pictures    []string  // events.pictures (JSON column)
	CreatedAt   time.Time // events.created_at
	UpdatedAt   time.Time // events.updated_at
}

// Upcoming reports whether the event takes place after the given
// reference time. Callers supply "now" so listings stay testable.
func (e *Event) Upcoming(now time.Time) bool {
	return e.Date.After(now)
}
