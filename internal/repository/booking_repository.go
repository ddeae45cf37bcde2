package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pearlevents/event-booking/internal/model"
)

// ErrBookingNotFound indicates that a booking was not located in the DB.
var ErrBookingNotFound = errors.New("booking not found")

// BookingRepo provides CRUD operations for bookings. Writes are
// exposed as *Tx variants because they only ever happen inside the
// reservation core's transaction, in lockstep with the tier stock
// mutation. Read queries join event and ticket details so handlers
// can serialize a booking without extra round trips.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying sql.DB for cross-repository transactions.
func (r *BookingRepo) DB() *sql.DB { return r.db }

const bookingColumns = `id, user_id, event_id, ticket_id, quantity, created_at, updated_at`

func scanBooking(row interface {
	Scan(dest ...any) error
}, b *model.Booking) error {
	return row.Scan(&b.ID, &b.UserID, &b.EventID, &b.TicketID, &b.Quantity, &b.CreatedAt, &b.UpdatedAt)
}

// CreateTx inserts a new booking within the provided transaction and
// populates the generated ID and timestamps. The caller must commit
// or roll back the transaction.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (user_id, event_id, ticket_id, quantity) VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, b.UserID, b.EventID, b.TicketID, b.Quantity)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	const sel = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	return scanBooking(tx.QueryRowContext(ctx, sel, b.ID), b)
}

// GetByIDTx loads a booking within the provided transaction. Returns
// ErrBookingNotFound when absent.
func (r *BookingRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	var b model.Booking
	if err := scanBooking(tx.QueryRowContext(ctx, q, id), &b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

// UpdateTx persists ticket, event and quantity changes within the
// provided transaction.
func (r *BookingRepo) UpdateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `UPDATE bookings SET ticket_id = ?, event_id = ?, quantity = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, b.TicketID, b.EventID, b.Quantity, b.ID)
	return err
}

// DeleteTx removes a booking row within the provided transaction.
func (r *BookingRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// BookingDetail is a booking joined with its event, tier and owner for
// display. TotalPriceCents is computed from the tier's current price,
// so editing a tier's price changes historical totals.
type BookingDetail struct {
	ID              uint64    `json:"id"`
	Reference       string    `json:"reference"`
	UserID          uint64    `json:"user_id"`
	UserName        string    `json:"user_name"`
	UserEmail       string    `json:"user_email"`
	EventID         uint64    `json:"event_id"`
	EventName       string    `json:"event_name"`
	EventLocation   string    `json:"event_location"`
	EventDate       time.Time `json:"event_date"`
	TicketID        uint64    `json:"ticket_id"`
	TicketType      string    `json:"ticket_type"`
	PriceCents      uint32    `json:"price_cents"`
	Quantity        uint32    `json:"quantity"`
	TotalPriceCents uint64    `json:"total_price_cents"`
	CreatedAt       time.Time `json:"created_at"`
}

const bookingDetailSelect = `SELECT b.id, b.user_id, u.name, u.email,
       b.event_id, e.name, e.location, e.date,
       b.ticket_id, t.type, t.price_cents, b.quantity, b.created_at
FROM bookings b
JOIN users u ON u.id = b.user_id
JOIN events e ON e.id = b.event_id
JOIN tickets t ON t.id = b.ticket_id`

func scanBookingDetail(row interface {
	Scan(dest ...any) error
}, d *BookingDetail) error {
	if err := row.Scan(&d.ID, &d.UserID, &d.UserName, &d.UserEmail,
		&d.EventID, &d.EventName, &d.EventLocation, &d.EventDate,
		&d.TicketID, &d.TicketType, &d.PriceCents, &d.Quantity, &d.CreatedAt); err != nil {
		return err
	}
	d.Reference = (&model.Booking{ID: d.ID}).Reference()
	d.TotalPriceCents = uint64(d.Quantity) * uint64(d.PriceCents)
	return nil
}

// GetDetail returns a single booking with resolved event, tier and
// owner. Returns ErrBookingNotFound when absent.
func (r *BookingRepo) GetDetail(ctx context.Context, id uint64) (*BookingDetail, error) {
	const q = bookingDetailSelect + ` WHERE b.id = ?`
	var d BookingDetail
	if err := scanBookingDetail(r.db.QueryRowContext(ctx, q, id), &d); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &d, nil
}

// GetByID loads a bare booking outside any transaction. Handlers use
// it for ownership checks before invoking the reservation core.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	var b model.Booking
	if err := scanBooking(r.db.QueryRowContext(ctx, q, id), &b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

// BookingFilter narrows booking listings. UserID zero lists all users
// (admin view). Upcoming/Past filter on the event date relative to
// When, which defaults to the current UTC time.
type BookingFilter struct {
	UserID   uint64
	Upcoming bool
	Past     bool
	When     time.Time
}

// List returns booking details matching the filter, newest first.
func (r *BookingRepo) List(ctx context.Context, f BookingFilter) ([]BookingDetail, error) {
	q := bookingDetailSelect
	var conds []string
	var args []any
	if f.UserID != 0 {
		conds = append(conds, "b.user_id = ?")
		args = append(args, f.UserID)
	}
	when := f.When
	if when.IsZero() {
		when = time.Now().UTC()
	}
	if f.Upcoming {
		conds = append(conds, "e.date > ?")
		args = append(args, when)
	}
	if f.Past {
		conds = append(conds, "e.date < ?")
		args = append(args, when)
	}
	for i, c := range conds {
		if i == 0 {
			q += " WHERE " + c
		} else {
			q += " AND " + c
		}
	}
	q += " ORDER BY b.created_at DESC"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]BookingDetail, 0)
	for rows.Next() {
		var d BookingDetail
		if err := scanBookingDetail(rows, &d); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// Statistics summarizes a user's booking history. TotalSpentCents is
// priced at the tiers' current prices, consistent with booking totals.
type Statistics struct {
	TotalBookings      int    `json:"total_bookings"`
	TotalTicketsBooked int    `json:"total_tickets_booked"`
	UpcomingBookings   int    `json:"upcoming_bookings"`
	PastBookings       int    `json:"past_bookings"`
	TotalSpentCents    uint64 `json:"total_spent_cents"`
}

// StatisticsForUser computes booking statistics for one user.
func (r *BookingRepo) StatisticsForUser(ctx context.Context, userID uint64, now time.Time) (*Statistics, error) {
	const q = `SELECT COUNT(*),
	       COALESCE(SUM(b.quantity), 0),
	       COALESCE(SUM(CASE WHEN e.date > ? THEN 1 ELSE 0 END), 0),
	       COALESCE(SUM(CASE WHEN e.date < ? THEN 1 ELSE 0 END), 0),
	       COALESCE(SUM(b.quantity * t.price_cents), 0)
	FROM bookings b
	JOIN events e ON e.id = b.event_id
	JOIN tickets t ON t.id = b.ticket_id
	WHERE b.user_id = ?`
	now = now.UTC()
	var s Statistics
	err := r.db.QueryRowContext(ctx, q, now, now, userID).Scan(
		&s.TotalBookings, &s.TotalTicketsBooked, &s.UpcomingBookings, &s.PastBookings, &s.TotalSpentCents)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
