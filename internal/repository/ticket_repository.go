package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pearlevents/event-booking/internal/model"
)

// ErrTicketNotFound indicates that a ticket tier was not located in the DB.
var ErrTicketNotFound = errors.New("ticket not found")

const ticketColumns = `id, event_id, type, price_cents, quantity, available, created_at, updated_at`

// TicketRepo manages persistence for ticket tiers. The `available`
// column is the remaining stock counter; it is only ever mutated by
// the reservation core inside a locked transaction or, for capacity
// edits, by UpdateCapacity below.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// DB exposes the underlying sql.DB. It allows callers to begin
// transactions spanning multiple repositories.
func (r *TicketRepo) DB() *sql.DB { return r.db }

func scanTicket(row interface {
	Scan(dest ...any) error
}, t *model.Ticket) error {
	return row.Scan(&t.ID, &t.EventID, &t.Type, &t.PriceCents, &t.Quantity, &t.Available, &t.CreatedAt, &t.UpdatedAt)
}

// Create inserts a new tier with available stock equal to its
// capacity and populates the generated ID and timestamps.
func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
	const q = `INSERT INTO tickets (event_id, type, price_cents, quantity, available) VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, t.EventID, t.Type, t.PriceCents, t.Quantity, t.Quantity)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	const sel = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ?`
	return scanTicket(r.db.QueryRowContext(ctx, sel, t.ID), t)
}

// GetByID fetches a tier by id. Returns ErrTicketNotFound when absent.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (*model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ?`
	var t model.Ticket
	if err := scanTicket(r.db.QueryRowContext(ctx, q, id), &t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListByEvent returns all tiers of an event ordered by price.
func (r *TicketRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE event_id = ? ORDER BY price_cents, id`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tickets := make([]model.Ticket, 0)
	for rows.Next() {
		var t model.Ticket
		if err := scanTicket(rows, &t); err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// GetForUpdateTx loads a tier inside the given transaction and locks
// its row until the transaction ends. This is the lock every
// availability check and stock mutation must run under.
func (r *TicketRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ? FOR UPDATE`
	var t model.Ticket
	if err := scanTicket(tx.QueryRowContext(ctx, q, id), &t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}

// AdjustAvailableTx adds delta to a tier's available counter within
// the transaction. The WHERE clause re-asserts the stock bounds so a
// bad adjustment can never be committed even if the caller's check
// was wrong; zero affected rows is reported as an error.
func (r *TicketRepo) AdjustAvailableTx(ctx context.Context, tx *sql.Tx, id uint64, delta int64) error {
	const q = `UPDATE tickets SET available = available + ?
	           WHERE id = ? AND available + ? >= 0 AND available + ? <= quantity`
	res, err := tx.ExecContext(ctx, q, delta, id, delta, delta)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("availability adjustment out of range for ticket %d (delta %d)", id, delta)
	}
	return nil
}

// UpdateCapacity changes a tier's label, price and capacity. A
// capacity change moves the available counter by the same delta so
// the number of tickets already sold is preserved; shrinking capacity
// below the sold count fails with ErrConflict.
func (r *TicketRepo) UpdateCapacity(ctx context.Context, t *model.Ticket) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	cur, err := r.GetForUpdateTx(ctx, tx, t.ID)
	if err != nil {
		return err
	}
	delta := int64(t.Quantity) - int64(cur.Quantity)
	newAvailable := int64(cur.Available) + delta
	if newAvailable < 0 {
		return ErrConflict
	}
	const q = `UPDATE tickets SET type = ?, price_cents = ?, quantity = ?, available = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q, t.Type, t.PriceCents, t.Quantity, newAvailable, t.ID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	t.Available = uint32(newAvailable)
	t.EventID = cur.EventID
	return nil
}

// Delete removes a tier. Tiers that still have bookings cannot be
// deleted and fail with ErrConflict; absent tiers fail with
// ErrTicketNotFound.
func (r *TicketRepo) Delete(ctx context.Context, id uint64) error {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE ticket_id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM tickets WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTicketNotFound
	}
	return nil
}
