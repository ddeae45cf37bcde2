package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/pearlevents/event-booking/internal/model"
)

// ErrEventNotFound indicates that an event was not located in the DB.
var ErrEventNotFound = errors.New("event not found")

// EventFilter narrows event listings. Zero values mean "no filter".
// When is supplied by the caller so upcoming/past splits stay
// deterministic in tests.
type EventFilter struct {
	Upcoming bool
	Past     bool
	Search   string
	When     time.Time
}

// EventRepo manages persistence for events. Pictures are stored as a
// JSON array in a TEXT column; an empty or NULL column decodes to an
// empty slice.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying sql.DB for cross-repository transactions.
func (r *EventRepo) DB() *sql.DB { return r.db }

func encodePictures(pics []string) (string, error) {
	if len(pics) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(pics)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodePictures(raw sql.NullString, e *model.Event) error {
	e.Pictures = []string{}
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw.String), &e.Pictures)
}

const eventColumns = `id, user_id, name, description, location, date, pictures, created_at, updated_at`

func scanEvent(row interface {
	Scan(dest ...any) error
}, e *model.Event) error {
	var pics sql.NullString
	if err := row.Scan(&e.ID, &e.UserID, &e.Name, &e.Description, &e.Location, &e.Date, &pics, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return err
	}
	return decodePictures(pics, e)
}

// Create inserts a new event and populates the generated ID and
// timestamps on the provided record.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	pics, err := encodePictures(e.Pictures)
	if err != nil {
		return err
	}
	const q = `INSERT INTO events (user_id, name, description, location, date, pictures) VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, e.UserID, e.Name, e.Description, e.Location, e.Date.UTC(), pics)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	const sel = `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	return scanEvent(r.db.QueryRowContext(ctx, sel, e.ID), e)
}

// GetByID fetches an event by id. Returns ErrEventNotFound when absent.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	var e model.Event
	if err := scanEvent(r.db.QueryRowContext(ctx, q, id), &e); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &e, nil
}

// List returns events matching the filter, ordered by date ascending
// for upcoming listings and descending otherwise.
func (r *EventRepo) List(ctx context.Context, f EventFilter) ([]model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events`
	var conds []string
	var args []any
	when := f.When
	if when.IsZero() {
		when = time.Now().UTC()
	}
	if f.Upcoming {
		conds = append(conds, "date > ?")
		args = append(args, when)
	}
	if f.Past {
		conds = append(conds, "date < ?")
		args = append(args, when)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		conds = append(conds, "(name LIKE ? OR description LIKE ? OR location LIKE ?)")
		like := "%" + s + "%"
		args = append(args, like, like, like)
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	if f.Past {
		q += " ORDER BY date DESC"
	} else {
		q += " ORDER BY date ASC"
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]model.Event, 0)
	for rows.Next() {
		var e model.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Update persists name, description, location and date changes.
func (r *EventRepo) Update(ctx context.Context, e *model.Event) error {
	const q = `UPDATE events SET name = ?, description = ?, location = ?, date = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, e.Name, e.Description, e.Location, e.Date.UTC(), e.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish "no such row" from "values unchanged".
		if _, err := r.GetByID(ctx, e.ID); err != nil {
			return err
		}
	}
	return nil
}

// UpdatePictures replaces the event's picture URL list.
func (r *EventRepo) UpdatePictures(ctx context.Context, id uint64, pictures []string) error {
	pics, err := encodePictures(pictures)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE events SET pictures = ? WHERE id = ?`, pics, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes an event. Events that still have bookings fail with
// ErrConflict; the event's ticket tiers are removed with it.
func (r *EventRepo) Delete(ctx context.Context, id uint64) error {
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
	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE event_id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tickets WHERE event_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrEventNotFound
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
