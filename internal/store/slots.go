package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/slotswap/internal/domain"
)

const eventColumns = `id, owner_id, title, start_time, end_time, status, created_at, updated_at`

// Slots is the Slot Store: events and their availability status.
//
// Client-facing methods (Create, SetStatus, Update, Delete) never move a
// slot into or out of LOCKED. Lock, Unlock and TransferOwnership are for
// the negotiation engine and assume they run inside its transaction.
type Slots struct {
	q     querier
	clock Clock
}

// Create inserts a new event owned by ownerID.
//
// An empty status means BUSY. SWAPPABLE is honoured; LOCKED fails with
// FORBIDDEN_TRANSITION.
func (s *Slots) Create(ctx context.Context, ownerID int64, title string, start, end time.Time, status domain.EventStatus) (domain.Event, error) {
	title = domain.NormalizeText(title)
	if err := validateSlot(title, start, end); err != nil {
		return domain.Event{}, err
	}
	if status == "" {
		status = domain.StatusBusy
	}
	if err := checkClientStatus(status); err != nil {
		return domain.Event{}, err
	}

	now := formatTime(s.clock.Now())
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO events (owner_id, title, start_time, end_time, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ownerID, title, formatTime(start), formatTime(end), string(status), now, now)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
			return domain.Event{}, domain.NewNotFound("user", ownerID)
		}
		return domain.Event{}, fmt.Errorf("create event: insert: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.Event{}, fmt.Errorf("create event: last insert id: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns the event with the given id, or NOT_FOUND.
func (s *Slots) Get(ctx context.Context, id int64) (domain.Event, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Event{}, domain.NewNotFound("event", id)
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("get event %d: %w", id, err)
	}
	return ev, nil
}

// SetStatus applies an owner-requested BUSY/SWAPPABLE transition.
//
// Setting the current status again is a no-op that returns the event.
func (s *Slots) SetStatus(ctx context.Context, eventID, ownerID int64, status domain.EventStatus) (domain.Event, error) {
	if err := checkClientStatus(status); err != nil {
		return domain.Event{}, err
	}

	ev, err := s.owned(ctx, eventID, ownerID)
	if err != nil {
		return domain.Event{}, err
	}
	if ev.Status == domain.StatusLocked {
		return domain.Event{}, lockedError(eventID)
	}
	if ev.Status == status {
		return ev, nil
	}

	ok, err := s.casStatus(ctx, eventID, ev.Status, status)
	if err != nil {
		return domain.Event{}, err
	}
	if !ok {
		return domain.Event{}, domain.Errorf(domain.ErrCodeConflict,
			"event %d changed status concurrently", eventID)
	}
	return s.Get(ctx, eventID)
}

// Update edits the descriptive fields of an unlocked event.
func (s *Slots) Update(ctx context.Context, eventID, ownerID int64, title string, start, end time.Time) (domain.Event, error) {
	title = domain.NormalizeText(title)
	if err := validateSlot(title, start, end); err != nil {
		return domain.Event{}, err
	}

	ev, err := s.owned(ctx, eventID, ownerID)
	if err != nil {
		return domain.Event{}, err
	}
	if ev.Status == domain.StatusLocked {
		return domain.Event{}, lockedError(eventID)
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE events SET title = ?, start_time = ?, end_time = ?, updated_at = ?
		WHERE id = ? AND owner_id = ? AND status <> 'LOCKED'
	`, title, formatTime(start), formatTime(end), formatTime(s.clock.Now()), eventID, ownerID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("update event %d: %w", eventID, err)
	}
	if err := expectOneRow(res, domain.Errorf(domain.ErrCodeConflict,
		"event %d changed concurrently", eventID)); err != nil {
		return domain.Event{}, err
	}
	return s.Get(ctx, eventID)
}

// Delete removes an unlocked event. Swap request history keeps its id.
func (s *Slots) Delete(ctx context.Context, eventID, ownerID int64) error {
	ev, err := s.owned(ctx, eventID, ownerID)
	if err != nil {
		return err
	}
	if ev.Status == domain.StatusLocked {
		return lockedError(eventID)
	}

	res, err := s.q.ExecContext(ctx,
		`DELETE FROM events WHERE id = ? AND owner_id = ? AND status <> 'LOCKED'`, eventID, ownerID)
	if err != nil {
		return fmt.Errorf("delete event %d: %w", eventID, err)
	}
	return expectOneRow(res, domain.Errorf(domain.ErrCodeConflict,
		"event %d changed concurrently", eventID))
}

// ListByOwner returns all events owned by ownerID ordered by start time.
// Returns an empty slice (not nil) if there are none.
func (s *Slots) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Event, error) {
	return s.list(ctx, "list events by owner", `
		SELECT `+eventColumns+` FROM events
		WHERE owner_id = ?
		ORDER BY start_time ASC, id ASC
	`, ownerID)
}

// ListSwappable returns SWAPPABLE events not owned by excludeOwnerID.
// LOCKED events are never listed.
func (s *Slots) ListSwappable(ctx context.Context, excludeOwnerID int64) ([]domain.Event, error) {
	return s.list(ctx, "list swappable events", `
		SELECT `+eventColumns+` FROM events
		WHERE status = 'SWAPPABLE' AND owner_id <> ?
		ORDER BY start_time ASC, id ASC
	`, excludeOwnerID)
}

// Lock moves each event from SWAPPABLE to LOCKED. If any event is not
// SWAPPABLE at the moment of the update it fails with CONFLICT; the
// caller's transaction rollback undoes the locks already taken.
func (s *Slots) Lock(ctx context.Context, ids ...int64) error {
	for _, id := range ids {
		ok, err := s.casStatus(ctx, id, domain.StatusSwappable, domain.StatusLocked)
		if err != nil {
			return err
		}
		if !ok {
			return domain.Errorf(domain.ErrCodeConflict, "event %d is no longer swappable", id).
				With("event_id", strconv.FormatInt(id, 10))
		}
	}
	return nil
}

// Unlock moves each event from LOCKED back to SWAPPABLE.
func (s *Slots) Unlock(ctx context.Context, ids ...int64) error {
	for _, id := range ids {
		ok, err := s.casStatus(ctx, id, domain.StatusLocked, domain.StatusSwappable)
		if err != nil {
			return err
		}
		if !ok {
			return domain.Errorf(domain.ErrCodeInvalidState, "event %d is not locked", id).
				With("event_id", strconv.FormatInt(id, 10))
		}
	}
	return nil
}

// TransferOwnership exchanges the owners of two LOCKED events and resets
// both to BUSY.
func (s *Slots) TransferOwnership(ctx context.Context, a, b int64) error {
	evA, err := s.Get(ctx, a)
	if err != nil {
		return err
	}
	evB, err := s.Get(ctx, b)
	if err != nil {
		return err
	}

	now := formatTime(s.clock.Now())
	for _, move := range []struct {
		id, owner int64
	}{{a, evB.OwnerID}, {b, evA.OwnerID}} {
		res, err := s.q.ExecContext(ctx, `
			UPDATE events SET owner_id = ?, status = 'BUSY', updated_at = ?
			WHERE id = ? AND status = 'LOCKED'
		`, move.owner, now, move.id)
		if err != nil {
			return fmt.Errorf("transfer ownership of event %d: %w", move.id, err)
		}
		if err := expectOneRow(res, domain.Errorf(domain.ErrCodeInvalidState,
			"event %d is not locked", move.id)); err != nil {
			return err
		}
	}
	return nil
}

// owned loads an event and checks that ownerID owns it.
func (s *Slots) owned(ctx context.Context, eventID, ownerID int64) (domain.Event, error) {
	ev, err := s.Get(ctx, eventID)
	if err != nil {
		return domain.Event{}, err
	}
	if ev.OwnerID != ownerID {
		return domain.Event{}, domain.NewNotOwner("event", eventID, ownerID)
	}
	return ev, nil
}

// casStatus updates status only if it still equals from.
func (s *Slots) casStatus(ctx context.Context, id int64, from, to domain.EventStatus) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE events SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(to), formatTime(s.clock.Now()), id, string(from))
	if err != nil {
		return false, fmt.Errorf("set event %d status %s->%s: %w", id, from, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set event %d status: rows affected: %w", id, err)
	}
	return n == 1, nil
}

func (s *Slots) list(ctx context.Context, op, query string, args ...any) ([]domain.Event, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return events, nil
}

func scanEvent(row rowScanner) (domain.Event, error) {
	var (
		ev                               domain.Event
		status                           string
		start, end, createdAt, updatedAt string
	)
	if err := row.Scan(&ev.ID, &ev.OwnerID, &ev.Title, &start, &end, &status, &createdAt, &updatedAt); err != nil {
		return domain.Event{}, err
	}
	ev.Status = domain.EventStatus(status)

	var err error
	if ev.StartTime, err = parseTime(start); err != nil {
		return domain.Event{}, err
	}
	if ev.EndTime, err = parseTime(end); err != nil {
		return domain.Event{}, err
	}
	if ev.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Event{}, err
	}
	if ev.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.Event{}, err
	}
	return ev, nil
}

func validateSlot(title string, start, end time.Time) error {
	if title == "" {
		return domain.NewValidation("title", "must not be empty")
	}
	if start.IsZero() || end.IsZero() {
		return domain.NewValidation("start_time", "start_time and end_time are required")
	}
	if !end.After(start) {
		return domain.NewValidation("end_time", "must be after start_time")
	}
	return nil
}

// checkClientStatus rejects statuses a client may not request directly.
func checkClientStatus(status domain.EventStatus) error {
	switch status {
	case domain.StatusBusy, domain.StatusSwappable:
		return nil
	case domain.StatusLocked:
		return domain.Errorf(domain.ErrCodeForbiddenTransition,
			"LOCKED is set only by a pending swap")
	default:
		return domain.NewValidation("status", fmt.Sprintf("unknown status %q", status))
	}
}

func lockedError(eventID int64) error {
	return domain.Errorf(domain.ErrCodeInvalidState,
		"event %d is locked by a pending swap", eventID).
		With("event_id", strconv.FormatInt(eventID, 10))
}

// expectOneRow returns orElse when res touched no rows.
func expectOneRow(res sql.Result, orElse error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n != 1 {
		return orElse
	}
	return nil
}
