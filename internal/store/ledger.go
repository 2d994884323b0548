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

const swapColumns = `id, requester_id, responder_id, requester_event_id, responder_event_id, status, created_at, updated_at`

// Ledger is the Swap Request Ledger.
//
// Requests are never deleted. Status moves once from PENDING to a terminal
// status; the move is a compare-and-swap on status = 'PENDING'.
type Ledger struct {
	q     querier
	clock Clock
}

// Create records a PENDING request. A second PENDING request naming either
// event violates the pending-uniqueness indexes and fails with CONFLICT.
func (l *Ledger) Create(ctx context.Context, requesterID, responderID, requesterEventID, responderEventID int64) (domain.SwapRequest, error) {
	now := formatTime(l.clock.Now())
	res, err := l.q.ExecContext(ctx, `
		INSERT INTO swap_requests
			(requester_id, responder_id, requester_event_id, responder_event_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'PENDING', ?, ?)
	`, requesterID, responderID, requesterEventID, responderEventID, now, now)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintUnique) {
			return domain.SwapRequest{}, domain.Errorf(domain.ErrCodeConflict,
				"a pending swap already references event %d or %d", requesterEventID, responderEventID)
		}
		return domain.SwapRequest{}, fmt.Errorf("create swap request: insert: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.SwapRequest{}, fmt.Errorf("create swap request: last insert id: %w", err)
	}
	return l.Get(ctx, id)
}

// Get returns the request with the given id, or NOT_FOUND.
func (l *Ledger) Get(ctx context.Context, id int64) (domain.SwapRequest, error) {
	row := l.q.QueryRowContext(ctx, `SELECT `+swapColumns+` FROM swap_requests WHERE id = ?`, id)
	req, err := scanSwap(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SwapRequest{}, domain.NewNotFound("swap request", id)
	}
	if err != nil {
		return domain.SwapRequest{}, fmt.Errorf("get swap request %d: %w", id, err)
	}
	return req, nil
}

// ListIncoming returns PENDING requests where userID owns the responder
// side, most recent first.
func (l *Ledger) ListIncoming(ctx context.Context, userID int64) ([]domain.SwapRequest, error) {
	return l.list(ctx, "list incoming swaps", `
		SELECT `+swapColumns+` FROM swap_requests
		WHERE responder_id = ? AND status = 'PENDING'
		ORDER BY created_at DESC, id DESC
	`, userID)
}

// ListOutgoing returns every request userID made, any status, most recent
// first.
func (l *Ledger) ListOutgoing(ctx context.Context, userID int64) ([]domain.SwapRequest, error) {
	return l.list(ctx, "list outgoing swaps", `
		SELECT `+swapColumns+` FROM swap_requests
		WHERE requester_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
}

// ListPendingBefore returns PENDING requests created strictly before
// cutoff, oldest first.
func (l *Ledger) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]domain.SwapRequest, error) {
	return l.list(ctx, "list stale pending swaps", `
		SELECT `+swapColumns+` FROM swap_requests
		WHERE status = 'PENDING' AND created_at < ?
		ORDER BY created_at ASC, id ASC
	`, formatTime(cutoff))
}

// HasPendingFor reports whether a PENDING request references eventID on
// either side.
func (l *Ledger) HasPendingFor(ctx context.Context, eventID int64) (bool, error) {
	var exists bool
	err := l.q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM swap_requests
			WHERE status = 'PENDING' AND (requester_event_id = ? OR responder_event_id = ?)
		)
	`, eventID, eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending swaps for event %d: %w", eventID, err)
	}
	return exists, nil
}

// SetStatus resolves a PENDING request to a terminal status.
// Fails with ALREADY_RESOLVED if the request is already terminal.
func (l *Ledger) SetStatus(ctx context.Context, id int64, status domain.SwapStatus) (domain.SwapRequest, error) {
	if !status.Terminal() {
		return domain.SwapRequest{}, domain.NewValidation("status",
			fmt.Sprintf("%q is not a terminal swap status", status))
	}

	req, err := l.Get(ctx, id)
	if err != nil {
		return domain.SwapRequest{}, err
	}
	if req.Status.Terminal() {
		return domain.SwapRequest{}, alreadyResolved(req)
	}

	res, err := l.q.ExecContext(ctx, `
		UPDATE swap_requests SET status = ?, updated_at = ?
		WHERE id = ? AND status = 'PENDING'
	`, string(status), formatTime(l.clock.Now()), id)
	if err != nil {
		return domain.SwapRequest{}, fmt.Errorf("set swap request %d status: %w", id, err)
	}
	if err := expectOneRow(res, alreadyResolved(req)); err != nil {
		return domain.SwapRequest{}, err
	}
	return l.Get(ctx, id)
}

func (l *Ledger) list(ctx context.Context, op, query string, args ...any) ([]domain.SwapRequest, error) {
	rows, err := l.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	reqs := []domain.SwapRequest{}
	for rows.Next() {
		req, err := scanSwap(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return reqs, nil
}

func scanSwap(row rowScanner) (domain.SwapRequest, error) {
	var (
		req                  domain.SwapRequest
		status               string
		createdAt, updatedAt string
	)
	err := row.Scan(&req.ID, &req.RequesterID, &req.ResponderID,
		&req.RequesterEventID, &req.ResponderEventID, &status, &createdAt, &updatedAt)
	if err != nil {
		return domain.SwapRequest{}, err
	}
	req.Status = domain.SwapStatus(status)
	if req.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.SwapRequest{}, err
	}
	if req.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.SwapRequest{}, err
	}
	return req, nil
}

func alreadyResolved(req domain.SwapRequest) error {
	return domain.Errorf(domain.ErrCodeAlreadyResolved,
		"swap request %d is already %s", req.ID, req.Status).
		With("swap_id", strconv.FormatInt(req.ID, 10)).
		With("status", string(req.Status))
}
