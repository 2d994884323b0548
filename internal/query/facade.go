// Package query provides read-only projections over slots and swap
// requests.
//
// Every method reads inside one store transaction, so a swap that is being
// committed concurrently is observed either entirely before or entirely
// after, never half applied.
package query

import (
	"context"

	"github.com/roach88/slotswap/internal/domain"
	"github.com/roach88/slotswap/internal/store"
)

// Facade answers the read side of the API.
type Facade struct {
	store *store.Store
}

// New creates a Facade over s.
func New(s *store.Store) *Facade {
	return &Facade{store: s}
}

// Dashboard is everything a user's landing page shows, read from a single
// snapshot.
type Dashboard struct {
	MyEvents  []domain.Event       `json:"my_events"`
	Swappable []domain.Event       `json:"swappable"`
	Incoming  []domain.SwapRequest `json:"incoming"`
	Outgoing  []domain.SwapRequest `json:"outgoing"`
}

// MyEvents lists the caller's events in start order.
func (f *Facade) MyEvents(ctx context.Context, userID int64) ([]domain.Event, error) {
	var out []domain.Event
	err := f.store.View(ctx, func(tx *store.Tx) error {
		var err error
		out, err = tx.Slots.ListByOwner(ctx, userID)
		return err
	})
	return out, err
}

// SwappableEvents lists SWAPPABLE events owned by anyone but the caller.
// LOCKED events are never included.
func (f *Facade) SwappableEvents(ctx context.Context, userID int64) ([]domain.Event, error) {
	var out []domain.Event
	err := f.store.View(ctx, func(tx *store.Tx) error {
		var err error
		out, err = tx.Slots.ListSwappable(ctx, userID)
		return err
	})
	return out, err
}

// IncomingRequests lists PENDING requests awaiting the caller's response,
// newest first.
func (f *Facade) IncomingRequests(ctx context.Context, userID int64) ([]domain.SwapRequest, error) {
	var out []domain.SwapRequest
	err := f.store.View(ctx, func(tx *store.Tx) error {
		var err error
		out, err = tx.Ledger.ListIncoming(ctx, userID)
		return err
	})
	return out, err
}

// OutgoingRequests lists every request the caller made, newest first.
func (f *Facade) OutgoingRequests(ctx context.Context, userID int64) ([]domain.SwapRequest, error) {
	var out []domain.SwapRequest
	err := f.store.View(ctx, func(tx *store.Tx) error {
		var err error
		out, err = tx.Ledger.ListOutgoing(ctx, userID)
		return err
	})
	return out, err
}

// Dashboard reads all four lists in one transaction.
func (f *Facade) Dashboard(ctx context.Context, userID int64) (Dashboard, error) {
	var d Dashboard
	err := f.store.View(ctx, func(tx *store.Tx) error {
		var err error
		if d.MyEvents, err = tx.Slots.ListByOwner(ctx, userID); err != nil {
			return err
		}
		if d.Swappable, err = tx.Slots.ListSwappable(ctx, userID); err != nil {
			return err
		}
		if d.Incoming, err = tx.Ledger.ListIncoming(ctx, userID); err != nil {
			return err
		}
		d.Outgoing, err = tx.Ledger.ListOutgoing(ctx, userID)
		return err
	})
	if err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// Me returns the caller's profile.
func (f *Facade) Me(ctx context.Context, userID int64) (domain.User, error) {
	var u domain.User
	err := f.store.View(ctx, func(tx *store.Tx) error {
		var err error
		u, err = tx.Users.ByID(ctx, userID)
		return err
	})
	return u, err
}
