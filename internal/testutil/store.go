package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/slotswap/internal/domain"
	"github.com/roach88/slotswap/internal/store"
)

// NewStore opens a file-backed store in t.TempDir() using clock for row
// timestamps. The store is closed on test cleanup.
func NewStore(t testing.TB, clock store.Clock) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), store.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// CreateUser registers name with email name@example.com and a
// placeholder password hash.
func CreateUser(t testing.TB, s *store.Store, name string) domain.User {
	t.Helper()
	var u domain.User
	err := s.WithTx(context.Background(), func(tx *store.Tx) error {
		var err error
		u, err = tx.Users.Create(context.Background(), name, name+"@example.com", "x")
		return err
	})
	require.NoError(t, err)
	return u
}

// CreateEvent creates a one-hour slot for owner starting hour hours after
// Epoch.
func CreateEvent(t testing.TB, s *store.Store, ownerID int64, title string, hour int, status domain.EventStatus) domain.Event {
	t.Helper()
	start := Epoch.Add(time.Duration(hour) * time.Hour)
	var ev domain.Event
	err := s.WithTx(context.Background(), func(tx *store.Tx) error {
		var err error
		ev, err = tx.Slots.Create(context.Background(), ownerID, title, start, start.Add(time.Hour), status)
		return err
	})
	require.NoError(t, err)
	return ev
}

// GetEvent reloads an event.
func GetEvent(t testing.TB, s *store.Store, id int64) domain.Event {
	t.Helper()
	var ev domain.Event
	err := s.View(context.Background(), func(tx *store.Tx) error {
		var err error
		ev, err = tx.Slots.Get(context.Background(), id)
		return err
	})
	require.NoError(t, err)
	return ev
}

// GetSwap reloads a swap request.
func GetSwap(t testing.TB, s *store.Store, id int64) domain.SwapRequest {
	t.Helper()
	var req domain.SwapRequest
	err := s.View(context.Background(), func(tx *store.Tx) error {
		var err error
		req, err = tx.Ledger.Get(context.Background(), id)
		return err
	})
	require.NoError(t, err)
	return req
}
