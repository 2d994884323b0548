package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/roach88/slotswap/internal/domain"
)

var testEpoch = time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

// stepClock advances one second on every call so row timestamps are
// distinct and ordered.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(&stepClock{t: testEpoch}))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestUser registers a user named name and returns its id.
func createTestUser(t *testing.T, s *Store, name string) int64 {
	t.Helper()
	var id int64
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		u, err := tx.Users.Create(context.Background(), name, name+"@example.com", "hash")
		id = u.ID
		return err
	})
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return id
}

// createTestEvent creates a one-hour slot starting hour hours after the
// epoch.
func createTestEvent(t *testing.T, s *Store, ownerID int64, hour int, status domain.EventStatus) domain.Event {
	t.Helper()
	start := testEpoch.Add(time.Duration(hour) * time.Hour)
	var ev domain.Event
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		var err error
		ev, err = tx.Slots.Create(context.Background(), ownerID, "slot", start, start.Add(time.Hour), status)
		return err
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return ev
}

// inTx runs fn in a committed transaction and fails the test on error.
func inTx(t *testing.T, s *Store, fn func(ctx context.Context, tx *Tx) error) {
	t.Helper()
	ctx := context.Background()
	if err := s.WithTx(ctx, func(tx *Tx) error { return fn(ctx, tx) }); err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}

// txErr runs fn in a transaction and returns its error.
func txErr(s *Store, fn func(ctx context.Context, tx *Tx) error) error {
	ctx := context.Background()
	return s.WithTx(ctx, func(tx *Tx) error { return fn(ctx, tx) })
}
