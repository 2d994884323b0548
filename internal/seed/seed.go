// Package seed loads demo users, slots and swaps from CUE files.
//
// A seed file is unified with the embedded #Seed schema before anything is
// written, so a malformed file is rejected with a CUE position and the
// database is untouched.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/slotswap/internal/auth"
	"github.com/roach88/slotswap/internal/domain"
	"github.com/roach88/slotswap/internal/engine"
	"github.com/roach88/slotswap/internal/store"
)

//go:embed schema.cue
var schemaSrc string

// File is a decoded seed file.
type File struct {
	Users  []User  `json:"users"`
	Events []Event `json:"events"`
	Swaps  []Swap  `json:"swaps"`
}

type User struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Event struct {
	Key    string `json:"key"`
	Owner  string `json:"owner"`
	Title  string `json:"title"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Status string `json:"status"`
}

type Swap struct {
	Offer   string `json:"offer"`
	Want    string `json:"want"`
	Respond string `json:"respond,omitempty"`
}

// LoadError reports a seed file that does not satisfy the schema.
type LoadError struct {
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// LoadFile reads and validates the seed file at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Load(data, path)
}

// Load validates CUE source against #Seed and decodes it. filename is used
// in error positions only.
func Load(data []byte, filename string) (*File, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile seed schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Seed")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var f File
	if err := unified.Decode(&f); err != nil {
		return nil, formatCUEError(err)
	}
	if err := f.check(); err != nil {
		return nil, err
	}
	return &f, nil
}

// check enforces cross-references the schema cannot express.
func (f *File) check() error {
	emails := make(map[string]bool, len(f.Users))
	for _, u := range f.Users {
		emails[domain.NormalizeEmail(u.Email)] = true
	}
	keys := make(map[string]bool, len(f.Events))
	for _, ev := range f.Events {
		if keys[ev.Key] {
			return &LoadError{Message: fmt.Sprintf("duplicate event key %q", ev.Key)}
		}
		keys[ev.Key] = true
		if !emails[domain.NormalizeEmail(ev.Owner)] {
			return &LoadError{Message: fmt.Sprintf("event %q: unknown owner %q", ev.Key, ev.Owner)}
		}
		if _, err := time.Parse(time.RFC3339, ev.Start); err != nil {
			return &LoadError{Message: fmt.Sprintf("event %q: start: %v", ev.Key, err)}
		}
		if _, err := time.Parse(time.RFC3339, ev.End); err != nil {
			return &LoadError{Message: fmt.Sprintf("event %q: end: %v", ev.Key, err)}
		}
	}
	for i, sw := range f.Swaps {
		for _, k := range []string{sw.Offer, sw.Want} {
			if !keys[k] {
				return &LoadError{Message: fmt.Sprintf("swap %d: unknown event key %q", i, k)}
			}
		}
	}
	return nil
}

// Summary counts what Apply created.
type Summary struct {
	Users  int `json:"users"`
	Events int `json:"events"`
	Swaps  int `json:"swaps"`
}

// Apply writes f through the engine, in file order. Users are created
// first, then events, then swaps with their optional response.
//
// Apply is not atomic across entries: it stops at the first failure and
// reports how far it got.
func Apply(ctx context.Context, s *store.Store, eng *engine.Engine, f *File) (Summary, error) {
	var sum Summary
	users := make(map[string]int64, len(f.Users))
	for _, u := range f.Users {
		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			return sum, fmt.Errorf("user %s: %w", u.Email, err)
		}
		var created domain.User
		err = s.WithTx(ctx, func(tx *store.Tx) error {
			var err error
			created, err = tx.Users.Create(ctx, u.Name, u.Email, hash)
			return err
		})
		if err != nil {
			return sum, fmt.Errorf("user %s: %w", u.Email, err)
		}
		users[created.Email] = created.ID
		sum.Users++
	}

	type slot struct{ id, owner int64 }
	events := make(map[string]slot, len(f.Events))
	for _, ev := range f.Events {
		owner := users[domain.NormalizeEmail(ev.Owner)]
		start, _ := time.Parse(time.RFC3339, ev.Start)
		end, _ := time.Parse(time.RFC3339, ev.End)
		created, err := eng.CreateEvent(ctx, owner, engine.EventInput{
			Title:  ev.Title,
			Start:  start,
			End:    end,
			Status: domain.EventStatus(ev.Status),
		})
		if err != nil {
			return sum, fmt.Errorf("event %s: %w", ev.Key, err)
		}
		events[ev.Key] = slot{id: created.ID, owner: owner}
		sum.Events++
	}

	for i, sw := range f.Swaps {
		offer, want := events[sw.Offer], events[sw.Want]
		out, err := eng.RequestSwap(ctx, offer.owner, offer.id, want.id)
		if err != nil {
			return sum, fmt.Errorf("swap %d: %w", i, err)
		}
		switch sw.Respond {
		case "accept", "reject":
			_, err = eng.RespondSwap(ctx, want.owner, out.Request.ID, sw.Respond == "accept")
		case "cancel":
			_, err = eng.CancelSwap(ctx, offer.owner, out.Request.ID)
		}
		if err != nil {
			return sum, fmt.Errorf("swap %d %s: %w", i, sw.Respond, err)
		}
		sum.Swaps++
	}

	slog.Info("seed applied", "users", sum.Users, "events", sum.Events, "swaps", sum.Swaps)
	return sum, nil
}

// formatCUEError keeps the first error and its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	le := &LoadError{Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
