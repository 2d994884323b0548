package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/slotswap/internal/domain"
	"github.com/roach88/slotswap/internal/engine"
)

// clientTime accepts RFC 3339 and the zone-less forms a browser
// datetime-local input produces. Zone-less values are read as UTC.
type clientTime struct {
	time.Time
}

var clientTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func (t *clientTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("time must be a string: %w", err)
	}
	for _, layout := range clientTimeLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised time %q", s)
}

type eventView struct {
	domain.Event
	UserID int64 `json:"user_id"`
}

func newEventView(ev domain.Event) eventView {
	return eventView{Event: ev, UserID: ev.OwnerID}
}

func newEventViews(events []domain.Event) []eventView {
	out := make([]eventView, len(events))
	for i, ev := range events {
		out[i] = newEventView(ev)
	}
	return out
}

// swapView is the request plus, for mutations, both slots after commit.
type swapView struct {
	domain.SwapRequest
	RequesterEvent *eventView `json:"requester_event,omitempty"`
	ResponderEvent *eventView `json:"responder_event,omitempty"`
}

func newOutcomeView(out engine.Outcome) swapView {
	req, resp := newEventView(out.RequesterEvent), newEventView(out.ResponderEvent)
	return swapView{SwapRequest: out.Request, RequesterEvent: &req, ResponderEvent: &resp}
}

func newSwapViews(reqs []domain.SwapRequest) []swapView {
	out := make([]swapView, len(reqs))
	for i, r := range reqs {
		out[i] = swapView{SwapRequest: r}
	}
	return out
}

type userView struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func newUserView(u domain.User) userView {
	return userView{ID: u.ID, Name: u.Name, Email: u.Email}
}

type dashboardView struct {
	User      userView    `json:"user"`
	MyEvents  []eventView `json:"my_events"`
	Swappable []eventView `json:"swappable"`
	Incoming  []swapView  `json:"incoming"`
	Outgoing  []swapView  `json:"outgoing"`
}
