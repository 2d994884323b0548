// Package broker publishes committed swap transitions to a message broker.
//
// The stream is an audit feed for downstream consumers (reporting, mail
// services). Delivery to end users is out of scope; a publish failure never
// undoes a committed transition.
package broker

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/slotswap/internal/domain"
)

// Kind names a swap transition. It doubles as the topic routing key.
type Kind string

const (
	KindRequested Kind = "swap.requested"
	KindAccepted  Kind = "swap.accepted"
	KindRejected  Kind = "swap.rejected"
	KindCancelled Kind = "swap.cancelled"
	KindExpired   Kind = "swap.expired"
)

// SwapEvent describes one committed swap transition.
type SwapEvent struct {
	ID               string            `json:"id"`
	Kind             Kind              `json:"kind"`
	SwapID           int64             `json:"swap_id"`
	Status           domain.SwapStatus `json:"status"`
	ActorID          int64             `json:"actor_id,omitempty"`
	RequesterID      int64             `json:"requester_id"`
	ResponderID      int64             `json:"responder_id"`
	RequesterEventID int64             `json:"requester_event_id"`
	ResponderEventID int64             `json:"responder_event_id"`
	OccurredAt       time.Time         `json:"occurred_at"`
}

// NewSwapEvent builds the event for req after a transition by actorID.
// actorID is zero for system transitions such as expiry.
func NewSwapEvent(id string, kind Kind, req domain.SwapRequest, actorID int64, at time.Time) SwapEvent {
	return SwapEvent{
		ID:               id,
		Kind:             kind,
		SwapID:           req.ID,
		Status:           req.Status,
		ActorID:          actorID,
		RequesterID:      req.RequesterID,
		ResponderID:      req.ResponderID,
		RequesterEventID: req.RequesterEventID,
		ResponderEventID: req.ResponderEventID,
		OccurredAt:       at.UTC(),
	}
}

// Publisher delivers swap events.
type Publisher interface {
	Publish(ctx context.Context, ev SwapEvent) error
	Close() error
}

// Discard drops every event. Used when no broker is configured.
type Discard struct{}

func (Discard) Publish(context.Context, SwapEvent) error { return nil }
func (Discard) Close() error                             { return nil }

// Recorder keeps published events in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []SwapEvent
}

// Publish appends ev.
func (r *Recorder) Publish(_ context.Context, ev SwapEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Close is a no-op.
func (r *Recorder) Close() error { return nil }

// Events returns a copy of the recorded events in publish order.
func (r *Recorder) Events() []SwapEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SwapEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the recorded kinds in publish order.
func (r *Recorder) Kinds() []Kind {
	events := r.Events()
	kinds := make([]Kind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	return kinds
}
