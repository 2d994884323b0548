package engine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/slotswap/internal/broker"
	"github.com/roach88/slotswap/internal/domain"
	"github.com/roach88/slotswap/internal/store"
)

// Publisher receives lifecycle events after a transition commits.
// broker.AMQP, broker.Discard and broker.Recorder implement it.
type Publisher interface {
	Publish(ctx context.Context, ev broker.SwapEvent) error
}

const tracerName = "github.com/roach88/slotswap/internal/engine"

// Engine is the swap negotiation state machine.
//
// Every exported mutation runs in exactly one store transaction. Any error
// inside it rolls the whole transition back, so no caller ever observes a
// slot LOCKED without a PENDING request or a half-transferred pair.
//
// Thread-safety: Engine is safe for concurrent use. Serialization comes
// from the store's single writer connection plus compare-and-swap updates.
type Engine struct {
	store     *store.Store
	clock     Clock
	ids       IDGenerator
	publisher Publisher
	// publishTimeout bounds each post-commit Publish call.
	publishTimeout time.Duration
	tracer         trace.Tracer
}

// DefaultPublishTimeout is how long a transition waits on the broker after
// commit before giving up on the message.
const DefaultPublishTimeout = 5 * time.Second

// Option allows configuration of engine collaborators.
type Option func(*Engine)

// WithClock sets the time source for expiry cutoffs and event timestamps.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets the lifecycle message id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithPublisher sets where committed transitions are published.
//
// Default: broker.Discard (nothing is published)
func WithPublisher(p Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithPublishTimeout sets the deadline for each lifecycle publish.
// Non-positive values keep DefaultPublishTimeout.
func WithPublishTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.publishTimeout = d
		}
	}
}

// New creates an Engine over s.
//
// Options can be passed to replace the clock, id generator and publisher.
// Spans go to the global OpenTelemetry tracer provider, which is a no-op
// until telemetry.Setup installs one.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:          s,
		clock:          SystemClock{},
		ids:            UUIDv7Generator{},
		publisher:      broker.Discard{},
		publishTimeout: DefaultPublishTimeout,
		tracer:         otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Outcome is the result of a swap transition: the request and both slots
// as they stand after commit.
type Outcome struct {
	Request        domain.SwapRequest `json:"request"`
	RequesterEvent domain.Event       `json:"requester_event"`
	ResponderEvent domain.Event       `json:"responder_event"`
}

// RequestSwap offers mySlotID in exchange for theirSlotID.
//
// Checks run in this order and the first failure is returned:
//  1. NOT_FOUND if either slot is missing
//  2. NOT_OWNER if requesterID does not own mySlotID
//  3. INVALID_STATE if either slot is BUSY
//  4. SELF_SWAP if both slots share an owner
//  5. CONFLICT if either slot is LOCKED or has a PENDING request
//
// On success both slots are LOCKED and a PENDING request exists, atomically.
// When two requesters race for the same slot, the second transaction sees
// the first one's lock and fails at step 5.
func (e *Engine) RequestSwap(ctx context.Context, requesterID, mySlotID, theirSlotID int64) (Outcome, error) {
	ctx, span := e.tracer.Start(ctx, "engine.RequestSwap", trace.WithAttributes(
		attribute.Int64("swap.actor_id", requesterID),
		attribute.Int64("swap.requester_event_id", mySlotID),
		attribute.Int64("swap.responder_event_id", theirSlotID),
	))
	defer span.End()

	var out Outcome
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		mine, err := tx.Slots.Get(ctx, mySlotID)
		if err != nil {
			return err
		}
		theirs, err := tx.Slots.Get(ctx, theirSlotID)
		if err != nil {
			return err
		}

		if mine.OwnerID != requesterID {
			return domain.NewNotOwner("event", mine.ID, requesterID)
		}
		for _, ev := range []domain.Event{mine, theirs} {
			if ev.Status == domain.StatusBusy {
				return domain.Errorf(domain.ErrCodeInvalidState, "event %d is not swappable", ev.ID)
			}
		}
		if mine.OwnerID == theirs.OwnerID {
			return domain.Errorf(domain.ErrCodeSelfSwap, "events %d and %d have the same owner", mine.ID, theirs.ID)
		}
		for _, ev := range []domain.Event{mine, theirs} {
			if err := checkUnclaimed(ctx, tx, ev); err != nil {
				return err
			}
		}

		if err := tx.Slots.Lock(ctx, mine.ID, theirs.ID); err != nil {
			return err
		}
		req, err := tx.Ledger.Create(ctx, requesterID, theirs.OwnerID, mine.ID, theirs.ID)
		if err != nil {
			return err
		}
		out, err = loadOutcome(ctx, tx, req)
		return err
	})
	if err != nil {
		return Outcome{}, fail(span, err)
	}

	slog.Info("swap requested",
		"swap_id", out.Request.ID,
		"requester_id", requesterID,
		"responder_id", out.Request.ResponderID,
		"requester_event_id", mySlotID,
		"responder_event_id", theirSlotID,
	)
	e.publish(ctx, broker.KindRequested, out.Request, requesterID)
	return out, nil
}

// RespondSwap accepts or rejects a PENDING request on behalf of the owner
// of its responder-side slot.
//
// Accept exchanges the owners of both slots and leaves both BUSY. Reject
// returns both slots to SWAPPABLE with owners unchanged. Either way the
// request and both slots change in one transaction.
//
// A second response to the same request fails with ALREADY_RESOLVED and
// changes nothing.
func (e *Engine) RespondSwap(ctx context.Context, responderID, swapID int64, accept bool) (Outcome, error) {
	ctx, span := e.tracer.Start(ctx, "engine.RespondSwap", trace.WithAttributes(
		attribute.Int64("swap.actor_id", responderID),
		attribute.Int64("swap.id", swapID),
		attribute.Bool("swap.accept", accept),
	))
	defer span.End()

	var out Outcome
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		req, err := pendingRequest(ctx, tx, swapID)
		if err != nil {
			return err
		}

		// Ownership is read from the slot, not the request, so a stale
		// responder id can never resolve a request.
		target, err := tx.Slots.Get(ctx, req.ResponderEventID)
		if err != nil {
			return err
		}
		if target.OwnerID != responderID {
			return domain.NewNotOwner("event", target.ID, responderID)
		}

		if accept {
			if err := tx.Slots.TransferOwnership(ctx, req.RequesterEventID, req.ResponderEventID); err != nil {
				return err
			}
			req, err = tx.Ledger.SetStatus(ctx, req.ID, domain.SwapAccepted)
		} else {
			req, err = tx.Ledger.SetStatus(ctx, req.ID, domain.SwapRejected)
			if err == nil {
				err = tx.Slots.Unlock(ctx, req.RequesterEventID, req.ResponderEventID)
			}
		}
		if err != nil {
			return err
		}
		out, err = loadOutcome(ctx, tx, req)
		return err
	})
	if err != nil {
		return Outcome{}, fail(span, err)
	}

	kind := broker.KindRejected
	if accept {
		kind = broker.KindAccepted
	}
	slog.Info("swap resolved",
		"swap_id", swapID,
		"status", out.Request.Status,
		"responder_id", responderID,
	)
	e.publish(ctx, kind, out.Request, responderID)
	return out, nil
}

// CancelSwap withdraws a PENDING request. Only its requester may cancel.
// Both slots return to SWAPPABLE.
func (e *Engine) CancelSwap(ctx context.Context, requesterID, swapID int64) (Outcome, error) {
	ctx, span := e.tracer.Start(ctx, "engine.CancelSwap", trace.WithAttributes(
		attribute.Int64("swap.actor_id", requesterID),
		attribute.Int64("swap.id", swapID),
	))
	defer span.End()

	var out Outcome
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		req, err := pendingRequest(ctx, tx, swapID)
		if err != nil {
			return err
		}
		if req.RequesterID != requesterID {
			return domain.NewNotOwner("swap request", req.ID, requesterID)
		}
		out, err = cancel(ctx, tx, req)
		return err
	})
	if err != nil {
		return Outcome{}, fail(span, err)
	}

	slog.Info("swap cancelled", "swap_id", swapID, "requester_id", requesterID)
	e.publish(ctx, broker.KindCancelled, out.Request, requesterID)
	return out, nil
}

// EventInput carries the client-settable fields of a slot.
type EventInput struct {
	Title  string
	Start  time.Time
	End    time.Time
	Status domain.EventStatus // empty means BUSY; ignored by UpdateEvent
}

// CreateEvent adds a slot owned by ownerID.
func (e *Engine) CreateEvent(ctx context.Context, ownerID int64, in EventInput) (domain.Event, error) {
	ctx, span := e.tracer.Start(ctx, "engine.CreateEvent", trace.WithAttributes(
		attribute.Int64("swap.actor_id", ownerID),
	))
	defer span.End()

	var ev domain.Event
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		ev, err = tx.Slots.Create(ctx, ownerID, in.Title, in.Start, in.End, in.Status)
		return err
	})
	if err != nil {
		return domain.Event{}, fail(span, err)
	}
	slog.Debug("event created", "event_id", ev.ID, "owner_id", ownerID, "status", ev.Status)
	return ev, nil
}

// SetEventStatus applies an owner-requested BUSY/SWAPPABLE change.
// Asking for LOCKED fails with FORBIDDEN_TRANSITION.
func (e *Engine) SetEventStatus(ctx context.Context, ownerID, eventID int64, status domain.EventStatus) (domain.Event, error) {
	ctx, span := e.tracer.Start(ctx, "engine.SetEventStatus", trace.WithAttributes(
		attribute.Int64("swap.actor_id", ownerID),
		attribute.Int64("event.id", eventID),
		attribute.String("event.status", string(status)),
	))
	defer span.End()

	var ev domain.Event
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		ev, err = tx.Slots.SetStatus(ctx, eventID, ownerID, status)
		return err
	})
	if err != nil {
		return domain.Event{}, fail(span, err)
	}
	slog.Debug("event status set", "event_id", eventID, "status", ev.Status)
	return ev, nil
}

// UpdateEvent edits title and times of an unlocked slot.
func (e *Engine) UpdateEvent(ctx context.Context, ownerID, eventID int64, in EventInput) (domain.Event, error) {
	ctx, span := e.tracer.Start(ctx, "engine.UpdateEvent", trace.WithAttributes(
		attribute.Int64("swap.actor_id", ownerID),
		attribute.Int64("event.id", eventID),
	))
	defer span.End()

	var ev domain.Event
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		ev, err = tx.Slots.Update(ctx, eventID, ownerID, in.Title, in.Start, in.End)
		return err
	})
	if err != nil {
		return domain.Event{}, fail(span, err)
	}
	return ev, nil
}

// DeleteEvent removes an unlocked slot.
func (e *Engine) DeleteEvent(ctx context.Context, ownerID, eventID int64) error {
	ctx, span := e.tracer.Start(ctx, "engine.DeleteEvent", trace.WithAttributes(
		attribute.Int64("swap.actor_id", ownerID),
		attribute.Int64("event.id", eventID),
	))
	defer span.End()

	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		return tx.Slots.Delete(ctx, eventID, ownerID)
	})
	if err != nil {
		return fail(span, err)
	}
	slog.Debug("event deleted", "event_id", eventID, "owner_id", ownerID)
	return nil
}

// checkUnclaimed fails with CONFLICT when ev is locked or already named by
// a PENDING request.
func checkUnclaimed(ctx context.Context, tx *store.Tx, ev domain.Event) error {
	if ev.Status == domain.StatusLocked {
		return domain.Errorf(domain.ErrCodeConflict, "event %d is locked by a pending swap", ev.ID)
	}
	pending, err := tx.Ledger.HasPendingFor(ctx, ev.ID)
	if err != nil {
		return err
	}
	if pending {
		return domain.Errorf(domain.ErrCodeConflict, "event %d already has a pending swap", ev.ID)
	}
	return nil
}

// pendingRequest loads a request and fails with ALREADY_RESOLVED if it is
// terminal.
func pendingRequest(ctx context.Context, tx *store.Tx, swapID int64) (domain.SwapRequest, error) {
	req, err := tx.Ledger.Get(ctx, swapID)
	if err != nil {
		return domain.SwapRequest{}, err
	}
	if req.Status.Terminal() {
		return domain.SwapRequest{}, domain.Errorf(domain.ErrCodeAlreadyResolved,
			"swap request %d is already %s", req.ID, req.Status)
	}
	return req, nil
}

// cancel marks req CANCELLED and unlocks both slots.
func cancel(ctx context.Context, tx *store.Tx, req domain.SwapRequest) (Outcome, error) {
	req, err := tx.Ledger.SetStatus(ctx, req.ID, domain.SwapCancelled)
	if err != nil {
		return Outcome{}, err
	}
	if err := tx.Slots.Unlock(ctx, req.RequesterEventID, req.ResponderEventID); err != nil {
		return Outcome{}, err
	}
	return loadOutcome(ctx, tx, req)
}

func loadOutcome(ctx context.Context, tx *store.Tx, req domain.SwapRequest) (Outcome, error) {
	requesterEvent, err := tx.Slots.Get(ctx, req.RequesterEventID)
	if err != nil {
		return Outcome{}, err
	}
	responderEvent, err := tx.Slots.Get(ctx, req.ResponderEventID)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Request: req, RequesterEvent: requesterEvent, ResponderEvent: responderEvent}, nil
}

// publish sends a lifecycle event for a committed transition. Failures are
// logged; the transition stays committed.
func (e *Engine) publish(ctx context.Context, kind broker.Kind, req domain.SwapRequest, actorID int64) {
	ev := broker.NewSwapEvent(e.ids.Generate(), kind, req, actorID, e.clock.Now())
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.publishTimeout)
	defer cancel()
	if err := e.publisher.Publish(ctx, ev); err != nil {
		slog.Warn("publish swap event failed",
			"kind", kind,
			"swap_id", req.ID,
			"error", err,
		)
	}
}

// fail records err on span and returns it unchanged.
func fail(span trace.Span, err error) error {
	if code := domain.CodeOf(err); code != "" {
		span.SetAttributes(attribute.String("swap.error_code", string(code)))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
