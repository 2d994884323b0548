package harness

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/roach88/slotswap/internal/broker"
	"github.com/roach88/slotswap/internal/domain"
	"github.com/roach88/slotswap/internal/engine"
	"github.com/roach88/slotswap/internal/store"
	"github.com/roach88/slotswap/internal/testutil"
)

const (
	systemActor   = "system"
	statusDeleted = "DELETED"
)

// Harness holds one scenario run: the store, the engine under test and the
// name tables that map scenario names to database ids.
type Harness struct {
	store    *store.Store
	engine   *engine.Engine
	clock    *testutil.FakeClock
	recorder *broker.Recorder

	users     map[string]int64
	userNames map[int64]string
	events    map[string]int64
	eventKeys map[int64]string
	swaps     []int64
	swapNums  map[int64]int
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. The clock starts at
// testutil.Epoch and lifecycle message ids are sequential, so identical
// scenarios produce identical results.
//
// Execution flow:
//  1. Create users and events
//  2. Execute flow steps, checking expect clauses
//  3. Snapshot final state and published messages
//  4. Evaluate assertions
//
// An error is returned only when the run itself could not proceed; expect
// and assertion failures are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	clock := testutil.NewFakeClock()
	st, err := store.Open(":memory:", store.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := newHarness(st, clock)

	ctx := context.Background()
	result := NewResult(scenario.Name)

	if err := h.setup(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	for i, step := range scenario.Flow {
		outcome, err := h.execute(ctx, step, result)
		if err != nil {
			return nil, fmt.Errorf("flow[%d] %s: %w", i, step.Invoke, err)
		}
		if step.Expect != nil && step.Expect.Case != outcome {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected case %s, got %s",
				i, step.Invoke, step.Expect.Case, outcome))
		}
	}

	if err := h.snapshot(ctx, scenario, result); err != nil {
		return nil, fmt.Errorf("failed to snapshot state: %w", err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

func newHarness(st *store.Store, clock *testutil.FakeClock) *Harness {
	rec := &broker.Recorder{}
	return &Harness{
		store: st,
		engine: engine.New(st,
			engine.WithClock(clock),
			engine.WithIDGenerator(testutil.NewSequenceIDs("msg")),
			engine.WithPublisher(rec),
		),
		clock:     clock,
		recorder:  rec,
		users:     make(map[string]int64),
		userNames: map[int64]string{0: systemActor},
		events:    make(map[string]int64),
		eventKeys: make(map[int64]string),
		swapNums:  make(map[int64]int),
	}
}

// setup creates users and events. Setup is assumed to succeed.
func (h *Harness) setup(ctx context.Context, scenario *Scenario) error {
	err := h.store.WithTx(ctx, func(tx *store.Tx) error {
		for _, name := range scenario.Users {
			u, err := tx.Users.Create(ctx, name, name+"@example.com", "-")
			if err != nil {
				return fmt.Errorf("user %s: %w", name, err)
			}
			h.users[name] = u.ID
			h.userNames[u.ID] = name
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, decl := range scenario.Events {
		title := decl.Title
		if title == "" {
			title = decl.Key
		}
		start := testutil.Epoch.Add(time.Duration(decl.Hour) * time.Hour)
		ev, err := h.engine.CreateEvent(ctx, h.users[decl.Owner], engine.EventInput{
			Title:  title,
			Start:  start,
			End:    start.Add(time.Hour),
			Status: domain.EventStatus(decl.Status),
		})
		if err != nil {
			return fmt.Errorf("event %s: %w", decl.Key, err)
		}
		h.events[decl.Key] = ev.ID
		h.eventKeys[ev.ID] = decl.Key
	}
	return nil
}

// execute runs one step, records it in the trace and returns its case.
// Engine errors carrying a code become the case; anything else aborts the
// run.
func (h *Harness) execute(ctx context.Context, step FlowStep, result *Result) (string, error) {
	args := map[string]string{}
	out := map[string]string{}
	if step.Actor != "" {
		args["actor"] = step.Actor
	}
	actor := h.users[step.Actor]

	var err error
	switch step.Invoke {
	case StepRequest:
		args["offer"], args["want"] = step.Offer, step.Want
		var o engine.Outcome
		o, err = h.engine.RequestSwap(ctx, actor, h.events[step.Offer], h.events[step.Want])
		if err == nil {
			h.swaps = append(h.swaps, o.Request.ID)
			h.swapNums[o.Request.ID] = len(h.swaps)
			h.describeSwap(out, o.Request)
		}

	case StepRespond:
		if step.Accept == nil {
			return "", fmt.Errorf("accept is required for respond")
		}
		args["swap"] = strconv.Itoa(step.Swap)
		args["accept"] = strconv.FormatBool(*step.Accept)
		var o engine.Outcome
		o, err = h.engine.RespondSwap(ctx, actor, h.swapID(step.Swap), *step.Accept)
		if err == nil {
			h.describeSwap(out, o.Request)
		}

	case StepCancel:
		args["swap"] = strconv.Itoa(step.Swap)
		var o engine.Outcome
		o, err = h.engine.CancelSwap(ctx, actor, h.swapID(step.Swap))
		if err == nil {
			h.describeSwap(out, o.Request)
		}

	case StepSetStatus:
		args["event"], args["status"] = step.Event, step.Status
		var ev domain.Event
		ev, err = h.engine.SetEventStatus(ctx, actor, h.events[step.Event], domain.EventStatus(step.Status))
		if err == nil {
			out["status"] = string(ev.Status)
		}

	case StepDelete:
		args["event"] = step.Event
		err = h.engine.DeleteEvent(ctx, actor, h.events[step.Event])

	case StepAdvance:
		args["by"] = step.By
		d, _ := time.ParseDuration(step.By)
		h.clock.Advance(d)

	case StepExpire:
		args["older_than"] = step.OlderThan
		d, _ := time.ParseDuration(step.OlderThan)
		var expired []domain.SwapRequest
		expired, err = h.engine.ExpirePending(ctx, d)
		if err == nil {
			out["expired"] = strconv.Itoa(len(expired))
		}

	default:
		return "", fmt.Errorf("unknown step %q", step.Invoke)
	}

	outcome := CaseSuccess
	if err != nil {
		code := domain.CodeOf(err)
		if code == "" {
			return "", err
		}
		outcome = string(code)
		out = nil
	}
	result.AddTrace(step.Invoke, args, outcome, out)
	return outcome, nil
}

// swapID maps a request number to its id. Unknown numbers map to 0, which
// the engine reports as NOT_FOUND.
func (h *Harness) swapID(n int) int64 {
	if n < 1 || n > len(h.swaps) {
		return 0
	}
	return h.swaps[n-1]
}

func (h *Harness) describeSwap(out map[string]string, req domain.SwapRequest) {
	out["swap"] = strconv.Itoa(h.swapNums[req.ID])
	out["status"] = string(req.Status)
}

// snapshot reads every declared event and every created request in one
// transaction, and collects published messages.
func (h *Harness) snapshot(ctx context.Context, scenario *Scenario, result *Result) error {
	err := h.store.View(ctx, func(tx *store.Tx) error {
		for _, decl := range scenario.Events {
			ev, err := tx.Slots.Get(ctx, h.events[decl.Key])
			if domain.Is(err, domain.ErrCodeNotFound) {
				result.State.Events = append(result.State.Events, EventState{Key: decl.Key, Status: statusDeleted})
				continue
			}
			if err != nil {
				return err
			}
			result.State.Events = append(result.State.Events, EventState{
				Key:    decl.Key,
				Owner:  h.userNames[ev.OwnerID],
				Status: string(ev.Status),
			})
		}

		for i, id := range h.swaps {
			req, err := tx.Ledger.Get(ctx, id)
			if err != nil {
				return err
			}
			result.State.Swaps = append(result.State.Swaps, SwapState{
				N:         i + 1,
				Requester: h.userNames[req.RequesterID],
				Responder: h.userNames[req.ResponderID],
				Offer:     h.eventKeys[req.RequesterEventID],
				Want:      h.eventKeys[req.ResponderEventID],
				Status:    string(req.Status),
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, ev := range h.recorder.Events() {
		result.Published = append(result.Published, Published{
			Kind:  string(ev.Kind),
			Swap:  h.swapNums[ev.SwapID],
			Actor: h.userNames[ev.ActorID],
		})
	}
	return nil
}
