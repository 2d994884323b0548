package harness

import (
	"fmt"
	"sort"
	"strings"
)

// TraceEvent records one executed step and its outcome.
type TraceEvent struct {
	Seq    int               `json:"seq"`
	Action string            `json:"action"`
	Args   map[string]string `json:"args,omitempty"`
	Case   string            `json:"case"`
	Result map[string]string `json:"result,omitempty"`
}

// String renders the event as "action k=v ... => Case k=v ...", keys
// sorted.
func (e TraceEvent) String() string {
	var b strings.Builder
	b.WriteString(e.Action)
	writePairs(&b, e.Args)
	b.WriteString(" => ")
	b.WriteString(e.Case)
	writePairs(&b, e.Result)
	return b.String()
}

func writePairs(b *strings.Builder, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%s", k, m[k])
	}
}

// EventState is a slot at the end of a run. Owner is a user name; a
// deleted slot has Status "DELETED" and no owner.
type EventState struct {
	Key    string
	Owner  string
	Status string
}

// SwapState is a request at the end of a run, by request number.
type SwapState struct {
	N         int
	Requester string
	Responder string
	Offer     string
	Want      string
	Status    string
}

// Published is a lifecycle message the engine emitted.
type Published struct {
	Kind  string
	Swap  int
	Actor string
}

// State is the final store contents, in declaration order.
type State struct {
	Events []EventState
	Swaps  []SwapState
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Scenario is the scenario name.
	Scenario string

	// Pass is true if every expect clause and assertion held.
	Pass bool

	// Trace contains every step in order.
	Trace []TraceEvent

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string

	State     State
	Published []Published
}

// NewResult creates a new passing result.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step outcome, numbering it.
func (r *Result) AddTrace(action string, args map[string]string, outcome string, result map[string]string) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:    len(r.Trace) + 1,
		Action: action,
		Args:   args,
		Case:   outcome,
		Result: result,
	})
}

// Format renders the result as the golden-file text.
func (r *Result) Format() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", r.Scenario)

	b.WriteString("trace:\n")
	for _, ev := range r.Trace {
		fmt.Fprintf(&b, "  %d %s\n", ev.Seq, ev)
	}

	b.WriteString("events:\n")
	for _, ev := range r.State.Events {
		if ev.Status == statusDeleted {
			fmt.Fprintf(&b, "  %s %s\n", ev.Key, statusDeleted)
			continue
		}
		fmt.Fprintf(&b, "  %s owner=%s status=%s\n", ev.Key, ev.Owner, ev.Status)
	}

	b.WriteString("swaps:\n")
	for _, sw := range r.State.Swaps {
		fmt.Fprintf(&b, "  %d %s:%s <-> %s:%s status=%s\n",
			sw.N, sw.Requester, sw.Offer, sw.Responder, sw.Want, sw.Status)
	}

	b.WriteString("published:\n")
	for _, p := range r.Published {
		fmt.Fprintf(&b, "  %s swap=%d actor=%s\n", p.Kind, p.Swap, p.Actor)
	}
	return []byte(b.String())
}
