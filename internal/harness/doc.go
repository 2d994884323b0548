// Package harness runs swap negotiation scenarios against a real engine.
//
// A scenario declares users and their slots, then drives the engine through
// a flow of steps and checks the outcome. Every run uses a fresh in-memory
// store, a fake clock and sequential message ids, so the trace it produces
// is identical across runs and can be compared against a golden file.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: accept_swap
//	description: "Accepting a request exchanges ownership"
//	users: [alice, bob]
//	events:
//	  - key: a
//	    owner: alice
//	    hour: 1
//	    status: SWAPPABLE
//	  - key: b
//	    owner: bob
//	    hour: 2
//	    status: SWAPPABLE
//	flow:
//	  - invoke: request
//	    actor: alice
//	    offer: a
//	    want: b
//	    expect:
//	      case: Success
//	  - invoke: respond
//	    actor: bob
//	    swap: 1
//	    accept: true
//	assertions:
//	  - type: final_state
//	    table: events
//	    where: { key: a }
//	    expect: { owner: bob, status: BUSY }
//
// Swaps are referred to by the 1-based order in which requests succeeded.
//
// # Steps
//
//   - request: actor offers event "offer" for event "want"
//   - respond: actor accepts (accept: true) or rejects swap N
//   - cancel: actor withdraws swap N
//   - set_status: actor sets event to status
//   - delete: actor deletes event
//   - advance: moves the clock forward by a duration ("by")
//   - expire: cancels requests pending longer than "older_than"
//
// A step's outcome case is "Success" or the error code the engine returned
// (CONFLICT, NOT_OWNER, ...).
//
// # Assertion Types
//
//   - trace_contains: a step with the action, subset-matching args and,
//     when given, the case
//   - trace_order: actions appear in the given order
//   - trace_count: an action appears exactly N times
//   - final_state: a row of the "events" or "swaps" table has the expected
//     values
//
// # Golden Files
//
// RunWithGolden renders the trace, final state and published lifecycle
// messages as text and compares them with testdata/golden/<name>.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness
