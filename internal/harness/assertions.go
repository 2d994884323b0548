package harness

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// final_state tables.
const (
	tableEvents = "events"
	tableSwaps  = "swaps"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, event)
		}
	}

	return buf.String()
}

// matches reports whether a trace event is the assertion's action, with the
// assertion's case if one is given.
func (a Assertion) matches(event TraceEvent) bool {
	if event.Action != a.Action {
		return false
	}
	return a.Case == "" || a.Case == event.Case
}

// assertTraceContains checks that some step matches the action, optional
// case and args (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if assertion.matches(event) && matchArgs(event.Args, assertion.Args) {
			return nil
		}
	}

	expected := fmt.Sprintf("action %s with args %v", assertion.Action, assertion.Args)
	if assertion.Case != "" {
		expected += " => " + assertion.Case
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if actions appear in the specified order.
// Actions don't need to be consecutive (intervening actions are allowed).
// Each expected action is matched at or after the previous match, so an
// action may be listed more than once.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for _, action := range assertion.Actions {
		found := false
		for pos < len(trace) {
			event := trace[pos]
			pos++
			if event.Action == action {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual:   fmt.Sprintf("no %s after step %d", action, pos),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the action appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if assertion.matches(event) {
			count++
		}
	}

	if count != assertion.Count {
		what := assertion.Action
		if assertion.Case != "" {
			what += " => " + assertion.Case
		}
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, what),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState finds exactly one row of the snapshot table matching
// Where and checks the Expect fields against it (subset semantics).
func assertFinalState(state State, assertion Assertion) error {
	var rows []map[string]string
	switch assertion.Table {
	case tableEvents:
		for _, ev := range state.Events {
			rows = append(rows, map[string]string{
				"key":    ev.Key,
				"owner":  ev.Owner,
				"status": ev.Status,
			})
		}
	case tableSwaps:
		for _, sw := range state.Swaps {
			rows = append(rows, map[string]string{
				"swap":      strconv.Itoa(sw.N),
				"requester": sw.Requester,
				"responder": sw.Responder,
				"offer":     sw.Offer,
				"want":      sw.Want,
				"status":    sw.Status,
			})
		}
	default:
		return fmt.Errorf("final_state: unknown table %q", assertion.Table)
	}

	var matched []map[string]string
	for _, row := range rows {
		if matchArgs(row, assertion.Where) {
			matched = append(matched, row)
		}
	}

	whereDesc := formatWhere(assertion.Where)
	switch len(matched) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, whereDesc),
			Actual:   "row not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, whereDesc),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	row := matched[0]
	for _, key := range sortedKeys(assertion.Expect) {
		actual, exists := row[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in %s", key, assertion.Table),
			}
		}
		if expected := fmt.Sprint(assertion.Expect[key]); expected != actual {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s where %s: %s = %s", assertion.Table, whereDesc, key, expected),
				Actual:   fmt.Sprintf("%s = %s", key, actual),
			}
		}
	}

	return nil
}

// matchArgs checks if actual contains all expected keys with equal values.
// YAML scalars are compared by their string form, so `swap: 1` matches
// "1". Extra keys in actual are ignored.
func matchArgs(actual map[string]string, expected map[string]any) bool {
	for key, expectedVal := range expected {
		actualVal, exists := actual[key]
		if !exists || actualVal != fmt.Sprint(expectedVal) {
			return false
		}
	}
	return true
}

// formatWhere creates a human-readable description of WHERE conditions.
func formatWhere(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.State, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
