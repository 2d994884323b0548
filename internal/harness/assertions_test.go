package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	r := NewResult("sample")
	r.AddTrace(StepRequest, map[string]string{"actor": "alice", "offer": "a", "want": "b"},
		CaseSuccess, map[string]string{"swap": "1", "status": "PENDING"})
	r.AddTrace(StepRequest, map[string]string{"actor": "carol", "offer": "c", "want": "b"},
		"CONFLICT", nil)
	r.AddTrace(StepRespond, map[string]string{"actor": "bob", "swap": "1", "accept": "true"},
		CaseSuccess, map[string]string{"swap": "1", "status": "ACCEPTED"})
	return r.Trace
}

func sampleState() State {
	return State{
		Events: []EventState{
			{Key: "a", Owner: "bob", Status: "BUSY"},
			{Key: "b", Owner: "alice", Status: "BUSY"},
			{Key: "c", Status: statusDeleted},
		},
		Swaps: []SwapState{
			{N: 1, Requester: "alice", Responder: "bob", Offer: "a", Want: "b", Status: "ACCEPTED"},
		},
	}
}

func TestAssertTraceContains(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   bool
	}{
		{"action only", Assertion{Action: StepRespond}, false},
		{"subset args", Assertion{Action: StepRequest, Args: map[string]any{"actor": "carol"}}, false},
		{"int arg matches string", Assertion{Action: StepRespond, Args: map[string]any{"swap": 1}}, false},
		{"bool arg matches string", Assertion{Action: StepRespond, Args: map[string]any{"accept": true}}, false},
		{"case", Assertion{Action: StepRequest, Case: "CONFLICT"}, false},
		{"case and args must hold on one step", Assertion{Action: StepRequest, Case: "CONFLICT", Args: map[string]any{"actor": "alice"}}, true},
		{"wrong args", Assertion{Action: StepRequest, Args: map[string]any{"actor": "mallory"}}, true},
		{"missing action", Assertion{Action: StepCancel}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceContains(sampleTrace(), tt.assertion)
			if tt.wantErr {
				var ae *AssertionError
				require.ErrorAs(t, err, &ae)
				assert.Equal(t, AssertTraceContains, ae.Type)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAssertTraceOrder(t *testing.T) {
	tests := []struct {
		name    string
		actions []string
		wantErr string
	}{
		{"correct", []string{StepRequest, StepRespond}, ""},
		{"repeated action", []string{StepRequest, StepRequest, StepRespond}, ""},
		{"wrong order", []string{StepRespond, StepRequest}, "no request after step 3"},
		{"missing action", []string{StepRequest, StepCancel}, "no cancel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceOrder(sampleTrace(), Assertion{Actions: tt.actions})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertTraceCount(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   bool
	}{
		{"exact", Assertion{Action: StepRequest, Count: 2}, false},
		{"with case", Assertion{Action: StepRequest, Case: CaseSuccess, Count: 1}, false},
		{"zero", Assertion{Action: StepCancel, Count: 0}, false},
		{"too few", Assertion{Action: StepRequest, Count: 3}, true},
		{"too many", Assertion{Action: StepRespond, Count: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceCount(sampleTrace(), tt.assertion)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAssertFinalState(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{
			name:      "event owner and status",
			assertion: Assertion{Table: tableEvents, Where: map[string]any{"key": "a"}, Expect: map[string]any{"owner": "bob", "status": "BUSY"}},
		},
		{
			name:      "deleted event",
			assertion: Assertion{Table: tableEvents, Where: map[string]any{"key": "c"}, Expect: map[string]any{"status": "DELETED"}},
		},
		{
			name:      "swap by number",
			assertion: Assertion{Table: tableSwaps, Where: map[string]any{"swap": 1}, Expect: map[string]any{"status": "ACCEPTED", "offer": "a"}},
		},
		{
			name:      "wrong value",
			assertion: Assertion{Table: tableEvents, Where: map[string]any{"key": "a"}, Expect: map[string]any{"owner": "alice"}},
			wantErr:   "owner = bob",
		},
		{
			name:      "no row",
			assertion: Assertion{Table: tableSwaps, Where: map[string]any{"swap": 2}, Expect: map[string]any{"status": "PENDING"}},
			wantErr:   "row not found",
		},
		{
			name:      "ambiguous",
			assertion: Assertion{Table: tableEvents, Where: map[string]any{"status": "BUSY"}, Expect: map[string]any{"owner": "bob"}},
			wantErr:   "multiple rows matched",
		},
		{
			name:      "unknown field",
			assertion: Assertion{Table: tableEvents, Where: map[string]any{"key": "a"}, Expect: map[string]any{"title": "x"}},
			wantErr:   `field "title" to exist`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(sampleState(), tt.assertion)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMatchArgs_SubsetSemantics(t *testing.T) {
	actual := map[string]string{"actor": "bob", "swap": "1", "accept": "false"}

	assert.True(t, matchArgs(actual, nil))
	assert.True(t, matchArgs(actual, map[string]any{"swap": 1, "accept": false}))
	assert.False(t, matchArgs(actual, map[string]any{"accept": true}))
	assert.False(t, matchArgs(actual, map[string]any{"offer": "a"}))
	assert.False(t, matchArgs(nil, map[string]any{"swap": 1}))
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult("sample")
	result.Trace = sampleTrace()
	result.State = sampleState()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Action: StepRespond},
		{Type: AssertTraceCount, Action: StepRequest, Count: 2},
		{Type: AssertFinalState, Table: tableSwaps, Where: map[string]any{"swap": 1}, Expect: map[string]any{"status": "ACCEPTED"}},
	})
	assert.Empty(t, errs)

	errs = EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Action: StepCancel},
		{Type: AssertTraceOrder, Actions: []string{StepRequest, StepRespond}},
		{Type: "eventually"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "trace_contains")
	assert.Contains(t, errs[1], `unknown assertion type "eventually"`)
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "2 occurrences of respond",
		Actual:   "1 occurrences",
		Trace:    sampleTrace()[:1],
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Expected: 2 occurrences of respond")
	assert.Contains(t, msg, "Actual: 1 occurrences")
	assert.Contains(t, msg, "[1] request actor=alice offer=a want=b => Success status=PENDING swap=1")
}
