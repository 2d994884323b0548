package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/slotswap/internal/domain"
)

// Scenario defines a negotiation scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Users lists the participants by name.
	Users []string `yaml:"users"`

	// Events are created in order before the flow runs.
	Events []EventSpec `yaml:"events"`

	// Flow contains the steps to execute.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// EventSpec declares one slot.
type EventSpec struct {
	// Key is how steps and assertions refer to the slot.
	Key   string `yaml:"key"`
	Owner string `yaml:"owner"`
	// Title defaults to Key.
	Title string `yaml:"title,omitempty"`
	// Hour is the start offset from the clock epoch; slots last one hour.
	Hour int `yaml:"hour"`
	// Status defaults to BUSY.
	Status string `yaml:"status,omitempty"`
}

// FlowStep is one engine call or clock move.
type FlowStep struct {
	Invoke string `yaml:"invoke"`
	Actor  string `yaml:"actor,omitempty"`

	Offer     string `yaml:"offer,omitempty"`
	Want      string `yaml:"want,omitempty"`
	Swap      int    `yaml:"swap,omitempty"`
	Accept    *bool  `yaml:"accept,omitempty"`
	Event     string `yaml:"event,omitempty"`
	Status    string `yaml:"status,omitempty"`
	By        string `yaml:"by,omitempty"`
	OlderThan string `yaml:"older_than,omitempty"`

	// Expect specifies the expected outcome.
	// If nil, no validation is performed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected step outcome.
type ExpectClause struct {
	// Case is "Success" or an error code such as "CONFLICT".
	Case string `yaml:"case"`
}

// Step names.
const (
	StepRequest   = "request"
	StepRespond   = "respond"
	StepCancel    = "cancel"
	StepSetStatus = "set_status"
	StepDelete    = "delete"
	StepAdvance   = "advance"
	StepExpire    = "expire"
)

// CaseSuccess is the outcome case of a step that returned no error.
const CaseSuccess = "Success"

// Assertion validates trace or final state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, final_state.
	Type string `yaml:"type"`

	// Action is the step name (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Args are matched as a subset (trace_contains).
	Args map[string]any `yaml:"args,omitempty"`

	// Case optionally restricts trace_contains and trace_count.
	Case string `yaml:"case,omitempty"`

	// Table is "events" or "swaps" (final_state).
	Table string `yaml:"table,omitempty"`

	// Where selects the row (final_state): {key: a} or {swap: 1}.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values (final_state), subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected action order (trace_order).
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and that every
// name a step uses was declared.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Users) == 0 {
		return fmt.Errorf("users list is required and must be non-empty")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	users := make(map[string]bool, len(s.Users))
	for i, u := range s.Users {
		if u == "" || u == systemActor {
			return fmt.Errorf("users[%d]: invalid name %q", i, u)
		}
		if users[u] {
			return fmt.Errorf("users[%d]: duplicate user %q", i, u)
		}
		users[u] = true
	}

	events := make(map[string]bool, len(s.Events))
	for i, ev := range s.Events {
		if ev.Key == "" {
			return fmt.Errorf("events[%d]: key is required", i)
		}
		if events[ev.Key] {
			return fmt.Errorf("events[%d]: duplicate key %q", i, ev.Key)
		}
		events[ev.Key] = true
		if !users[ev.Owner] {
			return fmt.Errorf("events[%d]: unknown owner %q", i, ev.Owner)
		}
		if ev.Status != "" && !domain.EventStatus(ev.Status).Valid() {
			return fmt.Errorf("events[%d]: unknown status %q", i, ev.Status)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(i, step, users, events); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(i int, step FlowStep, users, events map[string]bool) error {
	needActor := func() error {
		if !users[step.Actor] {
			return fmt.Errorf("flow[%d]: unknown actor %q", i, step.Actor)
		}
		return nil
	}
	needEvent := func(field, key string) error {
		if !events[key] {
			return fmt.Errorf("flow[%d]: %s: unknown event %q", i, field, key)
		}
		return nil
	}
	needDuration := func(field, v string) error {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("flow[%d]: %s: %w", i, field, err)
		}
		return nil
	}

	if step.Expect != nil && step.Expect.Case == "" {
		return fmt.Errorf("flow[%d].expect: case is required", i)
	}

	switch step.Invoke {
	case StepRequest:
		if err := needActor(); err != nil {
			return err
		}
		if err := needEvent("offer", step.Offer); err != nil {
			return err
		}
		return needEvent("want", step.Want)
	case StepRespond:
		if step.Accept == nil {
			return fmt.Errorf("flow[%d]: accept is required for respond", i)
		}
		fallthrough
	case StepCancel:
		if step.Swap <= 0 {
			return fmt.Errorf("flow[%d]: swap must be a positive request number", i)
		}
		return needActor()
	case StepSetStatus:
		if step.Status == "" {
			return fmt.Errorf("flow[%d]: status is required for set_status", i)
		}
		fallthrough
	case StepDelete:
		if err := needActor(); err != nil {
			return err
		}
		return needEvent("event", step.Event)
	case StepAdvance:
		return needDuration("by", step.By)
	case StepExpire:
		return needDuration("older_than", step.OlderThan)
	case "":
		return fmt.Errorf("flow[%d]: invoke is required", i)
	default:
		return fmt.Errorf("flow[%d]: unknown step %q", i, step.Invoke)
	}
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table != tableEvents && a.Table != tableSwaps {
			return fmt.Errorf("assertions[%d]: table must be %q or %q for final_state", index, tableEvents, tableSwaps)
		}
		if len(a.Where) == 0 {
			return fmt.Errorf("assertions[%d]: where is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
