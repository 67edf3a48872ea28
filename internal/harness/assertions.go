package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/cartsync/internal/fakecart"
)

// Assertion validates the trace or the requests the service received.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op is the intent op (trace_*) or the service op (request_count:
	// get, add, update, remove).
	Op string `yaml:"op,omitempty"`

	// Args are matched as a subset of the intent arguments (trace_contains).
	Args map[string]any `yaml:"args,omitempty"`

	// Ops is the expected intent order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Count is the expected number of occurrences.
	Count int `yaml:"count,omitempty"`

	// Status restricts request_count to responses with this status.
	Status int `yaml:"status,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertRequestCount  = "request_count"
)

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount, AssertRequestCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for %s", index, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nIntents:\n")
		for _, event := range e.Trace {
			if event.Type == EventIntent {
				fmt.Fprintf(&buf, "  [%d] %s %s %v\n", event.Seq, event.IntentID, event.Op, event.Data)
			}
		}
	}

	return buf.String()
}

// assertTraceContains checks for an intent with matching op and args.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Type == EventIntent && event.Op == a.Op && matchArgs(event.Data, a.Args) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("intent %s with args %v", a.Op, a.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrence of each op appears in
// the given order. Other intents may come in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != EventIntent {
			continue
		}
		if _, seen := positions[event.Op]; !seen {
			positions[event.Op] = i + 1
		}
	}

	for _, op := range a.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all intents present: %v", a.Ops),
				Actual:   fmt.Sprintf("missing intent: %s", op),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Ops); i++ {
		prev, curr := a.Ops[i-1], a.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("intents in order: %v", a.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the number of intents with the given op.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventIntent && event.Op == a.Op {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s intent %d time(s)", a.Op, a.Count),
			Actual:   fmt.Sprintf("%d time(s)", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertRequestCount checks how many requests of one kind reached the
// service.
func assertRequestCount(requests []fakecart.Request, a Assertion) error {
	count := 0
	for _, r := range requests {
		if r.Op == a.Op && (a.Status == 0 || r.Status == a.Status) {
			count++
		}
	}

	if count != a.Count {
		what := a.Op
		if a.Status != 0 {
			what = fmt.Sprintf("%s (status %d)", a.Op, a.Status)
		}
		return &AssertionError{
			Type:     AssertRequestCount,
			Expected: fmt.Sprintf("%s request %d time(s)", what, a.Count),
			Actual:   fmt.Sprintf("%d time(s)", count),
		}
	}
	return nil
}

// matchArgs checks if actual contains all expected args (subset match).
func matchArgs(actual, expected map[string]any) bool {
	for key, want := range expected {
		got, ok := actual[key]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares a trace value with a YAML value. Integers compare by
// value regardless of width.
func valuesEqual(actual, expected any) bool {
	if a, ok := toInt64(actual); ok {
		e, ok := toInt64(expected)
		return ok && a == e
	}
	return actual == expected
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

// AssertionContext provides what request_count needs beyond the trace.
type AssertionContext struct {
	Requests []fakecart.Request
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertRequestCount:
			if actx == nil {
				err = fmt.Errorf("assertion[%d]: request_count requires request context", i)
			} else {
				err = assertRequestCount(actx.Requests, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
