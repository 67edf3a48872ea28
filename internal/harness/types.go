package harness

import (
	"github.com/roach88/cartsync/internal/cart"
)

// Trace event types mirror the journal entry types.
const (
	EventIntent  = "intent"
	EventOutcome = "outcome"
)

// TraceEvent is one journal entry, decoded for assertions and golden files.
type TraceEvent struct {
	Type     string         `json:"type"`
	Seq      int64          `json:"seq"`
	IntentID string         `json:"intent_id"`
	Op       string         `json:"op"`
	Kind     string         `json:"kind,omitempty"`
	Message  string         `json:"message,omitempty"`
	Data     map[string]any `json:"data"`
}

// StepResult records what one step produced.
type StepResult struct {
	Index   int    `json:"index"`
	Op      string `json:"op"`
	Outcome string `json:"outcome,omitempty"`
	Message string `json:"message,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace is the reconciler's journal in seq order.
	Trace []TraceEvent `json:"trace"`

	// Steps has one entry per scenario step.
	Steps []StepResult `json:"steps"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the snapshot after the last step.
	Final cart.Snapshot `json:"final"`

	// Notifications are the user messages shown, in order.
	Notifications []string `json:"notifications,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
