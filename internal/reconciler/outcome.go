package reconciler

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownItem is returned by row-scoped operations for a product that
	// is not in the snapshot. Nothing is sent.
	ErrUnknownItem = errors.New("product is not in the cart")

	// ErrStopped is returned when the Run loop has exited.
	ErrStopped = errors.New("reconciler stopped")
)

// OutcomeKind classifies how an intent ended.
type OutcomeKind string

const (
	OutcomeOK             OutcomeKind = "ok"
	OutcomeRejected       OutcomeKind = "rejected"
	OutcomeRedirect       OutcomeKind = "redirect"
	OutcomeNetworkFailure OutcomeKind = "network_failure"
	OutcomeCancelled      OutcomeKind = "cancelled"
	OutcomeSuperseded     OutcomeKind = "superseded"
)

// Outcome is what an operation reports back to its caller.
type Outcome struct {
	Kind OutcomeKind `json:"kind"`

	// Message is the text shown to the user, if any.
	Message string `json:"message,omitempty"`

	// Count and Total are the snapshot values after the intent was applied.
	// On failure they are the unchanged previous values.
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`

	// EmptyCart is set when the cart should render its empty state.
	EmptyCart bool `json:"empty_cart,omitempty"`

	// RedirectTo is the path saved for return after login.
	RedirectTo string `json:"redirect_to,omitempty"`

	// SentQuantity is the quantity put on the wire, after clamping.
	SentQuantity int `json:"sent_quantity,omitempty"`
}

// OK reports whether the intent was applied.
func (o Outcome) OK() bool {
	return o.Kind == OutcomeOK
}

// journalResult is the outcome as stored in the journal.
func (o Outcome) journalResult() map[string]any {
	m := map[string]any{
		"count": o.Count,
		"total": o.Total,
	}
	if o.EmptyCart {
		m["empty_cart"] = true
	}
	if o.RedirectTo != "" {
		m["redirect_to"] = o.RedirectTo
	}
	if o.SentQuantity != 0 {
		m["sent_quantity"] = o.SentQuantity
	}
	return m
}
