package store

import "encoding/json"

// Intent is a user action accepted by the reconciler, recorded before its
// request is sent.
type Intent struct {
	ID   string
	Seq  int64
	Op   string
	Args map[string]any
}

// Outcome is the result applied for an intent. IntentID must reference a
// recorded intent.
type Outcome struct {
	IntentID string
	Seq      int64
	Kind     string
	Message  string
	Result   map[string]any
}

// EntryType distinguishes the two journal record kinds.
type EntryType string

const (
	EntryIntent  EntryType = "intent"
	EntryOutcome EntryType = "outcome"
)

// Entry is one journal row as read back, intents and outcomes interleaved
// by seq.
type Entry struct {
	Type     EntryType       `json:"type"`
	Seq      int64           `json:"seq"`
	IntentID string          `json:"intent_id"`
	Op       string          `json:"op"`
	Kind     string          `json:"kind,omitempty"`
	Message  string          `json:"message,omitempty"`
	Data     json.RawMessage `json:"data"`
}
