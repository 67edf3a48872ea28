package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/cartsync/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Limit int
	Op    string // optional - filter to one intent op
}

// TraceEvent is a single journal entry in the timeline.
type TraceEvent struct {
	Seq      int64          `json:"seq"`
	Type     string         `json:"type"` // "intent" or "outcome"
	IntentID string         `json:"intent_id"`
	Op       string         `json:"op"`
	Kind     string         `json:"kind,omitempty"`
	Message  string         `json:"message,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Journal  string       `json:"journal"`
	Timeline []TraceEvent `json:"timeline"`
	Pending  []string     `json:"pending"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	Intents     int            `json:"intents"`
	Outcomes    int            `json:"outcomes"`
	ByKind      map[string]int `json:"by_kind"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the intent journal",
		Long: `Show what the reconciler did: every intent in the order it was
processed, followed by its outcome.

Intents listed as pending were journaled but never got an outcome, which
means the process stopped while a request was in flight.

Examples:
  cartsync trace --journal ./cart.db
  cartsync trace --journal ./cart.db --limit 20
  cartsync trace --journal ./cart.db --op remove --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show only the most recent N entries (0 = all)")
	cmd.Flags().StringVar(&opts.Op, "op", "", "filter to one intent op")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if cfg.Journal == "" {
		return NewExitError(ExitCommandError, "no journal configured: use --journal or set journal in the config file")
	}

	st, err := store.Open(cfg.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	entries, err := st.ReadJournal(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	pending, err := st.Pending(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read pending intents", err)
	}

	timeline, err := buildTimeline(entries, opts.Op)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to decode journal", err)
	}

	result := TraceResult{
		Journal:  cfg.Journal,
		Timeline: timeline,
		Pending:  make([]string, 0, len(pending)),
		Stats:    TraceStats{TotalEvents: len(timeline), ByKind: map[string]int{}},
	}
	for _, in := range pending {
		if opts.Op == "" || in.Op == opts.Op {
			result.Pending = append(result.Pending, in.ID)
		}
	}
	for _, e := range timeline {
		if e.Type == string(store.EntryIntent) {
			result.Stats.Intents++
			continue
		}
		result.Stats.Outcomes++
		result.Stats.ByKind[e.Kind]++
	}

	if opts.Format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: result})
	}
	outputTraceText(cmd.OutOrStdout(), result)
	return nil
}

// buildTimeline decodes journal entries. When opFilter is set, only entries
// for that op are kept.
func buildTimeline(entries []store.Entry, opFilter string) ([]TraceEvent, error) {
	timeline := make([]TraceEvent, 0, len(entries))
	for _, e := range entries {
		if opFilter != "" && e.Op != opFilter {
			continue
		}
		var data map[string]any
		if err := json.Unmarshal(e.Data, &data); err != nil {
			return nil, fmt.Errorf("entry %d: %w", e.Seq, err)
		}
		timeline = append(timeline, TraceEvent{
			Seq:      e.Seq,
			Type:     string(e.Type),
			IntentID: e.IntentID,
			Op:       e.Op,
			Kind:     e.Kind,
			Message:  e.Message,
			Data:     data,
		})
	}
	return timeline, nil
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult) {
	fmt.Fprintf(w, "Journal: %s\n", result.Journal)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no entries)")
	}
	for _, e := range result.Timeline {
		if e.Type == string(store.EntryIntent) {
			fmt.Fprintf(w, "  [%d] → %s %s %s\n", e.Seq, e.Op, e.IntentID, formatData(e.Data))
			continue
		}
		line := fmt.Sprintf("  [%d] ← %s %s", e.Seq, e.Kind, e.IntentID)
		if e.Message != "" {
			line += fmt.Sprintf(" %q", e.Message)
		}
		fmt.Fprintf(w, "%s %s\n", line, formatData(e.Data))
	}

	if len(result.Pending) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Pending ===")
		for _, id := range result.Pending {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d intent(s), %d outcome(s)", result.Stats.Intents, result.Stats.Outcomes)
	kinds := make([]string, 0, len(result.Stats.ByKind))
	for k := range result.Stats.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, ", %s=%d", k, result.Stats.ByKind[k])
	}
	fmt.Fprintln(w)
}

// formatData prints fields in key order.
func formatData(data map[string]any) string {
	if len(data) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s := "{"
	for i, k := range keys {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s=%v", k, data[k])
	}
	return s + "}"
}
