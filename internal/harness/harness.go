package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/roach88/cartsync/internal/cartapi"
	"github.com/roach88/cartsync/internal/fakecart"
	"github.com/roach88/cartsync/internal/reconciler"
	"github.com/roach88/cartsync/internal/store"
)

// SessionToken is the session cookie value used for authenticated scenarios.
const SessionToken = "scenario-session"

// Harness drives one scenario: a fake service, a real client and a real
// reconciler journaling to an in-memory store.
type Harness struct {
	service *fakecart.Server
	rec     *reconciler.Reconciler
	nav     *reconciler.RecordingNavigator
	journal *store.Store
	logger  *slog.Logger

	mu      sync.Mutex
	confirm bool
	notes   []string
}

// Run executes a scenario and returns the result.
//
// Each scenario gets a fresh fake service and an in-memory journal. Intent
// and request IDs come from sequence generators, so the trace is identical
// across runs.
//
// Execution errors (the harness itself failing) are returned as error;
// unmet expectations are recorded in Result.Errors.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	products, err := fakecart.Products(scenario.Catalog)
	if err != nil {
		return nil, err
	}
	service := fakecart.New(fakecart.Options{Catalog: products, Logger: logger})

	session := ""
	if scenario.Session != SessionAnonymous {
		session = SessionToken
		service.Login(session)
		for _, line := range scenario.Seed {
			if err := service.Seed(session, line.ProductID, line.Quantity); err != nil {
				return nil, fmt.Errorf("failed to seed cart: %w", err)
			}
		}
	}

	srv := httptest.NewServer(service)
	defer srv.Close()

	client, err := cartapi.New(srv.URL, cartapi.Options{
		Session:    session,
		RequestIDs: &cartapi.SequenceGenerator{Prefix: "req"},
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	journal, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer journal.Close()

	path := scenario.CurrentPath
	if path == "" {
		path = "/"
	}

	h := &Harness{
		service: service,
		nav:     reconciler.NewRecordingNavigator(path),
		journal: journal,
		logger:  logger,
		confirm: true,
	}
	h.rec = reconciler.New(client, reconciler.Options{
		Navigator: h.nav,
		Confirmer: reconciler.ConfirmFunc(h.answerPrompt),
		Notifier:  h,
		Journal:   journal,
		IntentIDs: &cartapi.SequenceGenerator{Prefix: "intent"},
		Logger:    logger,
	})

	runCtx, cancel := context.WithCancel(ctx)
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = h.rec.Run(runCtx)
	}()
	defer func() {
		cancel()
		<-runDone
	}()

	result := NewResult()
	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	result.Final = h.rec.Snapshot()
	h.checkFinal(scenario.Expect, result)

	trace, err := readTrace(ctx, journal)
	if err != nil {
		return nil, err
	}
	result.Trace = trace

	h.mu.Lock()
	result.Notifications = append([]string(nil), h.notes...)
	h.mu.Unlock()

	actx := &AssertionContext{Requests: service.Requests()}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// Notify records user notifications.
func (h *Harness) Notify(level reconciler.Level, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notes = append(h.notes, string(level)+": "+message)
}

func (h *Harness) answerPrompt(context.Context, string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.confirm
}

func (h *Harness) setConfirm(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.confirm = v
}

// executeSteps runs each step and checks its expect clause.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		sr := StepResult{Index: i, Op: step.Op}

		var (
			out reconciler.Outcome
			err error
		)
		switch step.Op {
		case OpFailNext:
			h.service.FailNext(step.Status)
			result.Steps = append(result.Steps, sr)
			continue
		case OpLogout:
			h.service.Logout(SessionToken)
			result.Steps = append(result.Steps, sr)
			continue
		case OpRefresh:
			out, err = h.rec.Refresh(ctx)
		case OpOpen:
			out, err = h.rec.OpenCartPage(ctx)
		case OpAdd:
			qty := step.Quantity
			if qty == 0 {
				qty = 1
			}
			out, err = h.rec.AddItem(ctx, step.ProductID, qty)
		case OpSetQuantity:
			out, err = h.rec.SetQuantity(ctx, step.ProductID, step.Quantity)
		case OpIncrement:
			out, err = h.rec.Increment(ctx, step.ProductID)
		case OpDecrement:
			out, err = h.rec.Decrement(ctx, step.ProductID)
		case OpRemove:
			h.setConfirm(step.Confirm == nil || *step.Confirm)
			out, err = h.rec.RemoveItem(ctx, step.ProductID)
		default:
			return fmt.Errorf("step %d: unknown op %q", i, step.Op)
		}

		kind := string(out.Kind)
		if err != nil {
			if !errors.Is(err, reconciler.ErrUnknownItem) {
				return fmt.Errorf("step %d (%s): %w", i, step.Op, err)
			}
			kind = OutcomeUnknownItem
		}
		sr.Outcome = kind
		sr.Message = out.Message
		result.Steps = append(result.Steps, sr)

		h.logger.Debug("step completed", "step", i, "op", step.Op, "outcome", kind)

		if step.Expect != nil {
			for _, msg := range checkStep(i, step, kind, out) {
				result.AddError(msg)
			}
		}
	}
	return nil
}

func checkStep(i int, step Step, kind string, out reconciler.Outcome) []string {
	exp := step.Expect
	var errs []string
	fail := func(field string, want, got any) {
		errs = append(errs, fmt.Sprintf("steps[%d] %s: expected %s %v, got %v", i, step.Op, field, want, got))
	}

	if exp.Outcome != kind {
		fail("outcome", exp.Outcome, kind)
	}
	if exp.Message != "" && exp.Message != out.Message {
		fail("message", fmt.Sprintf("%q", exp.Message), fmt.Sprintf("%q", out.Message))
	}
	if exp.Count != nil && *exp.Count != out.Count {
		fail("count", *exp.Count, out.Count)
	}
	if exp.Total != "" && !decimal.RequireFromString(exp.Total).Equal(out.Total) {
		fail("total", exp.Total, out.Total.StringFixed(2))
	}
	if exp.SentQuantity != nil && *exp.SentQuantity != out.SentQuantity {
		fail("sent_quantity", *exp.SentQuantity, out.SentQuantity)
	}
	if exp.Empty != nil && *exp.Empty != out.EmptyCart {
		fail("empty", *exp.Empty, out.EmptyCart)
	}
	return errs
}

func (h *Harness) checkFinal(exp *FinalExpect, result *Result) {
	if exp == nil {
		return
	}
	snap := result.Final

	if exp.Count != nil && *exp.Count != snap.Count {
		result.AddError(fmt.Sprintf("final: expected count %d, got %d", *exp.Count, snap.Count))
	}
	if exp.Total != "" && !decimal.RequireFromString(exp.Total).Equal(snap.Total) {
		result.AddError(fmt.Sprintf("final: expected total %s, got %s", exp.Total, snap.Total.StringFixed(2)))
	}
	if exp.Empty != nil && *exp.Empty != snap.Empty() {
		result.AddError(fmt.Sprintf("final: expected empty %v, got %v", *exp.Empty, snap.Empty()))
	}
	if exp.Items != nil {
		got := make([]ItemLine, 0, len(snap.Items))
		for _, it := range snap.Items {
			got = append(got, ItemLine{ProductID: it.ProductID, Quantity: it.Quantity})
		}
		if diff := cmp.Diff(exp.Items, got); diff != "" {
			result.AddError(fmt.Sprintf("final: items mismatch (-want +got):\n%s", diff))
		}
	}
	if exp.Redirect != nil {
		got, _ := h.nav.LastRedirect()
		if got != *exp.Redirect {
			result.AddError(fmt.Sprintf("final: expected redirect %q, got %q", *exp.Redirect, got))
		}
	}
}

// readTrace loads the journal as trace events.
func readTrace(ctx context.Context, journal *store.Store) ([]TraceEvent, error) {
	entries, err := journal.ReadJournal(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	trace := make([]TraceEvent, 0, len(entries))
	for _, e := range entries {
		data, err := decodeFields(e.Data)
		if err != nil {
			return nil, fmt.Errorf("journal entry %d: %w", e.Seq, err)
		}
		trace = append(trace, TraceEvent{
			Type:     string(e.Type),
			Seq:      e.Seq,
			IntentID: e.IntentID,
			Op:       e.Op,
			Kind:     e.Kind,
			Message:  e.Message,
			Data:     data,
		})
	}
	return trace, nil
}

// decodeFields parses journal JSON, keeping integers exact. The journal
// never stores floats; money is a decimal string.
func decodeFields(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	for k, v := range fields {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		fields[k] = i
	}
	return fields, nil
}
