package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/cartapi"
	"github.com/roach88/cartsync/internal/store"
)

// User-facing messages.
const (
	msgNetwork        = "Network error. Please try again."
	msgAddFailed      = "Failed to add to cart"
	msgAdded          = "Product added to cart"
	msgUpdateFailed   = "Failed to update quantity"
	msgUpdated        = "Quantity updated"
	msgRemoveFailed   = "Failed to remove item"
	msgRemoved        = "Item removed from cart"
	msgLoadFailed     = "Failed to load cart items"
	msgSuperseded     = "Replaced by a newer quantity"
	msgRemoveDeclined = "Removal cancelled"

	// RemovePrompt is the confirmation text for RemoveItem.
	RemovePrompt = "Are you sure you want to remove this item from your cart?"
)

const tracerName = "github.com/roach88/cartsync/internal/reconciler"

// Options configures a Reconciler. Nil fields get defaults.
type Options struct {
	// Navigator defaults to a RecordingNavigator at "/".
	Navigator Navigator

	// Confirmer defaults to NeverConfirm: removals need an explicit yes.
	Confirmer Confirmer

	// Notifier defaults to discarding notifications.
	Notifier Notifier

	// Journal is optional.
	Journal Journal

	// IntentIDs defaults to cartapi.UUIDv7Generator.
	IntentIDs cartapi.RequestIDGenerator

	// Clock defaults to NewClock(). Pass NewClockAt(lastSeq) to append to an
	// existing journal.
	Clock *Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Reconciler owns one cart snapshot and keeps it in step with the service.
//
// Thread-safety model:
//   - operation methods and Snapshot: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//
// Operations block until the Run loop has handled the intent, so Run must be
// running for them to return anything but a context error.
type Reconciler struct {
	svc     Service
	nav     Navigator
	confirm Confirmer
	notify  Notifier
	journal Journal
	ids     cartapi.RequestIDGenerator
	clock   *Clock
	log     *slog.Logger
	tracer  trace.Tracer

	queue *intentQueue

	mu   sync.RWMutex
	snap cart.Snapshot
}

// New creates a Reconciler with an anonymous (empty) snapshot.
func New(svc Service, opts Options) *Reconciler {
	r := &Reconciler{
		svc:     svc,
		nav:     opts.Navigator,
		confirm: opts.Confirmer,
		notify:  opts.Notifier,
		journal: opts.Journal,
		ids:     opts.IntentIDs,
		clock:   opts.Clock,
		log:     opts.Logger,
		tracer:  otel.Tracer(tracerName),
		queue:   newIntentQueue(),
		snap:    cart.Anonymous(),
	}
	if r.nav == nil {
		r.nav = NewRecordingNavigator("/")
	}
	if r.confirm == nil {
		r.confirm = NeverConfirm
	}
	if r.notify == nil {
		r.notify = discardNotifier{}
	}
	if r.ids == nil {
		r.ids = cartapi.UUIDv7Generator{}
	}
	if r.clock == nil {
		r.clock = NewClock()
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	return r
}

// Snapshot returns a deep copy of the current snapshot.
func (r *Reconciler) Snapshot() cart.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap.Clone()
}

// Refresh reloads the whole cart. An unauthenticated session yields an
// empty snapshot without a redirect.
func (r *Reconciler) Refresh(ctx context.Context) (Outcome, error) {
	return r.submit(ctx, newIntent(ctx, opRefresh, 0, 0))
}

// OpenCartPage reloads the whole cart for the cart page. Unlike Refresh, an
// unauthenticated session redirects to login.
func (r *Reconciler) OpenCartPage(ctx context.Context) (Outcome, error) {
	return r.submit(ctx, newIntent(ctx, opOpen, 0, 0))
}

// AddItem adds quantity units of productID, clamped to the allowed range.
// Only the item count is taken from the response; rows and total arrive
// with the next reload.
func (r *Reconciler) AddItem(ctx context.Context, productID int64, quantity int) (Outcome, error) {
	return r.submit(ctx, newIntent(ctx, opAdd, productID, quantity))
}

// SetQuantity sets the row quantity, clamped to the allowed range.
// Returns ErrUnknownItem when productID has no row.
func (r *Reconciler) SetQuantity(ctx context.Context, productID int64, quantity int) (Outcome, error) {
	if err := r.requireRow(productID); err != nil {
		return Outcome{}, err
	}
	return r.submit(ctx, newIntent(ctx, opSetQuantity, productID, quantity))
}

// Increment raises the row quantity by one, up to the maximum.
func (r *Reconciler) Increment(ctx context.Context, productID int64) (Outcome, error) {
	if err := r.requireRow(productID); err != nil {
		return Outcome{}, err
	}
	return r.submit(ctx, newIntent(ctx, opIncrement, productID, 1))
}

// Decrement lowers the row quantity by one, down to the minimum.
func (r *Reconciler) Decrement(ctx context.Context, productID int64) (Outcome, error) {
	if err := r.requireRow(productID); err != nil {
		return Outcome{}, err
	}
	return r.submit(ctx, newIntent(ctx, opDecrement, productID, -1))
}

// RemoveItem removes the row after the Confirmer agrees. A declined prompt
// sends nothing and reports OutcomeCancelled.
func (r *Reconciler) RemoveItem(ctx context.Context, productID int64) (Outcome, error) {
	if err := r.requireRow(productID); err != nil {
		return Outcome{}, err
	}
	if !r.confirm.Confirm(ctx, RemovePrompt) {
		return r.outcome(OutcomeCancelled, msgRemoveDeclined), nil
	}
	return r.submit(ctx, newIntent(ctx, opRemove, productID, 0))
}

// Run processes queued intents until ctx is cancelled or Stop is called.
// Must be called from exactly one goroutine.
//
// Intents still queued when Run returns fail with ErrStopped.
func (r *Reconciler) Run(ctx context.Context) error {
	r.log.Debug("reconciler starting")
	defer r.Stop()

	for {
		if in, ok := r.queue.TryDequeue(); ok {
			r.process(in)
			continue
		}

		select {
		case <-ctx.Done():
			r.log.Debug("reconciler stopping: context cancelled")
			return ctx.Err()

		case <-r.queue.Wait():
			// A closed queue keeps this case ready; drain then exit.
			if r.queue.Len() == 0 && r.queue.Closed() {
				r.log.Debug("reconciler stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Pending intents fail with ErrStopped and Run
// returns once the in-flight intent, if any, completes.
func (r *Reconciler) Stop() {
	for _, in := range r.queue.Close() {
		in.reply(Outcome{}, ErrStopped)
	}
}

// submit enqueues in and waits for its result.
func (r *Reconciler) submit(ctx context.Context, in *intent) (Outcome, error) {
	replaced, ok := r.queue.Enqueue(in)
	if !ok {
		return Outcome{}, ErrStopped
	}
	if replaced != nil {
		replaced.reply(r.outcome(OutcomeSuperseded, msgSuperseded), nil)
	}

	select {
	case res := <-in.done:
		return res.outcome, res.err
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (r *Reconciler) requireRow(productID int64) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.snap.Find(productID); !ok {
		return fmt.Errorf("product %d: %w", productID, ErrUnknownItem)
	}
	return nil
}

// process runs one intent to completion.
// CRITICAL: called only from the Run goroutine; it is the single writer of
// r.snap.
func (r *Reconciler) process(in *intent) {
	if err := in.ctx.Err(); err != nil {
		in.reply(r.outcome(OutcomeCancelled, ""), err)
		return
	}
	if in.op.rowScoped() {
		if err := r.requireRow(in.productID); err != nil {
			in.reply(Outcome{}, err)
			return
		}
	}

	ctx, span := r.tracer.Start(in.ctx, "cart.intent."+string(in.op),
		trace.WithAttributes(attribute.Int64("cart.product_id", in.productID)),
	)
	defer span.End()

	id := r.ids.Generate()
	r.recordIntent(ctx, id, in)

	var out Outcome
	switch in.op {
	case opRefresh:
		out = r.handleReload(ctx, false)
	case opOpen:
		out = r.handleReload(ctx, true)
	case opAdd:
		out = r.handleAdd(ctx, in.productID, in.quantity)
	case opSetQuantity:
		out = r.handleSetQuantity(ctx, in.productID, in.quantity)
	case opIncrement, opDecrement:
		out = r.handleStep(ctx, in.productID, in.quantity)
	case opRemove:
		out = r.handleRemove(ctx, in.productID)
	default:
		in.reply(Outcome{}, fmt.Errorf("unknown intent op %q", in.op))
		return
	}

	span.SetAttributes(attribute.String("cart.outcome", string(out.Kind)))
	r.recordOutcome(ctx, id, out)

	r.log.Debug("intent processed",
		"id", id,
		"op", string(in.op),
		"product_id", in.productID,
		"outcome", string(out.Kind),
		"count", out.Count,
	)
	in.reply(out, nil)
}

func (r *Reconciler) handleReload(ctx context.Context, hard bool) Outcome {
	view, err := r.svc.GetCart(ctx)
	if err != nil {
		if cartapi.IsUnauthenticated(err) {
			if hard {
				return r.redirect()
			}
			r.setSnapshot(cart.Anonymous())
			out := r.outcome(OutcomeOK, "")
			out.EmptyCart = true
			return out
		}
		if !hard {
			return r.quietFailure(err)
		}
		if cartapi.IsRejected(err) {
			return r.failure(err, msgLoadFailed)
		}
		r.log.Debug("cart load failed", "error", err)
		r.notify.Notify(LevelError, msgLoadFailed)
		return r.outcome(OutcomeNetworkFailure, msgLoadFailed)
	}

	snap := cart.Replace(view.Items, view.Totals)
	r.setSnapshot(snap)

	out := r.outcome(OutcomeOK, "")
	out.EmptyCart = snap.Empty() || len(snap.Items) == 0
	return out
}

func (r *Reconciler) handleAdd(ctx context.Context, productID int64, quantity int) Outcome {
	q := cart.ClampQuantity(quantity)
	res, err := r.svc.Add(ctx, productID, q)
	if err != nil {
		out := r.failure(err, msgAddFailed)
		out.SentQuantity = q
		return out
	}

	r.setSnapshot(cart.ApplyAdd(r.current(), res.Count))

	msg := res.Message
	if msg == "" {
		msg = msgAdded
	}
	r.notify.Notify(LevelSuccess, msg)
	out := r.outcome(OutcomeOK, msg)
	out.SentQuantity = q
	return out
}

func (r *Reconciler) handleSetQuantity(ctx context.Context, productID int64, quantity int) Outcome {
	q := cart.ClampQuantity(quantity)
	res, err := r.svc.Update(ctx, productID, q)
	if err != nil {
		out := r.failure(err, msgUpdateFailed)
		out.SentQuantity = q
		return out
	}

	snap, err := cart.ApplyQuantity(r.current(), productID, q, res.Totals)
	if err != nil {
		// The server accepted an edit for a row we no longer show.
		r.log.Warn("quantity applied to missing row, reloading", "product_id", productID, "error", err)
		return r.handleReload(ctx, false)
	}
	r.setSnapshot(snap)

	r.notify.Notify(LevelSuccess, msgUpdated)
	out := r.outcome(OutcomeOK, msgUpdated)
	out.SentQuantity = q
	return out
}

func (r *Reconciler) handleStep(ctx context.Context, productID int64, delta int) Outcome {
	item, _ := r.current().Find(productID)
	return r.handleSetQuantity(ctx, productID, item.Quantity+delta)
}

func (r *Reconciler) handleRemove(ctx context.Context, productID int64) Outcome {
	res, err := r.svc.Remove(ctx, productID)
	if err != nil {
		return r.failure(err, msgRemoveFailed)
	}

	snap := cart.ApplyRemoval(r.current(), productID, res.Totals)
	r.setSnapshot(snap)

	msg := res.Message
	if msg == "" {
		msg = msgRemoved
	}
	r.notify.Notify(LevelSuccess, msg)
	out := r.outcome(OutcomeOK, msg)
	out.EmptyCart = snap.Empty()
	return out
}

// failure maps a service error to an outcome, notifying the user. The
// snapshot is never touched.
func (r *Reconciler) failure(err error, fallback string) Outcome {
	switch {
	case cartapi.IsUnauthenticated(err):
		return r.redirect()
	case cartapi.IsRejected(err):
		msg := cartapi.UserMessage(err, fallback)
		r.notify.Notify(LevelError, msg)
		return r.outcome(OutcomeRejected, msg)
	}

	r.log.Debug("cart request failed", "error", err)
	r.notify.Notify(LevelError, msgNetwork)
	return r.outcome(OutcomeNetworkFailure, msgNetwork)
}

// quietFailure is failure for background reloads. The user gets an info
// notice instead of an error toast.
func (r *Reconciler) quietFailure(err error) Outcome {
	r.log.Debug("cart reload failed", "error", err)
	if cartapi.IsRejected(err) {
		msg := cartapi.UserMessage(err, msgLoadFailed)
		r.notify.Notify(LevelInfo, msg)
		return r.outcome(OutcomeRejected, msg)
	}
	r.notify.Notify(LevelInfo, msgNetwork)
	return r.outcome(OutcomeNetworkFailure, msgNetwork)
}

func (r *Reconciler) redirect() Outcome {
	returnTo := r.nav.CurrentPath()
	r.nav.RedirectToLogin(returnTo)
	out := r.outcome(OutcomeRedirect, "")
	out.RedirectTo = returnTo
	return out
}

// outcome builds an Outcome carrying the current count and total.
func (r *Reconciler) outcome(kind OutcomeKind, msg string) Outcome {
	snap := r.current()
	return Outcome{
		Kind:    kind,
		Message: msg,
		Count:   snap.Count,
		Total:   snap.Total,
	}
}

func (r *Reconciler) current() cart.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

func (r *Reconciler) setSnapshot(s cart.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap = s
}

func (r *Reconciler) recordIntent(ctx context.Context, id string, in *intent) {
	if r.journal == nil {
		return
	}
	args := map[string]any{}
	if in.op != opRefresh && in.op != opOpen {
		args["product_id"] = in.productID
	}
	switch in.op {
	case opAdd, opSetQuantity:
		args["quantity"] = in.quantity
	}

	err := r.journal.WriteIntent(context.WithoutCancel(ctx), store.Intent{
		ID:   id,
		Seq:  r.clock.Next(),
		Op:   string(in.op),
		Args: args,
	})
	if err != nil {
		r.log.Error("journal intent failed", "id", id, "op", string(in.op), "error", err)
	}
}

func (r *Reconciler) recordOutcome(ctx context.Context, id string, out Outcome) {
	if r.journal == nil {
		return
	}
	err := r.journal.WriteOutcome(context.WithoutCancel(ctx), store.Outcome{
		IntentID: id,
		Seq:      r.clock.Next(),
		Kind:     string(out.Kind),
		Message:  out.Message,
		Result:   out.journalResult(),
	})
	if err != nil {
		r.log.Error("journal outcome failed", "id", id, "kind", string(out.Kind), "error", err)
	}
}
