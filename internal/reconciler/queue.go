package reconciler

import (
	"context"
	"sync"
)

// op names an intent. The values are the journal op names.
type op string

const (
	opRefresh     op = "refresh"
	opOpen        op = "open"
	opAdd         op = "add"
	opSetQuantity op = "set_quantity"
	opIncrement   op = "increment"
	opDecrement   op = "decrement"
	opRemove      op = "remove"
)

// rowScoped reports whether the op acts on an existing row.
func (o op) rowScoped() bool {
	switch o {
	case opSetQuantity, opIncrement, opDecrement, opRemove:
		return true
	}
	return false
}

// touchesProduct reports whether the op changes a single product on the
// server.
func (o op) touchesProduct() bool {
	return o == opAdd || o.rowScoped()
}

type result struct {
	outcome Outcome
	err     error
}

// intent is one queued user action. done is buffered so the Run loop never
// blocks on a caller that has gone away.
type intent struct {
	op        op
	productID int64
	quantity  int
	ctx       context.Context
	done      chan result
}

func newIntent(ctx context.Context, o op, productID int64, quantity int) *intent {
	return &intent{
		op:        o,
		productID: productID,
		quantity:  quantity,
		ctx:       ctx,
		done:      make(chan result, 1),
	}
}

func (in *intent) reply(out Outcome, err error) {
	in.done <- result{outcome: out, err: err}
}

// intentQueue is a FIFO of pending intents with last-write-wins coalescing
// of quantity edits.
//
// Enqueue is safe from any goroutine; only the Run loop dequeues. The signal
// channel (buffered, size 1) lets Run wait with a select on its context.
type intentQueue struct {
	mu      sync.Mutex
	intents []*intent
	closed  bool
	signal  chan struct{}
}

func newIntentQueue() *intentQueue {
	return &intentQueue{
		intents: make([]*intent, 0, 8),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds in to the back of the queue and returns false if the queue is
// closed.
//
// A set_quantity replaces the pending set_quantity for the same product when
// that is the latest pending intent touching the product. The replaced
// intent is returned so the caller can be told it was superseded; the new
// one takes its place in line.
func (q *intentQueue) Enqueue(in *intent) (replaced *intent, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, false
	}

	if in.op == opSetQuantity {
		for i := len(q.intents) - 1; i >= 0; i-- {
			p := q.intents[i]
			if p.productID != in.productID || !p.op.touchesProduct() {
				continue
			}
			if p.op == opSetQuantity {
				replaced = p
				q.intents[i] = in
				q.notify()
				return replaced, true
			}
			break
		}
	}

	q.intents = append(q.intents, in)
	q.notify()
	return nil, true
}

// notify signals availability without blocking; the buffer coalesces
// signals. Caller holds mu.
func (q *intentQueue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// TryDequeue removes the front intent without blocking.
func (q *intentQueue) TryDequeue() (*intent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.intents) == 0 {
		return nil, false
	}

	in := q.intents[0]
	q.intents[0] = nil
	if len(q.intents) == 1 {
		q.intents = q.intents[:0]
	} else {
		q.intents = q.intents[1:]
	}
	return in, true
}

// Wait returns a channel that signals when intents may be available. It is
// closed by Close.
func (q *intentQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending intents.
func (q *intentQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.intents)
}

// Closed reports whether Close has been called.
func (q *intentQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting intents and returns the ones still pending.
// Subsequent calls return nil.
func (q *intentQueue) Close() []*intent {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	// Drop a pending wakeup so receivers see the close at once.
	select {
	case <-q.signal:
	default:
	}
	close(q.signal)
	pending := q.intents
	q.intents = nil
	return pending
}
