// Package reconciler keeps a client-side mirror of the server-held cart.
//
// A Reconciler owns one cart.Snapshot. User intents (add, set quantity,
// increment, decrement, remove, refresh) are queued and executed one at a
// time by the Run loop, which is the only goroutine that sends requests or
// mutates the snapshot. Every mutation takes total and count from the
// server's response; the only locally computed value is the row subtotal
// after a quantity edit.
//
// Queueing follows last-write-wins: a SetQuantity for a product that already
// has a SetQuantity waiting (not yet sent) replaces it, and the replaced
// caller receives an Outcome of kind Superseded.
//
// Failure handling:
//
//	401 on a mutation       redirect to login, snapshot untouched
//	401 on Refresh          anonymous (empty) snapshot, no redirect
//	rejected                message surfaced, snapshot untouched
//	network or malformed    "Network error", snapshot untouched
//
// Nothing is retried.
package reconciler
