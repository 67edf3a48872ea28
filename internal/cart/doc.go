// Package cart holds the client-side cart model and the pure functions that
// reconcile it with server responses.
//
// Nothing in this package performs I/O. Every function takes the current
// snapshot plus whatever the server answered and returns a new snapshot; the
// input is never modified. The server is authoritative for Total and Count:
// the only value computed locally is a row subtotal preview after a quantity
// edit.
package cart
