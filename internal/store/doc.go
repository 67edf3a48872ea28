// Package store is the SQLite journal of cart intents and their outcomes.
//
// The journal is append-only. Each intent the reconciler accepts is written
// before its request is sent, and its outcome is written once the response
// has been applied. Both tables share one logical sequence, so reading them
// back by seq reproduces the exact order the reconciler worked in.
//
// The snapshot itself is never stored: the server owns the cart.
//
// Arguments and results are stored as canonical JSON (internal/canon) so two
// runs of the same scenario produce byte-identical journals.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON: an outcome must reference a recorded intent
package store
