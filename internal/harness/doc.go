// Package harness runs scripted cart sessions and checks what happened.
//
// A scenario sets up the fake cart service (catalog, session, seeded cart),
// then drives a real reconciler through a list of steps. The reconciler
// journals to an in-memory store; that journal is the trace compared with
// golden files.
//
// # Scenario Format
//
//	name: remove-last-item
//	description: removing the only row empties the cart
//	session: authenticated        # or anonymous
//	current_path: /cart/?ref=nav
//	catalog:
//	  - {product_id: 1001, title: iPhone 1, price: "499.00", image: iphone1.jpeg}
//	seed:
//	  - {product_id: 1001, quantity: 1}
//	steps:
//	  - op: refresh
//	  - op: set_quantity
//	    product_id: 1001
//	    quantity: 15
//	    expect: {outcome: ok, count: 10, total: "4990.00", sent_quantity: 10}
//	  - op: fail_next
//	    status: 500
//	  - op: remove
//	    product_id: 1001
//	    confirm: true
//	expect:
//	  count: 10
//	  redirect: ""
//	assertions:
//	  - {type: request_count, op: update, count: 1}
//
// Step ops: refresh, open, add, set_quantity, increment, decrement, remove,
// fail_next (inject a status for the next request) and logout (end the
// session server-side).
//
// Loaded files are also checked against the CUE definition #Scenario in
// schema.cue, which pins value shapes such as quoted decimal money.
//
// # Assertion Types
//
//   - trace_contains: an intent with the op and a subset of args was journaled
//   - trace_order: intents appear in the given order
//   - trace_count: an intent op was journaled exactly N times
//   - request_count: the service received N requests of an op
//
// # Deterministic Testing
//
// Intent IDs come from a sequence generator and the journal orders by a
// logical clock, so the same scenario always produces the same bytes.
package harness
