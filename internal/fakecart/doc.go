// Package fakecart is an in-memory cart service speaking the storefront's
// HTTP/JSON protocol.
//
// It backs the scenario harness, the package tests and the mock-server
// command. Sessions are opaque cookie values; a request without a known
// session gets 401. Quantities outside 1..10 are refused with 400, and
// FailNext injects a status for the next request so failure paths can be
// exercised without a real outage.
package fakecart
