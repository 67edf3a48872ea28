// Package canon produces deterministic JSON for journal arguments and
// scenario traces.
//
// The encoding follows RFC 8785 closely enough for byte comparison:
//   - object keys sorted by UTF-16 code units
//   - strings NFC normalized, no HTML escaping
//   - no floats: money travels as decimal.Decimal and is written as a string
//   - no null
//
// Golden files under testdata/golden are compared byte for byte against
// this output, so any change here invalidates them.
package canon
