// Package cartapi is the HTTP/JSON client for the remote cart service.
//
// Four endpoints are supported: get, add, update and remove. Each call sends
// an X-Request-ID header and W3C trace context, and every failure comes back
// as *Error carrying one of four kinds:
//
//	KindUnauthenticated  HTTP 401
//	KindRejected         success=false or another 4xx
//	KindNetwork          transport error, timeout or 5xx
//	KindMalformed        undecodable body or missing fields
//
// The session is carried as a cookie in a jar scoped by the public suffix
// list, so it is never sent to another registrable domain.
package cartapi
