// Package middleware provides the HTTP middleware stack for the
// city-parse service: request IDs, structured request logging, panic
// recovery and per-request timeouts.
package middleware

// contextKey is a private type for context values set by this package.
type contextKey string

// RequestIDKey is the context key under which the request ID is stored.
const RequestIDKey contextKey = "request_id"
