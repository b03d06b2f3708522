// Package middleware holds the HTTP middleware chain for the dashboard API:
// request IDs, structured request logging, rate limiting, timeouts, CORS,
// security headers, OpenTelemetry instrumentation and request validation.
//
// Errors produced here are written as RFC 7807 problem documents through
// internal/errors so they look the same as handler errors.
package middleware
