// Package app wires the stock dashboard server together and manages its
// lifecycle.
//
// # Initialization Flow
//
//	1. Initialize the JSON logger from the logging config
//	2. Resolve paths and create the log directory
//	3. Initialize OpenTelemetry (stdout traces, Prometheus metrics)
//	4. Create the dashboard service, the WebSocket hub and the health service
//	5. Build the chi router and the HTTP server
//
// # Middleware Order
//
// RequestID and RealIP run for every route. /ws only adds
// WebSocketTraceMiddleware so the upgrade sees the raw connection. All other
// routes run OTel → StructuredLogger → Recovery → SecurityHeaders → CORS →
// RateLimit, and /api adds a JSON content type and a request timeout.
//
// # Shutdown
//
// Run blocks until its context is cancelled or SIGINT/SIGTERM arrives. The
// HTTP server is drained within Server.ShutdownTimeout, WebSocket clients are
// closed by the hub, then telemetry is flushed.
package app
