// Package services implements the business logic layer of the dashboard.
// Handlers and the WebSocket hub call into it; it owns the per-user
// sessions and runs the data pipeline for every interaction.
//
// # Sessions
//
// DashboardService keeps one Session per dashboard user. A session holds a
// private copy of the filesystem channel, the files uploaded into it, the
// dataset built from both and the last resolved selection. Sessions never
// share mutable state; the registry and each session are guarded by their
// own mutex. Idle sessions expire after the configured TTL and are removed
// by Run.
//
// Concurrent session creation shares one directory scan through
// singleflight, and every caller receives its own clone of the bytes.
//
// # Errors
//
// Lookups of unknown sessions return ErrSessionNotFound. Upload limits are
// reported as ErrTooManyUploads, ErrUploadTooLarge and ErrUnsupportedUpload.
// Pipeline errors (dataprocessing.ErrNoDataAvailable, SourceParseError) pass
// through unchanged so the HTTP layer can map them to problem responses.
//
// # Health
//
// HealthService answers the liveness, readiness and version endpoints.
package services
