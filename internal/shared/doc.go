// Package shared holds helpers used across stockdash packages that belong to
// no single layer.
//
// The testutil subpackage provides:
//
//	- a buffered slog handler for asserting on log output
//	- CSV source fixtures (per-company price files) written to temp dirs
//
// testutil must not import other internal packages so that any package's
// in-package tests can depend on it.
package shared
