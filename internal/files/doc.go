// Package files provides file system operations and discovery utilities
// for the stock dashboard.
//
// Discovery finds the per-company CSV files in the data directory and reads
// them into a Snapshot, which converts into loader sources. Snapshots are
// cloned before being handed to independent sessions.
//
// Manager resolves paths against the configured working, data and logs
// directories and writes exports atomically.
//
// Example usage:
//
//	discovery := files.NewDiscovery("")
//	snapshot, err := discovery.ReadSnapshot(ctx, "data", "*_data.csv")
//	sources := snapshot.Clone().Sources()
package files
