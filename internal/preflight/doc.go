// Package preflight checks that pathmap can run on this machine before a
// long-lived command starts.
//
// The checks cover:
//   - Free disk space under the data directory
//   - Write access to the data directory
//   - File descriptor headroom for concurrent fetches
//   - Whether the graph store is held by another process
//   - Whether the neighbor provider is usable
//
// Use the Checker type to run them:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, target)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
