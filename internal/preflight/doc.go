// Package preflight probes the host before and while swiftsearch runs.
//
// DiskProbe answers the free-space question the index lifecycle asks before
// loading an archive. Checker bundles the host checks reported by
// `swiftsearch doctor`:
//   - Disk space at the index directory
//   - Available memory
//   - Write permissions in the index directory
//   - File descriptor limits (minimum 1024)
//   - Engine library, dictionary and archive tools when configured
//
//	checker := preflight.New(preflight.WithMinimumDiskSpace(300_000_000))
//	results := checker.RunAll(ctx, preflight.Target{IndexDir: dir})
//	if checker.HasCriticalFailures(results) {
//	    // refuse to start
//	}
package preflight
