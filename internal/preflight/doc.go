// Package preflight runs the environment checks behind `reposcout doctor`.
//
// The package validates:
//   - Cache directory write permissions and free disk space
//   - File descriptor limits
//   - Presence of GITLAB_PRIVATE_TOKEN
//   - Reachability of the GitLab API with the configured credentials
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New(preflight.WithProber(client))
//	results := checker.RunAll(ctx, preflight.Target{CacheDir: dir, BaseURL: url})
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
