package preflight

import (
	"context"
	"fmt"

	"chestnotes/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Detail   string
	Optional bool
}

// RunAll executes the startup checks for the given config. Optional
// results describe degraded features and never block startup.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Blob directory", cfg.Paths.BlobDir),
	}

	for _, status := range CheckSystemDeps(ctx, cfg) {
		detail := status.Detail
		if status.Available {
			detail = fmt.Sprintf("%s (version %s)", status.Command, status.Version)
		}
		results = append(results, Result{
			Name:     status.Name,
			Passed:   status.Available,
			Detail:   detail,
			Optional: status.Optional,
		})
	}

	if cfg.Notifications.NtfyTopic != "" {
		ntfy := CheckNtfy(ctx, cfg.Notifications.NtfyTopic)
		ntfy.Optional = true
		results = append(results, ntfy)
	}

	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}
