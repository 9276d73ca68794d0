package preflight

import (
	"context"
	"fmt"
	"time"
)

// probeTimeout bounds the connectivity check.
const probeTimeout = 15 * time.Second

// CheckToken warns when no access token is configured. Without one only
// public projects are visible.
func (c *Checker) CheckToken(set bool) CheckResult {
	result := CheckResult{Name: "gitlab_token"}
	if !set {
		result.Status = StatusWarn
		result.Message = "GITLAB_PRIVATE_TOKEN is not set, only public projects are visible"
		result.Details = "export GITLAB_PRIVATE_TOKEN=<token with read_api scope>"
		return result
	}
	result.Status = StatusPass
	result.Message = "set"
	return result
}

// CheckGitLab verifies the API answers an authenticated read.
func (c *Checker) CheckGitLab(ctx context.Context, baseURL string) CheckResult {
	result := CheckResult{
		Name:     "gitlab_api",
		Required: true,
		Details:  baseURL,
	}
	if c.prober == nil {
		result.Status = StatusWarn
		result.Message = "skipped (no client)"
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	if err := c.prober.Ping(ctx); err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("reachable (%s)", time.Since(start).Round(time.Millisecond))
	return result
}
