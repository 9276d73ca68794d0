package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the status by name in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Target is what the checks run against.
type Target struct {
	CacheDir string
	BaseURL  string
	TokenSet bool
}

// Prober issues one authenticated read against the GitLab API.
type Prober interface {
	Ping(ctx context.Context) error
}

// Checker performs preflight validation checks.
type Checker struct {
	offline bool
	verbose bool
	output  io.Writer
	prober  Prober
}

// Option configures a Checker.
type Option func(*Checker)

// WithOffline skips checks that need the network.
func WithOffline(offline bool) Option {
	return func(c *Checker) {
		c.offline = offline
	}
}

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// WithProber sets the GitLab prober used by the connectivity check.
func WithProber(p Prober) Option {
	return func(c *Checker) {
		c.prober = p
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check against target. The GitLab probe is skipped
// when the checker is offline.
func (c *Checker) RunAll(ctx context.Context, target Target) []CheckResult {
	// First run: the cache directory does not exist yet.
	_ = os.MkdirAll(target.CacheDir, 0o755)

	checks := []func() CheckResult{
		func() CheckResult { return c.CheckWritePermissions(target.CacheDir) },
		func() CheckResult { return c.CheckDiskSpace(target.CacheDir) },
		c.CheckFileDescriptors,
		func() CheckResult { return c.CheckToken(target.TokenSet) },
	}
	if !c.offline {
		checks = append(checks, func() CheckResult { return c.CheckGitLab(ctx, target.BaseURL) })
	}

	results := make([]CheckResult, 0, len(checks))
	for _, run := range checks {
		results = append(results, run())
	}
	return results
}

// HasCriticalFailures reports whether a required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	return c.SummaryStatus(results) == "failed"
}

// SummaryStatus folds results into ready, ready_with_warnings or failed.
// A failed optional check counts as a warning.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	summary := "ready"
	for _, r := range results {
		switch {
		case r.IsCritical():
			return "failed"
		case r.Status != StatusPass:
			summary = "ready_with_warnings"
		}
	}
	return summary
}

// PrintResults writes a human-readable report of results.
func (c *Checker) PrintResults(results []CheckResult) {
	w := c.output
	_, _ = fmt.Fprintf(w, "reposcout System Check\n%s\n\n", strings.Repeat("=", 22))

	var problems, notes []string
	for _, r := range results {
		_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(w, "      %s\n", r.Details)
		}

		line := r.Name + ": " + r.Message
		switch {
		case r.IsCritical():
			problems = append(problems, line)
		case r.Status != StatusPass:
			notes = append(notes, line)
		}
	}

	_, _ = fmt.Fprintf(w, "\nStatus: %s\n", strings.ToUpper(c.SummaryStatus(results)))
	printList(w, "error(s)", problems)
	printList(w, "warning(s)", notes)
}

func printList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "\n%d %s:\n", len(items), label)
	for _, item := range items {
		_, _ = fmt.Fprintf(w, "  - %s\n", item)
	}
}

// CheckWritePermissions creates and removes a probe file in dir.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	res := CheckResult{Name: "write_permissions", Required: true, Details: dir}

	f, err := os.CreateTemp(dir, ".reposcout-preflight-*")
	if err != nil {
		res.Status = StatusFail
		res.Message = fmt.Sprintf("permission denied: %v", err)
		return res
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	res.Status = StatusPass
	res.Message = "cache directory is writable"
	return res
}
