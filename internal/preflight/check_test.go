package preflight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProber struct {
	err   error
	calls int
}

func (s *stubProber) Ping(context.Context) error {
	s.calls++
	return s.err
}

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_JSONStatusByName(t *testing.T) {
	data, err := json.Marshal(CheckResult{Name: "disk_space", Status: StatusWarn})

	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"warn"`)
}

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name     string
		result   CheckResult
		expected bool
	}{
		{
			name:     "required pass is not critical",
			result:   CheckResult{Status: StatusPass, Required: true},
			expected: false,
		},
		{
			name:     "required fail is critical",
			result:   CheckResult{Status: StatusFail, Required: true},
			expected: true,
		},
		{
			name:     "optional fail is not critical",
			result:   CheckResult{Status: StatusFail, Required: false},
			expected: false,
		},
		{
			name:     "required warn is not critical",
			result:   CheckResult{Status: StatusWarn, Required: true},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.IsCritical())
		})
	}
}

func TestChecker_NewWithOptions(t *testing.T) {
	// Given: custom options
	buf := &bytes.Buffer{}
	prober := &stubProber{}
	checker := New(
		WithOffline(true),
		WithVerbose(true),
		WithOutput(buf),
		WithProber(prober),
	)

	// Then: options are applied
	assert.True(t, checker.offline)
	assert.True(t, checker.verbose)
	assert.Equal(t, buf, checker.output)
	assert.Equal(t, prober, checker.prober)
}

func TestChecker_HasCriticalFailures(t *testing.T) {
	checker := New()

	assert.False(t, checker.HasCriticalFailures(nil))
	assert.False(t, checker.HasCriticalFailures([]CheckResult{
		{Status: StatusPass, Required: true},
		{Status: StatusFail, Required: false},
	}))
	assert.True(t, checker.HasCriticalFailures([]CheckResult{
		{Status: StatusPass, Required: true},
		{Status: StatusFail, Required: true},
	}))
}

func TestChecker_CheckWritePermissions_Writable(t *testing.T) {
	// Given: a writable directory
	tmpDir := t.TempDir()

	// When: checking write permissions
	result := New().CheckWritePermissions(tmpDir)

	// Then: passes and leaves nothing behind
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, "write_permissions", result.Name)
	assert.True(t, result.Required)
	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestChecker_CheckWritePermissions_ReadOnly(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("Skipping read-only test when running as root")
	}

	// Given: a read-only directory
	readOnlyDir := filepath.Join(t.TempDir(), "readonly")
	require.NoError(t, os.Mkdir(readOnlyDir, 0o555))
	defer func() { _ = os.Chmod(readOnlyDir, 0o755) }()

	// When: checking write permissions
	result := New().CheckWritePermissions(readOnlyDir)

	// Then: fails
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "permission denied")
}

func TestChecker_CheckToken(t *testing.T) {
	checker := New()

	missing := checker.CheckToken(false)
	assert.Equal(t, StatusWarn, missing.Status)
	assert.Contains(t, missing.Message, "GITLAB_PRIVATE_TOKEN")
	assert.False(t, missing.IsCritical())

	assert.Equal(t, StatusPass, checker.CheckToken(true).Status)
}

func TestChecker_CheckGitLab(t *testing.T) {
	ctx := context.Background()

	t.Run("reachable", func(t *testing.T) {
		result := New(WithProber(&stubProber{})).CheckGitLab(ctx, "https://gitlab.test")
		assert.Equal(t, StatusPass, result.Status)
		assert.Contains(t, result.Message, "reachable")
	})

	t.Run("unreachable is critical", func(t *testing.T) {
		result := New(WithProber(&stubProber{err: errors.New("upstream returned 401")})).
			CheckGitLab(ctx, "https://gitlab.test")
		assert.Equal(t, StatusFail, result.Status)
		assert.Equal(t, "upstream returned 401", result.Message)
		assert.True(t, result.IsCritical())
	})

	t.Run("no prober", func(t *testing.T) {
		result := New().CheckGitLab(ctx, "https://gitlab.test")
		assert.Equal(t, StatusWarn, result.Status)
	})
}

func TestChecker_RunAll(t *testing.T) {
	// Given: a cache dir that does not exist yet
	dir := filepath.Join(t.TempDir(), "cache")
	prober := &stubProber{}

	// When: running all checks online
	results := New(WithProber(prober)).RunAll(context.Background(), Target{CacheDir: dir, TokenSet: true})

	// Then: every check ran and the directory was created
	names := make(map[string]bool)
	for _, r := range results {
		names[r.Name] = true
	}
	for _, want := range []string{"write_permissions", "disk_space", "file_descriptors", "gitlab_token", "gitlab_api"} {
		assert.True(t, names[want], "%s check missing", want)
	}
	assert.Equal(t, 1, prober.calls)
	assert.DirExists(t, dir)
}

func TestChecker_RunAll_OfflineSkipsNetwork(t *testing.T) {
	prober := &stubProber{}

	results := New(WithOffline(true), WithProber(prober)).
		RunAll(context.Background(), Target{CacheDir: t.TempDir()})

	assert.Equal(t, 0, prober.calls)
	for _, r := range results {
		assert.NotEqual(t, "gitlab_api", r.Name)
	}
}

func TestChecker_PrintResults(t *testing.T) {
	// Given: some check results
	results := []CheckResult{
		{Name: "disk_space", Status: StatusPass, Message: "50.0 GB free"},
		{Name: "gitlab_token", Status: StatusWarn, Message: "not set", Details: "export it"},
		{Name: "gitlab_api", Status: StatusFail, Message: "upstream returned 401", Required: true},
	}

	buf := &bytes.Buffer{}
	checker := New(WithOutput(buf), WithVerbose(true))

	// When: printing results
	checker.PrintResults(results)

	// Then: output contains formatted results and the summary
	out := buf.String()
	assert.Contains(t, out, "[PASS] disk_space: 50.0 GB free")
	assert.Contains(t, out, "[WARN] gitlab_token: not set")
	assert.Contains(t, out, "      export it")
	assert.Contains(t, out, "[FAIL] gitlab_api")
	assert.Contains(t, out, "Status: FAILED")
	assert.Contains(t, out, "1 error(s):")
	assert.Contains(t, out, "1 warning(s):")
}

func TestChecker_SummaryStatus(t *testing.T) {
	checker := New()

	tests := []struct {
		name     string
		results  []CheckResult
		expected string
	}{
		{"all pass", []CheckResult{{Status: StatusPass}, {Status: StatusPass}}, "ready"},
		{"with warnings", []CheckResult{{Status: StatusPass}, {Status: StatusWarn}}, "ready_with_warnings"},
		{"with critical failure", []CheckResult{{Status: StatusPass}, {Status: StatusFail, Required: true}}, "failed"},
		{"with optional failure", []CheckResult{{Status: StatusPass}, {Status: StatusFail}}, "ready_with_warnings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checker.SummaryStatus(tt.results))
		})
	}
}
