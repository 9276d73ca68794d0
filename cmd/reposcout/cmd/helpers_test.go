package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// fakeGitLab serves two projects that both carry a README.
type fakeGitLab struct {
	*httptest.Server
	projectCalls atomic.Int32
}

var fakeProjects = []map[string]any{
	{
		"id":                  1,
		"name":                "auth-service",
		"path_with_namespace": "platform/auth-service",
		"web_url":             "https://gitlab.test/platform/auth-service",
		"description":         "Authentication and token issuing",
		"star_count":          12,
		"visibility":          "internal",
		"default_branch":      "main",
	},
	{
		"id":                  2,
		"name":                "billing",
		"path_with_namespace": "platform/billing",
		"web_url":             "https://gitlab.test/platform/billing",
		"description":         "Invoices and payments",
		"star_count":          3,
		"visibility":          "private",
		"default_branch":      "main",
	},
}

func newFakeGitLab(t *testing.T) *fakeGitLab {
	t.Helper()
	f := &fakeGitLab{}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeGitLab) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.EscapedPath(), "/api/v4/")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case path == "projects":
		f.projectCalls.Add(1)
		w.Header().Set("X-Total-Pages", "1")
		_ = json.NewEncoder(w).Encode(fakeProjects)
	case path == "projects/platform%2Fauth-service":
		_ = json.NewEncoder(w).Encode(fakeProjects[0])
	case strings.HasSuffix(path, "/repository/tree") && r.URL.Query().Get("recursive") == "true":
		_, _ = w.Write([]byte(`[{"name":"README.md","path":"README.md","type":"blob"}]`))
	case strings.HasSuffix(path, "/repository/tree"):
		_, _ = w.Write([]byte(`[{"name":"docs","path":"docs","type":"tree"},{"name":"README.md","path":"README.md","type":"blob"}]`))
	case strings.HasSuffix(path, "/repository/files/README.md/raw"):
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("# Service\n\nIssues OAuth tokens for internal clients.\n"))
	default:
		http.NotFound(w, r)
	}
}

// isolateEnv points every path and setting the CLI reads at temp dirs.
func isolateEnv(t *testing.T, baseURL string) string {
	t.Helper()
	home := t.TempDir()
	cacheDir := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("REPOSCOUT_GITLAB_URL", baseURL)
	t.Setenv("REPOSCOUT_CACHE_DIR", cacheDir)
	t.Setenv("GITLAB_PRIVATE_TOKEN", "")
	for _, k := range []string{
		"REPOSCOUT_TIMEOUT", "REPOSCOUT_REPO_TTL", "REPOSCOUT_DOC_TTL", "REPOSCOUT_WORKERS",
		"REPOSCOUT_WARM_CACHE", "REPOSCOUT_LOG_LEVEL", "REPOSCOUT_PREWARM", "REPOSCOUT_TELEMETRY",
	} {
		t.Setenv(k, "")
	}
	return cacheDir
}

// execute runs the CLI with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--project-dir", t.TempDir()}, args...))
	err := root.Execute()
	return out.String(), err
}
