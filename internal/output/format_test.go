package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/reposcout/internal/gitlab"
	"github.com/Aman-CERP/reposcout/internal/model"
	"github.com/Aman-CERP/reposcout/internal/search"
	"github.com/Aman-CERP/reposcout/internal/telemetry"
	"github.com/Aman-CERP/reposcout/internal/tools"
)

func TestFormatSearch_Results(t *testing.T) {
	// Given: a response with one documented match
	resp := search.Response{
		Success:      true,
		Query:        "auth",
		Count:        1,
		TotalMatched: 2,
		Method:       "keyword_and_content_search",
		Repositories: []model.SearchResult{{
			Repository: model.Repository{
				Path:        "platform/auth-service",
				Description: "Authentication service",
				URL:         "https://gitlab.example.com/platform/auth-service",
			},
			Score:           62,
			MatchedKeywords: []string{"auth"},
			DocFiles:        []string{"README.md"},
			DocSnippets:     []model.DocSnippet{{File: "README.md", Snippet: "...handles auth tokens..."}},
		}},
	}

	// When: formatting
	out := FormatSearch(resp)

	// Then: header, entry and details are present
	assert.Contains(t, out, "## Repositories matching \"auth\"")
	assert.Contains(t, out, "Showing 1 of 2 matches (keyword_and_content_search)")
	assert.Contains(t, out, "### 1. platform/auth-service (score: 62)")
	assert.Contains(t, out, "Authentication service")
	assert.Contains(t, out, "**Matched:** `auth`")
	assert.Contains(t, out, "**Docs:** README.md")
	assert.Contains(t, out, "> README.md: ...handles auth tokens...")
}

func TestFormatSearch_NoResultsAndFailure(t *testing.T) {
	assert.Equal(t, "No repositories found for \"zzz\"\n",
		FormatSearch(search.Response{Success: true, Query: "zzz"}))
	assert.Equal(t, "Search failed: Query is required\n",
		FormatSearch(search.Response{Error: "Query is required"}))
}

func TestFormatSearch_SingleMatchWording(t *testing.T) {
	out := FormatSearch(search.Response{
		Success: true, Query: "x", Count: 1, TotalMatched: 1, Method: "m",
		Repositories: []model.SearchResult{{Repository: model.Repository{Path: "g/x"}}},
	})

	assert.Contains(t, out, "Showing 1 of 1 match (m)")
}

func TestFormatRepoList(t *testing.T) {
	// Given: two cached repositories
	res := tools.RepoListResult{
		Success: true,
		Count:   2,
		Repositories: []tools.RepoSummary{
			{Path: "group/api", Visibility: "private", Stars: 3, Description: "REST API\nsecond line"},
			{Path: "group/web-frontend", Visibility: "public", Stars: 12},
		},
		CacheUsed: true,
	}

	// When: formatting
	out := FormatRepoList(res)

	// Then: rows are aligned and the source noted
	lines := strings.Split(out, "\n")
	assert.Equal(t, "PATH                VISIBILITY  STARS  DESCRIPTION", lines[0])
	assert.Equal(t, "group/api           private         3  REST API", lines[1])
	assert.Contains(t, out, "2 repositories (from cache)")
}

func TestFormatRepoList_EmptyAndSingle(t *testing.T) {
	assert.Equal(t, "No repositories found\n", FormatRepoList(tools.RepoListResult{Success: true}))

	out := FormatRepoList(tools.RepoListResult{
		Success: true, Count: 1, Repositories: []tools.RepoSummary{{Path: "a/b"}},
	})
	assert.Contains(t, out, "1 repository (from GitLab)")
}

func TestFormatRepoInfo(t *testing.T) {
	out := FormatRepoInfo(tools.RepoInfoResult{
		Success:       true,
		ID:            42,
		Name:          "api",
		Path:          "group/api",
		URL:           "https://gitlab.example.com/group/api",
		Visibility:    "internal",
		DefaultBranch: "main",
		Stars:         5,
		Forks:         1,
		Issues:        7,
	})

	assert.Contains(t, out, "## group/api")
	assert.Contains(t, out, "ID:             42")
	assert.Contains(t, out, "Default branch: main")
	assert.Contains(t, out, "Stars/Forks:    5/1")
	assert.Contains(t, out, "Open issues:    7")

	assert.Equal(t, "Repository not found: x/y\n",
		FormatRepoInfo(tools.RepoInfoResult{Error: "Repository not found: x/y"}))
}

func TestFormatDirectory(t *testing.T) {
	out := FormatDirectory(tools.DirectoryResult{
		Success:     true,
		Project:     "group/api",
		Path:        "/",
		Ref:         "master",
		Files:       []gitlab.Entry{{Name: "README.md", Path: "README.md", Type: "blob"}},
		Directories: []gitlab.Entry{{Name: "docs", Path: "docs", Type: "tree"}},
	})

	assert.Equal(t, "group/api:/ @ master\n  docs/\n  README.md\n", out)
}

func TestFormatDirectory_Empty(t *testing.T) {
	out := FormatDirectory(tools.DirectoryResult{Success: true, Project: "g/p", Path: "src", Ref: "main"})

	assert.Equal(t, "g/p:src @ main\n  (empty)\n", out)
}

func TestFormatTelemetryReport(t *testing.T) {
	// Given: a populated report
	r := &telemetry.Report{
		From:                "2026-02-23",
		To:                  "2026-03-01",
		ToolCounts:          map[string]int64{"gitlab_search_repos": 9, "gitlab_read_file": 2},
		LatencyDistribution: map[telemetry.LatencyBucket]int64{telemetry.BucketP100: 8, telemetry.BucketP5000: 3},
		TopTerms:            []telemetry.TermCount{{Term: "auth", Count: 4}},
		ZeroResultQueries:   []string{"kafka"},
	}

	// When: formatting
	out := FormatTelemetryReport(r)

	// Then: all sections render, busiest tool first
	assert.Contains(t, out, "Period:      2026-02-23 to 2026-03-01")
	assert.Contains(t, out, "Total calls: 11")
	assert.Less(t, strings.Index(out, "gitlab_search_repos"), strings.Index(out, "gitlab_read_file"))
	assert.Contains(t, out, "1. auth (4)")
	assert.Contains(t, out, "- \"kafka\"")
	assert.Contains(t, out, "<100ms:    8")
	assert.Contains(t, out, "1-5s:      3")
	assert.NotContains(t, out, "100-500ms")
}

func TestFormatTelemetryReport_Empty(t *testing.T) {
	out := FormatTelemetryReport(&telemetry.Report{From: "2026-03-01", To: "2026-03-01"})

	assert.Contains(t, out, "Total calls: 0")
	assert.Contains(t, out, "(none recorded yet)")
	assert.Contains(t, out, "Recent Zero-Result Queries: (none)")
	assert.NotContains(t, out, "Latency Distribution")
}
