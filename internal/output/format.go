package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Aman-CERP/reposcout/internal/search"
	"github.com/Aman-CERP/reposcout/internal/telemetry"
	"github.com/Aman-CERP/reposcout/internal/tools"
)

// FormatSearch renders a search response as markdown.
func FormatSearch(resp search.Response) string {
	if !resp.Succeeded() {
		return fmt.Sprintf("Search failed: %s\n", resp.Error)
	}
	if resp.Count == 0 {
		return fmt.Sprintf("No repositories found for \"%s\"\n", resp.Query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Repositories matching \"%s\"\n\n", resp.Query)
	fmt.Fprintf(&sb, "Showing %d of %d match%s (%s)\n\n", resp.Count, resp.TotalMatched, plural(resp.TotalMatched, "es"), resp.Method)

	for i, r := range resp.Repositories {
		repo := r.Repository
		fmt.Fprintf(&sb, "### %d. %s (score: %.0f)\n", i+1, repo.Path, r.Score)
		if repo.Description != "" {
			fmt.Fprintf(&sb, "%s\n", repo.Description)
		}
		fmt.Fprintf(&sb, "%s\n", repo.URL)
		if len(r.MatchedKeywords) > 0 {
			kws := make([]string, len(r.MatchedKeywords))
			for j, k := range r.MatchedKeywords {
				kws[j] = "`" + k + "`"
			}
			fmt.Fprintf(&sb, "**Matched:** %s\n", strings.Join(kws, ", "))
		}
		if len(r.DocFiles) > 0 {
			fmt.Fprintf(&sb, "**Docs:** %s\n", strings.Join(r.DocFiles, ", "))
		}
		for _, s := range r.DocSnippets {
			fmt.Fprintf(&sb, "> %s: %s\n", s.File, s.Snippet)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatRepoList renders a repository listing as an aligned table.
func FormatRepoList(res tools.RepoListResult) string {
	if !res.Succeeded() {
		return fmt.Sprintf("Listing failed: %s\n", res.Error)
	}
	if res.Count == 0 {
		return "No repositories found\n"
	}

	width := len("PATH")
	for _, r := range res.Repositories {
		width = max(width, len(r.Path))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-*s  %-10s  %5s  %s\n", width, "PATH", "VISIBILITY", "STARS", "DESCRIPTION")
	for _, r := range res.Repositories {
		fmt.Fprintf(&sb, "%-*s  %-10s  %5d  %s\n", width, r.Path, r.Visibility, r.Stars, firstLine(r.Description, 60))
	}
	source := "GitLab"
	if res.CacheUsed {
		source = "cache"
	}
	fmt.Fprintf(&sb, "\n%d repositor%s (from %s)\n", res.Count, plural(res.Count, "ies", "y"), source)
	return sb.String()
}

// FormatRepoInfo renders repository details.
func FormatRepoInfo(res tools.RepoInfoResult) string {
	if !res.Succeeded() {
		return res.Error + "\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n\n", res.Path)
	if res.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", res.Description)
	}
	fmt.Fprintf(&sb, "  ID:             %d\n", res.ID)
	fmt.Fprintf(&sb, "  Name:           %s\n", res.Name)
	fmt.Fprintf(&sb, "  URL:            %s\n", res.URL)
	fmt.Fprintf(&sb, "  Visibility:     %s\n", res.Visibility)
	fmt.Fprintf(&sb, "  Default branch: %s\n", res.DefaultBranch)
	fmt.Fprintf(&sb, "  Stars/Forks:    %d/%d\n", res.Stars, res.Forks)
	fmt.Fprintf(&sb, "  Open issues:    %d\n", res.Issues)
	return sb.String()
}

// FormatDirectory renders a directory listing, directories first.
func FormatDirectory(res tools.DirectoryResult) string {
	if !res.Succeeded() {
		return fmt.Sprintf("Listing failed: %s\n", res.Error)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:%s @ %s\n", res.Project, res.Path, res.Ref)
	if len(res.Files)+len(res.Directories) == 0 {
		sb.WriteString("  (empty)\n")
		return sb.String()
	}
	for _, d := range res.Directories {
		fmt.Fprintf(&sb, "  %s/\n", d.Name)
	}
	for _, f := range res.Files {
		fmt.Fprintf(&sb, "  %s\n", f.Name)
	}
	return sb.String()
}

var latencyLabels = []struct {
	bucket telemetry.LatencyBucket
	label  string
}{
	{telemetry.BucketP100, "<100ms"},
	{telemetry.BucketP500, "100-500ms"},
	{telemetry.BucketP1000, "500ms-1s"},
	{telemetry.BucketP5000, "1-5s"},
	{telemetry.BucketP30000, ">=5s"},
}

// FormatTelemetryReport renders persisted usage metrics.
func FormatTelemetryReport(r *telemetry.Report) string {
	var sb strings.Builder
	sb.WriteString("Usage Statistics\n")
	sb.WriteString("================\n\n")
	fmt.Fprintf(&sb, "Period:      %s to %s\n", r.From, r.To)
	fmt.Fprintf(&sb, "Total calls: %d\n\n", r.TotalCalls())

	if len(r.ToolCounts) > 0 {
		sb.WriteString("Tool Calls:\n")
		names := make([]string, 0, len(r.ToolCounts))
		for t := range r.ToolCounts {
			names = append(names, t)
		}
		sort.Slice(names, func(i, j int) bool {
			ci, cj := r.ToolCounts[names[i]], r.ToolCounts[names[j]]
			if ci != cj {
				return ci > cj
			}
			return names[i] < names[j]
		})
		for _, t := range names {
			fmt.Fprintf(&sb, "  %-22s %d\n", t, r.ToolCounts[t])
		}
		sb.WriteString("\n")
	}

	if len(r.TopTerms) > 0 {
		sb.WriteString("Top Query Terms:\n")
		for i, tc := range r.TopTerms {
			fmt.Fprintf(&sb, "  %d. %s (%d)\n", i+1, tc.Term, tc.Count)
		}
	} else {
		sb.WriteString("Top Query Terms: (none recorded yet)\n")
	}
	sb.WriteString("\n")

	if len(r.ZeroResultQueries) > 0 {
		sb.WriteString("Recent Zero-Result Queries:\n")
		for _, q := range r.ZeroResultQueries {
			fmt.Fprintf(&sb, "  - \"%s\"\n", q)
		}
	} else {
		sb.WriteString("Recent Zero-Result Queries: (none)\n")
	}

	if len(r.LatencyDistribution) > 0 {
		sb.WriteString("\nLatency Distribution:\n")
		for _, l := range latencyLabels {
			if n, ok := r.LatencyDistribution[l.bucket]; ok {
				fmt.Fprintf(&sb, "  %-10s %d\n", l.label+":", n)
			}
		}
	}
	return sb.String()
}

// plural picks the plural suffix for n; forms are (plural) or (plural, singular).
func plural(n int, forms ...string) string {
	singular := ""
	if len(forms) > 1 {
		singular = forms[1]
	}
	if n == 1 {
		return singular
	}
	return forms[0]
}

func firstLine(s string, maxLen int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxLen {
		return string(r[:maxLen-3]) + "..."
	}
	return s
}
