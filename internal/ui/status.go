package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// StatusInfo describes the local cache and documentation index.
type StatusInfo struct {
	Source        string         `json:"source"`
	CacheDir      string         `json:"cache_dir"`
	ReposCached   int            `json:"repos_cached"`
	ReposIndexed  int            `json:"repos_indexed"`
	DocFiles      int            `json:"doc_files"`
	DocTypes      map[string]int `json:"doc_types"`
	Errors        int            `json:"errors"`
	LastUpdated   time.Time      `json:"last_updated"`
	RepoCacheSize int64          `json:"repo_cache_size"`
	DocCacheSize  int64          `json:"doc_cache_size"`
	CacheValid    bool           `json:"cache_valid"`
	Prewarm       string         `json:"prewarm,omitempty"` // "incomplete" when a lock was left behind
}

// StatusRenderer displays cache status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
	now    func() time.Time
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor || DetectNoColor()),
		now:    time.Now,
	}
}

// Render displays status info to the terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Cache Status: "+info.Source))

	_, _ = fmt.Fprintf(r.out, "  Directory:    %s\n", info.CacheDir)
	_, _ = fmt.Fprintf(r.out, "  Repositories: %d cached, %d indexed\n", info.ReposCached, info.ReposIndexed)
	_, _ = fmt.Fprintf(r.out, "  Doc files:    %d\n", info.DocFiles)
	if !info.LastUpdated.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Updated:      %s\n", r.formatTime(info.LastUpdated))
	}
	valid := r.styles.Success.Render("valid")
	if !info.CacheValid {
		valid = r.styles.Warning.Render("stale")
	}
	_, _ = fmt.Fprintf(r.out, "  Docs cache:   %s\n", valid)
	if info.Errors > 0 {
		_, _ = fmt.Fprintf(r.out, "  Errors:       %s\n", r.styles.Error.Render(fmt.Sprintf("%d", info.Errors)))
	}
	_, _ = fmt.Fprintln(r.out)

	if len(info.DocTypes) > 0 {
		_, _ = fmt.Fprintln(r.out, "  Documentation types:")
		types := make([]string, 0, len(info.DocTypes))
		for t := range info.DocTypes {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			_, _ = fmt.Fprintf(r.out, "    %-10s %d\n", t+":", info.DocTypes[t])
		}
		_, _ = fmt.Fprintln(r.out)
	}

	_, _ = fmt.Fprintln(r.out, "  Storage:")
	_, _ = fmt.Fprintf(r.out, "    Repositories:  %s\n", FormatBytes(info.RepoCacheSize))
	_, _ = fmt.Fprintf(r.out, "    Documentation: %s\n", FormatBytes(info.DocCacheSize))

	if info.Prewarm != "" {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintf(r.out, "  Prewarm: %s\n", r.styles.Warning.Render(info.Prewarm))
	}
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) formatTime(t time.Time) string {
	diff := r.now().Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day") + " ago"
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
