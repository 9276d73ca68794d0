// Package tools is the operation layer shared by the MCP server and the
// CLI. Every operation returns a result value; failures are reported in the
// result rather than as Go errors.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Aman-CERP/reposcout/internal/gitlab"
	"github.com/Aman-CERP/reposcout/internal/indexer"
	"github.com/Aman-CERP/reposcout/internal/model"
	"github.com/Aman-CERP/reposcout/internal/search"
	"github.com/Aman-CERP/reposcout/internal/telemetry"
)

// Tool names as exposed over MCP and recorded in telemetry.
const (
	ToolListDirectory = "gitlab_list_directory"
	ToolReadFile      = "gitlab_read_file"
	ToolListRepos     = "gitlab_list_repos"
	ToolGetRepoInfo   = "gitlab_get_repo_info"
	ToolSearchRepos   = "gitlab_search_repos"
)

// Defaults applied when callers omit arguments.
const (
	DefaultRef  = "master"
	DefaultPath = "/"
)

// Client is the upstream API surface the tools use.
type Client interface {
	ListDirectory(ctx context.Context, project, path, ref string) (gitlab.Listing, error)
	FileContent(ctx context.Context, project, file, ref string) (*string, error)
	AllRepositories(ctx context.Context) ([]model.Repository, error)
	Repository(ctx context.Context, path string) (*model.Repository, error)
}

// Cache is the repository cache surface the tools use.
type Cache interface {
	Repositories() ([]model.Repository, bool)
	SetRepositories(repos []model.Repository) error
	Stats() model.CacheStats
	Clear() error
}

// Searcher ranks repositories.
type Searcher interface {
	SearchRepositories(ctx context.Context, query string, topK int, warmCache bool) search.Response
}

// DocReporter summarizes the documentation cache.
type DocReporter interface {
	DocumentationStats() indexer.DocStats
}

// Options configures a Service.
type Options struct {
	// Metrics may be nil to disable telemetry.
	Metrics *telemetry.QueryMetrics
	Logger  *slog.Logger
}

// Service implements the tool operations.
type Service struct {
	client   Client
	cache    Cache
	searcher Searcher
	docs     DocReporter
	metrics  *telemetry.QueryMetrics
	logger   *slog.Logger
}

// New creates a Service.
func New(client Client, cache Cache, searcher Searcher, docs DocReporter, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		client:   client,
		cache:    cache,
		searcher: searcher,
		docs:     docs,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
}

// Metrics returns the telemetry collector, or nil.
func (s *Service) Metrics() *telemetry.QueryMetrics { return s.metrics }

func (s *Service) record(tool, query string, count int, ok bool, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.Record(telemetry.Event{
		Tool:        tool,
		Query:       query,
		ResultCount: count,
		Success:     ok,
		Latency:     time.Since(start),
		Timestamp:   start,
	})
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// ListDirectory lists one directory level of a project.
func (s *Service) ListDirectory(ctx context.Context, project, path, ref string) (res DirectoryResult) {
	start := time.Now()
	defer func() { s.record(ToolListDirectory, "", len(res.Files)+len(res.Directories), res.Success, start) }()

	if strings.TrimSpace(project) == "" {
		return DirectoryResult{Error: "project_path is required"}
	}
	path = orDefault(path, DefaultPath)
	ref = orDefault(ref, DefaultRef)

	listing, err := s.client.ListDirectory(ctx, project, path, ref)
	if err != nil {
		return DirectoryResult{Error: err.Error()}
	}
	return DirectoryResult{
		Success:     true,
		Project:     project,
		Path:        path,
		Ref:         ref,
		Files:       listing.Files,
		Directories: listing.Directories,
	}
}

// ReadFile returns the content of one file. Sensitive paths are not
// filtered here; the caller names the file explicitly.
func (s *Service) ReadFile(ctx context.Context, project, file, ref string) (res FileResult) {
	start := time.Now()
	defer func() { s.record(ToolReadFile, "", res.Size, res.Success, start) }()

	if strings.TrimSpace(project) == "" {
		return FileResult{Error: "project_path is required"}
	}
	if strings.TrimSpace(file) == "" {
		return FileResult{Error: "file_path is required"}
	}
	ref = orDefault(ref, DefaultRef)

	content, err := s.client.FileContent(ctx, project, file, ref)
	if err != nil {
		return FileResult{Error: err.Error()}
	}
	if content == nil {
		return FileResult{Error: "File not found: " + file}
	}
	return FileResult{
		Success: true,
		Content: *content,
		Size:    utf8.RuneCountInString(*content),
		Path:    file,
	}
}

// ListRepos lists every accessible repository, from the cache when allowed.
func (s *Service) ListRepos(ctx context.Context, useCache bool) (res RepoListResult) {
	start := time.Now()
	defer func() { s.record(ToolListRepos, "", res.Count, res.Success, start) }()

	var repos []model.Repository
	cacheUsed := false
	if useCache {
		if cached, ok := s.cache.Repositories(); ok && len(cached) > 0 {
			repos, cacheUsed = cached, true
		}
	}
	if !cacheUsed {
		fetched, err := s.client.AllRepositories(ctx)
		if err != nil {
			return RepoListResult{Error: err.Error()}
		}
		if err := s.cache.SetRepositories(fetched); err != nil {
			s.logger.Warn("failed to cache repositories", slog.String("error", err.Error()))
		}
		repos = fetched
	}

	out := make([]RepoSummary, 0, len(repos))
	for _, r := range repos {
		out = append(out, summarize(r))
	}
	return RepoListResult{
		Success:      true,
		Repositories: out,
		Count:        len(out),
		CacheUsed:    cacheUsed,
	}
}

// GetRepoInfo returns details for one project.
func (s *Service) GetRepoInfo(ctx context.Context, project string) (res RepoInfoResult) {
	start := time.Now()
	defer func() {
		n := 0
		if res.Success {
			n = 1
		}
		s.record(ToolGetRepoInfo, "", n, res.Success, start)
	}()

	if strings.TrimSpace(project) == "" {
		return RepoInfoResult{Error: "project_path is required"}
	}
	repo, err := s.client.Repository(ctx, project)
	if err != nil {
		return RepoInfoResult{Error: err.Error()}
	}
	if repo == nil {
		return RepoInfoResult{Error: "Repository not found: " + project}
	}
	return RepoInfoResult{
		Success:       true,
		ID:            repo.ID,
		Name:          repo.Name,
		Path:          repo.Path,
		Description:   repo.Description,
		URL:           repo.URL,
		Stars:         repo.Stars,
		Forks:         repo.Forks,
		Issues:        repo.Issues,
		Visibility:    repo.Visibility,
		DefaultBranch: repo.DefaultBranch,
	}
}

// SearchRepos ranks repositories against query.
func (s *Service) SearchRepos(ctx context.Context, query string, topK int, warmCache bool) search.Response {
	start := time.Now()
	if strings.TrimSpace(query) == "" {
		s.record(ToolSearchRepos, "", 0, false, start)
		return search.Response{Query: query, Error: "Query is required"}
	}

	resp := s.searcher.SearchRepositories(ctx, query, topK, warmCache)
	s.record(ToolSearchRepos, query, resp.Count, resp.Success, start)
	return resp
}

// DocumentationStats summarizes the documentation cache.
func (s *Service) DocumentationStats() indexer.DocStats {
	return s.docs.DocumentationStats()
}

// CacheStats summarizes both caches.
func (s *Service) CacheStats() model.CacheStats {
	return s.cache.Stats()
}

// ClearCache drops every cached repository and document.
func (s *Service) ClearCache() ClearResult {
	if err := s.cache.Clear(); err != nil {
		return ClearResult{Error: fmt.Sprintf("clear cache: %v", err)}
	}
	return ClearResult{Success: true, Message: "Cache cleared"}
}

// Report aggregates cache, documentation and usage statistics.
type Report struct {
	Cache         model.CacheStats    `json:"cache"`
	Documentation indexer.DocStats    `json:"documentation"`
	Telemetry     *telemetry.Snapshot `json:"telemetry,omitempty"`
}

// Stats gathers a Report.
func (s *Service) Stats() Report {
	r := Report{
		Cache:         s.CacheStats(),
		Documentation: s.DocumentationStats(),
	}
	if s.metrics != nil {
		r.Telemetry = s.metrics.Snapshot()
	}
	return r
}
