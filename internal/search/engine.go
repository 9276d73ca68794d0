// Package search ranks repositories against a free-text query.
//
// Ranking has two additive phases. Metadata scoring weighs keyword hits in
// the repository name, description and path. Content scoring then adds
// hits in the cached documentation of the best metadata candidates,
// weighted by documentation priority.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/Aman-CERP/reposcout/internal/config"
	"github.com/Aman-CERP/reposcout/internal/errors"
	"github.com/Aman-CERP/reposcout/internal/indexer"
	"github.com/Aman-CERP/reposcout/internal/model"
)

// Scoring constants.
const (
	ExactMatchBonus = 10
	SubstringMatch  = 1
	WordMatchBonus  = 10

	nameWeight        = 3
	descriptionWeight = 2
	pathWeight        = 1

	maxSnippets = 5
	maxDocFiles = 3
)

// Defaults.
const (
	DefaultTopK            = 10
	DefaultMaxTopK         = 50
	DefaultWarmupLimit     = 100
	DefaultCandidateFactor = 3

	Method = "metadata+content"
)

// RepoSource lists every repository upstream.
type RepoSource interface {
	AllRepositories(ctx context.Context) ([]model.Repository, error)
}

// Store is the subset of the cache the engine reads and refreshes.
type Store interface {
	Repositories() ([]model.Repository, bool)
	SetRepositories(repos []model.Repository) error
	DocIndex(repoPath string) (*model.DocIndex, bool)
	IsDocCacheValid() bool
}

// Warmer indexes documentation for a batch of repositories.
type Warmer interface {
	IndexRepositories(ctx context.Context, repos []model.Repository, progress indexer.ProgressFunc) indexer.Stats
}

// Options configures an Engine.
type Options struct {
	MaxTopK         int
	WarmupLimit     int
	CandidateFactor int
	Logger          *slog.Logger
}

// OptionsFromConfig maps loaded configuration onto engine options.
func OptionsFromConfig(cfg config.SearchConfig) Options {
	return Options{
		MaxTopK:         cfg.MaxTopK,
		WarmupLimit:     cfg.WarmupLimit,
		CandidateFactor: cfg.CandidateFactor,
	}
}

// Engine searches cached repositories and their documentation.
type Engine struct {
	source RepoSource
	store  Store
	warmer Warmer

	maxTopK         int
	warmupLimit     int
	candidateFactor int
	patterns        *patternCache
	logger          *slog.Logger
}

// New creates an Engine. warmer may be nil to disable warm-up.
func New(source RepoSource, store Store, warmer Warmer, opts Options) *Engine {
	if opts.MaxTopK <= 0 {
		opts.MaxTopK = DefaultMaxTopK
	}
	if opts.WarmupLimit <= 0 {
		opts.WarmupLimit = DefaultWarmupLimit
	}
	if opts.CandidateFactor <= 0 {
		opts.CandidateFactor = DefaultCandidateFactor
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		source:          source,
		store:           store,
		warmer:          warmer,
		maxTopK:         opts.MaxTopK,
		warmupLimit:     opts.WarmupLimit,
		candidateFactor: opts.CandidateFactor,
		patterns:        newPatternCache(),
		logger:          opts.Logger,
	}
}

// ClampTopK bounds k to [1, limit].
func ClampTopK(k, limit int) int {
	if k < 1 {
		return 1
	}
	return min(k, limit)
}

type candidate struct {
	repo    model.Repository
	score   int
	matched map[string]struct{}
}

// Search returns up to topK ranked repositories. A blank query returns no
// results and no error.
func (e *Engine) Search(ctx context.Context, query string, topK int, warmCache bool) ([]model.SearchResult, error) {
	results, _, err := e.search(ctx, query, topK, warmCache)
	return results, err
}

func (e *Engine) search(ctx context.Context, query string, topK int, warmCache bool) ([]model.SearchResult, int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.SearchResult{}, 0, nil
	}

	start := time.Now()
	topK = ClampTopK(topK, e.maxTopK)
	keywords := extractKeywords(query)
	e.logger.Info(fmt.Sprintf("search: '%s'", query),
		slog.Any("keywords", keywords), slog.Int("top_k", topK))

	repos, err := e.Repositories(ctx)
	if err != nil {
		if errors.IsSecurity(err) {
			return nil, 0, err
		}
		e.logger.Error("failed to load repositories", slog.String("error", err.Error()))
		return []model.SearchResult{}, 0, nil
	}
	if len(repos) == 0 {
		e.logger.Warn("no repositories available for search")
		return []model.SearchResult{}, 0, nil
	}

	candidates := e.scoreMetadata(repos, keywords)
	if len(candidates) == 0 {
		e.logger.Info("no metadata matches found", slog.String("query", query))
		return []model.SearchResult{}, 0, nil
	}

	e.warmUp(ctx, candidates, warmCache)

	results := e.scoreContent(candidates, keywords, topK)

	e.logger.Info(fmt.Sprintf("search complete: %d results for '%s'", len(results), query),
		slog.Int("candidates", len(candidates)),
		slog.Duration("duration", time.Since(start)))
	return results, len(candidates), nil
}

// Repositories reads the cache and falls back to an upstream fetch. An
// empty list is never cached, since a failed listing also comes back empty.
func (e *Engine) Repositories(ctx context.Context) ([]model.Repository, error) {
	if repos, ok := e.store.Repositories(); ok && len(repos) > 0 {
		return repos, nil
	}
	repos, err := e.source.AllRepositories(ctx)
	if err != nil {
		return nil, err
	}
	if len(repos) == 0 {
		return repos, nil
	}
	if err := e.store.SetRepositories(repos); err != nil {
		e.logger.Warn("failed to cache repositories", slog.String("error", err.Error()))
	}
	return repos, nil
}

func (e *Engine) scoreMetadata(repos []model.Repository, keywords []string) []candidate {
	var out []candidate
	for _, repo := range repos {
		fields := [...]struct {
			value  string
			weight int
		}{
			{strings.ToLower(repo.Name), nameWeight},
			{strings.ToLower(repo.Description), descriptionWeight},
			{strings.ToLower(repo.Path), pathWeight},
		}

		c := candidate{repo: repo, matched: map[string]struct{}{}}
		for _, f := range fields {
			for _, kw := range keywords {
				switch {
				case kw == f.value:
					c.score += ExactMatchBonus * f.weight
					c.matched[kw+"(exact)"] = struct{}{}
				case strings.Contains(f.value, kw):
					c.score += SubstringMatch * f.weight
					c.matched[kw] = struct{}{}
				}
			}
		}
		if c.score > 0 {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

func (e *Engine) warmUp(ctx context.Context, candidates []candidate, warmCache bool) {
	if !warmCache || e.warmer == nil || e.store.IsDocCacheValid() {
		return
	}
	n := min(len(candidates), e.warmupLimit)
	repos := make([]model.Repository, n)
	for i := range n {
		repos[i] = candidates[i].repo
	}
	e.logger.Info("documentation cache empty or stale, warming up", slog.Int("repositories", n))
	e.warmer.IndexRepositories(ctx, repos, nil)
}

func (e *Engine) scoreContent(candidates []candidate, keywords []string, topK int) []model.SearchResult {
	limit := min(len(candidates), topK*e.candidateFactor)
	results := make([]model.SearchResult, 0, limit)

	for _, c := range candidates[:limit] {
		score := c.score
		matched := c.matched
		var snippets []model.DocSnippet
		var docTypes []model.DocType

		if idx, ok := e.store.DocIndex(c.repo.Path); ok {
			s, m, sn := e.searchContent(idx, keywords)
			score += s
			for k := range m {
				matched[k] = struct{}{}
			}
			snippets = sn
			docTypes = []model.DocType{idx.DocType}
		}

		results = append(results, model.SearchResult{
			Repository:      c.repo,
			Score:           float64(score),
			MatchedKeywords: sortedKeys(matched),
			DocSnippets:     snippets[:min(len(snippets), maxSnippets)],
			DocTypesFound:   docTypes,
			DocFiles:        distinctFiles(snippets, maxDocFiles),
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results[:min(len(results), topK)]
}

// searchContent scores one index. Files are visited in path order so
// snippet order is deterministic.
func (e *Engine) searchContent(idx *model.DocIndex, keywords []string) (int, map[string]struct{}, []model.DocSnippet) {
	score := 0
	matched := map[string]struct{}{}
	var snippets []model.DocSnippet
	priority := idx.Priority()
	typeName := idx.DocType.String()

	paths := make([]string, 0, len(idx.Files))
	for p := range idx.Files {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	for _, p := range paths {
		f := idx.Files[p]
		lower := strings.ToLower(f.Content)
		for _, kw := range keywords {
			if !strings.Contains(lower, kw) {
				continue
			}
			if e.patterns.word(kw).MatchString(lower) {
				score += WordMatchBonus * priority
				matched[typeName+":"+kw+"(exact)"] = struct{}{}
			} else {
				score += SubstringMatch * priority
				matched[typeName+":"+kw] = struct{}{}
			}
			for _, s := range e.patterns.snippets(f.Content, kw) {
				snippets = append(snippets, model.DocSnippet{
					File: p, Snippet: s, Keyword: kw, DocType: idx.DocType,
				})
			}
		}
	}
	return score, matched, snippets
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func distinctFiles(snippets []model.DocSnippet, limit int) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, s := range snippets {
		if seen[s.File] {
			continue
		}
		seen[s.File] = true
		out = append(out, s.File)
		if len(out) == limit {
			break
		}
	}
	return out
}
