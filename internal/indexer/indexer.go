// Package indexer discovers, classifies and caches repository documentation.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/reposcout/internal/clock"
	"github.com/Aman-CERP/reposcout/internal/config"
	"github.com/Aman-CERP/reposcout/internal/errors"
	"github.com/Aman-CERP/reposcout/internal/gitlab"
	"github.com/Aman-CERP/reposcout/internal/model"
)

const (
	DefaultWorkers       = 4
	DefaultProgressEvery = 10
)

// Source reads repository trees and files.
type Source interface {
	ListTree(ctx context.Context, project string, recursive bool) ([]gitlab.TreeEntry, error)
	FileContent(ctx context.Context, project, file, ref string) (*string, error)
}

// Store holds documentation indices.
type Store interface {
	DocIndex(repoPath string) (*model.DocIndex, bool)
	SetDocIndex(repoPath string, idx *model.DocIndex)
	AllDocIndices() map[string]*model.DocIndex
	IsDocCacheValid() bool
	DocTTL() time.Duration
	Now() time.Time
	Save() error
	RecordError()
}

// ProgressFunc receives the number of completed repositories and the total.
type ProgressFunc func(current, total int)

// Options configures an Indexer.
type Options struct {
	Workers       int
	ProgressEvery int
	Exclude       []string
	Logger        *slog.Logger
}

// OptionsFromConfig maps loaded configuration onto indexer options.
func OptionsFromConfig(cfg config.IndexerConfig) Options {
	return Options{
		Workers:       cfg.Workers,
		ProgressEvery: cfg.ProgressEvery,
		Exclude:       cfg.Exclude,
	}
}

// Indexer builds DocIndex records. Only the highest-priority documentation
// type present in a repository is kept.
type Indexer struct {
	src    Source
	store  Store
	filter *PathFilter

	workers       int
	progressEvery int
	logger        *slog.Logger
}

// New creates an Indexer.
func New(src Source, store Store, opts Options) (*Indexer, error) {
	filter, err := NewPathFilter(opts.Exclude)
	if err != nil {
		return nil, errors.ConfigError("invalid indexer exclude pattern", err)
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Indexer{
		src:           src,
		store:         store,
		filter:        filter,
		workers:       opts.Workers,
		progressEvery: opts.ProgressEvery,
		logger:        opts.Logger,
	}, nil
}

type candidate struct {
	path string
	name string
	id   string
}

// IndexRepository returns the documentation index for repo, building and
// caching it when absent or when forceRefresh is set. A repository with
// no fetchable documentation yields nil. Only security errors are returned.
func (ix *Indexer) IndexRepository(ctx context.Context, repo model.Repository, forceRefresh bool) (*model.DocIndex, error) {
	idx, fresh, err := ix.build(ctx, repo, forceRefresh)
	if err != nil || idx == nil {
		return nil, err
	}
	if fresh {
		ix.store.SetDocIndex(repo.Path, idx)
	}
	return idx, nil
}

// build computes an index without writing it. fresh is false when the
// cached index was returned unchanged.
func (ix *Indexer) build(ctx context.Context, repo model.Repository, forceRefresh bool) (idx *model.DocIndex, fresh bool, err error) {
	prev, hasPrev := ix.store.DocIndex(repo.Path)
	if hasPrev && !forceRefresh {
		return prev, false, nil
	}

	tree, err := ix.src.ListTree(ctx, repo.Path, true)
	if err != nil {
		return nil, false, err
	}

	docType, selected := ix.selectFiles(tree)
	if len(selected) == 0 {
		ix.logger.Debug("no documentation found", slog.String("repo", repo.Path))
		return nil, false, nil
	}

	now := ix.store.Now()
	ttl := ix.store.DocTTL()
	idx = &model.DocIndex{
		RepoPath: repo.Path,
		DocType:  docType,
		BestFile: selected[0].path,
		Files:    make(map[string]model.DocFile, len(selected)),
	}

	for _, c := range selected {
		if hasPrev {
			if f, ok := prev.Files[c.path]; ok && f.IsFresh(now, ttl) {
				idx.Files[c.path] = f
				continue
			}
		}

		content, err := ix.src.FileContent(ctx, repo.Path, c.path, repo.DefaultBranch)
		if err != nil {
			return nil, false, err
		}
		if content == nil {
			continue
		}
		idx.Files[c.path] = model.DocFile{
			Path:     c.path,
			Name:     c.name,
			DocType:  docType,
			Content:  *content,
			Size:     len(*content),
			CachedAt: clock.Unix(now),
			Ref:      repo.DefaultBranch,
		}
	}

	if len(idx.Files) == 0 {
		return nil, false, nil
	}
	ix.logger.Debug("indexed repository",
		slog.String("repo", repo.Path),
		slog.String("doc_type", docType.String()),
		slog.Int("files", len(idx.Files)))
	return idx, true, nil
}

// selectFiles classifies blobs and returns the files of the
// highest-priority type, in tree order.
func (ix *Indexer) selectFiles(tree []gitlab.TreeEntry) (model.DocType, []candidate) {
	byType := make(map[model.DocType][]candidate)
	for _, e := range tree {
		if !e.IsBlob() || !ix.filter.Allowed(e.Path) {
			continue
		}
		name := e.Name
		if name == "" {
			name = path.Base(e.Path)
		}
		if dt, ok := model.Classify(name); ok {
			byType[dt] = append(byType[dt], candidate{path: e.Path, name: name, id: e.ID})
		}
	}

	var (
		best     model.DocType
		bestPrio = -1
	)
	for _, dt := range model.DocTypes() {
		if len(byType[dt]) > 0 && dt.Priority() > bestPrio {
			best, bestPrio = dt, dt.Priority()
		}
	}
	if bestPrio < 0 {
		return 0, nil
	}
	return best, byType[best]
}

// Stats summarizes a batch run.
type Stats struct {
	Processed  int `json:"processed"`
	Indexed    int `json:"indexed"`
	Skipped    int `json:"skipped"`
	Errors     int `json:"errors"`
	TotalFiles int `json:"total_files"`
}

// IndexRepositories indexes repos concurrently, reusing cached indices,
// and saves the cache once at the end.
func (ix *Indexer) IndexRepositories(ctx context.Context, repos []model.Repository, progress ProgressFunc) Stats {
	return ix.indexBatch(ctx, repos, false, progress)
}

// RefreshRepositories is IndexRepositories with every index rebuilt.
// Unchanged files younger than the documentation TTL are not refetched.
func (ix *Indexer) RefreshRepositories(ctx context.Context, repos []model.Repository, progress ProgressFunc) Stats {
	return ix.indexBatch(ctx, repos, true, progress)
}

type outcome struct {
	repo  model.Repository
	idx   *model.DocIndex
	fresh bool
	err   error
}

func (ix *Indexer) indexBatch(ctx context.Context, repos []model.Repository, force bool, progress ProgressFunc) Stats {
	var stats Stats
	total := len(repos)
	start := time.Now()
	ix.logger.Info(fmt.Sprintf("Starting documentation indexing for %d repositories", total),
		slog.Int("workers", ix.workers), slog.Bool("force", force))

	results := make(chan outcome)
	g := new(errgroup.Group)
	g.SetLimit(ix.workers)

	go func() {
		defer close(results)
		for _, repo := range repos {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				idx, fresh, err := ix.build(ctx, repo, force)
				results <- outcome{repo: repo, idx: idx, fresh: fresh, err: err}
				return nil
			})
		}
		_ = g.Wait()
	}()

	// Single writer: only this loop touches the store.
	completed := 0
	for o := range results {
		completed++
		switch {
		case o.err != nil:
			stats.Errors++
			ix.store.RecordError()
			ix.logger.Error("failed to index repository",
				slog.String("repo", o.repo.Path), slog.String("error", o.err.Error()))
		case o.idx != nil:
			if o.fresh {
				ix.store.SetDocIndex(o.repo.Path, o.idx)
			}
			stats.Processed++
			stats.Indexed++
			stats.TotalFiles += len(o.idx.Files)
		default:
			stats.Processed++
			stats.Skipped++
		}

		if completed%ix.progressEvery == 0 {
			if progress != nil {
				progress(completed, total)
			}
			ix.logger.Info(fmt.Sprintf("Indexing progress: %d/%d (%d indexed, %d files)",
				completed, total, stats.Indexed, stats.TotalFiles))
		}
	}

	if err := ix.store.Save(); err != nil {
		ix.logger.Error("failed to save documentation cache", slog.String("error", err.Error()))
	}

	ix.logger.Info("Documentation indexing complete",
		slog.Int("processed", stats.Processed),
		slog.Int("indexed", stats.Indexed),
		slog.Int("skipped", stats.Skipped),
		slog.Int("errors", stats.Errors),
		slog.Int("total_files", stats.TotalFiles),
		slog.Duration("duration", time.Since(start)))
	return stats
}

// DocStats describes the documentation cache.
type DocStats struct {
	RepositoriesIndexed int            `json:"repositories_indexed"`
	TotalFiles          int            `json:"total_files"`
	DocTypes            map[string]int `json:"doc_types"`
	CacheValid          bool           `json:"cache_valid"`
}

// DocumentationStats counts cached indices by documentation type.
func (ix *Indexer) DocumentationStats() DocStats {
	all := ix.store.AllDocIndices()
	s := DocStats{
		RepositoriesIndexed: len(all),
		DocTypes:            map[string]int{},
		CacheValid:          ix.store.IsDocCacheValid(),
	}
	for _, idx := range all {
		s.TotalFiles += len(idx.Files)
		s.DocTypes[idx.DocType.String()]++
	}
	return s
}
