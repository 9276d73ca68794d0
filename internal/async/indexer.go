package async

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Aman-CERP/reposcout/internal/indexer"
	"github.com/Aman-CERP/reposcout/internal/model"
)

// LockFile marks an unfinished pre-warm run in the cache directory.
const LockFile = "prewarm.lock"

// RepoLister lists repositories, preferring the cache.
type RepoLister interface {
	Repositories(ctx context.Context) ([]model.Repository, error)
}

// BatchIndexer indexes documentation for many repositories.
type BatchIndexer interface {
	IndexRepositories(ctx context.Context, repos []model.Repository, progress indexer.ProgressFunc) indexer.Stats
}

// Prewarmer indexes every repository in a background goroutine.
type Prewarmer struct {
	dir      string
	lister   RepoLister
	indexer  BatchIndexer
	progress *Progress
	logger   *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}

	mu      sync.Mutex
	running bool
	started bool
	err     error
}

// NewPrewarmer creates a Prewarmer that keeps its lock file in dir.
func NewPrewarmer(dir string, lister RepoLister, ix BatchIndexer, logger *slog.Logger) *Prewarmer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prewarmer{
		dir:      dir,
		lister:   lister,
		indexer:  ix,
		progress: NewProgress(),
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Progress returns the progress tracker.
func (p *Prewarmer) Progress() *Progress {
	return p.progress
}

// IsRunning reports whether the run is active.
func (p *Prewarmer) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Start begins the run and returns immediately. Later calls are no-ops.
func (p *Prewarmer) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.running = true
	p.mu.Unlock()

	go p.run(ctx)
}

func (p *Prewarmer) fail(err error) {
	p.progress.SetError(err.Error())
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
	p.logger.Error("prewarm failed", slog.String("error", err.Error()))
}

func (p *Prewarmer) run(ctx context.Context) {
	defer close(p.doneCh)
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if HasIncompleteLock(p.dir) {
		p.logger.Warn("previous prewarm did not finish, starting over")
	}
	lockPath := filepath.Join(p.dir, LockFile)
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		p.fail(err)
		return
	}
	if err := os.WriteFile(lockPath, []byte(time.Now().Format(time.RFC3339)), 0o644); err != nil {
		p.fail(err)
		return
	}

	start := time.Now()
	repos, err := p.lister.Repositories(ctx)
	if err != nil {
		p.fail(err)
		return
	}

	p.progress.SetStage(StageIndexing, len(repos))
	stats := p.indexer.IndexRepositories(ctx, repos, func(current, _ int) {
		p.progress.SetProcessed(current)
	})
	p.progress.SetStage(StageSaving, len(repos))
	p.progress.Update(stats.Processed, stats.Indexed, stats.Errors)

	if err := ctx.Err(); err != nil {
		// Interrupted runs keep the lock so the next start reports them.
		p.fail(err)
		return
	}
	_ = os.Remove(lockPath)

	p.progress.SetReady()
	p.logger.Info("prewarm complete",
		slog.Int("repositories", stats.Processed),
		slog.Int("indexed", stats.Indexed),
		slog.Int("files", stats.TotalFiles),
		slog.Duration("duration", time.Since(start)))
}

// Stop cancels the run and waits for it to finish.
func (p *Prewarmer) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	select {
	case <-p.stopCh:
	default:
		close(p.stopCh)
	}
	<-p.doneCh
}

// Wait blocks until the run completes and returns its error.
func (p *Prewarmer) Wait() error {
	<-p.doneCh
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// HasIncompleteLock reports whether a previous run left its lock behind.
func HasIncompleteLock(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, LockFile))
	return err == nil
}
