// Package cache persists repository metadata and documentation indices as
// two independently expiring JSON files.
//
// The repository cache expires RepoTTL after SetRepositories. The
// documentation cache expires DocTTL after it was last loaded from disk;
// SetDocIndex and Save do not refresh that timestamp, so a process that
// indexes from a cold start keeps reporting the documentation cache as
// invalid until it is reloaded. Per-file freshness (DocFile.IsFresh) is
// what the indexer uses to decide refetching.
package cache

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/Aman-CERP/reposcout/internal/clock"
	"github.com/Aman-CERP/reposcout/internal/config"
	"github.com/Aman-CERP/reposcout/internal/errors"
	"github.com/Aman-CERP/reposcout/internal/model"
)

const (
	DefaultRepoTTL     = time.Hour
	DefaultDocTTL      = 24 * time.Hour
	DefaultLockTimeout = 10 * time.Second
)

// Options configures a Manager.
type Options struct {
	Dir         string
	RepoTTL     time.Duration
	DocTTL      time.Duration
	LockTimeout time.Duration
	Clock       clock.Clock
	Logger      *slog.Logger
}

// OptionsFromConfig maps loaded configuration onto manager options.
func OptionsFromConfig(cfg config.CacheConfig) Options {
	return Options{
		Dir:         cfg.Dir,
		RepoTTL:     cfg.RepoTTL,
		DocTTL:      cfg.DocTTL,
		LockTimeout: cfg.LockTimeout,
	}
}

// Manager owns both caches. It is safe for concurrent use within a
// process; cross-process writers are serialized by a file lock.
type Manager struct {
	dir         string
	repoTTL     time.Duration
	docTTL      time.Duration
	lockTimeout time.Duration
	clock       clock.Clock
	logger      *slog.Logger

	mu       sync.RWMutex
	repos    []model.Repository
	repoTime time.Time
	docs     map[string]*model.DocIndex
	docTime  time.Time
	errCount int
	updated  *float64

	writeMu sync.Mutex
	lock    *FileLock
}

// New creates the cache directory if needed and loads any persisted state.
// Unreadable or corrupt cache files start that cache empty.
func New(opts Options) (*Manager, error) {
	if opts.Dir == "" {
		return nil, errors.ConfigError("cache directory is required", nil)
	}
	if opts.RepoTTL <= 0 {
		opts.RepoTTL = DefaultRepoTTL
	}
	if opts.DocTTL <= 0 {
		opts.DocTTL = DefaultDocTTL
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, errors.New(errors.ErrCodeCacheWrite, "failed to create cache directory", err).
			WithDetail("dir", opts.Dir)
	}

	m := &Manager{
		dir:         opts.Dir,
		repoTTL:     opts.RepoTTL,
		docTTL:      opts.DocTTL,
		lockTimeout: opts.LockTimeout,
		clock:       opts.Clock,
		logger:      opts.Logger,
		docs:        map[string]*model.DocIndex{},
		lock:        NewFileLock(opts.Dir),
	}
	m.load()
	return m, nil
}

// Dir returns the cache directory.
func (m *Manager) Dir() string { return m.dir }

// DocTTL is the per-file freshness window used by the indexer.
func (m *Manager) DocTTL() time.Duration { return m.docTTL }

// Now returns the manager clock's current time.
func (m *Manager) Now() time.Time { return m.clock.Now() }

func (m *Manager) repoPath() string { return filepath.Join(m.dir, RepoCacheFile) }
func (m *Manager) docPath() string  { return filepath.Join(m.dir, DocCacheFile) }

func (m *Manager) load() {
	if data, err := os.ReadFile(m.repoPath()); err == nil {
		var env repoEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			m.logger.Warn("repository cache corrupt, starting empty",
				slog.String("file", m.repoPath()), slog.String("error", err.Error()))
		} else {
			repos := env.Repositories
			if repos == nil {
				repos = []model.Repository{}
			}
			for i := range repos {
				repos[i].ApplyDefaults()
			}
			m.repos = repos
			m.repoTime = clock.FromUnix(env.Timestamp)
			ts := env.Timestamp
			m.updated = &ts
		}
	} else if !os.IsNotExist(err) {
		m.logger.Warn("repository cache unreadable", slog.String("error", err.Error()))
	}

	if data, err := os.ReadFile(m.docPath()); err == nil {
		var env docEnvelope
		err := json.Unmarshal(data, &env)
		if err == nil {
			err = migrateDocs(&env)
		}
		if err != nil {
			m.logger.Warn("documentation cache corrupt, starting empty",
				slog.String("file", m.docPath()), slog.String("error", err.Error()))
		} else {
			for key, rec := range env.Cache {
				m.docs[key] = fromRecord(key, rec)
			}
			m.docTime = clock.FromUnix(env.Timestamp)
		}
	} else if !os.IsNotExist(err) {
		m.logger.Warn("documentation cache unreadable", slog.String("error", err.Error()))
	}

	m.logger.Debug("cache loaded",
		slog.Int("repositories", len(m.repos)), slog.Int("doc_indices", len(m.docs)))
}

// IsRepoCacheValid reports whether a repository list is present and younger
// than RepoTTL.
func (m *Manager) IsRepoCacheValid() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.repoValidLocked()
}

func (m *Manager) repoValidLocked() bool {
	if m.repos == nil || m.repoTime.IsZero() {
		return false
	}
	return m.clock.Now().Sub(m.repoTime) < m.repoTTL
}

// IsDocCacheValid reports whether the documentation cache is non-empty and
// its load timestamp is younger than DocTTL.
func (m *Manager) IsDocCacheValid() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.docs) == 0 || m.docTime.IsZero() {
		return false
	}
	return m.clock.Now().Sub(m.docTime) < m.docTTL
}

// Repositories returns a copy of the cached list, or false when the cache
// is missing or expired.
func (m *Manager) Repositories() ([]model.Repository, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.repoValidLocked() {
		return nil, false
	}
	return slices.Clone(m.repos), true
}

// SetRepositories replaces the cached list and persists it immediately.
func (m *Manager) SetRepositories(repos []model.Repository) error {
	if repos == nil {
		repos = []model.Repository{}
	}
	now := m.clock.Now()
	ts := clock.Unix(now)

	m.mu.Lock()
	m.repos = slices.Clone(repos)
	m.repoTime = now
	m.updated = &ts
	env := repoEnvelope{Repositories: m.repos, Timestamp: ts, Version: repoSchemaVersion}
	m.mu.Unlock()

	return m.withLock(func() error {
		return writeJSONAtomic(m.repoPath(), env)
	})
}

// DocIndex returns a copy of the index for a repository path.
func (m *Manager) DocIndex(repoPath string) (*model.DocIndex, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.docs[repoPath]
	if !ok {
		return nil, false
	}
	return idx.Clone(), true
}

// SetDocIndex stores an index in memory. Call Save to persist.
func (m *Manager) SetDocIndex(repoPath string, idx *model.DocIndex) {
	if idx == nil {
		return
	}
	m.mu.Lock()
	m.docs[repoPath] = idx.Clone()
	m.mu.Unlock()
}

// AllDocIndices returns a copy of every cached index keyed by repository path.
func (m *Manager) AllDocIndices() map[string]*model.DocIndex {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*model.DocIndex, len(m.docs))
	for k, v := range m.docs {
		out[k] = v.Clone()
	}
	return out
}

// RecordError counts a failure against the cache statistics.
func (m *Manager) RecordError() {
	m.mu.Lock()
	m.errCount++
	m.mu.Unlock()
}

// Save persists both caches. An empty documentation cache is not written.
func (m *Manager) Save() error {
	ts := clock.Unix(m.clock.Now())

	m.mu.RLock()
	var repoEnv *repoEnvelope
	if m.repos != nil {
		repoEnv = &repoEnvelope{
			Repositories: slices.Clone(m.repos),
			Timestamp:    clock.Unix(m.repoTime),
			Version:      repoSchemaVersion,
		}
	}
	var docEnv *docEnvelope
	if len(m.docs) > 0 {
		docEnv = &docEnvelope{
			Cache:     make(map[string]docIndexRecord, len(m.docs)),
			Timestamp: ts,
			Version:   docSchemaVersion,
		}
		for k, v := range m.docs {
			docEnv.Cache[k] = toRecord(v)
		}
	}
	nRepos, nDocs := len(m.repos), len(m.docs)
	m.mu.RUnlock()

	err := m.withLock(func() error {
		if repoEnv != nil {
			if err := writeJSONAtomic(m.repoPath(), repoEnv); err != nil {
				return err
			}
		}
		if docEnv != nil {
			if err := writeJSONAtomic(m.docPath(), docEnv); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Info("cache saved", slog.Int("repositories", nRepos), slog.Int("doc_indices", nDocs))
	return nil
}

// Clear empties both caches and removes their files.
func (m *Manager) Clear() error {
	m.mu.Lock()
	m.repos = nil
	m.repoTime = time.Time{}
	m.docs = map[string]*model.DocIndex{}
	m.docTime = time.Time{}
	m.errCount = 0
	m.updated = nil
	m.mu.Unlock()

	err := m.withLock(func() error {
		for _, p := range []string{m.repoPath(), m.docPath()} {
			if err := os.Remove(p); err != nil && !stderrors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to remove %s: %w", p, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.logger.Info("cache cleared", slog.String("dir", m.dir))
	return nil
}

// Stats summarizes the cache contents.
func (m *Manager) Stats() model.CacheStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	files := 0
	for _, idx := range m.docs {
		files += len(idx.Files)
	}
	s := model.CacheStats{
		ReposCached:  len(m.repos),
		DocsCached:   files,
		ReposIndexed: len(m.docs),
		Errors:       m.errCount,
	}
	if m.updated != nil {
		ts := *m.updated
		s.LastUpdated = &ts
	}
	return s
}

// withLock runs fn holding both the in-process write mutex and the
// cross-process directory lock.
func (m *Manager) withLock(fn func() error) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := m.lock.Lock(m.lockTimeout); err != nil {
		return err
	}
	defer func() {
		if err := m.lock.Unlock(); err != nil {
			m.logger.Warn("failed to release cache lock", slog.String("error", err.Error()))
		}
	}()

	if err := fn(); err != nil {
		return errors.CacheError("failed to write cache", err).WithDetail("dir", m.dir)
	}
	return nil
}
