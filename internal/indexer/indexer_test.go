package indexer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/reposcout/internal/cache"
	"github.com/Aman-CERP/reposcout/internal/clock"
	"github.com/Aman-CERP/reposcout/internal/errors"
	"github.com/Aman-CERP/reposcout/internal/gitlab"
	"github.com/Aman-CERP/reposcout/internal/model"
)

// MockSource serves trees and files from maps keyed by project.
type MockSource struct {
	mu      sync.Mutex
	Trees   map[string][]gitlab.TreeEntry
	Files   map[string]map[string]string
	TreeErr map[string]error
	fetches map[string]int
	refs    []string
}

var _ Source = (*MockSource)(nil)

func (m *MockSource) ListTree(_ context.Context, project string, _ bool) ([]gitlab.TreeEntry, error) {
	if err := m.TreeErr[project]; err != nil {
		return nil, err
	}
	return m.Trees[project], nil
}

func (m *MockSource) FileContent(_ context.Context, project, file, ref string) (*string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetches == nil {
		m.fetches = map[string]int{}
	}
	m.fetches[project+"/"+file]++
	m.refs = append(m.refs, ref)
	c, ok := m.Files[project][file]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *MockSource) Fetches(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches[key]
}

func blob(p string) gitlab.TreeEntry {
	name := p
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			name = p[i+1:]
			break
		}
	}
	return gitlab.TreeEntry{ID: "sha-" + p, Name: name, Path: p, Type: "blob"}
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newFixture(t *testing.T, src *MockSource, workers int) (*Indexer, *cache.Manager, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	store, err := cache.New(cache.Options{Dir: t.TempDir(), DocTTL: 24 * time.Hour, Clock: clk, Logger: discard})
	require.NoError(t, err)
	ix, err := New(src, store, Options{Workers: workers, Logger: discard})
	require.NoError(t, err)
	return ix, store, clk
}

func repo(path string) model.Repository {
	return model.Repository{Name: path, Path: path, DefaultBranch: "develop"}
}

func TestIndexRepository_PriorityExclusivity(t *testing.T) {
	// Given: a repository with README, CHANGELOG and an entry point
	src := &MockSource{
		Trees: map[string][]gitlab.TreeEntry{"g/p": {
			blob("CHANGELOG.md"),
			blob("README.md"),
			blob("docs/README.rst"),
			blob("package.json"),
			{Name: "docs", Path: "docs", Type: "tree"},
		}},
		Files: map[string]map[string]string{"g/p": {
			"README.md":       "# Project",
			"docs/README.rst": "Docs",
			"CHANGELOG.md":    "v1",
			"package.json":    "{}",
		}},
	}
	ix, _, _ := newFixture(t, src, 1)

	// When: indexing
	idx, err := ix.IndexRepository(context.Background(), repo("g/p"), false)

	// Then: only README files are kept and CHANGELOG is never fetched
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, model.DocReadme, idx.DocType)
	assert.Len(t, idx.Files, 2)
	assert.Equal(t, "README.md", idx.BestFile)
	for _, f := range idx.Files {
		assert.Equal(t, model.DocReadme, f.DocType)
		assert.Equal(t, "develop", f.Ref)
	}
	assert.Zero(t, src.Fetches("g/p/CHANGELOG.md"))
	assert.Equal(t, len("# Project"), idx.Files["README.md"].Size)
}

func TestIndexRepository_AgentsBeatsClaudeOnTie(t *testing.T) {
	src := &MockSource{
		Trees: map[string][]gitlab.TreeEntry{"g/p": {blob("CLAUDE.md"), blob("AGENTS.md")}},
		Files: map[string]map[string]string{"g/p": {"CLAUDE.md": "c", "AGENTS.md": "a"}},
	}
	ix, _, _ := newFixture(t, src, 1)

	idx, err := ix.IndexRepository(context.Background(), repo("g/p"), false)

	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, model.DocAgents, idx.DocType)
	assert.Equal(t, []string{"AGENTS.md"}, keys(idx.Files))
}

func TestIndexRepository_SensitivePathsNeverFetched(t *testing.T) {
	src := &MockSource{
		Trees: map[string][]gitlab.TreeEntry{"g/p": {
			blob("secrets/README.md"),
			blob(".env/README"),
			blob("CHANGELOG.md"),
		}},
		Files: map[string]map[string]string{"g/p": {
			"secrets/README.md": "leak",
			".env/README":       "leak",
			"CHANGELOG.md":      "v2",
		}},
	}
	ix, _, _ := newFixture(t, src, 1)

	idx, err := ix.IndexRepository(context.Background(), repo("g/p"), false)

	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, model.DocChangelog, idx.DocType)
	assert.Zero(t, src.Fetches("g/p/secrets/README.md"))
	assert.Zero(t, src.Fetches("g/p/.env/README"))
}

func TestIndexRepository_NoDocsReturnsNil(t *testing.T) {
	src := &MockSource{
		Trees: map[string][]gitlab.TreeEntry{
			"g/empty":   {blob("main.go")},
			"g/missing": {blob("README.md")},
		},
		Files: map[string]map[string]string{},
	}
	ix, store, _ := newFixture(t, src, 1)

	idx, err := ix.IndexRepository(context.Background(), repo("g/empty"), false)
	require.NoError(t, err)
	assert.Nil(t, idx)

	// All fetches fail: nothing is stored.
	idx, err = ix.IndexRepository(context.Background(), repo("g/missing"), false)
	require.NoError(t, err)
	assert.Nil(t, idx)
	_, ok := store.DocIndex("g/missing")
	assert.False(t, ok)
}

func TestIndexRepository_CachedAndRefresh(t *testing.T) {
	src := &MockSource{
		Trees: map[string][]gitlab.TreeEntry{"g/p": {blob("README.md")}},
		Files: map[string]map[string]string{"g/p": {"README.md": "v1"}},
	}
	ix, _, clk := newFixture(t, src, 1)
	ctx := context.Background()

	_, err := ix.IndexRepository(ctx, repo("g/p"), false)
	require.NoError(t, err)
	require.Equal(t, 1, src.Fetches("g/p/README.md"))

	// Cached index is returned as-is.
	_, err = ix.IndexRepository(ctx, repo("g/p"), false)
	require.NoError(t, err)
	assert.Equal(t, 1, src.Fetches("g/p/README.md"))

	// Forced refresh reuses files still within the TTL.
	_, err = ix.IndexRepository(ctx, repo("g/p"), true)
	require.NoError(t, err)
	assert.Equal(t, 1, src.Fetches("g/p/README.md"))

	// Once stale, the file is fetched again.
	clk.Advance(25 * time.Hour)
	src.Files["g/p"]["README.md"] = "v2"
	idx, err := ix.IndexRepository(ctx, repo("g/p"), true)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Fetches("g/p/README.md"))
	assert.Equal(t, "v2", idx.Files["README.md"].Content)
}

func TestIndexRepository_SecurityErrorPropagates(t *testing.T) {
	src := &MockSource{
		TreeErr: map[string]error{"g/p": errors.SecurityError(errors.ErrCodeForbiddenParam, "blocked")},
	}
	ix, _, _ := newFixture(t, src, 1)

	_, err := ix.IndexRepository(context.Background(), repo("g/p"), false)

	require.Error(t, err)
	assert.True(t, errors.IsSecurity(err))
}

func TestIndexRepositories_StatsAndProgress(t *testing.T) {
	// Given: 25 repositories, every fifth without docs and one failing
	src := &MockSource{
		Trees:   map[string][]gitlab.TreeEntry{},
		Files:   map[string]map[string]string{},
		TreeErr: map[string]error{"g/r24": errors.SecurityError(errors.ErrCodeForbiddenParam, "blocked")},
	}
	var repos []model.Repository
	for i := 0; i < 25; i++ {
		p := fmt.Sprintf("g/r%d", i)
		repos = append(repos, repo(p))
		if i%5 == 0 {
			src.Trees[p] = []gitlab.TreeEntry{blob("main.c")}
			continue
		}
		src.Trees[p] = []gitlab.TreeEntry{blob("README.md"), blob("docs/README.md")}
		src.Files[p] = map[string]string{"README.md": "x", "docs/README.md": "y"}
	}
	ix, store, _ := newFixture(t, src, 4)

	var mu sync.Mutex
	var ticks [][2]int
	progress := func(cur, total int) {
		mu.Lock()
		ticks = append(ticks, [2]int{cur, total})
		mu.Unlock()
	}

	// When: batch indexing with four workers
	stats := ix.IndexRepositories(context.Background(), repos, progress)

	// Then
	assert.Equal(t, Stats{Processed: 24, Indexed: 19, Skipped: 5, Errors: 1, TotalFiles: 38}, stats)
	assert.Equal(t, [][2]int{{10, 25}, {20, 25}}, ticks)
	assert.Len(t, store.AllDocIndices(), 19)
	assert.Equal(t, 1, store.Stats().Errors)
}

func TestIndexRepositories_SavesOnce(t *testing.T) {
	src := &MockSource{
		Trees: map[string][]gitlab.TreeEntry{"g/p": {blob("README.md")}},
		Files: map[string]map[string]string{"g/p": {"README.md": "x"}},
	}
	store := &MockStore{now: time.Unix(1000, 0)}
	ix, err := New(src, store, Options{Logger: discard})
	require.NoError(t, err)

	ix.IndexRepositories(context.Background(), []model.Repository{repo("g/p")}, nil)

	assert.Equal(t, int32(1), store.saves.Load())
	assert.Equal(t, int32(1), store.sets.Load())
}

func TestIndexRepositories_Cancelled(t *testing.T) {
	src := &MockSource{Trees: map[string][]gitlab.TreeEntry{}, Files: map[string]map[string]string{}}
	ix, _, _ := newFixture(t, src, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats := ix.IndexRepositories(ctx, []model.Repository{repo("a"), repo("b")}, nil)

	assert.Zero(t, stats.Indexed)
}

func TestDocumentationStats(t *testing.T) {
	src := &MockSource{
		Trees: map[string][]gitlab.TreeEntry{
			"g/a": {blob("README.md")},
			"g/b": {blob("CHANGES.md"), blob("HISTORY.txt")},
		},
		Files: map[string]map[string]string{
			"g/a": {"README.md": "a"},
			"g/b": {"CHANGES.md": "b", "HISTORY.txt": "c"},
		},
	}
	ix, _, _ := newFixture(t, src, 2)
	ix.IndexRepositories(context.Background(), []model.Repository{repo("g/a"), repo("g/b")}, nil)

	s := ix.DocumentationStats()

	assert.Equal(t, 2, s.RepositoriesIndexed)
	assert.Equal(t, 3, s.TotalFiles)
	assert.Equal(t, map[string]int{"README": 1, "CHANGELOG": 1}, s.DocTypes)
	assert.False(t, s.CacheValid)
}

// MockStore counts writes; reads always miss.
type MockStore struct {
	now   time.Time
	saves atomic.Int32
	sets  atomic.Int32
}

var (
	_ Store = (*MockStore)(nil)
	_ Store = (*cache.Manager)(nil)
)

func (s *MockStore) DocIndex(string) (*model.DocIndex, bool) { return nil, false }

func (s *MockStore) SetDocIndex(string, *model.DocIndex) { s.sets.Add(1) }

func (s *MockStore) AllDocIndices() map[string]*model.DocIndex { return nil }

func (s *MockStore) IsDocCacheValid() bool { return false }

func (s *MockStore) DocTTL() time.Duration { return time.Hour }

func (s *MockStore) Now() time.Time { return s.now }

func (s *MockStore) Save() error {
	s.saves.Add(1)
	return nil
}

func (s *MockStore) RecordError() {}

func keys(m map[string]model.DocFile) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
