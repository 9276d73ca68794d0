package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/reposcout/internal/errors"
	"github.com/Aman-CERP/reposcout/internal/indexer"
	"github.com/Aman-CERP/reposcout/internal/model"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeSource struct {
	repos []model.Repository
	err   error
	calls int
}

func (f *fakeSource) AllRepositories(context.Context) ([]model.Repository, error) {
	f.calls++
	return f.repos, f.err
}

type memStore struct {
	mu       sync.Mutex
	repos    []model.Repository
	cached   bool
	docs     map[string]*model.DocIndex
	docValid bool
	setCalls int
}

func (m *memStore) Repositories() ([]model.Repository, bool) {
	return m.repos, m.cached
}

func (m *memStore) SetRepositories(repos []model.Repository) error {
	m.setCalls++
	m.repos, m.cached = repos, true
	return nil
}

func (m *memStore) DocIndex(path string) (*model.DocIndex, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.docs[path]
	return idx, ok
}

func (m *memStore) IsDocCacheValid() bool { return m.docValid }

// fakeWarmer installs prepared indices for the repositories it is asked
// to warm.
type fakeWarmer struct {
	store   *memStore
	pending map[string]*model.DocIndex
	warmed  []string
}

func (w *fakeWarmer) IndexRepositories(_ context.Context, repos []model.Repository, _ indexer.ProgressFunc) indexer.Stats {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	for _, r := range repos {
		w.warmed = append(w.warmed, r.Path)
		if idx, ok := w.pending[r.Path]; ok {
			if w.store.docs == nil {
				w.store.docs = map[string]*model.DocIndex{}
			}
			w.store.docs[r.Path] = idx
		}
	}
	w.store.docValid = true
	return indexer.Stats{Processed: len(repos)}
}

func repo(id int64, name, path, desc string) model.Repository {
	return model.Repository{ID: id, Name: name, Path: path, Description: desc, DefaultBranch: "main"}
}

func fixtureRepos() []model.Repository {
	return []model.Repository{
		repo(1, "web-frontend", "apps/web-frontend", "Customer facing web application"),
		repo(2, "machine-learning-toolkit", "ml/machine-learning-toolkit", "A toolkit for machine learning experiments"),
		repo(3, "data-pipeline", "data/data-pipeline", "Machine data ingestion"),
		repo(4, "auth-service", "platform/auth-service", "Login and session handling"),
		repo(5, "docs", "platform/docs", "Team handbook"),
	}
}

func readmeIndex(path, content string) *model.DocIndex {
	return &model.DocIndex{
		RepoPath: path,
		DocType:  model.DocReadme,
		Files: map[string]model.DocFile{
			"README.md": {Path: "README.md", Name: "README.md", DocType: model.DocReadme, Content: content, Ref: "main"},
		},
		BestFile: "README.md",
	}
}

func newEngine(src *fakeSource, store *memStore, warmer Warmer) *Engine {
	return New(src, store, warmer, Options{Logger: discard})
}

func TestSearch_RanksMetadataMatches(t *testing.T) {
	// Given: cached repositories and no documentation
	store := &memStore{repos: fixtureRepos(), cached: true, docValid: true}
	e := newEngine(&fakeSource{}, store, nil)

	// When: searching for the toolkit
	results, err := e.Search(context.Background(), "machine learning toolkit", 10, true)
	require.NoError(t, err)

	// Then: the toolkit ranks first with every keyword matched
	require.NotEmpty(t, results)
	top := results[0]
	assert.Equal(t, "machine-learning-toolkit", top.Repository.Name)
	assert.Subset(t, top.MatchedKeywords, []string{"machine", "learning", "toolkit"})
	// name 3x3 + description 3x2 + path 3x1
	assert.Equal(t, 18.0, top.Score)

	// And: the partial match trails
	require.Len(t, results, 2)
	assert.Equal(t, "data-pipeline", results[1].Repository.Name)
}

func TestSearch_ExactFieldMatchBonus(t *testing.T) {
	store := &memStore{repos: fixtureRepos(), cached: true, docValid: true}
	e := newEngine(&fakeSource{}, store, nil)

	results, err := e.Search(context.Background(), "docs", 10, false)
	require.NoError(t, err)

	require.Len(t, results, 1)
	// name exact 10x3 + path substring 1x1
	assert.Equal(t, 31.0, results[0].Score)
	assert.Equal(t, []string{"docs", "docs(exact)"}, results[0].MatchedKeywords)
}

func TestSearchRepositories_NoMatches(t *testing.T) {
	store := &memStore{repos: fixtureRepos(), cached: true, docValid: true}
	e := newEngine(&fakeSource{}, store, nil)

	resp := e.SearchRepositories(context.Background(), "xyznonexistent", 10, true)

	assert.True(t, resp.Success)
	assert.Equal(t, 0, resp.Count)
	assert.Equal(t, 0, resp.TotalMatched)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"success": true,
		"repositories": [],
		"query": "xyznonexistent",
		"count": 0,
		"total_matched": 0,
		"method": "metadata+content"
	}`, string(raw))
}

func TestSearch_BlankQuery(t *testing.T) {
	src := &fakeSource{repos: fixtureRepos()}
	e := newEngine(src, &memStore{}, nil)

	for _, q := range []string{"", "   \t"} {
		results, err := e.Search(context.Background(), q, 10, true)
		require.NoError(t, err)
		assert.Empty(t, results)
		assert.NotNil(t, results)
	}
	assert.Zero(t, src.calls)
}

func TestSearch_CacheMissFetchesAndStores(t *testing.T) {
	src := &fakeSource{repos: fixtureRepos()}
	store := &memStore{docValid: true}
	e := newEngine(src, store, nil)

	results, err := e.Search(context.Background(), "auth", 10, false)
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, 1, store.setCalls)
	require.Len(t, results, 1)
	assert.Equal(t, "auth-service", results[0].Repository.Name)
}

func TestSearch_EmptyListingIsNotCached(t *testing.T) {
	// Given: an upstream outage that yields an empty listing
	src := &fakeSource{}
	store := &memStore{docValid: true}
	e := newEngine(src, store, nil)

	// When: searching during the outage
	results, err := e.Search(context.Background(), "auth", 10, false)
	require.NoError(t, err)
	assert.Empty(t, results)

	// Then: nothing was cached, and the next search refetches
	assert.Equal(t, 0, store.setCalls)
	src.repos = fixtureRepos()
	results, err = e.Search(context.Background(), "auth", 10, false)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, 1, store.setCalls)
	require.Len(t, results, 1)
}

func TestSearch_EmptyCachedListIsAMiss(t *testing.T) {
	src := &fakeSource{repos: fixtureRepos()}
	store := &memStore{repos: []model.Repository{}, cached: true, docValid: true}
	e := newEngine(src, store, nil)

	results, err := e.Search(context.Background(), "auth", 10, false)
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	require.Len(t, results, 1)
	assert.Equal(t, "auth-service", results[0].Repository.Name)
}

func TestSearch_SourceFailureDegradesToEmpty(t *testing.T) {
	src := &fakeSource{err: errors.NetworkError("connection refused", nil)}
	e := newEngine(src, &memStore{}, nil)

	resp := e.SearchRepositories(context.Background(), "auth", 10, false)

	assert.True(t, resp.Success)
	assert.Empty(t, resp.Repositories)
}

func TestSearchRepositories_SecurityErrorFails(t *testing.T) {
	// Given: the source refuses a request as a security violation
	src := &fakeSource{err: errors.SecurityError(errors.ErrCodeForbiddenURL, "URL outside base")}
	e := newEngine(src, &memStore{}, nil)

	// When
	resp := e.SearchRepositories(context.Background(), "auth", 10, false)

	// Then: the failure shape carries the error and the query
	assert.False(t, resp.Success)
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, false, decoded["success"])
	assert.Equal(t, "auth", decoded["query"])
	assert.Contains(t, decoded["error"], "URL outside base")
	assert.NotContains(t, decoded, "repositories")
}

func TestSearch_TopKClamped(t *testing.T) {
	var repos []model.Repository
	for i := range 60 {
		repos = append(repos, repo(int64(i+1), fmt.Sprintf("svc-%02d", i), fmt.Sprintf("g/svc-%02d", i), ""))
	}
	store := &memStore{repos: repos, cached: true, docValid: true}
	e := newEngine(&fakeSource{}, store, nil)

	results, err := e.Search(context.Background(), "svc", 500, false)
	require.NoError(t, err)
	assert.Len(t, results, DefaultMaxTopK)

	results, err = e.Search(context.Background(), "svc", 0, false)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestClampTopK(t *testing.T) {
	assert.Equal(t, 1, ClampTopK(-3, 50))
	assert.Equal(t, 1, ClampTopK(0, 50))
	assert.Equal(t, 10, ClampTopK(10, 50))
	assert.Equal(t, 50, ClampTopK(51, 50))
}

func TestSearch_ContentScoringAndSnippets(t *testing.T) {
	// Given: auth-service has a README mentioning auth twice
	store := &memStore{
		repos:    fixtureRepos(),
		cached:   true,
		docValid: true,
		docs: map[string]*model.DocIndex{
			"platform/auth-service": readmeIndex("platform/auth-service",
				"This service handles authentication tokens.\nSee   auth module."),
		},
	}
	e := newEngine(&fakeSource{}, store, nil)

	// When
	results, err := e.Search(context.Background(), "auth", 10, false)
	require.NoError(t, err)

	// Then: metadata 3+1 plus one word match at README priority
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, 4.0+float64(WordMatchBonus*model.DocReadme.Priority()), r.Score)
	assert.Contains(t, r.MatchedKeywords, "README:auth(exact)")
	assert.Equal(t, []model.DocType{model.DocReadme}, r.DocTypesFound)
	assert.Equal(t, []string{"README.md"}, r.DocFiles)
	require.Len(t, r.DocSnippets, 2)
	assert.Equal(t, "...This service handles authentication tokens....", r.DocSnippets[0].Snippet)
	assert.Equal(t, "...See auth module....", r.DocSnippets[1].Snippet)
}

func TestSearch_SubstringContentMatch(t *testing.T) {
	store := &memStore{
		repos:    fixtureRepos(),
		cached:   true,
		docValid: true,
		docs: map[string]*model.DocIndex{
			"platform/auth-service": readmeIndex("platform/auth-service", "Handles authentication."),
		},
	}
	e := newEngine(&fakeSource{}, store, nil)

	results, err := e.Search(context.Background(), "auth", 10, false)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, 4.0+float64(model.DocReadme.Priority()), results[0].Score)
	assert.Contains(t, results[0].MatchedKeywords, "README:auth")
}

func TestSearch_NonASCIIWordMatch(t *testing.T) {
	// Given: a README where the CJK keyword stands alone between spaces
	store := &memStore{
		repos:    []model.Repository{repo(1, "etl", "data/etl", "数据 toolkit")},
		cached:   true,
		docValid: true,
		docs: map[string]*model.DocIndex{
			"data/etl": readmeIndex("data/etl", "本项目 数据 处理 工具"),
		},
	}
	e := newEngine(&fakeSource{}, store, nil)

	// When
	results, err := e.Search(context.Background(), "数据", 10, false)
	require.NoError(t, err)

	// Then: description substring 2 plus a whole-word README match
	require.Len(t, results, 1)
	assert.Equal(t, 2.0+float64(WordMatchBonus*model.DocReadme.Priority()), results[0].Score)
	assert.Contains(t, results[0].MatchedKeywords, "README:数据(exact)")
}

func TestPatternCache_WordBoundaries(t *testing.T) {
	p := newPatternCache()

	tests := []struct {
		kw, text string
		want     bool
	}{
		{"auth", "see auth module", true},
		{"auth", "authentication", false},
		{"数据", "本项目 数据 处理", true},
		{"数据", "本项目数据处理", false},
		{"café", "le café noir", true},
		{"café", "cafés", false},
		{"_id", "field _id set", true},
	}
	for _, tt := range tests {
		t.Run(tt.kw+"/"+tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, p.word(tt.kw).MatchString(tt.text))
		})
	}
}

func TestSearch_DocumentationReordersCandidates(t *testing.T) {
	// Given: two repositories with equal metadata scores, only the second
	// documented
	repos := []model.Repository{
		repo(1, "billing-api", "fin/billing-api", ""),
		repo(2, "billing-worker", "fin/billing-worker", ""),
	}
	store := &memStore{
		repos: repos, cached: true, docValid: true,
		docs: map[string]*model.DocIndex{
			"fin/billing-worker": readmeIndex("fin/billing-worker", "The billing worker drains invoices."),
		},
	}
	e := newEngine(&fakeSource{}, store, nil)

	results, err := e.Search(context.Background(), "billing", 10, false)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "billing-worker", results[0].Repository.Name)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearch_WarmsStaleDocumentation(t *testing.T) {
	// Given: a stale documentation cache and a warmer with a README ready
	store := &memStore{repos: fixtureRepos(), cached: true}
	warmer := &fakeWarmer{
		store: store,
		pending: map[string]*model.DocIndex{
			"platform/auth-service": readmeIndex("platform/auth-service", "auth flows"),
		},
	}
	e := newEngine(&fakeSource{}, store, warmer)

	// When
	results, err := e.Search(context.Background(), "auth", 10, true)
	require.NoError(t, err)

	// Then: the candidate was warmed and its documentation scored
	assert.Equal(t, []string{"platform/auth-service"}, warmer.warmed)
	require.Len(t, results, 1)
	assert.Equal(t, []model.DocType{model.DocReadme}, results[0].DocTypesFound)
}

func TestSearch_NoWarmWhenDisabledOrValid(t *testing.T) {
	store := &memStore{repos: fixtureRepos(), cached: true}
	warmer := &fakeWarmer{store: store}
	e := newEngine(&fakeSource{}, store, warmer)

	_, err := e.Search(context.Background(), "auth", 10, false)
	require.NoError(t, err)
	assert.Empty(t, warmer.warmed)

	store.docValid = true
	_, err = e.Search(context.Background(), "auth", 10, true)
	require.NoError(t, err)
	assert.Empty(t, warmer.warmed)
}

func TestSearch_SnippetAndFileLimits(t *testing.T) {
	files := map[string]model.DocFile{}
	for i := range 5 {
		p := fmt.Sprintf("docs/%d/README.md", i)
		files[p] = model.DocFile{Path: p, Name: "README.md", DocType: model.DocReadme, Content: "deploy\ndeploy\ndeploy"}
	}
	store := &memStore{
		repos: []model.Repository{repo(1, "deploy-tools", "ops/deploy-tools", "")}, cached: true, docValid: true,
		docs: map[string]*model.DocIndex{
			"ops/deploy-tools": {RepoPath: "ops/deploy-tools", DocType: model.DocReadme, Files: files},
		},
	}
	e := newEngine(&fakeSource{}, store, nil)

	results, err := e.Search(context.Background(), "deploy", 10, false)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Len(t, results[0].DocSnippets, 5)
	assert.Equal(t, []string{"docs/0/README.md", "docs/1/README.md", "docs/2/README.md"}, results[0].DocFiles)
}

func TestSearch_AddingKeywordNeverLowersScore(t *testing.T) {
	store := &memStore{repos: fixtureRepos(), cached: true, docValid: true}
	e := newEngine(&fakeSource{}, store, nil)

	base, err := e.Search(context.Background(), "machine", 10, false)
	require.NoError(t, err)
	more, err := e.Search(context.Background(), "machine learning", 10, false)
	require.NoError(t, err)

	scores := map[string]float64{}
	for _, r := range more {
		scores[r.Repository.Path] = r.Score
	}
	for _, r := range base {
		assert.GreaterOrEqual(t, scores[r.Repository.Path], r.Score, r.Repository.Path)
	}
}
