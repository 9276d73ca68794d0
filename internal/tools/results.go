package tools

import (
	"encoding/json"

	"github.com/Aman-CERP/reposcout/internal/gitlab"
	"github.com/Aman-CERP/reposcout/internal/model"
)

// failure is the shape of every unsuccessful result.
type failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func marshalOutcome(success bool, errMsg string, payload any) ([]byte, error) {
	if !success {
		return json.Marshal(failure{Error: errMsg})
	}
	return json.Marshal(payload)
}

// DirectoryResult is the outcome of ListDirectory.
type DirectoryResult struct {
	Success     bool           `json:"success"`
	Error       string         `json:"-"`
	Project     string         `json:"project"`
	Path        string         `json:"path"`
	Ref         string         `json:"ref"`
	Files       []gitlab.Entry `json:"files"`
	Directories []gitlab.Entry `json:"directories"`
}

func (r DirectoryResult) MarshalJSON() ([]byte, error) {
	type plain DirectoryResult
	return marshalOutcome(r.Success, r.Error, plain(r))
}

// FileResult is the outcome of ReadFile.
type FileResult struct {
	Success bool   `json:"success"`
	Error   string `json:"-"`
	Content string `json:"content"`
	Size    int    `json:"size"`
	Path    string `json:"path"`
}

func (r FileResult) MarshalJSON() ([]byte, error) {
	type plain FileResult
	return marshalOutcome(r.Success, r.Error, plain(r))
}

// RepoSummary is the listing form of a repository.
type RepoSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Stars       int    `json:"stars"`
	Forks       int    `json:"forks"`
	Visibility  string `json:"visibility"`
}

func summarize(r model.Repository) RepoSummary {
	return RepoSummary{
		ID:          r.ID,
		Name:        r.Name,
		Path:        r.Path,
		Description: r.Description,
		URL:         r.URL,
		Stars:       r.Stars,
		Forks:       r.Forks,
		Visibility:  r.Visibility,
	}
}

// RepoListResult is the outcome of ListRepos.
type RepoListResult struct {
	Success      bool          `json:"success"`
	Error        string        `json:"-"`
	Repositories []RepoSummary `json:"repositories"`
	Count        int           `json:"count"`
	CacheUsed    bool          `json:"cache_used"`
}

func (r RepoListResult) MarshalJSON() ([]byte, error) {
	type plain RepoListResult
	if r.Repositories == nil {
		r.Repositories = []RepoSummary{}
	}
	return marshalOutcome(r.Success, r.Error, plain(r))
}

// RepoInfoResult is the outcome of GetRepoInfo.
type RepoInfoResult struct {
	Success       bool   `json:"success"`
	Error         string `json:"-"`
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Path          string `json:"path"`
	Description   string `json:"description"`
	URL           string `json:"url"`
	Stars         int    `json:"stars"`
	Forks         int    `json:"forks"`
	Issues        int    `json:"issues"`
	Visibility    string `json:"visibility"`
	DefaultBranch string `json:"default_branch"`
}

func (r RepoInfoResult) MarshalJSON() ([]byte, error) {
	type plain RepoInfoResult
	return marshalOutcome(r.Success, r.Error, plain(r))
}

// ClearResult is the outcome of ClearCache.
type ClearResult struct {
	Success bool   `json:"success"`
	Error   string `json:"-"`
	Message string `json:"message"`
}

func (r ClearResult) MarshalJSON() ([]byte, error) {
	type plain ClearResult
	return marshalOutcome(r.Success, r.Error, plain(r))
}

func (r DirectoryResult) Succeeded() bool { return r.Success }
func (r FileResult) Succeeded() bool      { return r.Success }
func (r RepoListResult) Succeeded() bool  { return r.Success }
func (r RepoInfoResult) Succeeded() bool  { return r.Success }
func (r ClearResult) Succeeded() bool     { return r.Success }
