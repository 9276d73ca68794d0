package model

import (
	"maps"
	"time"
)

// DocFile is a cached documentation file.
type DocFile struct {
	Path     string  `json:"path"`
	Name     string  `json:"name"`
	DocType  DocType `json:"doc_type"`
	Content  string  `json:"content"`
	Size     int     `json:"size"`
	CachedAt float64 `json:"cached_at"`
	Ref      string  `json:"ref"`
}

// IsFresh reports whether the file was cached less than ttl before now.
func (f DocFile) IsFresh(now time.Time, ttl time.Duration) bool {
	age := float64(now.UnixNano())/float64(time.Second) - f.CachedAt
	return age < ttl.Seconds()
}

// DocIndex records the highest-priority documentation found in one
// repository. Every file shares the index DocType.
type DocIndex struct {
	RepoPath string             `json:"repo_path"`
	DocType  DocType            `json:"doc_type"`
	Files    map[string]DocFile `json:"files"`
	BestFile string             `json:"best_file,omitempty"`
}

// Priority is the priority of the index DocType.
func (d *DocIndex) Priority() int {
	return d.DocType.Priority()
}

// Clone returns a copy whose Files map can be mutated independently.
func (d *DocIndex) Clone() *DocIndex {
	if d == nil {
		return nil
	}
	c := *d
	c.Files = maps.Clone(d.Files)
	if c.Files == nil {
		c.Files = map[string]DocFile{}
	}
	return &c
}

// DocSnippet is a short excerpt around a keyword hit.
type DocSnippet struct {
	File    string  `json:"file"`
	Snippet string  `json:"snippet"`
	Keyword string  `json:"keyword"`
	DocType DocType `json:"doc_type"`
}

// CacheStats summarizes cache contents.
type CacheStats struct {
	ReposCached  int      `json:"repos_cached"`
	DocsCached   int      `json:"docs_cached"`
	ReposIndexed int      `json:"repos_indexed"`
	Errors       int      `json:"errors"`
	LastUpdated  *float64 `json:"last_updated"`
}
