package model

import "encoding/json"

// SearchResult is one ranked repository. Results are never persisted.
type SearchResult struct {
	Repository      Repository
	Score           float64
	MatchedKeywords []string
	DocSnippets     []DocSnippet
	DocTypesFound   []DocType
	DocFiles        []string
}

type snippetView struct {
	File    string `json:"file"`
	Snippet string `json:"snippet"`
	Keyword string `json:"keyword"`
	DocType string `json:"doc_type"`
}

// ResultView is the serialized form of a SearchResult.
type ResultView struct {
	ID              int64         `json:"id"`
	Name            string        `json:"name"`
	PathNamespace   string        `json:"path_namespace"`
	Description     string        `json:"description"`
	WebURL          string        `json:"web_url"`
	DefaultBranch   string        `json:"default_branch"`
	Score           float64       `json:"score"`
	MatchedKeywords []string      `json:"matched_keywords"`
	DocSnippets     []snippetView `json:"doc_snippets"`
	DocTypesFound   []string      `json:"doc_types_found"`
	DocFiles        []string      `json:"doc_files"`
}

// View flattens the result for tool output.
func (r SearchResult) View() ResultView {
	v := ResultView{
		ID:              r.Repository.ID,
		Name:            r.Repository.Name,
		PathNamespace:   r.Repository.Path,
		Description:     r.Repository.Description,
		WebURL:          r.Repository.URL,
		DefaultBranch:   r.Repository.DefaultBranch,
		Score:           r.Score,
		MatchedKeywords: nonNil(r.MatchedKeywords),
		DocSnippets:     make([]snippetView, 0, len(r.DocSnippets)),
		DocTypesFound:   make([]string, 0, len(r.DocTypesFound)),
		DocFiles:        nonNil(r.DocFiles),
	}
	for _, s := range r.DocSnippets {
		v.DocSnippets = append(v.DocSnippets, snippetView{
			File: s.File, Snippet: s.Snippet, Keyword: s.Keyword, DocType: s.DocType.String(),
		})
	}
	for _, t := range r.DocTypesFound {
		v.DocTypesFound = append(v.DocTypesFound, t.String())
	}
	return v
}

func (r SearchResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.View())
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
