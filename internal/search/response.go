package search

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Aman-CERP/reposcout/internal/model"
)

// Response is the envelope returned to tool callers.
type Response struct {
	Success      bool
	Query        string
	Repositories []model.SearchResult
	Count        int
	TotalMatched int
	Method       string
	Error        string
}

type successView struct {
	Success      bool                 `json:"success"`
	Repositories []model.SearchResult `json:"repositories"`
	Query        string               `json:"query"`
	Count        int                  `json:"count"`
	TotalMatched int                  `json:"total_matched"`
	Method       string               `json:"method"`
}

type failureView struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Query   string `json:"query"`
}

// MarshalJSON emits only the fields relevant to the outcome.
func (r Response) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(failureView{Error: r.Error, Query: r.Query})
	}
	repos := r.Repositories
	if repos == nil {
		repos = []model.SearchResult{}
	}
	return json.Marshal(successView{
		Success:      true,
		Repositories: repos,
		Query:        r.Query,
		Count:        r.Count,
		TotalMatched: r.TotalMatched,
		Method:       r.Method,
	})
}

// SearchRepositories runs Search and wraps the outcome. Errors never
// escape; they become an unsuccessful Response.
func (e *Engine) SearchRepositories(ctx context.Context, query string, topK int, warmCache bool) Response {
	results, total, err := e.search(ctx, query, topK, warmCache)
	if err != nil {
		e.logger.Error("search failed", slog.String("query", query), slog.String("error", err.Error()))
		return Response{Query: query, Error: err.Error()}
	}
	return Response{
		Success:      true,
		Query:        query,
		Repositories: results,
		Count:        len(results),
		TotalMatched: total,
		Method:       Method,
	}
}

// Succeeded reports whether the search ran.
func (r Response) Succeeded() bool { return r.Success }
