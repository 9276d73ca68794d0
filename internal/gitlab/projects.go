package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/Aman-CERP/reposcout/internal/errors"
	"github.com/Aman-CERP/reposcout/internal/model"
)

// project is the subset of the projects API payload we keep.
type project struct {
	ID                int64   `json:"id"`
	Name              string  `json:"name"`
	PathWithNamespace string  `json:"path_with_namespace"`
	Description       *string `json:"description"`
	WebURL            string  `json:"web_url"`
	StarCount         int     `json:"star_count"`
	ForksCount        int     `json:"forks_count"`
	OpenIssuesCount   int     `json:"open_issues_count"`
	Visibility        string  `json:"visibility"`
	DefaultBranch     string  `json:"default_branch"`
	CreatedAt         *string `json:"created_at"`
	LastActivityAt    *string `json:"last_activity_at"`
}

func parseProject(raw json.RawMessage) (model.Repository, error) {
	var p project
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.Repository{}, errors.New(errors.ErrCodeParseFailed, "invalid project payload", err)
	}
	if p.ID == 0 || p.Name == "" || p.PathWithNamespace == "" {
		return model.Repository{}, errors.New(errors.ErrCodeParseFailed, "project payload missing id, name or path", nil)
	}
	r := model.Repository{
		ID:             p.ID,
		Name:           p.Name,
		Path:           p.PathWithNamespace,
		URL:            p.WebURL,
		Stars:          p.StarCount,
		Forks:          p.ForksCount,
		Issues:         p.OpenIssuesCount,
		Visibility:     p.Visibility,
		DefaultBranch:  p.DefaultBranch,
		CreatedAt:      p.CreatedAt,
		LastActivityAt: p.LastActivityAt,
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	r.ApplyDefaults()
	return r, nil
}

// AllRepositories pages through every project visible to the token.
// A failing page ends the walk and returns what was collected; only
// security errors are returned.
func (c *Client) AllRepositories(ctx context.Context) ([]model.Repository, error) {
	var repos []model.Repository
	page := 1

	for {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("per_page", strconv.Itoa(c.pageSize))
		params.Set("simple", "true")

		resp, err := c.get(ctx, "projects", params, maxJSONBody)
		if err != nil {
			if errors.IsSecurity(err) {
				return nil, err
			}
			c.logger.Error("failed to fetch repositories page",
				slog.Int("page", page), slog.String("error", err.Error()))
			break
		}

		var items []json.RawMessage
		if err := json.Unmarshal(resp.body, &items); err != nil {
			c.logger.Error("invalid repositories page",
				slog.Int("page", page), slog.String("error", err.Error()))
			break
		}
		if len(items) == 0 {
			break
		}

		for _, raw := range items {
			r, err := parseProject(raw)
			if err != nil {
				c.logger.Warn("skipping repository entry",
					slog.Int("page", page), slog.String("error", err.Error()))
				continue
			}
			repos = append(repos, r)
		}

		if page >= resp.totalPages(page) || len(items) < c.pageSize {
			break
		}
		page++

		if ctx.Err() != nil {
			break
		}
	}

	c.logger.Info(fmt.Sprintf("Fetched %d repositories", len(repos)), slog.Int("count", len(repos)))
	return repos, nil
}

// Repository fetches one project by its namespace path. A missing project
// returns nil with no error. Any other HTTP status, 429 included, is
// returned; an unreachable upstream is logged and also nil.
func (c *Client) Repository(ctx context.Context, path string) (*model.Repository, error) {
	resp, err := c.get(ctx, "projects/"+url.PathEscape(path), nil, maxJSONBody)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		switch code := errors.GetCode(err); {
		case errors.IsSecurity(err), code == errors.ErrCodeUpstreamStatus, code == errors.ErrCodeRateLimited:
			return nil, err
		}
		c.logger.Error("failed to fetch repository",
			slog.String("path", path), slog.String("error", err.Error()))
		return nil, nil
	}

	r, err := parseProject(resp.body)
	if err != nil {
		c.logger.Error("invalid repository payload",
			slog.String("path", path), slog.String("error", err.Error()))
		return nil, nil
	}
	return &r, nil
}

// Ping issues the cheapest authenticated read the API offers: one project
// from the projects listing. Any failure, including 401 and 403, is returned.
func (c *Client) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("per_page", "1")
	params.Set("simple", "true")
	_, err := c.get(ctx, "projects", params, maxJSONBody)
	return err
}
