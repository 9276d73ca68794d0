package gitlab

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/Aman-CERP/reposcout/internal/errors"
)

// TreeEntry is one node from the repository tree API.
type TreeEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Path string `json:"path"`
	Mode string `json:"mode"`
}

// IsBlob reports whether the entry is a file.
func (e TreeEntry) IsBlob() bool { return e.Type == "blob" }

// Entry is a listed file or directory.
type Entry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
}

// Listing splits a directory into files and subdirectories.
type Listing struct {
	Files       []Entry `json:"files"`
	Directories []Entry `json:"directories"`
}

func emptyListing() Listing {
	return Listing{Files: []Entry{}, Directories: []Entry{}}
}

// ListDirectory lists one level of a repository tree. Failures other than
// security errors yield empty lists.
func (c *Client) ListDirectory(ctx context.Context, project, path, ref string) (Listing, error) {
	params := url.Values{}
	params.Set("path", path)
	params.Set("ref", ref)

	resp, err := c.get(ctx, "projects/"+url.PathEscape(project)+"/repository/tree", params, maxJSONBody)
	if err != nil {
		if errors.IsSecurity(err) {
			return emptyListing(), err
		}
		c.logger.Error("failed to list directory",
			slog.String("project", project), slog.String("path", path), slog.String("error", err.Error()))
		return emptyListing(), nil
	}

	var items []TreeEntry
	if err := json.Unmarshal(resp.body, &items); err != nil {
		c.logger.Error("invalid tree payload", slog.String("project", project), slog.String("error", err.Error()))
		return emptyListing(), nil
	}

	out := emptyListing()
	for _, it := range items {
		e := Entry{Name: it.Name, Path: it.Path, Type: it.Type}
		if it.Type == "tree" {
			out.Directories = append(out.Directories, e)
		} else {
			out.Files = append(out.Files, e)
		}
	}
	return out, nil
}

// FileContent returns the raw text of a file at ref, or nil when the file
// does not exist or cannot be fetched. Content larger than the configured
// limit is truncated to exactly that many bytes.
func (c *Client) FileContent(ctx context.Context, project, file, ref string) (*string, error) {
	params := url.Values{}
	params.Set("ref", ref)

	endpoint := "projects/" + url.PathEscape(project) + "/repository/files/" + url.PathEscape(file) + "/raw"
	resp, err := c.get(ctx, endpoint, params, c.maxFileSize)
	if err != nil {
		if errors.IsSecurity(err) {
			return nil, err
		}
		if !errors.IsNotFound(err) {
			c.logger.Error("failed to fetch file",
				slog.String("project", project), slog.String("file", file), slog.String("error", err.Error()))
		}
		return nil, nil
	}

	if resp.truncated {
		c.logger.Warn("file truncated",
			slog.String("project", project), slog.String("file", file), slog.Int("limit", c.maxFileSize))
	}
	body := resp.body
	if resp.truncated {
		body = trimPartialRune(body)
	}
	// Transcoded UTF-16 can grow past the cap.
	text := capText(decodeText(body), c.maxFileSize)
	return &text, nil
}

// ListTree returns the repository tree, following pagination up to the
// configured page cap. Failures are logged and yield what was collected.
func (c *Client) ListTree(ctx context.Context, project string, recursive bool) ([]TreeEntry, error) {
	var entries []TreeEntry
	endpoint := "projects/" + url.PathEscape(project) + "/repository/tree"

	for page := 1; page <= c.maxTreePages; page++ {
		params := url.Values{}
		params.Set("recursive", strconv.FormatBool(recursive))
		params.Set("per_page", strconv.Itoa(c.pageSize))
		params.Set("page", strconv.Itoa(page))

		resp, err := c.get(ctx, endpoint, params, maxJSONBody)
		if err != nil {
			if errors.IsSecurity(err) {
				return nil, err
			}
			c.logger.Error("failed to list tree",
				slog.String("project", project), slog.Int("page", page), slog.String("error", err.Error()))
			break
		}

		var items []TreeEntry
		if err := json.Unmarshal(resp.body, &items); err != nil {
			c.logger.Error("invalid tree payload", slog.String("project", project), slog.String("error", err.Error()))
			break
		}
		entries = append(entries, items...)

		if len(items) < c.pageSize || page >= resp.totalPages(page) {
			break
		}
		if page == c.maxTreePages {
			c.logger.Warn("tree truncated at page cap",
				slog.String("project", project), slog.Int("pages", c.maxTreePages))
		}
	}
	if entries == nil {
		entries = []TreeEntry{}
	}
	return entries, nil
}
