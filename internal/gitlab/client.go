// Package gitlab is a read-only client for the GitLab v4 REST API.
//
// Every request passes three checks before any network I/O: the resolved
// URL must start with the configured base URL, no forbidden write-side
// parameter may appear in the URL or parameter keys, and only GET is ever
// issued. A failed check returns a security error; callers must not
// swallow it.
package gitlab

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Aman-CERP/reposcout/internal/config"
	"github.com/Aman-CERP/reposcout/internal/errors"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultPageSize     = 100
	DefaultMaxFileSize  = 10 * 1024 * 1024
	DefaultMaxTreePages = 20
	DefaultAPIVersion   = "v4"

	tokenHeader      = "PRIVATE-TOKEN"
	totalPagesHeader = "X-Total-Pages"

	// maxJSONBody bounds metadata responses; file bodies use MaxFileSize.
	maxJSONBody = 64 * 1024 * 1024
)

// Options configures a Client.
type Options struct {
	BaseURL      string
	APIVersion   string
	Token        string
	Timeout      time.Duration
	PageSize     int
	MaxFileSize  int
	MaxTreePages int
	Retry        errors.RetryConfig

	// HTTPClient overrides the pooled default. Its transport is still
	// wrapped in the GET-only guard.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// OptionsFromConfig maps loaded configuration onto client options.
func OptionsFromConfig(cfg config.GitLabConfig) Options {
	retry := errors.DefaultRetryConfig()
	retry.MaxRetries = cfg.Retries
	return Options{
		BaseURL:      cfg.BaseURL,
		APIVersion:   cfg.APIVersion,
		Token:        cfg.Token,
		Timeout:      cfg.Timeout,
		PageSize:     cfg.PageSize,
		MaxFileSize:  cfg.MaxFileSizeMB * 1024 * 1024,
		MaxTreePages: cfg.MaxTreePages,
		Retry:        retry,
	}
}

// Client issues guarded GET requests against one GitLab instance.
type Client struct {
	baseURL      string
	apiVersion   string
	token        string
	timeout      time.Duration
	pageSize     int
	maxFileSize  int
	maxTreePages int
	retry        errors.RetryConfig

	http      *http.Client
	transport *http.Transport
	logger    *slog.Logger
}

// New creates a Client. A missing token is allowed and limits the client
// to public projects.
func New(opts Options) *Client {
	if opts.APIVersion == "" {
		opts.APIVersion = DefaultAPIVersion
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.PageSize <= 0 || opts.PageSize > DefaultPageSize {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.MaxTreePages <= 0 {
		opts.MaxTreePages = DefaultMaxTreePages
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		apiVersion:   opts.APIVersion,
		token:        opts.Token,
		timeout:      opts.Timeout,
		pageSize:     opts.PageSize,
		maxFileSize:  opts.MaxFileSize,
		maxTreePages: opts.MaxTreePages,
		retry:        opts.Retry,
		logger:       opts.Logger,
	}

	// Timeouts come from per-request contexts, not http.Client.Timeout.
	if opts.HTTPClient != nil {
		hc := *opts.HTTPClient
		base := hc.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		hc.Transport = getOnly{base: base}
		c.http = &hc
	} else {
		c.transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        16,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     30 * time.Second,
		}
		c.http = &http.Client{Transport: getOnly{base: c.transport}}
	}

	if c.token == "" {
		c.logger.Warn("no access token configured, only public projects are readable",
			slog.String("env", config.TokenEnvVar))
	}
	return c
}

// BaseURL returns the normalized instance URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Close releases idle connections.
func (c *Client) Close() {
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
}

type response struct {
	status int
	header http.Header
	body   []byte
	// truncated is set when the body exceeded the read limit.
	truncated bool
}

func (r *response) totalPages(fallback int) int {
	v := r.header.Get(totalPagesHeader)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// buildURL resolves an endpoint against the API root. Absolute endpoints
// are returned unchanged and still guarded.
func (c *Client) buildURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http") {
		return endpoint
	}
	return c.baseURL + "/api/" + c.apiVersion + "/" + strings.TrimLeft(endpoint, "/")
}

// get performs a guarded, retried GET. Non-2xx statuses are returned as
// errors; IsNotFound identifies 404.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, limit int) (*response, error) {
	fullURL := c.buildURL(endpoint)
	if err := c.guard(fullURL, params); err != nil {
		c.logger.Error("request blocked", slog.String("url", fullURL), slog.String("error", err.Error()))
		return nil, err
	}
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	return errors.RetryWithResult(ctx, c.retry, func() (*response, error) {
		return c.do(ctx, fullURL, limit)
	})
}

func (c *Client) do(ctx context.Context, fullURL string, limit int) (*response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, errors.InternalError("failed to create request", err)
	}
	if c.token != "" {
		req.Header.Set(tokenHeader, c.token)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportError(reqCtx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(limit)+1))
	if err != nil {
		return nil, classifyTransportError(reqCtx, err)
	}
	r := &response{status: resp.StatusCode, header: resp.Header, body: body}
	if len(body) > limit {
		r.body = body[:limit]
		r.truncated = true
	}

	c.logger.Debug("gitlab request",
		slog.String("url", fullURL),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, fullURL)
	}
	return r, nil
}

func statusError(status int, fullURL string) error {
	msg := fmt.Sprintf("upstream returned %d", status)
	var se *errors.ScoutError
	switch {
	case status == http.StatusNotFound:
		se = errors.New(errors.ErrCodeNotFound, msg, nil)
	case status == http.StatusTooManyRequests:
		se = errors.New(errors.ErrCodeRateLimited, msg, nil)
	case status >= 500:
		se = errors.New(errors.ErrCodeUpstreamStatus, msg, nil)
		se.Retryable = true
	default:
		se = errors.New(errors.ErrCodeUpstreamStatus, msg, nil)
	}
	return se.WithDetail("status", strconv.Itoa(status)).WithDetail("url", fullURL)
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.IsSecurity(err) {
		se, _ := errors.As(err)
		return se
	}
	if ctx.Err() != nil {
		return errors.NetworkError("request timed out", err)
	}
	var netErr net.Error
	if stdAs(err, &netErr) && netErr.Timeout() {
		return errors.NetworkError("request timed out", err)
	}
	return errors.New(errors.ErrCodeNetworkUnavailable, "upstream unreachable", err)
}
