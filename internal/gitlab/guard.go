package gitlab

import (
	stderrors "errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/Aman-CERP/reposcout/internal/errors"
)

// forbiddenParams name fields only write endpoints accept.
var forbiddenParams = []string{"content", "message", "ref_name", "file_name", "branch_name"}

// guard enforces the base URL and forbidden parameter checks.
func (c *Client) guard(fullURL string, params url.Values) error {
	if c.baseURL == "" || !strings.HasPrefix(fullURL, c.baseURL) {
		return errors.SecurityError(errors.ErrCodeForbiddenURL, "URL outside configured instance").
			WithDetail("url", fullURL)
	}

	lower := strings.ToLower(fullURL)
	for _, p := range forbiddenParams {
		if strings.Contains(lower, p) {
			return errors.SecurityError(errors.ErrCodeForbiddenParam, "forbidden parameter in URL: "+p).
				WithDetail("url", fullURL)
		}
	}
	for key := range params {
		for _, p := range forbiddenParams {
			if key == p {
				return errors.SecurityError(errors.ErrCodeForbiddenParam, "forbidden parameter: "+p)
			}
		}
	}
	return nil
}

// getOnly rejects any non-GET request before it reaches the network.
type getOnly struct {
	base http.RoundTripper
}

func (g getOnly) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, errors.SecurityError(errors.ErrCodeForbiddenURL, "only GET requests are permitted").
			WithDetail("method", req.Method)
	}
	return g.base.RoundTrip(req)
}

func stdAs(err error, target any) bool {
	return stderrors.As(err, target)
}
