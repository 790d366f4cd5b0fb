// Package httpclient provides the resty-backed HTTP client shared by the feed
// fetcher, the chat notifier, the artifact lookup and HTTP publishers.
package httpclient

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultTimeout bounds every request made through a client built without an
// explicit timeout.
const DefaultTimeout = 30 * time.Second

const userAgent = "changelog-relay/1.0"

// Client is the minimal HTTP surface used by the relay.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (*resty.Response, error)
	PostJSON(ctx context.Context, url string, headers map[string]string, body any) (*resty.Response, error)
}

type restyClient struct {
	r *resty.Client
}

// NewRestyClient builds a Client with the given timeout. A non-positive timeout
// falls back to DefaultTimeout.
func NewRestyClient(timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent)
	return &restyClient{r: r}
}

// Get performs a GET request. Non-2xx responses are returned without error;
// callers inspect StatusCode.
func (c *restyClient) Get(ctx context.Context, url string, headers map[string]string) (*resty.Response, error) {
	return c.r.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(url)
}

// PostJSON performs a POST request with body encoded as JSON.
func (c *restyClient) PostJSON(ctx context.Context, url string, headers map[string]string, body any) (*resty.Response, error) {
	return c.r.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetHeader("Content-Type", "application/json; charset=utf-8").
		SetBody(body).
		Post(url)
}

// IsSuccess reports whether resp carries a 2xx status.
func IsSuccess(resp *resty.Response) bool {
	return resp != nil && resp.StatusCode() >= 200 && resp.StatusCode() < 300
}

// Snippet returns a truncated, trimmed rendering of body for error messages.
func Snippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
