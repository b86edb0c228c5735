// Package httpclient wraps resty for the unauthenticated fetchers.
package httpclient

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Client performs GET requests and hands back the raw response.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (*resty.Response, error)
}

type Options struct {
	Timeout   time.Duration
	UserAgent string
	// NoRedirects returns 30x responses to the caller instead of following them.
	NoRedirects bool
}

type restyClient struct {
	client *resty.Client
}

func New(opts Options) Client {
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}

	c := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", ua)

	if opts.NoRedirects {
		c.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))
	}

	return &restyClient{client: c}
}

func (c *restyClient) Get(ctx context.Context, url string, headers map[string]string) (*resty.Response, error) {
	return c.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(url)
}

// Snippet returns a trimmed prefix of body suitable for error messages.
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
