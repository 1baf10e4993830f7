package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

// DefaultMaxRedirects is used when Config.MaxRedirects is zero.
const DefaultMaxRedirects = 10

// Config defines the setup for the HTTP client.
type Config struct {
	Timeout time.Duration
	// MaxRedirects caps followed redirects. Zero uses DefaultMaxRedirects,
	// negative disables following.
	MaxRedirects int
	// Jar stores cookies for this client only. Nil disables cookies.
	Jar http.CookieJar
	// Transport is shared between clients, e.g. for uTLS fingerprinting.
	Transport http.RoundTripper
}

// Client wraps http.Client with a context-first Do.
type Client struct {
	*http.Client
}

// New creates a client from cfg.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}

	c := &http.Client{
		Timeout:   cfg.Timeout,
		Jar:       cfg.Jar,
		Transport: cfg.Transport,
	}

	maxRedirects := cfg.MaxRedirects
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if maxRedirects < 0 {
			return http.ErrUseLastResponse
		}
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}

	return &Client{Client: c}
}

// NewJar returns an empty cookie jar scoped by the public suffix list, so
// cookies never leak across registrable domains.
func NewJar() http.CookieJar {
	// cookiejar.New never returns a non-nil error.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return jar
}

// Do executes req bound to ctx.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("httpclient: nil context")
	}
	resp, err := c.Client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	return resp, nil
}
