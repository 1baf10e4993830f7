// Package browser defines the browsing engine consumed by the lookup
// pipeline. An Engine is shared for a whole run; each Session is bound to a
// single lookup and closed right after it.
package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrNotNavigated is returned by Snapshot before a successful Navigate.
	ErrNotNavigated = errors.New("session has no loaded page")
	// ErrClosed is returned when a closed session or engine is used.
	ErrClosed = errors.New("session closed")
	// ErrChallenged is returned when the loaded page is a bot challenge.
	ErrChallenged = errors.New("blocked by bot challenge")
	// ErrStatus is returned for HTTP error statuses.
	ErrStatus = errors.New("unexpected status")
)

// Page is a loaded document together with the URL it was served from.
// Relative links in the document resolve against URL.
type Page struct {
	URL *url.URL
	Doc *goquery.Document
}

// NewPage parses body into a Page located at rawURL.
func NewPage(rawURL string, body []byte) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	doc.Url = u
	return &Page{URL: u, Doc: doc}, nil
}

// Session is one isolated browsing context. It performs one navigation and
// one snapshot at a time and must not be shared between lookups.
type Session interface {
	// Navigate loads targetURL and returns once the page has finished loading.
	Navigate(ctx context.Context, targetURL string) error
	// Snapshot returns the currently loaded page.
	Snapshot(ctx context.Context) (*Page, error)
	Close() error
}

// Engine creates sessions. It is safe for concurrent use.
type Engine interface {
	NewSession(ctx context.Context) (Session, error)
	Close() error
}

// Launcher starts an Engine for one run.
type Launcher func(ctx context.Context) (Engine, error)
