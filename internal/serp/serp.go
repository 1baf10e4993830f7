// Package serp holds the search-provider specific contract: how a query URL
// is built and how the first result is pulled out of a results page.
package serp

import (
	"github.com/FranksOps/domainhunt/internal/browser"
	"github.com/FranksOps/domainhunt/internal/model"
)

// Provider abstracts a search engine whose results page can be rendered by a
// browser.Session.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	// QueryURL returns the results page URL for query.
	QueryURL(query string) string
	// Extract returns the resolution for a loaded results page. It must be a
	// pure function of the page.
	Extract(page *browser.Page) model.Resolution
}
