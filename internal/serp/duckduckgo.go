package serp

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/FranksOps/domainhunt/internal/browser"
	"github.com/FranksOps/domainhunt/internal/model"
	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

const (
	// DefaultEndpoint is the JavaScript-free DuckDuckGo results page.
	DefaultEndpoint = "https://html.duckduckgo.com/html/"

	// ResultSelector matches result title anchors on the results page.
	ResultSelector = ".result__a"

	// RedirectParam carries the destination URL in a result link.
	RedirectParam = "uddg"
)

var _ Provider = (*DuckDuckGo)(nil)

// DuckDuckGo resolves names through the DuckDuckGo HTML endpoint.
type DuckDuckGo struct {
	endpoint string
	apex     bool
}

// NewDuckDuckGo returns a provider querying endpoint. An empty endpoint uses
// DefaultEndpoint. When apex is set, resolved hostnames are reduced to their
// registrable domain (www.acme.co.uk -> acme.co.uk).
func NewDuckDuckGo(endpoint string, apex bool) *DuckDuckGo {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &DuckDuckGo{endpoint: endpoint, apex: apex}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// QueryURL escapes query into the q parameter of the endpoint, keeping any
// parameters already present on it.
func (d *DuckDuckGo) QueryURL(query string) string {
	u, err := url.Parse(d.endpoint)
	if err != nil {
		return d.endpoint + "?q=" + url.QueryEscape(query)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()
	return u.String()
}

// Extract reads the first result anchor, resolves its href against the page
// URL and returns the host of the URL carried in the redirect parameter.
// Any missing piece or unparsable URL yields NotFound.
func (d *DuckDuckGo) Extract(page *browser.Page) model.Resolution {
	if page == nil || page.Doc == nil {
		return model.NotFound()
	}

	link := page.Doc.Find(ResultSelector).First()
	if link.Length() == 0 {
		return model.NotFound()
	}
	href, ok := link.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return model.NotFound()
	}

	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return model.NotFound()
	}
	if page.URL != nil {
		ref = page.URL.ResolveReference(ref)
	}

	target := strings.TrimSpace(ref.Query().Get(RedirectParam))
	if target == "" {
		return model.NotFound()
	}
	dest, err := url.Parse(target)
	if err != nil || !dest.IsAbs() || dest.Hostname() == "" {
		return model.NotFound()
	}

	host, ok := asciiHost(dest.Hostname())
	if !ok {
		return model.NotFound()
	}
	if d.apex {
		if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
			host = etld1
		}
	}
	return model.Resolved(host)
}

// asciiHost lowercases host and converts internationalized labels to
// punycode. ASCII hosts that fail strict label rules, such as ones with
// underscores, are kept as they are.
func asciiHost(host string) (string, bool) {
	if a, err := idna.Lookup.ToASCII(host); err == nil && a != "" {
		return a, true
	}
	for i := 0; i < len(host); i++ {
		if host[i] >= utf8.RuneSelf {
			return "", false
		}
	}
	return strings.ToLower(host), true
}
