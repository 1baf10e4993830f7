package browser

import "testing"

func TestNewPage(t *testing.T) {
	p, err := NewPage("https://html.duckduckgo.com/html/?q=acme", []byte(`<html><body><a class="x" href="/l/">x</a></body></html>`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.URL.Host != "html.duckduckgo.com" {
		t.Errorf("expected host html.duckduckgo.com, got %s", p.URL.Host)
	}
	if n := p.Doc.Find("a.x").Length(); n != 1 {
		t.Errorf("expected 1 anchor, got %d", n)
	}
	if p.Doc.Url == nil || p.Doc.Url.String() != p.URL.String() {
		t.Errorf("expected document url to match page url")
	}
}

func TestNewPage_BadURL(t *testing.T) {
	if _, err := NewPage("://bad", []byte("<html></html>")); err == nil {
		t.Error("expected error for malformed url")
	}
}
