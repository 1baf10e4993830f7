package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Response is the part of an HTTP response the detectors look at.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Detector reports whether res is a challenge and which vendor served it.
type Detector func(res *Response) (source string, detected bool)

// DefaultDetectors returns every built-in detector.
func DefaultDetectors() []Detector {
	return []Detector{
		detectDuckDuckGo,
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// Analyze runs res through detectors and returns the first matching source.
func Analyze(res *Response, detectors []Detector) (string, bool) {
	if res == nil {
		return "", false
	}
	for _, d := range detectors {
		if src, ok := d(res); ok {
			return src, true
		}
	}
	return "", false
}

func (r *Response) server() string {
	return strings.ToLower(r.Header.Get("Server"))
}

func (r *Response) bodyHas(markers ...string) bool {
	for _, m := range markers {
		if bytes.Contains(r.Body, []byte(m)) {
			return true
		}
	}
	return false
}

// detectDuckDuckGo matches the anomaly page served when DuckDuckGo rate
// limits a client. It comes back as 202 or 403 with a captcha form.
func detectDuckDuckGo(res *Response) (string, bool) {
	if res.StatusCode != http.StatusAccepted && res.StatusCode != http.StatusForbidden && res.StatusCode != http.StatusOK {
		return "", false
	}
	if res.bodyHas("anomaly-modal", "Unfortunately, bots use DuckDuckGo too") {
		return "DuckDuckGo", true
	}
	return "", false
}

func detectCloudflare(res *Response) (string, bool) {
	if res.StatusCode != http.StatusForbidden && res.StatusCode != http.StatusServiceUnavailable {
		return "", false
	}
	if strings.Contains(res.server(), "cloudflare") ||
		res.bodyHas("cf-browser-verification", "cf-turnstile", "Attention Required! | Cloudflare") {
		return "Cloudflare", true
	}
	return "", false
}

func detectAkamai(res *Response) (string, bool) {
	if res.StatusCode != http.StatusForbidden {
		return "", false
	}
	if strings.Contains(res.server(), "akamai") ||
		(res.bodyHas("Reference #") && res.bodyHas("Access Denied")) {
		return "Akamai", true
	}
	return "", false
}

func detectDataDome(res *Response) (string, bool) {
	if res.StatusCode != http.StatusForbidden {
		return "", false
	}
	if strings.Contains(res.server(), "datadome") ||
		res.Header.Get("X-DataDome") != "" ||
		res.bodyHas("geo.captcha-delivery.com") {
		return "DataDome", true
	}
	return "", false
}

func detectPerimeterX(res *Response) (string, bool) {
	if res.StatusCode != http.StatusForbidden {
		return "", false
	}
	if res.Header.Get("X-Px-Captcha") != "" ||
		res.bodyHas("client.perimeterx.net", "px-captcha", "_pxBlock") {
		return "PerimeterX", true
	}
	return "", false
}
