package fingerprint

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// Profile names a TLS ClientHello to imitate.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // crypto/tls, no imitation
	ProfileRandom  Profile = "random" // randomized uTLS hello
)

// ParseProfile validates a profile name. Empty selects ProfileChrome.
func ParseProfile(s string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return ProfileChrome, nil
	case ProfileChrome, ProfileFirefox, ProfileSafari, ProfileGo, ProfileRandom:
		return p, nil
	}
	return "", fmt.Errorf("unknown fingerprint profile %q", s)
}

// Imitated reports whether p replaces the crypto/tls handshake.
func (p Profile) Imitated() bool {
	return p != ProfileGo
}

// Options configures Transport.
type Options struct {
	Profile Profile
	// Proxy selects a proxy per request. Nil means direct.
	Proxy func(*http.Request) (*url.URL, error)
	// InsecureSkipVerify disables certificate checks. Tests only.
	InsecureSkipVerify bool
}

// Transport returns a RoundTripper whose TLS handshakes look like the
// configured browser. ALPN is pinned to http/1.1 because http.Transport
// cannot speak h2 over a custom DialTLSContext.
//
// When Proxy returns a proxy for an https URL, http.Transport performs the
// CONNECT and the TLS handshake itself and never calls DialTLSContext, so
// such requests carry the crypto/tls fingerprint whatever the profile.
func Transport(opts Options) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = opts.Proxy

	if opts.Profile == ProfileGo {
		if opts.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		return transport, nil
	}

	helloID, err := helloFor(opts.Profile)
	if err != nil {
		return nil, err
	}

	dial := transport.DialContext
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		uConn, err := newUConn(tcpConn, &utls.Config{
			ServerName:         host,
			InsecureSkipVerify: opts.InsecureSkipVerify,
		}, helloID)
		if err != nil {
			_ = tcpConn.Close()
			return nil, err
		}
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("utls handshake with %s: %w", host, err)
		}
		return uConn, nil
	}

	return transport, nil
}

func helloFor(p Profile) (utls.ClientHelloID, error) {
	switch p {
	case ProfileChrome, "":
		return utls.HelloChrome_Auto, nil
	case ProfileFirefox:
		return utls.HelloFirefox_Auto, nil
	case ProfileSafari:
		return utls.HelloIOS_Auto, nil
	case ProfileRandom:
		return utls.HelloRandomizedNoALPN, nil
	}
	return utls.ClientHelloID{}, fmt.Errorf("unknown fingerprint profile %q", p)
}

// newUConn builds a uTLS client from the preset for id with the ALPN
// extension rewritten to http/1.1. Presets without a static spec are used
// as-is.
func newUConn(conn net.Conn, cfg *utls.Config, id utls.ClientHelloID) (*utls.UConn, error) {
	spec, err := utls.UTLSIdToSpec(id)
	if err != nil {
		return utls.UClient(conn, cfg, id), nil
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}

	uConn := utls.UClient(conn, cfg, utls.HelloCustom)
	if err := uConn.ApplyPreset(&spec); err != nil {
		return nil, fmt.Errorf("apply %s preset: %w", id.Str(), err)
	}
	return uConn, nil
}
