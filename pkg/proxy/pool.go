package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	// ErrUnknownProxy is returned when reporting on a proxy not in the pool.
	ErrUnknownProxy = errors.New("proxy not in pool")
	// ErrNilProxy is returned when reporting on a nil URL.
	ErrNilProxy = errors.New("proxy url is nil")
)

// Config defines settings for the proxy pool.
type Config struct {
	// MaxFailures before a proxy is benched. Default 3.
	MaxFailures int
	// Cooldown is how long a benched proxy stays out of rotation. Default 5m.
	Cooldown time.Duration
}

type entry struct {
	url        *url.URL
	failures   int
	benchUntil time.Time
}

// Pool rotates through proxies, skipping those benched for failing.
type Pool struct {
	mu      sync.Mutex
	cfg     Config
	entries []*entry
	byKey   map[string]*entry
	next    int
	now     func() time.Time
}

// NewPool creates an empty pool.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{
		cfg:   cfg,
		byKey: make(map[string]*entry),
		now:   time.Now,
	}
}

// LoadFile adds proxies from a file with one URL per line. Blank lines and
// '#' comments are ignored.
func (p *Pool) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open proxy list: %w", err)
	}
	defer f.Close()

	var raws []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raws = append(raws, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read proxy list: %w", err)
	}
	return p.Add(raws...)
}

// Add parses and appends proxies. A missing scheme defaults to http.
// Duplicates are ignored.
func (p *Pool) Add(raws ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, raw := range raws {
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse proxy %q: %w", raw, err)
		}
		key := u.String()
		if _, dup := p.byKey[key]; dup {
			continue
		}
		e := &entry{url: u}
		p.entries = append(p.entries, e)
		p.byKey[key] = e
	}
	return nil
}

// Len reports the number of proxies in the pool, benched or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Next returns the next proxy in rotation that is not benched, or nil if
// the pool is empty or every proxy is cooling down.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for range p.entries {
		e := p.entries[p.next]
		p.next = (p.next + 1) % len(p.entries)

		if !e.benchUntil.IsZero() {
			if now.Before(e.benchUntil) {
				continue
			}
			e.benchUntil = time.Time{}
			e.failures = 0
		}
		return e.url
	}
	return nil
}

// MarkSuccess decays the failure count of u.
func (p *Pool) MarkSuccess(u *url.URL) error {
	e, err := p.lookup(u)
	if err != nil {
		return err
	}
	defer p.mu.Unlock()
	if e.failures > 0 {
		e.failures--
	}
	return nil
}

// MarkFailure records a failure of u, benching it once MaxFailures is hit.
func (p *Pool) MarkFailure(u *url.URL) error {
	e, err := p.lookup(u)
	if err != nil {
		return err
	}
	defer p.mu.Unlock()
	e.failures++
	if e.failures >= p.cfg.MaxFailures {
		e.benchUntil = p.now().Add(p.cfg.Cooldown)
	}
	return nil
}

// lookup returns the entry for u with p.mu held on success.
func (p *Pool) lookup(u *url.URL) (*entry, error) {
	if u == nil {
		return nil, ErrNilProxy
	}
	p.mu.Lock()
	e, ok := p.byKey[u.String()]
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownProxy, u.Redacted())
	}
	return e, nil
}
