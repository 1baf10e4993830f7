package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/domainhunt/internal/fingerprint"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

var (
	// ErrInvalidConcurrency is returned when CONCURRENCY is not a positive integer.
	ErrInvalidConcurrency = errors.New("concurrency must be a positive integer")
	// ErrInvalidDelay is returned when DELAY is negative or not an integer.
	ErrInvalidDelay = errors.New("delay must be a non-negative number of milliseconds")
)

// Browser engines.
const (
	BrowserHTTP     = "http"
	BrowserChromium = "chromium"
)

// Config is the immutable run configuration.
type Config struct {
	Input  string
	Output string

	Concurrency int
	Delay       time.Duration

	Browser    string
	NavTimeout time.Duration
	// ChromePath and ChromeProxy only apply to the chromium engine.
	ChromePath  string
	ChromeProxy string

	SearchEndpoint string
	ApexDomain     bool

	Fingerprint    fingerprint.Profile
	ProxyFile      string
	UserAgentsFile string
	RPS            float64
	Jitter         float64

	MetricsPort int
	LogLevel    slog.Level
}

// env lists every key with the environment variables bound to it, in
// lookup order.
var env = map[string][]string{
	"input":            {"INPUT", "INPUT_CSV"},
	"output":           {"OUTPUT", "OUTPUT_CSV"},
	"concurrency":      {"CONCURRENCY"},
	"delay_ms":         {"DELAY", "DELAY_MS"},
	"browser":          {"BROWSER"},
	"nav_timeout_ms":   {"NAV_TIMEOUT_MS"},
	"chrome_path":      {"CHROME_PATH"},
	"chrome_proxy":     {"CHROME_PROXY"},
	"search_endpoint":  {"SEARCH_ENDPOINT"},
	"apex_domain":      {"APEX_DOMAIN"},
	"fingerprint":      {"FINGERPRINT"},
	"proxy_file":       {"PROXY_FILE"},
	"user_agents_file": {"USER_AGENTS_FILE"},
	"rps":              {"RPS"},
	"jitter":           {"JITTER"},
	"metrics_port":     {"METRICS_PORT"},
	"log_level":        {"LOG_LEVEL"},
}

var defaults = map[string]any{
	"input":           "input.csv",
	"output":          "output.csv",
	"concurrency":     5,
	"delay_ms":        2000,
	"browser":         BrowserHTTP,
	"nav_timeout_ms":  30000,
	"search_endpoint": "https://html.duckduckgo.com/html/",
	"apex_domain":     false,
	"fingerprint":     string(fingerprint.ProfileChrome),
	"rps":             0,
	"jitter":          0,
	"metrics_port":    0,
	"log_level":       "info",
}

// Load reads envFile into the environment when it exists (variables already
// set win), then resolves and validates every setting.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	for key, names := range env {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Input:          v.GetString("input"),
		Output:         v.GetString("output"),
		Browser:        strings.ToLower(strings.TrimSpace(v.GetString("browser"))),
		ChromePath:     v.GetString("chrome_path"),
		ChromeProxy:    v.GetString("chrome_proxy"),
		SearchEndpoint: v.GetString("search_endpoint"),
		ProxyFile:      v.GetString("proxy_file"),
		UserAgentsFile: v.GetString("user_agents_file"),
	}

	var err error
	if cfg.Concurrency, err = cast.ToIntE(v.Get("concurrency")); err != nil || cfg.Concurrency <= 0 {
		return Config{}, fmt.Errorf("%w: %q", ErrInvalidConcurrency, v.GetString("concurrency"))
	}

	delay, err := cast.ToIntE(v.Get("delay_ms"))
	if err != nil || delay < 0 {
		return Config{}, fmt.Errorf("%w: %q", ErrInvalidDelay, v.GetString("delay_ms"))
	}
	cfg.Delay = time.Duration(delay) * time.Millisecond

	navTimeout, err := cast.ToIntE(v.Get("nav_timeout_ms"))
	if err != nil || navTimeout <= 0 {
		return Config{}, fmt.Errorf("nav timeout must be a positive number of milliseconds: %q", v.GetString("nav_timeout_ms"))
	}
	cfg.NavTimeout = time.Duration(navTimeout) * time.Millisecond

	switch cfg.Browser {
	case BrowserHTTP, BrowserChromium:
	default:
		return Config{}, fmt.Errorf("unknown browser %q (want %s or %s)", cfg.Browser, BrowserHTTP, BrowserChromium)
	}

	if cfg.ApexDomain, err = cast.ToBoolE(v.Get("apex_domain")); err != nil {
		return Config{}, fmt.Errorf("apex domain: %w", err)
	}
	if cfg.Fingerprint, err = fingerprint.ParseProfile(v.GetString("fingerprint")); err != nil {
		return Config{}, err
	}
	if cfg.RPS, err = cast.ToFloat64E(v.Get("rps")); err != nil || cfg.RPS < 0 {
		return Config{}, fmt.Errorf("rps must be a non-negative number: %q", v.GetString("rps"))
	}
	if cfg.Jitter, err = cast.ToFloat64E(v.Get("jitter")); err != nil || cfg.Jitter < 0 || cfg.Jitter > 1 {
		return Config{}, fmt.Errorf("jitter must be between 0 and 1: %q", v.GetString("jitter"))
	}
	if cfg.MetricsPort, err = cast.ToIntE(v.Get("metrics_port")); err != nil || cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return Config{}, fmt.Errorf("invalid metrics port %q", v.GetString("metrics_port"))
	}
	if cfg.LogLevel, err = ParseLevel(v.GetString("log_level")); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ParseLevel maps debug, info, warn or error (any case) to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}
