package browserlens

import (
	"log/slog"
	"time"
)

// Config is browserlens' immutable set of tunables, built via functional
// options in the teacher's style (its options.go does the same for
// per-action ExecAllocator settings). Defaults match spec.md §4.5/§4.6.
type Config struct {
	WebSocketURL     string
	ConnectTimeout   time.Duration
	LoadTimeout      time.Duration
	IdleThreshold    time.Duration
	PollInterval     time.Duration
	CollectorTimeout time.Duration
	MaxLines         int
	MaxRetries       int
	Logger           *slog.Logger
}

// BrowserOption configures a Config during Connect.
type BrowserOption func(*Config)

// WithWebSocketURL sets the ws://.../devtools/browser/... endpoint directly,
// bypassing HTTP discovery.
func WithWebSocketURL(url string) BrowserOption {
	return func(c *Config) { c.WebSocketURL = url }
}

// WithConnectTimeout bounds the initial WebSocket dial.
func WithConnectTimeout(d time.Duration) BrowserOption {
	return func(c *Config) { c.ConnectTimeout = d }
}

// WithLoadTimeout sets wait_for_load's default deadline (spec.md §4.5).
func WithLoadTimeout(d time.Duration) BrowserOption {
	return func(c *Config) { c.LoadTimeout = d }
}

// WithIdleThreshold sets wait_for_load's network-idle window.
func WithIdleThreshold(d time.Duration) BrowserOption {
	return func(c *Config) { c.IdleThreshold = d }
}

// WithPollInterval sets wait_for_load's gate-polling cadence.
func WithPollInterval(d time.Duration) BrowserOption {
	return func(c *Config) { c.PollInterval = d }
}

// WithCollectorTimeout bounds the DOM collector's combined deadline
// (spec.md §4.6).
func WithCollectorTimeout(d time.Duration) BrowserOption {
	return func(c *Config) { c.CollectorTimeout = d }
}

// WithMaxLines caps how many serialized lines get_state emits before
// truncating (spec.md §4.9).
func WithMaxLines(n int) BrowserOption {
	return func(c *Config) { c.MaxLines = n }
}

// WithMaxRetries overrides how many attempts Transport.Send makes for a
// retryable error before surfacing it (spec.md §4.3/§7 retry policy).
func WithMaxRetries(n int) BrowserOption {
	return func(c *Config) { c.MaxRetries = n }
}

// WithLogger installs a *slog.Logger; nil falls back to slog.Default.
func WithLogger(l *slog.Logger) BrowserOption {
	return func(c *Config) { c.Logger = l }
}

// defaultConfig returns the spec.md-mandated defaults before options apply.
func defaultConfig() *Config {
	return &Config{
		ConnectTimeout:   10 * time.Second,
		LoadTimeout:      15 * time.Second,
		IdleThreshold:    500 * time.Millisecond,
		PollInterval:     100 * time.Millisecond,
		CollectorTimeout: 30 * time.Second,
		MaxLines:         0,
		MaxRetries:       retryMaxTry,
		Logger:           slog.Default(),
	}
}
