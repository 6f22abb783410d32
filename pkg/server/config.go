package server

import "time"

// Fixed protocol routes. The browser script and the Go client both assume
// these paths.
const (
	WebSocketPath    = "/_psui/ws"
	PollPath         = "/_psui/patch"
	InvalidPath      = "/_psui/invalid"
	ClientScriptPath = "/_psui/client.js"
	MetricsPath      = "/metrics"
)

// Config configures the Server. Zero fields are filled with defaults by
// New.
type Config struct {
	// Address is the listen address (default ":1422").
	Address string

	// CookieName is the session cookie name (default "psui__sid").
	CookieName string

	// SecureCookies marks the session cookie Secure. Off by default so
	// plain-HTTP development works.
	SecureCookies bool

	// ReadHeaderTimeout bounds header parsing on the HTTP server.
	ReadHeaderTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown (default 10s).
	ShutdownTimeout time.Duration

	// EnableMetrics mounts the Prometheus handler at /metrics and wires
	// delivery metrics into the registry and dispatcher.
	EnableMetrics bool

	// EnableTracing wraps every route in the OpenTelemetry middleware.
	EnableTracing bool

	// AutoReload starts the development file watcher and broadcasts a
	// reload to every connected browser when a watched file changes.
	AutoReload bool

	// WatchPaths are the directories the auto-reload watcher scans
	// (default: the working directory).
	WatchPaths []string
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":1422",
		CookieName:        "psui__sid",
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   10 * time.Second,
	}
}

func (c *Config) fillDefaults() {
	defaults := DefaultConfig()
	if c.Address == "" {
		c.Address = defaults.Address
	}
	if c.CookieName == "" {
		c.CookieName = defaults.CookieName
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}
}
