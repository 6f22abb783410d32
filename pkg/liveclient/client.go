// Package liveclient is a Go reconciler client for the live patch
// endpoints. It mirrors the browser script: a WebSocket connection with
// exponential-backoff reconnects, falling back to HTTP polling while
// disconnected. Patches are handed to the caller in arrival order; how
// they are applied to a document is the caller's business.
package liveclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/michalCapo/p-sui/pkg/live"
)

const (
	wsPath      = "/_psui/ws"
	pollPath    = "/_psui/patch"
	invalidPath = "/_psui/invalid"

	// maxRetryAttempts caps the reconnect backoff schedule. After this
	// many consecutive failures the client stays on polling until a
	// later dial succeeds.
	maxRetryAttempts = 6
)

// Config configures a Client.
type Config struct {
	// BaseURL is the server origin, e.g. "http://127.0.0.1:1422".
	BaseURL string

	// Apply receives every delivered patch, in order.
	Apply func(live.Patch)

	// OnReload is called when the server broadcasts a reload. Optional.
	OnReload func()

	// PollInterval is the fallback poll period (default 1.5s).
	PollInterval time.Duration

	// HTTPClient carries the session cookie between polls and dials. A
	// jar-backed client is created when nil.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client connects to a live patch server and dispatches patches to the
// configured Apply callback.
type Client struct {
	config    Config
	logger    *slog.Logger
	http      *http.Client
	dialer    *websocket.Dialer
	connected atomic.Bool
}

// New creates a Client. It returns an error when BaseURL is unparsable or
// Apply is missing.
func New(config Config) (*Client, error) {
	if config.Apply == nil {
		return nil, errors.New("liveclient: Apply callback is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil || config.BaseURL == "" {
		return nil, fmt.Errorf("liveclient: invalid base URL %q", config.BaseURL)
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1500 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("liveclient: cookie jar: %w", err)
		}
		httpClient = &http.Client{Jar: jar, Timeout: 10 * time.Second}
	}
	return &Client{
		config: config,
		logger: config.Logger.With("component", "liveclient"),
		http:   httpClient,
		dialer: &websocket.Dialer{
			Jar:              httpClient.Jar,
			HandshakeTimeout: 10 * time.Second,
		},
	}, nil
}

// Connected reports whether a WebSocket connection is currently live.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Run drives the client until ctx is cancelled. It polls once up front so
// the session cookie exists before the first dial, then alternates between
// a live WebSocket connection and timed polling while reconnecting.
func (c *Client) Run(ctx context.Context) error {
	if err := c.PollOnce(ctx); err != nil {
		c.logger.Warn("initial poll failed", "error", err)
	}

	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Debug("dial failed", "error", err, "attempt", attempt)
			if err := c.waitDisconnected(ctx, &attempt); err != nil {
				return err
			}
			continue
		}

		attempt = 0
		c.connected.Store(true)
		// One immediate poll drains anything queued between the last
		// delivery and this connection being registered.
		if err := c.PollOnce(ctx); err != nil {
			c.logger.Debug("post-connect poll failed", "error", err)
		}

		err = c.readLoop(ctx, conn)
		c.connected.Store(false)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Debug("connection lost", "error", err)
	}
}

// waitDisconnected sleeps out one backoff period, polling at the
// configured interval meanwhile.
func (c *Client) waitDisconnected(ctx context.Context, attempt *int) error {
	delay := backoff(*attempt)
	if *attempt < maxRetryAttempts {
		*attempt++
	}

	deadline := time.NewTimer(delay)
	defer deadline.Stop()
	poll := time.NewTicker(c.config.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return nil
		case <-poll.C:
			if err := c.PollOnce(ctx); err != nil {
				c.logger.Debug("poll failed", "error", err)
			}
		}
	}
}

// backoff returns the reconnect delay for the given attempt number:
// 1.2s doubling per attempt, capped at 10s.
func backoff(attempt int) time.Duration {
	d := 1200 * time.Millisecond << attempt
	if d > 10*time.Second {
		return 10 * time.Second
	}
	return d
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = wsPath

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	return conn, err
}

// readLoop consumes messages until the connection drops or ctx ends.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleMessage(data)
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg live.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("bad message", "error", err)
		return
	}
	switch msg.Type {
	case live.MessagePatch:
		for _, patch := range msg.Patches {
			c.config.Apply(patch)
		}
	case live.MessageReload:
		if c.config.OnReload != nil {
			c.config.OnReload()
		}
	default:
		c.logger.Warn("unknown message type", "type", msg.Type)
	}
}

// PollOnce fetches and applies any pending patches over HTTP.
func (c *Client) PollOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+pollPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("liveclient: poll status %d", resp.StatusCode)
	}

	var body struct {
		Patches []live.Patch `json:"patches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("liveclient: decode poll response: %w", err)
	}
	for _, patch := range body.Patches {
		c.config.Apply(patch)
	}
	return nil
}

// NotifyInvalid reports that targetID no longer exists in the caller's
// document, letting the server run the target's cleanup.
func (c *Client) NotifyInvalid(ctx context.Context, targetID string) error {
	payload, err := json.Marshal(struct {
		ID string `json:"id"`
	}{ID: targetID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+invalidPath, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("liveclient: invalid report status %d", resp.StatusCode)
	}
	return nil
}

// SessionID returns the session cookie value held by the client's jar, or
// "" before the first successful request.
func (c *Client) SessionID() string {
	if c.http.Jar == nil {
		return ""
	}
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return ""
	}
	for _, cookie := range c.http.Jar.Cookies(u) {
		if strings.HasPrefix(cookie.Name, "psui") {
			return cookie.Value
		}
	}
	return ""
}
