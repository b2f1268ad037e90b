// Package transport implements the change-feed WebSocket client used to
// trigger syncs when another device uploads a vault.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/genvault/genvault/internal/events"
)

// ChangeEvent is one notification from a provider's change feed.
type ChangeEvent struct {
	VaultID      string    `json:"vault_id"`
	FileID       string    `json:"file_id,omitempty"`
	ModifiedTime time.Time `json:"modified_time"`
}

// WatchConfig configures the change-feed connection.
type WatchConfig struct {
	URL          string
	Token        string
	PingInterval time.Duration
	PongTimeout  time.Duration
}

// WatchClient subscribes to a provider's change feed. The feed is an
// optional provider capability; vaults on providers without one sync on
// demand only.
type WatchClient struct {
	url    string
	token  string
	logger *events.Logger

	// Connection state
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	changes chan ChangeEvent
	done    chan struct{}

	// Heartbeat
	pingInterval time.Duration
	pongTimeout  time.Duration
}

// NewWatchClient creates a change-feed client.
func NewWatchClient(cfg WatchConfig, logger *events.Logger) *WatchClient {
	url := cfg.URL
	if strings.HasPrefix(url, "http") {
		url = "ws" + url[len("http"):]
	}

	pingInterval := cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	pongTimeout := cfg.PongTimeout
	if pongTimeout <= 0 {
		pongTimeout = 10 * time.Second
	}

	return &WatchClient{
		url:          url,
		token:        cfg.Token,
		logger:       logger.WithField("component", "watch_client"),
		changes:      make(chan ChangeEvent, 100),
		done:         make(chan struct{}),
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
	}
}

// Connect establishes the WebSocket connection and starts the read and
// ping loops. Events arrive on Changes until Close or a read error.
func (c *WatchClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return fmt.Errorf("already connected")
	}

	c.logger.WithField("url", c.url).Info("Connecting to change feed")

	headers := http.Header{}
	if c.token != "" {
		headers.Set("Authorization", "Bearer "+c.token)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, c.url, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("change feed connect failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("change feed connect failed: %w", err)
	}

	c.conn = conn
	go c.readLoop()
	go c.pingLoop()

	c.logger.Info("Change feed connected")
	return nil
}

// Changes returns the event channel. It is closed when the connection
// ends.
func (c *WatchClient) Changes() <-chan ChangeEvent {
	return c.changes
}

// Close closes the connection.
func (c *WatchClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)

	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

		err := c.conn.Close()
		c.conn = nil
		return err
	}

	return nil
}

func (c *WatchClient) readLoop() {
	defer func() {
		c.Close()
		close(c.changes)
	}()

	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(c.pongTimeout + c.pingInterval))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(c.pongTimeout + c.pingInterval))
			return nil
		})

		var event ChangeEvent
		if err := conn.ReadJSON(&event); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				c.logger.WithError(err).Error("Change feed read error")
			}
			return
		}

		if event.VaultID == "" {
			c.logger.Debug("Ignoring change event without vault ID")
			continue
		}

		select {
		case c.changes <- event:
		case <-c.done:
			return
		}
	}
}

func (c *WatchClient) pingLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			if conn == nil {
				return
			}

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.WithError(err).Warn("Change feed ping failed")
				return
			}

		case <-c.done:
			return
		}
	}
}
