package livefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrFeedClosed is returned by Next once the publisher ends the feed.
var ErrFeedClosed = errors.New("live feed closed")

// Config configures a feed Client.
type Config struct {
	URL              string
	Headers          http.Header
	HandshakeTimeout time.Duration
	MaxMessageSize   int64
}

// Client subscribes to a Hub over WebSocket.
type Client struct {
	url     string
	headers http.Header
	dialer  *websocket.Dialer
	maxSize int64

	mu     sync.Mutex
	conn   *websocket.Conn
	frames int64
}

// NewClient creates a new feed client with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 30 * time.Second
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = 1024 * 1024 // 1MB default
	}

	return &Client{
		url:     cfg.URL,
		headers: cfg.Headers,
		maxSize: cfg.MaxMessageSize,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			Proxy:            http.ProxyFromEnvironment,
		},
	}
}

// Connect establishes the subscription.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return fmt.Errorf("already connected")
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("live feed dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("live feed dial failed: %w", err)
	}
	conn.SetReadLimit(c.maxSize)
	c.conn = conn
	return nil
}

// Next blocks until the next frame arrives. It returns ErrFeedClosed when the
// publisher closes the feed normally. Cancelling ctx unblocks a pending read
// by closing the connection.
func (c *Client) Next(ctx context.Context) (Frame, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return Frame{}, fmt.Errorf("not connected")
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	_, data, err := conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return Frame{}, ctx.Err()
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return Frame{}, ErrFeedClosed
		}
		return Frame{}, fmt.Errorf("read frame: %w", err)
	}

	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}

	c.mu.Lock()
	c.frames++
	c.mu.Unlock()
	return f, nil
}

// Frames returns how many frames have been decoded.
func (c *Client) Frames() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// Close closes the connection gracefully.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout),
	)
	closeErr := c.conn.Close()
	c.conn = nil

	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return closeErr
}
