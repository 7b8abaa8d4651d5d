package hub

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gbolabs/photoindex/internal/cmn"
)

// Client is the worker side of the control channel: it dials the hub,
// reconnects with backoff on drop, and exposes typed send/receive. Both
// the discovery worker and the archive worker embed this rather than
// talking to gorilla/websocket directly, matching the teacher's pattern
// of a single transport helper reused by multiple worker types.
type Client struct {
	url  string
	kind WorkerKind
	log  *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn

	Inbound chan Frame
}

// NewClient builds a Client for the given hub URL (ws:// or wss://) and
// worker kind. Dial is not attempted until Run is called.
func NewClient(hubURL string, kind WorkerKind, log *zap.Logger) *Client {
	return &Client{
		url:     hubURL,
		kind:    kind,
		log:     log,
		Inbound: make(chan Frame, 64),
	}
}

// Run connects and reconnects with exponential backoff until ctx is
// cancelled. Received frames are pushed onto c.Inbound.
func (c *Client) Run(ctx context.Context, hostname string) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second
	for {
		if ctx.Err() != nil {
			close(c.Inbound)
			return
		}
		if err := c.connectAndPump(ctx, hostname); err != nil {
			c.log.Warn("hub client disconnected", zap.Error(err), zap.Duration("retryIn", backoff))
		}
		select {
		case <-ctx.Done():
			close(c.Inbound)
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Client) connectAndPump(ctx context.Context, hostname string) error {
	u, err := url.Parse(c.url)
	if err != nil {
		return cmn.NewValidation("bad_hub_url", "hub URL is invalid")
	}
	// Each worker kind has its own endpoint: /hubs/indexer or /hubs/cleaner.
	if endpoint := "/hubs/" + string(c.kind); !strings.HasSuffix(u.Path, endpoint) {
		u.Path = strings.TrimSuffix(u.Path, "/") + endpoint
	}
	q := u.Query()
	q.Set("hostname", hostname)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return cmn.NewNetwork("hub_dial_failed", "failed to connect to hub", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.log.Info("connected to hub", zap.String("kind", string(c.kind)))

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.pingLoop(conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			c.log.Warn("hub client: malformed frame", zap.Error(err))
			continue
		}
		if !validMethods[f.Method] {
			continue
		}
		select {
		case c.Inbound <- f:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		if c.conn != conn {
			c.mu.Unlock()
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := conn.WriteMessage(websocket.PingMessage, nil)
		c.mu.Unlock()
		if err != nil {
			return
		}
	}
}

// Send marshals and writes a frame on the current connection. Safe to
// call from multiple goroutines; returns an error if not connected.
func (c *Client) Send(method MethodType, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn := c.conn
	if conn == nil {
		return cmn.NewNetwork("hub_not_connected", "no active hub connection", nil)
	}
	f, err := newFrame(method, payload)
	if err != nil {
		return cmn.NewIO("encode_frame_failed", "failed to encode frame", err)
	}
	b, err := json.Marshal(f)
	if err != nil {
		return cmn.NewIO("encode_frame_failed", "failed to encode frame", err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return cmn.NewNetwork("hub_write_failed", "failed to write to hub", err)
	}
	return nil
}
