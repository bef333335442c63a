package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is a reconnecting websocket client for the hub. Register may be
// called before the connection is up; the latest registration is sent
// exactly once on every connection.
type Client struct {
	url     string
	dialer  *websocket.Dialer
	log     *slog.Logger
	backoff time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	pending   *RegisterMessage
	flushedOn *websocket.Conn
	handlers  map[string][]func(json.RawMessage)
}

func NewClient(url string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:      url,
		dialer:   websocket.DefaultDialer,
		log:      logger,
		backoff:  time.Second,
		handlers: make(map[string][]func(json.RawMessage)),
	}
}

// On adds a handler for frames of the given type. Handlers run on the
// read goroutine.
func (c *Client) On(frameType string, fn func(json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[frameType] = append(c.handlers[frameType], fn)
}

// Register records the registration and sends it now if connected.
func (c *Client) Register(msg RegisterMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := msg
	c.pending = &m
	c.flushedOn = nil
	return c.flushLocked()
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Run dials, serves and redials until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.serve(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn("realtime client disconnected", "url", c.url, "err", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.backoff):
		}
	}
}

func (c *Client) serve(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.flushedOn = nil
	err = c.flushLocked()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()
	if err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.log.Debug("realtime client: bad frame", "err", err)
			continue
		}
		c.mu.Lock()
		hs := append([]func(json.RawMessage){}, c.handlers[f.Type]...)
		c.mu.Unlock()
		for _, fn := range hs {
			fn(f.Data)
		}
	}
}

func (c *Client) flushLocked() error {
	if c.conn == nil || c.pending == nil || c.flushedOn == c.conn {
		return nil
	}
	data, err := json.Marshal(c.pending)
	if err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(Frame{Type: FrameRegister, Data: data}); err != nil {
		return err
	}
	c.flushedOn = c.conn
	return nil
}
