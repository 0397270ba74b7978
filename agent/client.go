// Package agent maintains the WebSocket connection to the external AI
// agent. The agent, its LLM, and the MCP tooling behind it are opaque to
// this process; all that crosses the wire is the small JSON event protocol
// in the model package.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hivemind-labs/beechat/model"
)

// Client dials the agent WebSocket and feeds inbound events to a handler.
// On connection loss it reconnects after a fixed delay, indefinitely; a
// message in flight at the time is abandoned, not recovered.
type Client struct {
	url            string
	reconnectDelay time.Duration
	handler        func(model.AgentEvent)

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient creates a Client for the given ws:// or wss:// URL.
func NewClient(url string, reconnectDelay time.Duration, handler func(model.AgentEvent)) *Client {
	return &Client{
		url:            url,
		reconnectDelay: reconnectDelay,
		handler:        handler,
	}
}

// Run connects and processes events until ctx is canceled. Each
// disconnect schedules one reconnect attempt after the fixed delay; there
// is no backoff growth and no attempt cap.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.connectAndRead(ctx); err != nil {
			log.Printf("Agent: connection lost: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
		log.Println("Agent: reconnecting...")
	}
}

// Send delivers an outbound client event over the current connection.
func (c *Client) Send(ev model.ClientEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("agent connection is down")
	}
	if err := c.conn.WriteJSON(ev); err != nil {
		return fmt.Errorf("writing %s event: %w", ev.Type, err)
	}
	return nil
}

func (c *Client) connectAndRead(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.url, err)
	}
	log.Printf("Agent: connected to %s", c.url)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	// Close the socket when ctx ends so ReadMessage unblocks.
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
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading event: %w", err)
		}
		ev, err := decodeEvent(data)
		if err != nil {
			log.Printf("Agent: dropping malformed event %q: %v", model.Truncate(string(data), 120), err)
			continue
		}
		c.handler(ev)
	}
}

// decodeEvent parses an inbound frame. Missing or non-string content and
// message fields degrade to empty strings rather than failing the event;
// only an unparseable frame or a missing type is rejected.
func decodeEvent(data []byte) (model.AgentEvent, error) {
	var raw struct {
		Type    string          `json:"type"`
		Content json.RawMessage `json:"content"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.AgentEvent{}, fmt.Errorf("parsing frame: %w", err)
	}
	if raw.Type == "" {
		return model.AgentEvent{}, fmt.Errorf("frame has no type")
	}
	return model.AgentEvent{
		Type:    raw.Type,
		Content: looseString(raw.Content),
		Message: looseString(raw.Message),
	}, nil
}

func looseString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
