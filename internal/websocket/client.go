package websocket

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dcbridge/internal/events"
	"dcbridge/pkg/logging"
)

// Maximum control message size allowed from a client.
const maxMessageSize = 4096

// Client is one WebSocket connection and its subscription set.
type Client struct {
	id       string
	username string
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	logger   logging.Logger

	mu       sync.RWMutex
	channels map[events.Channel]bool
	closed   bool
}

// trySend queues a frame without blocking. Returns false when the buffer is
// full; the hub treats that as a slow consumer. Frames offered after close
// are discarded.
func (c *Client) trySend(payload []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// shutdown closes the send channel exactly once.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// clientMessage is the only shape clients may send.
type clientMessage struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels,omitempty"`
}

// subscribedTo reports whether a frame for the given channel should reach
// this client. The catch-all events subscription covers every event kind but
// not status frames, which have their own channel.
func (c *Client) subscribedTo(channel events.Channel, kind events.Kind) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.channels[channel] {
		return true
	}
	return kind != "" && c.channels[events.ChannelEvents]
}

func (c *Client) channelList() []events.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]events.Channel, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	return out
}

func (c *Client) channelNames() []string {
	list := c.channelList()
	names := make([]string, len(list))
	for i, ch := range list {
		names[i] = string(ch)
	}
	sort.Strings(names)
	return names
}

// readPump consumes control messages until the connection drops.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.hub.config.PongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WithError(err).WithField("client_id", c.id).Error("WebSocket connection error")
			}
			return
		}
		if c.hub.metrics != nil {
			c.hub.metrics.WSMessages.WithLabelValues("in").Inc()
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError("invalid message")
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg clientMessage) {
	switch msg.Type {
	case "ping":
		c.sendJSON(map[string]interface{}{"type": "pong"})

	case "subscribe":
		parsed, bad := parseChannels(msg.Channels)
		if bad != "" {
			c.sendError("unknown channel: " + bad)
			return
		}
		c.mu.Lock()
		for _, ch := range parsed {
			c.channels[ch] = true
		}
		c.mu.Unlock()
		c.logger.WithFields(logging.Fields{
			"client_id": c.id,
			"channels":  msg.Channels,
		}).Info("Client subscribed")
		c.sendJSON(map[string]interface{}{"type": "subscribed", "channels": c.channelNames()})

	case "unsubscribe":
		parsed, bad := parseChannels(msg.Channels)
		if bad != "" {
			c.sendError("unknown channel: " + bad)
			return
		}
		c.mu.Lock()
		for _, ch := range parsed {
			delete(c.channels, ch)
		}
		c.mu.Unlock()
		c.sendJSON(map[string]interface{}{"type": "subscribed", "channels": c.channelNames()})

	default:
		c.sendError("unknown message type: " + msg.Type)
	}
}

func parseChannels(names []string) ([]events.Channel, string) {
	out := make([]events.Channel, 0, len(names))
	for _, name := range names {
		ch, ok := events.ParseChannel(name)
		if !ok {
			return nil, name
		}
		out = append(out, ch)
	}
	return out, ""
}

// writePump drains the send buffer and keeps the connection alive with
// periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
			if c.hub.metrics != nil {
				c.hub.metrics.WSMessages.WithLabelValues("out").Inc()
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendError(message string) {
	c.sendJSON(map[string]interface{}{"type": "error", "message": message})
}

// sendJSON queues a direct reply to this client, dropping it if the client
// cannot keep up.
func (c *Client) sendJSON(data map[string]interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		c.logger.WithError(err).Error("Failed to marshal client reply")
		return
	}
	if !c.trySend(payload) {
		c.logger.WithField("client_id", c.id).Warn("Client send buffer full, dropping reply")
	}
}
