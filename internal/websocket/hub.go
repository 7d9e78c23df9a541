// Package websocket fans engine events out to WebSocket clients. Each
// connection carries its own channel subscription set; events are serialized
// once per broadcast and delivered to every subscribed client. Slow clients
// are evicted rather than allowed to stall the fan-out.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"dcbridge/internal/events"
	"dcbridge/internal/metrics"
	"dcbridge/pkg/auth"
	"dcbridge/pkg/logging"
)

// Config tunes the hub. Zero values select defaults.
type Config struct {
	// JWTSecret validates client tokens before the upgrade. Empty disables
	// authentication (local development only).
	JWTSecret []byte

	WriteWait  time.Duration
	PongWait   time.Duration
	PingPeriod time.Duration
	SendBuffer int
}

func (c Config) withDefaults() Config {
	if c.WriteWait == 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait == 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingPeriod == 0 {
		c.PingPeriod = (c.PongWait * 9) / 10
	}
	if c.SendBuffer == 0 {
		c.SendBuffer = 256
	}
	return c
}

// envelope is one pre-marshaled frame bound for a channel.
type envelope struct {
	channel events.Channel
	kind    events.Kind
	payload []byte
}

// Hub maintains the set of active clients and fans frames out to them.
type Hub struct {
	logger  logging.Logger
	config  Config
	metrics *metrics.Metrics // optional

	register   chan *Client
	unregister chan *Client
	broadcast  chan envelope
	quit       chan struct{}

	mutex   sync.RWMutex
	clients map[*Client]bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewHub creates a hub. m may be nil.
func NewHub(logger logging.Logger, cfg Config, m *metrics.Metrics) *Hub {
	return &Hub{
		logger:     logger,
		config:     cfg.withDefaults(),
		metrics:    m,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan envelope, 256),
		quit:       make(chan struct{}),
		clients:    make(map[*Client]bool),
	}
}

// Run starts the hub's main loop. Blocks until Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			if h.metrics != nil {
				h.metrics.WSConnections.Set(float64(count))
			}
			h.logger.WithFields(logging.Fields{
				"client_id":    client.id,
				"username":     client.username,
				"client_count": count,
			}).Info("Client connected")

		case client := <-h.unregister:
			h.dropClient(client, false)

		case env := <-h.broadcast:
			h.fanOut(env)

		case <-h.quit:
			h.mutex.Lock()
			remaining := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				remaining = append(remaining, client)
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			for _, client := range remaining {
				client.shutdown()
				client.conn.Close()
			}
			return
		}
	}
}

// Stop closes every connection and ends the run loop.
func (h *Hub) Stop() {
	close(h.quit)
}

func (h *Hub) dropClient(client *Client, evicted bool) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	count := len(h.clients)
	h.mutex.Unlock()
	client.shutdown()

	if h.metrics != nil {
		h.metrics.WSConnections.Set(float64(count))
		if evicted {
			h.metrics.ClientsEvicted.Inc()
		}
	}
	h.logger.WithFields(logging.Fields{
		"client_id":    client.id,
		"evicted":      evicted,
		"client_count": count,
	}).Info("Client disconnected")
}

// fanOut delivers one frame to every client subscribed to its channel.
// A client whose send buffer is full is evicted on the spot.
func (h *Hub) fanOut(env envelope) {
	h.mutex.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if client.subscribedTo(env.channel, env.kind) {
			targets = append(targets, client)
		}
	}
	h.mutex.RUnlock()

	var sent int
	for _, client := range targets {
		if client.trySend(env.payload) {
			sent++
		} else {
			client.conn.Close()
			h.dropClient(client, true)
		}
	}
	if h.metrics != nil && sent > 0 {
		h.metrics.EventsBroadcast.WithLabelValues(string(env.channel)).Add(float64(sent))
	}
}

// BroadcastEvent serializes one engine event and queues it for fan-out.
// Never blocks; the frame is dropped with a warning if the broadcast queue
// is full.
func (h *Hub) BroadcastEvent(ev events.Event) {
	frame := map[string]interface{}{
		"type":      "event",
		"event":     ev.Kind,
		"data":      ev.Payload,
		"timestamp": ev.Time,
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal event frame")
		return
	}
	select {
	case h.broadcast <- envelope{channel: events.ChannelOf(ev.Kind), kind: ev.Kind, payload: payload}:
	default:
		h.logger.WithField("event_kind", ev.Kind).Warn("Broadcast queue full, dropping frame")
	}
}

// BroadcastStatus queues a status snapshot on the status channel.
func (h *Hub) BroadcastStatus(data interface{}) {
	frame := map[string]interface{}{
		"type":      "status",
		"data":      data,
		"timestamp": time.Now().UTC(),
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal status frame")
		return
	}
	select {
	case h.broadcast <- envelope{channel: events.ChannelStatus, payload: payload}:
	default:
		h.logger.Warn("Broadcast queue full, dropping status frame")
	}
}

// GetStats returns fan-out statistics for the REST surface.
func (h *Hub) GetStats() map[string]interface{} {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	channelStats := make(map[string]int)
	for client := range h.clients {
		for _, ch := range client.channelList() {
			channelStats[string(ch)]++
		}
	}
	return map[string]interface{}{
		"total_clients":         len(h.clients),
		"channel_subscriptions": channelStats,
	}
}

// ServeWS authenticates and upgrades one WebSocket request.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	var username string
	if len(h.config.JWTSecret) > 0 {
		claims, err := auth.ValidateJWT(auth.BearerFromRequest(r), h.config.JWTSecret)
		if err != nil {
			h.logger.WithError(err).Warn("WebSocket auth rejected")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		username = claims.Username
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}

	client := &Client{
		id:       uuid.NewString(),
		username: username,
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, h.config.SendBuffer),
		channels: map[events.Channel]bool{events.ChannelEvents: true},
		logger:   h.logger,
	}
	h.register <- client

	client.sendJSON(map[string]interface{}{
		"type":      "connected",
		"client_id": client.id,
		"channels":  client.channelNames(),
	})

	go client.writePump()
	go client.readPump()
}
