// Package handlers contains the HTTP surface of the bridge daemon: the
// WebSocket endpoint, login, and a small REST API over the engine.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dcbridge/internal/bridge"
	"dcbridge/internal/engine"
	"dcbridge/internal/websocket"
	"dcbridge/pkg/auth"
	"dcbridge/pkg/logging"
	"dcbridge/pkg/version"
)

// Credentials is the static user store backing login. One operator account,
// configured through the environment.
type Credentials struct {
	Username     string
	PasswordHash string // bcrypt
}

// Config tunes the handlers.
type Config struct {
	JWTSecret   []byte
	TokenTTL    time.Duration
	Credentials Credentials
	// WaitTimeout bounds synchronous connect/download waits requested via
	// the REST API.
	WaitTimeout time.Duration
	// SearchWindow is how long a REST search collects results.
	SearchWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.TokenTTL == 0 {
		c.TokenTTL = 24 * time.Hour
	}
	if c.WaitTimeout == 0 {
		c.WaitTimeout = 30 * time.Second
	}
	if c.SearchWindow == 0 {
		c.SearchWindow = 5 * time.Second
	}
	return c
}

// BridgeHandlers contains the HTTP handlers for the daemon.
type BridgeHandlers struct {
	bridge    *bridge.Bridge
	hub       *websocket.Hub
	logger    logging.Logger
	config    Config
	startTime time.Time
}

// NewBridgeHandlers creates a new handlers instance.
func NewBridgeHandlers(b *bridge.Bridge, hub *websocket.Hub, logger logging.Logger, cfg Config) *BridgeHandlers {
	return &BridgeHandlers{
		bridge:    b,
		hub:       hub,
		logger:    logger,
		config:    cfg.withDefaults(),
		startTime: time.Now(),
	}
}

// HandleWebSocket serves WebSocket connections.
func (h *BridgeHandlers) HandleWebSocket(c *gin.Context) {
	h.hub.ServeWS(c.Writer, c.Request)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// HandleLogin exchanges operator credentials for a JWT.
func (h *BridgeHandlers) HandleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	creds := h.config.Credentials
	if req.Username != creds.Username || !auth.CheckPassword(req.Password, creds.PasswordHash) {
		h.logger.WithField("username", req.Username).Warn("Login rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := auth.GenerateJWT(req.Username, "operator", h.config.TokenTTL, h.config.JWTSecret)
	if err != nil {
		h.logger.WithError(err).Error("Failed to sign token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(h.config.TokenTTL.Seconds()),
	})
}

// HandleStatus reports engine and fan-out state.
func (h *BridgeHandlers) HandleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":   "dcbridge",
		"version":   version.Version,
		"uptime":    time.Since(h.startTime).String(),
		"engine":    h.bridge.Engine().Version(),
		"status":    h.bridge.Status(),
		"websocket": h.hub.GetStats(),
	})
}

// HandleListHubs lists hub connections.
func (h *BridgeHandlers) HandleListHubs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"hubs": h.bridge.Engine().ListHubs()})
}

type connectRequest struct {
	URL      string `json:"url" binding:"required"`
	Encoding string `json:"encoding"`
	Wait     bool   `json:"wait"`
}

// HandleConnect joins a hub, optionally waiting for the outcome.
func (h *BridgeHandlers) HandleConnect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url required"})
		return
	}

	if !req.Wait {
		if err := h.bridge.Connect(req.URL, req.Encoding); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"url": req.URL, "state": "connecting"})
		return
	}

	out, err := h.bridge.ConnectAndWait(c.Request.Context(), req.URL, req.Encoding, h.config.WaitTimeout)
	h.respondOutcome(c, req.URL, out, err)
}

type disconnectRequest struct {
	URL  string `json:"url" binding:"required"`
	Wait bool   `json:"wait"`
}

// HandleDisconnect leaves a hub.
func (h *BridgeHandlers) HandleDisconnect(c *gin.Context) {
	var req disconnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url required"})
		return
	}

	if !req.Wait {
		if err := h.bridge.Disconnect(req.URL); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"url": req.URL, "state": "disconnecting"})
		return
	}

	out, err := h.bridge.DisconnectAndWait(c.Request.Context(), req.URL, h.config.WaitTimeout)
	h.respondOutcome(c, req.URL, out, err)
}

type messageRequest struct {
	HubURL  string `json:"hub_url" binding:"required"`
	Nick    string `json:"nick"`
	Message string `json:"message" binding:"required"`
}

// HandleSendMessage broadcasts a chat message to a hub, or sends a private
// message when a nick is given.
func (h *BridgeHandlers) HandleSendMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hub_url and message required"})
		return
	}

	var err error
	if req.Nick != "" {
		err = h.bridge.Engine().SendPrivateMessage(req.HubURL, req.Nick, req.Message)
	} else {
		err = h.bridge.Engine().SendMessage(req.HubURL, req.Message)
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

type searchRequest struct {
	Query      string `json:"query" binding:"required"`
	HubURL     string `json:"hub_url"`
	MinResults int    `json:"min_results"`
}

// HandleSearch issues a search and returns the results collected within the
// configured window.
func (h *BridgeHandlers) HandleSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query required"})
		return
	}
	if req.MinResults <= 0 {
		req.MinResults = 1
	}

	results, err := h.bridge.SearchAndWait(c.Request.Context(), engine.SearchQuery{
		Query:  req.Query,
		HubURL: req.HubURL,
	}, req.MinResults, h.config.SearchWindow)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": req.Query, "results": results})
}

type downloadRequest struct {
	Directory string `json:"directory" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Size      int64  `json:"size"`
	TTH       string `json:"tth"`
	Wait      bool   `json:"wait"`
}

// HandleDownload queues a download, optionally waiting for completion.
func (h *BridgeHandlers) HandleDownload(c *gin.Context) {
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "directory and name required"})
		return
	}

	if !req.Wait {
		if err := h.bridge.Engine().Download(req.Directory, req.Name, req.Size, req.TTH); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"state": "queued"})
		return
	}

	out, err := h.bridge.DownloadAndWait(c.Request.Context(), req.Directory, req.Name, req.Size, req.TTH, h.config.WaitTimeout)
	h.respondOutcome(c, req.Name, out, err)
}

// HandleListQueue lists the download queue.
func (h *BridgeHandlers) HandleListQueue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"queue": h.bridge.Engine().ListQueue()})
}

// HandleRemoveDownload removes a queued download by target path.
func (h *BridgeHandlers) HandleRemoveDownload(c *gin.Context) {
	target := c.Query("target")
	if target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target required"})
		return
	}
	if err := h.bridge.Engine().RemoveDownload(target); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": target})
}

// HandleNotFound provides a custom 404 handler.
func (h *BridgeHandlers) HandleNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":   "not_found",
		"service": "dcbridge",
		"message": "Endpoint not found",
	})
}

func (h *BridgeHandlers) respondOutcome(c *gin.Context, subject string, out bridge.Outcome, err error) {
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, bridge.ErrWaitPending) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	body := gin.H{"subject": subject, "outcome": out.Status.String()}
	if out.Reason != "" {
		body["reason"] = out.Reason
	}
	switch out.Status {
	case bridge.StatusSuccess:
		c.JSON(http.StatusOK, body)
	case bridge.StatusFailed:
		c.JSON(http.StatusBadGateway, body)
	case bridge.StatusTimeout:
		c.JSON(http.StatusGatewayTimeout, body)
	}
}
