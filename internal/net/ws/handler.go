package ws

import (
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	server "ricochet/server"
)

// Config tunes per-session liveness and write behavior. Zero values fall back
// to production defaults; tests shrink the windows to keep runs fast.
type Config struct {
	// HeartbeatInterval is how often the liveness check runs. Every check
	// that does not trip the idle cutoff sends a ping probe.
	HeartbeatInterval time.Duration
	// IdleTimeout closes the session when no activity (ping, pong, or any
	// frame) has been observed for this long.
	IdleTimeout time.Duration
	WriteWait   time.Duration
	SendBuffer  int
	Logger      *logrus.Logger
}

const (
	defaultHeartbeatInterval = 5 * time.Second
	defaultIdleTimeout       = 10 * time.Second
	defaultWriteWait         = 10 * time.Second
	defaultSendBuffer        = 32
)

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	if c.WriteWait <= 0 {
		c.WriteWait = defaultWriteWait
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = defaultSendBuffer
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	return c
}

// Handler upgrades HTTP requests and runs one session per connection.
type Handler struct {
	hub      *server.Hub
	config   Config
	upgrader websocket.Upgrader
}

// NewHandler builds the websocket entry point for the given hub.
func NewHandler(hub *server.Hub, cfg Config) *Handler {
	return &Handler{
		hub:    hub,
		config: cfg.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
	}
}

// Handle upgrades the request and blocks until the session ends.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.config.Logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	newSession(h.hub, conn, h.config).run()
}
