package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	server "ricochet/server"
)

// session adapts one websocket connection to the hub's command/broadcast
// protocol. It owns connection liveness: activity is refreshed by any inbound
// frame, and a recurring check closes sessions that go silent.
type session struct {
	id   uuid.UUID
	hub  *server.Hub
	conn *websocket.Conn
	cfg  Config
	log  *logrus.Entry

	send chan []byte
	done chan struct{}

	lastActivity atomic.Int64 // unix nanoseconds
	teardown     sync.Once
}

func newSession(hub *server.Hub, conn *websocket.Conn, cfg Config) *session {
	id := uuid.New()
	s := &session{
		id:   id,
		hub:  hub,
		conn: conn,
		cfg:  cfg,
		log:  cfg.Logger.WithField("session_id", id),
		send: make(chan []byte, cfg.SendBuffer),
		done: make(chan struct{}),
	}
	s.touch()
	return s
}

// run registers with the hub, starts the write pump, and blocks reading
// frames until the connection ends. Every exit path funnels through close,
// so the hub sees exactly one Disconnect per registration.
func (s *session) run() {
	s.hub.Connect(s.id, s.send)
	defer s.close()

	go s.writePump()
	s.readPump()
}

// close notifies the hub and tears the connection down. Safe to call from
// any pump; only the first call does anything.
func (s *session) close() {
	s.teardown.Do(func() {
		s.hub.Disconnect(s.id)
		close(s.done)
		if err := s.conn.Close(); err != nil {
			s.log.WithError(err).Debug("close failed")
		}
	})
}

func (s *session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

func (s *session) idleFor() time.Duration {
	return time.Duration(time.Now().UnixNano() - s.lastActivity.Load())
}

// readPump consumes frames until the connection errors or closes. Text
// frames are parsed as command envelopes; parse failures are logged and
// discarded without affecting the session.
func (s *session) readPump() {
	s.conn.SetPingHandler(func(appData string) error {
		s.touch()
		return s.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(s.cfg.WriteWait))
	})
	s.conn.SetPongHandler(func(string) error {
		s.touch()
		return nil
	})

	for {
		msgType, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.WithError(err).Debug("read failed")
			}
			return
		}

		s.touch()
		if msgType != websocket.TextMessage {
			continue
		}

		var cmd server.ClientCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			s.log.WithError(err).Warn("discarding malformed envelope")
			continue
		}
		if len(cmd.Data) != 2 {
			s.log.WithField("kind", cmd.Kind).Warn("discarding envelope with short payload")
			continue
		}

		s.hub.Command(s.id, cmd)
	}
}

// writePump relays hub broadcasts to the transport and runs the liveness
// check. A check that finds the session idle past the cutoff closes it;
// every other check sends a ping probe.
func (s *session) writePump() {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	defer s.close()

	for {
		select {
		case <-s.done:
			return

		case payload := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait)); err != nil {
				s.log.WithError(err).Debug("set write deadline failed")
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.log.WithError(err).Debug("write failed")
				return
			}

		case <-ticker.C:
			if s.idleFor() > s.cfg.IdleTimeout {
				s.log.Info("closing idle session")
				message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "idle timeout")
				if err := s.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(s.cfg.WriteWait)); err != nil {
					s.log.WithError(err).Debug("write close failed")
				}
				return
			}
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteWait)); err != nil {
				s.log.WithError(err).Debug("ping failed")
				return
			}
		}
	}
}
