package server

import (
	"encoding/json"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ricochet/server/internal/sim"
)

// Hub is the simulation authority: the single owner of world state and the
// registry of live sessions. Sessions reach it only through its exported
// methods; every world mutation happens under the hub's lock, either in a
// command handler or in the tick loop.
type Hub struct {
	mu          sync.Mutex
	world       *sim.World
	subscribers map[uuid.UUID]chan<- []byte

	config HubConfig
	logger *logrus.Logger

	tick          atomic.Uint64
	broadcastSize atomic.Int64
}

// HubConfig tunes the tick loop. Zero values fall back to defaults.
type HubConfig struct {
	TickInterval time.Duration
	Logger       *logrus.Logger
	Rand         *rand.Rand
}

// DefaultHubConfig returns the production tuning.
func DefaultHubConfig() HubConfig {
	return HubConfig{TickInterval: tickInterval}
}

// NewHub creates a hub with default configuration.
func NewHub() *Hub {
	return NewHubWithConfig(DefaultHubConfig())
}

// NewHubWithConfig creates a hub with an empty world and no subscribers.
func NewHubWithConfig(cfg HubConfig) *Hub {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = tickInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	world := sim.NewWorld()
	if cfg.Rand != nil {
		world = sim.NewWorldWithRand(cfg.Rand)
	}

	return &Hub{
		world:       world,
		subscribers: make(map[uuid.UUID]chan<- []byte),
		config:      cfg,
		logger:      logger,
	}
}

// Connect registers a session's outbound channel and spawns its player.
// Calling Connect twice for the same id overwrites the previous registration;
// the session protocol guarantees one call per connection.
func (h *Hub) Connect(id uuid.UUID, send chan<- []byte) {
	h.mu.Lock()
	h.subscribers[id] = send
	player := h.world.SpawnPlayer(id)
	spawn := player.Position
	h.mu.Unlock()

	h.logger.WithFields(logrus.Fields{
		"session_id": id,
		"x":          spawn.X,
		"y":          spawn.Y,
	}).Info("session connected")
}

// Disconnect removes a session's channel and its player entity. Disconnecting
// an unknown id is a no-op.
func (h *Hub) Disconnect(id uuid.UUID) {
	h.mu.Lock()
	_, known := h.subscribers[id]
	delete(h.subscribers, id)
	h.world.Remove(id)
	h.mu.Unlock()

	if known {
		h.logger.WithField("session_id", id).Info("session disconnected")
	}
}

// Command applies a client command to the world. Unknown kinds, malformed
// payloads, and commands for ids without a live player are discarded without
// error: a command racing a disconnect must land harmlessly.
func (h *Hub) Command(id uuid.UUID, cmd ClientCommand) {
	if len(cmd.Data) < 2 {
		h.logger.WithFields(logrus.Fields{
			"session_id": id,
			"kind":       cmd.Kind,
		}).Warn("discarding command with short payload")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch cmd.Kind {
	case KindMove:
		if !h.world.ApplyImpulse(id, cmd.Data[0], cmd.Data[1]) {
			h.logger.WithField("session_id", id).Debug("move for unknown player")
		}
	case KindFire:
		if _, ok := h.world.FireAt(id, sim.Vec2{X: cmd.Data[0], Y: cmd.Data[1]}); !ok {
			h.logger.WithField("session_id", id).Debug("fire for unknown player")
		}
	default:
		h.logger.WithFields(logrus.Fields{
			"session_id": id,
			"kind":       cmd.Kind,
		}).Debug("discarding unrecognized command kind")
	}
}

// RunSimulation drives the fixed tick loop until stop closes. Each tick
// advances the world by the wall-clock delta since the previous tick and
// broadcasts the resulting snapshot to every subscriber.
func (h *Hub) RunSimulation(stop <-chan struct{}) {
	ticker := time.NewTicker(h.config.TickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			if dt < 0 {
				dt = 0
			}
			last = now
			h.step(now, dt)
		}
	}
}

// step advances the world one tick and fans the snapshot out. The snapshot
// reflects exactly the commands that had been applied when the lock was
// acquired; commands arriving mid-broadcast wait for the next tick.
func (h *Hub) step(now time.Time, dt float64) {
	h.mu.Lock()
	h.world.Advance(dt, now)

	state, err := json.Marshal(h.world)
	if err != nil {
		h.mu.Unlock()
		h.logger.WithError(err).Error("failed to marshal world state")
		return
	}

	subs := make(map[uuid.UUID]chan<- []byte, len(h.subscribers))
	for id, send := range h.subscribers {
		subs[id] = send
	}
	h.mu.Unlock()

	payload, err := json.Marshal(Envelope[string]{Kind: KindGameState, Data: string(state)})
	if err != nil {
		h.logger.WithError(err).Error("failed to marshal state envelope")
		return
	}

	h.tick.Add(1)
	h.broadcastSize.Store(int64(len(payload)))

	for id, send := range subs {
		select {
		case send <- payload:
		default:
			// Slow or dead sessions lose frames; they are pruned by their
			// own Disconnect, never from inside the broadcast loop.
			h.logger.WithField("session_id", id).Debug("dropping state frame for slow session")
		}
	}
}

// Diagnostics is a point-in-time view of the hub for the diagnostics endpoint.
type Diagnostics struct {
	Tick            uint64 `json:"tick"`
	WorldTS         int64  `json:"worldTs"`
	Entities        int    `json:"entities"`
	Sessions        int    `json:"sessions"`
	TickIntervalMS  int64  `json:"tickIntervalMillis"`
	LastPayloadSize int64  `json:"lastPayloadBytes"`
}

// DiagnosticsSnapshot reports current tick, population, and payload numbers.
func (h *Hub) DiagnosticsSnapshot() Diagnostics {
	h.mu.Lock()
	entities := len(h.world.Entities)
	sessions := len(h.subscribers)
	worldTS := h.world.TS
	h.mu.Unlock()

	return Diagnostics{
		Tick:            h.tick.Load(),
		WorldTS:         worldTS,
		Entities:        entities,
		Sessions:        sessions,
		TickIntervalMS:  h.config.TickInterval.Milliseconds(),
		LastPayloadSize: h.broadcastSize.Load(),
	}
}
