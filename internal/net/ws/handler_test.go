package ws

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	server "ricochet/server"
)

type decodedEntity struct {
	Kind     string  `json:"kind"`
	ID       string  `json:"id"`
	Owner    *string `json:"owner"`
	Position struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"position"`
	Velocity struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"velocity"`
}

type decodedState struct {
	TS       int64                    `json:"ts"`
	Entities map[string]decodedEntity `json:"entities"`
}

func startTestServer(t *testing.T, cfg Config) (*server.Hub, string, func()) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg.Logger = logger

	hub := server.NewHubWithConfig(server.HubConfig{
		TickInterval: 5 * time.Millisecond,
		Logger:       logger,
	})

	stop := make(chan struct{})
	go hub.RunSimulation(stop)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewHandler(hub, cfg).Handle)
	srv := httptest.NewServer(mux)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	cleanup := func() {
		srv.Close()
		close(stop)
	}
	return hub, wsURL, cleanup
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	return conn
}

// waitForState reads broadcast frames until the predicate accepts a snapshot.
func waitForState(t *testing.T, conn *websocket.Conn, match func(decodedState) bool) decodedState {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if err := conn.SetReadDeadline(deadline); err != nil {
			t.Fatalf("set read deadline: %v", err)
		}
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read state frame: %v", err)
		}

		var env server.Envelope[string]
		if err := json.Unmarshal(payload, &env); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		if env.Kind != server.KindGameState {
			continue
		}

		var state decodedState
		if err := json.Unmarshal([]byte(env.Data), &state); err != nil {
			t.Fatalf("unmarshal state payload: %v", err)
		}
		if match(state) {
			return state
		}
	}
	t.Fatalf("timed out waiting for a matching snapshot")
	return decodedState{}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func soleEntity(state decodedState) decodedEntity {
	for _, entity := range state.Entities {
		return entity
	}
	return decodedEntity{}
}

func TestSessionReceivesSpawnedPlayer(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t, Config{})
	defer cleanup()

	conn := dial(t, wsURL)
	defer conn.Close()

	state := waitForState(t, conn, func(s decodedState) bool {
		return len(s.Entities) == 1
	})

	player := soleEntity(state)
	if player.Kind != "Player" {
		t.Fatalf("entity kind = %q, want Player", player.Kind)
	}
	if player.Position.X < 0 || player.Position.X > 800 || player.Position.Y < 0 || player.Position.Y > 600 {
		t.Fatalf("player spawned outside arena: %+v", player.Position)
	}
	if player.Velocity.X != 0 || player.Velocity.Y != 0 {
		t.Fatalf("player spawned with velocity %+v", player.Velocity)
	}
}

func TestMoveAndFireEndToEnd(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t, Config{})
	defer cleanup()

	conn := dial(t, wsURL)
	defer conn.Close()

	initial := waitForState(t, conn, func(s decodedState) bool {
		return len(s.Entities) == 1
	})
	player := soleEntity(initial)

	// Fire while stationary: the bullet spawns at the player's position and
	// flies toward the click point at fixed speed.
	fire := server.ClientCommand{Kind: server.KindFire, Data: []float64{player.Position.X + 10, player.Position.Y}}
	if err := conn.WriteJSON(fire); err != nil {
		t.Fatalf("write fire: %v", err)
	}

	withBullet := waitForState(t, conn, func(s decodedState) bool {
		for _, entity := range s.Entities {
			if entity.Kind == "Bullet" {
				return true
			}
		}
		return false
	})
	for _, entity := range withBullet.Entities {
		if entity.Kind != "Bullet" {
			continue
		}
		if entity.Owner == nil || *entity.Owner != player.ID {
			t.Fatalf("bullet owner = %v, want %s", entity.Owner, player.ID)
		}
		if math.Abs(entity.Velocity.X-300) > 0.5 || math.Abs(entity.Velocity.Y) > 0.5 {
			t.Fatalf("bullet velocity = %+v, want about (300, 0)", entity.Velocity)
		}
		// The bullet has been in flight for at most a few ticks.
		if math.Abs(entity.Position.Y-player.Position.Y) > 0.5 || entity.Position.X < player.Position.X-0.5 || entity.Position.X > player.Position.X+50 {
			t.Fatalf("bullet position = %+v, want near %+v", entity.Position, player.Position)
		}
	}

	move := server.ClientCommand{Kind: server.KindMove, Data: []float64{10, 0}}
	if err := conn.WriteJSON(move); err != nil {
		t.Fatalf("write move: %v", err)
	}

	// The impulse sets velocity.x to 10; a wall hit in the meantime would
	// have damped it to -8.
	waitForState(t, conn, func(s decodedState) bool {
		entity, ok := s.Entities[player.ID]
		if !ok {
			return false
		}
		return math.Abs(entity.Velocity.X-10) < 1e-6 || math.Abs(entity.Velocity.X+8) < 1e-6
	})
}

func TestMalformedInputKeepsSessionAlive(t *testing.T) {
	hub, wsURL, cleanup := startTestServer(t, Config{})
	defer cleanup()

	conn := dial(t, wsURL)
	defer conn.Close()

	initial := waitForState(t, conn, func(s decodedState) bool {
		return len(s.Entities) == 1
	})
	player := soleEntity(initial)

	garbage := [][]byte{
		[]byte("not json at all"),
		[]byte(`{"kind":"move","data":[1]}`),
		[]byte(`{"kind":"move","data":"sideways"}`),
		[]byte(`{"kind":"warp","data":[1,2]}`),
	}
	for _, payload := range garbage {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			t.Fatalf("write garbage: %v", err)
		}
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}); err != nil {
		t.Fatalf("write binary frame: %v", err)
	}

	// The session must still accept valid commands afterwards.
	move := server.ClientCommand{Kind: server.KindMove, Data: []float64{3, 4}}
	if err := conn.WriteJSON(move); err != nil {
		t.Fatalf("write move after garbage: %v", err)
	}

	state := waitForState(t, conn, func(s decodedState) bool {
		entity, ok := s.Entities[player.ID]
		return ok && (entity.Velocity.X != 0 || entity.Velocity.Y != 0)
	})
	if len(state.Entities) != 1 {
		t.Fatalf("garbage input spawned entities: %d", len(state.Entities))
	}

	if diag := hub.DiagnosticsSnapshot(); diag.Sessions != 1 {
		t.Fatalf("sessions = %d after malformed input, want 1", diag.Sessions)
	}
}

func TestClosingConnectionRemovesPlayer(t *testing.T) {
	hub, wsURL, cleanup := startTestServer(t, Config{})
	defer cleanup()

	connA := dial(t, wsURL)
	connB := dial(t, wsURL)
	defer connB.Close()

	waitForState(t, connB, func(s decodedState) bool {
		return len(s.Entities) == 2
	})

	if err := connA.Close(); err != nil {
		t.Fatalf("close A: %v", err)
	}

	waitForState(t, connB, func(s decodedState) bool {
		return len(s.Entities) == 1
	})

	waitFor(t, "registry to shrink", func() bool {
		diag := hub.DiagnosticsSnapshot()
		return diag.Sessions == 1 && diag.Entities == 1
	})
}

func TestIdleSessionIsDisconnected(t *testing.T) {
	hub, wsURL, cleanup := startTestServer(t, Config{
		HeartbeatInterval: 20 * time.Millisecond,
		IdleTimeout:       80 * time.Millisecond,
	})
	defer cleanup()

	conn := dial(t, wsURL)
	defer conn.Close()

	waitFor(t, "session to register", func() bool {
		return hub.DiagnosticsSnapshot().Sessions == 1
	})

	// Never read or write: the client's ping handler never runs, so the
	// server sees no pongs and no traffic.
	waitFor(t, "idle session to be dropped", func() bool {
		diag := hub.DiagnosticsSnapshot()
		return diag.Sessions == 0 && diag.Entities == 0
	})
}

func TestPingTrafficKeepsSessionAlive(t *testing.T) {
	hub, wsURL, cleanup := startTestServer(t, Config{
		HeartbeatInterval: 20 * time.Millisecond,
		IdleTimeout:       80 * time.Millisecond,
	})
	defer cleanup()

	conn := dial(t, wsURL)
	defer conn.Close()

	waitFor(t, "session to register", func() bool {
		return hub.DiagnosticsSnapshot().Sessions == 1
	})

	// Ping well past the idle cutoff; each ping refreshes activity.
	stopAt := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(stopAt) {
		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
			t.Fatalf("write ping: %v", err)
		}
		time.Sleep(25 * time.Millisecond)
	}

	if diag := hub.DiagnosticsSnapshot(); diag.Sessions != 1 {
		t.Fatalf("pinging session was dropped: sessions = %d", diag.Sessions)
	}
}
