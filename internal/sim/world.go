package sim

import (
	"encoding/json"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// World is the authoritative game state: a wall-clock timestamp refreshed
// every tick plus every live entity keyed by id. World is not safe for
// concurrent use; the hub serializes all access behind its lock.
type World struct {
	TS       int64
	Entities map[uuid.UUID]Entity

	rng *rand.Rand
}

// NewWorld creates an empty world seeded from the wall clock.
func NewWorld() *World {
	return NewWorldWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewWorldWithRand creates an empty world using the provided random source.
// Tests use it to pin spawn positions.
func NewWorldWithRand(rng *rand.Rand) *World {
	return &World{
		TS:       time.Now().UnixMilli(),
		Entities: make(map[uuid.UUID]Entity),
		rng:      rng,
	}
}

// SpawnPlayer inserts a freshly spawned player keyed by id. A second spawn for
// the same id overwrites the first; the session protocol guarantees one call
// per connection.
func (w *World) SpawnPlayer(id uuid.UUID) *Player {
	player := NewPlayer(id, w.rng)
	w.Entities[id] = player
	return player
}

// Remove deletes the entity keyed by id. Removing an absent id is a no-op.
func (w *World) Remove(id uuid.UUID) {
	delete(w.Entities, id)
}

// Player returns the player keyed by id. The lookup fails when the id is
// unknown or keys a non-player entity.
func (w *World) Player(id uuid.UUID) (*Player, bool) {
	player, ok := w.Entities[id].(*Player)
	return player, ok
}

// ApplyImpulse adds (dx, dy) to the velocity of the player keyed by id.
// Impulses accumulate; this is not an absolute set. Reports whether a player
// was found.
func (w *World) ApplyImpulse(id uuid.UUID, dx, dy float64) bool {
	player, ok := w.Player(id)
	if !ok {
		return false
	}
	player.Velocity.X += dx
	player.Velocity.Y += dy
	return true
}

// FireAt spawns a bullet owned by the player keyed by id, positioned at the
// player and aimed at the target point with fixed projectile speed. Reports
// whether a player was found; no bullet spawns otherwise.
func (w *World) FireAt(id uuid.UUID, target Vec2) (*Bullet, bool) {
	player, ok := w.Player(id)
	if !ok {
		return nil, false
	}

	angle := target.Sub(player.Position).Angle()
	velocity := FromAngle(angle).Scale(ProjectileSpeed)

	owner := id
	bullet := NewBullet(&owner, player.Position, velocity)
	w.Entities[bullet.ID] = bullet
	return bullet, true
}

// Advance updates every entity by delta seconds and refreshes the world
// timestamp to now. Iteration order across entities is unspecified.
func (w *World) Advance(delta float64, now time.Time) {
	for _, entity := range w.Entities {
		entity.Update(delta)
	}
	w.TS = now.UnixMilli()
}

// MarshalJSON encodes the world as {"ts": ..., "entities": {...}} with each
// entity carrying its variant discriminator.
func (w *World) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TS       int64                 `json:"ts"`
		Entities map[uuid.UUID]Entity `json:"entities"`
	}{w.TS, w.Entities})
}
