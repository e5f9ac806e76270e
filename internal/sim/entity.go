package sim

import (
	"encoding/json"
	"math/rand"

	"github.com/google/uuid"
)

// EntityKind discriminates serialized entity variants.
type EntityKind string

const (
	KindPlayer EntityKind = "Player"
	KindBullet EntityKind = "Bullet"
)

// Entity is implemented by every object the world can hold. The variant set
// is closed: callers recover a concrete type with a type switch rather than
// through a runtime registry.
type Entity interface {
	EntityID() uuid.UUID
	// Update advances the entity's kinematics in place by delta seconds.
	Update(delta float64)
}

// Player is a connected client's avatar. Exactly one Player exists per live
// session, keyed by the session id.
type Player struct {
	ID       uuid.UUID `json:"id"`
	Health   float64   `json:"health"`
	Position Vec2      `json:"position"`
	Velocity Vec2      `json:"velocity"`
}

// NewPlayer spawns a player at a uniformly random arena position with zero
// velocity.
func NewPlayer(id uuid.UUID, rng *rand.Rand) *Player {
	return &Player{
		ID:       id,
		Health:   playerStartHealth,
		Position: Vec2{X: rng.Float64() * ArenaWidth, Y: rng.Float64() * ArenaHeight},
		Velocity: Vec2{},
	}
}

func (p *Player) EntityID() uuid.UUID { return p.ID }

// Update integrates velocity and bounces off the arena walls: the position is
// clamped to the boundary and the corresponding velocity component is damped
// and inverted.
func (p *Player) Update(delta float64) {
	p.Position.X += p.Velocity.X * delta
	p.Position.Y += p.Velocity.Y * delta

	if p.Position.X < 0 {
		p.Position.X = 0
		p.Velocity.X *= bounceDamping
	} else if p.Position.X > ArenaWidth {
		p.Position.X = ArenaWidth
		p.Velocity.X *= bounceDamping
	}

	if p.Position.Y < 0 {
		p.Position.Y = 0
		p.Velocity.Y *= bounceDamping
	} else if p.Position.Y > ArenaHeight {
		p.Position.Y = ArenaHeight
		p.Velocity.Y *= bounceDamping
	}
}

// MarshalJSON tags the player with its variant discriminator.
func (p *Player) MarshalJSON() ([]byte, error) {
	type alias Player
	return json.Marshal(struct {
		Kind EntityKind `json:"kind"`
		*alias
	}{KindPlayer, (*alias)(p)})
}

// Bullet is a fired projectile. Owner records the player that fired it, when
// known. Bullets fly unconditionally and ignore the arena bounds.
type Bullet struct {
	ID       uuid.UUID  `json:"id"`
	Owner    *uuid.UUID `json:"owner"`
	Position Vec2       `json:"position"`
	Velocity Vec2       `json:"velocity"`
}

// NewBullet creates a bullet with a fresh id.
func NewBullet(owner *uuid.UUID, position, velocity Vec2) *Bullet {
	return &Bullet{
		ID:       uuid.New(),
		Owner:    owner,
		Position: position,
		Velocity: velocity,
	}
}

func (b *Bullet) EntityID() uuid.UUID { return b.ID }

// Update integrates velocity with no bounds handling.
func (b *Bullet) Update(delta float64) {
	b.Position.X += b.Velocity.X * delta
	b.Position.Y += b.Velocity.Y * delta
}

// MarshalJSON tags the bullet with its variant discriminator.
func (b *Bullet) MarshalJSON() ([]byte, error) {
	type alias Bullet
	return json.Marshal(struct {
		Kind EntityKind `json:"kind"`
		*alias
	}{KindBullet, (*alias)(b)})
}
