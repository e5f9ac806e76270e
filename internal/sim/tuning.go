package sim

const (
	// ArenaWidth and ArenaHeight bound player movement. Bullets are allowed
	// to leave the arena.
	ArenaWidth  = 800.0
	ArenaHeight = 600.0

	// ProjectileSpeed is the fixed bullet speed in units per second.
	ProjectileSpeed = 300.0

	// bounceDamping is applied to the offending velocity component when a
	// player hits an arena wall. The sign flip makes it an inelastic bounce.
	bounceDamping = -0.8

	playerStartHealth = 100.0
)
