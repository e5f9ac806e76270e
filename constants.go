package server

import "time"

const (
	// tickInterval paces the simulation at roughly 60 Hz. The physics delta
	// is still measured from the wall clock, so scheduling jitter stretches
	// or shrinks individual steps instead of losing time.
	tickInterval = 16 * time.Millisecond
)
