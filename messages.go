package server

// Envelope is the generic tagged wire message used in both directions: Kind
// selects the semantic meaning of Data. Inbound commands carry a 2-element
// numeric payload; outbound broadcasts carry the JSON-encoded world state as
// a string.
type Envelope[T any] struct {
	Kind string `json:"kind"`
	Data T      `json:"data"`
}

// Wire kinds understood by the hub and the sessions.
const (
	KindMove      = "move"
	KindFire      = "fire"
	KindGameState = "game_state"
)

// ClientCommand is the inbound envelope shape: a command kind plus a
// 2-element vector. For "move" the vector is a velocity impulse (dx, dy);
// for "fire" it is the click target (x, y).
type ClientCommand = Envelope[[]float64]
