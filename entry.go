package oamap

// Entry is a key-value pair stored inline in a Map slot.
//
// Pointers to an Entry obtained from a Cursor stay valid until the next
// structural mutation of the map (an insert that grows, Rehash, Reserve,
// Clear, Release or a move). The Key field must not be modified in place.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}
