package oamap

import "errors"

// Errors reported by Map and Cursor operations. Callers match them with
// errors.Is; returned errors may wrap them with the offending key or value.
var (
	// ErrKeyNotFound is returned by At and Bucket for an absent key.
	ErrKeyNotFound = errors.New("oamap: key not found")

	// ErrInvalidIterator is returned when Erase or EraseRange gets a cursor
	// that is at End, belongs to another map, or no longer points at a live
	// entry.
	ErrInvalidIterator = errors.New("oamap: invalid iterator")

	// ErrInvalidArgument is returned for an out-of-range argument, such as a
	// max load factor outside (0, 1].
	ErrInvalidArgument = errors.New("oamap: invalid argument")

	// ErrUninitialized is returned when a zero Cursor is dereferenced,
	// advanced or erased.
	ErrUninitialized = errors.New("oamap: uninitialized iterator")

	// ErrOutOfBounds is returned when a cursor at End is advanced or
	// dereferenced.
	ErrOutOfBounds = errors.New("oamap: iterator out of bounds")

	// ErrMemoryStrategy is returned when a Memory implementation cannot
	// serve the requested entry type on this platform.
	ErrMemoryStrategy = errors.New("oamap: memory strategy unsupported")
)
