//go:build oamap_checks

package opt

// Checks_ enables verification of table invariants after every mutation.
// Build with -tags oamap_checks; every violation panics.
const Checks_ = true
