//go:build !oamap_checks

package opt

const Checks_ = false
