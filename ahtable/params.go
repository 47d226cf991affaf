//go:build !test

package ahtable

const (
	// InitSize is the initial number of slots in a table. It must be a power
	// of two.
	InitSize = 4096
)
