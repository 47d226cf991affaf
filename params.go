//go:build !test

package hattrie

const (
	// BucketSize is the number of keys a bucket may reach before it is burst
	// on the next insertion into it.
	BucketSize = 16384

	// MaxChar is the highest key byte handled by the trie. 0xff covers the
	// full byte alphabet, 0x7f restricts it to 7-bit ASCII.
	MaxChar = 0xff
)
