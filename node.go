package hattrie

import (
	"github.com/outofforest/hattrie/ahtable"
	"github.com/outofforest/hattrie/slab"
)

// Node type tags. Every node of the trie is either an interior trie node or
// an array-hash bucket; buckets are further split into pure ones, holding
// suffixes of keys sharing the first byte implied by the parent slot, and
// hybrid ones, covering a range of first bytes kept inside the stored keys.
const (
	nodeTypeTrie         byte = 0x1
	nodeTypePureBucket   byte = 0x2
	nodeTypeHybridBucket byte = 0x4

	// nodeHasVal marks a trie node carrying the value of the key consumed
	// exactly at its depth.
	nodeHasVal byte = 0x8
)

// nodeChilds is the number of child slots of a trie node.
const nodeChilds = MaxChar + 1

// ref is a tagged reference to a child node: either a bucket or, when b is
// nil, a trie node stored in the slab cache. Contiguous child slots of one
// trie node may hold equal refs to share a single hybrid bucket.
type ref struct {
	b *ahtable.Table
	t slab.Addr
}

func (r ref) isTrie() bool {
	return r.b == nil
}

// node is an interior trie node. It is allocated from the slab cache, which
// writes its free list link over the first bytes of dead items and requires
// the first 8 bytes to hold no pointers; flag and its padding satisfy that
// requirement.
type node struct {
	flag byte
	val  Value
	xs   [nodeChilds]ref
}
