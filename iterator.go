package hattrie

import (
	"github.com/outofforest/hattrie/ahtable"
)

// Iterator walks all the keys of the trie. With sorted iteration keys come
// out in strict lexicographic byte order; unsorted iteration visits the same
// set in structure order.
//
// The trie must not be mutated while the iterator is in use. Key and Val
// return views which stay valid only until the iterator advances.
type Iterator struct {
	t      *Trie
	sorted bool

	// key holds the byte per trie level consumed on the way down to the
	// current bucket; level bytes of it are meaningful.
	key   []byte
	level int

	// A trie node carrying a value emits that key before any of the node's
	// subtree. It has no suffix in any bucket, hence nil key.
	hasNilKey bool
	nilVal    Value

	ti    *ahtable.Iterator
	stack []frame
	buf   []byte
}

// frame is a node scheduled for the visit: the child of its parent's slot c
// at the given trie depth.
type frame struct {
	node  ref
	c     byte
	level int
}

// Iter returns an iterator positioned at the first key.
func (t *Trie) Iter(sorted bool) *Iterator {
	it := &Iterator{
		t:      t,
		sorted: sorted,
		key:    make([]byte, 0, 16),
		stack:  []frame{{node: ref{t: t.root}}},
	}
	it.drain()
	return it
}

// Finished returns true once all the keys have been visited.
func (it *Iterator) Finished() bool {
	return len(it.stack) == 0 && it.ti == nil && !it.hasNilKey
}

// Next advances the iterator to the following key.
func (it *Iterator) Next() {
	if it.Finished() {
		return
	}

	switch {
	case it.ti != nil && !it.ti.Finished():
		it.ti.Next()
	case it.hasNilKey:
		it.hasNilKey = false
		it.nilVal = 0
		it.nextNode()
	}

	it.drain()
}

// Key returns the current key assembled from the trie path and the bucket
// suffix.
func (it *Iterator) Key() []byte {
	if it.Finished() {
		return nil
	}

	var sub []byte
	if !it.hasNilKey {
		sub = it.ti.Key()
	}

	need := it.level + len(sub)
	if cap(it.buf) < need {
		it.buf = make([]byte, need)
	}
	it.buf = it.buf[:need]
	copy(it.buf, it.key[:it.level])
	copy(it.buf[it.level:], sub)
	return it.buf
}

// Val returns the pointer to the value cell of the current key. For a key
// whose value is carried by a trie node it points to a copy held by the
// iterator, so writes through it do not reach the trie.
func (it *Iterator) Val() *Value {
	if it.hasNilKey {
		return &it.nilVal
	}
	if it.Finished() {
		return nil
	}
	return it.ti.Val()
}

// drain pops nodes until a key to emit is found: either a non-exhausted
// bucket iterator or a value carried by a trie node.
func (it *Iterator) drain() {
	for (it.ti == nil || it.ti.Finished()) && !it.hasNilKey && len(it.stack) > 0 {
		it.ti = nil
		it.nextNode()
	}
	if it.ti != nil && it.ti.Finished() {
		it.ti = nil
	}
}

// nextNode visits the top node of the stack.
func (it *Iterator) nextNode() {
	if len(it.stack) == 0 {
		return
	}

	f := it.stack[len(it.stack)-1]
	it.stack = it.stack[:len(it.stack)-1]

	if f.node.isTrie() {
		n := it.t.node(f.node.t)
		it.pushchar(f.level, f.c)

		if n.flag&nodeHasVal != 0 {
			it.hasNilKey = true
			it.nilVal = n.val
		}

		// Children are pushed in descending slot order so they pop in
		// ascending one. Runs of equal refs share one hybrid bucket and are
		// pushed once.
		for j := nodeChilds - 1; j >= 0; j-- {
			if j < nodeChilds-1 && n.xs[j] == n.xs[j+1] {
				continue
			}
			it.stack = append(it.stack, frame{node: n.xs[j], c: byte(j), level: f.level + 1})
		}
		return
	}

	b := f.node.b
	if b.Flag&nodeTypePureBucket != 0 {
		// The byte implied by the parent slot is part of every key of a pure
		// bucket but stripped from the stored suffixes.
		it.pushchar(f.level, f.c)
	} else {
		// A hybrid bucket keeps the first byte inside the stored keys.
		it.level = f.level - 1
	}
	it.ti = b.Iter(it.sorted)
}

// pushchar records the byte consumed by the parent slot at the given level.
func (it *Iterator) pushchar(level int, c byte) {
	for len(it.key) < level {
		it.key = append(it.key, 0)
	}
	if level > 0 {
		it.key[level-1] = c
	}
	it.level = level
}
