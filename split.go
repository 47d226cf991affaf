package hattrie

import (
	"github.com/outofforest/hattrie/ahtable"
	"github.com/outofforest/hattrie/slab"
)

// split bursts a full bucket hanging off the parent trie node.
//
// A pure bucket is converted in place: a fresh trie node takes over its
// parent slot, consuming one more byte of every key, and the bucket becomes
// the all-range hybrid bucket of the new node. A hybrid bucket is split into
// two buckets covering adjacent first-byte ranges.
//
// Either way the caller must re-descend: the structure below parent changed
// and the node owning the key may be a different one now.
func (t *Trie) split(parent slab.Addr, child ref) {
	b := child.b
	if b.Flag&nodeTypeHybridBucket != 0 {
		t.splitHybrid(parent, b)
		return
	}

	addr, n := t.allocNode(child)
	t.node(parent).xs[b.C0] = ref{t: addr}

	// The empty suffix has no byte left to branch on; its value moves onto
	// the new trie node.
	if val := b.TryGet(nil); val != nil {
		n.val = *val
		n.flag |= nodeHasVal
		b.Del(nil)
	}

	b.C0 = 0x00
	b.C1 = MaxChar
	b.Flag = nodeTypeHybridBucket
}

func (t *Trie) splitHybrid(parent slab.Addr, b *ahtable.Table) {
	j := splitPoint(b)
	c0, c1 := b.C0, b.C1

	// One side reuses the original bucket whenever it stays hybrid; a side
	// shrinking to a single character always needs a fresh pure bucket.
	var left, right *ahtable.Table
	switch {
	case int(j)+1 == int(c1):
		right = ahtable.New()
		if j == c0 {
			left = ahtable.New()
		} else {
			left = b
		}
	default:
		right = b
		left = ahtable.New()
	}

	left.C0 = c0
	left.C1 = j
	left.Flag = nodeTypeHybridBucket
	if left.C0 == left.C1 {
		left.Flag = nodeTypePureBucket
	}
	right.C0 = j + 1
	right.C1 = c1
	right.Flag = nodeTypeHybridBucket
	if right.C0 == right.C1 {
		right.Flag = nodeTypePureBucket
	}

	p := t.node(parent)
	for c := int(c0); c <= int(j); c++ {
		p.xs[c] = ref{b: left}
	}
	for c := int(j) + 1; c <= int(c1); c++ {
		p.xs[c] = ref{b: right}
	}

	splitFill(b, left, right, j)
}

// splitPoint chooses the byte splitting the bucket's range so the two sides
// come out as balanced as possible. The left side starts with the keys of C0
// and is never extended to take all the keys; it holds all of them only when
// every key starts with C0.
func splitPoint(b *ahtable.Table) byte {
	var cs [nodeChilds]int
	for it := b.Iter(false); !it.Finished(); it.Next() {
		cs[it.Key()[0]]++
	}

	all := b.Size()
	j := int(b.C0)
	leftM := cs[j]
	rightM := all - leftM

	for j+1 < int(b.C1) {
		d := abs((leftM + cs[j+1]) - (rightM - cs[j+1]))
		if d > abs(leftM-rightM) || leftM+cs[j+1] >= all {
			break
		}
		j++
		leftM += cs[j]
		rightM -= cs[j]
	}

	return byte(j)
}

// splitFill distributes the keys of the source bucket between the two sides.
// Keys landing in the reused bucket stay where they are; keys moving into the
// fresh bucket are inserted there and deleted from the source.
func splitFill(src, left, right *ahtable.Table, split byte) {
	it := src.Iter(false)
	for !it.Finished() {
		key := it.Key()

		dst := left
		if key[0] > split {
			dst = right
		}

		if dst == src {
			it.Next()
			continue
		}

		if dst.Flag&nodeTypePureBucket != 0 {
			dst.Insert(key[1:], *it.Val())
		} else {
			dst.Insert(key, *it.Val())
		}

		if src == left || src == right {
			it.Del()
		} else {
			it.Next()
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
