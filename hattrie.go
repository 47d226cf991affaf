package hattrie

import (
	"github.com/outofforest/hattrie/ahtable"
	"github.com/outofforest/hattrie/slab"
)

// Value is the machine word stored under each key.
type Value = ahtable.Value

// Trie maps arbitrary byte strings to values. Near the root keys are consumed
// byte by byte on trie nodes; the remaining suffixes live in array-hash
// buckets hanging off the deepest trie nodes. A bucket reaching BucketSize
// keys is burst into finer trie structure, so the depth of the trie adapts to
// the key set.
//
// The trie is not thread safe. Pointers returned by Get, TryGet and the
// iterator stay valid only until the next mutating operation.
type Trie struct {
	nodes *slab.Cache[node]
	root  slab.Addr
	m     int
}

// New creates an empty trie.
func New() *Trie {
	t := &Trie{
		nodes: slab.NewCache[node](),
	}

	b := ahtable.New()
	b.Flag = nodeTypeHybridBucket
	b.C0 = 0x00
	b.C1 = MaxChar
	t.root, _ = t.allocNode(ref{b: b})

	return t
}

// Size returns the number of keys stored in the trie.
func (t *Trie) Size() int {
	return t.m
}

// Get returns the pointer to the value cell of the key, inserting a record
// with the zero value first if the key is absent.
func (t *Trie) Get(key []byte) *Value {
	if len(key) == 0 {
		return t.useval(t.root)
	}

	parent := t.root
	k := key
	child := t.consume(&parent, &k, 0)
	if len(k) == 0 {
		return t.useval(child.t)
	}

	// A full bucket is burst before inserting into it. The burst rewires the
	// structure below parent, so the descent is repeated from there, and the
	// key may now end on a trie node instead.
	for child.b.Size() >= BucketSize {
		t.split(parent, child)
		child = t.consume(&parent, &k, 0)
		if len(k) == 0 {
			return t.useval(child.t)
		}
	}

	b := child.b
	before := b.Size()
	var val *Value
	if b.Flag&nodeTypePureBucket != 0 {
		val = b.Get(k[1:])
	} else {
		val = b.Get(k)
	}
	t.m += b.Size() - before

	return val
}

// TryGet returns the pointer to the value cell of the key, or nil if the key
// is absent.
func (t *Trie) TryGet(key []byte) *Value {
	child, k, ok := t.find(key)
	if !ok {
		return nil
	}
	if child.isTrie() {
		return &t.node(child.t).val
	}
	return child.b.TryGet(k)
}

// Del removes the key from the trie. It returns false if the key is absent.
// Buckets emptied by deletions are left in place.
func (t *Trie) Del(key []byte) bool {
	child, k, ok := t.find(key)
	if !ok {
		return false
	}
	if child.isTrie() {
		return t.clrval(child.t)
	}

	before := child.b.Size()
	deleted := child.b.Del(k)
	t.m -= before - child.b.Size()
	return deleted
}

// consume descends from parent through trie nodes, eating one key byte per
// level, until it reaches a bucket or the remaining key is no longer than
// brk. parent is updated to the trie node the returned child hangs off.
//
// With brk of zero the key may be consumed entirely on the trie path; the
// returned ref is then the trie node whose path spells the whole key, parent
// is that same node and the remaining key is empty.
func (t *Trie) consume(parent *slab.Addr, key *[]byte, brk int) ref {
	child := t.node(*parent).xs[(*key)[0]]
	for child.isTrie() && len(*key) > brk {
		*key = (*key)[1:]
		*parent = child.t
		if len(*key) == 0 {
			return child
		}
		child = t.node(*parent).xs[(*key)[0]]
	}
	return child
}

// find locates the node owning the key for the lookup and deletion paths.
// The descent stops one byte early so a pure bucket can be recognized and the
// byte implied by its parent slot stripped. It reports false if the key
// provably is not stored: the path ends on a trie node carrying no value.
func (t *Trie) find(key []byte) (ref, []byte, bool) {
	if len(key) == 0 {
		if t.node(t.root).flag&nodeHasVal == 0 {
			return ref{}, nil, false
		}
		return ref{t: t.root}, nil, true
	}

	parent := t.root
	k := key
	child := t.consume(&parent, &k, 1)

	if child.isTrie() {
		if t.node(child.t).flag&nodeHasVal == 0 {
			return ref{}, nil, false
		}
		return child, k, true
	}

	if child.b.Flag&nodeTypePureBucket != 0 {
		k = k[1:]
	}
	return child, k, true
}

// useval marks the node as carrying a value and returns the pointer to it.
func (t *Trie) useval(addr slab.Addr) *Value {
	n := t.node(addr)
	if n.flag&nodeHasVal == 0 {
		n.flag |= nodeHasVal
		t.m++
	}
	return &n.val
}

// clrval clears the value carried by the node, if any.
func (t *Trie) clrval(addr slab.Addr) bool {
	n := t.node(addr)
	if n.flag&nodeHasVal == 0 {
		return false
	}
	n.flag &^= nodeHasVal
	n.val = 0
	t.m--
	return true
}

func (t *Trie) node(addr slab.Addr) *node {
	return t.nodes.Get(addr)
}

// allocNode creates a trie node with all child slots pointing at the given
// ref.
func (t *Trie) allocNode(child ref) (slab.Addr, *node) {
	addr, n := t.nodes.Alloc()
	n.flag = nodeTypeTrie
	for i := range n.xs {
		n.xs[i] = child
	}
	return addr, n
}
