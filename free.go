package hattrie

import (
	"github.com/outofforest/hattrie/slab"
)

// Release returns every trie node to the slab cache and destroys the cache.
// The walk is iterative: bursts may have built a trie deep enough for a
// recursive one to exhaust the goroutine stack. The trie must not be used
// afterwards.
func (t *Trie) Release() {
	work := []ref{{t: t.root}}
	for len(work) > 0 {
		r := work[len(work)-1]
		work = work[:len(work)-1]

		if !r.isTrie() {
			continue
		}

		n := t.node(r.t)
		for i := 0; i < nodeChilds; i++ {
			// A run of equal refs shares one hybrid bucket; visit it once.
			if i > 0 && n.xs[i] == n.xs[i-1] {
				continue
			}
			work = append(work, n.xs[i])
		}
		t.nodes.Free(r.t)
	}

	t.nodes.Destroy()
	t.root = slab.NullAddr
	t.m = 0
}
