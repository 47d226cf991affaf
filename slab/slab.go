package slab

import (
	"unsafe"

	"github.com/pkg/errors"
)

const (
	// Size is the size of the address space covered by a single slab.
	// It is a power of two so the owning slab of any item address may be
	// recovered by masking.
	Size = 65536

	// headerSize is the part of the slab address space reserved at the front.
	// Keeping it non-zero guarantees that no item is ever placed at offset 0,
	// which makes the zero Addr usable as the null address.
	headerSize = 64

	// minItemSize is the minimum size of a single item. The free list link is
	// written over the first bytes of a dead item, so an item must be able to
	// hold it.
	minItemSize = 8

	// minColor is the minimum space reserved for cache coloring.
	minColor = 32

	// colorStep is the increment of the rolling color counter applied to each
	// new slab.
	colorStep = 8

	addrMask = ^uint32(Size - 1)

	noSlab int32 = -1
)

// Addr addresses an item allocated from a Cache. The high 16 bits select the
// slab, the low 16 bits are the byte offset of the item inside the slab's
// address space. The zero value is the null address.
type Addr uint32

// NullAddr is the address pointing nowhere.
const NullAddr Addr = 0

// Base returns the base address of the slab owning the given address.
func Base(addr Addr) Addr {
	return Addr(uint32(addr) & addrMask)
}

type slab[T any] struct {
	items []T

	prev, next int32
	bufsFree   uint32
	head       uint32
	base       uint32
}

func (s *slab[T]) isEmpty() bool {
	return s.bufsFree == uint32(len(s.items))
}

// Cache allocates and recycles fixed-size items of type T. Items are kept in
// slabs covering Size bytes of address space each; free items of a slab form
// an intrusive singly-linked list whose links are written over the first
// bytes of dead items. The first 8 bytes of T must therefore not contain
// pointers.
//
// Slabs with at least one free item are kept on the free list, the remaining
// ones on the full list. Allocation of new slabs is on-demand, indexes of
// reaped slabs are reused.
//
// The cache is not thread safe.
type Cache[T any] struct {
	itemSize uint32
	color    uint32

	slabs     []*slab[T]
	recycled  []int32
	slabsFree int32
	slabsFull int32
}

// NewCache creates a cache of items of type T. No memory is allocated until
// the first item is requested.
func NewCache[T any]() *Cache[T] {
	var v T
	if unsafe.Sizeof(v) < minItemSize {
		panic(errors.Errorf("slab: item of %d bytes cannot hold the free list link", unsafe.Sizeof(v)))
	}
	itemSize := (uint32(unsafe.Sizeof(v)) + 7) &^ 7
	if itemSize > Size-headerSize-minColor {
		panic(errors.Errorf("slab: item size %d exceeds slab size", itemSize))
	}

	return &Cache[T]{
		itemSize:  itemSize,
		slabsFree: noSlab,
		slabsFull: noSlab,
	}
}

// Alloc returns a zeroed item together with its address.
func (c *Cache[T]) Alloc() (Addr, *T) {
	if c.slabsFree == noSlab {
		c.newSlab()
	}

	si := c.slabsFree
	s := c.slabs[si]

	off := s.head
	item := &s.items[(off-s.base)/c.itemSize]
	s.head = *link(item)
	*link(item) = 0
	s.bufsFree--

	if s.bufsFree == 0 {
		c.listRemove(si)
		c.listInsert(&c.slabsFull, si)
	}

	return Addr(uint32(si)<<16 | off), item
}

// Get returns the item stored under the given address.
func (c *Cache[T]) Get(addr Addr) *T {
	s := c.slabs[addr>>16]
	return &s.items[(uint32(addr&0xffff)-s.base)/c.itemSize]
}

// Free recycles the item. Its memory is zeroed and reused by a later Alloc.
func (c *Cache[T]) Free(addr Addr) {
	if addr == NullAddr {
		return
	}

	si := int32(addr >> 16)
	s := c.slabs[si]
	off := uint32(addr & 0xffff)

	item := &s.items[(off-s.base)/c.itemSize]
	var zero T
	*item = zero
	*link(item) = s.head
	s.head = off
	s.bufsFree++

	if s.bufsFree == 1 {
		c.listRemove(si)
		c.listInsert(&c.slabsFree, si)
	}
}

// Reap releases fully-empty slabs and returns the number of released ones.
// Their indexes are reused by slabs created later.
func (c *Cache[T]) Reap() int {
	count := 0
	si := c.slabsFree
	for si != noSlab {
		next := c.slabs[si].next
		if c.slabs[si].isEmpty() {
			c.listRemove(si)
			c.slabs[si] = nil
			c.recycled = append(c.recycled, si)
			count++
		}
		si = next
	}
	return count
}

// Destroy releases all the slabs. Addresses obtained from the cache must not
// be used afterwards.
func (c *Cache[T]) Destroy() {
	c.slabs = nil
	c.recycled = nil
	c.slabsFree = noSlab
	c.slabsFull = noSlab
	c.color = 0
}

func (c *Cache[T]) newSlab() {
	var si int32
	switch {
	case len(c.recycled) > 0:
		si = c.recycled[len(c.recycled)-1]
		c.recycled = c.recycled[:len(c.recycled)-1]
	default:
		if len(c.slabs) >= 1<<16 {
			panic(errors.Errorf("slab: address space exhausted, %d slabs allocated", len(c.slabs)))
		}
		si = int32(len(c.slabs))
		c.slabs = append(c.slabs, nil)
	}

	dataSize := uint32(Size - headerSize)
	slack := dataSize % c.itemSize
	if slack < minColor {
		slack = minColor
	}
	c.color += colorStep
	color := c.color % slack
	dataSize -= color

	bufsCount := dataSize / c.itemSize
	base := uint32(headerSize) + color

	s := &slab[T]{
		items:    make([]T, bufsCount),
		prev:     noSlab,
		next:     noSlab,
		bufsFree: bufsCount,
		head:     base,
		base:     base,
	}

	// Free list link of each item points at the next one, the last item
	// terminates the list with the null offset.
	for i := uint32(0); i < bufsCount-1; i++ {
		*link(&s.items[i]) = base + (i+1)*c.itemSize
	}
	*link(&s.items[bufsCount-1]) = 0

	c.slabs[si] = s
	c.listInsert(&c.slabsFree, si)
}

func (c *Cache[T]) listRemove(si int32) {
	s := c.slabs[si]
	if s.prev != noSlab {
		c.slabs[s.prev].next = s.next
	}
	if s.next != noSlab {
		c.slabs[s.next].prev = s.prev
	}
	switch si {
	case c.slabsFree:
		c.slabsFree = s.next
	case c.slabsFull:
		c.slabsFull = s.next
	}
	s.prev = noSlab
	s.next = noSlab
}

func (c *Cache[T]) listInsert(head *int32, si int32) {
	s := c.slabs[si]
	s.prev = noSlab
	s.next = *head
	if *head != noSlab {
		c.slabs[*head].prev = si
	}
	*head = si
}

func link[T any](item *T) *uint32 {
	return (*uint32)(unsafe.Pointer(item))
}
