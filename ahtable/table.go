package ahtable

import (
	"bytes"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/outofforest/photon"
	"github.com/pkg/errors"
)

// Value is the machine word stored together with each key.
type Value uint64

// valueSize is the size of the value cell appended to each record.
const valueSize = 8

// Table is an array-hash table. Keys are hashed into slots and each slot is a
// packed arena of records laid out as:
//
//	[uvarint key length][key bytes][padding][value cell]
//
// The padding keeps every value cell, and so every record, aligned to the
// value size, making the cells addressable in place. All keys hashing into
// the same slot share its arena. The table grows by doubling the slot count
// once the number of keys exceeds it.
//
// Flag, C0 and C1 belong to the layer owning the table (the trie tags buckets
// with them); the table itself never reads them.
type Table struct {
	Flag byte
	C0   byte
	C1   byte

	used  int
	slots [][]byte
}

// New creates an empty table with the initial number of slots.
func New() *Table {
	return &Table{
		slots: make([][]byte, InitSize),
	}
}

// Size returns the number of keys stored in the table.
func (t *Table) Size() int {
	return t.used
}

// Insert stores the value under the key, overwriting the previous value if
// the key is already present.
func (t *Table) Insert(key []byte, val Value) {
	*t.ensure(key) = val
}

// Get returns the pointer to the value cell of the key, inserting a record
// with the zero value first if the key is absent. The pointer stays valid
// only until the next mutation of the table.
func (t *Table) Get(key []byte) *Value {
	return t.ensure(key)
}

// TryGet returns the pointer to the value cell of the key, or nil if the key
// is absent. The pointer stays valid only until the next mutation of the
// table.
func (t *Table) TryGet(key []byte) *Value {
	slot, _, next, found := t.findRecord(key)
	if !found {
		return nil
	}
	return valueCell(t.slots[slot], next)
}

// Del removes the key from the table. It returns false if the key is absent.
func (t *Table) Del(key []byte) bool {
	slot, off, next, found := t.findRecord(key)
	if !found {
		return false
	}

	a := t.slots[slot]
	t.slots[slot] = append(a[:off], a[next:]...)
	t.used--
	return true
}

func (t *Table) ensure(key []byte) *Value {
	slot, _, next, found := t.findRecord(key)
	if found {
		return valueCell(t.slots[slot], next)
	}

	// Growing first keeps the returned pointer valid: a rehash after the
	// append would leave it dangling in the abandoned slot arena.
	if t.used+1 > len(t.slots) {
		t.rehash()
		slot = t.slotOf(key)
	}

	var hdr [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], uint64(len(key)))

	a := t.slots[slot]
	a = append(a, hdr[:n]...)
	a = append(a, key...)
	for len(a)%valueSize != 0 {
		a = append(a, 0)
	}
	var zero Value
	a = append(a, photon.NewFromValue(&zero).B...)
	t.slots[slot] = a
	t.used++

	return valueCell(a, len(a))
}

func (t *Table) rehash() {
	slots := make([][]byte, 2*len(t.slots))
	mask := uint64(len(slots) - 1)

	for _, a := range t.slots {
		for off := 0; off < len(a); {
			key, _, next := parseRecord(a, off)
			slot := xxhash.Sum64(key) & mask
			slots[slot] = append(slots[slot], a[off:next]...)
			off = next
		}
	}

	t.slots = slots
}

func (t *Table) slotOf(key []byte) int {
	return int(xxhash.Sum64(key) & uint64(len(t.slots)-1))
}

// findRecord locates the record of the key inside its slot arena. It returns
// the slot, the offset of the record and the offset right past it.
func (t *Table) findRecord(key []byte) (slot, off, next int, found bool) {
	slot = t.slotOf(key)
	a := t.slots[slot]

	for off = 0; off < len(a); off = next {
		var k []byte
		k, _, next = parseRecord(a, off)
		if len(k) == len(key) && bytes.Equal(k, key) {
			return slot, off, next, true
		}
	}
	return slot, 0, 0, false
}

// parseRecord reads the record starting at the offset and returns its key,
// the offset of its value cell and the offset right past the record.
func parseRecord(a []byte, off int) (key []byte, valOff, next int) {
	klen, n := binary.Uvarint(a[off:])
	if n <= 0 {
		panic(errors.Errorf("ahtable: corrupted record header at offset %d", off))
	}
	keyOff := off + n
	keyEnd := keyOff + int(klen)
	valOff = (keyEnd + valueSize - 1) &^ (valueSize - 1)
	return a[keyOff:keyEnd], valOff, valOff + valueSize
}

// valueCell returns the pointer to the value cell ending at the offset.
func valueCell(a []byte, next int) *Value {
	return photon.NewFromBytes[Value](a[next-valueSize : next]).V
}
