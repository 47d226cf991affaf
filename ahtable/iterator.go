package ahtable

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"
)

// Iterator walks the records of a table. An unsorted iterator visits slots in
// index order and records in arena order; a sorted one visits keys in
// lexicographic byte order.
//
// The table must not be mutated while a sorted iterator is in use. An
// unsorted iterator tolerates a single mutation: deleting the current record
// through Del.
type Iterator struct {
	t      *Table
	sorted bool

	// unsorted position
	slot int
	off  int

	// sorted positions, materialized up front
	refs []recordRef
	idx  int
}

type recordRef struct {
	slot int
	off  int
}

// Iter returns an iterator positioned at the first record.
func (t *Table) Iter(sorted bool) *Iterator {
	it := &Iterator{
		t:      t,
		sorted: sorted,
	}

	if sorted {
		it.refs = make([]recordRef, 0, t.used)
		for slot, a := range t.slots {
			for off := 0; off < len(a); {
				_, _, next := parseRecord(a, off)
				it.refs = append(it.refs, recordRef{slot: slot, off: off})
				off = next
			}
		}
		sort.Slice(it.refs, func(i, j int) bool {
			ki, _, _ := parseRecord(t.slots[it.refs[i].slot], it.refs[i].off)
			kj, _, _ := parseRecord(t.slots[it.refs[j].slot], it.refs[j].off)
			return bytes.Compare(ki, kj) < 0
		})
		return it
	}

	it.skipEmptySlots()
	return it
}

// Finished returns true once all the records have been visited.
func (it *Iterator) Finished() bool {
	if it.sorted {
		return it.idx >= len(it.refs)
	}
	return it.slot >= len(it.t.slots)
}

// Next advances the iterator to the following record.
func (it *Iterator) Next() {
	if it.Finished() {
		return
	}

	if it.sorted {
		it.idx++
		return
	}

	_, _, next := parseRecord(it.t.slots[it.slot], it.off)
	it.off = next
	it.skipEmptySlots()
}

// Key returns the key of the current record. The returned slice points into
// the slot arena and stays valid only until the next mutation of the table.
func (it *Iterator) Key() []byte {
	key, _, _ := parseRecord(it.t.slots[it.currentSlot()], it.currentOff())
	return key
}

// Val returns the pointer to the value cell of the current record. The
// pointer stays valid only until the next mutation of the table.
func (it *Iterator) Val() *Value {
	_, _, next := parseRecord(it.t.slots[it.currentSlot()], it.currentOff())
	return valueCell(it.t.slots[it.currentSlot()], next)
}

// Del removes the current record and moves the iterator to the following one.
// It is available on unsorted iterators only.
func (it *Iterator) Del() {
	if it.sorted {
		panic(errors.New("ahtable: deleting through a sorted iterator"))
	}

	a := it.t.slots[it.slot]
	_, _, next := parseRecord(a, it.off)
	it.t.slots[it.slot] = append(a[:it.off], a[next:]...)
	it.t.used--

	it.skipEmptySlots()
}

func (it *Iterator) currentSlot() int {
	if it.sorted {
		return it.refs[it.idx].slot
	}
	return it.slot
}

func (it *Iterator) currentOff() int {
	if it.sorted {
		return it.refs[it.idx].off
	}
	return it.off
}

// skipEmptySlots advances past exhausted arenas to the next record, if any.
func (it *Iterator) skipEmptySlots() {
	for it.slot < len(it.t.slots) && it.off >= len(it.t.slots[it.slot]) {
		it.slot++
		it.off = 0
	}
}
