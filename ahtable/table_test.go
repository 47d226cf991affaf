package ahtable

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertAndLookup(t *testing.T) {
	requireT := require.New(t)

	table := New()
	requireT.Zero(table.Size())
	requireT.Nil(table.TryGet([]byte("missing")))

	table.Insert([]byte("alpha"), 1)
	table.Insert([]byte("beta"), 2)

	requireT.Equal(2, table.Size())
	requireT.Equal(Value(1), *table.TryGet([]byte("alpha")))
	requireT.Equal(Value(2), *table.TryGet([]byte("beta")))

	// Inserting an existing key overwrites its value without growing the
	// table.
	table.Insert([]byte("alpha"), 3)
	requireT.Equal(2, table.Size())
	requireT.Equal(Value(3), *table.TryGet([]byte("alpha")))
}

func TestGetCreatesMissingKeys(t *testing.T) {
	requireT := require.New(t)

	table := New()

	val := table.Get([]byte("key"))
	requireT.NotNil(val)
	requireT.Equal(Value(0), *val)
	requireT.Equal(1, table.Size())

	*val = 42
	requireT.Equal(Value(42), *table.TryGet([]byte("key")))

	// A second Get returns the same cell instead of creating another record.
	requireT.Equal(Value(42), *table.Get([]byte("key")))
	requireT.Equal(1, table.Size())
}

func TestDel(t *testing.T) {
	requireT := require.New(t)

	table := New()
	requireT.False(table.Del([]byte("missing")))

	table.Insert([]byte("a"), 1)
	table.Insert([]byte("b"), 2)
	table.Insert([]byte("c"), 3)

	requireT.True(table.Del([]byte("b")))
	requireT.Equal(2, table.Size())
	requireT.Nil(table.TryGet([]byte("b")))
	requireT.Equal(Value(1), *table.TryGet([]byte("a")))
	requireT.Equal(Value(3), *table.TryGet([]byte("c")))

	requireT.False(table.Del([]byte("b")))
}

func TestZeroLengthKey(t *testing.T) {
	requireT := require.New(t)

	table := New()
	requireT.Nil(table.TryGet(nil))

	table.Insert(nil, 7)
	requireT.Equal(1, table.Size())
	requireT.Equal(Value(7), *table.TryGet(nil))
	requireT.Equal(Value(7), *table.TryGet([]byte{}))

	requireT.True(table.Del(nil))
	requireT.Zero(table.Size())
	requireT.Nil(table.TryGet(nil))
}

func TestRehash(t *testing.T) {
	requireT := require.New(t)

	table := New()

	// Way more keys than the initial slot count, forcing several rehashes
	// and slot collisions on the way.
	const n = 64 * InitSize
	for i := 0; i < n; i++ {
		table.Insert(key(i), Value(i))
	}

	requireT.Equal(n, table.Size())
	for i := 0; i < n; i++ {
		val := table.TryGet(key(i))
		requireT.NotNil(val)
		requireT.Equal(Value(i), *val)
	}
}

func TestSortedIteration(t *testing.T) {
	requireT := require.New(t)

	table := New()

	keys := make([][]byte, 0, 300)
	for i := 0; i < 300; i++ {
		k := key(i * 7)
		keys = append(keys, k)
		table.Insert(k, Value(i))
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i], keys[j]) < 0
	})

	collected := make([][]byte, 0, len(keys))
	for it := table.Iter(true); !it.Finished(); it.Next() {
		collected = append(collected, append([]byte{}, it.Key()...))
	}

	requireT.Equal(keys, collected)
}

func TestUnsortedIterationVisitsEveryRecordOnce(t *testing.T) {
	requireT := require.New(t)

	table := New()

	expected := map[string]Value{}
	for i := 0; i < 200; i++ {
		k := key(i)
		expected[string(k)] = Value(i)
		table.Insert(k, Value(i))
	}

	visited := map[string]Value{}
	for it := table.Iter(false); !it.Finished(); it.Next() {
		k := string(it.Key())
		_, seen := visited[k]
		requireT.False(seen)
		visited[k] = *it.Val()
	}

	requireT.Equal(expected, visited)
}

func TestIteratorDel(t *testing.T) {
	requireT := require.New(t)

	table := New()
	for i := 0; i < 100; i++ {
		table.Insert(key(i), Value(i))
	}

	// Delete every record with an even value while iterating.
	it := table.Iter(false)
	for !it.Finished() {
		if *it.Val()%2 == 0 {
			it.Del()
			continue
		}
		it.Next()
	}

	requireT.Equal(50, table.Size())
	for i := 0; i < 100; i++ {
		val := table.TryGet(key(i))
		if i%2 == 0 {
			requireT.Nil(val)
		} else {
			requireT.NotNil(val)
			requireT.Equal(Value(i), *val)
		}
	}
}

func TestRandomKeys(t *testing.T) {
	requireT := require.New(t)

	table := New()
	expected := map[string]Value{}

	for i := 0; i < 5000; i++ {
		var k [8]byte
		_, err := rand.Read(k[:])
		requireT.NoError(err)

		expected[string(k[:])] = Value(i)
		table.Insert(k[:], Value(i))
	}

	requireT.Equal(len(expected), table.Size())
	for k, v := range expected {
		val := table.TryGet([]byte(k))
		requireT.NotNil(val)
		requireT.Equal(v, *val)
	}
}

func key(i int) []byte {
	return []byte(fmt.Sprintf("key-%05d", i))
}
