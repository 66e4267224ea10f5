package columndict

import (
	"bytes"
	"sort"
	"sync"
)

// A Chunk is one container of dictionary values in append order.
type Chunk [][]byte

// Info is the in-memory dictionary for one column. Values are held in an
// ordered list of chunk containers; concatenating the containers yields the
// full dictionary in key order, so a value's position is its surrogate key.
//
// Containers are appended whole by the loader and may be shorter than the
// chunk size when they continue a previously partial chunk, so key lookups
// walk cumulative container lengths rather than indexing by key/chunkSize.
//
// All methods are safe for concurrent readers. Loads must be serialized by
// the owner; see the package documentation.
type Info struct {
	mtx sync.RWMutex

	chunkSize  int
	chunks     []Chunk
	size       int
	valueBytes int64

	sortOrderIndex        []int32
	sortReverseOrderIndex []int32
}

// NewInfo creates an empty dictionary sized for chunks of chunkSize values.
// The chunk size must match the one used by the writer that produced the
// dictionary files; [Loader.Load] rejects a store built with a different
// chunk size than its own.
func NewInfo(chunkSize int) *Info {
	return &Info{chunkSize: chunkSize}
}

// ChunkSize returns the chunk size the dictionary was built with.
func (i *Info) ChunkSize() int { return i.chunkSize }

// Len returns the total number of values in the dictionary.
func (i *Info) Len() int {
	i.mtx.RLock()
	defer i.mtx.RUnlock()
	return i.size
}

// SizeOfLastChunk returns the fill of the last logical chunk: 0 when the
// dictionary is empty or the last chunk is closed, otherwise a value in
// (0, chunkSize).
func (i *Info) SizeOfLastChunk() int {
	i.mtx.RLock()
	defer i.mtx.RUnlock()
	return i.size % i.chunkSize
}

// Value returns the value for the given surrogate key. It returns false
// when key is out of range. Values may be empty; presence is reported
// through the second return value, never inferred from the value itself.
func (i *Info) Value(key int) ([]byte, bool) {
	i.mtx.RLock()
	defer i.mtx.RUnlock()
	return i.valueLocked(key)
}

func (i *Info) valueLocked(key int) ([]byte, bool) {
	if key < 0 || key >= i.size {
		return nil, false
	}
	for _, c := range i.chunks {
		if key < len(c) {
			return c[key], true
		}
		key -= len(c)
	}
	return nil, false
}

// SurrogateKey returns the key of value, located by binary search over the
// sort order index. It returns false when the value is absent or when no
// sort index has been loaded. Keys appended after the sort index was last
// refreshed are not found until the index is refreshed.
func (i *Info) SurrogateKey(value []byte) (int, bool) {
	i.mtx.RLock()
	defer i.mtx.RUnlock()

	n := len(i.sortReverseOrderIndex)
	if n == 0 {
		return 0, false
	}
	r := sort.Search(n, func(r int) bool {
		v, _ := i.valueLocked(int(i.sortReverseOrderIndex[r]))
		return bytes.Compare(v, value) >= 0
	})
	if r == n {
		return 0, false
	}
	key := int(i.sortReverseOrderIndex[r])
	v, ok := i.valueLocked(key)
	if !ok || !bytes.Equal(v, value) {
		return 0, false
	}
	return key, true
}

// Chunks returns the chunk containers in order. The returned slice is a
// copy but shares the underlying value data; callers must not mutate it.
func (i *Info) Chunks() []Chunk {
	i.mtx.RLock()
	defer i.mtx.RUnlock()
	return append([]Chunk(nil), i.chunks...)
}

// SortOrderIndex returns the key-to-rank permutation, or nil when no sort
// index has been loaded. Callers must not mutate the returned slice.
func (i *Info) SortOrderIndex() []int32 {
	i.mtx.RLock()
	defer i.mtx.RUnlock()
	return i.sortOrderIndex
}

// SortReverseOrderIndex returns the rank-to-key permutation, or nil when no
// sort index has been loaded. Callers must not mutate the returned slice.
func (i *Info) SortReverseOrderIndex() []int32 {
	i.mtx.RLock()
	defer i.mtx.RUnlock()
	return i.sortReverseOrderIndex
}

// ByteSize returns the approximate memory held by the dictionary's values
// and sort indexes, used by the cache manager's eviction budget.
func (i *Info) ByteSize() int64 {
	i.mtx.RLock()
	defer i.mtx.RUnlock()
	return i.valueBytes + 4*int64(len(i.sortOrderIndex)+len(i.sortReverseOrderIndex))
}

func (i *Info) appendChunks(chunks []Chunk) {
	i.mtx.Lock()
	defer i.mtx.Unlock()
	for _, c := range chunks {
		i.chunks = append(i.chunks, c)
		i.size += len(c)
		for _, v := range c {
			i.valueBytes += int64(len(v))
		}
	}
}

// setSortIndexes installs both permutations in one critical section so
// readers never observe one refreshed array next to a stale one.
func (i *Info) setSortIndexes(order, inverted []int32) {
	i.mtx.Lock()
	defer i.mtx.Unlock()
	i.sortOrderIndex = order
	i.sortReverseOrderIndex = inverted
}
