package columndict_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/micadb/mica/pkg/columndict"
)

func TestInfoEmpty(t *testing.T) {
	info := columndict.NewInfo(4)

	require.Equal(t, 0, info.Len())
	require.Equal(t, 0, info.SizeOfLastChunk())
	require.Empty(t, info.Chunks())
	require.Nil(t, info.SortOrderIndex())
	require.Nil(t, info.SortReverseOrderIndex())

	_, ok := info.Value(0)
	require.False(t, ok)
	_, ok = info.SurrogateKey([]byte("anything"))
	require.False(t, ok)
}

func TestInfoValueAcrossContainers(t *testing.T) {
	const chunkSize = 4

	// Build containers of sizes [2, 2, 4, 1] through incremental loads.
	info := columndict.NewInfo(chunkSize)
	mustLoad(t, info, values(2, 0))
	mustLoad(t, info, values(7, 2))
	require.Len(t, info.Chunks(), 4)

	for k, want := range values(9, 0) {
		got, ok := info.Value(k)
		require.True(t, ok)
		require.Equal(t, want, got)
	}

	_, ok := info.Value(-1)
	require.False(t, ok)
	_, ok = info.Value(9)
	require.False(t, ok)
}

func TestInfoValueZeroLength(t *testing.T) {
	info := columndict.NewInfo(4)
	mustLoad(t, info, [][]byte{[]byte("a"), {}, []byte("c")})

	// An empty value is a valid dictionary entry; its key must resolve.
	v, ok := info.Value(1)
	require.True(t, ok)
	require.Empty(t, v)

	_, ok = info.Value(3)
	require.False(t, ok)
}

func TestInfoSurrogateKey(t *testing.T) {
	const chunkSize = 2

	info := columndict.NewInfo(chunkSize)
	mustLoad(t, info, [][]byte{[]byte("cherry"), []byte("apple"), []byte("banana")})

	// Ranks: apple(1) < banana(2) < cherry(0).
	sortReader := &mockSortIndexReader{order: []int32{2, 0, 1}, inverted: []int32{1, 2, 0}}
	provider := &mockProvider{dict: &mockValueReader{failAfter: -1}, sort: sortReader}
	loader := newTestLoader(t, provider, chunkSize)
	require.NoError(t, loader.Load(info, testColumn, 30, 30, true))

	for value, want := range map[string]int{"cherry": 0, "apple": 1, "banana": 2} {
		key, ok := info.SurrogateKey([]byte(value))
		require.True(t, ok, value)
		require.Equal(t, want, key, value)
	}

	_, ok := info.SurrogateKey([]byte("aardvark"))
	require.False(t, ok)
	_, ok = info.SurrogateKey([]byte("durian"))
	require.False(t, ok)
	_, ok = info.SurrogateKey([]byte("blueberry"))
	require.False(t, ok)
}

func TestInfoSurrogateKeyWithStaleIndex(t *testing.T) {
	const chunkSize = 4

	info := columndict.NewInfo(chunkSize)
	mustLoad(t, info, [][]byte{[]byte("b"), []byte("a")})

	sortReader := &mockSortIndexReader{order: []int32{1, 0}, inverted: []int32{1, 0}}
	provider := &mockProvider{dict: &mockValueReader{failAfter: -1}, sort: sortReader}
	loader := newTestLoader(t, provider, chunkSize)
	require.NoError(t, loader.Load(info, testColumn, 0, 0, true))

	// Values appended after the refresh are invisible to the index until
	// the next refresh.
	mustLoad(t, info, [][]byte{[]byte("c")})

	key, ok := info.SurrogateKey([]byte("a"))
	require.True(t, ok)
	require.Equal(t, 1, key)
	_, ok = info.SurrogateKey([]byte("c"))
	require.False(t, ok)
}

func TestInfoByteSize(t *testing.T) {
	info := columndict.NewInfo(4)
	require.Zero(t, info.ByteSize())

	mustLoad(t, info, [][]byte{[]byte("ab"), []byte("cdef")})
	require.Equal(t, int64(6), info.ByteSize())

	sortReader := &mockSortIndexReader{order: []int32{0, 1}, inverted: []int32{0, 1}}
	provider := &mockProvider{dict: &mockValueReader{failAfter: -1}, sort: sortReader}
	loader := newTestLoader(t, provider, 4)
	require.NoError(t, loader.Load(info, testColumn, 6, 6, true))
	require.Equal(t, int64(6+16), info.ByteSize())
}
