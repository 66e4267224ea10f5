package filestore_test

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/micadb/mica/pkg/columndict"
	"github.com/micadb/mica/pkg/columndict/filestore"
)

var (
	testTable  = columndict.TableIdentifier{Database: "default", Table: "sales"}
	testColumn = columndict.ColumnIdentifier{ID: "country"}
)

// writeDictionary appends values to the column's dictionary file and
// returns the end offset of each record.
func writeDictionary(t *testing.T, provider *filestore.Provider, vs [][]byte) []int64 {
	t.Helper()

	path := provider.DictionaryPath(testTable, testColumn)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	w, err := filestore.NewDictionaryWriter(path)
	require.NoError(t, err)

	offsets := make([]int64, 0, len(vs))
	for _, v := range vs {
		off, err := w.Append(v)
		require.NoError(t, err)
		offsets = append(offsets, off)
	}
	require.NoError(t, w.Close())
	return offsets
}

func testValues(n, from int) [][]byte {
	vs := make([][]byte, n)
	for i := range vs {
		vs[i] = []byte(fmt.Sprintf("city-%04d", from+i))
	}
	return vs
}

func drain(t *testing.T, it columndict.ValueIterator) [][]byte {
	t.Helper()
	var out [][]byte
	for {
		v, err := it.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, v)
	}
}

func TestDictionaryRoundTrip(t *testing.T) {
	provider := filestore.NewProvider(t.TempDir())
	vs := testValues(6, 0)
	offsets := writeDictionary(t, provider, vs)

	reader, err := provider.DictionaryReader(testTable, testColumn)
	require.NoError(t, err)
	defer func() { require.NoError(t, reader.Close()) }()

	t.Run("full range", func(t *testing.T) {
		it, err := reader.Read(0, offsets[5])
		require.NoError(t, err)
		require.Equal(t, vs, drain(t, it))
	})

	t.Run("offset ranges partition the file", func(t *testing.T) {
		it, err := reader.Read(0, offsets[2])
		require.NoError(t, err)
		require.Equal(t, vs[:3], drain(t, it))

		it, err = reader.Read(offsets[2], offsets[5])
		require.NoError(t, err)
		require.Equal(t, vs[3:], drain(t, it))
	})

	t.Run("empty range", func(t *testing.T) {
		it, err := reader.Read(offsets[2], offsets[2])
		require.NoError(t, err)
		require.Empty(t, drain(t, it))
	})

	t.Run("invalid range", func(t *testing.T) {
		_, err := reader.Read(10, 5)
		require.Error(t, err)
	})
}

func TestDictionaryReadMidRecordFails(t *testing.T) {
	provider := filestore.NewProvider(t.TempDir())
	offsets := writeDictionary(t, provider, testValues(3, 0))

	reader, err := provider.DictionaryReader(testTable, testColumn)
	require.NoError(t, err)
	defer func() { require.NoError(t, reader.Close()) }()

	// An end offset inside the final record cuts its body short.
	it, err := reader.Read(0, offsets[2]-1)
	require.NoError(t, err)

	var got int
	for {
		_, err := it.Next()
		if err == io.EOF {
			t.Fatal("expected a read failure before EOF")
		}
		if err != nil {
			break
		}
		got++
	}
	require.Equal(t, 2, got)
}

func TestDictionaryReadCorruptLength(t *testing.T) {
	provider := filestore.NewProvider(t.TempDir())
	offsets := writeDictionary(t, provider, testValues(1, 0))

	// Append a record header claiming a body far larger than the file.
	path := provider.DictionaryPath(testTable, testColumn)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], 1<<40)
	_, err = f.Write(buf[:n])
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reader, err := provider.DictionaryReader(testTable, testColumn)
	require.NoError(t, err)
	defer func() { require.NoError(t, reader.Close()) }()

	it, err := reader.Read(0, offsets[0]+int64(n))
	require.NoError(t, err)

	_, err = it.Next()
	require.NoError(t, err)
	_, err = it.Next()
	require.Error(t, err)
	require.Contains(t, err.Error(), "exceeds")
}

func TestDictionaryWriterResumesAppending(t *testing.T) {
	provider := filestore.NewProvider(t.TempDir())
	first := writeDictionary(t, provider, testValues(3, 0))
	second := writeDictionary(t, provider, testValues(2, 3))
	require.Greater(t, second[0], first[2])

	reader, err := provider.DictionaryReader(testTable, testColumn)
	require.NoError(t, err)
	defer func() { require.NoError(t, reader.Close()) }()

	it, err := reader.Read(first[2], second[1])
	require.NoError(t, err)
	require.Equal(t, testValues(2, 3), drain(t, it))

	size, err := reader.(*filestore.DictionaryReader).Size()
	require.NoError(t, err)
	require.Equal(t, second[1], size)
}

func TestSortIndexRoundTrip(t *testing.T) {
	provider := filestore.NewProvider(t.TempDir())
	path := provider.SortIndexPath(testTable, testColumn)

	order := []int32{2, 0, 1}
	inverted := []int32{1, 2, 0}
	require.NoError(t, filestore.WriteSortIndex(path, order, inverted))

	reader, err := provider.SortIndexReader(testTable, testColumn)
	require.NoError(t, err)
	defer func() { require.NoError(t, reader.Close()) }()

	gotOrder, err := reader.ReadSortIndex()
	require.NoError(t, err)
	require.Equal(t, order, gotOrder)

	gotInverted, err := reader.ReadInvertedSortIndex()
	require.NoError(t, err)
	require.Equal(t, inverted, gotInverted)
}

func TestSortIndexReadOutOfOrder(t *testing.T) {
	provider := filestore.NewProvider(t.TempDir())
	path := provider.SortIndexPath(testTable, testColumn)
	require.NoError(t, filestore.WriteSortIndex(path, []int32{0}, []int32{0}))

	reader, err := provider.SortIndexReader(testTable, testColumn)
	require.NoError(t, err)
	defer func() { require.NoError(t, reader.Close()) }()

	_, err = reader.ReadInvertedSortIndex()
	require.Error(t, err)
}

func TestWriteSortIndexRejectsNonInverse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad"+".sortindex")

	require.Error(t, filestore.WriteSortIndex(path, []int32{0, 1}, []int32{0}))
	require.Error(t, filestore.WriteSortIndex(path, []int32{1, 1}, []int32{1, 0}))
}

func TestSortIndexDigestMismatch(t *testing.T) {
	provider := filestore.NewProvider(t.TempDir())
	path := provider.SortIndexPath(testTable, testColumn)
	require.NoError(t, filestore.WriteSortIndex(path, []int32{1, 0}, []int32{1, 0}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[0] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	reader, err := provider.SortIndexReader(testTable, testColumn)
	require.NoError(t, err)
	defer func() { require.NoError(t, reader.Close()) }()

	_, err = reader.ReadSortIndex()
	require.Error(t, err)
	require.Contains(t, err.Error(), "digest mismatch")
}

func TestProviderMissingFiles(t *testing.T) {
	provider := filestore.NewProvider(t.TempDir())

	_, err := provider.DictionaryReader(testTable, testColumn)
	require.ErrorIs(t, err, columndict.ErrSourceUnavailable)

	_, err = provider.SortIndexReader(testTable, testColumn)
	require.ErrorIs(t, err, columndict.ErrSourceUnavailable)
}

// TestLoaderAgainstFiles drives the chunk loader end to end against real
// dictionary and sort-index files, including an incremental second load.
func TestLoaderAgainstFiles(t *testing.T) {
	const chunkSize = 4

	provider := filestore.NewProvider(t.TempDir())
	vs := testValues(6, 0)
	offsets := writeDictionary(t, provider, vs)

	loader, err := columndict.NewLoader(testTable, provider, chunkSize, nil, prometheus.NewPedanticRegistry())
	require.NoError(t, err)

	info := columndict.NewInfo(chunkSize)
	require.NoError(t, loader.Load(info, testColumn, 0, offsets[5], false))
	require.Equal(t, 6, info.Len())
	require.Equal(t, 2, info.SizeOfLastChunk())

	// The writer appends three more values and rewrites the sort index;
	// the loader catches up from the previous end offset.
	more := testValues(3, 6)
	writeDictionary(t, provider, more)

	order := make([]int32, 9)
	inverted := make([]int32, 9)
	for i := range order {
		order[i] = int32(i)
		inverted[i] = int32(i)
	}
	require.NoError(t, filestore.WriteSortIndex(provider.SortIndexPath(testTable, testColumn), order, inverted))

	reader, err := provider.DictionaryReader(testTable, testColumn)
	require.NoError(t, err)
	size, err := reader.(*filestore.DictionaryReader).Size()
	require.NoError(t, err)
	require.NoError(t, reader.Close())

	require.NoError(t, loader.Load(info, testColumn, offsets[5], size, true))
	require.Equal(t, 9, info.Len())

	for k, want := range append(vs, more...) {
		got, ok := info.Value(k)
		require.True(t, ok)
		require.Equal(t, want, got)
	}

	key, ok := info.SurrogateKey([]byte("city-0007"))
	require.True(t, ok)
	require.Equal(t, 7, key)
}
