package filestore

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// WriteSortIndex rewrites the sort-index file at path with the given
// permutations. order maps a dictionary position to its rank in value
// order, inverted maps a rank back to a position; the two must be exact
// inverses. The file is replaced atomically via a rename.
func WriteSortIndex(path string, order, inverted []int32) error {
	if len(order) != len(inverted) {
		return errors.Errorf("sort index length mismatch: %d order entries, %d inverted entries", len(order), len(inverted))
	}
	for i, rank := range order {
		if rank < 0 || int(rank) >= len(inverted) || inverted[rank] != int32(i) {
			return errors.Errorf("sort index arrays are not inverse permutations at position %d", i)
		}
	}

	var payload bytes.Buffer
	var buf [binary.MaxVarintLen64]byte

	writeUvarint := func(v uint64) {
		n := binary.PutUvarint(buf[:], v)
		payload.Write(buf[:n])
	}

	writeUvarint(uint64(len(order)))
	for _, rank := range order {
		writeUvarint(uint64(rank))
	}
	for _, pos := range inverted {
		writeUvarint(uint64(pos))
	}

	var digest [8]byte
	binary.LittleEndian.PutUint64(digest[:], xxhash.Sum64(payload.Bytes()))
	payload.Write(digest[:])

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating directory for %s", path)
	}
	if err := os.WriteFile(tmp, payload.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "writing sort index file %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "replacing sort index file %s", path)
	}
	return nil
}

// SortIndexReader reads a sort-index file. It implements
// [columndict.SortIndexReader]: ReadSortIndex must be called before
// ReadInvertedSortIndex.
type SortIndexReader struct {
	f *os.File

	loaded    bool
	orderRead bool
	order     []int32
	inverted  []int32
}

// OpenSortIndex opens the sort-index file at path.
func OpenSortIndex(path string) (*SortIndexReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening sort index file %s", path)
	}
	return &SortIndexReader{f: f}, nil
}

// ReadSortIndex returns the position-to-rank permutation.
func (r *SortIndexReader) ReadSortIndex() ([]int32, error) {
	if err := r.load(); err != nil {
		return nil, err
	}
	r.orderRead = true
	return r.order, nil
}

// ReadInvertedSortIndex returns the rank-to-position permutation. It must
// be called after ReadSortIndex.
func (r *SortIndexReader) ReadInvertedSortIndex() ([]int32, error) {
	if !r.orderRead {
		return nil, errors.New("sort index must be read before the inverted sort index")
	}
	return r.inverted, nil
}

// Close closes the underlying file.
func (r *SortIndexReader) Close() error {
	return r.f.Close()
}

func (r *SortIndexReader) load() error {
	if r.loaded {
		return nil
	}

	data, err := io.ReadAll(r.f)
	if err != nil {
		return errors.Wrap(err, "reading sort index file")
	}
	if len(data) < 8 {
		return errors.Errorf("sort index file too short: %d bytes", len(data))
	}

	payload, digest := data[:len(data)-8], data[len(data)-8:]
	if got, want := xxhash.Sum64(payload), binary.LittleEndian.Uint64(digest); got != want {
		return errors.Errorf("sort index digest mismatch: got %016x, want %016x", got, want)
	}

	buf := bytes.NewReader(payload)
	count, err := binary.ReadUvarint(buf)
	if err != nil {
		return errors.Wrap(err, "reading sort index entry count")
	}

	readArray := func(what string) ([]int32, error) {
		out := make([]int32, count)
		for i := range out {
			v, err := binary.ReadUvarint(buf)
			if err != nil {
				return nil, errors.Wrapf(err, "reading %s entry %d", what, i)
			}
			out[i] = int32(v)
		}
		return out, nil
	}

	if r.order, err = readArray("sort index"); err != nil {
		return err
	}
	if r.inverted, err = readArray("inverted sort index"); err != nil {
		return err
	}
	if buf.Len() != 0 {
		return errors.Errorf("sort index file has %d trailing bytes", buf.Len())
	}

	r.loaded = true
	return nil
}
