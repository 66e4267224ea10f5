// Package filestore implements the on-disk dictionary and sort-index files
// behind the columndict reader interfaces.
//
// A dictionary file is append-only: each record is the snappy-compressed
// value prefixed with its compressed length as a uvarint. Record boundary
// offsets are the byte offsets the loader is driven with; the writer
// reports the end offset after every append so callers can persist it.
//
// A sort-index file is rewritten whole every time the dictionary grows: a
// uvarint entry count, the sort order positions, the inverted order
// positions, and a trailing xxhash64 digest of everything before it.
package filestore

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/micadb/mica/pkg/columndict"
)

// DictionaryWriter appends values to a column's dictionary file.
type DictionaryWriter struct {
	f      *os.File
	buf    *bufio.Writer
	offset int64

	lenBuf  [binary.MaxVarintLen64]byte
	snapBuf []byte
}

// NewDictionaryWriter opens the dictionary file at path for appending,
// creating it if needed.
func NewDictionaryWriter(path string) (*DictionaryWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening dictionary file %s", path)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "stat dictionary file %s", path)
	}
	return &DictionaryWriter{
		f:      f,
		buf:    bufio.NewWriter(f),
		offset: fi.Size(),
	}, nil
}

// Append writes one value and returns the end offset of its record. The
// offset is only durable after Close.
func (w *DictionaryWriter) Append(value []byte) (int64, error) {
	w.snapBuf = snappy.Encode(w.snapBuf[:0], value)
	n := binary.PutUvarint(w.lenBuf[:], uint64(len(w.snapBuf)))
	if _, err := w.buf.Write(w.lenBuf[:n]); err != nil {
		return 0, errors.Wrap(err, "writing record length")
	}
	if _, err := w.buf.Write(w.snapBuf); err != nil {
		return 0, errors.Wrap(err, "writing record body")
	}
	w.offset += int64(n + len(w.snapBuf))
	return w.offset, nil
}

// Offset returns the end offset of the last appended record.
func (w *DictionaryWriter) Offset() int64 { return w.offset }

// Close flushes buffered records and closes the file.
func (w *DictionaryWriter) Close() error {
	if err := w.buf.Flush(); err != nil {
		_ = w.f.Close()
		return errors.Wrap(err, "flushing dictionary file")
	}
	return w.f.Close()
}

// DictionaryReader reads value ranges from a dictionary file. It
// implements [columndict.ValueReader].
type DictionaryReader struct {
	f *os.File
}

// OpenDictionary opens the dictionary file at path for reading.
func OpenDictionary(path string) (*DictionaryReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening dictionary file %s", path)
	}
	return &DictionaryReader{f: f}, nil
}

// Size returns the current size of the dictionary file, i.e. the end
// offset of its last record.
func (r *DictionaryReader) Size() (int64, error) {
	fi, err := r.f.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "stat dictionary file")
	}
	return fi.Size(), nil
}

// Read returns an iterator over the records between startOffset and
// endOffset. Both offsets must fall on record boundaries.
func (r *DictionaryReader) Read(startOffset, endOffset int64) (columndict.ValueIterator, error) {
	if startOffset < 0 || startOffset > endOffset {
		return nil, errors.Errorf("invalid dictionary offset range [%d, %d)", startOffset, endOffset)
	}
	section := io.NewSectionReader(r.f, startOffset, endOffset-startOffset)
	return &dictionaryIterator{
		r:         bufio.NewReader(section),
		remaining: endOffset - startOffset,
	}, nil
}

// Close closes the underlying file.
func (r *DictionaryReader) Close() error {
	return r.f.Close()
}

type dictionaryIterator struct {
	r         *bufio.Reader
	remaining int64
}

// ReadByte counts consumed length bytes so record lengths can be checked
// against the bytes left in the range.
func (it *dictionaryIterator) ReadByte() (byte, error) {
	b, err := it.r.ReadByte()
	if err == nil {
		it.remaining--
	}
	return b, err
}

func (it *dictionaryIterator) Next() ([]byte, error) {
	length, err := binary.ReadUvarint(it)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading record length")
	}
	// The length is untrusted input; a corrupt header must not force an
	// allocation larger than the range it claims to sit in.
	if length > uint64(it.remaining) {
		return nil, errors.Errorf("corrupt record: length %d exceeds %d remaining bytes", length, it.remaining)
	}
	compressed := make([]byte, length)
	if _, err := io.ReadFull(it.r, compressed); err != nil {
		// A record cut short means the range did not end on a record
		// boundary or the file is truncated.
		return nil, errors.Wrap(err, "reading record body")
	}
	it.remaining -= int64(length)
	value, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, errors.Wrap(err, "decompressing record")
	}
	return value, nil
}
