package columndict

// A ValueIterator yields dictionary values in append order. Iterators are
// single-pass and not restartable.
type ValueIterator interface {
	// Next returns the next value, or io.EOF once the range is exhausted.
	Next() ([]byte, error)
}

// A ValueReader reads raw dictionary values from a column's persistent
// dictionary file. Readers hold open file handles and must be closed.
type ValueReader interface {
	// Read returns an iterator over the values stored between byte offset
	// startOffset (inclusive) and endOffset (exclusive). Both offsets must
	// fall on record boundaries. The iterator is only valid until Close.
	Read(startOffset, endOffset int64) (ValueIterator, error)
	Close() error
}

// A SortIndexReader reads a column's sort order permutations. The two
// arrays are stored sequentially: ReadSortIndex must be called before
// ReadInvertedSortIndex. Readers must be closed.
type SortIndexReader interface {
	ReadSortIndex() ([]int32, error)
	ReadInvertedSortIndex() ([]int32, error)
	Close() error
}

// A ReaderProvider resolves a table and column to reader instances over
// that column's persisted dictionary data. Lookups that cannot produce a
// reader return an error wrapping [ErrSourceUnavailable].
type ReaderProvider interface {
	DictionaryReader(table TableIdentifier, column ColumnIdentifier) (ValueReader, error)
	SortIndexReader(table TableIdentifier, column ColumnIdentifier) (SortIndexReader, error)
}
