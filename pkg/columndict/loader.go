package columndict

import (
	"io"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrSourceUnavailable is wrapped by reader providers when no reader can be
// produced for a column, e.g. because its dictionary files do not exist.
var ErrSourceUnavailable = errors.New("dictionary source unavailable")

// Loader extends an [Info] with dictionary data appended to persistent
// storage since the store was last loaded. A Loader is stateless across
// calls and safe for concurrent use against different stores; loads into
// the same store must be serialized by the caller.
type Loader struct {
	table     TableIdentifier
	provider  ReaderProvider
	chunkSize int

	logger  log.Logger
	metrics *loaderMetrics
}

// NewLoader creates a Loader for columns of the given table. chunkSize must
// be positive and identical to the chunk size used by the writer that
// produced the dictionary files.
func NewLoader(table TableIdentifier, provider ReaderProvider, chunkSize int, logger log.Logger, reg prometheus.Registerer) (*Loader, error) {
	if chunkSize <= 0 {
		return nil, errors.Errorf("invalid dictionary chunk size %d", chunkSize)
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Loader{
		table:     table,
		provider:  provider,
		chunkSize: chunkSize,
		logger:    logger,
		metrics:   newLoaderMetrics(reg),
	}, nil
}

// Load reads the dictionary values appended between byte offsets
// startOffset (inclusive) and endOffset (exclusive), re-buckets them into
// chunks continuing the store's partial last chunk, and appends the result
// to info. When loadSortIndex is set the store's sort order indexes are
// replaced wholesale before values are loaded.
//
// Load is not atomic: values drained before a mid-stream read failure stay
// committed, and a failed load leaves the extension point indeterminate.
// Callers must re-resolve the persisted offsets before retrying rather
// than replaying the same range.
func (l *Loader) Load(info *Info, column ColumnIdentifier, startOffset, endOffset int64, loadSortIndex bool) error {
	if info.ChunkSize() != l.chunkSize {
		return errors.Errorf("chunk size mismatch for column %s of table %s: store built with %d, loader configured with %d",
			column, l.table, info.ChunkSize(), l.chunkSize)
	}
	if startOffset < 0 || startOffset > endOffset {
		return errors.Errorf("invalid dictionary offset range [%d, %d) for column %s of table %s",
			startOffset, endOffset, column, l.table)
	}

	if loadSortIndex {
		if err := l.loadSortIndex(info, column); err != nil {
			l.metrics.loadFailures.WithLabelValues(phaseSortIndex).Inc()
			return err
		}
	}
	if err := l.loadValues(info, column, startOffset, endOffset); err != nil {
		l.metrics.loadFailures.WithLabelValues(phaseValues).Inc()
		return err
	}
	return nil
}

func (l *Loader) loadValues(info *Info, column ColumnIdentifier, startOffset, endOffset int64) (err error) {
	start := time.Now()

	reader, err := l.provider.DictionaryReader(l.table, column)
	if err != nil {
		return errors.Wrapf(err, "opening dictionary reader for column %s of table %s", column, l.table)
	}
	defer l.closeReader(reader, &err, phaseValues, column)

	it, err := reader.Read(startOffset, endOffset)
	if err != nil {
		return errors.Wrapf(err, "reading dictionary values for column %s of table %s in range [%d, %d)",
			column, l.table, startOffset, endOffset)
	}

	// The first chunk produced continues the store's partial last chunk. A
	// closed last chunk leaves no room, so new data starts a fresh chunk; a
	// chunk of target capacity 0 must never be constructed.
	target := l.chunkSize - info.SizeOfLastChunk()
	if target == 0 {
		target = l.chunkSize
	}

	var (
		pending []Chunk
		open    = make(Chunk, 0, target)
		drained int
	)
	for {
		value, rerr := it.Next()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			// No rollback: the drained prefix stays committed.
			if len(open) > 0 {
				pending = append(pending, open)
			}
			l.commit(info, pending, drained, start)
			return errors.Wrapf(rerr, "reading dictionary values for column %s of table %s in range [%d, %d) after %d values",
				column, l.table, startOffset, endOffset, drained)
		}
		open = append(open, value)
		drained++
		if len(open) >= target {
			pending = append(pending, open)
			target = l.chunkSize
			open = make(Chunk, 0, target)
		}
	}

	// A drain ending exactly on a chunk boundary appends no trailing chunk,
	// but an empty range still appends a single empty chunk.
	if len(open) > 0 || len(pending) == 0 {
		pending = append(pending, open)
	}
	l.commit(info, pending, drained, start)

	level.Debug(l.logger).Log("msg", "loaded dictionary values",
		"table", l.table.String(), "column", column.String(),
		"start_offset", startOffset, "end_offset", endOffset,
		"values", drained, "chunks", len(pending), "dictionary_size", info.Len())
	return nil
}

func (l *Loader) commit(info *Info, pending []Chunk, drained int, start time.Time) {
	info.appendChunks(pending)
	l.metrics.valuesLoaded.Add(float64(drained))
	l.metrics.chunksAppended.Add(float64(len(pending)))
	l.metrics.loadDuration.Observe(time.Since(start).Seconds())
}

func (l *Loader) loadSortIndex(info *Info, column ColumnIdentifier) (err error) {
	reader, err := l.provider.SortIndexReader(l.table, column)
	if err != nil {
		return errors.Wrapf(err, "opening sort index reader for column %s of table %s", column, l.table)
	}
	defer l.closeReader(reader, &err, phaseSortIndex, column)

	order, err := reader.ReadSortIndex()
	if err != nil {
		return errors.Wrapf(err, "reading sort index for column %s of table %s", column, l.table)
	}
	inverted, err := reader.ReadInvertedSortIndex()
	if err != nil {
		return errors.Wrapf(err, "reading inverted sort index for column %s of table %s", column, l.table)
	}
	if len(order) != len(inverted) {
		return errors.Errorf("sort index length mismatch for column %s of table %s: %d order entries, %d inverted entries",
			column, l.table, len(order), len(inverted))
	}

	// Both arrays are buffered before install; a failure above leaves the
	// store's previous indexes untouched.
	info.setSortIndexes(order, inverted)
	l.metrics.sortIndexLoads.Inc()
	return nil
}

// closeReader closes c exactly once per open. A close failure never masks
// an earlier read failure; it is logged instead.
func (l *Loader) closeReader(c io.Closer, err *error, phase string, column ColumnIdentifier) {
	cerr := c.Close()
	if cerr == nil {
		return
	}
	if *err == nil {
		*err = errors.Wrapf(cerr, "closing %s reader for column %s of table %s", phase, column, l.table)
		return
	}
	level.Warn(l.logger).Log("msg", "failed to close reader after read error",
		"phase", phase, "table", l.table.String(), "column", column.String(), "err", cerr)
}
