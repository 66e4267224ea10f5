// Package cache implements the forward dictionary cache: an LRU of
// in-memory column dictionaries kept up to date with their persistent
// dictionary files through incremental loads.
package cache

import (
	"flag"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/flagext"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/micadb/mica/pkg/columndict"
)

const lockStripes = 256

// Config for a dictionary Cache.
type Config struct {
	MaxEntries int
	MaxSize    flagext.Bytes
}

// RegisterFlags adds the flags required to config this to the given FlagSet.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix("", f)
}

// RegisterFlagsWithPrefix adds the flags required to config this to the
// given FlagSet, with the given prefix.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.IntVar(&cfg.MaxEntries, prefix+"dictionary-cache.max-entries", 256,
		"Maximum number of column dictionaries kept in memory.")
	_ = cfg.MaxSize.Set("1GB")
	f.Var(&cfg.MaxSize, prefix+"dictionary-cache.max-size",
		"Maximum memory held by cached dictionaries. 0 to disable the size budget.")
}

// Validate checks the config.
func (cfg *Config) Validate() error {
	if cfg.MaxEntries <= 0 {
		return errors.Errorf("invalid dictionary cache max entries %d", cfg.MaxEntries)
	}
	return nil
}

type entry struct {
	info *columndict.Info

	// loadedTo is the dictionary file end offset covered by info.
	loadedTo int64
	// sortIndexed reports whether the sort index is current for loadedTo.
	sortIndexed bool
}

// Cache owns the in-memory dictionaries for one table's columns. It
// serializes loads per column, satisfying the loader's single-writer
// contract, while leaving lookups on returned dictionaries lock-free for
// concurrent readers.
type Cache struct {
	cfg       Config
	loader    *columndict.Loader
	chunkSize int
	logger    log.Logger
	metrics   *metrics

	// locks stripes the per-column write locks by key hash.
	locks [lockStripes]sync.Mutex

	mtx     sync.Mutex
	entries *lru.Cache[columndict.ColumnIdentifier, *entry]
}

// New creates a dictionary cache for columns of the given table.
func New(cfg Config, table columndict.TableIdentifier, provider columndict.ReaderProvider, chunkSize int, logger log.Logger, reg prometheus.Registerer) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	loader, err := columndict.NewLoader(table, provider, chunkSize, logger, reg)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		cfg:       cfg,
		loader:    loader,
		chunkSize: chunkSize,
		logger:    logger,
		metrics:   newMetrics(reg),
	}
	c.entries, err = lru.NewWithEvict(cfg.MaxEntries, func(column columndict.ColumnIdentifier, _ *entry) {
		c.metrics.evictions.Inc()
		level.Debug(logger).Log("msg", "evicted dictionary", "column", column.String())
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Dictionary returns the column's dictionary covering the dictionary file
// up to endOffset, loading or extending the cached entry as needed. When
// withSortIndex is set the returned dictionary carries sort order indexes
// current for endOffset.
//
// On a load failure the cached entry is dropped: a failed load leaves the
// dictionary's extension point indeterminate, so the next call rebuilds
// the entry from offset zero.
func (c *Cache) Dictionary(column columndict.ColumnIdentifier, endOffset int64, withSortIndex bool) (*columndict.Info, error) {
	lock := &c.locks[xxhash.Sum64String(column.ID)%lockStripes]
	lock.Lock()
	defer lock.Unlock()

	e, ok := c.get(column)
	if !ok {
		c.metrics.misses.Inc()
		e = &entry{info: columndict.NewInfo(c.chunkSize)}
	}

	grew := endOffset > e.loadedTo
	loadSort := withSortIndex && (grew || !e.sortIndexed)
	if !grew && !loadSort {
		if ok {
			c.metrics.hits.Inc()
		}
		c.put(column, e)
		return e.info, nil
	}

	// A stale endOffset never shrinks the value range; a sort-index-only
	// refresh loads values over the empty range at the high-water mark.
	valueEnd := endOffset
	if !grew {
		valueEnd = e.loadedTo
	}
	if err := c.loader.Load(e.info, column, e.loadedTo, valueEnd, loadSort); err != nil {
		c.remove(column)
		return nil, err
	}
	if grew {
		e.loadedTo = endOffset
	}
	e.sortIndexed = loadSort || (e.sortIndexed && !grew)
	c.put(column, e)
	return e.info, nil
}

// Stop releases all cached dictionaries.
func (c *Cache) Stop() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.entries.Purge()
	c.metrics.entries.Set(0)
}

func (c *Cache) get(column columndict.ColumnIdentifier) (*entry, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.entries.Get(column)
}

func (c *Cache) remove(column columndict.ColumnIdentifier) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.entries.Remove(column)
	c.metrics.entries.Set(float64(c.entries.Len()))
}

// put installs the entry and evicts oldest entries while the cache is over
// its byte budget, never evicting the entry just installed.
func (c *Cache) put(column columndict.ColumnIdentifier, e *entry) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.entries.Add(column, e)

	if c.cfg.MaxSize > 0 {
		total := int64(0)
		for _, cached := range c.entries.Values() {
			total += cached.info.ByteSize()
		}
		for total > int64(c.cfg.MaxSize) && c.entries.Len() > 1 {
			_, oldest, ok := c.entries.RemoveOldest()
			if !ok {
				break
			}
			total -= oldest.info.ByteSize()
		}
	}

	c.metrics.entries.Set(float64(c.entries.Len()))
}
