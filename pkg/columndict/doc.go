// Package columndict implements the in-memory dictionary for a
// dictionary-encoded column: an append-only value set split into
// fixed-capacity chunks, where a value's position doubles as its surrogate
// key, plus the loader that extends it incrementally from persistent
// dictionary files.
//
// An [Info] supports concurrent readers, but loads into a single Info must
// be serialized by its owner. The cache manager in
// [github.com/micadb/mica/pkg/columndict/cache] takes a per-column lock
// around every load; callers bypassing it must provide the same
// single-writer discipline themselves. [Loader] adds no locking of its own.
package columndict
