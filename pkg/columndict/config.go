package columndict

import (
	"flag"

	"github.com/pkg/errors"
)

// DefaultChunkSize is the default number of values per dictionary chunk.
const DefaultChunkSize = 10000

// Config for dictionary chunking.
type Config struct {
	ChunkSize int
}

// RegisterFlags adds the flags required to config this to the given FlagSet.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix("", f)
}

// RegisterFlagsWithPrefix adds the flags required to config this to the
// given FlagSet, with the given prefix.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.IntVar(&cfg.ChunkSize, prefix+"dictionary.chunk-size", DefaultChunkSize,
		"Number of values per dictionary chunk. Must match the chunk size used when the dictionary files were written.")
}

// Validate checks the config.
func (cfg *Config) Validate() error {
	if cfg.ChunkSize <= 0 {
		return errors.Errorf("invalid dictionary chunk size %d", cfg.ChunkSize)
	}
	return nil
}
