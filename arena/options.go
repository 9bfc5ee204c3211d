package arena

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/pavanmanishd/protoarena/internal/config"
	"github.com/pavanmanishd/protoarena/internal/logging"
)

// DefaultMinBlockSize is the minimum block size of arenas built without
// WithMinBlockSize.
const DefaultMinBlockSize = config.DefaultMinBlockSize

// Option configures an Arena on creation.
type Option func(*options)

type options struct {
	minBlock int
	alloc    BlockAllocator
	log      *zerolog.Logger
	cleanup  func()
}

// WithMinBlockSize sets the smallest block requested from the allocator.
// Non-positive values are ignored.
func WithMinBlockSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.minBlock = n
		}
	}
}

// WithAllocator replaces the Go heap as the source of blocks.
func WithAllocator(alloc BlockAllocator) Option {
	return func(o *options) {
		if alloc != nil {
			o.alloc = alloc
		}
	}
}

// WithLogger sets the logger used for init, fuse, free and lock recovery
// events.
func WithLogger(l *zerolog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithCleanup registers fn to run once the arena's fuse group has freed its
// blocks. Fusing merges cleanups, so every fused arena's cleanup runs when
// the last reference to the merged group is dropped.
func WithCleanup(fn func()) Option {
	return func(o *options) {
		o.cleanup = fn
	}
}

func buildOptions(opts []Option) options {
	o := options{minBlock: DefaultMinBlockSize, alloc: HeapAllocator{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logging.Logger()
	}
	return o
}

// OptionsFromEnv builds options from PROTOARENA_* environment variables.
func OptionsFromEnv() ([]Option, error) {
	cfg, err := config.ParseEnv()
	if err != nil {
		return nil, err
	}
	return fromConfig(cfg), nil
}

// OptionsFromFile builds options from a TOML file.
func OptionsFromFile(path string) ([]Option, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return fromConfig(cfg), nil
}

func fromConfig(cfg config.Arena) []Option {
	opts := []Option{WithMinBlockSize(cfg.MinBlockSize)}
	if _, ok := logging.ParseLevel(cfg.LogLevel); ok {
		l := logging.New(os.Stderr, cfg.LogLevel)
		opts = append(opts, WithLogger(&l))
	}
	return opts
}
