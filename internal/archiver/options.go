package archiver

import (
	"runtime"

	"github.com/TFMV/flashpack/internal/codec"
	"github.com/go-kit/log"
	"github.com/pkg/errors"
)

const (
	// DefaultBlockSize is the block size used when none is configured.
	DefaultBlockSize int64 = 1 << 20
	// DefaultBufferBlocks is the raw-block buffer cap, in blocks.
	DefaultBufferBlocks = 20
)

// Options configures an Archiver. Zero values select defaults.
type Options struct {
	// BlockSize is the number of source bytes per block when compressing.
	BlockSize int64
	// BufferSize caps the bytes of raw blocks waiting for a transform
	// worker. Defaults to DefaultBufferBlocks * BlockSize.
	BufferSize int64
	// Workers is the number of transform workers. Defaults to the number
	// of CPUs.
	Workers int
	// Readers and Writers default to half the transform workers, at least
	// one each.
	Readers int
	Writers int
	// Codec is the block transform. Defaults to zstd at the default level.
	Codec codec.Codec

	Logger   log.Logger
	Observer Observer
}

func (o Options) withDefaults() (Options, error) {
	if o.BlockSize < 0 {
		return o, validationError("options", errors.Errorf("block size must be positive, got %d", o.BlockSize))
	}
	if o.BufferSize < 0 {
		return o, validationError("options", errors.Errorf("buffer size must not be negative, got %d", o.BufferSize))
	}
	if o.Workers < 0 || o.Readers < 0 || o.Writers < 0 {
		return o, validationError("options", errors.Errorf("worker counts must not be negative (workers=%d readers=%d writers=%d)",
			o.Workers, o.Readers, o.Writers))
	}

	if o.BlockSize == 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.BufferSize == 0 {
		o.BufferSize = DefaultBufferBlocks * o.BlockSize
	}
	if o.Workers == 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Readers == 0 {
		o.Readers = max(1, o.Workers/2)
	}
	if o.Writers == 0 {
		o.Writers = max(1, o.Workers/2)
	}
	if o.Codec == nil {
		c, err := codec.New("zstd", codec.Default)
		if err != nil {
			return o, validationError("options", err)
		}
		o.Codec = c
	}
	if o.Logger == nil {
		o.Logger = log.NewNopLogger()
	}
	if o.Observer == nil {
		o.Observer = NopObserver{}
	}
	return o, nil
}
