// Package archiver compresses and decompresses a single file as a sequence of
// independently transformed blocks.
//
// A run is a four stage pipeline. Readers claim block indices and read raw
// blocks into a byte-bounded queue. Transform workers compress or decompress
// blocks in any order and store them by index. A single sequencer takes them
// back in index order and assigns each its output offset. Writers place the
// blocks at those offsets. Any stage fault, an Interrupt, or cancellation of
// the run's context stops every stage and removes the destination.
//
// The output of Compress is the concatenation of one codec frame per block,
// which Decompress splits again by scanning frame headers.
package archiver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/TFMV/flashpack/internal/buffer"
	"github.com/go-kit/log"
	"github.com/pkg/errors"
)

var runSeq atomic.Uint64

// Archiver starts compression and decompression runs with a fixed set of
// options. It is safe for concurrent use; runs share its buffer pool.
type Archiver struct {
	opts    Options
	fs      fileSystem
	buffers *buffer.Pool
}

// New validates opts, fills in defaults, and returns an Archiver.
func New(opts Options) (*Archiver, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Archiver{
		opts: opts,
		fs:   osFS{},
		buffers: buffer.NewPool(buffer.Options{
			BufferSize: int(opts.BlockSize),
			PoolName:   "blocks",
		}),
	}, nil
}

// Options returns the resolved options.
func (a *Archiver) Options() Options {
	return a.opts
}

// BufferMetrics returns the counters of the shared block buffer pool.
func (a *Archiver) BufferMetrics() buffer.Metrics {
	return a.buffers.Metrics()
}

// Compress starts compressing src into dst. Validation failures are returned
// before any stage runs. Cancelling ctx interrupts the run.
func (a *Archiver) Compress(ctx context.Context, src, dst string) (*Run, error) {
	return a.start(ctx, Compress, src, dst)
}

// Decompress starts restoring src, produced by Compress with the same codec,
// into dst.
func (a *Archiver) Decompress(ctx context.Context, src, dst string) (*Run, error) {
	return a.start(ctx, Decompress, src, dst)
}

func (a *Archiver) start(ctx context.Context, mode Mode, src, dst string) (*Run, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	info, err := a.validate(src, dst)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	id := fmt.Sprintf("%s-%d", started.UTC().Format("20060102T150405"), runSeq.Add(1))
	r := &Run{
		id:        id,
		mode:      mode,
		src:       src,
		dst:       dst,
		opts:      a.opts,
		codec:     a.opts.Codec,
		fs:        a.fs,
		logger:    log.With(a.opts.Logger, "run", id, "mode", mode.String()),
		observer:  a.opts.Observer,
		started:   started,
		srcSize:   info.Size(),
		buffers:   a.buffers,
		watchDone: make(chan struct{}),
		done:      make(chan struct{}),
	}
	if err := r.prepare(); err != nil {
		return nil, err
	}
	r.start(ctx)
	return r, nil
}

func (a *Archiver) validate(src, dst string) (os.FileInfo, error) {
	if src == "" {
		return nil, validationError("validate", errors.New("source path is empty"))
	}
	if dst == "" {
		return nil, validationError("validate", errors.New("destination path is empty"))
	}

	info, err := a.fs.Stat(src)
	if err != nil {
		return nil, validationError("stat source", err)
	}
	if !info.Mode().IsRegular() {
		return nil, validationError("validate", errors.Errorf("source %s is not a regular file", src))
	}

	absSrc, err := filepath.Abs(src)
	if err != nil {
		return nil, validationError("validate", err)
	}
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return nil, validationError("validate", err)
	}
	if absSrc == absDst {
		return nil, validationError("validate", errors.Errorf("source and destination are the same file: %s", src))
	}
	if dinfo, err := a.fs.Stat(dst); err == nil {
		if dinfo.IsDir() {
			return nil, validationError("validate", errors.Errorf("destination %s is a directory", dst))
		}
		if os.SameFile(info, dinfo) {
			return nil, validationError("validate", errors.Errorf("source and destination are the same file: %s", src))
		}
	}
	return info, nil
}
