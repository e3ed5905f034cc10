package archiver

import (
	"github.com/TFMV/flashpack/internal/queue"
	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// transform is the loop of one transform worker. It takes raw blocks in any
// order and stores their transformed form in the pending store.
func (r *Run) transform() error {
	for {
		b, err := r.raw.Get()
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				return nil
			}
			return err
		}
		if b.EndOfStream() {
			// Put the marker back for the next worker.
			return r.raw.Put(b, 0)
		}

		out, err := r.apply(b)
		r.buffers.Put(b.Payload)
		if err != nil {
			return err
		}
		r.observer.BlockTransformed(out)
		if err := r.pending.Put(out); err != nil {
			return err
		}
		if r.stopped() {
			return nil
		}
	}
}

// apply returns a new block holding the transformed payload of b. The
// checksum always covers the uncompressed bytes, so a compression run and the
// decompression of its output produce the same digest.
func (r *Run) apply(b *Block) (*Block, error) {
	dst := r.buffers.Get(int(r.opts.BlockSize))[:0]

	var (
		out []byte
		sum uint64
		err error
	)
	switch r.mode {
	case Compress:
		sum = xxhash.Sum64(b.Bytes())
		out, err = r.codec.Encode(dst, b.Bytes())
	case Decompress:
		out, err = r.codec.Decode(dst, b.Bytes())
		if err == nil {
			sum = xxhash.Sum64(out)
		}
	}
	if err != nil {
		r.buffers.Put(dst)
		return nil, transformError(r.mode.String(), b.Index, err)
	}

	return &Block{
		Index:    b.Index,
		Capacity: b.Capacity,
		Payload:  out,
		Size:     int64(len(out)),
		Offset:   UnknownOffset,
		Checksum: sum,
	}, nil
}
